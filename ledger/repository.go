package ledger

import (
	"context"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// Repository persists ledger rows and payouts. Transaction rows are
// append-only: implementations must not expose update or delete paths.
type Repository interface {
	// AppendBatch inserts the rows in order. All-or-nothing.
	AppendBatch(ctx context.Context, txs []model.MarketplaceTransaction) error
	// TransactionsByOrganizer returns all rows for the organizer in insertion
	// order.
	TransactionsByOrganizer(ctx context.Context, organizerID string) ([]model.MarketplaceTransaction, error)
	// BalanceAsOf sums amounts for rows created at or before cutoff.
	BalanceAsOf(ctx context.Context, organizerID string, cutoff time.Time) (decimal.Decimal, error)
	// SumByType sums amounts of the given type inside [from, to].
	SumByType(ctx context.Context, organizerID string, txType model.TransactionType, from, to time.Time) (decimal.Decimal, error)
	// OutstandingPayoutTotal sums amounts of payouts still in flight
	// (pending, approved, processing) so they are not withdrawn twice.
	OutstandingPayoutTotal(ctx context.Context, organizerID string) (decimal.Decimal, error)

	SavePayout(ctx context.Context, p model.MarketplacePayout) error
	FindPayout(ctx context.Context, id string) (model.MarketplacePayout, error)
	UpdatePayout(ctx context.Context, p model.MarketplacePayout) error
}
