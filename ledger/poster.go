package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticketmarket-settlement-backend/clock"
	"ticketmarket-settlement-backend/lock"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/notification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is one ledger movement requested by a caller. The poster assigns the
// row ID, balance and timestamp.
type Entry struct {
	Type     model.TransactionType
	Amount   decimal.Decimal
	OrderID  *string
	PayoutID *string
}

// Poster is the only writer of marketplace_transactions. Posts for the same
// organizer are serialized through a per-organizer lock; different organizers
// proceed in parallel.
type Poster struct {
	repo     Repository
	locks    *lock.KeyedMutex
	clock    clock.Clock
	notifier notification.Dispatcher

	minimumPayout decimal.Decimal
	settlementLag time.Duration

	mu     sync.Mutex
	halted map[string]bool
}

type PosterProperty struct {
	Repo          Repository
	Clock         clock.Clock
	Notifier      notification.Dispatcher
	MinimumPayout decimal.Decimal
	SettlementLag time.Duration
}

func NewPoster(p PosterProperty) *Poster {
	if p.Clock == nil {
		p.Clock = clock.System()
	}
	if p.Notifier == nil {
		p.Notifier = notification.Nop{}
	}
	return &Poster{
		repo:          p.Repo,
		locks:         lock.NewKeyedMutex(),
		clock:         p.Clock,
		notifier:      p.Notifier,
		minimumPayout: p.MinimumPayout,
		settlementLag: p.SettlementLag,
	}
}

// typeRank fixes the posting order inside a batch so balance_after is
// reproducible regardless of how the caller assembled the entries.
var typeRank = map[model.TransactionType]int{
	model.TxSale:           0,
	model.TxCommission:     1,
	model.TxRefund:         2,
	model.TxChargeback:     3,
	model.TxAdjustment:     4,
	model.TxPayout:         5,
	model.TxPayoutReversal: 6,
}

// Post appends one atomic batch for the organizer. Before writing it replays
// the organizer's chain; a continuity break halts the organizer and nothing
// is written.
func (p *Poster) Post(ctx context.Context, organizerID, currency string, entries []Entry) ([]model.MarketplaceTransaction, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("post: organizer %s: %w", organizerID, ErrEmptyBatch)
	}

	p.locks.Lock(organizerID)
	defer p.locks.Unlock(organizerID)

	if p.isHalted(organizerID) {
		return nil, fmt.Errorf("post: organizer %s: %w", organizerID, ErrOrganizerHalted)
	}

	rows, balance, err := p.verifiedChain(ctx, organizerID)
	if err != nil {
		return nil, err
	}

	// An organizer account is denominated in a single currency.
	if n := len(rows); n > 0 && rows[n-1].Currency != currency {
		return nil, fmt.Errorf("post: organizer %s ledger is %s, batch is %s: %w",
			organizerID, rows[n-1].Currency, currency, ErrCurrencyMismatch)
	}

	sorted := append([]Entry{}, entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return typeRank[sorted[i].Type] < typeRank[sorted[j].Type] })

	now := p.clock.Now()
	txs := make([]model.MarketplaceTransaction, 0, len(sorted))
	for _, e := range sorted {
		balance = balance.Add(e.Amount)
		txs = append(txs, model.MarketplaceTransaction{
			ID:           uuid.NewString(),
			OrganizerID:  organizerID,
			Type:         e.Type,
			Amount:       e.Amount,
			Currency:     currency,
			BalanceAfter: balance,
			OrderID:      e.OrderID,
			PayoutID:     e.PayoutID,
			CreatedAt:    now,
		})
	}

	if err := p.repo.AppendBatch(ctx, txs); err != nil {
		return nil, fmt.Errorf("post: error appending batch for organizer %s: %w", organizerID, err)
	}

	logger.Debugf(ctx, "post: organizer %s, %d rows, balance %s", organizerID, len(txs), balance.String())
	return txs, nil
}

// verifiedChain replays the organizer's rows and returns them with the
// closing balance. Caller must hold the organizer lock.
func (p *Poster) verifiedChain(ctx context.Context, organizerID string) ([]model.MarketplaceTransaction, decimal.Decimal, error) {
	rows, err := p.repo.TransactionsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("verifiedChain: error loading transactions for organizer %s: %w", organizerID, err)
	}

	running := decimal.Zero
	for _, row := range rows {
		running = running.Add(row.Amount)
		if !row.BalanceAfter.Equal(running) {
			p.halt(organizerID)
			logger.Errorf(ctx, "verifiedChain: organizer %s, row %s expected balance %s got %s",
				organizerID, row.ID, running.String(), row.BalanceAfter.String())
			return nil, decimal.Zero, fmt.Errorf("verifiedChain: organizer %s, row %s: %w", organizerID, row.ID, ErrLedgerInconsistent)
		}
	}
	return rows, running, nil
}

// Transactions lists the organizer's ledger rows in insertion order.
func (p *Poster) Transactions(ctx context.Context, organizerID string) ([]model.MarketplaceTransaction, error) {
	return p.repo.TransactionsByOrganizer(ctx, organizerID)
}

// Balance returns the organizer's current running balance.
func (p *Poster) Balance(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	p.locks.Lock(organizerID)
	defer p.locks.Unlock(organizerID)
	_, balance, err := p.verifiedChain(ctx, organizerID)
	return balance, err
}

// AvailableBalance is what the organizer can withdraw right now: rows older
// than the settlement lag, minus payouts still in flight.
func (p *Poster) AvailableBalance(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	cutoff := p.clock.Now().Add(-p.settlementLag)
	settled, err := p.repo.BalanceAsOf(ctx, organizerID, cutoff)
	if err != nil {
		return decimal.Zero, fmt.Errorf("availableBalance: error summing settled rows for organizer %s: %w", organizerID, err)
	}
	outstanding, err := p.repo.OutstandingPayoutTotal(ctx, organizerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("availableBalance: error summing outstanding payouts for organizer %s: %w", organizerID, err)
	}
	return settled.Sub(outstanding), nil
}

// RequestPayout creates a pending payout over the period without touching the
// ledger. Amount is the full available balance at request time.
func (p *Poster) RequestPayout(ctx context.Context, organizerID, currency string, periodStart, periodEnd time.Time) (model.MarketplacePayout, error) {
	p.locks.Lock(organizerID)
	defer p.locks.Unlock(organizerID)

	if p.isHalted(organizerID) {
		return model.MarketplacePayout{}, fmt.Errorf("requestPayout: organizer %s: %w", organizerID, ErrOrganizerHalted)
	}

	available, err := p.AvailableBalance(ctx, organizerID)
	if err != nil {
		return model.MarketplacePayout{}, err
	}
	if available.LessThan(p.minimumPayout) {
		return model.MarketplacePayout{}, fmt.Errorf("requestPayout: organizer %s, available %s, minimum %s: %w",
			organizerID, available.String(), p.minimumPayout.String(), ErrBelowMinimum)
	}

	gross, err := p.repo.SumByType(ctx, organizerID, model.TxSale, periodStart, periodEnd)
	if err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("requestPayout: error summing sales for organizer %s: %w", organizerID, err)
	}
	commission, err := p.repo.SumByType(ctx, organizerID, model.TxCommission, periodStart, periodEnd)
	if err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("requestPayout: error summing commissions for organizer %s: %w", organizerID, err)
	}

	now := p.clock.Now()
	payout := model.MarketplacePayout{
		ID:               uuid.NewString(),
		OrganizerID:      organizerID,
		Amount:           available,
		GrossAmount:      gross,
		CommissionAmount: commission.Abs(),
		Currency:         currency,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		Status:           model.PayoutPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := p.repo.SavePayout(ctx, payout); err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("requestPayout: error saving payout for organizer %s: %w", organizerID, err)
	}

	logger.Infof(ctx, "requestPayout: organizer %s, payout %s, amount %s", organizerID, payout.ID, available.String())
	return payout, nil
}

func (p *Poster) ApprovePayout(ctx context.Context, payoutID string) (model.MarketplacePayout, error) {
	return p.transition(ctx, payoutID, model.PayoutApproved, model.PayoutPending)
}

func (p *Poster) RejectPayout(ctx context.Context, payoutID string) (model.MarketplacePayout, error) {
	return p.transition(ctx, payoutID, model.PayoutRejected, model.PayoutPending, model.PayoutApproved)
}

func (p *Poster) CancelPayout(ctx context.Context, payoutID string) (model.MarketplacePayout, error) {
	return p.transition(ctx, payoutID, model.PayoutCancelled, model.PayoutPending)
}

func (p *Poster) ProcessPayout(ctx context.Context, payoutID string) (model.MarketplacePayout, error) {
	return p.transition(ctx, payoutID, model.PayoutProcessing, model.PayoutApproved)
}

// CompletePayout posts the payout debit row and marks the payout completed.
// Accepted from approved or processing; the debit is posted exactly once,
// here.
func (p *Poster) CompletePayout(ctx context.Context, payoutID string) (model.MarketplacePayout, error) {
	payout, err := p.repo.FindPayout(ctx, payoutID)
	if err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("completePayout: payout %s: %w", payoutID, err)
	}
	if payout.Status != model.PayoutApproved && payout.Status != model.PayoutProcessing {
		return model.MarketplacePayout{}, fmt.Errorf("completePayout: payout %s is %s: %w", payoutID, payout.Status, ErrInvalidTransition)
	}

	id := payout.ID
	_, err = p.Post(ctx, payout.OrganizerID, payout.Currency, []Entry{
		{Type: model.TxPayout, Amount: payout.Amount.Neg(), PayoutID: &id},
	})
	if err != nil {
		return model.MarketplacePayout{}, err
	}

	payout.Status = model.PayoutCompleted
	payout.UpdatedAt = p.clock.Now()
	if err := p.repo.UpdatePayout(ctx, payout); err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("completePayout: error updating payout %s: %w", payoutID, err)
	}

	p.notifier.Dispatch(ctx, notification.EventPayoutCompleted, payout)
	return payout, nil
}

// FailPayout handles a transfer that bounced after the debit was posted. The
// debit row stays; a payout_reversal credit restores the balance.
func (p *Poster) FailPayout(ctx context.Context, payoutID string) (model.MarketplacePayout, error) {
	payout, err := p.repo.FindPayout(ctx, payoutID)
	if err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("failPayout: payout %s: %w", payoutID, err)
	}
	if payout.Status != model.PayoutCompleted && payout.Status != model.PayoutProcessing {
		return model.MarketplacePayout{}, fmt.Errorf("failPayout: payout %s is %s: %w", payoutID, payout.Status, ErrInvalidTransition)
	}

	if payout.Status == model.PayoutCompleted {
		id := payout.ID
		_, err = p.Post(ctx, payout.OrganizerID, payout.Currency, []Entry{
			{Type: model.TxPayoutReversal, Amount: payout.Amount, PayoutID: &id},
		})
		if err != nil {
			return model.MarketplacePayout{}, err
		}
	}

	payout.Status = model.PayoutFailed
	payout.UpdatedAt = p.clock.Now()
	if err := p.repo.UpdatePayout(ctx, payout); err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("failPayout: error updating payout %s: %w", payoutID, err)
	}
	return payout, nil
}

func (p *Poster) FindPayout(ctx context.Context, payoutID string) (model.MarketplacePayout, error) {
	return p.repo.FindPayout(ctx, payoutID)
}

func (p *Poster) transition(ctx context.Context, payoutID string, to model.PayoutStatus, from ...model.PayoutStatus) (model.MarketplacePayout, error) {
	payout, err := p.repo.FindPayout(ctx, payoutID)
	if err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("transition: payout %s: %w", payoutID, err)
	}

	allowed := false
	for _, s := range from {
		if payout.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return model.MarketplacePayout{}, fmt.Errorf("transition: payout %s, %s to %s: %w", payoutID, payout.Status, to, ErrInvalidTransition)
	}

	payout.Status = to
	payout.UpdatedAt = p.clock.Now()
	if err := p.repo.UpdatePayout(ctx, payout); err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("transition: error updating payout %s: %w", payoutID, err)
	}
	return payout, nil
}

func (p *Poster) isHalted(organizerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halted[organizerID]
}

func (p *Poster) halt(organizerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.halted == nil {
		p.halted = make(map[string]bool)
	}
	p.halted[organizerID] = true
}
