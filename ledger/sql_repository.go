package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// SQLRepository stores ledger rows in marketplace_transactions and payouts in
// marketplace_payouts. The transactions table never sees UPDATE or DELETE.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) AppendBatch(ctx context.Context, txs []model.MarketplaceTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("appendBatch: error beginning transaction: %w", err)
	}

	query := `
		INSERT INTO marketplace_transactions (id, organizer_id, type, amount, currency, balance_after, order_id, payout_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("appendBatch: error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range txs {
		_, err := stmt.ExecContext(ctx, row.ID, row.OrganizerID, row.Type, row.Amount.String(), row.Currency,
			row.BalanceAfter.String(), row.OrderID, row.PayoutID, row.CreatedAt)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("appendBatch: error inserting row %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("appendBatch: error committing batch: %w", err)
	}
	return nil
}

func (r *SQLRepository) TransactionsByOrganizer(ctx context.Context, organizerID string) ([]model.MarketplaceTransaction, error) {
	query := `
		SELECT id, organizer_id, type, amount, currency, balance_after, order_id, payout_id, created_at
		FROM marketplace_transactions
		WHERE organizer_id = ?
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, organizerID)
	if err != nil {
		return nil, fmt.Errorf("transactionsByOrganizer: error querying rows: %w", err)
	}
	defer rows.Close()

	var out []model.MarketplaceTransaction
	for rows.Next() {
		var t model.MarketplaceTransaction
		var amount, balance string
		var orderID, payoutID sql.NullString
		err := rows.Scan(&t.ID, &t.OrganizerID, &t.Type, &amount, &t.Currency, &balance, &orderID, &payoutID, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("transactionsByOrganizer: error scanning row: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transactionsByOrganizer: error parsing amount: %w", err)
		}
		if t.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("transactionsByOrganizer: error parsing balance: %w", err)
		}
		if orderID.Valid {
			t.OrderID = &orderID.String
		}
		if payoutID.Valid {
			t.PayoutID = &payoutID.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLRepository) BalanceAsOf(ctx context.Context, organizerID string, cutoff time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM marketplace_transactions
		WHERE organizer_id = ? AND created_at <= ?`

	return r.sumQuery(ctx, query, organizerID, cutoff)
}

func (r *SQLRepository) SumByType(ctx context.Context, organizerID string, txType model.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM marketplace_transactions
		WHERE organizer_id = ? AND type = ? AND created_at >= ? AND created_at <= ?`

	return r.sumQuery(ctx, query, organizerID, txType, from, to)
}

func (r *SQLRepository) OutstandingPayoutTotal(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM marketplace_payouts
		WHERE organizer_id = ? AND status IN ('pending', 'approved', 'processing')`

	return r.sumQuery(ctx, query, organizerID)
}

func (r *SQLRepository) sumQuery(ctx context.Context, query string, args ...interface{}) (decimal.Decimal, error) {
	var sum string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sumQuery: error scanning sum: %w", err)
	}
	v, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sumQuery: error parsing sum: %w", err)
	}
	return v, nil
}

func (r *SQLRepository) SavePayout(ctx context.Context, p model.MarketplacePayout) error {
	query := `
		INSERT INTO marketplace_payouts
			(id, organizer_id, amount, gross_amount, commission_amount, currency, period_start, period_end, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, p.ID, p.OrganizerID, p.Amount.String(), p.GrossAmount.String(),
		p.CommissionAmount.String(), p.Currency, p.PeriodStart, p.PeriodEnd, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("savePayout: error inserting payout %s: %w", p.ID, err)
	}
	return nil
}

func (r *SQLRepository) FindPayout(ctx context.Context, id string) (model.MarketplacePayout, error) {
	query := `
		SELECT id, organizer_id, amount, gross_amount, commission_amount, currency, period_start, period_end, status, created_at, updated_at
		FROM marketplace_payouts
		WHERE id = ?`

	var p model.MarketplacePayout
	var amount, gross, commission string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.OrganizerID, &amount, &gross, &commission,
		&p.Currency, &p.PeriodStart, &p.PeriodEnd, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.MarketplacePayout{}, fmt.Errorf("findPayout: payout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("findPayout: error scanning payout: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("findPayout: error parsing amount: %w", err)
	}
	if p.GrossAmount, err = decimal.NewFromString(gross); err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("findPayout: error parsing gross amount: %w", err)
	}
	if p.CommissionAmount, err = decimal.NewFromString(commission); err != nil {
		return model.MarketplacePayout{}, fmt.Errorf("findPayout: error parsing commission: %w", err)
	}
	return p, nil
}

func (r *SQLRepository) UpdatePayout(ctx context.Context, p model.MarketplacePayout) error {
	query := `UPDATE marketplace_payouts SET status = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("updatePayout: error updating payout %s: %w", p.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("updatePayout: payout %s: %w", p.ID, ErrNotFound)
	}
	return nil
}
