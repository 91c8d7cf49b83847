package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// SQLOrderRepository keeps the order header in a row and the lines in a JSON
// column; lines are only ever read and written together with their order.
type SQLOrderRepository struct {
	db *sql.DB
}

func NewSQLOrderRepository(db *sql.DB) *SQLOrderRepository {
	return &SQLOrderRepository{db: db}
}

func (r *SQLOrderRepository) Save(ctx context.Context, order model.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("save: error marshalling lines: %w", err)
	}

	query := `
		INSERT INTO orders (id, customer_id, organizer_id, tenant_id, event_id, currency, lines, subtotal, tax_total, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query, order.ID, order.CustomerID, order.OrganizerID, order.TenantID, order.EventID,
		order.Currency, lines, order.Subtotal.String(), order.TaxTotal.String(), order.Total.String(),
		order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save: error inserting order %s: %w", order.ID, err)
	}
	return nil
}

func (r *SQLOrderRepository) Find(ctx context.Context, id string) (model.Order, error) {
	query := `
		SELECT id, customer_id, organizer_id, tenant_id, event_id, currency, lines, subtotal, tax_total, total, status, created_at, updated_at
		FROM orders
		WHERE id = ?`

	var o model.Order
	var lines []byte
	var subtotal, taxTotal, total string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.CustomerID, &o.OrganizerID, &o.TenantID, &o.EventID,
		&o.Currency, &lines, &subtotal, &taxTotal, &total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Order{}, fmt.Errorf("find: order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("find: error scanning order: %w", err)
	}

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return model.Order{}, fmt.Errorf("find: error parsing lines: %w", err)
	}
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return model.Order{}, fmt.Errorf("find: error parsing subtotal: %w", err)
	}
	if o.TaxTotal, err = decimal.NewFromString(taxTotal); err != nil {
		return model.Order{}, fmt.Errorf("find: error parsing tax total: %w", err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return model.Order{}, fmt.Errorf("find: error parsing total: %w", err)
	}
	return o, nil
}

func (r *SQLOrderRepository) Update(ctx context.Context, order model.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("update: error marshalling lines: %w", err)
	}

	query := `
		UPDATE orders
		SET lines = ?, subtotal = ?, tax_total = ?, total = ?, status = ?, updated_at = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, lines, order.Subtotal.String(), order.TaxTotal.String(),
		order.Total.String(), order.Status, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("update: error updating order %s: %w", order.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update: order %s: %w", order.ID, ErrNotFound)
	}
	return nil
}
