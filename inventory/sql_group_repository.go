package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

type SQLGroupBookingRepository struct {
	db *sql.DB
}

func NewSQLGroupBookingRepository(db *sql.DB) *SQLGroupBookingRepository {
	return &SQLGroupBookingRepository{db: db}
}

func (r *SQLGroupBookingRepository) Save(ctx context.Context, booking model.GroupBooking) error {
	query := `
		INSERT INTO group_bookings (id, event_id, ticket_type_id, organizer_id, total_amount, currency, status, deadline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var deadline sql.NullTime
	if booking.Deadline != nil {
		deadline = sql.NullTime{Time: *booking.Deadline, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, booking.ID, booking.EventID, booking.TicketTypeID, booking.OrganizerID,
		booking.TotalAmount.String(), booking.Currency, booking.Status, deadline, booking.CreatedAt)
	if err != nil {
		return fmt.Errorf("save: error inserting group booking %s: %w", booking.ID, err)
	}
	return r.replaceMembers(ctx, booking)
}

func (r *SQLGroupBookingRepository) Find(ctx context.Context, id string) (model.GroupBooking, error) {
	query := `
		SELECT id, event_id, ticket_type_id, organizer_id, total_amount, currency, status, deadline, created_at
		FROM group_bookings
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)

	var b model.GroupBooking
	var total string
	var deadline sql.NullTime
	err := row.Scan(&b.ID, &b.EventID, &b.TicketTypeID, &b.OrganizerID, &total, &b.Currency, &b.Status, &deadline, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return model.GroupBooking{}, fmt.Errorf("find: booking %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.GroupBooking{}, fmt.Errorf("find: error scanning booking: %w", err)
	}
	if b.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return model.GroupBooking{}, fmt.Errorf("find: error parsing total: %w", err)
	}
	if deadline.Valid {
		b.Deadline = &deadline.Time
	}

	memberQuery := `
		SELECT id, booking_id, customer_id, amount_due, amount_paid, payment_status
		FROM group_booking_members
		WHERE booking_id = ?
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, memberQuery, id)
	if err != nil {
		return model.GroupBooking{}, fmt.Errorf("find: error querying members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.GroupBookingMember
		var due, paid string
		if err := rows.Scan(&m.ID, &m.BookingID, &m.CustomerID, &due, &paid, &m.PaymentStatus); err != nil {
			return model.GroupBooking{}, fmt.Errorf("find: error scanning member: %w", err)
		}
		if m.AmountDue, err = decimal.NewFromString(due); err != nil {
			return model.GroupBooking{}, fmt.Errorf("find: error parsing amount due: %w", err)
		}
		if m.AmountPaid, err = decimal.NewFromString(paid); err != nil {
			return model.GroupBooking{}, fmt.Errorf("find: error parsing amount paid: %w", err)
		}
		b.Members = append(b.Members, m)
	}
	return b, rows.Err()
}

func (r *SQLGroupBookingRepository) Update(ctx context.Context, booking model.GroupBooking) error {
	query := `UPDATE group_bookings SET status = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, booking.Status, booking.ID); err != nil {
		return fmt.Errorf("update: error updating booking %s: %w", booking.ID, err)
	}
	return r.replaceMembers(ctx, booking)
}

func (r *SQLGroupBookingRepository) replaceMembers(ctx context.Context, booking model.GroupBooking) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM group_booking_members WHERE booking_id = ?`, booking.ID); err != nil {
		return fmt.Errorf("replaceMembers: error clearing members: %w", err)
	}

	query := `
		INSERT INTO group_booking_members (id, booking_id, customer_id, amount_due, amount_paid, payment_status)
		VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("replaceMembers: error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range booking.Members {
		if _, err := stmt.ExecContext(ctx, m.ID, m.BookingID, m.CustomerID, m.AmountDue.String(), m.AmountPaid.String(), m.PaymentStatus); err != nil {
			return fmt.Errorf("replaceMembers: error inserting member %s: %w", m.ID, err)
		}
	}
	return nil
}
