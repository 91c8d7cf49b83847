package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// SQL implementations over MySQL. Counter reads use FOR UPDATE inside the
// caller's transaction so multiple service instances sharing one database
// serialize on the row as well as on the in-process lock.

type SQLTicketTypeRepository struct {
	db *sql.DB
}

func NewSQLTicketTypeRepository(db *sql.DB) *SQLTicketTypeRepository {
	return &SQLTicketTypeRepository{db: db}
}

func (r *SQLTicketTypeRepository) Find(ctx context.Context, id string) (model.TicketType, error) {
	query := `
		SELECT id, event_id, event_type_id, organizer_id, tenant_id, name, price, currency,
			quota_total, quota_sold, quota_reserved, status, sales_start, sales_end,
			scheduled_at, autostart_when_previous_sold_out, previous_ticket_type_id, event_starts_at
		FROM ticket_types
		WHERE id = ?
		FOR UPDATE`

	row := r.db.QueryRowContext(ctx, query, id)

	var tt model.TicketType
	var price string
	var eventTypeID, previousID sql.NullString
	var quotaTotal sql.NullInt64
	var salesStart, salesEnd, scheduledAt, eventStartsAt sql.NullTime

	err := row.Scan(&tt.ID, &tt.EventID, &eventTypeID, &tt.OrganizerID, &tt.TenantID, &tt.Name, &price, &tt.Currency,
		&quotaTotal, &tt.QuotaSold, &tt.QuotaReserved, &tt.Status, &salesStart, &salesEnd,
		&scheduledAt, &tt.AutostartWhenPreviousSoldOut, &previousID, &eventStartsAt)
	if err == sql.ErrNoRows {
		return model.TicketType{}, fmt.Errorf("find: ticket type %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.TicketType{}, fmt.Errorf("find: error scanning ticket type: %w", err)
	}

	tt.Price, err = decimal.NewFromString(price)
	if err != nil {
		return model.TicketType{}, fmt.Errorf("find: error parsing price: %w", err)
	}
	if eventTypeID.Valid {
		tt.EventTypeID = &eventTypeID.String
	}
	if previousID.Valid {
		tt.PreviousTicketTypeID = &previousID.String
	}
	if quotaTotal.Valid {
		tt.QuotaTotal = &quotaTotal.Int64
	}
	if salesStart.Valid {
		tt.SalesStart = &salesStart.Time
	}
	if salesEnd.Valid {
		tt.SalesEnd = &salesEnd.Time
	}
	if scheduledAt.Valid {
		tt.ScheduledAt = &scheduledAt.Time
	}
	if eventStartsAt.Valid {
		tt.EventStartsAt = &eventStartsAt.Time
	}
	return tt, nil
}

func (r *SQLTicketTypeRepository) UpdateCounters(ctx context.Context, tt model.TicketType) error {
	query := `
		UPDATE ticket_types
		SET quota_sold = ?, quota_reserved = ?, status = ?
		WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, tt.QuotaSold, tt.QuotaReserved, tt.Status, tt.ID)
	if err != nil {
		return fmt.Errorf("updateCounters: error updating ticket type %s: %w", tt.ID, err)
	}
	return nil
}

type SQLHoldRepository struct {
	db *sql.DB
}

func NewSQLHoldRepository(db *sql.DB) *SQLHoldRepository {
	return &SQLHoldRepository{db: db}
}

func (r *SQLHoldRepository) Save(ctx context.Context, hold model.ReservationHold) error {
	query := `
		INSERT INTO reservation_holds
			(id, ticket_type_id, quantity, order_draft_id, waitlist_entry_id, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var waitlistID sql.NullString
	if hold.WaitlistEntryID != nil {
		waitlistID = sql.NullString{String: *hold.WaitlistEntryID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, hold.ID, hold.TicketTypeID, hold.Quantity, hold.OrderDraftID, waitlistID, hold.Status, hold.ExpiresAt, hold.CreatedAt)
	if err != nil {
		return fmt.Errorf("save: error inserting hold %s: %w", hold.ID, err)
	}
	return nil
}

func (r *SQLHoldRepository) Find(ctx context.Context, id string) (model.ReservationHold, error) {
	query := `
		SELECT id, ticket_type_id, quantity, order_draft_id, waitlist_entry_id, status, expires_at, created_at
		FROM reservation_holds
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)

	var hold model.ReservationHold
	var waitlistID sql.NullString
	err := row.Scan(&hold.ID, &hold.TicketTypeID, &hold.Quantity, &hold.OrderDraftID, &waitlistID, &hold.Status, &hold.ExpiresAt, &hold.CreatedAt)
	if err == sql.ErrNoRows {
		return model.ReservationHold{}, fmt.Errorf("find: hold %s: %w", id, ErrHoldNotFound)
	}
	if err != nil {
		return model.ReservationHold{}, fmt.Errorf("find: error scanning hold: %w", err)
	}
	if waitlistID.Valid {
		hold.WaitlistEntryID = &waitlistID.String
	}
	return hold, nil
}

func (r *SQLHoldRepository) Update(ctx context.Context, hold model.ReservationHold) error {
	query := `UPDATE reservation_holds SET status = ?, expires_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, hold.Status, hold.ExpiresAt, hold.ID)
	if err != nil {
		return fmt.Errorf("update: error updating hold %s: %w", hold.ID, err)
	}
	return nil
}

func (r *SQLHoldRepository) FindExpired(ctx context.Context, now time.Time) ([]model.ReservationHold, error) {
	query := `
		SELECT id, ticket_type_id, quantity, order_draft_id, waitlist_entry_id, status, expires_at, created_at
		FROM reservation_holds
		WHERE status = 'active' AND expires_at < ?`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("findExpired: error querying holds: %w", err)
	}
	defer rows.Close()

	var out []model.ReservationHold
	for rows.Next() {
		var hold model.ReservationHold
		var waitlistID sql.NullString
		if err := rows.Scan(&hold.ID, &hold.TicketTypeID, &hold.Quantity, &hold.OrderDraftID, &waitlistID, &hold.Status, &hold.ExpiresAt, &hold.CreatedAt); err != nil {
			return nil, fmt.Errorf("findExpired: error scanning hold: %w", err)
		}
		if waitlistID.Valid {
			hold.WaitlistEntryID = &waitlistID.String
		}
		out = append(out, hold)
	}
	return out, rows.Err()
}

type SQLTicketRepository struct {
	db *sql.DB
}

func NewSQLTicketRepository(db *sql.DB) *SQLTicketRepository {
	return &SQLTicketRepository{db: db}
}

func (r *SQLTicketRepository) SaveMany(ctx context.Context, tickets []model.Ticket) error {
	query := `
		INSERT INTO tickets (id, code, ticket_type_id, order_id, performance_id, owner_id, status, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("saveMany: error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tickets {
		var orderID, perfID sql.NullString
		if t.OrderID != nil {
			orderID = sql.NullString{String: *t.OrderID, Valid: true}
		}
		if t.PerformanceID != nil {
			perfID = sql.NullString{String: *t.PerformanceID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Code, t.TicketTypeID, orderID, perfID, t.OwnerID, t.Status, t.IssuedAt); err != nil {
			return fmt.Errorf("saveMany: error inserting ticket %s: %w", t.ID, err)
		}
	}
	return nil
}

func (r *SQLTicketRepository) Find(ctx context.Context, id string) (model.Ticket, error) {
	query := `
		SELECT id, code, ticket_type_id, order_id, performance_id, owner_id, status, issued_at
		FROM tickets
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)

	var t model.Ticket
	var orderID, perfID sql.NullString
	err := row.Scan(&t.ID, &t.Code, &t.TicketTypeID, &orderID, &perfID, &t.OwnerID, &t.Status, &t.IssuedAt)
	if err == sql.ErrNoRows {
		return model.Ticket{}, fmt.Errorf("find: ticket %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("find: error scanning ticket: %w", err)
	}
	if orderID.Valid {
		t.OrderID = &orderID.String
	}
	if perfID.Valid {
		t.PerformanceID = &perfID.String
	}
	return t, nil
}

func (r *SQLTicketRepository) FindByOrder(ctx context.Context, orderID string) ([]model.Ticket, error) {
	query := `
		SELECT id, code, ticket_type_id, order_id, performance_id, owner_id, status, issued_at
		FROM tickets
		WHERE order_id = ?
		ORDER BY issued_at, id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("findByOrder: error querying tickets: %w", err)
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		var t model.Ticket
		var oid, perfID sql.NullString
		if err := rows.Scan(&t.ID, &t.Code, &t.TicketTypeID, &oid, &perfID, &t.OwnerID, &t.Status, &t.IssuedAt); err != nil {
			return nil, fmt.Errorf("findByOrder: error scanning ticket: %w", err)
		}
		if oid.Valid {
			t.OrderID = &oid.String
		}
		if perfID.Valid {
			t.PerformanceID = &perfID.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLTicketRepository) Update(ctx context.Context, ticket model.Ticket) error {
	query := `UPDATE tickets SET owner_id = ?, status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, ticket.OwnerID, ticket.Status, ticket.ID)
	if err != nil {
		return fmt.Errorf("update: error updating ticket %s: %w", ticket.ID, err)
	}
	return nil
}

type SQLWaitlistRepository struct {
	db *sql.DB
}

func NewSQLWaitlistRepository(db *sql.DB) *SQLWaitlistRepository {
	return &SQLWaitlistRepository{db: db}
}

func (r *SQLWaitlistRepository) FindWaiting(ctx context.Context, ticketTypeID string) ([]model.WaitlistEntry, error) {
	query := `
		SELECT id, event_id, ticket_type_id, customer_id, quantity, priority, status, hold_id, notified_at, created_at
		FROM waitlist_entries
		WHERE status = 'waiting' AND (ticket_type_id = ? OR ticket_type_id IS NULL)
		ORDER BY priority DESC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, ticketTypeID)
	if err != nil {
		return nil, fmt.Errorf("findWaiting: error querying waitlist: %w", err)
	}
	defer rows.Close()

	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("findWaiting: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLWaitlistRepository) Find(ctx context.Context, id string) (model.WaitlistEntry, error) {
	query := `
		SELECT id, event_id, ticket_type_id, customer_id, quantity, priority, status, hold_id, notified_at, created_at
		FROM waitlist_entries
		WHERE id = ?`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return model.WaitlistEntry{}, fmt.Errorf("find: error querying waitlist entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return model.WaitlistEntry{}, fmt.Errorf("find: waitlist entry %s: %w", id, ErrNotFound)
	}
	e, err := scanWaitlistEntry(rows)
	if err != nil {
		return model.WaitlistEntry{}, fmt.Errorf("find: %w", err)
	}
	return e, nil
}

func (r *SQLWaitlistRepository) Update(ctx context.Context, entry model.WaitlistEntry) error {
	query := `UPDATE waitlist_entries SET status = ?, hold_id = ?, notified_at = ? WHERE id = ?`

	var holdID sql.NullString
	if entry.HoldID != nil {
		holdID = sql.NullString{String: *entry.HoldID, Valid: true}
	}
	var notifiedAt sql.NullTime
	if entry.NotifiedAt != nil {
		notifiedAt = sql.NullTime{Time: *entry.NotifiedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, entry.Status, holdID, notifiedAt, entry.ID)
	if err != nil {
		return fmt.Errorf("update: error updating waitlist entry %s: %w", entry.ID, err)
	}
	return nil
}

func scanWaitlistEntry(rows *sql.Rows) (model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	var ticketTypeID, holdID sql.NullString
	var notifiedAt sql.NullTime
	err := rows.Scan(&e.ID, &e.EventID, &ticketTypeID, &e.CustomerID, &e.Quantity, &e.Priority, &e.Status, &holdID, &notifiedAt, &e.CreatedAt)
	if err != nil {
		return model.WaitlistEntry{}, fmt.Errorf("scanWaitlistEntry: %w", err)
	}
	if ticketTypeID.Valid {
		e.TicketTypeID = &ticketTypeID.String
	}
	if holdID.Valid {
		e.HoldID = &holdID.String
	}
	if notifiedAt.Valid {
		e.NotifiedAt = &notifiedAt.Time
	}
	return e, nil
}

type SQLResaleRepository struct {
	db *sql.DB
}

func NewSQLResaleRepository(db *sql.DB) *SQLResaleRepository {
	return &SQLResaleRepository{db: db}
}

func (r *SQLResaleRepository) ActivePolicy(ctx context.Context, tenantID string) (model.ResalePolicy, error) {
	query := `
		SELECT id, tenant_id, max_markup_percentage, platform_fee_percentage, min_hours_before_event, min_hours_before_resale
		FROM resale_policies
		WHERE tenant_id = ? AND is_active = 1
		LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, tenantID)

	var p model.ResalePolicy
	var markup, fee string
	err := row.Scan(&p.ID, &p.TenantID, &markup, &fee, &p.MinHoursBeforeEvent, &p.MinHoursBeforeResale)
	if err == sql.ErrNoRows {
		return model.ResalePolicy{}, fmt.Errorf("activePolicy: tenant %s: %w", tenantID, ErrNotFound)
	}
	if err != nil {
		return model.ResalePolicy{}, fmt.Errorf("activePolicy: error scanning policy: %w", err)
	}
	if p.MaxMarkupPercentage, err = decimal.NewFromString(markup); err != nil {
		return model.ResalePolicy{}, fmt.Errorf("activePolicy: error parsing markup: %w", err)
	}
	if p.PlatformFeePercentage, err = decimal.NewFromString(fee); err != nil {
		return model.ResalePolicy{}, fmt.Errorf("activePolicy: error parsing fee: %w", err)
	}
	return p, nil
}

func (r *SQLResaleRepository) SaveListing(ctx context.Context, listing model.ResaleListing) error {
	query := `
		INSERT INTO resale_listings (id, ticket_id, seller_id, asking_price, currency, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var expiresAt sql.NullTime
	if listing.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *listing.ExpiresAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, listing.ID, listing.TicketID, listing.SellerID, listing.AskingPrice.String(), listing.Currency, listing.Status, listing.CreatedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("saveListing: error inserting listing %s: %w", listing.ID, err)
	}
	return nil
}

func (r *SQLResaleRepository) FindListing(ctx context.Context, id string) (model.ResaleListing, error) {
	query := `
		SELECT id, ticket_id, seller_id, asking_price, currency, status, created_at, expires_at
		FROM resale_listings
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)

	var l model.ResaleListing
	var price string
	var expiresAt sql.NullTime
	err := row.Scan(&l.ID, &l.TicketID, &l.SellerID, &price, &l.Currency, &l.Status, &l.CreatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return model.ResaleListing{}, fmt.Errorf("findListing: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.ResaleListing{}, fmt.Errorf("findListing: error scanning listing: %w", err)
	}
	if l.AskingPrice, err = decimal.NewFromString(price); err != nil {
		return model.ResaleListing{}, fmt.Errorf("findListing: error parsing price: %w", err)
	}
	if expiresAt.Valid {
		l.ExpiresAt = &expiresAt.Time
	}
	return l, nil
}

func (r *SQLResaleRepository) UpdateListing(ctx context.Context, listing model.ResaleListing) error {
	query := `UPDATE resale_listings SET status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, listing.Status, listing.ID)
	if err != nil {
		return fmt.Errorf("updateListing: error updating listing %s: %w", listing.ID, err)
	}
	return nil
}

func (r *SQLResaleRepository) SaveTransaction(ctx context.Context, rt model.ResaleTransaction) error {
	query := `
		INSERT INTO resale_transactions
			(id, listing_id, ticket_id, seller_id, buyer_id, sale_price, platform_fee, seller_payout, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, rt.ID, rt.ListingID, rt.TicketID, rt.SellerID, rt.BuyerID,
		rt.SalePrice.String(), rt.PlatformFee.String(), rt.SellerPayout.String(), rt.Currency, rt.CreatedAt)
	if err != nil {
		return fmt.Errorf("saveTransaction: error inserting resale transaction %s: %w", rt.ID, err)
	}
	return nil
}
