package inventory

import (
	"context"
	"time"

	"ticketmarket-settlement-backend/model"
)

// Repositories below persist the entities the allocator owns. Counter
// mutations always happen inside the allocator's per-ticket-type critical
// section; the SQL implementations additionally take row locks so that
// several service instances sharing one database stay consistent.

type TicketTypeRepository interface {
	Find(ctx context.Context, id string) (model.TicketType, error)
	UpdateCounters(ctx context.Context, tt model.TicketType) error
}

type HoldRepository interface {
	Save(ctx context.Context, hold model.ReservationHold) error
	Find(ctx context.Context, id string) (model.ReservationHold, error)
	Update(ctx context.Context, hold model.ReservationHold) error
	FindExpired(ctx context.Context, now time.Time) ([]model.ReservationHold, error)
}

type TicketRepository interface {
	SaveMany(ctx context.Context, tickets []model.Ticket) error
	Find(ctx context.Context, id string) (model.Ticket, error)
	FindByOrder(ctx context.Context, orderID string) ([]model.Ticket, error)
	Update(ctx context.Context, ticket model.Ticket) error
}

type WaitlistRepository interface {
	// FindWaiting returns waiting entries for the ticket type ordered by
	// (priority desc, created_at asc).
	FindWaiting(ctx context.Context, ticketTypeID string) ([]model.WaitlistEntry, error)
	Find(ctx context.Context, id string) (model.WaitlistEntry, error)
	Update(ctx context.Context, entry model.WaitlistEntry) error
}

type ResaleRepository interface {
	ActivePolicy(ctx context.Context, tenantID string) (model.ResalePolicy, error)
	SaveListing(ctx context.Context, listing model.ResaleListing) error
	FindListing(ctx context.Context, id string) (model.ResaleListing, error)
	UpdateListing(ctx context.Context, listing model.ResaleListing) error
	SaveTransaction(ctx context.Context, rt model.ResaleTransaction) error
}

type GroupBookingRepository interface {
	Save(ctx context.Context, booking model.GroupBooking) error
	Find(ctx context.Context, id string) (model.GroupBooking, error)
	Update(ctx context.Context, booking model.GroupBooking) error
}
