package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticketmarket-settlement-backend/model"
)

// In-memory repositories back unit tests and local runs. They mirror the SQL
// implementations' semantics, including waitlist ordering.

type MemoryTicketTypeRepository struct {
	mu    sync.RWMutex
	types map[string]model.TicketType
}

func NewMemoryTicketTypeRepository() *MemoryTicketTypeRepository {
	return &MemoryTicketTypeRepository{types: make(map[string]model.TicketType)}
}

func (r *MemoryTicketTypeRepository) Seed(tt model.TicketType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[tt.ID] = tt
}

func (r *MemoryTicketTypeRepository) Find(ctx context.Context, id string) (model.TicketType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tt, ok := r.types[id]
	if !ok {
		return model.TicketType{}, fmt.Errorf("find: ticket type %s: %w", id, ErrNotFound)
	}
	return tt, nil
}

func (r *MemoryTicketTypeRepository) UpdateCounters(ctx context.Context, tt model.TicketType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[tt.ID]; !ok {
		return fmt.Errorf("updateCounters: ticket type %s: %w", tt.ID, ErrNotFound)
	}
	r.types[tt.ID] = tt
	return nil
}

type MemoryHoldRepository struct {
	mu    sync.RWMutex
	holds map[string]model.ReservationHold
}

func NewMemoryHoldRepository() *MemoryHoldRepository {
	return &MemoryHoldRepository{holds: make(map[string]model.ReservationHold)}
}

func (r *MemoryHoldRepository) Save(ctx context.Context, hold model.ReservationHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holds[hold.ID] = hold
	return nil
}

func (r *MemoryHoldRepository) Find(ctx context.Context, id string) (model.ReservationHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hold, ok := r.holds[id]
	if !ok {
		return model.ReservationHold{}, fmt.Errorf("find: hold %s: %w", id, ErrHoldNotFound)
	}
	return hold, nil
}

func (r *MemoryHoldRepository) Update(ctx context.Context, hold model.ReservationHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holds[hold.ID]; !ok {
		return fmt.Errorf("update: hold %s: %w", hold.ID, ErrHoldNotFound)
	}
	r.holds[hold.ID] = hold
	return nil
}

func (r *MemoryHoldRepository) FindExpired(ctx context.Context, now time.Time) ([]model.ReservationHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.ReservationHold
	for _, hold := range r.holds {
		if hold.Status == model.HoldActive && now.After(hold.ExpiresAt) {
			out = append(out, hold)
		}
	}
	return out, nil
}

type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]model.Ticket
}

func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]model.Ticket)}
}

func (r *MemoryTicketRepository) Seed(t model.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[t.ID] = t
}

func (r *MemoryTicketRepository) SaveMany(ctx context.Context, tickets []model.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tickets {
		r.tickets[t.ID] = t
	}
	return nil
}

func (r *MemoryTicketRepository) Find(ctx context.Context, id string) (model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return model.Ticket{}, fmt.Errorf("find: ticket %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (r *MemoryTicketRepository) FindByOrder(ctx context.Context, orderID string) ([]model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Ticket
	for _, t := range r.tickets {
		if t.OrderID != nil && *t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, ticket model.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return fmt.Errorf("update: ticket %s: %w", ticket.ID, ErrNotFound)
	}
	r.tickets[ticket.ID] = ticket
	return nil
}

type MemoryWaitlistRepository struct {
	mu      sync.RWMutex
	entries map[string]model.WaitlistEntry
}

func NewMemoryWaitlistRepository() *MemoryWaitlistRepository {
	return &MemoryWaitlistRepository{entries: make(map[string]model.WaitlistEntry)}
}

func (r *MemoryWaitlistRepository) Seed(e model.WaitlistEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ID] = e
}

func (r *MemoryWaitlistRepository) FindWaiting(ctx context.Context, ticketTypeID string) ([]model.WaitlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.WaitlistEntry
	for _, e := range r.entries {
		if e.Status != model.WaitlistWaiting {
			continue
		}
		if e.TicketTypeID != nil && *e.TicketTypeID != ticketTypeID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryWaitlistRepository) Find(ctx context.Context, id string) (model.WaitlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return model.WaitlistEntry{}, fmt.Errorf("find: waitlist entry %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (r *MemoryWaitlistRepository) Update(ctx context.Context, entry model.WaitlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; !ok {
		return fmt.Errorf("update: waitlist entry %s: %w", entry.ID, ErrNotFound)
	}
	r.entries[entry.ID] = entry
	return nil
}

type MemoryResaleRepository struct {
	mu           sync.RWMutex
	policies     map[string]model.ResalePolicy
	listings     map[string]model.ResaleListing
	transactions map[string]model.ResaleTransaction
}

func NewMemoryResaleRepository() *MemoryResaleRepository {
	return &MemoryResaleRepository{
		policies:     make(map[string]model.ResalePolicy),
		listings:     make(map[string]model.ResaleListing),
		transactions: make(map[string]model.ResaleTransaction),
	}
}

func (r *MemoryResaleRepository) SeedPolicy(tenantID string, p model.ResalePolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[tenantID] = p
}

func (r *MemoryResaleRepository) ActivePolicy(ctx context.Context, tenantID string) (model.ResalePolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[tenantID]
	if !ok {
		return model.ResalePolicy{}, fmt.Errorf("activePolicy: tenant %s: %w", tenantID, ErrNotFound)
	}
	return p, nil
}

func (r *MemoryResaleRepository) SaveListing(ctx context.Context, listing model.ResaleListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = listing
	return nil
}

func (r *MemoryResaleRepository) FindListing(ctx context.Context, id string) (model.ResaleListing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	if !ok {
		return model.ResaleListing{}, fmt.Errorf("findListing: %s: %w", id, ErrNotFound)
	}
	return l, nil
}

func (r *MemoryResaleRepository) UpdateListing(ctx context.Context, listing model.ResaleListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[listing.ID]; !ok {
		return fmt.Errorf("updateListing: %s: %w", listing.ID, ErrNotFound)
	}
	r.listings[listing.ID] = listing
	return nil
}

func (r *MemoryResaleRepository) SaveTransaction(ctx context.Context, rt model.ResaleTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[rt.ID] = rt
	return nil
}

type MemoryGroupBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]model.GroupBooking
}

func NewMemoryGroupBookingRepository() *MemoryGroupBookingRepository {
	return &MemoryGroupBookingRepository{bookings: make(map[string]model.GroupBooking)}
}

func (r *MemoryGroupBookingRepository) Seed(booking model.GroupBooking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[booking.ID] = booking
}

func (r *MemoryGroupBookingRepository) Save(ctx context.Context, booking model.GroupBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[booking.ID] = booking
	return nil
}

func (r *MemoryGroupBookingRepository) Find(ctx context.Context, id string) (model.GroupBooking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return model.GroupBooking{}, fmt.Errorf("find: booking %s: %w", id, ErrNotFound)
	}
	return b, nil
}

func (r *MemoryGroupBookingRepository) Update(ctx context.Context, booking model.GroupBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[booking.ID]; !ok {
		return fmt.Errorf("update: booking %s: %w", booking.ID, ErrNotFound)
	}
	r.bookings[booking.ID] = booking
	return nil
}
