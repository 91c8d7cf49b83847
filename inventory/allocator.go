package inventory

import (
	"context"
	"fmt"
	"time"

	"ticketmarket-settlement-backend/clock"
	"ticketmarket-settlement-backend/codec"
	"ticketmarket-settlement-backend/lock"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/notification"

	"github.com/google/uuid"
)

// Allocator owns every mutation of ticket-type counters and holds. All
// reserve/confirm/release paths for one ticket type run under a single
// serialized section, so quota_sold + quota_reserved <= quota_total can be
// checked and updated without races.
type Allocator struct {
	clock         clock.Clock
	holdTTL       time.Duration
	claimTTL      time.Duration
	ticketCodeKey []byte
	ticketTypes   TicketTypeRepository
	holds         HoldRepository
	tickets       TicketRepository
	waitlist      WaitlistRepository
	resale        ResaleRepository
	groups        GroupBookingRepository
	dispatcher    notification.Dispatcher
	locks         *lock.KeyedMutex
}

type AllocatorProperty struct {
	Clock         clock.Clock
	HoldTTL       time.Duration
	ClaimTTL      time.Duration
	TicketCodeKey []byte
	TicketTypes   TicketTypeRepository
	Holds         HoldRepository
	Tickets       TicketRepository
	Waitlist      WaitlistRepository
	Resale        ResaleRepository
	Groups        GroupBookingRepository
	Dispatcher    notification.Dispatcher
}

func NewAllocator(props AllocatorProperty) *Allocator {
	if props.Clock == nil {
		props.Clock = clock.System()
	}
	if props.Dispatcher == nil {
		props.Dispatcher = notification.Nop{}
	}
	return &Allocator{
		clock:         props.Clock,
		holdTTL:       props.HoldTTL,
		claimTTL:      props.ClaimTTL,
		ticketCodeKey: props.TicketCodeKey,
		ticketTypes:   props.TicketTypes,
		holds:         props.Holds,
		tickets:       props.Tickets,
		waitlist:      props.Waitlist,
		resale:        props.Resale,
		groups:        props.Groups,
		dispatcher:    props.Dispatcher,
		locks:         lock.NewKeyedMutex(),
	}
}

// Reserve converts a requested quantity into a time-boxed hold, or fails with
// ErrSoldOut, ErrWindowClosed or ErrInvalidQuantity.
func (a *Allocator) Reserve(ctx context.Context, ticketTypeID string, quantity int64, orderDraftID string) (model.ReservationHold, error) {
	if quantity <= 0 {
		return model.ReservationHold{}, fmt.Errorf("reserve: quantity %d: %w", quantity, ErrInvalidQuantity)
	}

	a.locks.Lock(ticketTypeID)
	defer a.locks.Unlock(ticketTypeID)

	tt, err := a.ticketTypes.Find(ctx, ticketTypeID)
	if err != nil {
		return model.ReservationHold{}, fmt.Errorf("reserve: error finding ticket type %s: %w", ticketTypeID, err)
	}

	now := a.clock.Now()
	if err := a.checkSalesWindow(ctx, tt, now); err != nil {
		return model.ReservationHold{}, err
	}

	if tt.QuotaTotal != nil && tt.QuotaSold+tt.QuotaReserved+quantity > *tt.QuotaTotal {
		return model.ReservationHold{}, fmt.Errorf("reserve: ticket type %s: %w", ticketTypeID, ErrSoldOut)
	}

	tt.QuotaReserved += quantity
	if err := a.ticketTypes.UpdateCounters(ctx, tt); err != nil {
		return model.ReservationHold{}, fmt.Errorf("reserve: error updating counters: %w", err)
	}

	hold := model.ReservationHold{
		ID:           uuid.NewString(),
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		OrderDraftID: orderDraftID,
		Status:       model.HoldActive,
		ExpiresAt:    now.Add(a.holdTTL),
		CreatedAt:    now,
	}
	if err := a.holds.Save(ctx, hold); err != nil {
		// Roll the counter back so the quota is not leaked.
		tt.QuotaReserved -= quantity
		a.ticketTypes.UpdateCounters(ctx, tt)
		return model.ReservationHold{}, fmt.Errorf("reserve: error saving hold: %w", err)
	}

	return hold, nil
}

// Confirm converts a live hold into issued tickets. Fails with ErrHoldExpired
// once the TTL has passed; the caller must reserve again.
func (a *Allocator) Confirm(ctx context.Context, holdID, orderID, ownerID string) ([]model.Ticket, error) {
	hold, err := a.holds.Find(ctx, holdID)
	if err != nil {
		return nil, fmt.Errorf("confirm: error finding hold %s: %w", holdID, err)
	}

	a.locks.Lock(hold.TicketTypeID)
	defer a.locks.Unlock(hold.TicketTypeID)

	// Re-read under the lock; the sweeper may have raced us.
	hold, err = a.holds.Find(ctx, holdID)
	if err != nil {
		return nil, fmt.Errorf("confirm: error finding hold %s: %w", holdID, err)
	}
	if hold.Status != model.HoldActive {
		return nil, fmt.Errorf("confirm: hold %s is %s: %w", holdID, hold.Status, ErrHoldExpired)
	}

	now := a.clock.Now()
	if now.After(hold.ExpiresAt) {
		if err := a.expireHoldLocked(ctx, hold); err != nil {
			logger.Errorf(ctx, "confirm: error expiring stale hold %s: %+v", holdID, err)
		}
		return nil, fmt.Errorf("confirm: hold %s past ttl: %w", holdID, ErrHoldExpired)
	}

	tt, err := a.ticketTypes.Find(ctx, hold.TicketTypeID)
	if err != nil {
		return nil, fmt.Errorf("confirm: error finding ticket type: %w", err)
	}

	tt.QuotaReserved -= hold.Quantity
	tt.QuotaSold += hold.Quantity
	if tt.QuotaTotal != nil && tt.QuotaSold >= *tt.QuotaTotal {
		tt.Status = model.TicketTypeSoldOut
	}
	if err := a.ticketTypes.UpdateCounters(ctx, tt); err != nil {
		return nil, fmt.Errorf("confirm: error updating counters: %w", err)
	}

	tickets := make([]model.Ticket, 0, hold.Quantity)
	for i := int64(0); i < hold.Quantity; i++ {
		id := uuid.NewString()
		code, err := codec.TicketCode(a.ticketCodeKey, id, tt.ID)
		if err != nil {
			return nil, fmt.Errorf("confirm: error generating ticket code: %w", err)
		}
		tickets = append(tickets, model.Ticket{
			ID:           id,
			Code:         code,
			TicketTypeID: tt.ID,
			OrderID:      &orderID,
			OwnerID:      ownerID,
			Status:       model.TicketValid,
			IssuedAt:     now,
		})
	}
	if err := a.tickets.SaveMany(ctx, tickets); err != nil {
		return nil, fmt.Errorf("confirm: error saving tickets: %w", err)
	}

	hold.Status = model.HoldConfirmed
	if err := a.holds.Update(ctx, hold); err != nil {
		return nil, fmt.Errorf("confirm: error updating hold: %w", err)
	}

	if hold.WaitlistEntryID != nil {
		entry, err := a.waitlist.Find(ctx, *hold.WaitlistEntryID)
		if err == nil {
			entry.Status = model.WaitlistPurchased
			a.waitlist.Update(ctx, entry)
		}
	}

	a.dispatcher.Dispatch(ctx, notification.EventHoldConfirmed, hold)

	return tickets, nil
}

// Release returns a hold's quantity to the available pool. It is idempotent:
// releasing a consumed or already-released hold is a no-op.
func (a *Allocator) Release(ctx context.Context, holdID string) error {
	hold, err := a.holds.Find(ctx, holdID)
	if err != nil {
		return fmt.Errorf("release: error finding hold %s: %w", holdID, err)
	}

	// The re-read below reassigns hold, so keep the locked key stable.
	ticketTypeID := hold.TicketTypeID
	a.locks.Lock(ticketTypeID)
	hold, err = a.holds.Find(ctx, holdID)
	if err != nil {
		a.locks.Unlock(ticketTypeID)
		return fmt.Errorf("release: error finding hold %s: %w", holdID, err)
	}
	if hold.Status != model.HoldActive {
		a.locks.Unlock(ticketTypeID)
		return nil
	}

	hold.Status = model.HoldReleased
	err = a.freeHoldQuotaLocked(ctx, hold)
	a.locks.Unlock(ticketTypeID)
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}

	a.PromoteWaitlist(ctx, ticketTypeID)
	return nil
}

// CancelTicket voids an issued ticket and returns its seat to the pool,
// which may promote a waitlist entry.
func (a *Allocator) CancelTicket(ctx context.Context, ticketID string) error {
	ticket, err := a.tickets.Find(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("cancelTicket: error finding ticket %s: %w", ticketID, err)
	}
	if ticket.Status != model.TicketValid {
		return fmt.Errorf("cancelTicket: ticket %s is %s: %w", ticketID, ticket.Status, ErrPolicyViolation)
	}

	a.locks.Lock(ticket.TicketTypeID)
	ticket.Status = model.TicketCancelled
	if err := a.tickets.Update(ctx, ticket); err != nil {
		a.locks.Unlock(ticket.TicketTypeID)
		return fmt.Errorf("cancelTicket: error updating ticket: %w", err)
	}

	tt, err := a.ticketTypes.Find(ctx, ticket.TicketTypeID)
	if err != nil {
		a.locks.Unlock(ticket.TicketTypeID)
		return fmt.Errorf("cancelTicket: error finding ticket type: %w", err)
	}
	tt.QuotaSold--
	if tt.Status == model.TicketTypeSoldOut {
		tt.Status = model.TicketTypeActive
	}
	err = a.ticketTypes.UpdateCounters(ctx, tt)
	a.locks.Unlock(ticket.TicketTypeID)
	if err != nil {
		return fmt.Errorf("cancelTicket: error updating counters: %w", err)
	}

	a.PromoteWaitlist(ctx, ticket.TicketTypeID)
	return nil
}

// AvailableQuota reports how many tickets can currently be reserved, or -1
// for unlimited quota.
func (a *Allocator) AvailableQuota(ctx context.Context, ticketTypeID string) (int64, error) {
	a.locks.Lock(ticketTypeID)
	defer a.locks.Unlock(ticketTypeID)

	tt, err := a.ticketTypes.Find(ctx, ticketTypeID)
	if err != nil {
		return 0, fmt.Errorf("availableQuota: error finding ticket type %s: %w", ticketTypeID, err)
	}
	return tt.Available(), nil
}

// TicketType exposes the ticket type for pricing; counters in the returned
// value are a snapshot, not something callers may mutate.
func (a *Allocator) TicketType(ctx context.Context, id string) (model.TicketType, error) {
	return a.ticketTypes.Find(ctx, id)
}

// TicketsByOrder lists the tickets issued for an order.
func (a *Allocator) TicketsByOrder(ctx context.Context, orderID string) ([]model.Ticket, error) {
	return a.tickets.FindByOrder(ctx, orderID)
}

func (a *Allocator) checkSalesWindow(ctx context.Context, tt model.TicketType, now time.Time) error {
	switch tt.Status {
	case model.TicketTypeActive:
	case model.TicketTypeSoldOut:
		return fmt.Errorf("checkSalesWindow: ticket type %s: %w", tt.ID, ErrSoldOut)
	default:
		return fmt.Errorf("checkSalesWindow: ticket type %s is %s: %w", tt.ID, tt.Status, ErrWindowClosed)
	}

	if tt.SalesStart != nil && now.Before(*tt.SalesStart) {
		return fmt.Errorf("checkSalesWindow: sales not started: %w", ErrWindowClosed)
	}
	if tt.SalesEnd != nil && now.After(*tt.SalesEnd) {
		return fmt.Errorf("checkSalesWindow: sales ended: %w", ErrWindowClosed)
	}

	// Sequenced release: a scheduled ticket type opens early only once its
	// predecessor is sold out.
	if tt.ScheduledAt != nil && now.Before(*tt.ScheduledAt) {
		if !tt.AutostartWhenPreviousSoldOut || tt.PreviousTicketTypeID == nil {
			return fmt.Errorf("checkSalesWindow: release scheduled for %s: %w", tt.ScheduledAt, ErrWindowClosed)
		}
		prev, err := a.ticketTypes.Find(ctx, *tt.PreviousTicketTypeID)
		if err != nil {
			return fmt.Errorf("checkSalesWindow: error finding previous ticket type: %w", err)
		}
		if prev.QuotaTotal == nil || prev.QuotaSold < *prev.QuotaTotal {
			return fmt.Errorf("checkSalesWindow: previous release not sold out: %w", ErrWindowClosed)
		}
	}

	return nil
}

// freeHoldQuotaLocked persists the hold's terminal state and gives its
// quantity back. Caller must hold the ticket-type lock.
func (a *Allocator) freeHoldQuotaLocked(ctx context.Context, hold model.ReservationHold) error {
	if err := a.holds.Update(ctx, hold); err != nil {
		return fmt.Errorf("freeHoldQuota: error updating hold: %w", err)
	}

	tt, err := a.ticketTypes.Find(ctx, hold.TicketTypeID)
	if err != nil {
		return fmt.Errorf("freeHoldQuota: error finding ticket type: %w", err)
	}
	tt.QuotaReserved -= hold.Quantity
	if tt.Status == model.TicketTypeSoldOut && (tt.QuotaTotal == nil || tt.QuotaSold < *tt.QuotaTotal) {
		tt.Status = model.TicketTypeActive
	}
	if err := a.ticketTypes.UpdateCounters(ctx, tt); err != nil {
		return fmt.Errorf("freeHoldQuota: error updating counters: %w", err)
	}
	return nil
}

func (a *Allocator) expireHoldLocked(ctx context.Context, hold model.ReservationHold) error {
	hold.Status = model.HoldExpired
	if err := a.freeHoldQuotaLocked(ctx, hold); err != nil {
		return err
	}

	// A lapsed claim hold sends the waitlist entry to expired so the next
	// entry can be offered.
	if hold.WaitlistEntryID != nil {
		entry, err := a.waitlist.Find(ctx, *hold.WaitlistEntryID)
		if err == nil && entry.Status == model.WaitlistNotified {
			entry.Status = model.WaitlistExpired
			if err := a.waitlist.Update(ctx, entry); err != nil {
				return fmt.Errorf("expireHold: error updating waitlist entry: %w", err)
			}
		}
	}
	return nil
}
