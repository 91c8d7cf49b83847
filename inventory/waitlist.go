package inventory

import (
	"context"
	"fmt"

	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/notification"

	"github.com/google/uuid"
)

// PromoteWaitlist offers freed quota to waiting entries, best first. Each
// promoted entry gets a short-lived claim hold, not a sale; if the hold
// lapses the sweeper expires the entry and the quota goes back to the pool.
func (a *Allocator) PromoteWaitlist(ctx context.Context, ticketTypeID string) {
	a.locks.Lock(ticketTypeID)
	defer a.locks.Unlock(ticketTypeID)

	tt, err := a.ticketTypes.Find(ctx, ticketTypeID)
	if err != nil {
		logger.Errorf(ctx, "promoteWaitlist: error finding ticket type %s: %+v", ticketTypeID, err)
		return
	}

	available := tt.Available()
	if available == 0 {
		return
	}

	entries, err := a.waitlist.FindWaiting(ctx, ticketTypeID)
	if err != nil {
		logger.Errorf(ctx, "promoteWaitlist: error listing waitlist: %+v", err)
		return
	}

	now := a.clock.Now()
	for _, entry := range entries {
		if available >= 0 && entry.Quantity > available {
			continue
		}

		entryID := entry.ID
		hold := model.ReservationHold{
			ID:              uuid.NewString(),
			TicketTypeID:    ticketTypeID,
			Quantity:        entry.Quantity,
			OrderDraftID:    fmt.Sprintf("waitlist-%s", entryID),
			WaitlistEntryID: &entryID,
			Status:          model.HoldActive,
			ExpiresAt:       now.Add(a.claimTTL),
			CreatedAt:       now,
		}
		if err := a.holds.Save(ctx, hold); err != nil {
			logger.Errorf(ctx, "promoteWaitlist: error saving claim hold: %+v", err)
			return
		}

		tt.QuotaReserved += entry.Quantity
		if err := a.ticketTypes.UpdateCounters(ctx, tt); err != nil {
			logger.Errorf(ctx, "promoteWaitlist: error updating counters: %+v", err)
			return
		}
		if available > 0 {
			available -= entry.Quantity
		}

		entry.Status = model.WaitlistNotified
		entry.HoldID = &hold.ID
		entry.NotifiedAt = &now
		if err := a.waitlist.Update(ctx, entry); err != nil {
			logger.Errorf(ctx, "promoteWaitlist: error updating entry %s: %+v", entry.ID, err)
			return
		}

		a.dispatcher.Dispatch(ctx, notification.EventWaitlistPromoted, entry)

		if available == 0 {
			return
		}
	}
}
