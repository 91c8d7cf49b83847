package inventory

import (
	"context"
	"time"

	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
)

// SweepExpiredHolds releases every hold past its TTL and immediately retries
// waitlist promotion for the affected ticket types. This is the only
// non-request-driven work in the engine.
func (a *Allocator) SweepExpiredHolds(ctx context.Context) int {
	now := a.clock.Now()
	expired, err := a.holds.FindExpired(ctx, now)
	if err != nil {
		logger.Errorf(ctx, "sweepExpiredHolds: error listing expired holds: %+v", err)
		return 0
	}

	swept := 0
	touched := make(map[string]struct{})
	for _, hold := range expired {
		a.locks.Lock(hold.TicketTypeID)
		current, err := a.holds.Find(ctx, hold.ID)
		if err == nil && current.Status == model.HoldActive {
			if err := a.expireHoldLocked(ctx, current); err != nil {
				logger.Errorf(ctx, "sweepExpiredHolds: error expiring hold %s: %+v", hold.ID, err)
			} else {
				swept++
				touched[hold.TicketTypeID] = struct{}{}
			}
		}
		a.locks.Unlock(hold.TicketTypeID)
	}

	for ticketTypeID := range touched {
		a.PromoteWaitlist(ctx, ticketTypeID)
	}

	if swept > 0 {
		logger.Infof(ctx, "sweepExpiredHolds: released %d expired holds", swept)
	}
	return swept
}

// RunSweeper loops until the context is cancelled.
func (a *Allocator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.SweepExpiredHolds(ctx)
		}
	}
}
