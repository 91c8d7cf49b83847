package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ticketmarket-settlement-backend/clock"
	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testEnv struct {
	allocator *Allocator
	clock     *clock.Manual
	types     *MemoryTicketTypeRepository
	holds     *MemoryHoldRepository
	tickets   *MemoryTicketRepository
	waitlist  *MemoryWaitlistRepository
	resale    *MemoryResaleRepository
	groups    *MemoryGroupBookingRepository
}

func newTestEnv() *testEnv {
	cl := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	env := &testEnv{
		clock:    cl,
		types:    NewMemoryTicketTypeRepository(),
		holds:    NewMemoryHoldRepository(),
		tickets:  NewMemoryTicketRepository(),
		waitlist: NewMemoryWaitlistRepository(),
		resale:   NewMemoryResaleRepository(),
		groups:   NewMemoryGroupBookingRepository(),
	}
	env.allocator = NewAllocator(AllocatorProperty{
		Clock:         cl,
		HoldTTL:       10 * time.Minute,
		ClaimTTL:      15 * time.Minute,
		TicketCodeKey: testKey,
		TicketTypes:   env.types,
		Holds:         env.holds,
		Tickets:       env.tickets,
		Waitlist:      env.waitlist,
		Resale:        env.resale,
		Groups:        env.groups,
	})
	return env
}

func quota(n int64) *int64 { return &n }

func seedTicketType(env *testEnv, id string, total *int64) model.TicketType {
	tt := model.TicketType{
		ID:          id,
		EventID:     "event-1",
		OrganizerID: "org-1",
		TenantID:    "tenant-1",
		Name:        "General Admission",
		Price:       dec("50"),
		Currency:    "RON",
		QuotaTotal:  total,
		Status:      model.TicketTypeActive,
	}
	env.types.Seed(tt)
	return tt
}

func TestReserveAndConfirm(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(10))

	hold, err := env.allocator.Reserve(ctx, "tt-1", 3, "order-1")
	require.NoError(t, err)
	assert.Equal(t, model.HoldActive, hold.Status)

	tt, _ := env.types.Find(ctx, "tt-1")
	assert.Equal(t, int64(3), tt.QuotaReserved)

	tickets, err := env.allocator.Confirm(ctx, hold.ID, "order-1", "cust-1")
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	for _, tk := range tickets {
		assert.Equal(t, model.TicketValid, tk.Status)
		assert.NotEmpty(t, tk.Code)
	}

	tt, _ = env.types.Find(ctx, "tt-1")
	assert.Equal(t, int64(3), tt.QuotaSold)
	assert.Equal(t, int64(0), tt.QuotaReserved)
}

func TestReserveRejectsInvalidQuantity(t *testing.T) {
	env := newTestEnv()
	seedTicketType(env, "tt-1", quota(10))

	_, err := env.allocator.Reserve(context.Background(), "tt-1", 0, "order-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.allocator.Reserve(context.Background(), "tt-1", -2, "order-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReserveSoldOut(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(5))

	_, err := env.allocator.Reserve(ctx, "tt-1", 5, "order-1")
	require.NoError(t, err)

	_, err = env.allocator.Reserve(ctx, "tt-1", 1, "order-2")
	assert.ErrorIs(t, err, ErrSoldOut)
}

func TestReserveUnlimitedQuota(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", nil)

	_, err := env.allocator.Reserve(ctx, "tt-1", 100000, "order-1")
	require.NoError(t, err)

	available, err := env.allocator.AvailableQuota(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), available)
}

func TestReserveOutsideSalesWindow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	start := env.clock.Now().Add(time.Hour)
	tt := seedTicketType(env, "tt-1", quota(10))
	tt.SalesStart = &start
	env.types.Seed(tt)

	_, err := env.allocator.Reserve(ctx, "tt-1", 1, "order-1")
	assert.ErrorIs(t, err, ErrWindowClosed)

	env.clock.Advance(2 * time.Hour)
	_, err = env.allocator.Reserve(ctx, "tt-1", 1, "order-1")
	assert.NoError(t, err)
}

func TestScheduledReleaseAutostart(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	seedTicketType(env, "tt-early", quota(2))

	scheduled := env.clock.Now().Add(24 * time.Hour)
	prevID := "tt-early"
	late := seedTicketType(env, "tt-late", quota(10))
	late.ScheduledAt = &scheduled
	late.AutostartWhenPreviousSoldOut = true
	late.PreviousTicketTypeID = &prevID
	env.types.Seed(late)

	// Previous release still has stock, the scheduled one stays closed.
	_, err := env.allocator.Reserve(ctx, "tt-late", 1, "order-1")
	assert.ErrorIs(t, err, ErrWindowClosed)

	hold, err := env.allocator.Reserve(ctx, "tt-early", 2, "order-2")
	require.NoError(t, err)
	_, err = env.allocator.Confirm(ctx, hold.ID, "order-2", "cust-1")
	require.NoError(t, err)

	// Sold out now, the next release opens ahead of schedule.
	_, err = env.allocator.Reserve(ctx, "tt-late", 1, "order-3")
	assert.NoError(t, err)
}

func TestConfirmExpiredHold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(10))

	hold, err := env.allocator.Reserve(ctx, "tt-1", 2, "order-1")
	require.NoError(t, err)

	env.clock.Advance(11 * time.Minute)

	_, err = env.allocator.Confirm(ctx, hold.ID, "order-1", "cust-1")
	assert.ErrorIs(t, err, ErrHoldExpired)

	// Expiry returned the quantity to the pool.
	available, err := env.allocator.AvailableQuota(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), available)
}

func TestReleaseIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(10))

	hold, err := env.allocator.Reserve(ctx, "tt-1", 4, "order-1")
	require.NoError(t, err)

	require.NoError(t, env.allocator.Release(ctx, hold.ID))
	require.NoError(t, env.allocator.Release(ctx, hold.ID))
	require.NoError(t, env.allocator.Release(ctx, hold.ID))

	tt, _ := env.types.Find(ctx, "tt-1")
	assert.Equal(t, int64(0), tt.QuotaReserved)
}

// failingHolds serves the first Find and errors on every later one,
// mimicking a backend dropping out mid-operation.
type failingHolds struct {
	*MemoryHoldRepository
	finds int
}

func (f *failingHolds) Find(ctx context.Context, id string) (model.ReservationHold, error) {
	f.finds++
	if f.finds > 1 {
		return model.ReservationHold{}, errors.New("backend unavailable")
	}
	return f.MemoryHoldRepository.Find(ctx, id)
}

func TestReleaseFreesLockWhenRereadFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(10))

	holds := &failingHolds{MemoryHoldRepository: env.holds}
	allocator := NewAllocator(AllocatorProperty{
		Clock:         env.clock,
		HoldTTL:       10 * time.Minute,
		ClaimTTL:      15 * time.Minute,
		TicketCodeKey: testKey,
		TicketTypes:   env.types,
		Holds:         holds,
		Tickets:       env.tickets,
		Waitlist:      env.waitlist,
		Resale:        env.resale,
		Groups:        env.groups,
	})

	hold, err := allocator.Reserve(ctx, "tt-1", 2, "order-1")
	require.NoError(t, err)

	// The re-read under the lock fails; the release errors out.
	require.Error(t, allocator.Release(ctx, hold.ID))

	// The ticket-type lock must be free again or this reserve never returns.
	_, err = allocator.Reserve(ctx, "tt-1", 1, "order-2")
	assert.NoError(t, err)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(50))

	var wg sync.WaitGroup
	granted := make(chan model.ReservationHold, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hold, err := env.allocator.Reserve(ctx, "tt-1", 1, "order"); err == nil {
				granted <- hold
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 50, count)

	tt, _ := env.types.Find(ctx, "tt-1")
	assert.Equal(t, int64(50), tt.QuotaReserved)
	assert.LessOrEqual(t, tt.QuotaSold+tt.QuotaReserved, *tt.QuotaTotal)
}

func TestCancelTicketPromotesWaitlist(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(2))

	hold, err := env.allocator.Reserve(ctx, "tt-1", 2, "order-1")
	require.NoError(t, err)
	tickets, err := env.allocator.Confirm(ctx, hold.ID, "order-1", "cust-1")
	require.NoError(t, err)

	ttID := "tt-1"
	env.waitlist.Seed(model.WaitlistEntry{
		ID:           "wl-1",
		EventID:      "event-1",
		TicketTypeID: &ttID,
		CustomerID:   "cust-2",
		Quantity:     1,
		Status:       model.WaitlistWaiting,
		CreatedAt:    env.clock.Now(),
	})

	require.NoError(t, env.allocator.CancelTicket(ctx, tickets[0].ID))

	entry, err := env.waitlist.Find(ctx, "wl-1")
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistNotified, entry.Status)
	require.NotNil(t, entry.HoldID)

	// The claim hold converts into a purchase like any other hold.
	issued, err := env.allocator.Confirm(ctx, *entry.HoldID, "order-2", "cust-2")
	require.NoError(t, err)
	assert.Len(t, issued, 1)

	entry, _ = env.waitlist.Find(ctx, "wl-1")
	assert.Equal(t, model.WaitlistPurchased, entry.Status)
}

func TestWaitlistPromotionOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(1))

	hold, err := env.allocator.Reserve(ctx, "tt-1", 1, "order-1")
	require.NoError(t, err)

	ttID := "tt-1"
	base := env.clock.Now()
	env.waitlist.Seed(model.WaitlistEntry{
		ID: "wl-old-low", TicketTypeID: &ttID, CustomerID: "c1", Quantity: 1,
		Priority: 0, Status: model.WaitlistWaiting, CreatedAt: base.Add(-2 * time.Hour),
	})
	env.waitlist.Seed(model.WaitlistEntry{
		ID: "wl-new-high", TicketTypeID: &ttID, CustomerID: "c2", Quantity: 1,
		Priority: 5, Status: model.WaitlistWaiting, CreatedAt: base.Add(-time.Hour),
	})

	// Releasing the only hold promotes the highest priority entry, not the
	// oldest.
	require.NoError(t, env.allocator.Release(ctx, hold.ID))

	high, _ := env.waitlist.Find(ctx, "wl-new-high")
	low, _ := env.waitlist.Find(ctx, "wl-old-low")
	assert.Equal(t, model.WaitlistNotified, high.Status)
	assert.Equal(t, model.WaitlistWaiting, low.Status)
}

func TestSweeperExpiresClaimHoldsAndReoffers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(1))

	hold, err := env.allocator.Reserve(ctx, "tt-1", 1, "order-1")
	require.NoError(t, err)

	ttID := "tt-1"
	env.waitlist.Seed(model.WaitlistEntry{
		ID: "wl-1", TicketTypeID: &ttID, CustomerID: "c1", Quantity: 1,
		Priority: 1, Status: model.WaitlistWaiting, CreatedAt: env.clock.Now(),
	})
	env.waitlist.Seed(model.WaitlistEntry{
		ID: "wl-2", TicketTypeID: &ttID, CustomerID: "c2", Quantity: 1,
		Priority: 0, Status: model.WaitlistWaiting, CreatedAt: env.clock.Now(),
	})

	require.NoError(t, env.allocator.Release(ctx, hold.ID))

	first, _ := env.waitlist.Find(ctx, "wl-1")
	require.Equal(t, model.WaitlistNotified, first.Status)

	// The claim lapses unclaimed; the sweeper expires it and the next entry
	// gets its turn.
	env.clock.Advance(16 * time.Minute)
	swept := env.allocator.SweepExpiredHolds(ctx)
	assert.Equal(t, 1, swept)

	first, _ = env.waitlist.Find(ctx, "wl-1")
	second, _ := env.waitlist.Find(ctx, "wl-2")
	assert.Equal(t, model.WaitlistExpired, first.Status)
	assert.Equal(t, model.WaitlistNotified, second.Status)
}

func TestSoldOutFlagClearsOnCancel(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedTicketType(env, "tt-1", quota(1))

	hold, err := env.allocator.Reserve(ctx, "tt-1", 1, "order-1")
	require.NoError(t, err)
	tickets, err := env.allocator.Confirm(ctx, hold.ID, "order-1", "cust-1")
	require.NoError(t, err)

	tt, _ := env.types.Find(ctx, "tt-1")
	require.Equal(t, model.TicketTypeSoldOut, tt.Status)

	require.NoError(t, env.allocator.CancelTicket(ctx, tickets[0].ID))

	tt, _ = env.types.Find(ctx, "tt-1")
	assert.Equal(t, model.TicketTypeActive, tt.Status)
}
