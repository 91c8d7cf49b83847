package inventory

import (
	"context"
	"testing"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedResaleFixture(env *testEnv) model.Ticket {
	tt := seedTicketType(env, "tt-1", quota(100))
	eventStart := env.clock.Now().Add(30 * 24 * time.Hour)
	tt.EventStartsAt = &eventStart
	env.types.Seed(tt)

	env.resale.SeedPolicy("tenant-1", model.ResalePolicy{
		ID:                    "policy-1",
		TenantID:              "tenant-1",
		MaxMarkupPercentage:   dec("120"),
		PlatformFeePercentage: dec("5"),
		MinHoursBeforeEvent:   24,
		MinHoursBeforeResale:  48,
	})

	ticket := model.Ticket{
		ID:           "tk-1",
		Code:         "code-1",
		TicketTypeID: "tt-1",
		OwnerID:      "seller-1",
		Status:       model.TicketValid,
		IssuedAt:     env.clock.Now().Add(-72 * time.Hour),
	}
	env.tickets.Seed(ticket)
	return ticket
}

func TestListResaleEnforcesPriceCap(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ticket := seedResaleFixture(env)

	// Price is 50, a 120% markup policy caps the ask at 60.
	_, err := env.allocator.ListResale(ctx, ticket.ID, dec("60.01"))
	assert.ErrorIs(t, err, ErrPolicyViolation)

	listing, err := env.allocator.ListResale(ctx, ticket.ID, dec("60"))
	require.NoError(t, err)
	assert.Equal(t, model.ResaleListingActive, listing.Status)
	assert.Equal(t, "seller-1", listing.SellerID)
}

func TestListResaleHoldPeriod(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ticket := seedResaleFixture(env)

	ticket.IssuedAt = env.clock.Now().Add(-time.Hour)
	env.tickets.Seed(ticket)

	_, err := env.allocator.ListResale(ctx, ticket.ID, dec("55"))
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestListResaleEventCutoff(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ticket := seedResaleFixture(env)

	tt, _ := env.types.Find(ctx, "tt-1")
	soon := env.clock.Now().Add(12 * time.Hour)
	tt.EventStartsAt = &soon
	env.types.Seed(tt)

	_, err := env.allocator.ListResale(ctx, ticket.ID, dec("55"))
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestSettleResale(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ticket := seedResaleFixture(env)

	listing, err := env.allocator.ListResale(ctx, ticket.ID, dec("60"))
	require.NoError(t, err)

	rt, err := env.allocator.SettleResale(ctx, listing.ID, "buyer-1")
	require.NoError(t, err)

	assert.True(t, rt.SalePrice.Equal(dec("60")))
	assert.True(t, rt.PlatformFee.Equal(dec("3")), "fee was %s", rt.PlatformFee)
	assert.True(t, rt.SellerPayout.Equal(dec("57")))

	moved, _ := env.tickets.Find(ctx, ticket.ID)
	assert.Equal(t, "buyer-1", moved.OwnerID)

	updated, _ := env.resale.FindListing(ctx, listing.ID)
	assert.Equal(t, model.ResaleListingSold, updated.Status)

	// A sold listing cannot settle twice.
	_, err = env.allocator.SettleResale(ctx, listing.ID, "buyer-2")
	assert.ErrorIs(t, err, ErrListingNotActive)
}

func TestCancelResale(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ticket := seedResaleFixture(env)

	listing, err := env.allocator.ListResale(ctx, ticket.ID, dec("55"))
	require.NoError(t, err)

	require.NoError(t, env.allocator.CancelResale(ctx, listing.ID))

	err = env.allocator.CancelResale(ctx, listing.ID)
	assert.ErrorIs(t, err, ErrListingNotActive)
}

func TestSettleResaleExpiredListing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ticket := seedResaleFixture(env)

	listing, err := env.allocator.ListResale(ctx, ticket.ID, dec("55"))
	require.NoError(t, err)

	expiry := env.clock.Now().Add(time.Hour)
	listing.ExpiresAt = &expiry
	require.NoError(t, env.resale.UpdateListing(ctx, listing))

	env.clock.Advance(2 * time.Hour)

	_, err = env.allocator.SettleResale(ctx, listing.ID, "buyer-1")
	assert.ErrorIs(t, err, ErrListingNotActive)

	expired, _ := env.resale.FindListing(ctx, listing.ID)
	assert.Equal(t, model.ResaleListingExpired, expired.Status)
}
