package settlement

import (
	"context"
	"testing"
	"time"

	"ticketmarket-settlement-backend/clock"
	"ticketmarket-settlement-backend/inventory"
	"ticketmarket-settlement-backend/ledger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/tax"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeGateway approves or declines without leaving the process.
type fakeGateway struct {
	approve bool
	reason  string
	err     error
	calls   []AuthorizationRequest
}

func (g *fakeGateway) Authorize(ctx context.Context, req AuthorizationRequest) (AuthorizationResult, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return AuthorizationResult{}, g.err
	}
	return AuthorizationResult{Approved: g.approve, Reference: "ref-1", Reason: g.reason}, nil
}

type orchestratorEnv struct {
	orchestrator *Orchestrator
	allocator    *inventory.Allocator
	clock        *clock.Manual
	types        *inventory.MemoryTicketTypeRepository
	tickets      *inventory.MemoryTicketRepository
	resale       *inventory.MemoryResaleRepository
	rates        *tax.MemoryRates
	ledger       *ledger.Memory
	orders       *MemoryOrders
	gateway      *fakeGateway
}

func newOrchestratorEnv() *orchestratorEnv {
	manual := clock.NewManual(t0)

	types := inventory.NewMemoryTicketTypeRepository()
	tickets := inventory.NewMemoryTicketRepository()
	resale := inventory.NewMemoryResaleRepository()
	allocator := inventory.NewAllocator(inventory.AllocatorProperty{
		Clock:         manual,
		HoldTTL:       10 * time.Minute,
		ClaimTTL:      15 * time.Minute,
		TicketCodeKey: []byte("0123456789abcdef0123456789abcdef"),
		TicketTypes:   types,
		Holds:         inventory.NewMemoryHoldRepository(),
		Tickets:       tickets,
		Waitlist:      inventory.NewMemoryWaitlistRepository(),
		Resale:        resale,
		Groups:        inventory.NewMemoryGroupBookingRepository(),
	})

	rates := tax.NewMemoryRates()
	calculator := tax.NewCalculator(rates, tax.NewMemoryAudit())

	ledgerRepo := ledger.NewMemory()
	poster := ledger.NewPoster(ledger.PosterProperty{
		Repo:          ledgerRepo,
		Clock:         manual,
		MinimumPayout: dec("50"),
		SettlementLag: 48 * time.Hour,
	})

	orders := NewMemoryOrders()
	gateway := &fakeGateway{approve: true}

	orchestrator := NewOrchestrator(OrchestratorProperty{
		Allocator:            allocator,
		Calculator:           calculator,
		Poster:               poster,
		Orders:               orders,
		Gateway:              gateway,
		Clock:                manual,
		CommissionPercentage: dec("10"),
	})

	return &orchestratorEnv{
		orchestrator: orchestrator,
		allocator:    allocator,
		clock:        manual,
		types:        types,
		tickets:      tickets,
		resale:       resale,
		rates:        rates,
		ledger:       ledgerRepo,
		orders:       orders,
		gateway:      gateway,
	}
}

func (env *orchestratorEnv) seedTicketType(quotaTotal int64) {
	env.types.Seed(model.TicketType{
		ID:          "tt-1",
		EventID:     "event-1",
		OrganizerID: "org-1",
		TenantID:    "tenant-1",
		Name:        "General Admission",
		Price:       dec("50"),
		Currency:    "RON",
		QuotaTotal:  &quotaTotal,
		Status:      model.TicketTypeActive,
	})
}

func (env *orchestratorEnv) seedTaxes() {
	// VAT is added on top of the price and charged to the customer.
	env.rates.SeedTax(model.Tax{
		ID:             "vat",
		TenantID:       "tenant-1",
		Name:           "VAT",
		Kind:           model.TaxGeneral,
		Value:          dec("19"),
		RateType:       model.RatePercent,
		Priority:       1,
		AppliedToBase:  model.BaseTicketPrice,
		IsAddedToPrice: true,
		IsActive:       true,
	})
	// The culture levy comes out of the organizer's proceeds.
	env.rates.SeedTax(model.Tax{
		ID:            "levy",
		TenantID:      "tenant-1",
		Name:          "Culture Levy",
		Kind:          model.TaxGeneral,
		Value:         dec("2"),
		RateType:      model.RatePercent,
		Priority:      2,
		AppliedToBase: model.BaseTicketPrice,
		IsActive:      true,
	})
}

func reservation() ReservationRequest {
	return ReservationRequest{
		CustomerID:  "cust-1",
		OrganizerID: "org-1",
		TenantID:    "tenant-1",
		EventID:     "event-1",
		Currency:    "RON",
		Lines:       []LineRequest{{TicketTypeID: "tt-1", Quantity: 2}},
	}
}

func TestReserveAndConfirm(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)
	env.seedTaxes()

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)
	assert.Equal(t, model.OrderWaitingForPayment, order.Status)
	assert.True(t, order.Subtotal.Equal(dec("100")))

	quota, _ := env.orchestrator.AvailableQuota(ctx, "tt-1")
	assert.Equal(t, int64(98), quota)

	paid, tickets, breakdown, err := env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, paid.Status)
	assert.True(t, paid.TaxTotal.Equal(dec("19")), "only added-to-price taxes reach the customer")
	assert.True(t, paid.Total.Equal(dec("119")))
	assert.Len(t, tickets, 2)
	assert.True(t, breakdown.TotalTax.Equal(dec("21")))

	require.Len(t, env.gateway.calls, 1)
	assert.True(t, env.gateway.calls[0].Amount.Equal(dec("119")))

	// One atomic batch: sale, commission, then the organizer-borne levy.
	rows, _ := env.ledger.TransactionsByOrganizer(ctx, "org-1")
	require.Len(t, rows, 3)
	assert.Equal(t, model.TxSale, rows[0].Type)
	assert.Equal(t, model.TxCommission, rows[1].Type)
	assert.Equal(t, model.TxAdjustment, rows[2].Type)
	assert.True(t, rows[2].BalanceAfter.Equal(dec("88")))

	records, err := env.orchestrator.TaxRecords(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	balance, _ := env.orchestrator.OrganizerBalance(ctx, "org-1")
	assert.True(t, balance.Equal(dec("88")))
}

func TestReserveRollsBackOnPartialFailure(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(5)

	req := reservation()
	req.Lines = []LineRequest{
		{TicketTypeID: "tt-1", Quantity: 3},
		{TicketTypeID: "tt-1", Quantity: 4},
	}
	_, err := env.orchestrator.ReserveTickets(ctx, req)
	assert.ErrorIs(t, err, inventory.ErrSoldOut)

	// The first line's hold must not leak.
	quota, _ := env.orchestrator.AvailableQuota(ctx, "tt-1")
	assert.Equal(t, int64(5), quota)
}

func TestDeclinedPaymentLeavesNoTrace(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)
	env.seedTaxes()
	env.gateway.approve = false
	env.gateway.reason = "insufficient funds"

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)

	_, _, _, err = env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	quota, _ := env.orchestrator.AvailableQuota(ctx, "tt-1")
	assert.Equal(t, int64(100), quota, "declined payment releases the holds")

	rows, _ := env.ledger.TransactionsByOrganizer(ctx, "org-1")
	assert.Empty(t, rows)

	// Taxes were priced but never settled, so no audit rows may remain.
	records, err := env.orchestrator.TaxRecords(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	cancelled, _ := env.orchestrator.Order(ctx, order.ID)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
}

func TestTaxConfigurationErrorAbortsBeforeCharge(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)

	order1 := 1
	env.rates.SeedTax(model.Tax{
		ID:            "broken-a",
		TenantID:      "tenant-1",
		Kind:          model.TaxGeneral,
		Value:         dec("5"),
		RateType:      model.RatePercent,
		IsCompound:    true,
		CompoundOrder: &order1,
		AppliedToBase: model.BaseTicketPrice,
		IsActive:      true,
	})
	env.rates.SeedTax(model.Tax{
		ID:            "broken-b",
		TenantID:      "tenant-1",
		Kind:          model.TaxGeneral,
		Value:         dec("3"),
		RateType:      model.RatePercent,
		IsCompound:    true,
		CompoundOrder: &order1,
		AppliedToBase: model.BaseTicketPrice,
		IsActive:      true,
	})

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)

	_, _, _, err = env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	assert.ErrorIs(t, err, tax.ErrConfiguration)

	assert.Empty(t, env.gateway.calls, "misconfigured taxes must not reach the gateway")
	rows, _ := env.ledger.TransactionsByOrganizer(ctx, "org-1")
	assert.Empty(t, rows)

	quota, _ := env.orchestrator.AvailableQuota(ctx, "tt-1")
	assert.Equal(t, int64(100), quota)
}

func TestConfirmRequiresPayableOrder(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)

	_, _, _, err = env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	require.NoError(t, err)

	_, _, _, err = env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	assert.ErrorIs(t, err, ErrOrderState)
}

func TestExpiredHoldCompensatesPostedSale(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)

	// The sale posts before the hold converts; an expired hold then forces a
	// compensating refund rather than an edit of posted rows.
	env.clock.Advance(time.Hour)

	_, _, _, err = env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	assert.ErrorIs(t, err, inventory.ErrHoldExpired)

	balance, err := env.orchestrator.OrganizerBalance(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "refund batch nets the posted sale to zero")

	rows, _ := env.ledger.TransactionsByOrganizer(ctx, "org-1")
	assert.Len(t, rows, 4)

	expired, _ := env.orchestrator.Order(ctx, order.ID)
	assert.Equal(t, model.OrderExpired, expired.Status)
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)
	_, tickets, _, err := env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	require.NoError(t, err)

	cancelled, err := env.orchestrator.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)

	// Sale 100, commission -10, refund -100, commission returned +10.
	balance, _ := env.orchestrator.OrganizerBalance(ctx, "org-1")
	assert.True(t, balance.IsZero())

	for _, ticket := range tickets {
		got, _ := env.tickets.Find(ctx, ticket.ID)
		assert.Equal(t, model.TicketCancelled, got.Status)
	}

	quota, _ := env.orchestrator.AvailableQuota(ctx, "tt-1")
	assert.Equal(t, int64(100), quota)
}

func TestCancelPaidOrderRefundsOrganizerTaxes(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)
	env.seedTaxes()

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)
	_, _, _, err = env.orchestrator.ConfirmOrder(ctx, order.ID, "tok-1")
	require.NoError(t, err)

	// Sale 100, commission -10, levy -2.
	balance, _ := env.orchestrator.OrganizerBalance(ctx, "org-1")
	require.True(t, balance.Equal(dec("88")))

	_, err = env.orchestrator.CancelOrder(ctx, order.ID)
	require.NoError(t, err)

	// The refund returns the commission and the organizer-borne levy too.
	balance, _ = env.orchestrator.OrganizerBalance(ctx, "org-1")
	assert.True(t, balance.IsZero(), "got %s", balance)

	rows, _ := env.ledger.TransactionsByOrganizer(ctx, "org-1")
	assert.Len(t, rows, 6)
}

func TestCancelPendingOrderReleasesHolds(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)

	order, err := env.orchestrator.ReserveTickets(ctx, reservation())
	require.NoError(t, err)

	cancelled, err := env.orchestrator.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)

	quota, _ := env.orchestrator.AvailableQuota(ctx, "tt-1")
	assert.Equal(t, int64(100), quota)

	rows, _ := env.ledger.TransactionsByOrganizer(ctx, "org-1")
	assert.Empty(t, rows)
}

func TestSettleResalePostsSellerProceeds(t *testing.T) {
	env := newOrchestratorEnv()
	ctx := context.Background()
	env.seedTicketType(100)

	tt, _ := env.types.Find(ctx, "tt-1")
	eventStart := t0.Add(30 * 24 * time.Hour)
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
	env.tickets.Seed(model.Ticket{
		ID:           "tk-1",
		Code:         "code-1",
		TicketTypeID: "tt-1",
		OwnerID:      "seller-1",
		Status:       model.TicketValid,
		IssuedAt:     t0.Add(-72 * time.Hour),
	})

	listing, err := env.allocator.ListResale(ctx, "tk-1", dec("60"))
	require.NoError(t, err)

	rt, err := env.orchestrator.SettleResale(ctx, listing.ID, "buyer-1")
	require.NoError(t, err)
	assert.True(t, rt.SellerPayout.Equal(dec("57")))

	rows, _ := env.ledger.TransactionsByOrganizer(ctx, "seller-1")
	require.Len(t, rows, 2)
	assert.Equal(t, model.TxSale, rows[0].Type)
	assert.Equal(t, model.TxCommission, rows[1].Type)
	assert.True(t, rows[1].BalanceAfter.Equal(dec("57")))
}
