package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticketmarket-settlement-backend/clock"
	"ticketmarket-settlement-backend/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type posterEnv struct {
	poster *Poster
	repo   *Memory
	clock  *clock.Manual
}

func newPosterEnv() *posterEnv {
	repo := NewMemory()
	manual := clock.NewManual(t0)
	poster := NewPoster(PosterProperty{
		Repo:          repo,
		Clock:         manual,
		MinimumPayout: dec("50"),
		SettlementLag: 48 * time.Hour,
	})
	return &posterEnv{poster: poster, repo: repo, clock: manual}
}

func TestPostMaintainsBalanceContinuity(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	first, err := env.poster.Post(ctx, "org-1", "RON", []Entry{
		{Type: model.TxSale, Amount: dec("100")},
		{Type: model.TxCommission, Amount: dec("-10")},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, first[0].BalanceAfter.Equal(dec("100")))
	assert.True(t, first[1].BalanceAfter.Equal(dec("90")))

	second, err := env.poster.Post(ctx, "org-1", "RON", []Entry{
		{Type: model.TxRefund, Amount: dec("-40")},
	})
	require.NoError(t, err)
	assert.True(t, second[0].BalanceAfter.Equal(dec("50")))

	balance, err := env.poster.Balance(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("50")))
}

func TestPostOrdersBatchDeterministically(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	rows, err := env.poster.Post(ctx, "org-1", "RON", []Entry{
		{Type: model.TxAdjustment, Amount: dec("-5")},
		{Type: model.TxCommission, Amount: dec("-10")},
		{Type: model.TxSale, Amount: dec("100")},
	})
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, model.TxSale, rows[0].Type)
	assert.Equal(t, model.TxCommission, rows[1].Type)
	assert.Equal(t, model.TxAdjustment, rows[2].Type)
	assert.True(t, rows[0].BalanceAfter.Equal(dec("100")))
	assert.True(t, rows[1].BalanceAfter.Equal(dec("90")))
	assert.True(t, rows[2].BalanceAfter.Equal(dec("85")))
}

func TestPostRejectsEmptyBatch(t *testing.T) {
	env := newPosterEnv()
	_, err := env.poster.Post(context.Background(), "org-1", "RON", nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestPostRejectsForeignCurrencyBatch(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("100")}})
	require.NoError(t, err)

	// The account is denominated in RON; a USD batch must not mix in.
	_, err = env.poster.Post(ctx, "org-1", "USD", []Entry{{Type: model.TxSale, Amount: dec("10")}})
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	rows, _ := env.repo.TransactionsByOrganizer(ctx, "org-1")
	assert.Len(t, rows, 1)
}

func TestCorruptRowHaltsOrganizer(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	env.repo.SeedTransaction(model.MarketplaceTransaction{
		ID:           uuid.NewString(),
		OrganizerID:  "org-1",
		Type:         model.TxSale,
		Amount:       dec("100"),
		Currency:     "RON",
		BalanceAfter: dec("100"),
		CreatedAt:    t0,
	})
	// A tampered row: amount 50 on top of 100 must read 150, not 140.
	env.repo.SeedTransaction(model.MarketplaceTransaction{
		ID:           uuid.NewString(),
		OrganizerID:  "org-1",
		Type:         model.TxSale,
		Amount:       dec("50"),
		Currency:     "RON",
		BalanceAfter: dec("140"),
		CreatedAt:    t0,
	})

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("10")}})
	assert.ErrorIs(t, err, ErrLedgerInconsistent)

	// The organizer stays halted until operator intervention.
	_, err = env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("10")}})
	assert.ErrorIs(t, err, ErrOrganizerHalted)

	_, err = env.poster.RequestPayout(ctx, "org-1", "RON", t0, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrOrganizerHalted)

	// Other organizers are unaffected.
	_, err = env.poster.Post(ctx, "org-2", "RON", []Entry{{Type: model.TxSale, Amount: dec("10")}})
	assert.NoError(t, err)
}

func TestConcurrentPostsKeepContinuity(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("10")}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := env.repo.TransactionsByOrganizer(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, rows, 50)

	running := decimal.Zero
	for _, row := range rows {
		running = running.Add(row.Amount)
		assert.True(t, row.BalanceAfter.Equal(running), "row %s broke continuity", row.ID)
	}

	balance, err := env.poster.Balance(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("500")))
}

func TestAvailableBalanceRespectsSettlementLag(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("100")}})
	require.NoError(t, err)

	available, err := env.poster.AvailableBalance(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, available.IsZero(), "fresh revenue is not withdrawable")

	env.clock.Advance(24 * time.Hour)
	available, _ = env.poster.AvailableBalance(ctx, "org-1")
	assert.True(t, available.IsZero())

	env.clock.Advance(25 * time.Hour)
	available, _ = env.poster.AvailableBalance(ctx, "org-1")
	assert.True(t, available.Equal(dec("100")))
}

func TestRequestPayoutBelowMinimum(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("30")}})
	require.NoError(t, err)
	env.clock.Advance(72 * time.Hour)

	_, err = env.poster.RequestPayout(ctx, "org-1", "RON", t0, env.clock.Now())
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestPayoutLifecycle(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{
		{Type: model.TxSale, Amount: dec("100")},
		{Type: model.TxCommission, Amount: dec("-10")},
	})
	require.NoError(t, err)
	env.clock.Advance(72 * time.Hour)

	payout, err := env.poster.RequestPayout(ctx, "org-1", "RON", t0, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPending, payout.Status)
	assert.True(t, payout.Amount.Equal(dec("90")))
	assert.True(t, payout.GrossAmount.Equal(dec("100")))
	assert.True(t, payout.CommissionAmount.Equal(dec("10")))

	// The pending payout reserves the balance.
	available, _ := env.poster.AvailableBalance(ctx, "org-1")
	assert.True(t, available.IsZero())

	_, err = env.poster.RequestPayout(ctx, "org-1", "RON", t0, env.clock.Now())
	assert.ErrorIs(t, err, ErrBelowMinimum)

	payout, err = env.poster.ApprovePayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutApproved, payout.Status)

	payout, err = env.poster.ProcessPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutProcessing, payout.Status)

	payout, err = env.poster.CompletePayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutCompleted, payout.Status)

	balance, err := env.poster.Balance(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "completion debits the full payout amount")

	rows, _ := env.repo.TransactionsByOrganizer(ctx, "org-1")
	last := rows[len(rows)-1]
	assert.Equal(t, model.TxPayout, last.Type)
	require.NotNil(t, last.PayoutID)
	assert.Equal(t, payout.ID, *last.PayoutID)
}

func TestFailPayoutRestoresBalance(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("100")}})
	require.NoError(t, err)
	env.clock.Advance(72 * time.Hour)

	payout, err := env.poster.RequestPayout(ctx, "org-1", "RON", t0, env.clock.Now())
	require.NoError(t, err)
	_, err = env.poster.ApprovePayout(ctx, payout.ID)
	require.NoError(t, err)
	_, err = env.poster.CompletePayout(ctx, payout.ID)
	require.NoError(t, err)

	payout, err = env.poster.FailPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutFailed, payout.Status)

	// The debit row stays; a reversal credit restores the balance.
	balance, _ := env.poster.Balance(ctx, "org-1")
	assert.True(t, balance.Equal(dec("100")))

	rows, _ := env.repo.TransactionsByOrganizer(ctx, "org-1")
	last := rows[len(rows)-1]
	assert.Equal(t, model.TxPayoutReversal, last.Type)
}

func TestFailPayoutBeforeCompletionSkipsReversal(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("100")}})
	require.NoError(t, err)
	env.clock.Advance(72 * time.Hour)

	payout, err := env.poster.RequestPayout(ctx, "org-1", "RON", t0, env.clock.Now())
	require.NoError(t, err)
	_, err = env.poster.ApprovePayout(ctx, payout.ID)
	require.NoError(t, err)
	_, err = env.poster.ProcessPayout(ctx, payout.ID)
	require.NoError(t, err)

	payout, err = env.poster.FailPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutFailed, payout.Status)

	// No debit was ever posted, so nothing to reverse.
	rows, _ := env.repo.TransactionsByOrganizer(ctx, "org-1")
	assert.Len(t, rows, 1)
}

func TestPayoutInvalidTransitions(t *testing.T) {
	env := newPosterEnv()
	ctx := context.Background()

	_, err := env.poster.Post(ctx, "org-1", "RON", []Entry{{Type: model.TxSale, Amount: dec("100")}})
	require.NoError(t, err)
	env.clock.Advance(72 * time.Hour)

	payout, err := env.poster.RequestPayout(ctx, "org-1", "RON", t0, env.clock.Now())
	require.NoError(t, err)

	// Completion requires approval first.
	_, err = env.poster.CompletePayout(ctx, payout.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.poster.ProcessPayout(ctx, payout.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.poster.ApprovePayout(ctx, payout.ID)
	require.NoError(t, err)

	_, err = env.poster.ApprovePayout(ctx, payout.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Cancellation is a customer action and only works before approval.
	_, err = env.poster.CancelPayout(ctx, payout.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Rejection still works after approval.
	payout, err = env.poster.RejectPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRejected, payout.Status)

	_, err = env.poster.FailPayout(ctx, payout.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPayoutNotFound(t *testing.T) {
	env := newPosterEnv()
	_, err := env.poster.ApprovePayout(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
