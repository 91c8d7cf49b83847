package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// Memory is an in-memory Repository used by tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	txs     []model.MarketplaceTransaction
	payouts map[string]model.MarketplacePayout
}

func NewMemory() *Memory {
	return &Memory{payouts: make(map[string]model.MarketplacePayout)}
}

// SeedTransaction bypasses the poster; tests use it to plant corrupt rows.
func (m *Memory) SeedTransaction(tx model.MarketplaceTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, tx)
}

func (m *Memory) AppendBatch(ctx context.Context, txs []model.MarketplaceTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, txs...)
	return nil
}

func (m *Memory) TransactionsByOrganizer(ctx context.Context, organizerID string) ([]model.MarketplaceTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.MarketplaceTransaction
	for _, tx := range m.txs {
		if tx.OrganizerID == organizerID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) BalanceAsOf(ctx context.Context, organizerID string, cutoff time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, tx := range m.txs {
		if tx.OrganizerID == organizerID && !tx.CreatedAt.After(cutoff) {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

func (m *Memory) SumByType(ctx context.Context, organizerID string, txType model.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, tx := range m.txs {
		if tx.OrganizerID != organizerID || tx.Type != txType {
			continue
		}
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		sum = sum.Add(tx.Amount)
	}
	return sum, nil
}

func (m *Memory) OutstandingPayoutTotal(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, p := range m.payouts {
		if p.OrganizerID != organizerID {
			continue
		}
		switch p.Status {
		case model.PayoutPending, model.PayoutApproved, model.PayoutProcessing:
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (m *Memory) SavePayout(ctx context.Context, p model.MarketplacePayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payouts[p.ID] = p
	return nil
}

func (m *Memory) FindPayout(ctx context.Context, id string) (model.MarketplacePayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payouts[id]
	if !ok {
		return model.MarketplacePayout{}, fmt.Errorf("findPayout: payout %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) UpdatePayout(ctx context.Context, p model.MarketplacePayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payouts[p.ID]; !ok {
		return fmt.Errorf("updatePayout: payout %s: %w", p.ID, ErrNotFound)
	}
	m.payouts[p.ID] = p
	return nil
}
