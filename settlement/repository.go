package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ticketmarket-settlement-backend/model"
)

var (
	ErrNotFound        = errors.New("no record found")
	ErrPaymentDeclined = errors.New("payment declined")
	ErrOrderState      = errors.New("order not in expected state")
)

type OrderRepository interface {
	Save(ctx context.Context, order model.Order) error
	Find(ctx context.Context, id string) (model.Order, error)
	Update(ctx context.Context, order model.Order) error
}

// MemoryOrders is an in-memory OrderRepository used by tests and local runs.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]model.Order
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[string]model.Order)}
}

func (r *MemoryOrders) Save(ctx context.Context, order model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *MemoryOrders) Find(ctx context.Context, id string) (model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("find: order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

func (r *MemoryOrders) Update(ctx context.Context, order model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return fmt.Errorf("update: order %s: %w", order.ID, ErrNotFound)
	}
	r.orders[order.ID] = order
	return nil
}
