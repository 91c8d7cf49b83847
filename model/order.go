package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderDraft             OrderStatus = "DRAFT"
	OrderWaitingForPayment OrderStatus = "WAITING_FOR_PAYMENT"
	OrderPaid              OrderStatus = "PAID"
	OrderCancelled         OrderStatus = "CANCELLED"
	OrderExpired           OrderStatus = "EXPIRED"
)

// Order is the checkout unit the settlement engine operates on. Lines are
// backed by reservation holds until payment succeeds.
type Order struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	OrganizerID string          `json:"organizer_id"`
	TenantID    string          `json:"tenant_id"`
	EventID     string          `json:"event_id"`
	Currency    string          `json:"currency"`
	Lines       []OrderLine     `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxTotal    decimal.Decimal `json:"tax_total"`
	Total       decimal.Decimal `json:"total"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type OrderLine struct {
	TicketTypeID string          `json:"ticket_type_id"`
	HoldID       string          `json:"hold_id"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Amount       decimal.Decimal `json:"amount"`
}
