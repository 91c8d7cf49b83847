package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request envelopes for the HTTP layer. Payloads ride under "data" to match
// the response shape.

type ReserveTicketsRequest struct {
	Data *ReserveTicketsData `json:"data"`
}

type ReserveTicketsData struct {
	CustomerID  string               `json:"customer_id"`
	OrganizerID string               `json:"organizer_id"`
	TenantID    string               `json:"tenant_id"`
	EventID     string               `json:"event_id"`
	Currency    string               `json:"currency"`
	Lines       []ReserveTicketsLine `json:"lines"`
}

type ReserveTicketsLine struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int64  `json:"quantity"`
}

type ConfirmOrderRequest struct {
	Data *ConfirmOrderData `json:"data"`
}

type ConfirmOrderData struct {
	OrderID      string `json:"order_id"`
	PaymentToken string `json:"payment_token"`
}

type CancelOrderRequest struct {
	Data *CancelOrderData `json:"data"`
}

type CancelOrderData struct {
	OrderID string `json:"order_id"`
}

type RequestPayoutRequest struct {
	Data *RequestPayoutData `json:"data"`
}

type RequestPayoutData struct {
	OrganizerID string    `json:"organizer_id"`
	Currency    string    `json:"currency"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type ListResaleRequest struct {
	Data *ListResaleData `json:"data"`
}

type ListResaleData struct {
	TicketID    string          `json:"ticket_id"`
	AskingPrice decimal.Decimal `json:"asking_price"`
}

type SettleResaleRequest struct {
	Data *SettleResaleData `json:"data"`
}

type SettleResaleData struct {
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id"`
}

type SplitGroupPaymentRequest struct {
	Data *SplitGroupPaymentData `json:"data"`
}

type SplitGroupPaymentData struct {
	BookingID string                   `json:"booking_id"`
	Mode      string                   `json:"mode"`
	Shares    []SplitGroupPaymentShare `json:"shares,omitempty"`
}

type SplitGroupPaymentShare struct {
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type MemberPaymentRequest struct {
	Data *MemberPaymentData `json:"data"`
}

type MemberPaymentData struct {
	BookingID string          `json:"booking_id"`
	MemberID  string          `json:"member_id"`
	Amount    decimal.Decimal `json:"amount"`
}
