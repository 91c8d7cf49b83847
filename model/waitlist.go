package model

import "time"

type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistNotified  WaitlistStatus = "notified"
	WaitlistPurchased WaitlistStatus = "purchased"
	WaitlistExpired   WaitlistStatus = "expired"
	WaitlistCancelled WaitlistStatus = "cancelled"
)

// WaitlistEntry queues a customer for quota that may free up later. Promotion
// order is (priority desc, created_at asc).
type WaitlistEntry struct {
	ID           string         `json:"id"`
	EventID      string         `json:"event_id"`
	TicketTypeID *string        `json:"ticket_type_id,omitempty"`
	CustomerID   string         `json:"customer_id"`
	Quantity     int64          `json:"quantity"`
	Priority     int            `json:"priority"`
	Status       WaitlistStatus `json:"status"`
	HoldID       *string        `json:"hold_id,omitempty"`
	NotifiedAt   *time.Time     `json:"notified_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
