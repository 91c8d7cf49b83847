package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type GroupBookingStatus string

const (
	GroupBookingPending       GroupBookingStatus = "pending"
	GroupBookingPartiallyPaid GroupBookingStatus = "partially_paid"
	GroupBookingPaid          GroupBookingStatus = "paid"
	GroupBookingCancelled     GroupBookingStatus = "cancelled"
)

type MemberPaymentStatus string

const (
	MemberPaymentPending MemberPaymentStatus = "pending"
	MemberPaymentPaid    MemberPaymentStatus = "paid"
)

// GroupBooking is an umbrella order whose total is split across members.
// The booking is paid only once every member has paid their share.
type GroupBooking struct {
	ID           string               `json:"id"`
	EventID      string               `json:"event_id"`
	TicketTypeID string               `json:"ticket_type_id"`
	OrganizerID  string               `json:"organizer_id"`
	TotalAmount  decimal.Decimal      `json:"total_amount"`
	Currency     string               `json:"currency"`
	Status       GroupBookingStatus   `json:"status"`
	Deadline     *time.Time           `json:"deadline,omitempty"`
	Members      []GroupBookingMember `json:"members"`
	CreatedAt    time.Time            `json:"created_at"`
}

type GroupBookingMember struct {
	ID            string              `json:"id"`
	BookingID     string              `json:"booking_id"`
	CustomerID    string              `json:"customer_id"`
	AmountDue     decimal.Decimal     `json:"amount_due"`
	AmountPaid    decimal.Decimal     `json:"amount_paid"`
	PaymentStatus MemberPaymentStatus `json:"payment_status"`
}
