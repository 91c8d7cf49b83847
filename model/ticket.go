package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketTypeStatus string

const (
	TicketTypeActive   TicketTypeStatus = "active"
	TicketTypeHidden   TicketTypeStatus = "hidden"
	TicketTypeDisabled TicketTypeStatus = "disabled"
	TicketTypeSoldOut  TicketTypeStatus = "sold_out"
)

// TicketType owns the quota counters for one admission class of an event.
// QuotaSold and QuotaReserved are mutated only through the inventory
// allocator; QuotaTotal nil means unlimited.
type TicketType struct {
	ID                           string           `json:"id"`
	EventID                      string           `json:"event_id"`
	EventTypeID                  *string          `json:"event_type_id,omitempty"`
	OrganizerID                  string           `json:"organizer_id"`
	TenantID                     string           `json:"tenant_id"`
	Name                         string           `json:"name"`
	Price                        decimal.Decimal  `json:"price"`
	Currency                     string           `json:"currency"`
	QuotaTotal                   *int64           `json:"quota_total,omitempty"`
	QuotaSold                    int64            `json:"quota_sold"`
	QuotaReserved                int64            `json:"quota_reserved"`
	Status                       TicketTypeStatus `json:"status"`
	SalesStart                   *time.Time       `json:"sales_start,omitempty"`
	SalesEnd                     *time.Time       `json:"sales_end,omitempty"`
	ScheduledAt                  *time.Time       `json:"scheduled_at,omitempty"`
	AutostartWhenPreviousSoldOut bool             `json:"autostart_when_previous_sold_out"`
	PreviousTicketTypeID         *string          `json:"previous_ticket_type_id,omitempty"`
	EventStartsAt                *time.Time       `json:"event_starts_at,omitempty"`
}

// Available returns how many tickets can still be reserved, or -1 for
// unlimited quota.
func (t TicketType) Available() int64 {
	if t.QuotaTotal == nil {
		return -1
	}
	return *t.QuotaTotal - t.QuotaSold - t.QuotaReserved
}

type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldConfirmed HoldStatus = "confirmed"
	HoldReleased  HoldStatus = "released"
	HoldExpired   HoldStatus = "expired"
)

// ReservationHold is a time-boxed, non-final reservation of inventory. It is
// either converted into tickets on payment success or released back to the
// available pool.
type ReservationHold struct {
	ID              string     `json:"id"`
	TicketTypeID    string     `json:"ticket_type_id"`
	Quantity        int64      `json:"quantity"`
	OrderDraftID    string     `json:"order_draft_id"`
	WaitlistEntryID *string    `json:"waitlist_entry_id,omitempty"`
	Status          HoldStatus `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketVoid      TicketStatus = "void"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket is one issued admission unit.
type Ticket struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	TicketTypeID  string       `json:"ticket_type_id"`
	OrderID       *string      `json:"order_id,omitempty"`
	PerformanceID *string      `json:"performance_id,omitempty"`
	OwnerID       string       `json:"owner_id"`
	Status        TicketStatus `json:"status"`
	IssuedAt      time.Time    `json:"issued_at"`
}
