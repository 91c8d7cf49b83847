package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResalePolicy caps the secondary market for an event's tickets.
type ResalePolicy struct {
	ID                    string          `json:"id"`
	TenantID              string          `json:"tenant_id"`
	MaxMarkupPercentage   decimal.Decimal `json:"max_markup_percentage"`
	PlatformFeePercentage decimal.Decimal `json:"platform_fee_percentage"`
	MinHoursBeforeEvent   int             `json:"min_hours_before_event"`
	MinHoursBeforeResale  int             `json:"min_hours_before_resale"`
}

// MaxAllowedPrice returns the resale cap for a ticket originally sold at
// originalPrice, e.g. a 120% markup policy allows original * 1.20.
func (p ResalePolicy) MaxAllowedPrice(originalPrice decimal.Decimal) decimal.Decimal {
	return originalPrice.Mul(p.MaxMarkupPercentage).Div(decimal.NewFromInt(100))
}

type ResaleListingStatus string

const (
	ResaleListingActive    ResaleListingStatus = "active"
	ResaleListingSold      ResaleListingStatus = "sold"
	ResaleListingCancelled ResaleListingStatus = "cancelled"
	ResaleListingExpired   ResaleListingStatus = "expired"
)

// ResaleListing offers a valid ticket back to the market.
type ResaleListing struct {
	ID          string              `json:"id"`
	TicketID    string              `json:"ticket_id"`
	SellerID    string              `json:"seller_id"`
	AskingPrice decimal.Decimal     `json:"asking_price"`
	Currency    string              `json:"currency"`
	Status      ResaleListingStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
}

// ResaleTransaction records a completed resale: ownership moved, fee taken.
type ResaleTransaction struct {
	ID           string          `json:"id"`
	ListingID    string          `json:"listing_id"`
	TicketID     string          `json:"ticket_id"`
	SellerID     string          `json:"seller_id"`
	BuyerID      string          `json:"buyer_id"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	SellerPayout decimal.Decimal `json:"seller_payout"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
}
