package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaxKind string

const (
	TaxGeneral TaxKind = "general"
	TaxLocal   TaxKind = "local"
)

type RateType string

const (
	RatePercent RateType = "percent"
	RateFixed   RateType = "fixed"
)

type AppliedToBase string

const (
	BaseGrossWithVAT AppliedToBase = "gross_with_vat"
	BaseGrossExclVAT AppliedToBase = "gross_excl_vat"
	BaseTicketPrice  AppliedToBase = "ticket_price"
	BaseNetRevenue   AppliedToBase = "net_revenue"
)

// TieredRate is one cumulative-revenue bracket. Max nil means open-ended.
type TieredRate struct {
	Min  decimal.Decimal  `json:"min"`
	Max  *decimal.Decimal `json:"max,omitempty"`
	Rate decimal.Decimal  `json:"rate"`
}

// Tax is a general or local tax definition. Local taxes carry a location;
// fixed taxes carry a currency and are skipped for orders in another one.
type Tax struct {
	ID                  string           `json:"id"`
	TenantID            string           `json:"tenant_id"`
	Name                string           `json:"name"`
	Kind                TaxKind          `json:"kind"`
	Value               decimal.Decimal  `json:"value"`
	RateType            RateType         `json:"rate_type"`
	Currency            *string          `json:"currency,omitempty"`
	Priority            int              `json:"priority"`
	IsCompound          bool             `json:"is_compound"`
	CompoundOrder       *int             `json:"compound_order,omitempty"`
	AppliedToBase       AppliedToBase    `json:"applied_to_base"`
	IsAddedToPrice      bool             `json:"is_added_to_price"`
	EventTypeID         *string          `json:"event_type_id,omitempty"`
	Country             *string          `json:"country,omitempty"`
	County              *string          `json:"county,omitempty"`
	City                *string          `json:"city,omitempty"`
	HasTieredRates      bool             `json:"has_tiered_rates"`
	TieredRates         []TieredRate     `json:"tiered_rates,omitempty"`
	MinGuaranteedAmount *decimal.Decimal `json:"min_guaranteed_amount,omitempty"`
	MinRevenueThreshold *decimal.Decimal `json:"min_revenue_threshold,omitempty"`
	MaxRevenueThreshold *decimal.Decimal `json:"max_revenue_threshold,omitempty"`
	ValidFrom           *time.Time       `json:"valid_from,omitempty"`
	ValidUntil          *time.Time       `json:"valid_until,omitempty"`
	IsActive            bool             `json:"is_active"`
}

// ValidOn reports whether the tax validity window contains the given day.
func (t Tax) ValidOn(day time.Time) bool {
	if t.ValidFrom != nil && day.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidUntil != nil && day.After(*t.ValidUntil) {
		return false
	}
	return true
}

type ExemptionType string

const (
	ExemptCustomer   ExemptionType = "customer"
	ExemptTicketType ExemptionType = "ticket_type"
	ExemptEvent      ExemptionType = "event"
	ExemptProduct    ExemptionType = "product"
	ExemptCategory   ExemptionType = "category"
)

type ExemptionScope string

const (
	ExemptionScopeAll     ExemptionScope = "all"
	ExemptionScopeGeneral ExemptionScope = "general"
	ExemptionScopeLocal   ExemptionScope = "local"
)

// TaxExemption reduces a tax by ExemptionPercent for a scoped entity.
type TaxExemption struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	Name             string          `json:"name"`
	ExemptionType    ExemptionType   `json:"exemption_type"`
	ExemptableID     string          `json:"exemptable_id"`
	ExemptionPercent decimal.Decimal `json:"exemption_percent"`
	Scope            ExemptionScope  `json:"scope"`
	ValidFrom        *time.Time      `json:"valid_from,omitempty"`
	ValidUntil       *time.Time      `json:"valid_until,omitempty"`
	IsActive         bool            `json:"is_active"`
}

func (e TaxExemption) ValidOn(day time.Time) bool {
	if e.ValidFrom != nil && day.Before(*e.ValidFrom) {
		return false
	}
	if e.ValidUntil != nil && day.After(*e.ValidUntil) {
		return false
	}
	return true
}

// TaxCollectionRecord is the immutable audit row written for every tax
// considered against a taxable transaction, applied or skipped. Total
// collected tax for a period is reconstructable by summing these rows.
type TaxCollectionRecord struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	OrderID          string          `json:"order_id"`
	TaxID            string          `json:"tax_id"`
	TaxName          string          `json:"tax_name"`
	Kind             TaxKind         `json:"kind"`
	Rate             decimal.Decimal `json:"rate"`
	RateType         RateType        `json:"rate_type"`
	Base             decimal.Decimal `json:"base"`
	Amount           decimal.Decimal `json:"amount"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	IsAddedToPrice   bool            `json:"is_added_to_price"`
	ExemptionApplied *string         `json:"exemption_applied,omitempty"`
	Skipped          bool            `json:"skipped"`
	SkipReason       *string         `json:"skip_reason,omitempty"`
	Currency         string          `json:"currency"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TaxBreakdown is the deterministic result of pricing one order.
type TaxBreakdown struct {
	OrderID           string             `json:"order_id"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	TotalTax          decimal.Decimal    `json:"total_tax"`
	Total             decimal.Decimal    `json:"total"`
	Currency          string             `json:"currency"`
	Items             []TaxBreakdownItem `json:"items"`
	ExemptionsApplied bool               `json:"exemptions_applied"`

	// Records are the pending audit rows; Calculator.Commit persists them.
	Records []TaxCollectionRecord `json:"-"`
}

type TaxBreakdownItem struct {
	TaxID            string          `json:"tax_id"`
	Kind             TaxKind         `json:"kind"`
	Name             string          `json:"name"`
	Rate             decimal.Decimal `json:"rate"`
	RateType         RateType        `json:"rate_type"`
	Amount           decimal.Decimal `json:"amount"`
	Priority         int             `json:"priority"`
	IsCompound       bool            `json:"is_compound"`
	CompoundOrder    *int            `json:"compound_order,omitempty"`
	IsAddedToPrice   bool            `json:"is_added_to_price"`
	ExemptionApplied *string         `json:"exemption_applied,omitempty"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
}
