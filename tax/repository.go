package tax

import (
	"context"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// ExemptionContext identifies the entities an order touches, so scoped
// exemptions can be matched against it.
type ExemptionContext struct {
	CustomerID   *string
	TicketTypeID *string
	EventID      *string
	ProductID    *string
	CategoryID   *string
}

// RateRepository is the rate table: read-only tax configuration plus the
// cumulative-revenue counters that tiered rates and thresholds key on.
type RateRepository interface {
	// ApplicableGeneralTaxes returns active general taxes for the tenant
	// valid on day, scoped to the event type (nil event type on a tax means
	// it applies to all).
	ApplicableGeneralTaxes(ctx context.Context, tenantID string, eventTypeID *string, day time.Time) ([]model.Tax, error)
	// ApplicableLocalTaxes narrows by location; county and city are optional
	// refinements.
	ApplicableLocalTaxes(ctx context.Context, tenantID, country string, county, city, eventTypeID *string, day time.Time) ([]model.Tax, error)
	// ApplicableExemptions returns active exemptions matching any entity in
	// the context.
	ApplicableExemptions(ctx context.Context, tenantID string, ec ExemptionContext, day time.Time) ([]model.TaxExemption, error)
	// CumulativeRevenue is the year-to-date taxable revenue recorded for the
	// tax and tenant.
	CumulativeRevenue(ctx context.Context, tenantID, taxID string) (decimal.Decimal, error)
	// AddRevenue bumps the cumulative counter after a successful settlement.
	AddRevenue(ctx context.Context, tenantID, taxID string, amount decimal.Decimal) error
}

// AuditRepository stores the append-only evidence trail. Records are never
// updated or deleted.
type AuditRepository interface {
	AppendRecords(ctx context.Context, records []model.TaxCollectionRecord) error
	RecordsByOrder(ctx context.Context, orderID string) ([]model.TaxCollectionRecord, error)
}
