package tax

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input describes one taxable order. Bases optionally overrides the amount a
// given applied_to_base resolves to; any base left unset falls back to
// Subtotal. Which bases net out which other taxes is a per-tenant
// configuration contract, so the engine takes them as data instead of
// guessing.
type Input struct {
	TenantID          string
	OrderID           string
	Subtotal          decimal.Decimal
	Currency          string
	EventTypeID       *string
	Country           *string
	County            *string
	City              *string
	Date              time.Time
	Bases             map[model.AppliedToBase]decimal.Decimal
	Exemption         ExemptionContext
	RequireGeneralTax bool
}

// Calculator prices the tax side of an order. It is a pure function of its
// input plus the read-only rate table; the only writes are audit records.
type Calculator struct {
	rates RateRepository
	audit AuditRepository
}

func NewCalculator(rates RateRepository, audit AuditRepository) *Calculator {
	return &Calculator{rates: rates, audit: audit}
}

// Compute resolves applicable taxes, applies non-compound taxes against
// their stated base ordered by priority, then compound taxes sequentially in
// compound_order. One audit record per tax considered rides along on the
// returned breakdown; nothing is persisted until Commit, so a checkout that
// never settles leaves no trace in the audit trail. Returns
// ErrUnresolvableJurisdiction or ErrConfiguration.
func (c *Calculator) Compute(ctx context.Context, in Input) (model.TaxBreakdown, error) {
	general, err := c.rates.ApplicableGeneralTaxes(ctx, in.TenantID, in.EventTypeID, in.Date)
	if err != nil {
		return model.TaxBreakdown{}, fmt.Errorf("compute: error resolving general taxes: %w", err)
	}

	var local []model.Tax
	if in.Country != nil {
		local, err = c.rates.ApplicableLocalTaxes(ctx, in.TenantID, *in.Country, in.County, in.City, in.EventTypeID, in.Date)
		if err != nil {
			return model.TaxBreakdown{}, fmt.Errorf("compute: error resolving local taxes: %w", err)
		}
	}

	if in.RequireGeneralTax && len(general) == 0 {
		return model.TaxBreakdown{}, fmt.Errorf("compute: tenant %s, no general tax configured: %w", in.TenantID, ErrUnresolvableJurisdiction)
	}

	all := append(append([]model.Tax{}, general...), local...)
	if err := validateCompoundOrders(all); err != nil {
		return model.TaxBreakdown{}, err
	}

	exemptions, err := c.rates.ApplicableExemptions(ctx, in.TenantID, in.Exemption, in.Date)
	if err != nil {
		return model.TaxBreakdown{}, fmt.Errorf("compute: error resolving exemptions: %w", err)
	}

	var nonCompound, compound []model.Tax
	for _, t := range all {
		if t.IsCompound {
			compound = append(compound, t)
		} else {
			nonCompound = append(nonCompound, t)
		}
	}
	sort.SliceStable(nonCompound, func(i, j int) bool { return nonCompound[i].Priority < nonCompound[j].Priority })
	sort.SliceStable(compound, func(i, j int) bool { return *compound[i].CompoundOrder < *compound[j].CompoundOrder })

	breakdown := model.TaxBreakdown{
		OrderID:  in.OrderID,
		Subtotal: in.Subtotal,
		Currency: in.Currency,
		TotalTax: decimal.Zero,
	}
	var records []model.TaxCollectionRecord

	// Non-compound taxes each see their own stated base, untouched by other
	// taxes' output.
	for _, t := range nonCompound {
		item, record, err := c.applyOne(ctx, in, t, c.resolveBase(in, t.AppliedToBase), exemptions)
		if err != nil {
			return model.TaxBreakdown{}, err
		}
		records = append(records, record)
		if record.Skipped {
			continue
		}
		breakdown.Items = append(breakdown.Items, item)
		breakdown.TotalTax = breakdown.TotalTax.Add(item.Amount)
	}

	// Compound taxes are strictly sequential: each base includes the output
	// of the compound taxes already applied in this pass.
	compoundSoFar := decimal.Zero
	for _, t := range compound {
		base := c.resolveBase(in, t.AppliedToBase).Add(compoundSoFar)
		item, record, err := c.applyOne(ctx, in, t, base, exemptions)
		if err != nil {
			return model.TaxBreakdown{}, err
		}
		records = append(records, record)
		if record.Skipped {
			continue
		}
		breakdown.Items = append(breakdown.Items, item)
		breakdown.TotalTax = breakdown.TotalTax.Add(item.Amount)
		compoundSoFar = compoundSoFar.Add(item.Amount)
	}

	breakdown.Total = breakdown.Subtotal.Add(breakdown.TotalTax)
	for _, item := range breakdown.Items {
		if item.ExemptionApplied != nil {
			breakdown.ExemptionsApplied = true
			break
		}
	}
	breakdown.Records = records

	return breakdown, nil
}

// Commit persists the breakdown's audit rows and advances the
// cumulative-revenue counters once the order has settled. Only taxes with
// tiers or thresholds track revenue.
func (c *Calculator) Commit(ctx context.Context, in Input, breakdown model.TaxBreakdown) error {
	if err := c.audit.AppendRecords(ctx, breakdown.Records); err != nil {
		return fmt.Errorf("commit: error writing audit records: %w", err)
	}
	for _, item := range breakdown.Items {
		t, ok := c.findTax(ctx, in, item.TaxID)
		if !ok {
			continue
		}
		if !t.HasTieredRates && t.MinRevenueThreshold == nil && t.MaxRevenueThreshold == nil {
			continue
		}
		if err := c.rates.AddRevenue(ctx, in.TenantID, t.ID, c.resolveBase(in, t.AppliedToBase)); err != nil {
			return fmt.Errorf("commit: error adding revenue for tax %s: %w", t.ID, err)
		}
	}
	return nil
}

// Records returns the audit rows written for an order.
func (c *Calculator) Records(ctx context.Context, orderID string) ([]model.TaxCollectionRecord, error) {
	return c.audit.RecordsByOrder(ctx, orderID)
}

func (c *Calculator) findTax(ctx context.Context, in Input, taxID string) (model.Tax, bool) {
	general, err := c.rates.ApplicableGeneralTaxes(ctx, in.TenantID, in.EventTypeID, in.Date)
	if err == nil {
		for _, t := range general {
			if t.ID == taxID {
				return t, true
			}
		}
	}
	if in.Country != nil {
		local, err := c.rates.ApplicableLocalTaxes(ctx, in.TenantID, *in.Country, in.County, in.City, in.EventTypeID, in.Date)
		if err == nil {
			for _, t := range local {
				if t.ID == taxID {
					return t, true
				}
			}
		}
	}
	return model.Tax{}, false
}

// applyOne computes a single tax against base and produces both the
// breakdown item and the mandatory audit record. A skipped tax still gets a
// record carrying the reason.
func (c *Calculator) applyOne(ctx context.Context, in Input, t model.Tax, base decimal.Decimal, exemptions []model.TaxExemption) (model.TaxBreakdownItem, model.TaxCollectionRecord, error) {
	record := model.TaxCollectionRecord{
		ID:             uuid.NewString(),
		TenantID:       in.TenantID,
		OrderID:        in.OrderID,
		TaxID:          t.ID,
		TaxName:        t.Name,
		Kind:           t.Kind,
		Rate:           t.Value,
		RateType:       t.RateType,
		Base:           base,
		IsAddedToPrice: t.IsAddedToPrice,
		Currency:       in.Currency,
		CreatedAt:      in.Date,
	}

	skip := func(reason string) (model.TaxBreakdownItem, model.TaxCollectionRecord, error) {
		record.Skipped = true
		record.SkipReason = &reason
		record.Amount = decimal.Zero
		record.OriginalAmount = decimal.Zero
		return model.TaxBreakdownItem{}, record, nil
	}

	// Fixed taxes in another currency never apply to this order.
	if t.RateType == model.RateFixed && t.Currency != nil && *t.Currency != in.Currency {
		return skip("currency mismatch")
	}

	if t.MinRevenueThreshold != nil || t.MaxRevenueThreshold != nil {
		cumulative, err := c.rates.CumulativeRevenue(ctx, in.TenantID, t.ID)
		if err != nil {
			return model.TaxBreakdownItem{}, model.TaxCollectionRecord{}, fmt.Errorf("applyOne: error loading cumulative revenue: %w", err)
		}
		if t.MinRevenueThreshold != nil && cumulative.LessThan(*t.MinRevenueThreshold) {
			return skip("below revenue threshold")
		}
		if t.MaxRevenueThreshold != nil && cumulative.GreaterThanOrEqual(*t.MaxRevenueThreshold) {
			return skip("above revenue threshold")
		}
	}

	var amount decimal.Decimal
	switch {
	case t.HasTieredRates:
		cumulative, err := c.rates.CumulativeRevenue(ctx, in.TenantID, t.ID)
		if err != nil {
			return model.TaxBreakdownItem{}, model.TaxCollectionRecord{}, fmt.Errorf("applyOne: error loading cumulative revenue: %w", err)
		}
		amount, err = tieredAmount(t, cumulative, base)
		if err != nil {
			return model.TaxBreakdownItem{}, model.TaxCollectionRecord{}, err
		}
	case t.RateType == model.RateFixed:
		amount = t.Value
	default:
		amount = base.Mul(t.Value).Div(hundred)
	}

	if t.MinGuaranteedAmount != nil && amount.LessThan(*t.MinGuaranteedAmount) {
		amount = *t.MinGuaranteedAmount
	}

	original := amount
	var exemptionName *string
	for _, e := range exemptions {
		if e.Scope != model.ExemptionScopeAll && string(e.Scope) != string(t.Kind) {
			continue
		}
		factor := decimal.NewFromInt(1).Sub(e.ExemptionPercent.Div(hundred))
		amount = amount.Mul(factor)
		name := e.Name
		exemptionName = &name
		break // first matching exemption wins
	}

	amount = amount.Round(2)

	record.Amount = amount
	record.OriginalAmount = original.Round(2)
	record.ExemptionApplied = exemptionName

	item := model.TaxBreakdownItem{
		TaxID:            t.ID,
		Kind:             t.Kind,
		Name:             t.Name,
		Rate:             t.Value,
		RateType:         t.RateType,
		Amount:           amount,
		Priority:         t.Priority,
		IsCompound:       t.IsCompound,
		CompoundOrder:    t.CompoundOrder,
		IsAddedToPrice:   t.IsAddedToPrice,
		ExemptionApplied: exemptionName,
		OriginalAmount:   original.Round(2),
	}
	return item, record, nil
}

func (c *Calculator) resolveBase(in Input, base model.AppliedToBase) decimal.Decimal {
	if in.Bases != nil {
		if v, ok := in.Bases[base]; ok {
			return v
		}
	}
	return in.Subtotal
}

// tieredAmount splits the order's contribution across every bracket the
// cumulative revenue range [cumulative, cumulative+base) overlaps, so an
// order straddling a bracket boundary is never taxed entirely at the wrong
// rate.
func tieredAmount(t model.Tax, cumulative, base decimal.Decimal) (decimal.Decimal, error) {
	if len(t.TieredRates) == 0 {
		return decimal.Zero, fmt.Errorf("tieredAmount: tax %s has no brackets: %w", t.ID, ErrConfiguration)
	}

	brackets := append([]model.TieredRate{}, t.TieredRates...)
	sort.Slice(brackets, func(i, j int) bool { return brackets[i].Min.LessThan(brackets[j].Min) })

	total := decimal.Zero
	end := cumulative.Add(base)
	for _, b := range brackets {
		lo := decimal.Max(cumulative, b.Min)
		hi := end
		if b.Max != nil && b.Max.LessThan(hi) {
			hi = *b.Max
		}
		if hi.LessThanOrEqual(lo) {
			continue
		}
		portion := hi.Sub(lo)
		total = total.Add(portion.Mul(b.Rate).Div(hundred))
	}
	return total, nil
}

func validateCompoundOrders(taxes []model.Tax) error {
	seen := make(map[int]string)
	for _, t := range taxes {
		if !t.IsCompound {
			continue
		}
		if t.CompoundOrder == nil {
			return fmt.Errorf("validateCompoundOrders: compound tax %s has no compound_order: %w", t.ID, ErrConfiguration)
		}
		if other, ok := seen[*t.CompoundOrder]; ok {
			return fmt.Errorf("validateCompoundOrders: taxes %s and %s share compound_order %d: %w", other, t.ID, *t.CompoundOrder, ErrConfiguration)
		}
		seen[*t.CompoundOrder] = t.ID
	}
	return nil
}
