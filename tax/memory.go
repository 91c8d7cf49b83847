package tax

import (
	"context"
	"sync"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// MemoryRates is an in-memory RateRepository used by tests and local runs.
type MemoryRates struct {
	mu         sync.RWMutex
	taxes      map[string]model.Tax
	exemptions map[string]model.TaxExemption
	revenue    map[string]decimal.Decimal // tenantID|taxID
}

func NewMemoryRates() *MemoryRates {
	return &MemoryRates{
		taxes:      make(map[string]model.Tax),
		exemptions: make(map[string]model.TaxExemption),
		revenue:    make(map[string]decimal.Decimal),
	}
}

func (m *MemoryRates) SeedTax(t model.Tax) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taxes[t.ID] = t
}

func (m *MemoryRates) SeedExemption(e model.TaxExemption) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exemptions[e.ID] = e
}

func (m *MemoryRates) SeedRevenue(tenantID, taxID string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revenue[tenantID+"|"+taxID] = amount
}

func (m *MemoryRates) ApplicableGeneralTaxes(ctx context.Context, tenantID string, eventTypeID *string, day time.Time) ([]model.Tax, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Tax
	for _, t := range m.taxes {
		if t.Kind != model.TaxGeneral || t.TenantID != tenantID || !t.IsActive || !t.ValidOn(day) {
			continue
		}
		if !eventTypeMatches(t.EventTypeID, eventTypeID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MemoryRates) ApplicableLocalTaxes(ctx context.Context, tenantID, country string, county, city, eventTypeID *string, day time.Time) ([]model.Tax, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Tax
	for _, t := range m.taxes {
		if t.Kind != model.TaxLocal || t.TenantID != tenantID || !t.IsActive || !t.ValidOn(day) {
			continue
		}
		if t.Country == nil || *t.Country != country {
			continue
		}
		if t.County != nil && (county == nil || *t.County != *county) {
			continue
		}
		if t.City != nil && (city == nil || *t.City != *city) {
			continue
		}
		if !eventTypeMatches(t.EventTypeID, eventTypeID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MemoryRates) ApplicableExemptions(ctx context.Context, tenantID string, ec ExemptionContext, day time.Time) ([]model.TaxExemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.TaxExemption
	for _, e := range m.exemptions {
		if e.TenantID != tenantID || !e.IsActive || !e.ValidOn(day) {
			continue
		}
		if exemptionMatches(e, ec) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryRates) CumulativeRevenue(ctx context.Context, tenantID, taxID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revenue[tenantID+"|"+taxID], nil
}

func (m *MemoryRates) AddRevenue(ctx context.Context, tenantID, taxID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantID + "|" + taxID
	m.revenue[key] = m.revenue[key].Add(amount)
	return nil
}

func eventTypeMatches(taxEventType, orderEventType *string) bool {
	if taxEventType == nil {
		return true
	}
	return orderEventType != nil && *taxEventType == *orderEventType
}

func exemptionMatches(e model.TaxExemption, ec ExemptionContext) bool {
	switch e.ExemptionType {
	case model.ExemptCustomer:
		return ec.CustomerID != nil && *ec.CustomerID == e.ExemptableID
	case model.ExemptTicketType:
		return ec.TicketTypeID != nil && *ec.TicketTypeID == e.ExemptableID
	case model.ExemptEvent:
		return ec.EventID != nil && *ec.EventID == e.ExemptableID
	case model.ExemptProduct:
		return ec.ProductID != nil && *ec.ProductID == e.ExemptableID
	case model.ExemptCategory:
		return ec.CategoryID != nil && *ec.CategoryID == e.ExemptableID
	}
	return false
}

// MemoryAudit is an in-memory AuditRepository.
type MemoryAudit struct {
	mu      sync.RWMutex
	records []model.TaxCollectionRecord
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) AppendRecords(ctx context.Context, records []model.TaxCollectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *MemoryAudit) RecordsByOrder(ctx context.Context, orderID string) ([]model.TaxCollectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.TaxCollectionRecord
	for _, r := range m.records {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}
