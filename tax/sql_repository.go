package tax

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ticketmarket-settlement-backend/model"

	"github.com/shopspring/decimal"
)

// SQLRateRepository reads the tax configuration tables. Tiered rates live in
// a JSON column on the taxes row since they are always read together.
type SQLRateRepository struct {
	db *sql.DB
}

func NewSQLRateRepository(db *sql.DB) *SQLRateRepository {
	return &SQLRateRepository{db: db}
}

const taxColumns = `id, tenant_id, name, kind, value, rate_type, currency, priority,
	is_compound, compound_order, applied_to_base, is_added_to_price, event_type_id,
	country, county, city, tiered_rates, min_guaranteed_amount,
	min_revenue_threshold, max_revenue_threshold, valid_from, valid_until, is_active`

func (r *SQLRateRepository) ApplicableGeneralTaxes(ctx context.Context, tenantID string, eventTypeID *string, day time.Time) ([]model.Tax, error) {
	query := `
		SELECT ` + taxColumns + `
		FROM taxes
		WHERE tenant_id = ? AND kind = 'general' AND is_active = 1
		  AND (valid_from IS NULL OR valid_from <= ?)
		  AND (valid_until IS NULL OR valid_until >= ?)
		  AND (event_type_id IS NULL OR event_type_id = ?)`

	rows, err := r.db.QueryContext(ctx, query, tenantID, day, day, eventTypeID)
	if err != nil {
		return nil, fmt.Errorf("applicableGeneralTaxes: error querying taxes: %w", err)
	}
	defer rows.Close()
	return scanTaxes(rows)
}

func (r *SQLRateRepository) ApplicableLocalTaxes(ctx context.Context, tenantID, country string, county, city, eventTypeID *string, day time.Time) ([]model.Tax, error) {
	query := `
		SELECT ` + taxColumns + `
		FROM taxes
		WHERE tenant_id = ? AND kind = 'local' AND is_active = 1
		  AND country = ?
		  AND (county IS NULL OR county = ?)
		  AND (city IS NULL OR city = ?)
		  AND (valid_from IS NULL OR valid_from <= ?)
		  AND (valid_until IS NULL OR valid_until >= ?)
		  AND (event_type_id IS NULL OR event_type_id = ?)`

	rows, err := r.db.QueryContext(ctx, query, tenantID, country, county, city, day, day, eventTypeID)
	if err != nil {
		return nil, fmt.Errorf("applicableLocalTaxes: error querying taxes: %w", err)
	}
	defer rows.Close()
	return scanTaxes(rows)
}

func (r *SQLRateRepository) ApplicableExemptions(ctx context.Context, tenantID string, ec ExemptionContext, day time.Time) ([]model.TaxExemption, error) {
	query := `
		SELECT id, tenant_id, name, exemption_type, exemptable_id, exemption_percent, scope, valid_from, valid_until, is_active
		FROM tax_exemptions
		WHERE tenant_id = ? AND is_active = 1
		  AND (valid_from IS NULL OR valid_from <= ?)
		  AND (valid_until IS NULL OR valid_until >= ?)
		  AND (
		       (exemption_type = 'customer' AND exemptable_id = ?)
		    OR (exemption_type = 'ticket_type' AND exemptable_id = ?)
		    OR (exemption_type = 'event' AND exemptable_id = ?)
		    OR (exemption_type = 'product' AND exemptable_id = ?)
		    OR (exemption_type = 'category' AND exemptable_id = ?)
		  )`

	rows, err := r.db.QueryContext(ctx, query, tenantID, day, day,
		ec.CustomerID, ec.TicketTypeID, ec.EventID, ec.ProductID, ec.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("applicableExemptions: error querying exemptions: %w", err)
	}
	defer rows.Close()

	var out []model.TaxExemption
	for rows.Next() {
		var e model.TaxExemption
		var percent string
		var validFrom, validUntil sql.NullTime
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.ExemptionType, &e.ExemptableID, &percent, &e.Scope, &validFrom, &validUntil, &e.IsActive); err != nil {
			return nil, fmt.Errorf("applicableExemptions: error scanning exemption: %w", err)
		}
		if e.ExemptionPercent, err = decimal.NewFromString(percent); err != nil {
			return nil, fmt.Errorf("applicableExemptions: error parsing percent: %w", err)
		}
		if validFrom.Valid {
			e.ValidFrom = &validFrom.Time
		}
		if validUntil.Valid {
			e.ValidUntil = &validUntil.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRateRepository) CumulativeRevenue(ctx context.Context, tenantID, taxID string) (decimal.Decimal, error) {
	query := `SELECT amount FROM tax_revenue_counters WHERE tenant_id = ? AND tax_id = ?`

	var amount string
	err := r.db.QueryRowContext(ctx, query, tenantID, taxID).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("cumulativeRevenue: error querying counter: %w", err)
	}
	v, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cumulativeRevenue: error parsing amount: %w", err)
	}
	return v, nil
}

func (r *SQLRateRepository) AddRevenue(ctx context.Context, tenantID, taxID string, amount decimal.Decimal) error {
	query := `
		INSERT INTO tax_revenue_counters (tenant_id, tax_id, amount)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount)`

	if _, err := r.db.ExecContext(ctx, query, tenantID, taxID, amount.String()); err != nil {
		return fmt.Errorf("addRevenue: error updating counter for tax %s: %w", taxID, err)
	}
	return nil
}

func scanTaxes(rows *sql.Rows) ([]model.Tax, error) {
	var out []model.Tax
	for rows.Next() {
		var t model.Tax
		var value string
		var currency, appliedToBase, eventTypeID, country, county, city sql.NullString
		var compoundOrder sql.NullInt64
		var tieredRates, minGuaranteed, minThreshold, maxThreshold sql.NullString
		var validFrom, validUntil sql.NullTime

		err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.Kind, &value, &t.RateType, &currency, &t.Priority,
			&t.IsCompound, &compoundOrder, &appliedToBase, &t.IsAddedToPrice, &eventTypeID,
			&country, &county, &city, &tieredRates, &minGuaranteed,
			&minThreshold, &maxThreshold, &validFrom, &validUntil, &t.IsActive)
		if err != nil {
			return nil, fmt.Errorf("scanTaxes: error scanning tax: %w", err)
		}

		if t.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("scanTaxes: error parsing value: %w", err)
		}
		if currency.Valid {
			t.Currency = &currency.String
		}
		if appliedToBase.Valid {
			t.AppliedToBase = model.AppliedToBase(appliedToBase.String)
		}
		if eventTypeID.Valid {
			t.EventTypeID = &eventTypeID.String
		}
		if country.Valid {
			t.Country = &country.String
		}
		if county.Valid {
			t.County = &county.String
		}
		if city.Valid {
			t.City = &city.String
		}
		if compoundOrder.Valid {
			order := int(compoundOrder.Int64)
			t.CompoundOrder = &order
		}
		if tieredRates.Valid && tieredRates.String != "" {
			if err := json.Unmarshal([]byte(tieredRates.String), &t.TieredRates); err != nil {
				return nil, fmt.Errorf("scanTaxes: error parsing tiered rates for tax %s: %w", t.ID, err)
			}
			t.HasTieredRates = len(t.TieredRates) > 0
		}
		if t.MinGuaranteedAmount, err = nullDecimal(minGuaranteed); err != nil {
			return nil, fmt.Errorf("scanTaxes: error parsing min guaranteed: %w", err)
		}
		if t.MinRevenueThreshold, err = nullDecimal(minThreshold); err != nil {
			return nil, fmt.Errorf("scanTaxes: error parsing min threshold: %w", err)
		}
		if t.MaxRevenueThreshold, err = nullDecimal(maxThreshold); err != nil {
			return nil, fmt.Errorf("scanTaxes: error parsing max threshold: %w", err)
		}
		if validFrom.Valid {
			t.ValidFrom = &validFrom.Time
		}
		if validUntil.Valid {
			t.ValidUntil = &validUntil.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SQLAuditRepository appends to the tax_collection_records table. There is
// deliberately no update or delete path.
type SQLAuditRepository struct {
	db *sql.DB
}

func NewSQLAuditRepository(db *sql.DB) *SQLAuditRepository {
	return &SQLAuditRepository{db: db}
}

func (r *SQLAuditRepository) AppendRecords(ctx context.Context, records []model.TaxCollectionRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO tax_collection_records
			(id, tenant_id, order_id, tax_id, tax_name, kind, rate, rate_type, base, amount,
			 original_amount, is_added_to_price, exemption_applied, skipped, skip_reason, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("appendRecords: error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx, rec.ID, rec.TenantID, rec.OrderID, rec.TaxID, rec.TaxName, rec.Kind,
			rec.Rate.String(), rec.RateType, rec.Base.String(), rec.Amount.String(),
			rec.OriginalAmount.String(), rec.IsAddedToPrice, rec.ExemptionApplied, rec.Skipped, rec.SkipReason, rec.Currency, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("appendRecords: error inserting record %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (r *SQLAuditRepository) RecordsByOrder(ctx context.Context, orderID string) ([]model.TaxCollectionRecord, error) {
	query := `
		SELECT id, tenant_id, order_id, tax_id, tax_name, kind, rate, rate_type, base, amount,
		       original_amount, is_added_to_price, exemption_applied, skipped, skip_reason, currency, created_at
		FROM tax_collection_records
		WHERE order_id = ?
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("recordsByOrder: error querying records: %w", err)
	}
	defer rows.Close()

	var out []model.TaxCollectionRecord
	for rows.Next() {
		var rec model.TaxCollectionRecord
		var rate, base, amount, original string
		var exemption, skipReason sql.NullString
		err := rows.Scan(&rec.ID, &rec.TenantID, &rec.OrderID, &rec.TaxID, &rec.TaxName, &rec.Kind,
			&rate, &rec.RateType, &base, &amount, &original, &rec.IsAddedToPrice, &exemption, &rec.Skipped, &skipReason, &rec.Currency, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("recordsByOrder: error scanning record: %w", err)
		}
		if rec.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("recordsByOrder: error parsing rate: %w", err)
		}
		if rec.Base, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("recordsByOrder: error parsing base: %w", err)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("recordsByOrder: error parsing amount: %w", err)
		}
		if rec.OriginalAmount, err = decimal.NewFromString(original); err != nil {
			return nil, fmt.Errorf("recordsByOrder: error parsing original amount: %w", err)
		}
		if exemption.Valid {
			rec.ExemptionApplied = &exemption.String
		}
		if skipReason.Valid {
			rec.SkipReason = &skipReason.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
