package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxSale           TransactionType = "sale"
	TxCommission     TransactionType = "commission"
	TxRefund         TransactionType = "refund"
	TxChargeback     TransactionType = "chargeback"
	TxAdjustment     TransactionType = "adjustment"
	TxPayout         TransactionType = "payout"
	TxPayoutReversal TransactionType = "payout_reversal"
)

// MarketplaceTransaction is one append-only ledger row. BalanceAfter of row n
// equals BalanceAfter of row n-1 plus Amount, per organizer, in insertion
// order. Rows are never updated or deleted.
type MarketplaceTransaction struct {
	ID           string          `json:"id"`
	OrganizerID  string          `json:"organizer_id"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	OrderID      *string         `json:"order_id,omitempty"`
	PayoutID     *string         `json:"payout_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutApproved   PayoutStatus = "approved"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutRejected   PayoutStatus = "rejected"
	PayoutCancelled  PayoutStatus = "cancelled"
	PayoutFailed     PayoutStatus = "failed"
)

// MarketplacePayout is a withdrawal request over a settlement period.
// Completing it posts a payout row; failing it posts a payout_reversal.
type MarketplacePayout struct {
	ID               string          `json:"id"`
	OrganizerID      string          `json:"organizer_id"`
	Amount           decimal.Decimal `json:"amount"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	Currency         string          `json:"currency"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	Status           PayoutStatus    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
