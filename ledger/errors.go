package ledger

import "errors"

var (
	ErrNotFound           = errors.New("no record found")
	ErrBelowMinimum       = errors.New("amount below minimum payout")
	ErrInvalidTransition  = errors.New("invalid payout transition")
	ErrLedgerInconsistent = errors.New("ledger continuity broken")
	ErrOrganizerHalted    = errors.New("organizer ledger halted")
	ErrEmptyBatch         = errors.New("empty transaction batch")
	ErrCurrencyMismatch   = errors.New("transaction currency mismatch")
)
