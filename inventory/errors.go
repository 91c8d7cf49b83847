package inventory

import "errors"

// Capacity errors are expected and recovered by the caller; policy errors are
// surfaced verbatim and never retried.
var (
	ErrSoldOut          = errors.New("sold out")
	ErrWindowClosed     = errors.New("sales window closed")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrHoldExpired      = errors.New("hold expired")
	ErrHoldNotFound     = errors.New("hold not found")
	ErrNotFound         = errors.New("no record found")
	ErrPolicyViolation  = errors.New("policy violation")
	ErrListingNotActive = errors.New("listing not active")
	ErrInvalidSplit     = errors.New("invalid split plan")
)
