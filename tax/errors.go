package tax

import "errors"

// Both errors abort settlement before any ledger write.
var (
	ErrUnresolvableJurisdiction = errors.New("unresolvable jurisdiction")
	ErrConfiguration            = errors.New("tax configuration error")
	ErrNotFound                 = errors.New("no record found")
)
