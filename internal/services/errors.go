package services

import (
	"errors"
	"fmt"
	"time"
)

// Business-rule errors. Each one aborts the enclosing atomic unit with zero
// side effects before it is returned; callers map them to their own
// presentation.
var (
	ErrInvalidAmount        = errors.New("amount must be a positive integer")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidPrice         = errors.New("unit price must be non-negative")
	ErrInvalidTitle         = errors.New("listing title is required")
	ErrNotListingOwner      = errors.New("only the seller can cancel a listing")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrListingUnavailable   = errors.New("listing unavailable")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountFrozen        = errors.New("account frozen")
	ErrSelfTransfer         = errors.New("cannot transfer to the same account")
	ErrDailySendLimit       = errors.New("daily send limit exceeded")
)

// CooldownError is returned when a daily claim is requested before the
// 24-hour window has elapsed. NextEligibleAt is lastClaimAt + 24h.
type CooldownError struct {
	NextEligibleAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("daily claim on cooldown until %s", e.NextEligibleAt.Format(time.RFC3339))
}
