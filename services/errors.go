// services/errors.go
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the lifecycle services. Handlers translate
// these to HTTP status codes; the services themselves never touch HTTP.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrAlreadySettled    = errors.New("already settled")
	ErrAlreadyMember     = errors.New("already a member")
	ErrNoTickets         = errors.New("no tickets in round")
	ErrNoActiveRound     = errors.New("no active lottery round")
	ErrRoundNotEnded     = errors.New("lottery round has not ended yet")
	ErrSelfTarget        = errors.New("cannot target yourself")
	ErrUnsupportedMetric = errors.New("custom metric requires a configured scorer")
)

// InvalidTransitionError reports an operation that is not legal from the
// entity's current state. The current state is included so callers can
// reconcile without re-deriving server logic.
type InvalidTransitionError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s %s in state %q", e.Attempted, e.Entity, e.Current)
}

// InsufficientFundsError names the required vs. available amount.
type InsufficientFundsError struct {
	AccountID string
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: account %s needs %d, has %d", e.AccountID, e.Required, e.Available)
}

// CapacityError covers league capacity and per-round ticket caps.
type CapacityError struct {
	Resource string
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s (limit %d)", e.Resource, e.Limit)
}
