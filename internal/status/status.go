package status

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound       = errors.New("event: event not found")
	ErrUserNotFound        = errors.New("user: user not found")
	ErrPayoutNotConfigured = errors.New("payment: event creator has no payout account")
	ErrSoldOut             = errors.New("event: event is sold out")
	ErrAlreadyTicketed     = errors.New("ticket: buyer already holds a ticket for this event")
	ErrAlreadyProcessed    = errors.New("payment: payment already processed")
	ErrGatewayTimeout      = errors.New("gateway: request timed out")
	ErrAmountMismatch      = errors.New("payment: amount does not match ticket price")
	ErrCapacityBelowSold   = errors.New("event: capacity cannot be lowered below sold tickets")
)

// CapacityError reports a settlement that asked for more tickets than the
// event has left. Remaining is the authoritative count at check time.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("event: only %d ticket(s) remaining", e.Remaining)
}

// VerificationError reports a gateway transaction that is not in a
// successful state, or one whose metadata cannot be trusted.
type VerificationError struct {
	Status string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("payment: verification failed: %s", e.Status)
}

// EligibilityError reports a buyer blocked by event policy.
// Field is "age" or "gender"; Policy is the violated restriction value.
type EligibilityError struct {
	Field  string
	Policy string
	Value  string
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("eligibility: %s %q not allowed by event policy %q", e.Field, e.Value, e.Policy)
}
