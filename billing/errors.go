/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Lookup errors - Missing policies or contacts
  2. Validation errors - Bad schedules, bad payment input
  3. Non-fatal signals - MissingPayer (no write performed, caller checks)
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPolicyNotFound is returned when opening an accounting session for
	// a policy id that does not exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrContactNotFound is returned when a referenced contact doesn't exist.
	ErrContactNotFound = errors.New("contact not found")

	// ErrInvalidSchedule is returned by the schedule calculator for an
	// unrecognized billing schedule. No invoices are produced.
	ErrInvalidSchedule = errors.New("invalid billing schedule")

	// ErrMissingPayer is returned by MakePayment when no contact id is
	// resolvable (none supplied and the policy has no named insured).
	// Non-fatal: no database write has happened, the caller checks and
	// moves on.
	ErrMissingPayer = errors.New("no payer contact resolvable")

	// ErrInvalidAmount is returned for a zero or negative payment amount.
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidScheduleError reports which schedule value was rejected.
type InvalidScheduleError struct {
	Schedule BillingSchedule
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid billing schedule %q", string(e.Schedule))
}

func (e *InvalidScheduleError) Unwrap() error {
	return ErrInvalidSchedule
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrContactNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrMissingPayer) ||
		errors.Is(err, ErrInvalidAmount)
}
