package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Match with errors.Is.
var (
	// ErrNotFound means a ledger, snapshot or state document does not exist yet.
	// Callers treat it as empty state.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional write presented a stale version token
	ErrConflict = errors.New("version conflict")
	// ErrValidation marks malformed row data or request input
	ErrValidation = errors.New("validation error")
	// ErrExhausted means the compare-and-swap retry budget was spent
	ErrExhausted = errors.New("retry budget exhausted")
	// ErrCalendarGap means a bounded calendar search hit its iteration cap.
	// It always accompanies a usable best-effort date.
	ErrCalendarGap = errors.New("calendar gap")
)

// ValidationError describes one unparseable ledger field
type ValidationError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: invalid %s %q: %v", e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("row %d: invalid %s %q", e.Row, e.Field, e.Value)
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}
