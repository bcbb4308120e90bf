package allocation

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which input rule a calculation request violated.
type ErrorKind string

const (
	KindEmptyHoldings          ErrorKind = "EMPTY_HOLDINGS"
	KindInvalidCycleWeight     ErrorKind = "INVALID_CYCLE_WEIGHT"
	KindInvalidMonthlyBudget   ErrorKind = "INVALID_MONTHLY_BUDGET"
	KindInvalidTargetWeightSum ErrorKind = "INVALID_TARGET_WEIGHT_SUM"
	KindMissingPrice           ErrorKind = "MISSING_PRICE"
	KindInvalidPrice           ErrorKind = "INVALID_PRICE"
	KindNegativeCarryIn        ErrorKind = "NEGATIVE_CARRY_IN"
)

// ValidationError is returned when a calculation request is malformed.
// Details carries the offending values for programmatic handling.
type ValidationError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newValidationError(kind ErrorKind, details map[string]any, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}
}

// KindOf extracts the ErrorKind from err, if err wraps a *ValidationError.
func KindOf(err error) (ErrorKind, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}
