package enums

import "fmt"

// DeadLetterAction enumerates the operator commands accepted by the
// dead-letter admin interface.
type DeadLetterAction string

const (
	DeadLetterActionRetry    DeadLetterAction = "retry"
	DeadLetterActionRetryAll DeadLetterAction = "retry_all"
	DeadLetterActionClear    DeadLetterAction = "clear"
)

var validDeadLetterActions = []DeadLetterAction{
	DeadLetterActionRetry,
	DeadLetterActionRetryAll,
	DeadLetterActionClear,
}

// String implements fmt.Stringer.
func (a DeadLetterAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known DeadLetterAction.
func (a DeadLetterAction) IsValid() bool {
	for _, candidate := range validDeadLetterActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseDeadLetterAction converts raw input into a DeadLetterAction.
func ParseDeadLetterAction(value string) (DeadLetterAction, error) {
	for _, candidate := range validDeadLetterActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dead letter action %q", value)
}
