package enums

import "fmt"

// PaymentEventStatus tracks the processing lifecycle of a stored webhook event.
type PaymentEventStatus string

const (
	EventStatusReceived   PaymentEventStatus = "received"
	EventStatusProcessing PaymentEventStatus = "processing"
	EventStatusProcessed  PaymentEventStatus = "processed"
	EventStatusFailed     PaymentEventStatus = "failed"
	EventStatusRetrying   PaymentEventStatus = "retrying"
	EventStatusDeadLetter PaymentEventStatus = "dead_letter"
	EventStatusIgnored    PaymentEventStatus = "ignored"
)

var validPaymentEventStatuses = []PaymentEventStatus{
	EventStatusReceived,
	EventStatusProcessing,
	EventStatusProcessed,
	EventStatusFailed,
	EventStatusRetrying,
	EventStatusDeadLetter,
	EventStatusIgnored,
}

// String implements fmt.Stringer.
func (s PaymentEventStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentEventStatus.
func (s PaymentEventStatus) IsValid() bool {
	for _, candidate := range validPaymentEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether an event in this status is never reprocessed
// without an explicit operator action.
func (s PaymentEventStatus) IsTerminal() bool {
	return s == EventStatusProcessed || s == EventStatusDeadLetter || s == EventStatusIgnored
}

// ParsePaymentEventStatus converts raw input into a PaymentEventStatus.
func ParsePaymentEventStatus(value string) (PaymentEventStatus, error) {
	for _, candidate := range validPaymentEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event status %q", value)
}
