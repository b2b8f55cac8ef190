package enums

import "fmt"

// PaymentEventType classifies an inbound payment-provider webhook delivery.
type PaymentEventType string

const (
	PaymentEventSuccess PaymentEventType = "success"
	PaymentEventFailure PaymentEventType = "failure"
	PaymentEventRefund  PaymentEventType = "refund"
)

var validPaymentEventTypes = []PaymentEventType{
	PaymentEventSuccess,
	PaymentEventFailure,
	PaymentEventRefund,
}

// String implements fmt.Stringer.
func (t PaymentEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PaymentEventType.
func (t PaymentEventType) IsValid() bool {
	for _, candidate := range validPaymentEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePaymentEventType converts raw input into a PaymentEventType.
func ParsePaymentEventType(value string) (PaymentEventType, error) {
	for _, candidate := range validPaymentEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event type %q", value)
}
