package enums

import "fmt"

// PaymentMethod describes how an order is settled at the counter.
type PaymentMethod string

const (
	PaymentMethodCash             PaymentMethod = "cash"
	PaymentMethodCard             PaymentMethod = "card"
	PaymentMethodCheck            PaymentMethod = "check"
	PaymentMethodMobile           PaymentMethod = "mobile"
	PaymentMethodOnline           PaymentMethod = "online"
	PaymentMethodTicketRestaurant PaymentMethod = "ticket_restaurant"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodCheck,
	PaymentMethodMobile,
	PaymentMethodOnline,
	PaymentMethodTicketRestaurant,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
