package enums

import "fmt"

// ConsumptionMode describes how the customer receives the order.
type ConsumptionMode string

const (
	ConsumptionModeTakeaway ConsumptionMode = "takeaway"
	ConsumptionModeDelivery ConsumptionMode = "delivery"
	ConsumptionModeOnsite   ConsumptionMode = "onsite"
)

var validConsumptionModes = []ConsumptionMode{
	ConsumptionModeTakeaway,
	ConsumptionModeDelivery,
	ConsumptionModeOnsite,
}

// String implements fmt.Stringer.
func (c ConsumptionMode) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConsumptionMode.
func (c ConsumptionMode) IsValid() bool {
	for _, candidate := range validConsumptionModes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConsumptionMode converts raw input into a ConsumptionMode.
func ParseConsumptionMode(value string) (ConsumptionMode, error) {
	for _, candidate := range validConsumptionModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid consumption mode %q", value)
}
