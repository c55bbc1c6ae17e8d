package enums

import "fmt"

// PromotionStatus tracks the lifecycle of a promotion definition.
type PromotionStatus string

const (
	PromotionStatusDraft   PromotionStatus = "draft"
	PromotionStatusActive  PromotionStatus = "active"
	PromotionStatusPaused  PromotionStatus = "paused"
	PromotionStatusExpired PromotionStatus = "expired"
)

var validPromotionStatuses = []PromotionStatus{
	PromotionStatusDraft,
	PromotionStatusActive,
	PromotionStatusPaused,
	PromotionStatusExpired,
}

// String implements fmt.Stringer.
func (s PromotionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PromotionStatus.
func (s PromotionStatus) IsValid() bool {
	for _, candidate := range validPromotionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePromotionStatus converts raw input into a PromotionStatus.
func ParsePromotionStatus(value string) (PromotionStatus, error) {
	for _, candidate := range validPromotionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion status %q", value)
}
