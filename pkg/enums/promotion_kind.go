package enums

import "fmt"

// PromotionKind identifies the rule variant a promotion carries.
type PromotionKind string

const (
	PromotionKindBOGO                PromotionKind = "bogo"
	PromotionKindPercentItem         PromotionKind = "percent_item"
	PromotionKindPercentCategory     PromotionKind = "percent_category"
	PromotionKindFixedItem           PromotionKind = "fixed_item"
	PromotionKindFixedCategory       PromotionKind = "fixed_category"
	PromotionKindConditionalDiscount PromotionKind = "conditional_discount"
	PromotionKindThreshold           PromotionKind = "threshold"
	PromotionKindShippingFree        PromotionKind = "shipping_free"
	PromotionKindNewCustomer         PromotionKind = "new_customer"
	PromotionKindInactiveCustomer    PromotionKind = "inactive_customer"
	PromotionKindLoyaltyMultiplier   PromotionKind = "loyalty_multiplier"
	PromotionKindHappyHour           PromotionKind = "happy_hour"
	PromotionKindFlash               PromotionKind = "flash"
	PromotionKindSeasonal            PromotionKind = "seasonal"
	PromotionKindPromoCode           PromotionKind = "promo_code"
)

var validPromotionKinds = []PromotionKind{
	PromotionKindBOGO,
	PromotionKindPercentItem,
	PromotionKindPercentCategory,
	PromotionKindFixedItem,
	PromotionKindFixedCategory,
	PromotionKindConditionalDiscount,
	PromotionKindThreshold,
	PromotionKindShippingFree,
	PromotionKindNewCustomer,
	PromotionKindInactiveCustomer,
	PromotionKindLoyaltyMultiplier,
	PromotionKindHappyHour,
	PromotionKindFlash,
	PromotionKindSeasonal,
	PromotionKindPromoCode,
}

// String implements fmt.Stringer.
func (k PromotionKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known PromotionKind.
func (k PromotionKind) IsValid() bool {
	for _, candidate := range validPromotionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// RequiresCustomer reports whether the kind cannot apply to a guest cart.
func (k PromotionKind) RequiresCustomer() bool {
	return k == PromotionKindNewCustomer || k == PromotionKindInactiveCustomer
}

// ParsePromotionKind converts raw input into a PromotionKind.
func ParsePromotionKind(value string) (PromotionKind, error) {
	for _, candidate := range validPromotionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion kind %q", value)
}
