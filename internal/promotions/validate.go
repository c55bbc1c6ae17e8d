package promotions

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
)

const minutesPerDay = 24 * 60

var oneHundred = decimal.NewFromInt(100)

func invalidDefinition(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.CodeInvalidDefinition, fmt.Sprintf(format, args...))
}

// ValidateDefinition checks the shared metadata and the kind-specific rule
// payload of a promotion before any write.
func ValidateDefinition(promo *models.Promotion) error {
	if promo.RestaurantID == uuid.Nil {
		return invalidDefinition("restaurant id is required")
	}
	if promo.Name == "" {
		return invalidDefinition("name is required")
	}
	if !promo.Kind.IsValid() {
		return invalidDefinition("unknown promotion kind %q", promo.Kind)
	}
	if !promo.Status.IsValid() {
		return invalidDefinition("unknown promotion status %q", promo.Status)
	}
	if promo.StartDate.IsZero() || promo.EndDate.IsZero() {
		return invalidDefinition("start and end dates are required")
	}
	if promo.StartDate.After(promo.EndDate) {
		return invalidDefinition("start date is after end date")
	}
	if err := validateMinuteWindow(promo.StartMinute, promo.EndMinute); err != nil {
		return err
	}
	for _, day := range promo.DaysActive {
		if !day.IsValid() {
			return invalidDefinition("unknown weekday %q", day)
		}
	}
	if err := validateCartBounds(promo.MinCartAmount, promo.MaxCartAmount); err != nil {
		return err
	}
	if promo.CodeRequired && (promo.PromoCode == nil || *promo.PromoCode == "") {
		return invalidDefinition("promo code is required when code gating is on")
	}
	if promo.LimitPerCustomer != nil && *promo.LimitPerCustomer < 1 {
		return invalidDefinition("per-customer limit must be at least 1")
	}
	if promo.LimitTotal != nil && *promo.LimitTotal < 1 {
		return invalidDefinition("total limit must be at least 1")
	}
	if promo.TargetInactiveDays != nil && *promo.TargetInactiveDays < 1 {
		return invalidDefinition("inactivity threshold must be at least 1 day")
	}
	return validateRule(promo)
}

func validateMinuteWindow(start, end *int) error {
	if start == nil && end == nil {
		return nil
	}
	if start == nil || end == nil {
		return invalidDefinition("start and end times must be set together")
	}
	if *start < 0 || *start >= minutesPerDay || *end <= 0 || *end > minutesPerDay {
		return invalidDefinition("time window is out of range")
	}
	if *start >= *end {
		return invalidDefinition("start time must precede end time")
	}
	return nil
}

func validateCartBounds(min, max *decimal.Decimal) error {
	if min != nil && min.IsNegative() {
		return invalidDefinition("minimum cart amount must not be negative")
	}
	if max != nil && max.IsNegative() {
		return invalidDefinition("maximum cart amount must not be negative")
	}
	if min != nil && max != nil && min.GreaterThan(*max) {
		return invalidDefinition("minimum cart amount exceeds maximum")
	}
	return nil
}

func validateRule(promo *models.Promotion) error {
	rule := promo.Rule
	switch promo.Kind {
	case enums.PromotionKindBOGO:
		if rule.BuyQty < 1 || rule.GetQty < 1 {
			return invalidDefinition("bogo requires buy and get quantities of at least 1")
		}
		if len(promo.EligibleProductIDs) == 0 && len(promo.EligibleCategoryIDs) == 0 {
			return invalidDefinition("bogo requires an eligible product or category scope")
		}
	case enums.PromotionKindPercentItem, enums.PromotionKindPercentCategory:
		if err := validatePercent(rule.DiscountValue); err != nil {
			return err
		}
		if promo.Kind == enums.PromotionKindPercentItem && len(promo.EligibleProductIDs) == 0 {
			return invalidDefinition("percent_item requires eligible products")
		}
		if promo.Kind == enums.PromotionKindPercentCategory && len(promo.EligibleCategoryIDs) == 0 {
			return invalidDefinition("percent_category requires eligible categories")
		}
	case enums.PromotionKindFixedItem, enums.PromotionKindFixedCategory:
		if !rule.DiscountValue.IsPositive() {
			return invalidDefinition("fixed discount must be positive")
		}
		if promo.Kind == enums.PromotionKindFixedItem && len(promo.EligibleProductIDs) == 0 {
			return invalidDefinition("fixed_item requires eligible products")
		}
		if promo.Kind == enums.PromotionKindFixedCategory && len(promo.EligibleCategoryIDs) == 0 {
			return invalidDefinition("fixed_category requires eligible categories")
		}
	case enums.PromotionKindConditionalDiscount:
		if rule.ConditionalQuantity < 2 {
			return invalidDefinition("conditional discount requires a quantity of at least 2")
		}
		if err := validatePercent(rule.ConditionalDiscountPercent); err != nil {
			return err
		}
	case enums.PromotionKindThreshold:
		if promo.MinCartAmount == nil {
			return invalidDefinition("threshold requires a minimum cart amount")
		}
		if err := validateTypedDiscount(rule); err != nil {
			return err
		}
	case enums.PromotionKindShippingFree:
		// No payload; the discount is the cart's delivery fee.
	case enums.PromotionKindNewCustomer:
		if err := validatePercent(rule.DiscountValue); err != nil {
			return err
		}
	case enums.PromotionKindInactiveCustomer:
		if err := validatePercent(rule.DiscountValue); err != nil {
			return err
		}
		if promo.TargetInactiveDays == nil {
			return invalidDefinition("inactive_customer requires an inactivity threshold")
		}
	case enums.PromotionKindLoyaltyMultiplier:
		if rule.MultiplierValue.LessThan(decimal.NewFromInt(1)) {
			return invalidDefinition("loyalty multiplier must be at least 1")
		}
		if rule.MultiplierValue.GreaterThan(decimal.NewFromInt(10)) {
			return invalidDefinition("loyalty multiplier must not exceed 10")
		}
	case enums.PromotionKindHappyHour:
		if err := validatePercent(rule.DiscountValue); err != nil {
			return err
		}
		if promo.StartMinute == nil || promo.EndMinute == nil {
			return invalidDefinition("happy_hour requires a time-of-day window")
		}
	case enums.PromotionKindFlash, enums.PromotionKindSeasonal:
		if err := validatePercent(rule.DiscountValue); err != nil {
			return err
		}
	case enums.PromotionKindPromoCode:
		if promo.PromoCode == nil || *promo.PromoCode == "" {
			return invalidDefinition("promo_code requires a code")
		}
		if !promo.CodeRequired {
			return invalidDefinition("promo_code requires code gating")
		}
		if err := validateTypedDiscount(rule); err != nil {
			return err
		}
	}
	return nil
}

func validatePercent(value decimal.Decimal) error {
	if !value.IsPositive() {
		return invalidDefinition("percent discount must be positive")
	}
	if value.GreaterThan(oneHundred) {
		return invalidDefinition("percent discount must not exceed 100")
	}
	return nil
}

func validateTypedDiscount(rule models.PromotionRule) error {
	switch rule.DiscountType {
	case enums.DiscountTypePercent:
		return validatePercent(rule.DiscountValue)
	case enums.DiscountTypeFixed:
		if !rule.DiscountValue.IsPositive() {
			return invalidDefinition("fixed discount must be positive")
		}
		return nil
	default:
		return invalidDefinition("discount type must be percent or fixed")
	}
}
