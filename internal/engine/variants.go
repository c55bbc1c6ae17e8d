package engine

import (
	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	"github.com/julienvidal/bistro-backoffice/pkg/money"
)

// computeDiscount prices one promotion against the cart. Intermediate math
// stays at full precision; only the returned per-promotion discount is
// rounded. loyalty_multiplier never reaches this function.
func computeDiscount(promo models.Promotion, cart Cart, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch promo.Kind {
	case enums.PromotionKindBOGO:
		discount = bogoDiscount(promo, cart)
	case enums.PromotionKindPercentItem, enums.PromotionKindPercentCategory:
		discount = scopedPercentDiscount(promo, cart)
	case enums.PromotionKindFixedItem, enums.PromotionKindFixedCategory:
		discount = scopedFixedDiscount(promo, cart)
	case enums.PromotionKindConditionalDiscount:
		discount = conditionalDiscount(promo, cart)
	case enums.PromotionKindThreshold, enums.PromotionKindPromoCode:
		discount = typedSubtotalDiscount(promo.Rule, subtotal)
	case enums.PromotionKindShippingFree:
		discount = cart.DeliveryFee
	case enums.PromotionKindNewCustomer,
		enums.PromotionKindInactiveCustomer,
		enums.PromotionKindHappyHour,
		enums.PromotionKindFlash,
		enums.PromotionKindSeasonal:
		discount = money.Percent(subtotal, promo.Rule.DiscountValue)
	}

	return money.Round(money.ClampNonNegative(discount))
}

// bogoDiscount walks each eligible line independently: for every
// buy_qty+get_qty units on a line, get_qty units are free. Lines never
// combine, so the cheapest/most-expensive choice collapses to the line's
// own unit price.
func bogoDiscount(promo models.Promotion, cart Cart) decimal.Decimal {
	bundle := promo.Rule.BuyQty + promo.Rule.GetQty
	if bundle <= 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, item := range cart.Items {
		if !eligibleLine(promo, item) {
			continue
		}
		freeUnits := (item.Quantity / bundle) * promo.Rule.GetQty
		if freeUnits == 0 {
			continue
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(freeUnits))))
	}
	return total
}

func scopedPercentDiscount(promo models.Promotion, cart Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range cart.Items {
		if !eligibleLine(promo, item) {
			continue
		}
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(money.Percent(lineTotal, promo.Rule.DiscountValue))
	}
	return total
}

// scopedFixedDiscount takes a fixed amount off every eligible unit, capped
// by the unit price so a line never goes negative.
func scopedFixedDiscount(promo models.Promotion, cart Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range cart.Items {
		if !eligibleLine(promo, item) {
			continue
		}
		perUnit := money.Min(promo.Rule.DiscountValue, item.UnitPrice)
		total = total.Add(perUnit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// conditionalDiscount implements "Nth at -X%": per eligible line, one unit
// out of every conditional_quantity units gets the percent off.
func conditionalDiscount(promo models.Promotion, cart Cart) decimal.Decimal {
	every := promo.Rule.ConditionalQuantity
	if every <= 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, item := range cart.Items {
		if !eligibleLine(promo, item) {
			continue
		}
		discountedUnits := item.Quantity / every
		if discountedUnits == 0 {
			continue
		}
		perUnit := money.Percent(item.UnitPrice, promo.Rule.ConditionalDiscountPercent)
		total = total.Add(perUnit.Mul(decimal.NewFromInt(int64(discountedUnits))))
	}
	return total
}

func typedSubtotalDiscount(rule models.PromotionRule, subtotal decimal.Decimal) decimal.Decimal {
	switch rule.DiscountType {
	case enums.DiscountTypePercent:
		return money.Percent(subtotal, rule.DiscountValue)
	case enums.DiscountTypeFixed:
		return money.Min(rule.DiscountValue, subtotal)
	default:
		return decimal.Zero
	}
}
