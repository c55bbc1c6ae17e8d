package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

// badgeText is the short customer-facing label shown next to a priced line.
func badgeText(promo models.Promotion) string {
	switch promo.Kind {
	case enums.PromotionKindBOGO:
		return fmt.Sprintf("%d+%d OFFERT", promo.Rule.BuyQty, promo.Rule.GetQty)
	case enums.PromotionKindShippingFree:
		return "LIVRAISON OFFERTE"
	case enums.PromotionKindLoyaltyMultiplier:
		return fmt.Sprintf("CASHBACK x%s", promo.Rule.MultiplierValue.String())
	case enums.PromotionKindConditionalDiscount:
		return fmt.Sprintf("%de A -%s%%", promo.Rule.ConditionalQuantity, trimPercent(promo.Rule.ConditionalDiscountPercent))
	case enums.PromotionKindFixedItem, enums.PromotionKindFixedCategory:
		return fmt.Sprintf("-%s€", promo.Rule.DiscountValue.StringFixed(2))
	case enums.PromotionKindThreshold, enums.PromotionKindPromoCode:
		if promo.Rule.DiscountType == enums.DiscountTypeFixed {
			return fmt.Sprintf("-%s€", promo.Rule.DiscountValue.StringFixed(2))
		}
		return fmt.Sprintf("-%s%%", trimPercent(promo.Rule.DiscountValue))
	default:
		return fmt.Sprintf("-%s%%", trimPercent(promo.Rule.DiscountValue))
	}
}

// ticketText is the operator-visible line printed on the kitchen ticket.
func ticketText(promo models.Promotion, discount decimal.Decimal) string {
	if promo.Kind == enums.PromotionKindLoyaltyMultiplier {
		return fmt.Sprintf("%s (cashback x%s)", promo.Name, promo.Rule.MultiplierValue.String())
	}
	return fmt.Sprintf("%s (-%s€)", promo.Name, discount.StringFixed(2))
}

func trimPercent(value decimal.Decimal) string {
	return value.String()
}
