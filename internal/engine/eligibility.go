package engine

import (
	"context"
	"time"

	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

const hoursPerDay = 24

// passesGating applies the non-variant filters of step 1: code match, cart
// subtotal bounds, targeting predicates, and the total usage cap. The
// per-customer cap needs a repository read and is checked separately.
func passesGating(promo models.Promotion, input Input, subtotal decimal.Decimal, now time.Time) bool {
	if promo.CodeRequired {
		if promo.PromoCode == nil || *promo.PromoCode != input.Code {
			return false
		}
	}
	if promo.MinCartAmount != nil && subtotal.LessThan(*promo.MinCartAmount) {
		return false
	}
	if promo.MaxCartAmount != nil && subtotal.GreaterThan(*promo.MaxCartAmount) {
		return false
	}
	if promo.LimitTotal != nil && promo.UsageCount >= *promo.LimitTotal {
		return false
	}
	return passesTargeting(promo, input.Customer, now)
}

func passesTargeting(promo models.Promotion, customer *CustomerContext, now time.Time) bool {
	if promo.Kind.RequiresCustomer() && customer == nil {
		return false
	}
	if promo.TargetNewCustomers || promo.Kind == enums.PromotionKindNewCustomer {
		if customer == nil || customer.OrdersCount > 0 {
			return false
		}
	}
	if promo.TargetInactiveDays != nil {
		// A customer with no recorded order is new, not inactive.
		if customer == nil || customer.LastOrderAt == nil {
			return false
		}
		inactiveFor := now.Sub(*customer.LastOrderAt)
		threshold := time.Duration(*promo.TargetInactiveDays) * hoursPerDay * time.Hour
		if inactiveFor < threshold {
			return false
		}
	}
	return true
}

// LineEligible reports whether a cart line falls inside the promotion's
// scope sets. The order service uses it to mirror applied promotions onto
// the line snapshots it persists.
func LineEligible(promo models.Promotion, item LineItem) bool {
	return eligibleLine(promo, item)
}

// eligibleLine decides whether a cart line falls inside the promotion's
// scope sets. Exclusions win; empty eligible sets mean no constraint.
func eligibleLine(promo models.Promotion, item LineItem) bool {
	if slices.Contains(promo.ExcludedProductIDs, item.ProductID) {
		return false
	}
	if slices.Contains(promo.ExcludedCategoryIDs, item.CategoryID) {
		return false
	}
	if len(promo.EligibleProductIDs) == 0 && len(promo.EligibleCategoryIDs) == 0 {
		return true
	}
	if slices.Contains(promo.EligibleProductIDs, item.ProductID) {
		return true
	}
	return slices.Contains(promo.EligibleCategoryIDs, item.CategoryID)
}

// usageCounter answers "how many times has this customer used this
// promotion"; the engine uses it for the per-customer cap.
type usageCounter interface {
	CountCustomerUsage(ctx context.Context, promotionID, customerID uuid.UUID) (int64, error)
}

func underCustomerCap(ctx context.Context, counter usageCounter, promo models.Promotion, customer *CustomerContext) (bool, error) {
	if promo.LimitPerCustomer == nil || customer == nil {
		return true, nil
	}
	used, err := counter.CountCustomerUsage(ctx, promo.ID, customer.ID)
	if err != nil {
		return false, err
	}
	return used < int64(*promo.LimitPerCustomer), nil
}
