package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

// LineItem is one cart line as the caller submitted it.
type LineItem struct {
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// Cart is the engine's pricing input. It is never persisted by the engine;
// the order service snapshots it at checkout.
type Cart struct {
	Items           []LineItem
	DeliveryFee     decimal.Decimal
	ConsumptionMode enums.ConsumptionMode
}

// Subtotal sums unit_price × quantity over all lines at full precision.
func (c Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return subtotal
}

// CustomerContext is the read-only customer surface targeting predicates
// evaluate against. Absent customer means guest checkout.
type CustomerContext struct {
	ID          uuid.UUID
	OrdersCount int
	LastOrderAt *time.Time
}

// Input bundles one evaluation request.
type Input struct {
	RestaurantID uuid.UUID
	Cart         Cart
	Customer     *CustomerContext
	Code         string
}

// AppliedPromotion is one priced entry of the result, in application order.
type AppliedPromotion struct {
	PromotionID uuid.UUID           `json:"promotion_id"`
	Name        string              `json:"name"`
	Kind        enums.PromotionKind `json:"kind"`
	Discount    decimal.Decimal     `json:"discount"`
	BadgeText   string              `json:"badge_text"`
	TicketText  string              `json:"ticket_text"`
}

// PricedResult is the deterministic output of one evaluation. OriginalTotal
// covers the cart subtotal plus delivery fee, before any cashback.
type PricedResult struct {
	OriginalTotal     decimal.Decimal    `json:"original_total"`
	TotalDiscount     decimal.Decimal    `json:"total_discount"`
	FinalTotal        decimal.Decimal    `json:"final_total"`
	Applied           []AppliedPromotion `json:"applied"`
	LoyaltyMultiplier decimal.Decimal    `json:"loyalty_multiplier"`
}
