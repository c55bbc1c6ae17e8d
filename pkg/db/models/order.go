package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

// Order is the persisted order aggregate. Identity and line snapshots are
// immutable after creation; only status, payment, and the credit timestamp
// change over its lifetime.
type Order struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber  int64     `gorm:"column:order_number;not null;index:idx_orders_restaurant_number"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;index:idx_orders_restaurant_number"`

	CustomerID    *uuid.UUID `gorm:"column:customer_id;type:uuid;index"`
	CustomerEmail string     `gorm:"column:customer_email"`
	CustomerName  string     `gorm:"column:customer_name"`
	CustomerPhone string     `gorm:"column:customer_phone"`

	ConsumptionMode enums.ConsumptionMode `gorm:"column:consumption_mode;type:text;not null"`
	PickupAt        *time.Time            `gorm:"column:pickup_at"`

	Subtotal      decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	PromoDiscount decimal.Decimal `gorm:"column:promo_discount;type:numeric(12,2);not null"`
	CashbackUsed  decimal.Decimal `gorm:"column:cashback_used;type:numeric(12,2);not null"`
	DeliveryFee   decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	VATAmount     decimal.Decimal `gorm:"column:vat_amount;type:numeric(12,2);not null"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`

	PaymentStatus  enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod  *enums.PaymentMethod `gorm:"column:payment_method;type:text"`
	AmountReceived *decimal.Decimal     `gorm:"column:amount_received;type:numeric(12,2)"`
	ChangeGiven    *decimal.Decimal     `gorm:"column:change_given;type:numeric(12,2)"`

	Status             enums.OrderStatus `gorm:"column:status;type:text;not null;default:'new'"`
	CancellationReason *string           `gorm:"column:cancellation_reason"`

	LoyaltyMultiplier  decimal.Decimal `gorm:"column:loyalty_multiplier;type:numeric(6,2);not null;default:1"`
	CashbackEarned     decimal.Decimal `gorm:"column:cashback_earned;type:numeric(12,2);not null"`
	CashbackCreditedAt *time.Time      `gorm:"column:cashback_credited_at"`

	AppliedPromotions []AppliedPromotion `gorm:"column:applied_promotions;type:jsonb;serializer:json"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// AppliedPromotion is the checkout snapshot of one promotion that priced
// the order, kept at order level and mirrored onto the lines it scoped.
type AppliedPromotion struct {
	PromotionID uuid.UUID           `json:"promotion_id"`
	Name        string              `json:"name"`
	Kind        enums.PromotionKind `json:"kind"`
	Discount    decimal.Decimal     `json:"discount"`
	BadgeText   string              `json:"badge_text,omitempty"`
	TicketText  string              `json:"ticket_text,omitempty"`
}

// OrderLineItem is the immutable checkout snapshot of one cart line.
type OrderLineItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;not null"`

	Name      string          `gorm:"column:name;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Qty       int             `gorm:"column:qty;not null"`
	VATRate   decimal.Decimal `gorm:"column:vat_rate;type:numeric(5,2);not null"`

	Promotions []AppliedPromotion `gorm:"column:promotions;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (i *OrderLineItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
