package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

// PromotionRule carries the variant-specific payload for a promotion kind.
// Only the fields relevant to the promotion's kind are populated; the
// registry validates the pairing at write time.
type PromotionRule struct {
	// Percent/fixed value for discounting kinds. Interpretation depends on
	// DiscountType for threshold/promo_code, and on the kind otherwise.
	DiscountType  enums.DiscountType `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal    `json:"discount_value"`

	// bogo
	BuyQty       int  `json:"buy_qty,omitempty"`
	GetQty       int  `json:"get_qty,omitempty"`
	CheapestFree bool `json:"cheapest_free,omitempty"`

	// conditional_discount: every ConditionalQuantity eligible units, one
	// unit receives ConditionalDiscountPercent off.
	ConditionalQuantity        int             `json:"conditional_quantity,omitempty"`
	ConditionalDiscountPercent decimal.Decimal `json:"conditional_discount_percent,omitempty"`

	// loyalty_multiplier
	MultiplierValue decimal.Decimal `json:"multiplier_value,omitempty"`
}

// Promotion is the persisted promotion definition: shared metadata plus the
// kind-tagged rule payload.
type Promotion struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string              `gorm:"column:name;not null"`
	Description  string              `gorm:"column:description"`
	Kind         enums.PromotionKind `gorm:"column:kind;type:text;not null"`
	Rule         PromotionRule       `gorm:"column:rule;type:jsonb;serializer:json"`

	EligibleProductIDs  []uuid.UUID `gorm:"column:eligible_product_ids;type:jsonb;serializer:json"`
	EligibleCategoryIDs []uuid.UUID `gorm:"column:eligible_category_ids;type:jsonb;serializer:json"`
	ExcludedProductIDs  []uuid.UUID `gorm:"column:excluded_product_ids;type:jsonb;serializer:json"`
	ExcludedCategoryIDs []uuid.UUID `gorm:"column:excluded_category_ids;type:jsonb;serializer:json"`

	StartDate   time.Time       `gorm:"column:start_date;not null"`
	EndDate     time.Time       `gorm:"column:end_date;not null"`
	StartMinute *int            `gorm:"column:start_minute"`
	EndMinute   *int            `gorm:"column:end_minute"`
	DaysActive  []enums.Weekday `gorm:"column:days_active;type:jsonb;serializer:json"`

	MinCartAmount *decimal.Decimal `gorm:"column:min_cart_amount;type:numeric(12,2)"`
	MaxCartAmount *decimal.Decimal `gorm:"column:max_cart_amount;type:numeric(12,2)"`

	PromoCode    *string `gorm:"column:promo_code"`
	CodeRequired bool    `gorm:"column:code_required;not null;default:false"`

	LimitPerCustomer *int `gorm:"column:limit_per_customer"`
	LimitTotal       *int `gorm:"column:limit_total"`
	UsageCount       int  `gorm:"column:usage_count;not null;default:0"`

	TargetNewCustomers bool `gorm:"column:target_new_customers;not null;default:false"`
	TargetInactiveDays *int `gorm:"column:target_inactive_days"`

	Priority      int    `gorm:"column:priority;not null;default:0"`
	Stackable     bool   `gorm:"column:stackable;not null;default:false"`
	StackingGroup string `gorm:"column:stacking_group"`

	Status   enums.PromotionStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	IsActive bool                  `gorm:"column:is_active;not null;default:false"`

	// CampaignID mirrors analytics["ai_campaign_id"] as a queryable column;
	// the AI bridge uses it as its idempotency key.
	CampaignID *string        `gorm:"column:ai_campaign_id;uniqueIndex"`
	Analytics  map[string]any `gorm:"column:analytics;type:jsonb;serializer:json"`

	CreatedBy string    `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (p *Promotion) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
