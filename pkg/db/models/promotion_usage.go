package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PromotionUsage logs one promotion applied to one order, exactly once.
type PromotionUsage struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PromotionID uuid.UUID  `gorm:"column:promotion_id;type:uuid;not null;index"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID  *uuid.UUID `gorm:"column:customer_id;type:uuid;index"`

	OriginalAmount decimal.Decimal `gorm:"column:original_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	FinalAmount    decimal.Decimal `gorm:"column:final_amount;type:numeric(12,2);not null"`

	PromoCodeUsed *string `gorm:"column:promo_code_used"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (u *PromotionUsage) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
