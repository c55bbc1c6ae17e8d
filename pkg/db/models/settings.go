package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RestaurantSettings holds the process-wide loyalty knobs, one row per
// restaurant. Read on every credit; cached with a short TTL.
type RestaurantSettings struct {
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;primaryKey"`

	CashbackPercentage    decimal.Decimal `gorm:"column:cashback_percentage;type:numeric(5,2);not null"`
	ExcludePromosFromBase bool            `gorm:"column:exclude_promos_from_base;not null;default:false"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
