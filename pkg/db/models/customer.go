package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer carries the loyalty surface the core reads and, through the
// ledger, mutates. CashbackBalance is a materialised view over the
// customer's ledger entries; BalanceVersion guards concurrent appends.
type Customer struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;index"`

	Email string `gorm:"column:email;not null"`
	Name  string `gorm:"column:name"`
	Phone string `gorm:"column:phone"`

	OrdersCount int        `gorm:"column:orders_count;not null;default:0"`
	LastOrderAt *time.Time `gorm:"column:last_order_at"`

	CashbackBalance decimal.Decimal `gorm:"column:cashback_balance;type:numeric(12,2);not null"`
	BalanceVersion  int64           `gorm:"column:balance_version;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (c *Customer) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
