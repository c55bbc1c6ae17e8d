package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

// CashbackEntry is one append-only journal record of a balance change.
// The customer's balance is definitionally the sum of Delta over their
// entries; BalanceAfter snapshots the running total at append time.
type CashbackEntry struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID          `gorm:"column:customer_id;type:uuid;not null;index:idx_cashback_entries_customer_created"`
	OrderID    *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	Delta      decimal.Decimal    `gorm:"column:delta;type:numeric(12,2);not null"`
	Reason     enums.LedgerReason `gorm:"column:reason;type:text;not null"`

	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:numeric(12,2);not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_cashback_entries_customer_created"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (e *CashbackEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
