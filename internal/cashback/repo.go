package cashback

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
)

// errBalanceConflict signals a lost optimistic-version race on the
// materialised balance. The service retries on it.
var errBalanceConflict = stdErrors.New("cashback: balance version conflict")

// Repository owns the ledger journal and the materialised balance.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)

	// Append writes one ledger entry and moves the materialised balance
	// under the customer's version guard. It returns errBalanceConflict
	// on a lost race so the caller can reload and retry.
	Append(ctx context.Context, customer *models.Customer, delta decimal.Decimal, reason enums.LedgerReason, orderID *uuid.UUID) (*models.CashbackEntry, error)

	ListEntries(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CashbackEntry, error)
	EarnEntryForOrder(ctx context.Context, orderID uuid.UUID) (*models.CashbackEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) Append(ctx context.Context, customer *models.Customer, delta decimal.Decimal, reason enums.LedgerReason, orderID *uuid.UUID) (*models.CashbackEntry, error) {
	balanceAfter := customer.CashbackBalance.Add(delta)
	if balanceAfter.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientCashback, "cashback balance is insufficient").
			WithDetails(map[string]any{
				"balance":   customer.CashbackBalance.StringFixed(2),
				"requested": delta.Neg().StringFixed(2),
			})
	}

	res := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", customer.ID).
		Where("balance_version = ?", customer.BalanceVersion).
		Updates(map[string]any{
			"cashback_balance": balanceAfter,
			"balance_version":  customer.BalanceVersion + 1,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errBalanceConflict
	}

	entry := &models.CashbackEntry{
		CustomerID:   customer.ID,
		OrderID:      orderID,
		Delta:        delta,
		Reason:       reason,
		BalanceAfter: balanceAfter,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}

	customer.CashbackBalance = balanceAfter
	customer.BalanceVersion++
	return entry, nil
}

func (r *repository) ListEntries(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CashbackEntry, error) {
	query := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.CashbackEntry
	err := query.Find(&entries).Error
	return entries, err
}

func (r *repository) EarnEntryForOrder(ctx context.Context, orderID uuid.UUID) (*models.CashbackEntry, error) {
	var entry models.CashbackEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("reason = ?", enums.LedgerReasonEarn).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
