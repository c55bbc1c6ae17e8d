package cashback

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/internal/settings"
	"github.com/julienvidal/bistro-backoffice/pkg/config"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/money"
)

// RedemptionQuery asks what a cashback-backed checkout would look like.
type RedemptionQuery struct {
	RestaurantID     uuid.UUID
	CustomerID       *uuid.UUID
	Subtotal         decimal.Decimal
	PromoDiscount    decimal.Decimal
	TotalAfterPromos decimal.Decimal
	UseCashback      bool
}

// RedemptionPreview is the answer: what would be earned, what can be spent.
type RedemptionPreview struct {
	CashbackEarned       decimal.Decimal `json:"cashback_earned"`
	CashbackAvailable    decimal.Decimal `json:"cashback_available"`
	CashbackToUse        decimal.Decimal `json:"cashback_to_use"`
	RemainingToPay       decimal.Decimal `json:"remaining_to_pay"`
	NewBalanceAfterOrder decimal.Decimal `json:"new_balance_after_order"`
}

// Service is the cashback ledger: the only writer of customer balances.
type Service interface {
	Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	Entries(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CashbackEntry, error)
	PreviewRedemption(ctx context.Context, query RedemptionQuery) (RedemptionPreview, error)

	// ComputeEarned applies the loyalty policy to an order's amounts.
	ComputeEarned(policy settings.Cashback, subtotal, promoDiscount, multiplier decimal.Decimal) decimal.Decimal

	// Credit earns cashback for a completed order. Idempotent: an order
	// already carrying cashback_credited_at keeps its original amount.
	Credit(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error)

	// Redeem burns balance at order creation time.
	Redeem(ctx context.Context, tx *gorm.DB, customerID, orderID uuid.UUID, amount decimal.Decimal) error

	// RefundEarn reverses a credited (and possibly redeemed) order on the
	// explicit admin compensation path.
	RefundEarn(ctx context.Context, tx *gorm.DB, order *models.Order) error

	// Adjust posts a manual correction entry.
	Adjust(ctx context.Context, customerID uuid.UUID, delta decimal.Decimal) (*models.CashbackEntry, error)
}

type service struct {
	repo     Repository
	settings settings.Provider
	cfg      config.EngineConfig
	log      *logger.Logger
}

// NewService wires the ledger service.
func NewService(repo Repository, provider settings.Provider, cfg config.EngineConfig, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cashback: repository is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("cashback: settings provider is required")
	}
	if cfg.TransitionRetries <= 0 {
		cfg.TransitionRetries = 3
	}
	if cfg.RetryBackoffMin <= 0 {
		cfg.RetryBackoffMin = 5 * time.Millisecond
	}
	if cfg.RetryBackoffMax < cfg.RetryBackoffMin {
		cfg.RetryBackoffMax = 50 * time.Millisecond
	}
	return &service{repo: repo, settings: provider, cfg: cfg, log: log}, nil
}

func (s *service) Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	customer, err := s.findCustomer(ctx, nil, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return customer.CashbackBalance, nil
}

func (s *service) Entries(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CashbackEntry, error) {
	entries, err := s.repo.ListEntries(ctx, customerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "listing ledger entries")
	}
	return entries, nil
}

func (s *service) PreviewRedemption(ctx context.Context, query RedemptionQuery) (RedemptionPreview, error) {
	if query.RestaurantID == uuid.Nil {
		return RedemptionPreview{}, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	policy, err := s.settings.Cashback(ctx, query.RestaurantID)
	if err != nil {
		return RedemptionPreview{}, err
	}

	available := decimal.Zero
	if query.CustomerID != nil {
		customer, err := s.findCustomer(ctx, nil, *query.CustomerID)
		if err != nil {
			return RedemptionPreview{}, err
		}
		available = customer.CashbackBalance
	}

	toUse := decimal.Zero
	if query.UseCashback {
		toUse = money.Min(available, money.ClampNonNegative(query.TotalAfterPromos))
	}

	earned := s.ComputeEarned(policy, query.Subtotal, query.PromoDiscount, decimal.NewFromInt(1))
	return RedemptionPreview{
		CashbackEarned:       earned,
		CashbackAvailable:    available,
		CashbackToUse:        toUse,
		RemainingToPay:       money.ClampNonNegative(query.TotalAfterPromos.Sub(toUse)),
		NewBalanceAfterOrder: available.Sub(toUse).Add(earned),
	}, nil
}

func (s *service) ComputeEarned(policy settings.Cashback, subtotal, promoDiscount, multiplier decimal.Decimal) decimal.Decimal {
	base := subtotal
	if !policy.ExcludePromosFromBase {
		base = base.Sub(promoDiscount)
	}
	base = money.ClampNonNegative(base)
	if multiplier.LessThan(decimal.NewFromInt(1)) {
		multiplier = decimal.NewFromInt(1)
	}
	return money.Round(money.Percent(base, policy.Percentage).Mul(multiplier))
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error) {
	if order == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.CashbackCreditedAt != nil {
		return order.CashbackEarned, nil
	}
	if order.CustomerID == nil {
		return decimal.Zero, nil
	}

	policy, err := s.settings.Cashback(ctx, order.RestaurantID)
	if err != nil {
		return decimal.Zero, err
	}
	earned := s.ComputeEarned(policy, order.Subtotal, order.PromoDiscount, order.LoyaltyMultiplier)
	if earned.IsZero() {
		return decimal.Zero, nil
	}

	orderID := order.ID
	if _, err := s.append(ctx, tx, *order.CustomerID, earned, enums.LedgerReasonEarn, &orderID); err != nil {
		return decimal.Zero, err
	}
	return earned, nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, customerID, orderID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "redemption amount must be positive")
	}
	_, err := s.append(ctx, tx, customerID, amount.Neg(), enums.LedgerReasonRedeem, &orderID)
	return err
}

func (s *service) RefundEarn(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil || order.CustomerID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order with customer is required")
	}
	orderID := order.ID
	if order.CashbackCreditedAt != nil && order.CashbackEarned.IsPositive() {
		if _, err := s.append(ctx, tx, *order.CustomerID, order.CashbackEarned.Neg(), enums.LedgerReasonRefundEarn, &orderID); err != nil {
			return err
		}
	}
	if order.CashbackUsed.IsPositive() {
		if _, err := s.append(ctx, tx, *order.CustomerID, order.CashbackUsed, enums.LedgerReasonRefundEarn, &orderID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Adjust(ctx context.Context, customerID uuid.UUID, delta decimal.Decimal) (*models.CashbackEntry, error) {
	if delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta must not be zero")
	}
	return s.append(ctx, nil, customerID, delta, enums.LedgerReasonManual, nil)
}

// append writes one ledger entry under the balance version guard, retrying
// lost races with a small randomised backoff.
func (s *service) append(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, delta decimal.Decimal, reason enums.LedgerReason, orderID *uuid.UUID) (*models.CashbackEntry, error) {
	repo := s.repo.WithTx(tx)
	for attempt := 0; attempt <= s.cfg.TransitionRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "ledger append canceled")
		}
		if attempt > 0 {
			time.Sleep(s.backoff())
		}

		customer, err := s.findCustomer(ctx, tx, customerID)
		if err != nil {
			return nil, err
		}
		entry, err := repo.Append(ctx, customer, delta, reason, orderID)
		if err == nil {
			return entry, nil
		}
		if stdErrors.Is(err, errBalanceConflict) {
			continue
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "appending ledger entry")
	}
	return nil, pkgerrors.New(pkgerrors.CodeConcurrentUpdate, "cashback balance contended beyond retry budget")
}

func (s *service) backoff() time.Duration {
	spread := s.cfg.RetryBackoffMax - s.cfg.RetryBackoffMin
	if spread <= 0 {
		return s.cfg.RetryBackoffMin
	}
	return s.cfg.RetryBackoffMin + time.Duration(rand.Int63n(int64(spread)))
}

func (s *service) findCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*models.Customer, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	customer, err := s.repo.WithTx(tx).FindCustomer(ctx, customerID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "loading customer")
	}
	return customer, nil
}
