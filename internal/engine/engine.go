package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/pkg/clock"
	"github.com/julienvidal/bistro-backoffice/pkg/config"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/metrics"
	"github.com/julienvidal/bistro-backoffice/pkg/money"
)

var one = decimal.NewFromInt(1)

// Service prices carts against the live promotion set. Preview is pure;
// Commit additionally burns usage counters and writes usage logs inside the
// caller's transaction.
type Service interface {
	Preview(ctx context.Context, input Input) (PricedResult, error)
	Commit(ctx context.Context, tx *gorm.DB, input Input, orderID uuid.UUID) (PricedResult, error)
}

type service struct {
	registry promotions.Service
	clk      clock.Clock
	cfg      config.EngineConfig
	metrics  *metrics.EngineMetrics
	log      *logger.Logger
}

// NewService wires the promotion engine.
func NewService(registry promotions.Service, clk clock.Clock, cfg config.EngineConfig, m *metrics.EngineMetrics, log *logger.Logger) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: promotion registry is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if cfg.CommitRetries <= 0 {
		cfg.CommitRetries = 3
	}
	return &service{registry: registry, clk: clk, cfg: cfg, metrics: m, log: log}, nil
}

func (s *service) Preview(ctx context.Context, input Input) (PricedResult, error) {
	started := s.clk.Now()
	result, _, err := s.evaluate(ctx, input, nil)
	s.observe("preview", started, err)
	return result, err
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, input Input, orderID uuid.UUID) (PricedResult, error) {
	started := s.clk.Now()
	if orderID == uuid.Nil {
		return PricedResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	excluded := map[uuid.UUID]bool{}
	for attempt := 0; attempt <= s.cfg.CommitRetries; attempt++ {
		result, applied, err := s.evaluate(ctx, input, excluded)
		if err != nil {
			s.observe("commit", started, err)
			return PricedResult{}, err
		}

		exhaustedID, err := s.burnCounters(ctx, tx, applied)
		if err != nil {
			s.observe("commit", started, err)
			return PricedResult{}, err
		}
		if exhaustedID != uuid.Nil {
			// Counter race: drop the exhausted promotion and reprice.
			excluded[exhaustedID] = true
			if s.metrics != nil {
				s.metrics.IncContention()
			}
			continue
		}

		if err := s.writeUsageLogs(ctx, tx, input, orderID, result, applied); err != nil {
			s.observe("commit", started, err)
			return PricedResult{}, err
		}
		s.observe("commit", started, nil)
		return result, nil
	}

	err := pkgerrors.New(pkgerrors.CodeEngineContention, "promotion counters contended beyond retry budget")
	s.observe("commit", started, err)
	return PricedResult{}, err
}

// burnCounters increments usage for every applied promotion. On a
// limit_exhausted race it compensates the increments already made and
// returns the exhausted id so the caller can reprice without it.
func (s *service) burnCounters(ctx context.Context, tx *gorm.DB, applied []models.Promotion) (uuid.UUID, error) {
	bumped := make([]uuid.UUID, 0, len(applied))
	for _, promo := range applied {
		err := s.registry.IncrementUsage(ctx, tx, promo.ID, 1)
		if err == nil {
			bumped = append(bumped, promo.ID)
			continue
		}
		if pkgerrors.HasCode(err, pkgerrors.CodeLimitExhausted) {
			if rollbackErr := s.compensate(ctx, tx, bumped); rollbackErr != nil {
				return uuid.Nil, rollbackErr
			}
			return promo.ID, nil
		}
		if rollbackErr := s.compensate(ctx, tx, bumped); rollbackErr != nil {
			err = multierr.Append(err, rollbackErr)
		}
		return uuid.Nil, err
	}
	return uuid.Nil, nil
}

func (s *service) compensate(ctx context.Context, tx *gorm.DB, bumped []uuid.UUID) error {
	var combined error
	for _, id := range bumped {
		if err := s.registry.DecrementUsage(ctx, tx, id, 1); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	if combined != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, combined, "compensating usage counters")
	}
	return nil
}

func (s *service) writeUsageLogs(ctx context.Context, tx *gorm.DB, input Input, orderID uuid.UUID, result PricedResult, applied []models.Promotion) error {
	var customerID *uuid.UUID
	if input.Customer != nil {
		id := input.Customer.ID
		customerID = &id
	}
	for i, promo := range applied {
		entry := result.Applied[i]
		usage := &models.PromotionUsage{
			PromotionID:    promo.ID,
			OrderID:        orderID,
			CustomerID:     customerID,
			OriginalAmount: result.OriginalTotal,
			DiscountAmount: entry.Discount,
			FinalAmount:    money.ClampNonNegative(result.OriginalTotal.Sub(entry.Discount)),
		}
		if promo.CodeRequired && input.Code != "" {
			code := input.Code
			usage.PromoCodeUsed = &code
		}
		if err := s.registry.RecordUsage(ctx, tx, usage); err != nil {
			return err
		}
	}
	return nil
}

// evaluate runs the candidate, gating, and application phases once. The
// returned promotion slice parallels result.Applied.
func (s *service) evaluate(ctx context.Context, input Input, excluded map[uuid.UUID]bool) (PricedResult, []models.Promotion, error) {
	if err := validateCart(input); err != nil {
		return PricedResult{}, nil, err
	}

	now := s.clk.Now()
	subtotal := input.Cart.Subtotal()
	originalTotal := subtotal.Add(input.Cart.DeliveryFee)

	candidates, err := s.registry.ListActive(ctx, input.RestaurantID, now)
	if err != nil {
		return PricedResult{}, nil, err
	}

	result := PricedResult{
		OriginalTotal:     money.Round(originalTotal),
		LoyaltyMultiplier: one,
		Applied:           []AppliedPromotion{},
	}
	var appliedPromos []models.Promotion
	var bestMultiplier *models.Promotion
	appliedGroups := map[string]bool{}
	totalDiscount := decimal.Zero
	exclusiveApplied := false

	for _, promo := range candidates {
		if excluded[promo.ID] {
			continue
		}
		if !passesGating(promo, input, subtotal, now) {
			continue
		}
		ok, err := underCustomerCap(ctx, s.registry, promo, input.Customer)
		if err != nil {
			return PricedResult{}, nil, err
		}
		if !ok {
			continue
		}

		if promo.Kind == enums.PromotionKindLoyaltyMultiplier {
			promo := promo
			if bestMultiplier == nil || promo.Rule.MultiplierValue.GreaterThan(bestMultiplier.Rule.MultiplierValue) {
				bestMultiplier = &promo
			}
			continue
		}

		discount := computeDiscount(promo, input.Cart, subtotal)
		if discount.IsZero() {
			continue
		}

		// The first priced promotion always applies. Further ones apply
		// only when everything applied so far is stackable, they are
		// stackable themselves, and their stacking group is still free.
		if len(appliedPromos) > 0 {
			if exclusiveApplied || !promo.Stackable {
				continue
			}
			if promo.StackingGroup != "" && appliedGroups[promo.StackingGroup] {
				continue
			}
		}

		result.Applied = append(result.Applied, AppliedPromotion{
			PromotionID: promo.ID,
			Name:        promo.Name,
			Kind:        promo.Kind,
			Discount:    discount,
			BadgeText:   badgeText(promo),
			TicketText:  ticketText(promo, discount),
		})
		appliedPromos = append(appliedPromos, promo)
		if promo.StackingGroup != "" {
			appliedGroups[promo.StackingGroup] = true
		}
		if !promo.Stackable {
			exclusiveApplied = true
		}
		totalDiscount = totalDiscount.Add(discount)
	}

	if bestMultiplier != nil && bestMultiplier.Rule.MultiplierValue.GreaterThan(one) {
		result.Applied = append(result.Applied, AppliedPromotion{
			PromotionID: bestMultiplier.ID,
			Name:        bestMultiplier.Name,
			Kind:        bestMultiplier.Kind,
			Discount:    decimal.Zero,
			BadgeText:   badgeText(*bestMultiplier),
			TicketText:  ticketText(*bestMultiplier, decimal.Zero),
		})
		appliedPromos = append(appliedPromos, *bestMultiplier)
		result.LoyaltyMultiplier = bestMultiplier.Rule.MultiplierValue
	}

	result.TotalDiscount = money.Round(totalDiscount)
	result.FinalTotal = money.ClampNonNegative(money.Round(originalTotal.Sub(totalDiscount)))
	return result, appliedPromos, nil
}

func validateCart(input Input) error {
	if input.RestaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if input.Cart.DeliveryFee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, "delivery fee must not be negative")
	}
	if !input.Cart.ConsumptionMode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("unknown consumption mode %q", input.Cart.ConsumptionMode))
	}
	for i, item := range input.Cart.Items {
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("line %d: quantity must be at least 1", i))
		}
		if item.UnitPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("line %d: unit price must not be negative", i))
		}
	}
	return nil
}

func (s *service) observe(mode string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if pkgerrors.HasCode(err, pkgerrors.CodeEngineContention) {
			outcome = "contention"
		}
	}
	s.metrics.ObserveRun(mode, outcome, s.clk.Now().Sub(started))
}
