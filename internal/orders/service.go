package orders

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/internal/cashback"
	"github.com/julienvidal/bistro-backoffice/internal/catalog"
	"github.com/julienvidal/bistro-backoffice/internal/engine"
	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/internal/settings"
	"github.com/julienvidal/bistro-backoffice/pkg/clock"
	"github.com/julienvidal/bistro-backoffice/pkg/config"
	"github.com/julienvidal/bistro-backoffice/pkg/db"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/metrics"
	"github.com/julienvidal/bistro-backoffice/pkg/money"
	"github.com/julienvidal/bistro-backoffice/pkg/outbox"
)

// errTransitionConflict aborts the guarded-write transaction on a lost
// optimistic race so the outer loop can reload and retry.
var errTransitionConflict = stdErrors.New("orders: transition conflict")

// CreateItem is one requested cart line; prices come from the catalog.
type CreateItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateParams carries one checkout request.
type CreateParams struct {
	RestaurantID uuid.UUID

	CustomerID    *uuid.UUID
	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	Items           []CreateItem
	DeliveryFee     decimal.Decimal
	ConsumptionMode enums.ConsumptionMode
	PickupAt        *time.Time

	PromoCode   string
	UseCashback bool

	PaymentMethod *enums.PaymentMethod
	Actor         string
}

// CreateResult is the checkout answer the boundary returns.
type CreateResult struct {
	Order                 *models.Order
	CashbackEarnedPreview decimal.Decimal
	CashbackUsed          decimal.Decimal
	Total                 decimal.Decimal
}

// PaymentParams records one payment attempt against an order.
type PaymentParams struct {
	Method         enums.PaymentMethod
	Status         enums.PaymentStatus
	AmountReceived *decimal.Decimal
	ChangeGiven    *decimal.Decimal
}

// Service owns order creation, status transitions, and payments.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, id uuid.UUID, target enums.OrderStatus, actor, reason string) (*models.Order, error)
	RecordPayment(ctx context.Context, id uuid.UUID, params PaymentParams) (*models.Order, error)

	// CompensateCompleted is the explicit admin path that cancels a
	// completed order and reverses its ledger movements.
	CompensateCompleted(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Order, error)
}

// Deps bundles the collaborators of the order service.
type Deps struct {
	Tx       *db.Client
	Repo     Repository
	Engine   engine.Service
	Ledger   cashback.Service
	Settings settings.Provider
	Registry promotions.Service
	Catalog  catalog.Lookup
	Events   *outbox.Service
	Clock    clock.Clock
	Config   config.EngineConfig
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
}

type service struct {
	deps Deps
}

// NewService wires the order state machine.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("orders: tx manager is required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("orders: repository is required")
	case deps.Engine == nil:
		return nil, fmt.Errorf("orders: engine is required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("orders: cashback ledger is required")
	case deps.Settings == nil:
		return nil, fmt.Errorf("orders: settings provider is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("orders: promotion registry is required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("orders: catalog lookup is required")
	case deps.Events == nil:
		return nil, fmt.Errorf("orders: outbox is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Config.TransitionRetries <= 0 {
		deps.Config.TransitionRetries = 3
	}
	if deps.Config.RetryBackoffMin <= 0 {
		deps.Config.RetryBackoffMin = 5 * time.Millisecond
	}
	if deps.Config.RetryBackoffMax < deps.Config.RetryBackoffMin {
		deps.Config.RetryBackoffMax = 50 * time.Millisecond
	}
	return &service{deps: deps}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.load(ctx, id)
}

func (s *service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := validateCreate(params); err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, params)
	if err != nil {
		return nil, err
	}

	customer, err := s.resolveCustomer(ctx, params)
	if err != nil {
		return nil, err
	}

	var customerCtx *engine.CustomerContext
	if customer != nil {
		customerCtx = &engine.CustomerContext{
			ID:          customer.ID,
			OrdersCount: customer.OrdersCount,
			LastOrderAt: customer.LastOrderAt,
		}
	}

	policy, err := s.deps.Settings.Cashback(ctx, params.RestaurantID)
	if err != nil {
		return nil, err
	}

	now := s.deps.Clock.Now()
	orderID := uuid.New()
	input := engine.Input{
		RestaurantID: params.RestaurantID,
		Cart: engine.Cart{
			Items:           items.cartLines,
			DeliveryFee:     params.DeliveryFee,
			ConsumptionMode: params.ConsumptionMode,
		},
		Customer: customerCtx,
		Code:     params.PromoCode,
	}

	var result *CreateResult
	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		priced, err := s.deps.Engine.Commit(ctx, tx, input, orderID)
		if err != nil {
			return err
		}

		cashbackToUse := decimal.Zero
		if params.UseCashback && customer != nil {
			cashbackToUse = money.Min(customer.CashbackBalance, priced.FinalTotal)
			if cashbackToUse.IsPositive() {
				if err := s.deps.Ledger.Redeem(ctx, tx, customer.ID, orderID, cashbackToUse); err != nil {
					return err
				}
			}
		}

		repo := s.deps.Repo.WithTx(tx)
		orderNumber, err := repo.NextOrderNumber(ctx, params.RestaurantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "allocating order number")
		}

		earnedPreview := decimal.Zero
		if customer != nil {
			earnedPreview = s.deps.Ledger.ComputeEarned(policy, input.Cart.Subtotal(), priced.TotalDiscount, priced.LoyaltyMultiplier)
		}

		order := &models.Order{
			ID:                orderID,
			OrderNumber:       orderNumber,
			RestaurantID:      params.RestaurantID,
			CustomerEmail:     params.CustomerEmail,
			CustomerName:      params.CustomerName,
			CustomerPhone:     params.CustomerPhone,
			ConsumptionMode:   params.ConsumptionMode,
			PickupAt:          params.PickupAt,
			Subtotal:          money.Round(input.Cart.Subtotal()),
			PromoDiscount:     priced.TotalDiscount,
			CashbackUsed:      cashbackToUse,
			DeliveryFee:       params.DeliveryFee,
			VATAmount:         items.vatAmount,
			Total:             money.ClampNonNegative(priced.FinalTotal.Sub(cashbackToUse)),
			PaymentStatus:     enums.PaymentStatusPending,
			PaymentMethod:     params.PaymentMethod,
			Status:            enums.OrderStatusNew,
			LoyaltyMultiplier: priced.LoyaltyMultiplier,
			CashbackEarned:    earnedPreview,
			AppliedPromotions: s.snapshotApplied(priced.Applied),
			Items:             items.lines,
			UpdatedAt:         now,
		}
		if customer != nil {
			id := customer.ID
			order.CustomerID = &id
			if order.CustomerEmail == "" {
				order.CustomerEmail = customer.Email
			}
		}
		s.mirrorLinePromotions(ctx, order, priced.Applied)

		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "inserting order")
		}

		if customer != nil {
			if err := repo.BumpCustomerOrderStats(ctx, customer.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "updating customer order stats")
			}
		}

		if err := s.deps.Events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         s.actorRef(params.Actor, params.RestaurantID),
			Version:       1,
			OccurredAt:    now,
			Data: map[string]any{
				"order_number":   orderNumber,
				"subtotal":       order.Subtotal.StringFixed(2),
				"promo_discount": order.PromoDiscount.StringFixed(2),
				"cashback_used":  order.CashbackUsed.StringFixed(2),
				"total":          order.Total.StringFixed(2),
			},
		}); err != nil {
			return err
		}
		if cashbackToUse.IsPositive() {
			if err := s.deps.Events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCashbackRedeemed,
				AggregateType: enums.AggregateCustomer,
				AggregateID:   *order.CustomerID,
				Version:       1,
				OccurredAt:    now,
				Data: map[string]any{
					"order_id": orderID.String(),
					"amount":   cashbackToUse.StringFixed(2),
				},
			}); err != nil {
				return err
			}
		}

		result = &CreateResult{
			Order:                 order,
			CashbackEarnedPreview: earnedPreview,
			CashbackUsed:          cashbackToUse,
			Total:                 order.Total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Transition(ctx context.Context, id uuid.UUID, target enums.OrderStatus, actor, reason string) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", target))
	}

	for attempt := 0; attempt <= s.deps.Config.TransitionRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.backoff())
		}

		order, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		// Completing a completed order is the idempotent no-op; the
		// credit already happened exactly once.
		if order.Status == enums.OrderStatusCompleted && target == enums.OrderStatusCompleted {
			return order, nil
		}
		if !order.Status.CanTransitionTo(target) {
			s.observeTransition(target, "rejected")
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("cannot transition from %s to %s", order.Status, target))
		}
		if target == enums.OrderStatusCanceled && order.Status != enums.OrderStatusNew && reason == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
		}
		if target == enums.OrderStatusCompleted && order.PaymentStatus != enums.PaymentStatusPaid {
			s.observeTransition(target, "rejected")
			return nil, pkgerrors.New(pkgerrors.CodePaymentRequired,
				"Le paiement est requis avant de finaliser la commande")
		}

		now := s.deps.Clock.Now()
		err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
			fields := map[string]any{
				"status":     target,
				"updated_at": now,
			}
			if target == enums.OrderStatusCanceled && reason != "" {
				fields["cancellation_reason"] = reason
			}

			var earned decimal.Decimal
			if target == enums.OrderStatusCompleted {
				var creditErr error
				earned, creditErr = s.deps.Ledger.Credit(ctx, tx, order)
				if creditErr != nil {
					return creditErr
				}
				if order.CustomerID != nil {
					fields["cashback_earned"] = earned
					fields["cashback_credited_at"] = now
				}
			}

			ok, err := s.deps.Repo.WithTx(tx).GuardedUpdate(ctx, order.ID, order.UpdatedAt, fields)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "updating order status")
			}
			if !ok {
				return errTransitionConflict
			}

			if err := s.deps.Events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         s.actorRef(actor, order.RestaurantID),
				Version:       1,
				OccurredAt:    now,
				Data: map[string]any{
					"from": order.Status.String(),
					"to":   target.String(),
				},
			}); err != nil {
				return err
			}
			if target == enums.OrderStatusCompleted && order.CustomerID != nil && earned.IsPositive() {
				if err := s.deps.Events.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventCashbackCredited,
					AggregateType: enums.AggregateCustomer,
					AggregateID:   *order.CustomerID,
					Version:       1,
					OccurredAt:    now,
					Data: map[string]any{
						"order_id": order.ID.String(),
						"amount":   earned.StringFixed(2),
					},
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if stdErrors.Is(err, errTransitionConflict) {
			if s.deps.Metrics != nil {
				s.deps.Metrics.IncConflict()
			}
			continue
		}
		if err != nil {
			s.observeTransition(target, "error")
			return nil, err
		}

		s.observeTransition(target, "ok")
		return s.load(ctx, id)
	}

	s.observeTransition(target, "conflict")
	return nil, pkgerrors.New(pkgerrors.CodeConcurrentUpdate, "order transition contended beyond retry budget")
}

func (s *service) RecordPayment(ctx context.Context, id uuid.UUID, params PaymentParams) (*models.Order, error) {
	if !params.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentInvalid, fmt.Sprintf("unknown payment method %q", params.Method))
	}
	if !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentInvalid, fmt.Sprintf("unknown payment status %q", params.Status))
	}

	for attempt := 0; attempt <= s.deps.Config.TransitionRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.backoff())
		}

		order, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if order.PaymentStatus == enums.PaymentStatusPaid {
			if params.Status == enums.PaymentStatusPaid &&
				order.PaymentMethod != nil && *order.PaymentMethod == params.Method {
				return order, nil
			}
			if params.Status != enums.PaymentStatusRefunded {
				return nil, pkgerrors.New(pkgerrors.CodePaymentInvalid, "payment already recorded")
			}
		}

		fields := map[string]any{
			"payment_status": params.Status,
			"payment_method": params.Method,
		}
		if params.Method == enums.PaymentMethodCash && params.Status == enums.PaymentStatusPaid {
			if params.AmountReceived == nil {
				return nil, pkgerrors.New(pkgerrors.CodePaymentInvalid, "amount received is required for cash payments")
			}
			if params.AmountReceived.LessThan(order.Total) {
				return nil, pkgerrors.New(pkgerrors.CodePaymentInvalid, "amount received is below the order total").
					WithDetails(map[string]any{
						"total":           order.Total.StringFixed(2),
						"amount_received": params.AmountReceived.StringFixed(2),
					})
			}
			change := money.Round(params.AmountReceived.Sub(order.Total))
			if params.ChangeGiven != nil && !params.ChangeGiven.Equal(change) {
				return nil, pkgerrors.New(pkgerrors.CodePaymentInvalid, "change given does not match amount received")
			}
			fields["amount_received"] = *params.AmountReceived
			fields["change_given"] = change
		}

		now := s.deps.Clock.Now()
		fields["updated_at"] = now

		err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.deps.Repo.WithTx(tx).GuardedUpdate(ctx, order.ID, order.UpdatedAt, fields)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "recording payment")
			}
			if !ok {
				return errTransitionConflict
			}
			return s.deps.Events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaymentRecorded,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				OccurredAt:    now,
				Data: map[string]any{
					"method": params.Method.String(),
					"status": params.Status.String(),
				},
			})
		})
		if stdErrors.Is(err, errTransitionConflict) {
			if s.deps.Metrics != nil {
				s.deps.Metrics.IncConflict()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.load(ctx, id)
	}

	return nil, pkgerrors.New(pkgerrors.CodeConcurrentUpdate, "payment recording contended beyond retry budget")
}

func (s *service) CompensateCompleted(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "compensation reason is required")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "only completed orders can be compensated")
	}

	now := s.deps.Clock.Now()
	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if order.CustomerID != nil {
			if err := s.deps.Ledger.RefundEarn(ctx, tx, order); err != nil {
				return err
			}
		}
		ok, err := s.deps.Repo.WithTx(tx).GuardedUpdate(ctx, order.ID, order.UpdatedAt, map[string]any{
			"status":              enums.OrderStatusCanceled,
			"cancellation_reason": reason,
			"updated_at":          now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "canceling order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrentUpdate, "order changed during compensation")
		}
		return s.deps.Events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         s.actorRef(actor, order.RestaurantID),
			Version:       1,
			OccurredAt:    now,
			Data: map[string]any{
				"from":   order.Status.String(),
				"to":     enums.OrderStatusCanceled.String(),
				"reason": reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

type resolvedItems struct {
	cartLines []engine.LineItem
	lines     []models.OrderLineItem
	vatAmount decimal.Decimal
}

// resolveItems loads catalog snapshots for the requested lines and computes
// the included-VAT amount.
func (s *service) resolveItems(ctx context.Context, params CreateParams) (*resolvedItems, error) {
	ids := make([]uuid.UUID, 0, len(params.Items))
	for _, item := range params.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.deps.Catalog.ProductsByID(ctx, params.RestaurantID, ids)
	if err != nil {
		return nil, err
	}

	resolved := &resolvedItems{vatAmount: decimal.Zero}
	vat := decimal.Zero
	for _, item := range params.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeCatalogMissing, "unknown product in cart").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		resolved.cartLines = append(resolved.cartLines, engine.LineItem{
			ProductID:  product.ID,
			CategoryID: product.CategoryID,
			Name:       product.Name,
			UnitPrice:  product.Price,
			Quantity:   item.Quantity,
		})
		resolved.lines = append(resolved.lines, models.OrderLineItem{
			ProductID:  product.ID,
			CategoryID: product.CategoryID,
			Name:       product.Name,
			UnitPrice:  product.Price,
			Qty:        item.Quantity,
			VATRate:    product.VATRate,
		})

		// Prices are VAT-inclusive; extract the tax share per line.
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		divisor := decimal.NewFromInt(100).Add(product.VATRate)
		if divisor.IsPositive() {
			vat = vat.Add(lineTotal.Mul(product.VATRate).Div(divisor))
		}
	}
	resolved.vatAmount = money.Round(vat)
	return resolved, nil
}

func (s *service) resolveCustomer(ctx context.Context, params CreateParams) (*models.Customer, error) {
	if params.CustomerID != nil {
		customer, err := s.deps.Repo.FindCustomer(ctx, *params.CustomerID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "loading customer")
		}
		return customer, nil
	}
	if params.CustomerEmail != "" {
		customer, err := s.deps.Repo.FindOrCreateCustomer(ctx, params.RestaurantID, params.CustomerEmail, params.CustomerName, params.CustomerPhone)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "resolving customer")
		}
		return customer, nil
	}
	return nil, nil
}

func (s *service) snapshotApplied(applied []engine.AppliedPromotion) []models.AppliedPromotion {
	snapshot := make([]models.AppliedPromotion, 0, len(applied))
	for _, entry := range applied {
		snapshot = append(snapshot, models.AppliedPromotion{
			PromotionID: entry.PromotionID,
			Name:        entry.Name,
			Kind:        entry.Kind,
			Discount:    entry.Discount,
			BadgeText:   entry.BadgeText,
			TicketText:  entry.TicketText,
		})
	}
	return snapshot
}

// mirrorLinePromotions copies item- and category-scoped applied promotions
// onto the line snapshots they priced.
func (s *service) mirrorLinePromotions(ctx context.Context, order *models.Order, applied []engine.AppliedPromotion) {
	for _, entry := range applied {
		if !lineScopedKind(entry.Kind) {
			continue
		}
		promo, err := s.deps.Registry.Get(ctx, entry.PromotionID)
		if err != nil {
			if s.deps.Logger != nil {
				s.deps.Logger.Warn(ctx, "applied promotion vanished before line snapshot")
			}
			continue
		}
		for i := range order.Items {
			line := engine.LineItem{
				ProductID:  order.Items[i].ProductID,
				CategoryID: order.Items[i].CategoryID,
				UnitPrice:  order.Items[i].UnitPrice,
				Quantity:   order.Items[i].Qty,
			}
			if !engine.LineEligible(*promo, line) {
				continue
			}
			order.Items[i].Promotions = append(order.Items[i].Promotions, models.AppliedPromotion{
				PromotionID: entry.PromotionID,
				Name:        entry.Name,
				Kind:        entry.Kind,
				BadgeText:   entry.BadgeText,
			})
		}
	}
}

func lineScopedKind(kind enums.PromotionKind) bool {
	switch kind {
	case enums.PromotionKindBOGO,
		enums.PromotionKindPercentItem,
		enums.PromotionKindPercentCategory,
		enums.PromotionKindFixedItem,
		enums.PromotionKindFixedCategory,
		enums.PromotionKindConditionalDiscount:
		return true
	default:
		return false
	}
}

func validateCreate(params CreateParams) error {
	if params.RestaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if len(params.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, "order needs at least one item")
	}
	for i, item := range params.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("line %d: product id is required", i))
		}
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("line %d: quantity must be at least 1", i))
		}
	}
	if params.DeliveryFee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, "delivery fee must not be negative")
	}
	if !params.ConsumptionMode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("unknown consumption mode %q", params.ConsumptionMode))
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.deps.Repo.FindByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "loading order")
	}
	return order, nil
}

func (s *service) actorRef(actor string, restaurantID uuid.UUID) *outbox.ActorRef {
	if actor == "" {
		return nil
	}
	return &outbox.ActorRef{Actor: actor, RestaurantID: restaurantID.String()}
}

func (s *service) observeTransition(target enums.OrderStatus, outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveTransition(target.String(), outcome)
	}
}

func (s *service) backoff() time.Duration {
	spread := s.deps.Config.RetryBackoffMax - s.deps.Config.RetryBackoffMin
	if spread <= 0 {
		return s.deps.Config.RetryBackoffMin
	}
	return s.deps.Config.RetryBackoffMin + time.Duration(rand.Int63n(int64(spread)))
}
