package aibridge

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/internal/catalog"
	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/pkg/clock"
	"github.com/julienvidal/bistro-backoffice/pkg/db"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/outbox"
)

const (
	defaultPriority = 5
	createdBy       = "ai_bridge"
)

var (
	one = decimal.NewFromInt(1)
	ten = decimal.NewFromInt(10)
)

// Suggestion is the externally produced marketing suggestion. The bridge
// shape-checks it; nothing in here is trusted.
type Suggestion struct {
	RestaurantID uuid.UUID `json:"restaurant_id" validate:"required"`
	Kind         string    `json:"kind" validate:"required"`
	Name         string    `json:"name" validate:"required,max=200"`
	Description  string    `json:"description" validate:"max=2000"`

	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount,omitempty"`
	Multiplier      *decimal.Decimal `json:"multiplier,omitempty"`

	BuyQty              int `json:"buy_qty,omitempty" validate:"omitempty,min=1"`
	GetQty              int `json:"get_qty,omitempty" validate:"omitempty,min=1"`
	ConditionalQuantity int `json:"conditional_quantity,omitempty" validate:"omitempty,min=2"`

	StartDate   string   `json:"start_date" validate:"required"`
	EndDate     string   `json:"end_date" validate:"required"`
	StartMinute *int     `json:"start_minute,omitempty" validate:"omitempty,min=0,max=1440"`
	EndMinute   *int     `json:"end_minute,omitempty" validate:"omitempty,min=0,max=1440"`
	DaysActive  []string `json:"days_active,omitempty"`

	MinCartAmount *decimal.Decimal `json:"min_cart_amount,omitempty"`
	PromoCode     *string          `json:"promo_code,omitempty"`

	LimitTotal         *int `json:"limit_total,omitempty" validate:"omitempty,min=1"`
	LimitPerCustomer   *int `json:"limit_per_customer,omitempty" validate:"omitempty,min=1"`
	TargetNewCustomers bool `json:"target_new_customers,omitempty"`
	TargetInactiveDays *int `json:"target_inactive_days,omitempty" validate:"omitempty,min=1"`

	EligibleProductIDs  []uuid.UUID `json:"eligible_product_ids,omitempty"`
	EligibleCategoryIDs []uuid.UUID `json:"eligible_category_ids,omitempty"`
	ExcludedProductIDs  []uuid.UUID `json:"excluded_product_ids,omitempty"`
	ExcludedCategoryIDs []uuid.UUID `json:"excluded_category_ids,omitempty"`

	Stackable *bool `json:"stackable,omitempty"`
	Priority  *int  `json:"priority,omitempty" validate:"omitempty,min=0,max=100"`
}

// Result reports the draft promotion a suggestion resolved to.
type Result struct {
	PromotionID uuid.UUID `json:"promotion_id"`
	Created     bool      `json:"created"`
}

// Service turns validated suggestions into draft promotions.
type Service interface {
	AcceptSuggestion(ctx context.Context, suggestion Suggestion, campaignID string) (Result, error)
}

type service struct {
	tx       *db.Client
	repo     promotions.Repository
	catalog  catalog.Lookup
	events   *outbox.Service
	clk      clock.Clock
	validate *validator.Validate
	log      *logger.Logger
}

// NewService wires the suggestion bridge.
func NewService(tx *db.Client, repo promotions.Repository, lookup catalog.Lookup, events *outbox.Service, clk clock.Clock, log *logger.Logger) (Service, error) {
	switch {
	case tx == nil:
		return nil, fmt.Errorf("aibridge: tx manager is required")
	case repo == nil:
		return nil, fmt.Errorf("aibridge: promotion repository is required")
	case lookup == nil:
		return nil, fmt.Errorf("aibridge: catalog lookup is required")
	case events == nil:
		return nil, fmt.Errorf("aibridge: outbox is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{
		tx:       tx,
		repo:     repo,
		catalog:  lookup,
		events:   events,
		clk:      clk,
		validate: validator.New(),
		log:      log,
	}, nil
}

func (s *service) AcceptSuggestion(ctx context.Context, suggestion Suggestion, campaignID string) (Result, error) {
	if campaignID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, "campaign id is required")
	}
	if err := s.validate.Struct(suggestion); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInvalidSuggestion, err, "suggestion failed shape check")
	}

	promo, err := s.normalize(ctx, suggestion, campaignID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByCampaignID(ctx, suggestion.RestaurantID, campaignID)
		if err == nil {
			result = Result{PromotionID: existing.ID, Created: false}
			return nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "looking up campaign")
		}

		if err := repo.Create(ctx, promo); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "creating draft promotion")
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPromotionDrafted,
			AggregateType: enums.AggregatePromotion,
			AggregateID:   promo.ID,
			Version:       1,
			OccurredAt:    s.clk.Now(),
			Data: map[string]any{
				"campaign_id": campaignID,
				"kind":        promo.Kind.String(),
				"name":        promo.Name,
			},
		}); err != nil {
			return err
		}
		result = Result{PromotionID: promo.ID, Created: true}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// normalize maps the free-form suggestion onto the registry schema, checks
// the numeric ranges, and drops unknown catalog references.
func (s *service) normalize(ctx context.Context, suggestion Suggestion, campaignID string) (*models.Promotion, error) {
	kind, err := enums.ParsePromotionKind(suggestion.Kind)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, err.Error())
	}

	startDate, err := parseDate(suggestion.StartDate)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, fmt.Sprintf("unparseable start date %q", suggestion.StartDate))
	}
	endDate, err := parseDate(suggestion.EndDate)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, fmt.Sprintf("unparseable end date %q", suggestion.EndDate))
	}
	if startDate.After(endDate) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, "start date is after end date")
	}

	if suggestion.DiscountPercent != nil {
		if !suggestion.DiscountPercent.IsPositive() || suggestion.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, "discount percent must be within (0, 100]")
		}
	}
	if suggestion.Multiplier != nil {
		if suggestion.Multiplier.LessThan(one) || suggestion.Multiplier.GreaterThan(ten) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, "multiplier must be within [1, 10]")
		}
	}

	days := make([]enums.Weekday, 0, len(suggestion.DaysActive))
	for _, raw := range suggestion.DaysActive {
		day, err := enums.ParseWeekday(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, err.Error())
		}
		days = append(days, day)
	}

	scope, err := s.filterScope(ctx, suggestion)
	if err != nil {
		return nil, err
	}

	rule, codeRequired, err := buildRule(kind, suggestion)
	if err != nil {
		return nil, err
	}

	stackable := false
	if suggestion.Stackable != nil {
		stackable = *suggestion.Stackable
	}
	priority := defaultPriority
	if suggestion.Priority != nil {
		priority = *suggestion.Priority
	}

	campaign := campaignID
	promo := &models.Promotion{
		RestaurantID: suggestion.RestaurantID,
		Name:         suggestion.Name,
		Description:  suggestion.Description,
		Kind:         kind,
		Rule:         rule,

		EligibleProductIDs:  scope.eligibleProducts,
		EligibleCategoryIDs: scope.eligibleCategories,
		ExcludedProductIDs:  scope.excludedProducts,
		ExcludedCategoryIDs: scope.excludedCategories,

		StartDate:   startDate,
		EndDate:     endDate,
		StartMinute: suggestion.StartMinute,
		EndMinute:   suggestion.EndMinute,
		DaysActive:  days,

		MinCartAmount: suggestion.MinCartAmount,

		PromoCode:    suggestion.PromoCode,
		CodeRequired: codeRequired,

		LimitPerCustomer: suggestion.LimitPerCustomer,
		LimitTotal:       suggestion.LimitTotal,

		TargetNewCustomers: suggestion.TargetNewCustomers,
		TargetInactiveDays: suggestion.TargetInactiveDays,

		Priority:  priority,
		Stackable: stackable,

		Status:   enums.PromotionStatusDraft,
		IsActive: false,

		CampaignID: &campaign,
		Analytics: map[string]any{
			"ai_campaign_id": campaignID,
			"suggestion":     suggestion,
		},
		CreatedBy: createdBy,
	}

	if err := promotions.ValidateDefinition(promo); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInvalidDefinition {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, typed.Message())
		}
		return nil, err
	}
	return promo, nil
}

type filteredScope struct {
	eligibleProducts   []uuid.UUID
	eligibleCategories []uuid.UUID
	excludedProducts   []uuid.UUID
	excludedCategories []uuid.UUID
}

// filterScope intersects the suggestion's id lists with the catalog. Unknown
// ids are dropped with a warning; a scoped suggestion whose whole eligible
// scope is unknown is refused.
func (s *service) filterScope(ctx context.Context, suggestion Suggestion) (filteredScope, error) {
	wasScoped := len(suggestion.EligibleProductIDs) > 0 || len(suggestion.EligibleCategoryIDs) > 0

	eligibleProducts, err := s.keepKnownProducts(ctx, suggestion.RestaurantID, suggestion.EligibleProductIDs)
	if err != nil {
		return filteredScope{}, err
	}
	excludedProducts, err := s.keepKnownProducts(ctx, suggestion.RestaurantID, suggestion.ExcludedProductIDs)
	if err != nil {
		return filteredScope{}, err
	}
	eligibleCategories, err := s.keepKnownCategories(ctx, suggestion.RestaurantID, suggestion.EligibleCategoryIDs)
	if err != nil {
		return filteredScope{}, err
	}
	excludedCategories, err := s.keepKnownCategories(ctx, suggestion.RestaurantID, suggestion.ExcludedCategoryIDs)
	if err != nil {
		return filteredScope{}, err
	}

	if wasScoped && len(eligibleProducts) == 0 && len(eligibleCategories) == 0 {
		return filteredScope{}, pkgerrors.New(pkgerrors.CodeCatalogMissing,
			"every id in the suggestion's eligible scope is unknown")
	}

	return filteredScope{
		eligibleProducts:   eligibleProducts,
		eligibleCategories: eligibleCategories,
		excludedProducts:   excludedProducts,
		excludedCategories: excludedCategories,
	}, nil
}

func (s *service) keepKnownProducts(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	known, err := s.catalog.ExistingProductIDs(ctx, restaurantID, ids)
	if err != nil {
		return nil, err
	}
	return s.keep(ctx, ids, known, "product"), nil
}

func (s *service) keepKnownCategories(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	known, err := s.catalog.ExistingCategoryIDs(ctx, restaurantID, ids)
	if err != nil {
		return nil, err
	}
	return s.keep(ctx, ids, known, "category"), nil
}

func (s *service) keep(ctx context.Context, ids []uuid.UUID, known map[uuid.UUID]bool, label string) []uuid.UUID {
	kept := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			kept = append(kept, id)
			continue
		}
		if s.log != nil {
			logCtx := s.log.WithFields(ctx, map[string]any{"id": id.String(), "ref": label})
			s.log.Warn(logCtx, "suggestion references unknown catalog id, dropped")
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// buildRule maps the suggestion's flat numeric fields onto the kind-tagged
// rule payload.
func buildRule(kind enums.PromotionKind, suggestion Suggestion) (models.PromotionRule, bool, error) {
	var rule models.PromotionRule
	codeRequired := false

	percent := func() (decimal.Decimal, error) {
		if suggestion.DiscountPercent == nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeInvalidSuggestion,
				fmt.Sprintf("%s requires a discount percent", kind))
		}
		return *suggestion.DiscountPercent, nil
	}

	switch kind {
	case enums.PromotionKindBOGO:
		rule.BuyQty = suggestion.BuyQty
		rule.GetQty = suggestion.GetQty
		rule.CheapestFree = true
	case enums.PromotionKindPercentItem, enums.PromotionKindPercentCategory,
		enums.PromotionKindNewCustomer, enums.PromotionKindInactiveCustomer,
		enums.PromotionKindHappyHour, enums.PromotionKindFlash, enums.PromotionKindSeasonal:
		value, err := percent()
		if err != nil {
			return rule, false, err
		}
		rule.DiscountValue = value
	case enums.PromotionKindFixedItem, enums.PromotionKindFixedCategory:
		if suggestion.DiscountAmount == nil {
			return rule, false, pkgerrors.New(pkgerrors.CodeInvalidSuggestion,
				fmt.Sprintf("%s requires a discount amount", kind))
		}
		rule.DiscountValue = *suggestion.DiscountAmount
	case enums.PromotionKindConditionalDiscount:
		value, err := percent()
		if err != nil {
			return rule, false, err
		}
		rule.ConditionalQuantity = suggestion.ConditionalQuantity
		rule.ConditionalDiscountPercent = value
	case enums.PromotionKindThreshold, enums.PromotionKindPromoCode:
		switch {
		case suggestion.DiscountPercent != nil:
			rule.DiscountType = enums.DiscountTypePercent
			rule.DiscountValue = *suggestion.DiscountPercent
		case suggestion.DiscountAmount != nil:
			rule.DiscountType = enums.DiscountTypeFixed
			rule.DiscountValue = *suggestion.DiscountAmount
		default:
			return rule, false, pkgerrors.New(pkgerrors.CodeInvalidSuggestion,
				fmt.Sprintf("%s requires a discount percent or amount", kind))
		}
		if kind == enums.PromotionKindPromoCode {
			codeRequired = true
		}
	case enums.PromotionKindShippingFree:
		// No payload.
	case enums.PromotionKindLoyaltyMultiplier:
		if suggestion.Multiplier == nil {
			return rule, false, pkgerrors.New(pkgerrors.CodeInvalidSuggestion, "loyalty_multiplier requires a multiplier")
		}
		rule.MultiplierValue = *suggestion.Multiplier
	}
	return rule, codeRequired, nil
}

// parseDate accepts RFC3339 timestamps and bare dates.
func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}
