package promotions

import (
	"context"
	stdErrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	clockpkg "github.com/julienvidal/bistro-backoffice/pkg/clock"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
)

// Service is the promotion registry: the authoritative store of promotion
// definitions and the engine's source of live candidates.
type Service interface {
	Create(ctx context.Context, promo *models.Promotion) (*models.Promotion, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdateParams) (*models.Promotion, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.PromotionStatus) (*models.Promotion, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]models.Promotion, error)

	// ListActive returns the candidates live at the given instant, already
	// filtered on date, day-of-week, and time-of-day windows, in engine
	// application order.
	ListActive(ctx context.Context, restaurantID uuid.UUID, now time.Time) ([]models.Promotion, error)

	// IncrementUsage bumps the usage counter, failing with limit_exhausted
	// when the total cap is already consumed.
	IncrementUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error
	DecrementUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error
	RecordUsage(ctx context.Context, tx *gorm.DB, usage *models.PromotionUsage) error
	CountCustomerUsage(ctx context.Context, promotionID, customerID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
	log  *logger.Logger
}

// NewService wires the registry service.
func NewService(repo Repository, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions: repository is required")
	}
	if log == nil {
		return nil, fmt.Errorf("promotions: logger is required")
	}
	return &service{repo: repo, log: log}, nil
}

func (s *service) Create(ctx context.Context, promo *models.Promotion) (*models.Promotion, error) {
	if promo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidDefinition, "promotion payload is required")
	}
	if promo.Status == "" {
		promo.Status = enums.PromotionStatusDraft
	}
	if err := ValidateDefinition(promo); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "creating promotion")
	}
	return promo, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion id is required")
	}
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "loading promotion")
	}
	return promo, nil
}

// UpdateParams carries the mutable fields of a promotion definition. Nil
// pointers leave the stored value untouched.
type UpdateParams struct {
	Name        *string
	Description *string
	Rule        *models.PromotionRule

	EligibleProductIDs  *[]uuid.UUID
	EligibleCategoryIDs *[]uuid.UUID
	ExcludedProductIDs  *[]uuid.UUID
	ExcludedCategoryIDs *[]uuid.UUID

	StartDate   *time.Time
	EndDate     *time.Time
	StartMinute **int
	EndMinute   **int
	DaysActive  *[]enums.Weekday

	MinCartAmount **decimal.Decimal
	MaxCartAmount **decimal.Decimal

	PromoCode    **string
	CodeRequired *bool

	LimitPerCustomer **int
	LimitTotal       **int

	TargetNewCustomers *bool
	TargetInactiveDays **int

	Priority      *int
	Stackable     *bool
	StackingGroup *string

	IsActive *bool
}

func (s *service) Update(ctx context.Context, id uuid.UUID, patch UpdateParams) (*models.Promotion, error) {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyPatch(promo, patch)

	if err := ValidateDefinition(promo); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "updating promotion")
	}
	return promo, nil
}

func applyPatch(promo *models.Promotion, patch UpdateParams) {
	if patch.Name != nil {
		promo.Name = *patch.Name
	}
	if patch.Description != nil {
		promo.Description = *patch.Description
	}
	if patch.Rule != nil {
		promo.Rule = *patch.Rule
	}
	if patch.EligibleProductIDs != nil {
		promo.EligibleProductIDs = *patch.EligibleProductIDs
	}
	if patch.EligibleCategoryIDs != nil {
		promo.EligibleCategoryIDs = *patch.EligibleCategoryIDs
	}
	if patch.ExcludedProductIDs != nil {
		promo.ExcludedProductIDs = *patch.ExcludedProductIDs
	}
	if patch.ExcludedCategoryIDs != nil {
		promo.ExcludedCategoryIDs = *patch.ExcludedCategoryIDs
	}
	if patch.StartDate != nil {
		promo.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		promo.EndDate = *patch.EndDate
	}
	if patch.StartMinute != nil {
		promo.StartMinute = *patch.StartMinute
	}
	if patch.EndMinute != nil {
		promo.EndMinute = *patch.EndMinute
	}
	if patch.DaysActive != nil {
		promo.DaysActive = *patch.DaysActive
	}
	if patch.MinCartAmount != nil {
		promo.MinCartAmount = *patch.MinCartAmount
	}
	if patch.MaxCartAmount != nil {
		promo.MaxCartAmount = *patch.MaxCartAmount
	}
	if patch.PromoCode != nil {
		promo.PromoCode = *patch.PromoCode
	}
	if patch.CodeRequired != nil {
		promo.CodeRequired = *patch.CodeRequired
	}
	if patch.LimitPerCustomer != nil {
		promo.LimitPerCustomer = *patch.LimitPerCustomer
	}
	if patch.LimitTotal != nil {
		promo.LimitTotal = *patch.LimitTotal
	}
	if patch.TargetNewCustomers != nil {
		promo.TargetNewCustomers = *patch.TargetNewCustomers
	}
	if patch.TargetInactiveDays != nil {
		promo.TargetInactiveDays = *patch.TargetInactiveDays
	}
	if patch.Priority != nil {
		promo.Priority = *patch.Priority
	}
	if patch.Stackable != nil {
		promo.Stackable = *patch.Stackable
	}
	if patch.StackingGroup != nil {
		promo.StackingGroup = *patch.StackingGroup
	}
	if patch.IsActive != nil {
		promo.IsActive = *patch.IsActive
	}
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.PromotionStatus) (*models.Promotion, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown promotion status %q", status))
	}
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	promo.Status = status
	promo.IsActive = status == enums.PromotionStatusActive
	if err := s.repo.Save(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "updating promotion status")
	}
	return promo, nil
}

// Delete removes a promotion that was never used. Referenced promotions are
// kept for usage log integrity and marked expired instead.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	used, err := s.repo.HasUsage(ctx, promo.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "checking promotion usage")
	}
	if used {
		promo.Status = enums.PromotionStatusExpired
		promo.IsActive = false
		if err := s.repo.Save(ctx, promo); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "expiring promotion")
		}
		s.log.Info(s.log.WithField(ctx, "promotion_id", promo.ID.String()), "promotion has usage, expired instead of deleted")
		return nil
	}
	if err := s.repo.Remove(ctx, promo.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "deleting promotion")
	}
	return nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Promotion, error) {
	if filter.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	promos, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "listing promotions")
	}
	return promos, nil
}

func (s *service) ListActive(ctx context.Context, restaurantID uuid.UUID, now time.Time) ([]models.Promotion, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	promos, err := s.repo.ListActiveOn(ctx, restaurantID, day)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "listing active promotions")
	}

	weekday := enums.WeekdayFromTime(now.Weekday())
	minute := clockpkg.MinutesOfDay(now)

	live := promos[:0]
	for _, promo := range promos {
		if len(promo.DaysActive) > 0 && !slices.Contains(promo.DaysActive, weekday) {
			continue
		}
		if !withinMinuteWindow(promo.StartMinute, promo.EndMinute, minute) {
			continue
		}
		live = append(live, promo)
	}
	return live, nil
}

// withinMinuteWindow checks the half-open [start, end) time-of-day window.
// A promotion with no window is live all day.
func withinMinuteWindow(start, end *int, minute int) bool {
	if start == nil || end == nil {
		return true
	}
	return minute >= *start && minute < *end
}

func (s *service) IncrementUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error {
	if n <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage increment must be positive")
	}
	repo := s.repo.WithTx(tx)
	bumped, err := repo.IncrementUsage(ctx, id, n)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "incrementing promotion usage")
	}
	if bumped {
		return nil
	}
	// The guarded update matched no row: either the promotion is gone or
	// its total cap is consumed.
	if _, err := repo.FindByID(ctx, id); err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "loading promotion")
	}
	return pkgerrors.New(pkgerrors.CodeLimitExhausted, "promotion usage limit reached").
		WithDetails(map[string]any{"promotion_id": id})
}

func (s *service) DecrementUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error {
	if n <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage decrement must be positive")
	}
	if err := s.repo.WithTx(tx).DecrementUsage(ctx, id, n); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "decrementing promotion usage")
	}
	return nil
}

func (s *service) RecordUsage(ctx context.Context, tx *gorm.DB, usage *models.PromotionUsage) error {
	if usage == nil || usage.PromotionID == uuid.Nil || usage.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage log requires promotion and order ids")
	}
	if err := s.repo.WithTx(tx).CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "recording promotion usage")
	}
	return nil
}

func (s *service) CountCustomerUsage(ctx context.Context, promotionID, customerID uuid.UUID) (int64, error) {
	count, err := s.repo.CountCustomerUsage(ctx, promotionID, customerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "counting customer usage")
	}
	return count, nil
}
