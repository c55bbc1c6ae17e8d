package promotions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

// ListFilter narrows administrative promotion listings.
type ListFilter struct {
	RestaurantID uuid.UUID
	Status       *enums.PromotionStatus
	Kind         *enums.PromotionKind
}

// Repository is the persistence surface of the promotion registry.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, promo *models.Promotion) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	Save(ctx context.Context, promo *models.Promotion) error
	Remove(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]models.Promotion, error)

	// ListActiveOn returns status=active, is_active promotions whose date
	// window contains day, ordered by (priority desc, created_at asc, id asc).
	ListActiveOn(ctx context.Context, restaurantID uuid.UUID, day time.Time) ([]models.Promotion, error)

	// IncrementUsage performs the atomic compare-and-increment against
	// limit_total. It reports false when the cap would be exceeded.
	IncrementUsage(ctx context.Context, id uuid.UUID, n int) (bool, error)
	DecrementUsage(ctx context.Context, id uuid.UUID, n int) error

	CreateUsage(ctx context.Context, usage *models.PromotionUsage) error
	CountCustomerUsage(ctx context.Context, promotionID, customerID uuid.UUID) (int64, error)
	HasUsage(ctx context.Context, promotionID uuid.UUID) (bool, error)
	FindByCampaignID(ctx context.Context, restaurantID uuid.UUID, campaignID string) (*models.Promotion, error)
}
