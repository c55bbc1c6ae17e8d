package promotions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a promotions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, promo *models.Promotion) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var promo models.Promotion
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) Save(ctx context.Context, promo *models.Promotion) error {
	return r.db.WithContext(ctx).Save(promo).Error
}

func (r *repository) Remove(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Promotion{}).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Promotion, error) {
	query := r.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("restaurant_id = ?", filter.RestaurantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	var promos []models.Promotion
	err := query.
		Order("priority DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&promos).Error
	return promos, err
}

func (r *repository) ListActiveOn(ctx context.Context, restaurantID uuid.UUID, day time.Time) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Where("status = ?", "active").
		Where("is_active = ?", true).
		Where("start_date <= ?", day).
		Where("end_date >= ?", day).
		Order("priority DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&promos).Error
	return promos, err
}

func (r *repository) IncrementUsage(ctx context.Context, id uuid.UUID, n int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("id = ?", id).
		Where("limit_total IS NULL OR usage_count + ? <= limit_total", n).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", n))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DecrementUsage(ctx context.Context, id uuid.UUID, n int) error {
	return r.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("id = ?", id).
		Where("usage_count >= ?", n).
		UpdateColumn("usage_count", gorm.Expr("usage_count - ?", n)).Error
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.PromotionUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) CountCustomerUsage(ctx context.Context, promotionID, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PromotionUsage{}).
		Where("promotion_id = ?", promotionID).
		Where("customer_id = ?", customerID).
		Count(&count).Error
	return count, err
}

func (r *repository) HasUsage(ctx context.Context, promotionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PromotionUsage{}).
		Where("promotion_id = ?", promotionID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindByCampaignID(ctx context.Context, restaurantID uuid.UUID, campaignID string) (*models.Promotion, error) {
	var promo models.Promotion
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Where("ai_campaign_id = ?", campaignID).
		First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}
