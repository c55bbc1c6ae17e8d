package orders

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
)

// Repository is the persistence surface of the order state machine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)

	// NextOrderNumber allocates the next human-readable number for the
	// restaurant. Call inside the insert transaction.
	NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int64, error)

	// GuardedUpdate writes the given columns only when the stored
	// updated_at still matches guard. It reports false on a lost race.
	GuardedUpdate(ctx context.Context, orderID uuid.UUID, guard time.Time, fields map[string]any) (bool, error)

	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	FindOrCreateCustomer(ctx context.Context, restaurantID uuid.UUID, email, name, phone string) (*models.Customer, error)
	BumpCustomerOrderStats(ctx context.Context, customerID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	var current int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("restaurant_id = ?", restaurantID).
		Select("COALESCE(MAX(order_number), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (r *repository) GuardedUpdate(ctx context.Context, orderID uuid.UUID, guard time.Time, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("updated_at = ?", guard).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindOrCreateCustomer(ctx context.Context, restaurantID uuid.UUID, email, name, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Where("email = ?", email).
		First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	customer = models.Customer{
		RestaurantID: restaurantID,
		Email:        email,
		Name:         name,
		Phone:        phone,
	}
	if err := r.db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) BumpCustomerOrderStats(ctx context.Context, customerID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]any{
			"orders_count":  gorm.Expr("orders_count + 1"),
			"last_order_at": at,
		}).Error
}
