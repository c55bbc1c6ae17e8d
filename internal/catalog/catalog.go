package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
)

// Lookup answers the catalog questions the core asks: does this id exist,
// and what are the checkout snapshot fields of a product. Full catalog CRUD
// lives outside the core.
type Lookup interface {
	ExistingProductIDs(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	ExistingCategoryIDs(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	ProductsByID(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type lookup struct {
	db *gorm.DB
}

// NewLookup wires a catalog lookup over the shared connection.
func NewLookup(db *gorm.DB) (Lookup, error) {
	if db == nil {
		return nil, fmt.Errorf("catalog: db is required")
	}
	return &lookup{db: db}, nil
}

func (l *lookup) ExistingProductIDs(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]bool{}, nil
	}
	var found []uuid.UUID
	err := l.db.WithContext(ctx).Model(&models.Product{}).
		Where("restaurant_id = ?", restaurantID).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "checking product ids")
	}
	return toSet(found), nil
}

func (l *lookup) ExistingCategoryIDs(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]bool{}, nil
	}
	var found []uuid.UUID
	err := l.db.WithContext(ctx).Model(&models.Category{}).
		Where("restaurant_id = ?", restaurantID).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "checking category ids")
	}
	return toSet(found), nil
}

func (l *lookup) ProductsByID(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Product{}, nil
	}
	var products []models.Product
	err := l.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "loading products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	return byID, nil
}

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
