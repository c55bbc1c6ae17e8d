package settings

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/redis"
)

const cacheScope = "settings"

// Cashback is the loyalty policy read on every credit.
type Cashback struct {
	Percentage            decimal.Decimal `json:"percentage"`
	ExcludePromosFromBase bool            `json:"exclude_promos_from_base"`
}

// Provider serves per-restaurant loyalty settings, cached with a short TTL.
type Provider interface {
	Cashback(ctx context.Context, restaurantID uuid.UUID) (Cashback, error)
	UpdateCashback(ctx context.Context, restaurantID uuid.UUID, policy Cashback) error
}

// Cache is the subset of the redis client the provider needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type provider struct {
	db    *gorm.DB
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewProvider wires the settings provider. cache may be nil, in which case
// every read hits the database.
func NewProvider(db *gorm.DB, cache Cache, ttl time.Duration, log *logger.Logger) (Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("settings: db is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &provider{db: db, cache: cache, ttl: ttl, log: log}, nil
}

func (p *provider) Cashback(ctx context.Context, restaurantID uuid.UUID) (Cashback, error) {
	if restaurantID == uuid.Nil {
		return Cashback{}, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}

	key := redis.Key(cacheScope, restaurantID.String())
	if p.cache != nil {
		if raw, err := p.cache.Get(ctx, key); err == nil {
			var cached Cashback
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	var row models.RestaurantSettings
	err := p.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		First(&row).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return Cashback{}, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant settings not found")
		}
		return Cashback{}, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "loading settings")
	}

	policy := Cashback{
		Percentage:            row.CashbackPercentage,
		ExcludePromosFromBase: row.ExcludePromosFromBase,
	}

	if p.cache != nil {
		if encoded, err := json.Marshal(policy); err == nil {
			if err := p.cache.Set(ctx, key, string(encoded), p.ttl); err != nil && p.log != nil {
				p.log.Warn(ctx, "settings cache write failed")
			}
		}
	}
	return policy, nil
}

func (p *provider) UpdateCashback(ctx context.Context, restaurantID uuid.UUID, policy Cashback) error {
	if restaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if policy.Percentage.IsNegative() || policy.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "cashback percentage must be within 0..100")
	}

	row := models.RestaurantSettings{
		RestaurantID:          restaurantID,
		CashbackPercentage:    policy.Percentage,
		ExcludePromosFromBase: policy.ExcludePromosFromBase,
	}
	if err := p.db.WithContext(ctx).Save(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "saving settings")
	}

	if p.cache != nil {
		if err := p.cache.Del(ctx, redis.Key(cacheScope, restaurantID.String())); err != nil && p.log != nil {
			p.log.Warn(ctx, "settings cache invalidation failed")
		}
	}
	return nil
}
