package engine

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/pkg/clock"
	"github.com/julienvidal/bistro-backoffice/pkg/config"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
)

type engineFixture struct {
	db       *gorm.DB
	registry promotions.Service
	repo     promotions.Repository
	engine   Service
	now      time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	// Each pooled connection to a plain "file::memory:" DSN gets its own
	// empty database, and shared-cache mode hits table locks when one
	// connection reads while another holds an open write transaction. A
	// WAL-mode temp file gives every connection the same schema and lets
	// reads proceed alongside writes, like the real server would.
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Promotion{}, &models.PromotionUsage{}))

	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	repo := promotions.NewRepository(db)
	registry, err := promotions.NewService(repo, log)
	require.NoError(t, err)

	// Tuesday 2026-06-16 at 16:00 local.
	now := time.Date(2026, 6, 16, 16, 0, 0, 0, time.UTC)
	eng, err := NewService(registry, clock.Fixed(now), config.EngineConfig{CommitRetries: 3}, nil, log)
	require.NoError(t, err)

	return &engineFixture{db: db, registry: registry, repo: repo, engine: eng, now: now}
}

func (f *engineFixture) seed(t *testing.T, promo *models.Promotion) *models.Promotion {
	t.Helper()
	promo.Status = enums.PromotionStatusActive
	promo.IsActive = true
	if promo.StartDate.IsZero() {
		promo.StartDate = f.now.AddDate(0, -1, 0)
	}
	if promo.EndDate.IsZero() {
		promo.EndDate = f.now.AddDate(0, 1, 0)
	}
	require.NoError(t, f.repo.Create(context.Background(), promo))
	return promo
}

func euros(value string) decimal.Decimal {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func cartOf(items ...LineItem) Cart {
	return Cart{Items: items, DeliveryFee: decimal.Zero, ConsumptionMode: enums.ConsumptionModeTakeaway}
}

func TestBogoOnBurgers(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()
	burger := uuid.New()

	f.seed(t, &models.Promotion{
		RestaurantID:       restaurantID,
		Name:               "burger offert",
		Kind:               enums.PromotionKindBOGO,
		Rule:               models.PromotionRule{BuyQty: 1, GetQty: 1, CheapestFree: true},
		EligibleProductIDs: []uuid.UUID{burger},
		Priority:           10,
	})

	result, err := f.engine.Preview(context.Background(), Input{
		RestaurantID: restaurantID,
		Cart: cartOf(LineItem{
			ProductID:  burger,
			CategoryID: uuid.New(),
			Name:       "burger",
			UnitPrice:  euros("10.00"),
			Quantity:   2,
		}),
	})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.True(t, result.TotalDiscount.Equal(euros("10.00")), "discount = %s", result.TotalDiscount)
	require.True(t, result.FinalTotal.Equal(euros("10.00")), "final = %s", result.FinalTotal)
}

func TestHappyHourBlocksStackableCode(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	start, end := 15*60, 18*60
	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "happy hour",
		Kind:         enums.PromotionKindHappyHour,
		Rule:         models.PromotionRule{DiscountValue: euros("20")},
		StartMinute:  &start,
		EndMinute:    &end,
		Priority:     10,
	})
	code := "HELLO"
	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "code hello",
		Kind:         enums.PromotionKindPromoCode,
		Rule: models.PromotionRule{
			DiscountType:  enums.DiscountTypeFixed,
			DiscountValue: euros("5.00"),
		},
		PromoCode:    &code,
		CodeRequired: true,
		Priority:     5,
		Stackable:    true,
	})

	result, err := f.engine.Preview(context.Background(), Input{
		RestaurantID: restaurantID,
		Code:         "HELLO",
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "menu",
			UnitPrice:  euros("30.00"),
			Quantity:   1,
		}),
	})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.Equal(t, "happy hour", result.Applied[0].Name)
	require.True(t, result.TotalDiscount.Equal(euros("6.00")), "discount = %s", result.TotalDiscount)
	require.True(t, result.FinalTotal.Equal(euros("24.00")), "final = %s", result.FinalTotal)
}

func TestThresholdBelowMinimumFiltered(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	min := euros("40.00")
	f.seed(t, &models.Promotion{
		RestaurantID:  restaurantID,
		Name:          "big cart",
		Kind:          enums.PromotionKindThreshold,
		MinCartAmount: &min,
		Rule: models.PromotionRule{
			DiscountType:  enums.DiscountTypePercent,
			DiscountValue: euros("10"),
		},
	})

	result, err := f.engine.Preview(context.Background(), Input{
		RestaurantID: restaurantID,
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "menu",
			UnitPrice:  euros("35.00"),
			Quantity:   1,
		}),
	})
	require.NoError(t, err)
	require.Empty(t, result.Applied)
	require.True(t, result.FinalTotal.Equal(euros("35.00")))
}

func TestPreviewIsDeterministic(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "flash",
		Kind:         enums.PromotionKindFlash,
		Rule:         models.PromotionRule{DiscountValue: euros("15")},
		Priority:     3,
	})
	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "saison",
		Kind:         enums.PromotionKindSeasonal,
		Rule:         models.PromotionRule{DiscountValue: euros("5")},
		Priority:     1,
		Stackable:    true,
	})

	input := Input{
		RestaurantID: restaurantID,
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "plat",
			UnitPrice:  euros("19.90"),
			Quantity:   3,
		}),
	}

	first, err := f.engine.Preview(context.Background(), input)
	require.NoError(t, err)
	second, err := f.engine.Preview(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.False(t, first.FinalTotal.IsNegative())
}

func TestStackingGroupNeverDoubles(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	for _, name := range []string{"groupe a", "groupe b"} {
		f.seed(t, &models.Promotion{
			RestaurantID:  restaurantID,
			Name:          name,
			Kind:          enums.PromotionKindSeasonal,
			Rule:          models.PromotionRule{DiscountValue: euros("10")},
			Stackable:     true,
			StackingGroup: "saison",
		})
	}

	result, err := f.engine.Preview(context.Background(), Input{
		RestaurantID: restaurantID,
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "plat",
			UnitPrice:  euros("20.00"),
			Quantity:   1,
		}),
	})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
}

func TestLoyaltyMultiplierPicksLargest(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "x2",
		Kind:         enums.PromotionKindLoyaltyMultiplier,
		Rule:         models.PromotionRule{MultiplierValue: euros("2")},
		Priority:     9,
	})
	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "x3",
		Kind:         enums.PromotionKindLoyaltyMultiplier,
		Rule:         models.PromotionRule{MultiplierValue: euros("3")},
		Priority:     1,
	})

	result, err := f.engine.Preview(context.Background(), Input{
		RestaurantID: restaurantID,
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "plat",
			UnitPrice:  euros("12.00"),
			Quantity:   1,
		}),
	})
	require.NoError(t, err)
	require.True(t, result.LoyaltyMultiplier.Equal(euros("3")))
	require.True(t, result.TotalDiscount.IsZero())
	require.Len(t, result.Applied, 1)
	require.Equal(t, "x3", result.Applied[0].Name)
}

func TestShippingFreeCappedAtDeliveryFee(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "livraison offerte",
		Kind:         enums.PromotionKindShippingFree,
	})

	cart := cartOf(LineItem{
		ProductID:  uuid.New(),
		CategoryID: uuid.New(),
		Name:       "plat",
		UnitPrice:  euros("18.00"),
		Quantity:   1,
	})
	cart.DeliveryFee = euros("3.50")
	cart.ConsumptionMode = enums.ConsumptionModeDelivery

	result, err := f.engine.Preview(context.Background(), Input{RestaurantID: restaurantID, Cart: cart})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.True(t, result.TotalDiscount.Equal(euros("3.50")))
	require.True(t, result.FinalTotal.Equal(euros("18.00")))
}

func TestInvalidCartRejected(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Preview(context.Background(), Input{
		RestaurantID: uuid.New(),
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "plat",
			UnitPrice:  euros("-1.00"),
			Quantity:   1,
		}),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidCart))

	_, err = f.engine.Preview(context.Background(), Input{
		RestaurantID: uuid.New(),
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "plat",
			UnitPrice:  euros("1.00"),
			Quantity:   0,
		}),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidCart))
}

func TestEmptyCartPricesToZero(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.Preview(context.Background(), Input{
		RestaurantID: uuid.New(),
		Cart:         Cart{ConsumptionMode: enums.ConsumptionModeTakeaway},
	})
	require.NoError(t, err)
	require.Empty(t, result.Applied)
	require.True(t, result.FinalTotal.IsZero())
}

func TestNewCustomerTargeting(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "bienvenue",
		Kind:         enums.PromotionKindNewCustomer,
		Rule:         models.PromotionRule{DiscountValue: euros("10")},
	})

	cart := cartOf(LineItem{
		ProductID:  uuid.New(),
		CategoryID: uuid.New(),
		Name:       "plat",
		UnitPrice:  euros("20.00"),
		Quantity:   1,
	})

	// Guest checkout: customer-targeted promotion never applies.
	result, err := f.engine.Preview(context.Background(), Input{RestaurantID: restaurantID, Cart: cart})
	require.NoError(t, err)
	require.Empty(t, result.Applied)

	// Returning customer: dropped too.
	result, err = f.engine.Preview(context.Background(), Input{
		RestaurantID: restaurantID,
		Cart:         cart,
		Customer:     &CustomerContext{ID: uuid.New(), OrdersCount: 4},
	})
	require.NoError(t, err)
	require.Empty(t, result.Applied)

	// First order: applies.
	result, err = f.engine.Preview(context.Background(), Input{
		RestaurantID: restaurantID,
		Cart:         cart,
		Customer:     &CustomerContext{ID: uuid.New()},
	})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.True(t, result.TotalDiscount.Equal(euros("2.00")))
}

func TestCommitBurnsCountersAndLogsUsage(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()
	customerID := uuid.New()

	promo := f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "flash",
		Kind:         enums.PromotionKindFlash,
		Rule:         models.PromotionRule{DiscountValue: euros("10")},
	})

	orderID := uuid.New()
	input := Input{
		RestaurantID: restaurantID,
		Customer:     &CustomerContext{ID: customerID, OrdersCount: 2},
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "plat",
			UnitPrice:  euros("25.00"),
			Quantity:   2,
		}),
	}

	var result PricedResult
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var commitErr error
		result, commitErr = f.engine.Commit(context.Background(), tx, input, orderID)
		return commitErr
	})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)

	reloaded, err := f.repo.FindByID(context.Background(), promo.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.UsageCount)

	var logs []models.PromotionUsage
	require.NoError(t, f.db.Where("order_id = ?", orderID).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, promo.ID, logs[0].PromotionID)
	require.True(t, logs[0].DiscountAmount.Equal(euros("5.00")))
}

func TestCommitRepricesWhenCounterExhausted(t *testing.T) {
	f := newEngineFixture(t)
	restaurantID := uuid.New()

	limit := 1
	capped := f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "capped",
		Kind:         enums.PromotionKindFlash,
		Rule:         models.PromotionRule{DiscountValue: euros("20")},
		Priority:     10,
		LimitTotal:   &limit,
	})
	fallback := f.seed(t, &models.Promotion{
		RestaurantID: restaurantID,
		Name:         "fallback",
		Kind:         enums.PromotionKindSeasonal,
		Rule:         models.PromotionRule{DiscountValue: euros("5")},
		Priority:     1,
	})

	// Exhaust the cap behind the engine's back, then hand the engine a
	// stale candidate list so the race surfaces at increment time.
	require.NoError(t, f.db.Model(&models.Promotion{}).
		Where("id = ?", capped.ID).
		UpdateColumn("usage_count", 1).Error)

	stale, err := NewService(&staleUsageRegistry{Service: f.registry}, clock.Fixed(f.now), config.EngineConfig{CommitRetries: 3}, nil, nil)
	require.NoError(t, err)

	input := Input{
		RestaurantID: restaurantID,
		Cart: cartOf(LineItem{
			ProductID:  uuid.New(),
			CategoryID: uuid.New(),
			Name:       "plat",
			UnitPrice:  euros("10.00"),
			Quantity:   1,
		}),
	}

	var result PricedResult
	err = f.db.Transaction(func(tx *gorm.DB) error {
		var commitErr error
		result, commitErr = stale.Commit(context.Background(), tx, input, uuid.New())
		return commitErr
	})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.Equal(t, fallback.ID, result.Applied[0].PromotionID)
}

// staleUsageRegistry reports usage_count as zero on reads, reproducing the
// window between candidate listing and counter increment.
type staleUsageRegistry struct {
	promotions.Service
}

func (s *staleUsageRegistry) ListActive(ctx context.Context, restaurantID uuid.UUID, now time.Time) ([]models.Promotion, error) {
	promos, err := s.Service.ListActive(ctx, restaurantID, now)
	if err != nil {
		return nil, err
	}
	for i := range promos {
		promos[i].UsageCount = 0
	}
	return promos, nil
}
