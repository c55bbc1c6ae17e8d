package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
)

func setupPromotionsDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Promotion{}, &models.PromotionUsage{}))
	return db
}

func activePromotion(restaurantID uuid.UUID, name string, priority int) *models.Promotion {
	return &models.Promotion{
		RestaurantID: restaurantID,
		Name:         name,
		Kind:         enums.PromotionKindFlash,
		Rule:         models.PromotionRule{DiscountValue: ten()},
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Priority:     priority,
		Status:       enums.PromotionStatusActive,
		IsActive:     true,
	}
}

func TestListActiveOnOrdering(t *testing.T) {
	db := setupPromotionsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	restaurantID := uuid.New()

	low := activePromotion(restaurantID, "low", 1)
	high := activePromotion(restaurantID, "high", 9)
	mid := activePromotion(restaurantID, "mid", 5)
	for _, promo := range []*models.Promotion{low, high, mid} {
		require.NoError(t, repo.Create(ctx, promo))
	}

	// Outside the date window, inactive, and foreign rows must not appear.
	stale := activePromotion(restaurantID, "stale", 9)
	stale.EndDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	paused := activePromotion(restaurantID, "paused", 9)
	paused.Status = enums.PromotionStatusPaused
	foreign := activePromotion(uuid.New(), "foreign", 9)
	for _, promo := range []*models.Promotion{stale, paused, foreign} {
		require.NoError(t, repo.Create(ctx, promo))
	}

	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	got, err := repo.ListActiveOn(ctx, restaurantID, day)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "high", got[0].Name)
	require.Equal(t, "mid", got[1].Name)
	require.Equal(t, "low", got[2].Name)
}

func TestIncrementUsageRespectsTotalLimit(t *testing.T) {
	db := setupPromotionsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	limit := 2
	promo := activePromotion(uuid.New(), "capped", 1)
	promo.LimitTotal = &limit
	require.NoError(t, repo.Create(ctx, promo))

	for i := 0; i < limit; i++ {
		bumped, err := repo.IncrementUsage(ctx, promo.ID, 1)
		require.NoError(t, err)
		require.True(t, bumped)
	}

	bumped, err := repo.IncrementUsage(ctx, promo.ID, 1)
	require.NoError(t, err)
	require.False(t, bumped)

	reloaded, err := repo.FindByID(ctx, promo.ID)
	require.NoError(t, err)
	if reloaded.UsageCount != limit {
		t.Fatalf("usage count = %d, want %d", reloaded.UsageCount, limit)
	}
}

func TestIncrementUsageUnlimited(t *testing.T) {
	db := setupPromotionsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := activePromotion(uuid.New(), "open", 1)
	require.NoError(t, repo.Create(ctx, promo))

	bumped, err := repo.IncrementUsage(ctx, promo.ID, 3)
	require.NoError(t, err)
	require.True(t, bumped)

	require.NoError(t, repo.DecrementUsage(ctx, promo.ID, 1))

	reloaded, err := repo.FindByID(ctx, promo.ID)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.UsageCount)
}

func TestCountCustomerUsage(t *testing.T) {
	db := setupPromotionsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := activePromotion(uuid.New(), "tracked", 1)
	require.NoError(t, repo.Create(ctx, promo))

	customerID := uuid.New()
	otherCustomer := uuid.New()
	for _, cid := range []uuid.UUID{customerID, customerID, otherCustomer} {
		cid := cid
		require.NoError(t, db.Create(&models.PromotionUsage{
			PromotionID: promo.ID,
			OrderID:     uuid.New(),
			CustomerID:  &cid,
		}).Error)
	}

	count, err := repo.CountCustomerUsage(ctx, promo.ID, customerID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	used, err := repo.HasUsage(ctx, promo.ID)
	require.NoError(t, err)
	require.True(t, used)
}

func TestFindByCampaignID(t *testing.T) {
	db := setupPromotionsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	restaurantID := uuid.New()

	campaign := "camp-2026-06"
	promo := activePromotion(restaurantID, "ai draft", 1)
	promo.CampaignID = &campaign
	require.NoError(t, repo.Create(ctx, promo))

	found, err := repo.FindByCampaignID(ctx, restaurantID, campaign)
	require.NoError(t, err)
	require.Equal(t, promo.ID, found.ID)

	_, err = repo.FindByCampaignID(ctx, restaurantID, "unknown")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
