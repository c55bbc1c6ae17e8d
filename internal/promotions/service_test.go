package promotions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
)

func ten() decimal.Decimal {
	return decimal.NewFromInt(10)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T) (Service, Repository) {
	t.Helper()
	repo := NewRepository(setupPromotionsDB(t))
	svc, err := NewService(repo, testLogger())
	require.NoError(t, err)
	return svc, repo
}

func TestCreateValidatesDefinition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	promo := activePromotion(uuid.New(), "flash sale", 1)
	created, err := svc.Create(ctx, promo)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	bad := activePromotion(uuid.New(), "backwards", 1)
	bad.StartDate, bad.EndDate = bad.EndDate, bad.StartDate
	_, err = svc.Create(ctx, bad)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidDefinition))
}

func TestValidateDefinitionPerKind(t *testing.T) {
	restaurantID := uuid.New()
	base := func(kind enums.PromotionKind) *models.Promotion {
		promo := activePromotion(restaurantID, "probe", 1)
		promo.Kind = kind
		promo.Rule = models.PromotionRule{}
		return promo
	}

	cases := []struct {
		name    string
		mutate  func(*models.Promotion)
		wantErr bool
	}{
		{
			name: "bogo without scope",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindBOGO
				p.Rule = models.PromotionRule{BuyQty: 2, GetQty: 1}
			},
			wantErr: true,
		},
		{
			name: "bogo with scope",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindBOGO
				p.Rule = models.PromotionRule{BuyQty: 2, GetQty: 1}
				p.EligibleProductIDs = []uuid.UUID{uuid.New()}
			},
		},
		{
			name: "percent over 100",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindFlash
				p.Rule = models.PromotionRule{DiscountValue: decimal.NewFromInt(120)}
			},
			wantErr: true,
		},
		{
			name: "threshold without minimum",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindThreshold
				p.Rule = models.PromotionRule{
					DiscountType:  enums.DiscountTypeFixed,
					DiscountValue: decimal.NewFromInt(5),
				}
			},
			wantErr: true,
		},
		{
			name: "threshold complete",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindThreshold
				min := decimal.NewFromInt(30)
				p.MinCartAmount = &min
				p.Rule = models.PromotionRule{
					DiscountType:  enums.DiscountTypeFixed,
					DiscountValue: decimal.NewFromInt(5),
				}
			},
		},
		{
			name: "happy hour without window",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindHappyHour
				p.Rule = models.PromotionRule{DiscountValue: ten()}
			},
			wantErr: true,
		},
		{
			name: "multiplier above cap",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindLoyaltyMultiplier
				p.Rule = models.PromotionRule{MultiplierValue: decimal.NewFromInt(11)}
			},
			wantErr: true,
		},
		{
			name: "promo code without code",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindPromoCode
				p.CodeRequired = true
				p.Rule = models.PromotionRule{
					DiscountType:  enums.DiscountTypePercent,
					DiscountValue: ten(),
				}
			},
			wantErr: true,
		},
		{
			name: "time window half set",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindFlash
				p.Rule = models.PromotionRule{DiscountValue: ten()}
				start := 18 * 60
				p.StartMinute = &start
			},
			wantErr: true,
		},
		{
			name: "shipping free needs no payload",
			mutate: func(p *models.Promotion) {
				p.Kind = enums.PromotionKindShippingFree
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			promo := base(enums.PromotionKindFlash)
			tc.mutate(promo)
			err := ValidateDefinition(promo)
			if tc.wantErr {
				require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidDefinition), "got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestListActiveFiltersDayAndTime(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	restaurantID := uuid.New()

	allDay := activePromotion(restaurantID, "all day", 5)
	require.NoError(t, repo.Create(ctx, allDay))

	start, end := 18*60, 20*60
	evening := activePromotion(restaurantID, "happy hour", 9)
	evening.Kind = enums.PromotionKindHappyHour
	evening.StartMinute = &start
	evening.EndMinute = &end
	require.NoError(t, repo.Create(ctx, evening))

	weekendOnly := activePromotion(restaurantID, "weekend", 7)
	weekendOnly.DaysActive = []enums.Weekday{enums.WeekdaySat, enums.WeekdaySun}
	require.NoError(t, repo.Create(ctx, weekendOnly))

	// Monday 2026-06-15 at 12:00.
	mondayNoon := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	got, err := svc.ListActive(ctx, restaurantID, mondayNoon)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "all day", got[0].Name)

	// Saturday 2026-06-20 at 19:30 everything is live, ordered by priority.
	saturdayEvening := time.Date(2026, 6, 20, 19, 30, 0, 0, time.UTC)
	got, err = svc.ListActive(ctx, restaurantID, saturdayEvening)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "happy hour", got[0].Name)
	require.Equal(t, "weekend", got[1].Name)
	require.Equal(t, "all day", got[2].Name)

	// The window end is exclusive.
	saturdayClose := time.Date(2026, 6, 20, 20, 0, 0, 0, time.UTC)
	got, err = svc.ListActive(ctx, restaurantID, saturdayClose)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestIncrementUsageMapsExhaustion(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	limit := 1
	promo := activePromotion(uuid.New(), "capped", 1)
	promo.LimitTotal = &limit
	require.NoError(t, repo.Create(ctx, promo))

	require.NoError(t, svc.IncrementUsage(ctx, nil, promo.ID, 1))

	err := svc.IncrementUsage(ctx, nil, promo.ID, 1)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeLimitExhausted), "got %v", err)

	err = svc.IncrementUsage(ctx, nil, uuid.New(), 1)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestSetStatusTogglesActivation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	promo := activePromotion(uuid.New(), "toggle", 1)
	promo.Status = enums.PromotionStatusDraft
	promo.IsActive = false
	require.NoError(t, repo.Create(ctx, promo))

	updated, err := svc.SetStatus(ctx, promo.ID, enums.PromotionStatusActive)
	require.NoError(t, err)
	require.True(t, updated.IsActive)

	updated, err = svc.SetStatus(ctx, promo.ID, enums.PromotionStatusPaused)
	require.NoError(t, err)
	require.False(t, updated.IsActive)
}

func TestDeleteExpiresUsedPromotions(t *testing.T) {
	db := setupPromotionsDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	used := activePromotion(uuid.New(), "used", 1)
	require.NoError(t, repo.Create(ctx, used))
	require.NoError(t, db.Create(&models.PromotionUsage{
		PromotionID: used.ID,
		OrderID:     uuid.New(),
	}).Error)

	require.NoError(t, svc.Delete(ctx, used.ID))
	reloaded, err := svc.Get(ctx, used.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PromotionStatusExpired, reloaded.Status)

	fresh := activePromotion(used.RestaurantID, "fresh", 1)
	require.NoError(t, repo.Create(ctx, fresh))
	require.NoError(t, svc.Delete(ctx, fresh.ID))
	_, err = svc.Get(ctx, fresh.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
