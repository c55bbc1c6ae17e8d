package aibridge

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/julienvidal/bistro-backoffice/internal/catalog"
	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/pkg/clock"
	dbpkg "github.com/julienvidal/bistro-backoffice/pkg/db"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/outbox"
)

type bridgeFixture struct {
	db           *gorm.DB
	svc          Service
	restaurantID uuid.UUID
	burger       models.Product
	category     models.Category
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Promotion{},
		&models.PromotionUsage{},
		&models.Product{},
		&models.Category{},
		&models.OutboxEvent{},
	))

	lookup, err := catalog.NewLookup(db)
	require.NoError(t, err)
	svc, err := NewService(
		dbpkg.FromConn(db),
		promotions.NewRepository(db),
		lookup,
		outbox.NewService(outbox.NewRepository(db), nil),
		clock.Fixed(time.Date(2026, 6, 16, 12, 0, 0, 0, time.UTC)),
		nil,
	)
	require.NoError(t, err)

	f := &bridgeFixture{db: db, svc: svc, restaurantID: uuid.New()}
	f.category = models.Category{RestaurantID: f.restaurantID, Name: "plats"}
	require.NoError(t, db.Create(&f.category).Error)
	f.burger = models.Product{
		RestaurantID: f.restaurantID,
		CategoryID:   f.category.ID,
		Name:         "burger",
		Price:        decimal.NewFromInt(10),
		VATRate:      decimal.NewFromInt(10),
		IsActive:     true,
	}
	require.NoError(t, db.Create(&f.burger).Error)
	return f
}

func pct(value string) *decimal.Decimal {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return &parsed
}

func (f *bridgeFixture) suggestion() Suggestion {
	return Suggestion{
		RestaurantID:       f.restaurantID,
		Kind:               "percent_item",
		Name:               "midi burgers",
		DiscountPercent:    pct("20"),
		StartDate:          "2026-07-01",
		EndDate:            "2026-07-31",
		EligibleProductIDs: []uuid.UUID{f.burger.ID},
	}
}

func TestAcceptSuggestionCreatesDraft(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	result, err := f.svc.AcceptSuggestion(ctx, f.suggestion(), "camp-1")
	require.NoError(t, err)
	require.True(t, result.Created)

	var promo models.Promotion
	require.NoError(t, f.db.First(&promo, "id = ?", result.PromotionID).Error)
	require.Equal(t, enums.PromotionStatusDraft, promo.Status)
	require.False(t, promo.IsActive)
	require.Equal(t, 5, promo.Priority)
	require.False(t, promo.Stackable)
	require.Equal(t, "ai_bridge", promo.CreatedBy)
	require.NotNil(t, promo.CampaignID)
	require.Equal(t, "camp-1", *promo.CampaignID)
	require.Equal(t, "camp-1", promo.Analytics["ai_campaign_id"])
	require.Contains(t, promo.Analytics, "suggestion")

	var events []models.OutboxEvent
	require.NoError(t, f.db.Where("aggregate_id = ?", promo.ID).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventPromotionDrafted, events[0].EventType)
}

func TestAcceptSuggestionIsIdempotentPerCampaign(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	first, err := f.svc.AcceptSuggestion(ctx, f.suggestion(), "camp-1")
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.svc.AcceptSuggestion(ctx, f.suggestion(), "camp-1")
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.PromotionID, second.PromotionID)

	var count int64
	require.NoError(t, f.db.Model(&models.Promotion{}).
		Where("ai_campaign_id = ?", "camp-1").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAcceptSuggestionRejectsMalformedInput(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	cases := map[string]Suggestion{
		"unknown kind": func() Suggestion {
			s := f.suggestion()
			s.Kind = "mystery_deal"
			return s
		}(),
		"percent out of range": func() Suggestion {
			s := f.suggestion()
			s.DiscountPercent = pct("120")
			return s
		}(),
		"multiplier out of range": func() Suggestion {
			s := f.suggestion()
			s.Kind = "loyalty_multiplier"
			s.Multiplier = pct("15")
			return s
		}(),
		"dates reversed": func() Suggestion {
			s := f.suggestion()
			s.StartDate, s.EndDate = s.EndDate, s.StartDate
			return s
		}(),
		"unparseable date": func() Suggestion {
			s := f.suggestion()
			s.StartDate = "next tuesday"
			return s
		}(),
		"missing name": func() Suggestion {
			s := f.suggestion()
			s.Name = ""
			return s
		}(),
		"unknown weekday": func() Suggestion {
			s := f.suggestion()
			s.DaysActive = []string{"mon", "funday"}
			return s
		}(),
	}

	for name, suggestion := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.AcceptSuggestion(ctx, suggestion, "camp-x")
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidSuggestion), "got %v", err)
		})
	}

	_, err := f.svc.AcceptSuggestion(ctx, f.suggestion(), "")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidSuggestion), "got %v", err)
}

func TestAcceptSuggestionDropsUnknownIDs(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	s := f.suggestion()
	s.EligibleProductIDs = []uuid.UUID{f.burger.ID, uuid.New()}
	s.ExcludedCategoryIDs = []uuid.UUID{uuid.New()}

	result, err := f.svc.AcceptSuggestion(ctx, s, "camp-2")
	require.NoError(t, err)

	var promo models.Promotion
	require.NoError(t, f.db.First(&promo, "id = ?", result.PromotionID).Error)
	require.Equal(t, []uuid.UUID{f.burger.ID}, promo.EligibleProductIDs)
	require.Empty(t, promo.ExcludedCategoryIDs)
}

func TestAcceptSuggestionRefusesFullyUnknownScope(t *testing.T) {
	f := newBridgeFixture(t)

	s := f.suggestion()
	s.EligibleProductIDs = []uuid.UUID{uuid.New()}

	_, err := f.svc.AcceptSuggestion(context.Background(), s, "camp-3")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCatalogMissing), "got %v", err)
}

func TestAcceptSuggestionMapsTypedDiscounts(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	s := f.suggestion()
	s.Kind = "promo_code"
	s.EligibleProductIDs = nil
	code := "ETE2026"
	s.PromoCode = &code
	s.DiscountPercent = nil
	amount := decimal.NewFromInt(5)
	s.DiscountAmount = &amount

	result, err := f.svc.AcceptSuggestion(ctx, s, "camp-4")
	require.NoError(t, err)

	var promo models.Promotion
	require.NoError(t, f.db.First(&promo, "id = ?", result.PromotionID).Error)
	require.Equal(t, enums.DiscountTypeFixed, promo.Rule.DiscountType)
	require.True(t, promo.Rule.DiscountValue.Equal(amount))
	require.True(t, promo.CodeRequired)
}
