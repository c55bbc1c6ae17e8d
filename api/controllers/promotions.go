package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/api/responses"
	"github.com/julienvidal/bistro-backoffice/api/validators"
	"github.com/julienvidal/bistro-backoffice/internal/engine"
	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
)

type promotionRulePayload struct {
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`

	BuyQty       int  `json:"buy_qty"`
	GetQty       int  `json:"get_qty"`
	CheapestFree bool `json:"cheapest_free"`

	ConditionalQuantity        int             `json:"conditional_quantity"`
	ConditionalDiscountPercent decimal.Decimal `json:"conditional_discount_percent"`

	MultiplierValue decimal.Decimal `json:"multiplier_value"`
}

func (p promotionRulePayload) toModel() (models.PromotionRule, error) {
	rule := models.PromotionRule{
		DiscountValue:              p.DiscountValue,
		BuyQty:                     p.BuyQty,
		GetQty:                     p.GetQty,
		CheapestFree:               p.CheapestFree,
		ConditionalQuantity:        p.ConditionalQuantity,
		ConditionalDiscountPercent: p.ConditionalDiscountPercent,
		MultiplierValue:            p.MultiplierValue,
	}
	if p.DiscountType != "" {
		parsed, err := enums.ParseDiscountType(p.DiscountType)
		if err != nil {
			return models.PromotionRule{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		rule.DiscountType = parsed
	}
	return rule, nil
}

type promotionCreatePayload struct {
	RestaurantID uuid.UUID            `json:"restaurant_id" validate:"required"`
	Name         string               `json:"name" validate:"required"`
	Description  string               `json:"description"`
	Kind         string               `json:"kind" validate:"required"`
	Rule         promotionRulePayload `json:"rule"`

	EligibleProductIDs  []uuid.UUID `json:"eligible_product_ids"`
	EligibleCategoryIDs []uuid.UUID `json:"eligible_category_ids"`
	ExcludedProductIDs  []uuid.UUID `json:"excluded_product_ids"`
	ExcludedCategoryIDs []uuid.UUID `json:"excluded_category_ids"`

	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	StartMinute *int      `json:"start_minute" validate:"omitempty,min=0,max=1440"`
	EndMinute   *int      `json:"end_minute" validate:"omitempty,min=0,max=1440"`
	DaysActive  []string  `json:"days_active"`

	MinCartAmount *decimal.Decimal `json:"min_cart_amount"`
	MaxCartAmount *decimal.Decimal `json:"max_cart_amount"`

	PromoCode    *string `json:"promo_code"`
	CodeRequired bool    `json:"code_required"`

	LimitPerCustomer *int `json:"limit_per_customer" validate:"omitempty,min=1"`
	LimitTotal       *int `json:"limit_total" validate:"omitempty,min=1"`

	TargetNewCustomers bool `json:"target_new_customers"`
	TargetInactiveDays *int `json:"target_inactive_days" validate:"omitempty,min=1"`

	Priority      int    `json:"priority"`
	Stackable     bool   `json:"stackable"`
	StackingGroup string `json:"stacking_group"`

	IsActive  bool   `json:"is_active"`
	CreatedBy string `json:"created_by"`
}

func (p promotionCreatePayload) toModel() (*models.Promotion, error) {
	kind, err := enums.ParsePromotionKind(p.Kind)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	rule, err := p.Rule.toModel()
	if err != nil {
		return nil, err
	}
	days, err := parseWeekdays(p.DaysActive)
	if err != nil {
		return nil, err
	}

	return &models.Promotion{
		RestaurantID: p.RestaurantID,
		Name:         p.Name,
		Description:  p.Description,
		Kind:         kind,
		Rule:         rule,

		EligibleProductIDs:  p.EligibleProductIDs,
		EligibleCategoryIDs: p.EligibleCategoryIDs,
		ExcludedProductIDs:  p.ExcludedProductIDs,
		ExcludedCategoryIDs: p.ExcludedCategoryIDs,

		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		StartMinute: p.StartMinute,
		EndMinute:   p.EndMinute,
		DaysActive:  days,

		MinCartAmount: p.MinCartAmount,
		MaxCartAmount: p.MaxCartAmount,

		PromoCode:    p.PromoCode,
		CodeRequired: p.CodeRequired,

		LimitPerCustomer: p.LimitPerCustomer,
		LimitTotal:       p.LimitTotal,

		TargetNewCustomers: p.TargetNewCustomers,
		TargetInactiveDays: p.TargetInactiveDays,

		Priority:      p.Priority,
		Stackable:     p.Stackable,
		StackingGroup: p.StackingGroup,

		IsActive:  p.IsActive,
		CreatedBy: p.CreatedBy,
	}, nil
}

func parseWeekdays(values []string) ([]enums.Weekday, error) {
	if len(values) == 0 {
		return nil, nil
	}
	days := make([]enums.Weekday, 0, len(values))
	for _, raw := range values {
		day, err := enums.ParseWeekday(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		days = append(days, day)
	}
	return days, nil
}

func PromotionCreate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload promotionCreatePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := payload.toModel()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), promo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func PromotionGet(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}

func PromotionList(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := validators.UUIDQuery(r, "restaurant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := promotions.ListFilter{RestaurantID: restaurantID}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParsePromotionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
				return
			}
			filter.Status = &status
		}
		if raw := r.URL.Query().Get("kind"); raw != "" {
			kind, err := enums.ParsePromotionKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
				return
			}
			filter.Kind = &kind
		}

		promos, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"promotions": promos, "count": len(promos)})
	}
}

type promotionUpdatePayload struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Rule        *promotionRulePayload `json:"rule"`

	EligibleProductIDs  *[]uuid.UUID `json:"eligible_product_ids"`
	EligibleCategoryIDs *[]uuid.UUID `json:"eligible_category_ids"`
	ExcludedProductIDs  *[]uuid.UUID `json:"excluded_product_ids"`
	ExcludedCategoryIDs *[]uuid.UUID `json:"excluded_category_ids"`

	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	DaysActive *[]string  `json:"days_active"`

	Priority      *int    `json:"priority"`
	Stackable     *bool   `json:"stackable"`
	StackingGroup *string `json:"stacking_group"`
	IsActive      *bool   `json:"is_active"`
}

func (p promotionUpdatePayload) toPatch() (promotions.UpdateParams, error) {
	patch := promotions.UpdateParams{
		Name:        p.Name,
		Description: p.Description,

		EligibleProductIDs:  p.EligibleProductIDs,
		EligibleCategoryIDs: p.EligibleCategoryIDs,
		ExcludedProductIDs:  p.ExcludedProductIDs,
		ExcludedCategoryIDs: p.ExcludedCategoryIDs,

		StartDate: p.StartDate,
		EndDate:   p.EndDate,

		Priority:      p.Priority,
		Stackable:     p.Stackable,
		StackingGroup: p.StackingGroup,
		IsActive:      p.IsActive,
	}
	if p.Rule != nil {
		rule, err := p.Rule.toModel()
		if err != nil {
			return promotions.UpdateParams{}, err
		}
		patch.Rule = &rule
	}
	if p.DaysActive != nil {
		days, err := parseWeekdays(*p.DaysActive)
		if err != nil {
			return promotions.UpdateParams{}, err
		}
		patch.DaysActive = &days
	}
	return patch, nil
}

func PromotionUpdate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload promotionUpdatePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patch, err := payload.toPatch()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Update(r.Context(), id, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}

type promotionStatusPayload struct {
	Status string `json:"status" validate:"required"`
}

func PromotionSetStatus(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload promotionStatusPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.SetStatus(r.Context(), id, enums.PromotionStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}

func PromotionDelete(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type previewItemPayload struct {
	ProductID  uuid.UUID       `json:"product_id"`
	CategoryID uuid.UUID       `json:"category_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity" validate:"required,min=1"`
}

type previewCustomerPayload struct {
	ID          uuid.UUID  `json:"id" validate:"required"`
	OrdersCount int        `json:"orders_count"`
	LastOrderAt *time.Time `json:"last_order_at"`
}

type previewPayload struct {
	RestaurantID    uuid.UUID               `json:"restaurant_id" validate:"required"`
	Items           []previewItemPayload    `json:"items" validate:"dive"`
	DeliveryFee     decimal.Decimal         `json:"delivery_fee"`
	ConsumptionMode string                  `json:"consumption_mode" validate:"required"`
	Customer        *previewCustomerPayload `json:"customer"`
	PromoCode       string                  `json:"promo_code"`
}

func (p previewPayload) toInput() (engine.Input, error) {
	mode, err := enums.ParseConsumptionMode(p.ConsumptionMode)
	if err != nil {
		return engine.Input{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	items := make([]engine.LineItem, 0, len(p.Items))
	for i, item := range p.Items {
		if item.ProductID == uuid.Nil && item.CategoryID == uuid.Nil {
			return engine.Input{}, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("items[%d]: product_id or category_id is required", i))
		}
		items = append(items, engine.LineItem{
			ProductID:  item.ProductID,
			CategoryID: item.CategoryID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}

	input := engine.Input{
		RestaurantID: p.RestaurantID,
		Cart: engine.Cart{
			Items:           items,
			DeliveryFee:     p.DeliveryFee,
			ConsumptionMode: mode,
		},
		Code: p.PromoCode,
	}
	if p.Customer != nil {
		input.Customer = &engine.CustomerContext{
			ID:          p.Customer.ID,
			OrdersCount: p.Customer.OrdersCount,
			LastOrderAt: p.Customer.LastOrderAt,
		}
	}
	return input, nil
}

// PromotionPreview prices a cart without persisting anything.
func PromotionPreview(eng engine.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload previewPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := eng.Preview(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
