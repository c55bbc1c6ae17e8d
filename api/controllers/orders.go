package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/api/responses"
	"github.com/julienvidal/bistro-backoffice/api/validators"
	"github.com/julienvidal/bistro-backoffice/internal/orders"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
)

type orderItemPayload struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type orderCreatePayload struct {
	RestaurantID uuid.UUID `json:"restaurant_id" validate:"required"`

	CustomerID    *uuid.UUID `json:"customer_id"`
	CustomerEmail string     `json:"customer_email" validate:"omitempty,email"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`

	Items           []orderItemPayload `json:"items" validate:"required,min=1,dive"`
	DeliveryFee     decimal.Decimal    `json:"delivery_fee"`
	ConsumptionMode string             `json:"consumption_mode" validate:"required"`
	PickupAt        *time.Time         `json:"pickup_at"`

	PromoCode   string `json:"promo_code"`
	UseCashback bool   `json:"use_cashback"`

	PaymentMethod string `json:"payment_method"`
	Actor         string `json:"actor"`
}

func (p orderCreatePayload) toParams() (orders.CreateParams, error) {
	mode, err := enums.ParseConsumptionMode(p.ConsumptionMode)
	if err != nil {
		return orders.CreateParams{}, pkgerrors.New(pkgerrors.CodeInvalidCart, err.Error())
	}

	params := orders.CreateParams{
		RestaurantID:    p.RestaurantID,
		CustomerID:      p.CustomerID,
		CustomerEmail:   p.CustomerEmail,
		CustomerName:    p.CustomerName,
		CustomerPhone:   p.CustomerPhone,
		DeliveryFee:     p.DeliveryFee,
		ConsumptionMode: mode,
		PickupAt:        p.PickupAt,
		PromoCode:       p.PromoCode,
		UseCashback:     p.UseCashback,
		Actor:           p.Actor,
	}
	for _, item := range p.Items {
		params.Items = append(params.Items, orders.CreateItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	if p.PaymentMethod != "" {
		method, err := enums.ParsePaymentMethod(p.PaymentMethod)
		if err != nil {
			return orders.CreateParams{}, pkgerrors.New(pkgerrors.CodePaymentInvalid, err.Error())
		}
		params.PaymentMethod = &method
	}
	return params, nil
}

func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload orderCreatePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toParams()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"order_id":                result.Order.ID,
			"order_number":            result.Order.OrderNumber,
			"status":                  result.Order.Status,
			"total":                   result.Total,
			"cashback_used":           result.CashbackUsed,
			"cashback_earned_preview": result.CashbackEarnedPreview,
			"applied_promotions":      result.Order.AppliedPromotions,
		})
	}
}

func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type orderTransitionPayload struct {
	Target string `json:"target" validate:"required"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func OrderTransition(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderTransitionPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(payload.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		order, err := svc.Transition(r.Context(), id, target, payload.Actor, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type orderPaymentPayload struct {
	Method         string           `json:"method" validate:"required"`
	Status         string           `json:"status" validate:"required"`
	AmountReceived *decimal.Decimal `json:"amount_received"`
	ChangeGiven    *decimal.Decimal `json:"change_given"`
}

func OrderPayment(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderPaymentPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.RecordPayment(r.Context(), id, orders.PaymentParams{
			Method:         enums.PaymentMethod(payload.Method),
			Status:         enums.PaymentStatus(payload.Status),
			AmountReceived: payload.AmountReceived,
			ChangeGiven:    payload.ChangeGiven,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type orderCompensatePayload struct {
	Reason string `json:"reason" validate:"required"`
	Actor  string `json:"actor"`
}

// OrderCompensate cancels a completed order and reverses its cashback.
func OrderCompensate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderCompensatePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CompensateCompleted(r.Context(), id, payload.Actor, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
