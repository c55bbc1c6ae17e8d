package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julienvidal/bistro-backoffice/api/responses"
	"github.com/julienvidal/bistro-backoffice/api/validators"
	"github.com/julienvidal/bistro-backoffice/internal/cashback"
	"github.com/julienvidal/bistro-backoffice/internal/settings"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/pagination"
)

func CashbackBalance(svc cashback.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.IntQuery(r, "limit", pagination.DefaultLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.Entries(r.Context(), customerID, pagination.NormalizeLimit(limit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"customer_id": customerID,
			"balance":     balance,
			"entries":     entries,
		})
	}
}

type cashbackPreviewPayload struct {
	RestaurantID     uuid.UUID       `json:"restaurant_id" validate:"required"`
	CustomerID       *uuid.UUID      `json:"customer_id"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	PromoDiscount    decimal.Decimal `json:"promo_discount"`
	TotalAfterPromos decimal.Decimal `json:"total_after_promos"`
	UseCashback      bool            `json:"use_cashback"`
}

func CashbackPreview(svc cashback.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cashbackPreviewPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		preview, err := svc.PreviewRedemption(r.Context(), cashback.RedemptionQuery{
			RestaurantID:     payload.RestaurantID,
			CustomerID:       payload.CustomerID,
			Subtotal:         payload.Subtotal,
			PromoDiscount:    payload.PromoDiscount,
			TotalAfterPromos: payload.TotalAfterPromos,
			UseCashback:      payload.UseCashback,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

func CashbackSettingsGet(provider settings.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := validators.UUIDQuery(r, "restaurant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		policy, err := provider.Cashback(r.Context(), restaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policy)
	}
}

type cashbackSettingsPayload struct {
	RestaurantID          uuid.UUID       `json:"restaurant_id" validate:"required"`
	Percentage            decimal.Decimal `json:"percentage"`
	ExcludePromosFromBase bool            `json:"exclude_promos_from_base"`
}

func CashbackSettingsUpdate(provider settings.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cashbackSettingsPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		policy := settings.Cashback{
			Percentage:            payload.Percentage,
			ExcludePromosFromBase: payload.ExcludePromosFromBase,
		}
		if err := provider.UpdateCashback(r.Context(), payload.RestaurantID, policy); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policy)
	}
}
