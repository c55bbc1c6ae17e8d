package controllers

import (
	"net/http"

	"github.com/julienvidal/bistro-backoffice/api/responses"
	"github.com/julienvidal/bistro-backoffice/api/validators"
	"github.com/julienvidal/bistro-backoffice/internal/aibridge"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
)

type suggestionPayload struct {
	CampaignID string             `json:"campaign_id" validate:"required"`
	Suggestion aibridge.Suggestion `json:"suggestion"`
}

// SuggestionAccept turns an AI campaign suggestion into a draft promotion.
// Replays of the same campaign id return the existing draft.
func SuggestionAccept(svc aibridge.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload suggestionPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AcceptSuggestion(r.Context(), payload.Suggestion, payload.CampaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
