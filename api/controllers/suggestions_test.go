package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/julienvidal/bistro-backoffice/internal/aibridge"
)

type stubBridgeService struct {
	campaignID string
	result     aibridge.Result
	err        error
}

func (s *stubBridgeService) AcceptSuggestion(ctx context.Context, suggestion aibridge.Suggestion, campaignID string) (aibridge.Result, error) {
	s.campaignID = campaignID
	if s.err != nil {
		return aibridge.Result{}, s.err
	}
	return s.result, nil
}

func suggestionRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/suggestions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSuggestionAcceptCreated(t *testing.T) {
	promoID := uuid.New()
	svc := &stubBridgeService{result: aibridge.Result{PromotionID: promoID, Created: true}}
	handler := SuggestionAccept(svc, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, suggestionRequest(t, map[string]any{
		"campaign_id": "camp-42",
		"suggestion": map[string]any{
			"restaurant_id":    uuid.New(),
			"kind":             "percent_item",
			"name":             "Promo plats -20%",
			"discount_percent": "20",
			"start_date":       "2026-09-01",
			"end_date":         "2026-09-30",
		},
	}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.campaignID != "camp-42" {
		t.Fatalf("campaign id not forwarded: %q", svc.campaignID)
	}
	var envelope struct {
		Data aibridge.Result `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PromotionID != promoID || !envelope.Data.Created {
		t.Fatalf("unexpected result: %+v", envelope.Data)
	}
}

func TestSuggestionAcceptReplayReturnsOK(t *testing.T) {
	svc := &stubBridgeService{result: aibridge.Result{PromotionID: uuid.New(), Created: false}}
	handler := SuggestionAccept(svc, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, suggestionRequest(t, map[string]any{
		"campaign_id": "camp-42",
		"suggestion": map[string]any{
			"restaurant_id": uuid.New(),
			"kind":          "percent_item",
			"name":          "Promo plats -20%",
			"start_date":    "2026-09-01",
			"end_date":      "2026-09-30",
		},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSuggestionAcceptRequiresCampaignID(t *testing.T) {
	handler := SuggestionAccept(&stubBridgeService{}, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, suggestionRequest(t, map[string]any{
		"suggestion": map[string]any{
			"restaurant_id": uuid.New(),
			"kind":          "percent_item",
			"name":          "Promo",
			"start_date":    "2026-09-01",
			"end_date":      "2026-09-30",
		},
	}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
