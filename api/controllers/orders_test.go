package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/julienvidal/bistro-backoffice/internal/orders"
	"github.com/julienvidal/bistro-backoffice/pkg/db/models"
	"github.com/julienvidal/bistro-backoffice/pkg/enums"
	pkgerrors "github.com/julienvidal/bistro-backoffice/pkg/errors"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
)

type stubOrderService struct {
	orders.Service

	transitioned *models.Order
	transitionTo enums.OrderStatus
	err          error
}

func (s *stubOrderService) Transition(ctx context.Context, id uuid.UUID, target enums.OrderStatus, actor, reason string) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.transitionTo = target
	return s.transitioned, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func transitionRequest(t *testing.T, orderID uuid.UUID, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/transition", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestOrderTransitionSuccess(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{transitioned: &models.Order{ID: orderID, Status: enums.OrderStatusInPreparation}}
	handler := OrderTransition(svc, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, transitionRequest(t, orderID, map[string]string{
		"target": "in_preparation",
		"actor":  "staff:amelie",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.transitionTo != enums.OrderStatusInPreparation {
		t.Fatalf("unexpected target: %s", svc.transitionTo)
	}
	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != orderID {
		t.Fatalf("unexpected order id: %s", envelope.Data.ID)
	}
}

func TestOrderTransitionRejectsUnknownTarget(t *testing.T) {
	handler := OrderTransition(&stubOrderService{}, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, transitionRequest(t, uuid.New(), map[string]string{"target": "shipped"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code: %s", envelope.Error.Code)
	}
}

func TestOrderTransitionMapsPaymentRequired(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodePaymentRequired, "order is not paid")}
	handler := OrderTransition(svc, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, transitionRequest(t, uuid.New(), map[string]string{"target": "completed"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodePaymentRequired) {
		t.Fatalf("unexpected code: %s", envelope.Error.Code)
	}
	if envelope.Error.Message != "Le paiement est requis avant de finaliser la commande" {
		t.Fatalf("unexpected message: %s", envelope.Error.Message)
	}
}

func TestOrderTransitionMapsConflictStatus(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeConcurrentUpdate, "guard exhausted")}
	handler := OrderTransition(svc, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, transitionRequest(t, uuid.New(), map[string]string{"target": "ready"}))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}
