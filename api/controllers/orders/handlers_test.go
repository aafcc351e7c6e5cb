package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

type stubOrderService struct {
	get        func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	list       func(ctx context.Context, status *enums.OrderStatus, limit, offset int) ([]models.Order, error)
	markPaid   func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	markFailed func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	cancel     func(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error)
	refund     func(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error)
}

func (s *stubOrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.get(ctx, id)
}

func (s *stubOrderService) List(ctx context.Context, status *enums.OrderStatus, limit, offset int) ([]models.Order, error) {
	return s.list(ctx, status, limit, offset)
}

func (s *stubOrderService) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.markPaid(ctx, id)
}

func (s *stubOrderService) MarkPaidInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	panic("not reachable from the admin surface")
}

func (s *stubOrderService) MarkFailed(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.markFailed(ctx, id)
}

func (s *stubOrderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	return s.cancel(ctx, id, reason)
}

func (s *stubOrderService) Refund(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	return s.refund(ctx, id, reason)
}

func sampleOrder(status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		CartID:        uuid.New(),
		Status:        status,
		Currency:      "USD",
		Subtotal:      decimal.NewFromInt(200),
		DiscountTotal: decimal.Zero,
		TaxTotal:      decimal.NewFromInt(40),
		ShippingTotal: decimal.NewFromInt(20),
		GrandTotal:    decimal.NewFromInt(260),
	}
}

func newOrdersRouter(svc *stubOrderService) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/v1/orders", List(svc, nil))
	r.Get("/admin/v1/orders/{orderId}", Detail(svc, nil))
	r.Post("/admin/v1/orders/{orderId}/cancel", Cancel(svc, nil))
	r.Post("/admin/v1/orders/{orderId}/refund", Refund(svc, nil))
	return r
}

func TestListRejectsUnknownStatusFilter(t *testing.T) {
	svc := &stubOrderService{}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/v1/orders?status=bogus", nil)

	newOrdersRouter(svc).ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListPassesStatusFilter(t *testing.T) {
	var gotStatus *enums.OrderStatus
	svc := &stubOrderService{
		list: func(ctx context.Context, status *enums.OrderStatus, limit, offset int) ([]models.Order, error) {
			gotStatus = status
			return []models.Order{*sampleOrder(enums.OrderStatusPaid)}, nil
		},
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/v1/orders?status=paid&limit=5", nil)
	newOrdersRouter(svc).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotStatus == nil || *gotStatus != enums.OrderStatusPaid {
		t.Fatalf("expected paid filter, got %v", gotStatus)
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	views, ok := envelope.Data.([]any)
	if !ok || len(views) != 1 {
		t.Fatalf("expected one order view, got %v", envelope.Data)
	}
}

func TestCancelPassesReasonAndMapsStateConflict(t *testing.T) {
	orderID := uuid.New()
	var gotReason string
	svc := &stubOrderService{
		cancel: func(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
			gotReason = reason
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a paid order must be refunded, not cancelled")
		},
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/v1/orders/"+orderID.String()+"/cancel",
		strings.NewReader(`{"reason":"customer request"}`))
	newOrdersRouter(svc).ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if gotReason != "customer request" {
		t.Fatalf("expected reason to reach service, got %q", gotReason)
	}

	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestDetailRejectsMalformedID(t *testing.T) {
	svc := &stubOrderService{}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/v1/orders/not-a-uuid", nil)

	newOrdersRouter(svc).ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRefundReturnsUpdatedView(t *testing.T) {
	order := sampleOrder(enums.OrderStatusRefunded)
	svc := &stubOrderService{
		refund: func(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
			return order, nil
		},
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/v1/orders/"+order.ID.String()+"/refund",
		strings.NewReader(`{"reason":"damaged in transit"}`))
	newOrdersRouter(svc).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["status"] != string(enums.OrderStatusRefunded) {
		t.Fatalf("expected refunded status in view, got %v", data["status"])
	}
}
