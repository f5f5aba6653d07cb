package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/platform/auth"
	"github.com/machinehub/api/internal/services"
)

type stubOrderService struct {
	placeDirectFn           func(ctx context.Context, cmd services.DirectCheckoutCommand) (domain.Order, error)
	placeFromCartFn         func(ctx context.Context, cmd services.CartCheckoutCommand) (domain.Order, error)
	getOrderFn              func(ctx context.Context, query services.OrderQuery) (domain.Order, error)
	getOrderByNumberFn      func(ctx context.Context, query services.OrderNumberQuery) (domain.Order, error)
	listOrdersFn            func(ctx context.Context, ownerID string, limit int) ([]domain.Order, error)
	listOrdersByStatusFn    func(ctx context.Context, status domain.FulfillmentStatus, limit int) ([]domain.Order, error)
	transitionFn            func(ctx context.Context, cmd services.TransitionCommand) (domain.Order, error)
	cancelFn                func(ctx context.Context, cmd services.CancelCommand) (domain.Order, error)
	confirmGatewayPaymentFn func(ctx context.Context, cmd services.GatewayCallbackCommand) (domain.Order, error)
}

func (s *stubOrderService) PlaceDirect(ctx context.Context, cmd services.DirectCheckoutCommand) (domain.Order, error) {
	if s.placeDirectFn == nil {
		return domain.Order{}, nil
	}
	return s.placeDirectFn(ctx, cmd)
}

func (s *stubOrderService) PlaceFromCart(ctx context.Context, cmd services.CartCheckoutCommand) (domain.Order, error) {
	if s.placeFromCartFn == nil {
		return domain.Order{}, nil
	}
	return s.placeFromCartFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, query services.OrderQuery) (domain.Order, error) {
	if s.getOrderFn == nil {
		return domain.Order{}, nil
	}
	return s.getOrderFn(ctx, query)
}

func (s *stubOrderService) GetOrderByNumber(ctx context.Context, query services.OrderNumberQuery) (domain.Order, error) {
	if s.getOrderByNumberFn == nil {
		return domain.Order{}, nil
	}
	return s.getOrderByNumberFn(ctx, query)
}

func (s *stubOrderService) ListOrders(ctx context.Context, ownerID string, limit int) ([]domain.Order, error) {
	if s.listOrdersFn == nil {
		return nil, nil
	}
	return s.listOrdersFn(ctx, ownerID, limit)
}

func (s *stubOrderService) ListOrdersByStatus(ctx context.Context, status domain.FulfillmentStatus, limit int) ([]domain.Order, error) {
	if s.listOrdersByStatusFn == nil {
		return nil, nil
	}
	return s.listOrdersByStatusFn(ctx, status, limit)
}

func (s *stubOrderService) Transition(ctx context.Context, cmd services.TransitionCommand) (domain.Order, error) {
	if s.transitionFn == nil {
		return domain.Order{}, nil
	}
	return s.transitionFn(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelCommand) (domain.Order, error) {
	if s.cancelFn == nil {
		return domain.Order{}, nil
	}
	return s.cancelFn(ctx, cmd)
}

func (s *stubOrderService) ConfirmGatewayPayment(ctx context.Context, cmd services.GatewayCallbackCommand) (domain.Order, error) {
	if s.confirmGatewayPaymentFn == nil {
		return domain.Order{}, nil
	}
	return s.confirmGatewayPaymentFn(ctx, cmd)
}

var _ services.OrderService = (*stubOrderService)(nil)

func identityContext(req *http.Request, identity *auth.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func sampleOrder() domain.Order {
	placed := time.Date(2025, time.March, 5, 9, 30, 0, 0, time.UTC)
	return domain.Order{
		ID:          "order-1001",
		OrderNumber: "MH-20250305-0007",
		OwnerID:     "user-1",
		Currency:    "INR",
		Contact: domain.Contact{
			Name:  "Asha Rao",
			Email: "asha@example.com",
			Phone: "+91-9000000000",
		},
		ShippingAddress: domain.Address{
			Line1:      "14 Industrial Estate",
			City:       "Pune",
			State:      "MH",
			PostalCode: "411001",
			Country:    "IN",
		},
		Items: []domain.OrderItem{
			{ProductID: "prod-lathe", Name: "Bench Lathe", Quantity: 1, UnitPrice: 200000, LineTotal: 200000},
		},
		Totals: domain.OrderTotals{
			Subtotal:   200000,
			Tax:        36000,
			GrandTotal: 236000,
		},
		Payment: domain.Payment{
			Method: domain.PaymentMethodCOD,
			Status: domain.PaymentStatusPending,
		},
		FulfillmentStatus: domain.FulfillmentPlaced,
		StatusHistory: []domain.StatusEvent{
			{Seq: 1, Status: domain.FulfillmentPlaced, ActorID: "user-1", At: placed},
		},
		ExpectedDeliveryAt: placed.AddDate(0, 0, 7),
		PlacedAt:           placed,
		CreatedAt:          placed,
		UpdatedAt:          placed,
	}
}

func newOrderTestRouter(svc services.OrderService) http.Handler {
	r := chi.NewRouter()
	r.Route("/orders", NewOrderHandlers(nil, svc).Routes)
	return r
}

func TestOrderHandlersListOrdersScopesToOwner(t *testing.T) {
	var gotOwner string
	var gotLimit int
	svc := &stubOrderService{
		listOrdersFn: func(_ context.Context, ownerID string, limit int) ([]domain.Order, error) {
			gotOwner = ownerID
			gotLimit = limit
			return []domain.Order{sampleOrder()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders?limit=5", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1", Roles: []string{auth.RoleUser}})
	rec := httptest.NewRecorder()
	newOrderTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotOwner != "user-1" {
		t.Fatalf("expected owner user-1, got %q", gotOwner)
	}
	if gotLimit != 5 {
		t.Fatalf("expected limit 5, got %d", gotLimit)
	}

	var resp struct {
		Orders []map[string]any `json:"orders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(resp.Orders))
	}
	if resp.Orders[0]["order_number"] != "MH-20250305-0007" {
		t.Fatalf("unexpected order_number %v", resp.Orders[0]["order_number"])
	}
	if resp.Orders[0]["status"] != "placed" {
		t.Fatalf("unexpected status %v", resp.Orders[0]["status"])
	}
}

func TestOrderHandlersListOrdersRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders?limit=abc", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newOrderTestRouter(&stubOrderService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrderHandlersGetOrderPassesOwner(t *testing.T) {
	var gotQuery services.OrderQuery
	svc := &stubOrderService{
		getOrderFn: func(_ context.Context, query services.OrderQuery) (domain.Order, error) {
			gotQuery = query
			return sampleOrder(), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/order-1001", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newOrderTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotQuery.OrderID != "order-1001" || gotQuery.OwnerID != "user-1" {
		t.Fatalf("unexpected query %+v", gotQuery)
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != "order-1001" {
		t.Fatalf("unexpected order id %q", resp.Order.ID)
	}
	if resp.Order.Totals.GrandTotal != 236000 {
		t.Fatalf("unexpected grand total %d", resp.Order.Totals.GrandTotal)
	}
	if len(resp.Order.StatusHistory) != 1 || resp.Order.StatusHistory[0].Status != "placed" {
		t.Fatalf("unexpected status history %+v", resp.Order.StatusHistory)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	svc := &stubOrderService{
		getOrderFn: func(_ context.Context, _ services.OrderQuery) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newOrderTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "order_not_found") {
		t.Fatalf("expected order_not_found code, got %s", rec.Body.String())
	}
}

func TestOrderHandlersGetOrderByNumber(t *testing.T) {
	var gotQuery services.OrderNumberQuery
	svc := &stubOrderService{
		getOrderByNumberFn: func(_ context.Context, query services.OrderNumberQuery) (domain.Order, error) {
			gotQuery = query
			return sampleOrder(), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/number/MH-20250305-0007", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newOrderTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotQuery.OrderNumber != "MH-20250305-0007" || gotQuery.OwnerID != "user-1" {
		t.Fatalf("unexpected query %+v", gotQuery)
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	var gotCmd services.CancelCommand
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelCommand) (domain.Order, error) {
			gotCmd = cmd
			order := sampleOrder()
			order.FulfillmentStatus = domain.FulfillmentCancelled
			order.CancelReason = cmd.Reason
			return order, nil
		},
	}

	body := strings.NewReader(`{"reason":"ordered by mistake"}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-1001/cancel", body)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newOrderTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	want := services.CancelCommand{
		OrderID: "order-1001",
		OwnerID: "user-1",
		Reason:  "ordered by mistake",
		ActorID: "user-1",
	}
	if gotCmd != want {
		t.Fatalf("unexpected command %+v", gotCmd)
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.Status != "cancelled" {
		t.Fatalf("expected cancelled status, got %q", resp.Order.Status)
	}
}

func TestOrderHandlersCancelOrderAllowsEmptyBody(t *testing.T) {
	var gotCmd services.CancelCommand
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelCommand) (domain.Order, error) {
			gotCmd = cmd
			return sampleOrder(), nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1001/cancel", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newOrderTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotCmd.Reason != "" {
		t.Fatalf("expected empty reason, got %q", gotCmd.Reason)
	}
}

func TestOrderHandlersCancelInvalidTransition(t *testing.T) {
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, _ services.CancelCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidTransition
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1001/cancel", strings.NewReader(`{}`))
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newOrderTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_transition") {
		t.Fatalf("expected invalid_transition code, got %s", rec.Body.String())
	}
}

func TestOrderHandlersRequireIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	newOrderTestRouter(&stubOrderService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
