package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/platform/auth"
	"github.com/machinehub/api/internal/services"
)

func newAdminTestRouter(svc services.OrderService) http.Handler {
	r := chi.NewRouter()
	r.Route("/admin", NewAdminOrderHandlers(nil, svc).Routes)
	return r
}

func staffIdentity() *auth.Identity {
	return &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}}
}

func TestAdminOrderHandlersListByStatus(t *testing.T) {
	var gotStatus domain.FulfillmentStatus
	var gotLimit int
	svc := &stubOrderService{
		listOrdersByStatusFn: func(_ context.Context, status domain.FulfillmentStatus, limit int) ([]domain.Order, error) {
			gotStatus = status
			gotLimit = limit
			return []domain.Order{sampleOrder()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?status=Placed&limit=20", nil)
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotStatus != domain.FulfillmentPlaced {
		t.Fatalf("expected placed status, got %q", gotStatus)
	}
	if gotLimit != 20 {
		t.Fatalf("expected limit 20, got %d", gotLimit)
	}
}

func TestAdminOrderHandlersListByOwner(t *testing.T) {
	var gotOwner string
	svc := &stubOrderService{
		listOrdersFn: func(_ context.Context, ownerID string, _ int) ([]domain.Order, error) {
			gotOwner = ownerID
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?owner_id=user-7", nil)
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotOwner != "user-7" {
		t.Fatalf("expected owner user-7, got %q", gotOwner)
	}
}

func TestAdminOrderHandlersListRequiresFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(&stubOrderService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminOrderHandlersGetOrderSkipsOwnerScope(t *testing.T) {
	var gotQuery services.OrderQuery
	svc := &stubOrderService{
		getOrderFn: func(_ context.Context, query services.OrderQuery) (domain.Order, error) {
			gotQuery = query
			return sampleOrder(), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/orders/order-1001", nil)
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotQuery.OrderID != "order-1001" || gotQuery.OwnerID != "" {
		t.Fatalf("unexpected query %+v", gotQuery)
	}
}

func TestAdminOrderHandlersUpdateStatus(t *testing.T) {
	var gotCmd services.TransitionCommand
	svc := &stubOrderService{
		transitionFn: func(_ context.Context, cmd services.TransitionCommand) (domain.Order, error) {
			gotCmd = cmd
			order := sampleOrder()
			order.FulfillmentStatus = cmd.Target
			return order, nil
		},
	}

	body := strings.NewReader(`{"status":"Shipped","message":"left the warehouse"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1001/status", body)
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	want := services.TransitionCommand{
		OrderID: "order-1001",
		Target:  domain.FulfillmentShipped,
		Message: "left the warehouse",
		ActorID: "staff-1",
	}
	if gotCmd != want {
		t.Fatalf("unexpected command %+v", gotCmd)
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.Status != "shipped" {
		t.Fatalf("expected shipped status, got %q", resp.Order.Status)
	}
}

func TestAdminOrderHandlersUpdateStatusRejectsInvalidTransition(t *testing.T) {
	svc := &stubOrderService{
		transitionFn: func(_ context.Context, _ services.TransitionCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidTransition
		},
	}

	body := strings.NewReader(`{"status":"placed"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1001/status", body)
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAdminOrderHandlersUpdateStatusRequiresStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1001/status", strings.NewReader(`{"message":"no status"}`))
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(&stubOrderService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminOrderHandlersCancelWithoutOwnerScope(t *testing.T) {
	var gotCmd services.CancelCommand
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelCommand) (domain.Order, error) {
			gotCmd = cmd
			return sampleOrder(), nil
		},
	}

	body := strings.NewReader(`{"reason":"payment never arrived"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1001/cancel", body)
	req = identityContext(req, staffIdentity())
	rec := httptest.NewRecorder()
	newAdminTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	want := services.CancelCommand{
		OrderID: "order-1001",
		Reason:  "payment never arrived",
		ActorID: "staff-1",
	}
	if gotCmd != want {
		t.Fatalf("unexpected command %+v", gotCmd)
	}
}
