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

type stubCartService struct {
	listFn        func(ctx context.Context, ownerID string) ([]domain.CartLine, error)
	addLineFn     func(ctx context.Context, cmd services.AddCartLineCommand) ([]domain.CartLine, error)
	setQuantityFn func(ctx context.Context, cmd services.SetCartQuantityCommand) ([]domain.CartLine, error)
	removeLineFn  func(ctx context.Context, ownerID, productID string) ([]domain.CartLine, error)
	clearFn       func(ctx context.Context, ownerID string) error
}

func (s *stubCartService) List(ctx context.Context, ownerID string) ([]domain.CartLine, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, ownerID)
}

func (s *stubCartService) AddLine(ctx context.Context, cmd services.AddCartLineCommand) ([]domain.CartLine, error) {
	if s.addLineFn == nil {
		return nil, nil
	}
	return s.addLineFn(ctx, cmd)
}

func (s *stubCartService) SetQuantity(ctx context.Context, cmd services.SetCartQuantityCommand) ([]domain.CartLine, error) {
	if s.setQuantityFn == nil {
		return nil, nil
	}
	return s.setQuantityFn(ctx, cmd)
}

func (s *stubCartService) RemoveLine(ctx context.Context, ownerID, productID string) ([]domain.CartLine, error) {
	if s.removeLineFn == nil {
		return nil, nil
	}
	return s.removeLineFn(ctx, ownerID, productID)
}

func (s *stubCartService) Clear(ctx context.Context, ownerID string) error {
	if s.clearFn == nil {
		return nil
	}
	return s.clearFn(ctx, ownerID)
}

var _ services.CartService = (*stubCartService)(nil)

func newCartTestRouter(svc services.CartService) http.Handler {
	r := chi.NewRouter()
	r.Route("/cart", NewCartHandlers(nil, svc).Routes)
	return r
}

func sampleCartLines() []domain.CartLine {
	added := time.Date(2025, time.March, 4, 16, 0, 0, 0, time.UTC)
	return []domain.CartLine{
		{
			OwnerID: "user-1", ProductID: "prod-lathe", Quantity: 1, UnitPrice: 200000, Currency: "inr",
			AddedAt: added, UpdatedAt: added,
			Name: "Bench Lathe", ImageURL: "https://cdn.machinehub.example/prod-lathe.jpg", CatalogPrice: 210000,
		},
		{OwnerID: "user-1", ProductID: "prod-vice", Quantity: 2, UnitPrice: 4500, Currency: "inr", AddedAt: added, UpdatedAt: added},
	}
}

func TestCartHandlersGetCart(t *testing.T) {
	var gotOwner string
	svc := &stubCartService{
		listFn: func(_ context.Context, ownerID string) ([]domain.CartLine, error) {
			gotOwner = ownerID
			return sampleCartLines(), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newCartTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotOwner != "user-1" {
		t.Fatalf("expected owner user-1, got %q", gotOwner)
	}

	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cart.ItemsCount != 2 {
		t.Fatalf("expected 2 items, got %d", resp.Cart.ItemsCount)
	}
	if resp.Cart.Subtotal != 209000 {
		t.Fatalf("expected subtotal 209000, got %d", resp.Cart.Subtotal)
	}
	if resp.Cart.Currency != "INR" {
		t.Fatalf("expected INR currency, got %q", resp.Cart.Currency)
	}
	if resp.Cart.Items[1].LineTotal != 9000 {
		t.Fatalf("expected line total 9000, got %d", resp.Cart.Items[1].LineTotal)
	}
	first := resp.Cart.Items[0]
	if first.Name != "Bench Lathe" || first.ImageURL != "https://cdn.machinehub.example/prod-lathe.jpg" {
		t.Fatalf("expected catalog snapshot on payload, got %+v", first)
	}
	if first.CatalogPrice != 210000 {
		t.Fatalf("expected catalog price 210000, got %d", first.CatalogPrice)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	var gotCmd services.AddCartLineCommand
	svc := &stubCartService{
		addLineFn: func(_ context.Context, cmd services.AddCartLineCommand) ([]domain.CartLine, error) {
			gotCmd = cmd
			return sampleCartLines(), nil
		},
	}

	body := strings.NewReader(`{"product_id": "prod-vice", "quantity": 2}`)
	req := httptest.NewRequest(http.MethodPost, "/cart/items", body)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newCartTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	want := services.AddCartLineCommand{OwnerID: "user-1", ProductID: "prod-vice", Quantity: 2}
	if gotCmd != want {
		t.Fatalf("unexpected command %+v", gotCmd)
	}
}

func TestCartHandlersAddItemProductNotFound(t *testing.T) {
	svc := &stubCartService{
		addLineFn: func(_ context.Context, _ services.AddCartLineCommand) ([]domain.CartLine, error) {
			return nil, services.ErrCartProductNotFound
		},
	}

	body := strings.NewReader(`{"product_id": "prod-ghost", "quantity": 1}`)
	req := httptest.NewRequest(http.MethodPost, "/cart/items", body)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newCartTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "product_not_found") {
		t.Fatalf("expected product_not_found code, got %s", rec.Body.String())
	}
}

func TestCartHandlersSetQuantity(t *testing.T) {
	var gotCmd services.SetCartQuantityCommand
	svc := &stubCartService{
		setQuantityFn: func(_ context.Context, cmd services.SetCartQuantityCommand) ([]domain.CartLine, error) {
			gotCmd = cmd
			return sampleCartLines(), nil
		},
	}

	body := strings.NewReader(`{"quantity": 3}`)
	req := httptest.NewRequest(http.MethodPatch, "/cart/items/prod-vice", body)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newCartTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	want := services.SetCartQuantityCommand{OwnerID: "user-1", ProductID: "prod-vice", Quantity: 3}
	if gotCmd != want {
		t.Fatalf("unexpected command %+v", gotCmd)
	}
}

func TestCartHandlersRemoveItemNotFound(t *testing.T) {
	svc := &stubCartService{
		removeLineFn: func(_ context.Context, _, _ string) ([]domain.CartLine, error) {
			return nil, services.ErrCartNotFound
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/cart/items/prod-ghost", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newCartTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cart_line_not_found") {
		t.Fatalf("expected cart_line_not_found code, got %s", rec.Body.String())
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	var cleared string
	svc := &stubCartService{
		clearFn: func(_ context.Context, ownerID string) error {
			cleared = ownerID
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/cart", nil)
	req = identityContext(req, &auth.Identity{UID: "user-1"})
	rec := httptest.NewRecorder()
	newCartTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if cleared != "user-1" {
		t.Fatalf("expected clear for user-1, got %q", cleared)
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	newCartTestRouter(&stubCartService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
