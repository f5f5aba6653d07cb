package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/platform/auth"
	"github.com/machinehub/api/internal/platform/httpx"
	"github.com/machinehub/api/internal/services"
)

const maxCheckoutBodySize = 32 * 1024

// CheckoutHandlers exposes order placement endpoints for authenticated users.
type CheckoutHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewCheckoutHandlers constructs checkout handlers guarded by bearer authentication.
func NewCheckoutHandlers(authn *auth.Authenticator, orders services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/direct", h.directCheckout)
	r.Post("/from-cart", h.cartCheckout)
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type addressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type directItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type directCheckoutRequest struct {
	Contact         contactRequest      `json:"contact"`
	ShippingAddress addressRequest      `json:"shipping_address"`
	Items           []directItemRequest `json:"items"`
	PaymentMethod   string              `json:"payment_method"`
	ShippingFee     int64               `json:"shipping_fee"`
}

type totalsRequest struct {
	Subtotal    int64 `json:"subtotal"`
	Tax         int64 `json:"tax"`
	ShippingFee int64 `json:"shipping_fee"`
	GrandTotal  int64 `json:"grand_total"`
}

type cartCheckoutRequest struct {
	Contact         contactRequest `json:"contact"`
	ShippingAddress addressRequest `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	Totals          totalsRequest  `json:"totals"`
}

func (h *CheckoutHandlers) directCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req directCheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.DirectCheckoutCommand{
		OwnerID:         identity.UID,
		Contact:         buildContact(req.Contact),
		ShippingAddress: buildAddress(req.ShippingAddress),
		PaymentMethod:   domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		ShippingFee:     req.ShippingFee,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.DirectItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.PlaceDirect(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *CheckoutHandlers) cartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req cartCheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CartCheckoutCommand{
		OwnerID:         identity.UID,
		Contact:         buildContact(req.Contact),
		ShippingAddress: buildAddress(req.ShippingAddress),
		PaymentMethod:   domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Totals: services.TotalsInput{
			Subtotal:    req.Totals.Subtotal,
			Tax:         req.Totals.Tax,
			ShippingFee: req.Totals.ShippingFee,
			GrandTotal:  req.Totals.GrandTotal,
		},
	}

	order, err := h.orders.PlaceFromCart(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func buildContact(req contactRequest) domain.Contact {
	return domain.Contact{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	}
}

func buildAddress(req addressRequest) domain.Address {
	return domain.Address{
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      strings.TrimSpace(req.Line2),
		City:       strings.TrimSpace(req.City),
		State:      strings.TrimSpace(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
	}
}
