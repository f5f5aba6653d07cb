package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/platform/auth"
	"github.com/machinehub/api/internal/platform/httpx"
	"github.com/machinehub/api/internal/services"
)

const maxOrderCancelBodySize = 4 * 1024

// OrderHandlers exposes order endpoints for authenticated users.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/number/{orderNumber}", h.getOrderByNumber)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderListResponse struct {
	Orders []orderSummaryPayload `json:"orders"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	GrandTotal  int64  `json:"grand_total"`
	PlacedAt    string `json:"placed_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID                 string               `json:"id"`
	OrderNumber        string               `json:"order_number"`
	OwnerID            string               `json:"owner_id"`
	Status             string               `json:"status"`
	Currency           string               `json:"currency"`
	Contact            orderContactPayload  `json:"contact"`
	ShippingAddress    orderAddressPayload  `json:"shipping_address"`
	Items              []orderItemPayload   `json:"items"`
	Totals             orderTotalsPayload   `json:"totals"`
	Payment            orderPaymentPayload  `json:"payment"`
	StatusHistory      []statusEventPayload `json:"status_history"`
	ExpectedDeliveryAt string               `json:"expected_delivery_at,omitempty"`
	PlacedAt           string               `json:"placed_at"`
	PackedAt           string               `json:"packed_at,omitempty"`
	ShippedAt          string               `json:"shipped_at,omitempty"`
	OutForDeliveryAt   string               `json:"out_for_delivery_at,omitempty"`
	DeliveredAt        string               `json:"delivered_at,omitempty"`
	CancelledAt        string               `json:"cancelled_at,omitempty"`
	CancelReason       string               `json:"cancel_reason,omitempty"`
	CreatedAt          string               `json:"created_at"`
	UpdatedAt          string               `json:"updated_at,omitempty"`
}

type orderContactPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type orderAddressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type orderTotalsPayload struct {
	Subtotal    int64 `json:"subtotal"`
	Tax         int64 `json:"tax"`
	ShippingFee int64 `json:"shipping_fee"`
	GrandTotal  int64 `json:"grand_total"`
}

type orderPaymentPayload struct {
	Method            string `json:"method"`
	Status            string `json:"status"`
	GatewayOrderRef   string `json:"gateway_order_ref,omitempty"`
	GatewayPaymentRef string `json:"gateway_payment_ref,omitempty"`
	PaidAt            string `json:"paid_at,omitempty"`
	RefundedAt        string `json:"refunded_at,omitempty"`
}

type statusEventPayload struct {
	Seq     int    `json:"seq"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
	At      string `json:"at"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	orders, err := h.orders.ListOrders(ctx, identity.UID, limit)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(orders))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, services.OrderQuery{OrderID: orderID, OwnerID: identity.UID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	if orderNumber == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order number is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrderByNumber(ctx, services.OrderNumberQuery{OrderNumber: orderNumber, OwnerID: identity.UID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderCancelBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelCommand{
		OrderID: orderID,
		OwnerID: identity.UID,
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderSignatureMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("signature_mismatch", "callback signature could not be verified", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderGatewayUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_unavailable", "payment gateway unavailable", http.StatusBadGateway))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

func buildOrderListResponse(orders []domain.Order) orderListResponse {
	resp := orderListResponse{Orders: make([]orderSummaryPayload, 0, len(orders))}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, orderSummaryPayload{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			Status:      string(order.FulfillmentStatus),
			Currency:    order.Currency,
			GrandTotal:  order.Totals.GrandTotal,
			PlacedAt:    formatTime(order.PlacedAt),
		})
	}
	return resp
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		OwnerID:     order.OwnerID,
		Status:      string(order.FulfillmentStatus),
		Currency:    order.Currency,
		Contact: orderContactPayload{
			Name:  order.Contact.Name,
			Email: order.Contact.Email,
			Phone: order.Contact.Phone,
		},
		ShippingAddress: orderAddressPayload{
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		Items: make([]orderItemPayload, 0, len(order.Items)),
		Totals: orderTotalsPayload{
			Subtotal:    order.Totals.Subtotal,
			Tax:         order.Totals.Tax,
			ShippingFee: order.Totals.ShippingFee,
			GrandTotal:  order.Totals.GrandTotal,
		},
		Payment: orderPaymentPayload{
			Method:            string(order.Payment.Method),
			Status:            string(order.Payment.Status),
			GatewayOrderRef:   order.Payment.GatewayOrderRef,
			GatewayPaymentRef: order.Payment.GatewayPaymentRef,
			PaidAt:            formatTimePtr(order.Payment.PaidAt),
			RefundedAt:        formatTimePtr(order.Payment.RefundedAt),
		},
		StatusHistory:      make([]statusEventPayload, 0, len(order.StatusHistory)),
		ExpectedDeliveryAt: formatTime(order.ExpectedDeliveryAt),
		PlacedAt:           formatTime(order.PlacedAt),
		PackedAt:           formatTimePtr(order.PackedAt),
		ShippedAt:          formatTimePtr(order.ShippedAt),
		OutForDeliveryAt:   formatTimePtr(order.OutForDeliveryAt),
		DeliveredAt:        formatTimePtr(order.DeliveredAt),
		CancelledAt:        formatTimePtr(order.CancelledAt),
		CancelReason:       order.CancelReason,
		CreatedAt:          formatTime(order.CreatedAt),
		UpdatedAt:          formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	for _, event := range order.StatusHistory {
		payload.StatusHistory = append(payload.StatusHistory, statusEventPayload{
			Seq:     event.Seq,
			Status:  string(event.Status),
			Message: event.Message,
			ActorID: event.ActorID,
			At:      formatTime(event.At),
		})
	}
	return payload
}
