package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/machinehub/api/internal/platform/httpx"
	"github.com/machinehub/api/internal/services"
)

const (
	maxWebhookBodySize = 32 * 1024

	defaultWebhookRateLimit  = 60
	defaultWebhookRateWindow = time.Minute
)

// WebhookHandlers receives asynchronous callbacks from the payment gateway.
// These routes are unauthenticated; the payload itself carries an HMAC
// signature that the order service verifies before touching any state.
type WebhookHandlers struct {
	orders  services.OrderService
	limiter rateLimiter
}

// WebhookOption customises WebhookHandlers construction.
type WebhookOption func(*WebhookHandlers)

// WithWebhookRateLimiter overrides the per-source rate limiter.
func WithWebhookRateLimiter(limiter rateLimiter) WebhookOption {
	return func(h *WebhookHandlers) {
		h.limiter = limiter
	}
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(orders services.OrderService, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{
		orders:  orders,
		limiter: newCallbackRateLimiter(defaultWebhookRateLimit, defaultWebhookRateWindow, time.Now),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/gateway/payment", h.gatewayPayment)
}

type gatewayPaymentRequest struct {
	GatewayOrderRef   string `json:"gateway_order_ref"`
	GatewayPaymentRef string `json:"gateway_payment_ref"`
	Signature         string `json:"signature"`
}

type gatewayPaymentResponse struct {
	Verified    bool   `json:"verified"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

func (h *WebhookHandlers) gatewayPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many callbacks from this source", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req gatewayPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ConfirmGatewayPayment(ctx, services.GatewayCallbackCommand{
		GatewayOrderRef:   req.GatewayOrderRef,
		GatewayPaymentRef: req.GatewayPaymentRef,
		Signature:         req.Signature,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, gatewayPaymentResponse{
		Verified:    true,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.FulfillmentStatus),
	})
}

// clientKey derives the rate-limit bucket for a callback source. RealIP
// middleware has already rewritten RemoteAddr when a forwarding header is
// present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return strings.TrimSpace(host)
}
