package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGatewayTimeout = 15 * time.Second

// GatewayLogger defines the logging contract for gateway operations.
type GatewayLogger func(ctx context.Context, event string, fields map[string]any)

// GatewayProviderConfig configures the GatewayProvider.
type GatewayProviderConfig struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	HTTPClient *http.Client
	Logger     GatewayLogger
	Clock      func() time.Time
}

// GatewayProvider talks to the payment gateway over its JSON HTTP API and
// verifies callback signatures with the shared key secret.
type GatewayProvider struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	logger    GatewayLogger
	clock     func() time.Time
}

// NewGatewayProvider constructs a gateway Provider using the given configuration.
func NewGatewayProvider(cfg GatewayProviderConfig) (*GatewayProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("gateway: invalid base url: %w", err)
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errors.New("gateway: key id and key secret are required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultGatewayTimeout}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &GatewayProvider{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		client:    client,
		logger:    logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

type gatewayIntentPayload struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type gatewayIntentResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// OpenIntent registers a payment intent with the gateway.
func (p *GatewayProvider) OpenIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("gateway: provider is nil")
	}
	if req.Amount <= 0 {
		return Intent{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Intent{}, fmt.Errorf("%w: currency is required", ErrInvalidRequest)
	}

	payload := gatewayIntentPayload{
		Amount:   req.Amount,
		Currency: currency,
		Receipt:  strings.TrimSpace(req.ReceiptRef),
		Notes:    req.Notes,
	}

	var resp gatewayIntentResponse
	if err := p.post(ctx, "/v1/orders", payload, &resp); err != nil {
		p.logger(ctx, "payments.gateway.open_intent_failed", map[string]any{
			"receipt": payload.Receipt,
			"error":   err.Error(),
		})
		return Intent{}, err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return Intent{}, fmt.Errorf("%w: gateway returned no intent id", ErrGatewayUnavailable)
	}

	p.logger(ctx, "payments.gateway.intent_opened", map[string]any{
		"intent_id": resp.ID,
		"amount":    resp.Amount,
		"currency":  resp.Currency,
	})

	return Intent{
		ID:        resp.ID,
		Amount:    resp.Amount,
		Currency:  resp.Currency,
		Status:    resp.Status,
		CreatedAt: p.intentTime(resp.CreatedAt),
	}, nil
}

// VerifyCallbackSignature checks the callback HMAC in constant time.
func (p *GatewayProvider) VerifyCallbackSignature(intentID, paymentID, signature string) bool {
	if p == nil {
		return false
	}
	intentID = strings.TrimSpace(intentID)
	paymentID = strings.TrimSpace(paymentID)
	signature = strings.TrimSpace(signature)
	if intentID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := computeCallbackSignature(p.keySecret, intentID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

type gatewayRefundPayload struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

type gatewayRefundResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// Refund requests a refund for a captured payment.
func (p *GatewayProvider) Refund(ctx context.Context, req RefundRequest) (Refund, error) {
	if p == nil {
		return Refund{}, errors.New("gateway: provider is nil")
	}
	paymentRef := strings.TrimSpace(req.PaymentRef)
	if paymentRef == "" {
		return Refund{}, fmt.Errorf("%w: payment ref is required", ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return Refund{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}

	var resp gatewayRefundResponse
	path := "/v1/payments/" + url.PathEscape(paymentRef) + "/refund"
	if err := p.post(ctx, path, gatewayRefundPayload{Amount: req.Amount, Reason: strings.TrimSpace(req.Reason)}, &resp); err != nil {
		return Refund{}, err
	}

	p.logger(ctx, "payments.gateway.refund_requested", map[string]any{
		"payment_ref": paymentRef,
		"refund_id":   resp.ID,
	})

	return Refund{
		ID:        resp.ID,
		Status:    resp.Status,
		CreatedAt: p.intentTime(resp.CreatedAt),
	}, nil
}

func (p *GatewayProvider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrInvalidRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.keyID, p.keySecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: gateway rejected request with status %d", ErrInvalidRequest, resp.StatusCode)
	default:
		return fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

func (p *GatewayProvider) intentTime(unix int64) time.Time {
	if unix > 0 {
		return time.Unix(unix, 0).UTC()
	}
	return p.clock()
}

func computeCallbackSignature(secret, intentID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Provider = (*GatewayProvider)(nil)
