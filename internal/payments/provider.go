// Package payments abstracts the external payment gateway used to collect
// online payments for orders.
package payments

import (
	"context"
	"errors"
	"time"
)

// ErrGatewayUnavailable indicates the gateway could not be reached or failed
// to open an intent. Callers treat it as a retryable upstream outage.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// ErrInvalidRequest indicates the request could not be submitted as given.
var ErrInvalidRequest = errors.New("payments: invalid request")

// IntentRequest describes a payment intent to open before an order is persisted.
type IntentRequest struct {
	ReceiptRef string
	Amount     int64
	Currency   string
	Notes      map[string]string
}

// Intent is the gateway-side record a customer completes payment against.
type Intent struct {
	ID        string
	Amount    int64
	Currency  string
	Status    string
	CreatedAt time.Time
}

// RefundRequest asks the gateway to return a captured payment.
type RefundRequest struct {
	PaymentRef string
	Amount     int64
	Reason     string
}

// Refund is the gateway's acknowledgement of a refund request.
type Refund struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

// Provider is the payment gateway contract consumed by the order service.
type Provider interface {
	// OpenIntent registers a payment intent with the gateway. It is called
	// before the order is persisted, so a failure aborts checkout.
	OpenIntent(ctx context.Context, req IntentRequest) (Intent, error)

	// VerifyCallbackSignature reports whether the callback signature matches
	// the expected HMAC for the given intent and payment identifiers. A
	// mismatch is an expected outcome, not an error.
	VerifyCallbackSignature(intentID, paymentID, signature string) bool

	// Refund requests a refund for a captured payment.
	Refund(ctx context.Context, req RefundRequest) (Refund, error)
}
