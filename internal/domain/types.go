package domain

import (
	"slices"
	"time"
)

// Product is the catalog snapshot consumed by cart and checkout flows.
// Catalog management itself lives outside this service; products are read-only here.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Brand       string
	UnitPrice   int64
	Currency    string
	ImageURL    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartLine stores a single product entry in an owner's cart. At most one line
// exists per (OwnerID, ProductID); re-adding the same product increments the
// quantity while UnitPrice keeps the value captured at first insert.
type CartLine struct {
	OwnerID   string
	ProductID string
	Quantity  int
	UnitPrice int64
	Currency  string
	AddedAt   time.Time
	UpdatedAt time.Time

	// Live catalog snapshot attached at read time; never persisted.
	Name         string
	ImageURL     string
	CatalogPrice int64
}

// Contact is the customer contact snapshot frozen onto an order at placement.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Address is the shipping destination snapshot frozen onto an order at placement.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderItem is a priced line item snapshot within an order.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// OrderTotals is the monetary breakdown of an order. All amounts are minor
// units in the order currency and Subtotal+Tax+ShippingFee must equal GrandTotal.
type OrderTotals struct {
	Subtotal    int64
	Tax         int64
	ShippingFee int64
	GrandTotal  int64
}

// PaymentMethod enumerates how an order is settled.
type PaymentMethod string

const (
	// PaymentMethodCOD settles on delivery; it is the default for direct purchases.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodCard is the demo card path marked successful at placement.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodGateway settles through the external payment gateway.
	PaymentMethodGateway PaymentMethod = "gateway"
)

// PaymentStatus enumerates settlement states of an order's payment.
type PaymentStatus string

const (
	// PaymentStatusPending indicates settlement has not completed.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusSuccess indicates the payment is settled.
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusFailed indicates settlement failed terminally.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates a refund was issued after settlement.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment captures the settlement state carried on an order.
type Payment struct {
	Method            PaymentMethod
	Status            PaymentStatus
	GatewayOrderRef   string
	GatewayPaymentRef string
	PaidAt            *time.Time
	RefundedAt        *time.Time
}

// FulfillmentStatus enumerates the order fulfillment lifecycle.
type FulfillmentStatus string

const (
	// FulfillmentPlaced is the initial status of every order.
	FulfillmentPlaced FulfillmentStatus = "placed"
	// FulfillmentPacked indicates the order has been packed.
	FulfillmentPacked FulfillmentStatus = "packed"
	// FulfillmentShipped indicates the order has left the warehouse.
	FulfillmentShipped FulfillmentStatus = "shipped"
	// FulfillmentOutForDelivery indicates the order is with the courier for final delivery.
	FulfillmentOutForDelivery FulfillmentStatus = "out_for_delivery"
	// FulfillmentDelivered is the terminal success status.
	FulfillmentDelivered FulfillmentStatus = "delivered"
	// FulfillmentCancelled is the terminal cancellation status.
	FulfillmentCancelled FulfillmentStatus = "cancelled"
)

// fulfillmentTransitions lists the statuses reachable from each status.
// Forward skipping is allowed; backward moves are not. Cancellation is only
// reachable before the order ships.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPlaced:         {FulfillmentPacked, FulfillmentShipped, FulfillmentOutForDelivery, FulfillmentDelivered, FulfillmentCancelled},
	FulfillmentPacked:         {FulfillmentShipped, FulfillmentOutForDelivery, FulfillmentDelivered, FulfillmentCancelled},
	FulfillmentShipped:        {FulfillmentOutForDelivery, FulfillmentDelivered},
	FulfillmentOutForDelivery: {FulfillmentDelivered},
	FulfillmentDelivered:      {},
	FulfillmentCancelled:      {},
}

// CancellableStatuses lists the statuses from which an order may still be cancelled.
var CancellableStatuses = []FulfillmentStatus{FulfillmentPlaced, FulfillmentPacked}

// CanTransition reports whether an order may move from current to target.
func CanTransition(current, target FulfillmentStatus) bool {
	next, ok := fulfillmentTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// IsTerminalStatus reports whether no further transitions exist from status.
func IsTerminalStatus(status FulfillmentStatus) bool {
	return status == FulfillmentDelivered || status == FulfillmentCancelled
}

// ValidFulfillmentStatus reports whether the value names a known status.
func ValidFulfillmentStatus(status FulfillmentStatus) bool {
	_, ok := fulfillmentTransitions[status]
	return ok
}

// StatusEvent is one append-only entry in an order's status history. Seq is
// the authoritative ordering; At is informational wall-clock time.
type StatusEvent struct {
	Seq     int
	Status  FulfillmentStatus
	Message string
	ActorID string
	At      time.Time
}

// Order is the immutable record of a placed purchase plus its mutable
// settlement and fulfillment state. The last StatusHistory entry always
// reflects FulfillmentStatus.
type Order struct {
	ID                 string
	OrderNumber        string
	OwnerID            string
	Currency           string
	Contact            Contact
	ShippingAddress    Address
	Items              []OrderItem
	Totals             OrderTotals
	Payment            Payment
	FulfillmentStatus  FulfillmentStatus
	StatusHistory      []StatusEvent
	ExpectedDeliveryAt time.Time
	PlacedAt           time.Time
	PackedAt           *time.Time
	ShippedAt          *time.Time
	OutForDeliveryAt   *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancelReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HealthStatus values reported by readiness probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probe results.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
}
