package services

import (
	"context"

	domain "github.com/machinehub/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product            = domain.Product
	CartLine           = domain.CartLine
	Contact            = domain.Contact
	Address            = domain.Address
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderTotals        = domain.OrderTotals
	Payment            = domain.Payment
	PaymentMethod      = domain.PaymentMethod
	FulfillmentStatus  = domain.FulfillmentStatus
	StatusEvent        = domain.StatusEvent
	SystemHealthReport = domain.SystemHealthReport
)

// AddCartLineCommand captures a request to add a product to the owner's cart.
type AddCartLineCommand struct {
	OwnerID   string
	ProductID string
	Quantity  int
}

// SetCartQuantityCommand replaces the quantity of an existing cart line.
type SetCartQuantityCommand struct {
	OwnerID   string
	ProductID string
	Quantity  int
}

// CartService manages the per-user cart of product lines.
type CartService interface {
	List(ctx context.Context, ownerID string) ([]CartLine, error)
	AddLine(ctx context.Context, cmd AddCartLineCommand) ([]CartLine, error)
	SetQuantity(ctx context.Context, cmd SetCartQuantityCommand) ([]CartLine, error)
	RemoveLine(ctx context.Context, ownerID, productID string) ([]CartLine, error)
	Clear(ctx context.Context, ownerID string) error
}

// DirectItemInput is a single line of a direct (cart-less) checkout.
type DirectItemInput struct {
	ProductID string
	Quantity  int
}

// DirectCheckoutCommand places an order straight from the supplied items.
type DirectCheckoutCommand struct {
	OwnerID         string
	Contact         Contact
	ShippingAddress Address
	Items           []DirectItemInput
	PaymentMethod   PaymentMethod
	ShippingFee     int64
}

// TotalsInput is the client-precomputed money breakdown for a cart checkout.
type TotalsInput struct {
	Subtotal    int64
	Tax         int64
	ShippingFee int64
	GrandTotal  int64
}

// CartCheckoutCommand places an order from the owner's current cart.
type CartCheckoutCommand struct {
	OwnerID         string
	Contact         Contact
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	Totals          TotalsInput
}

// OrderQuery identifies an order and optionally constrains ownership. An
// empty OwnerID skips the ownership check and is reserved for staff callers.
type OrderQuery struct {
	OrderID string
	OwnerID string
}

// OrderNumberQuery looks an order up by its human-facing number.
type OrderNumberQuery struct {
	OrderNumber string
	OwnerID     string
}

// TransitionCommand advances an order's fulfillment status.
type TransitionCommand struct {
	OrderID string
	Target  FulfillmentStatus
	Message string
	ActorID string
}

// CancelCommand cancels an order. OwnerID, when set, must match the order owner.
type CancelCommand struct {
	OrderID string
	OwnerID string
	Reason  string
	ActorID string
}

// GatewayCallbackCommand carries a payment gateway callback for verification.
type GatewayCallbackCommand struct {
	GatewayOrderRef   string
	GatewayPaymentRef string
	Signature         string
}

// OrderService owns order placement, payment confirmation and fulfillment.
type OrderService interface {
	PlaceDirect(ctx context.Context, cmd DirectCheckoutCommand) (Order, error)
	PlaceFromCart(ctx context.Context, cmd CartCheckoutCommand) (Order, error)
	GetOrder(ctx context.Context, query OrderQuery) (Order, error)
	GetOrderByNumber(ctx context.Context, query OrderNumberQuery) (Order, error)
	ListOrders(ctx context.Context, ownerID string, limit int) ([]Order, error)
	ListOrdersByStatus(ctx context.Context, status FulfillmentStatus, limit int) ([]Order, error)
	Transition(ctx context.Context, cmd TransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelCommand) (Order, error)
	ConfirmGatewayPayment(ctx context.Context, cmd GatewayCallbackCommand) (Order, error)
}

// OrderNotifier receives order lifecycle events for receipt and mail dispatch.
// Implementations must never block or fail the triggering operation.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order Order)
	PaymentConfirmed(ctx context.Context, order Order)
	OrderStatusChanged(ctx context.Context, order Order, previous FulfillmentStatus)
	Close(ctx context.Context) error
}

// SystemService exposes operational health information.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
