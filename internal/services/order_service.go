package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/payments"
	"github.com/machinehub/api/internal/repositories"
)

const (
	defaultTaxRateBasisPoints = 1800
	defaultDeliveryDays       = 7
	defaultCurrency           = "INR"
	defaultOrderListLimit     = 50
	maxOrderListLimit         = 200
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist or is not visible to the caller.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderConflict indicates the order could not be written due to a uniqueness or concurrency failure.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// ErrOrderInvalidTransition indicates the requested fulfillment change is not allowed.
var ErrOrderInvalidTransition = errors.New("order service: invalid transition")

// ErrOrderGatewayUnavailable indicates the payment gateway rejected or failed the intent.
var ErrOrderGatewayUnavailable = errors.New("order service: payment gateway unavailable")

// ErrOrderSignatureMismatch indicates a gateway callback carried a signature
// that does not match the expected HMAC.
var ErrOrderSignatureMismatch = errors.New("order service: signature mismatch")

// CheckoutPolicy holds the pricing defaults applied at order placement.
type CheckoutPolicy struct {
	TaxRateBasisPoints int
	ShippingFee        int64
	DeliveryDays       int
	Currency           string
}

// OrderServiceDeps bundles collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Gateway     payments.Provider
	Notifier    OrderNotifier
	Policy      CheckoutPolicy
	Clock       func() time.Time
	IDGenerator func() string
	OrderNumber OrderNumberGenerator
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	carts       repositories.CartRepository
	products    repositories.ProductRepository
	gateway     payments.Provider
	notifier    OrderNotifier
	policy      CheckoutPolicy
	clock       func() time.Time
	newID       func() string
	orderNumber OrderNumberGenerator
	logger      func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into an OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}

	policy := deps.Policy
	if policy.TaxRateBasisPoints <= 0 {
		policy.TaxRateBasisPoints = defaultTaxRateBasisPoints
	}
	if policy.DeliveryDays <= 0 {
		policy.DeliveryDays = defaultDeliveryDays
	}
	policy.Currency = strings.ToUpper(strings.TrimSpace(policy.Currency))
	if policy.Currency == "" {
		policy.Currency = defaultCurrency
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string {
			return ulid.Make().String()
		}
	}

	numberGen := deps.OrderNumber
	if numberGen == nil {
		numberGen = DefaultOrderNumberGenerator()
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		carts:    deps.Carts,
		products: deps.Products,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		policy:   policy,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:       newID,
		orderNumber: numberGen,
		logger:      logger,
	}, nil
}

// PlaceDirect places an order straight from the supplied items, pricing them
// from the catalog and applying the configured tax rate.
func (s *orderService) PlaceDirect(ctx context.Context, cmd DirectCheckoutCommand) (Order, error) {
	owner := strings.TrimSpace(cmd.OwnerID)
	if owner == "" {
		return Order{}, fmt.Errorf("%w: owner id is required", ErrOrderInvalidInput)
	}
	if err := validateRecipient(cmd.Contact, cmd.ShippingAddress); err != nil {
		return Order{}, err
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}

	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if err := validatePaymentMethod(method); err != nil {
		return Order{}, err
	}

	items, subtotal, err := s.priceDirectItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	shippingFee := cmd.ShippingFee
	if shippingFee < 0 {
		return Order{}, fmt.Errorf("%w: shipping fee must not be negative", ErrOrderInvalidInput)
	}
	if shippingFee == 0 {
		shippingFee = s.policy.ShippingFee
	}

	tax := subtotal * int64(s.policy.TaxRateBasisPoints) / 10000
	totals := domain.OrderTotals{
		Subtotal:    subtotal,
		Tax:         tax,
		ShippingFee: shippingFee,
		GrandTotal:  subtotal + tax + shippingFee,
	}

	return s.createOrder(ctx, createOrderParams{
		OwnerID:         owner,
		Contact:         cmd.Contact,
		ShippingAddress: cmd.ShippingAddress,
		Items:           items,
		Totals:          totals,
		Method:          method,
		ClearCart:       false,
	})
}

// PlaceFromCart places an order from the owner's current cart, validating the
// client-precomputed totals against the stored lines. The cart is cleared
// after the order is persisted.
func (s *orderService) PlaceFromCart(ctx context.Context, cmd CartCheckoutCommand) (Order, error) {
	owner := strings.TrimSpace(cmd.OwnerID)
	if owner == "" {
		return Order{}, fmt.Errorf("%w: owner id is required", ErrOrderInvalidInput)
	}
	if err := validateRecipient(cmd.Contact, cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	method := cmd.PaymentMethod
	if method == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}
	if err := validatePaymentMethod(method); err != nil {
		return Order{}, err
	}

	lines, err := s.carts.ListByOwner(ctx, owner)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if len(lines) == 0 {
		return Order{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}

	items := make([]domain.OrderItem, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		name := line.ProductID
		if product, prodErr := s.products.FindByID(ctx, line.ProductID); prodErr == nil {
			name = product.Name
		}
		lineTotal := int64(line.Quantity) * line.UnitPrice
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Name:      name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}

	if err := validateTotals(cmd.Totals, subtotal); err != nil {
		return Order{}, err
	}
	totals := domain.OrderTotals{
		Subtotal:    cmd.Totals.Subtotal,
		Tax:         cmd.Totals.Tax,
		ShippingFee: cmd.Totals.ShippingFee,
		GrandTotal:  cmd.Totals.GrandTotal,
	}

	return s.createOrder(ctx, createOrderParams{
		OwnerID:         owner,
		Contact:         cmd.Contact,
		ShippingAddress: cmd.ShippingAddress,
		Items:           items,
		Totals:          totals,
		Method:          method,
		ClearCart:       true,
	})
}

type createOrderParams struct {
	OwnerID         string
	Contact         domain.Contact
	ShippingAddress domain.Address
	Items           []domain.OrderItem
	Totals          domain.OrderTotals
	Method          domain.PaymentMethod
	ClearCart       bool
}

// createOrder is the single creation routine shared by both checkout paths.
// The gateway intent is opened before the order is persisted, so a gateway
// failure leaves no partial order behind.
func (s *orderService) createOrder(ctx context.Context, params createOrderParams) (Order, error) {
	now := s.clock()
	orderID := s.newID()
	orderNumber := s.orderNumber(now)

	payment := domain.Payment{
		Method: params.Method,
		Status: domain.PaymentStatusPending,
	}

	switch params.Method {
	case domain.PaymentMethodGateway:
		intent, err := s.gateway.OpenIntent(ctx, payments.IntentRequest{
			ReceiptRef: orderNumber,
			Amount:     params.Totals.GrandTotal,
			Currency:   s.policy.Currency,
			Notes: map[string]string{
				"ownerId":     params.OwnerID,
				"orderNumber": orderNumber,
			},
		})
		if err != nil {
			if errors.Is(err, payments.ErrInvalidRequest) {
				return Order{}, fmt.Errorf("%w: gateway rejected intent", ErrOrderInvalidInput)
			}
			return Order{}, fmt.Errorf("%w: %v", ErrOrderGatewayUnavailable, err)
		}
		payment.GatewayOrderRef = intent.ID
	case domain.PaymentMethodCard:
		// Demo card flow settles immediately.
		paidAt := now
		payment.Status = domain.PaymentStatusSuccess
		payment.PaidAt = &paidAt
	}

	order := domain.Order{
		ID:                orderID,
		OrderNumber:       orderNumber,
		OwnerID:           params.OwnerID,
		Currency:          s.policy.Currency,
		Contact:           params.Contact,
		ShippingAddress:   params.ShippingAddress,
		Items:             params.Items,
		Totals:            params.Totals,
		Payment:           payment,
		FulfillmentStatus: domain.FulfillmentPlaced,
		StatusHistory: []domain.StatusEvent{
			{Seq: 1, Status: domain.FulfillmentPlaced, Message: "Order placed", ActorID: params.OwnerID, At: now},
		},
		ExpectedDeliveryAt: now.Add(time.Duration(s.policy.DeliveryDays) * 24 * time.Hour),
		PlacedAt:           now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		if payment.GatewayOrderRef != "" {
			s.logger(ctx, "order.intent_dangling", map[string]any{
				"order_number": orderNumber,
				"intent_id":    payment.GatewayOrderRef,
			})
		}
		return Order{}, s.translateRepoError(err)
	}

	if params.ClearCart {
		if err := s.carts.Clear(ctx, params.OwnerID); err != nil {
			s.logger(ctx, "order.cart_clear_failed", map[string]any{
				"order_id": orderID,
				"owner_id": params.OwnerID,
				"error":    err.Error(),
			})
		}
	}

	s.logger(ctx, "order.placed", map[string]any{
		"order_id":     orderID,
		"order_number": orderNumber,
		"method":       string(params.Method),
		"grand_total":  params.Totals.GrandTotal,
	})

	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, order)
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, query OrderQuery) (Order, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if owner := strings.TrimSpace(query.OwnerID); owner != "" && order.OwnerID != owner {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, query OrderNumberQuery) (Order, error) {
	number := strings.TrimSpace(query.OrderNumber)
	if number == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByOrderNumber(ctx, number)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if owner := strings.TrimSpace(query.OwnerID); owner != "" && order.OwnerID != owner {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, ownerID string, limit int) ([]Order, error) {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.ListByOwner(ctx, owner, normaliseLimit(limit))
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

func (s *orderService) ListOrdersByStatus(ctx context.Context, status FulfillmentStatus, limit int) ([]Order, error) {
	if !domain.ValidFulfillmentStatus(status) {
		return nil, fmt.Errorf("%w: unknown fulfillment status %q", ErrOrderInvalidInput, status)
	}
	orders, err := s.orders.ListByStatus(ctx, status, normaliseLimit(limit))
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

// Transition advances an order forward through the fulfillment flow. Skipping
// intermediate statuses is allowed; moving backwards is not. Cancellation goes
// through Cancel.
func (s *orderService) Transition(ctx context.Context, cmd TransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !domain.ValidFulfillmentStatus(cmd.Target) {
		return Order{}, fmt.Errorf("%w: unknown fulfillment status %q", ErrOrderInvalidInput, cmd.Target)
	}
	if cmd.Target == domain.FulfillmentCancelled {
		return Order{}, fmt.Errorf("%w: cancellation must use the cancel operation", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	previous := order.FulfillmentStatus
	if !domain.CanTransition(previous, cmd.Target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, previous, cmd.Target)
	}

	now := s.clock()
	s.applyStatusTransition(&order, cmd.Target, now)
	appendStatusEvent(&order, cmd.Target, statusMessage(cmd.Target, cmd.Message), cmd.ActorID, now)

	// Cash on delivery settles when the parcel is handed over.
	if cmd.Target == domain.FulfillmentDelivered &&
		order.Payment.Method == domain.PaymentMethodCOD &&
		order.Payment.Status != domain.PaymentStatusSuccess {
		paidAt := now
		order.Payment.Status = domain.PaymentStatusSuccess
		order.Payment.PaidAt = &paidAt
	}

	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"order_id": order.ID,
		"from":     string(previous),
		"to":       string(cmd.Target),
	})

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, order, previous)
	}
	return order, nil
}

// Cancel cancels an order still in a cancellable status. Gateway payments
// already captured are refunded best effort; a refund failure is logged and
// does not block the cancellation.
func (s *orderService) Cancel(ctx context.Context, cmd CancelCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if owner := strings.TrimSpace(cmd.OwnerID); owner != "" && order.OwnerID != owner {
		return Order{}, ErrOrderNotFound
	}
	if !slices.Contains(domain.CancellableStatuses, order.FulfillmentStatus) {
		return Order{}, fmt.Errorf("%w: cannot cancel order in status %s", ErrOrderInvalidTransition, order.FulfillmentStatus)
	}

	now := s.clock()
	previous := order.FulfillmentStatus

	if order.Payment.Method == domain.PaymentMethodGateway &&
		order.Payment.Status == domain.PaymentStatusSuccess &&
		order.Payment.GatewayPaymentRef != "" {
		refund, refundErr := s.gateway.Refund(ctx, payments.RefundRequest{
			PaymentRef: order.Payment.GatewayPaymentRef,
			Amount:     order.Totals.GrandTotal,
			Reason:     strings.TrimSpace(cmd.Reason),
		})
		if refundErr != nil {
			s.logger(ctx, "order.refund_failed", map[string]any{
				"order_id":    order.ID,
				"payment_ref": order.Payment.GatewayPaymentRef,
				"error":       refundErr.Error(),
			})
		} else {
			refundedAt := now
			order.Payment.Status = domain.PaymentStatusRefunded
			order.Payment.RefundedAt = &refundedAt
			s.logger(ctx, "order.refunded", map[string]any{
				"order_id":  order.ID,
				"refund_id": refund.ID,
			})
		}
	}

	cancelledAt := now
	order.FulfillmentStatus = domain.FulfillmentCancelled
	order.CancelledAt = &cancelledAt
	order.CancelReason = strings.TrimSpace(cmd.Reason)
	appendStatusEvent(&order, domain.FulfillmentCancelled, statusMessage(domain.FulfillmentCancelled, cmd.Reason), cmd.ActorID, now)
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.cancelled", map[string]any{
		"order_id": order.ID,
		"from":     string(previous),
	})

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, order, previous)
	}
	return order, nil
}

// ConfirmGatewayPayment applies a verified gateway callback to the matching
// order. An invalid signature is reported as a mismatch without touching the
// order. Replayed callbacks for an already settled payment are no-ops.
func (s *orderService) ConfirmGatewayPayment(ctx context.Context, cmd GatewayCallbackCommand) (Order, error) {
	orderRef := strings.TrimSpace(cmd.GatewayOrderRef)
	paymentRef := strings.TrimSpace(cmd.GatewayPaymentRef)
	signature := strings.TrimSpace(cmd.Signature)
	if orderRef == "" || paymentRef == "" || signature == "" {
		return Order{}, fmt.Errorf("%w: order ref, payment ref and signature are required", ErrOrderInvalidInput)
	}

	if !s.gateway.VerifyCallbackSignature(orderRef, paymentRef, signature) {
		s.logger(ctx, "order.callback_signature_mismatch", map[string]any{
			"gateway_order_ref": orderRef,
		})
		return Order{}, ErrOrderSignatureMismatch
	}

	order, err := s.orders.FindByGatewayOrderRef(ctx, orderRef)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	if order.Payment.Status == domain.PaymentStatusSuccess && order.Payment.GatewayPaymentRef == paymentRef {
		return order, nil
	}
	if order.FulfillmentStatus == domain.FulfillmentCancelled ||
		order.Payment.Status == domain.PaymentStatusRefunded {
		return Order{}, fmt.Errorf("%w: order no longer accepts payment", ErrOrderConflict)
	}

	now := s.clock()
	paidAt := now
	order.Payment.Status = domain.PaymentStatusSuccess
	order.Payment.GatewayPaymentRef = paymentRef
	order.Payment.PaidAt = &paidAt
	appendStatusEvent(&order, order.FulfillmentStatus, "Payment confirmed", "", now)
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.payment_confirmed", map[string]any{
		"order_id":    order.ID,
		"payment_ref": paymentRef,
	})

	if s.notifier != nil {
		s.notifier.PaymentConfirmed(ctx, order)
	}
	return order, nil
}

func (s *orderService) priceDirectItems(ctx context.Context, inputs []DirectItemInput) ([]domain.OrderItem, int64, error) {
	seen := make(map[string]struct{}, len(inputs))
	items := make([]domain.OrderItem, 0, len(inputs))
	var subtotal int64

	for _, input := range inputs {
		productID := strings.TrimSpace(input.ProductID)
		if productID == "" {
			return nil, 0, fmt.Errorf("%w: item product id is required", ErrOrderInvalidInput)
		}
		if input.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: item quantity must be positive", ErrOrderInvalidInput)
		}
		if _, dup := seen[productID]; dup {
			return nil, 0, fmt.Errorf("%w: duplicate item %s", ErrOrderInvalidInput, productID)
		}
		seen[productID] = struct{}{}

		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				return nil, 0, fmt.Errorf("%w: product %s not found", ErrOrderInvalidInput, productID)
			}
			return nil, 0, s.translateRepoError(err)
		}
		if !product.Active {
			return nil, 0, fmt.Errorf("%w: product %s is not available", ErrOrderInvalidInput, productID)
		}

		lineTotal := int64(input.Quantity) * product.UnitPrice
		items = append(items, domain.OrderItem{
			ProductID: productID,
			Name:      product.Name,
			Quantity:  input.Quantity,
			UnitPrice: product.UnitPrice,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}
	return items, subtotal, nil
}

func (s *orderService) applyStatusTransition(order *domain.Order, target domain.FulfillmentStatus, now time.Time) {
	order.FulfillmentStatus = target
	switch target {
	case domain.FulfillmentPacked:
		order.PackedAt = &now
	case domain.FulfillmentShipped:
		order.ShippedAt = &now
	case domain.FulfillmentOutForDelivery:
		order.OutForDeliveryAt = &now
	case domain.FulfillmentDelivered:
		order.DeliveredAt = &now
	}
}

func appendStatusEvent(order *domain.Order, status domain.FulfillmentStatus, message, actorID string, at time.Time) {
	seq := 1
	if n := len(order.StatusHistory); n > 0 {
		seq = order.StatusHistory[n-1].Seq + 1
	}
	order.StatusHistory = append(order.StatusHistory, domain.StatusEvent{
		Seq:     seq,
		Status:  status,
		Message: message,
		ActorID: strings.TrimSpace(actorID),
		At:      at,
	})
}

func statusMessage(status domain.FulfillmentStatus, override string) string {
	if msg := strings.TrimSpace(override); msg != "" {
		return msg
	}
	switch status {
	case domain.FulfillmentPacked:
		return "Order packed"
	case domain.FulfillmentShipped:
		return "Order shipped"
	case domain.FulfillmentOutForDelivery:
		return "Out for delivery"
	case domain.FulfillmentDelivered:
		return "Order delivered"
	case domain.FulfillmentCancelled:
		return "Order cancelled"
	default:
		return "Status updated"
	}
}

func validateRecipient(contact domain.Contact, address domain.Address) error {
	if strings.TrimSpace(contact.Name) == "" {
		return fmt.Errorf("%w: contact name is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(contact.Email) == "" || !strings.Contains(contact.Email, "@") {
		return fmt.Errorf("%w: contact email is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(address.Line1) == "" {
		return fmt.Errorf("%w: shipping address line1 is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(address.City) == "" {
		return fmt.Errorf("%w: shipping address city is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(address.PostalCode) == "" {
		return fmt.Errorf("%w: shipping address postal code is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(address.Country) == "" {
		return fmt.Errorf("%w: shipping address country is required", ErrOrderInvalidInput)
	}
	return nil
}

func validatePaymentMethod(method domain.PaymentMethod) error {
	switch method {
	case domain.PaymentMethodCOD, domain.PaymentMethodCard, domain.PaymentMethodGateway:
		return nil
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, method)
	}
}

func validateTotals(totals TotalsInput, computedSubtotal int64) error {
	if totals.Subtotal != computedSubtotal {
		return fmt.Errorf("%w: subtotal %d does not match cart contents %d", ErrOrderInvalidInput, totals.Subtotal, computedSubtotal)
	}
	if totals.Tax < 0 || totals.ShippingFee < 0 {
		return fmt.Errorf("%w: tax and shipping fee must not be negative", ErrOrderInvalidInput)
	}
	if totals.Subtotal+totals.Tax+totals.ShippingFee != totals.GrandTotal {
		return fmt.Errorf("%w: totals do not add up to grand total", ErrOrderInvalidInput)
	}
	return nil
}

func normaliseLimit(limit int) int {
	if limit <= 0 {
		return defaultOrderListLimit
	}
	if limit > maxOrderListLimit {
		return maxOrderListLimit
	}
	return limit
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderConflict
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
	}
	return ErrOrderUnavailable
}
