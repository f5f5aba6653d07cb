package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/machinehub/api/internal/domain"
	pfirestore "github.com/machinehub/api/internal/platform/firestore"
	"github.com/machinehub/api/internal/repositories"
)

const (
	orderCollection       = "orders"
	orderNumberCollection = "order_numbers"
)

// OrderRepository persists order records in Firestore. Order numbers are
// reserved in a dedicated collection within the same transaction as the order
// insert, so a duplicate number surfaces as a conflict instead of an overwrite.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert stores the order and reserves its order number transactionally.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	number := strings.TrimSpace(order.OrderNumber)
	if number == "" {
		return errors.New("order repository: order number is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	orderRef := client.Collection(orderCollection).Doc(orderID)
	numberRef := client.Collection(orderNumberCollection).Doc(number)

	return pfirestore.RunTransaction(ctx, client, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(numberRef, orderNumberDocument{
			OrderID:   orderID,
			CreatedAt: order.CreatedAt.UTC(),
		}); err != nil {
			return err
		}
		return tx.Create(orderRef, newOrderDocument(order))
	})
}

// Update rewrites the order document, requiring it to exist.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	ref := client.Collection(orderCollection).Doc(orderID)
	return pfirestore.RunTransaction(ctx, client, func(_ context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, newOrderDocument(order))
	})
}

// FindByID loads an order by its internal identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByOrderNumber loads an order by its human-facing number.
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.findOne(ctx, "orderNumber", strings.TrimSpace(orderNumber))
}

// FindByGatewayOrderRef loads the order holding the given gateway intent reference.
func (r *OrderRepository) FindByGatewayOrderRef(ctx context.Context, ref string) (domain.Order, error) {
	return r.findOne(ctx, "payment.gatewayOrderRef", strings.TrimSpace(ref))
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Order, error) {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return nil, errors.New("order repository: owner id is required")
	}
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("ownerId", "==", owner).OrderBy("createdAt", firestore.Desc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
}

// ListByStatus returns orders in the given fulfillment status, newest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status domain.FulfillmentStatus, limit int) ([]domain.Order, error) {
	if !domain.ValidFulfillmentStatus(status) {
		return nil, errors.New("order repository: unknown fulfillment status")
	}
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("fulfillmentStatus", "==", string(status)).OrderBy("createdAt", firestore.Desc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
}

func (r *OrderRepository) findOne(ctx context.Context, field, value string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if value == "" {
		return domain.Order{}, errors.New("order repository: lookup value is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", value).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.query", status.Error(codes.NotFound, "order not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *OrderRepository) list(ctx context.Context, build pfirestore.QueryBuilder) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

type orderNumberDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type orderDocument struct {
	OrderNumber        string                 `firestore:"orderNumber"`
	OwnerID            string                 `firestore:"ownerId"`
	Currency           string                 `firestore:"currency"`
	Contact            orderContactDocument   `firestore:"contact"`
	ShippingAddress    orderAddressDocument   `firestore:"shippingAddress"`
	Items              []orderItemDocument    `firestore:"items"`
	Totals             orderTotalsDocument    `firestore:"totals"`
	Payment            orderPaymentDocument   `firestore:"payment"`
	FulfillmentStatus  string                 `firestore:"fulfillmentStatus"`
	StatusHistory      []statusEventDocument  `firestore:"statusHistory"`
	ExpectedDeliveryAt time.Time              `firestore:"expectedDeliveryAt"`
	PlacedAt           time.Time              `firestore:"placedAt"`
	PackedAt           *time.Time             `firestore:"packedAt,omitempty"`
	ShippedAt          *time.Time             `firestore:"shippedAt,omitempty"`
	OutForDeliveryAt   *time.Time             `firestore:"outForDeliveryAt,omitempty"`
	DeliveredAt        *time.Time             `firestore:"deliveredAt,omitempty"`
	CancelledAt        *time.Time             `firestore:"cancelledAt,omitempty"`
	CancelReason       string                 `firestore:"cancelReason,omitempty"`
	CreatedAt          time.Time              `firestore:"createdAt"`
	UpdatedAt          time.Time              `firestore:"updatedAt"`
}

type orderContactDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone,omitempty"`
}

type orderAddressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
	LineTotal int64  `firestore:"lineTotal"`
}

type orderTotalsDocument struct {
	Subtotal    int64 `firestore:"subtotal"`
	Tax         int64 `firestore:"tax"`
	ShippingFee int64 `firestore:"shippingFee"`
	GrandTotal  int64 `firestore:"grandTotal"`
}

type orderPaymentDocument struct {
	Method            string     `firestore:"method"`
	Status            string     `firestore:"status"`
	GatewayOrderRef   string     `firestore:"gatewayOrderRef,omitempty"`
	GatewayPaymentRef string     `firestore:"gatewayPaymentRef,omitempty"`
	PaidAt            *time.Time `firestore:"paidAt,omitempty"`
	RefundedAt        *time.Time `firestore:"refundedAt,omitempty"`
}

type statusEventDocument struct {
	Seq     int       `firestore:"seq"`
	Status  string    `firestore:"status"`
	Message string    `firestore:"message,omitempty"`
	ActorID string    `firestore:"actorId,omitempty"`
	At      time.Time `firestore:"at"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}

	history := make([]statusEventDocument, 0, len(order.StatusHistory))
	for _, event := range order.StatusHistory {
		history = append(history, statusEventDocument{
			Seq:     event.Seq,
			Status:  string(event.Status),
			Message: event.Message,
			ActorID: event.ActorID,
			At:      event.At.UTC(),
		})
	}

	return orderDocument{
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		OwnerID:     strings.TrimSpace(order.OwnerID),
		Currency:    strings.ToUpper(strings.TrimSpace(order.Currency)),
		Contact: orderContactDocument{
			Name:  order.Contact.Name,
			Email: order.Contact.Email,
			Phone: order.Contact.Phone,
		},
		ShippingAddress: orderAddressDocument{
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		Items: items,
		Totals: orderTotalsDocument{
			Subtotal:    order.Totals.Subtotal,
			Tax:         order.Totals.Tax,
			ShippingFee: order.Totals.ShippingFee,
			GrandTotal:  order.Totals.GrandTotal,
		},
		Payment: orderPaymentDocument{
			Method:            string(order.Payment.Method),
			Status:            string(order.Payment.Status),
			GatewayOrderRef:   order.Payment.GatewayOrderRef,
			GatewayPaymentRef: order.Payment.GatewayPaymentRef,
			PaidAt:            utcTimePtr(order.Payment.PaidAt),
			RefundedAt:        utcTimePtr(order.Payment.RefundedAt),
		},
		FulfillmentStatus:  string(order.FulfillmentStatus),
		StatusHistory:      history,
		ExpectedDeliveryAt: order.ExpectedDeliveryAt.UTC(),
		PlacedAt:           order.PlacedAt.UTC(),
		PackedAt:           utcTimePtr(order.PackedAt),
		ShippedAt:          utcTimePtr(order.ShippedAt),
		OutForDeliveryAt:   utcTimePtr(order.OutForDeliveryAt),
		DeliveredAt:        utcTimePtr(order.DeliveredAt),
		CancelledAt:        utcTimePtr(order.CancelledAt),
		CancelReason:       strings.TrimSpace(order.CancelReason),
		CreatedAt:          order.CreatedAt.UTC(),
		UpdatedAt:          order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}

	history := make([]domain.StatusEvent, 0, len(d.StatusHistory))
	for _, event := range d.StatusHistory {
		history = append(history, domain.StatusEvent{
			Seq:     event.Seq,
			Status:  domain.FulfillmentStatus(event.Status),
			Message: event.Message,
			ActorID: event.ActorID,
			At:      event.At,
		})
	}

	return domain.Order{
		ID:          id,
		OrderNumber: d.OrderNumber,
		OwnerID:     d.OwnerID,
		Currency:    d.Currency,
		Contact: domain.Contact{
			Name:  d.Contact.Name,
			Email: d.Contact.Email,
			Phone: d.Contact.Phone,
		},
		ShippingAddress: domain.Address{
			Line1:      d.ShippingAddress.Line1,
			Line2:      d.ShippingAddress.Line2,
			City:       d.ShippingAddress.City,
			State:      d.ShippingAddress.State,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		Items: items,
		Totals: domain.OrderTotals{
			Subtotal:    d.Totals.Subtotal,
			Tax:         d.Totals.Tax,
			ShippingFee: d.Totals.ShippingFee,
			GrandTotal:  d.Totals.GrandTotal,
		},
		Payment: domain.Payment{
			Method:            domain.PaymentMethod(d.Payment.Method),
			Status:            domain.PaymentStatus(d.Payment.Status),
			GatewayOrderRef:   d.Payment.GatewayOrderRef,
			GatewayPaymentRef: d.Payment.GatewayPaymentRef,
			PaidAt:            d.Payment.PaidAt,
			RefundedAt:        d.Payment.RefundedAt,
		},
		FulfillmentStatus:  domain.FulfillmentStatus(d.FulfillmentStatus),
		StatusHistory:      history,
		ExpectedDeliveryAt: d.ExpectedDeliveryAt,
		PlacedAt:           d.PlacedAt,
		PackedAt:           d.PackedAt,
		ShippedAt:          d.ShippedAt,
		OutForDeliveryAt:   d.OutForDeliveryAt,
		DeliveredAt:        d.DeliveredAt,
		CancelledAt:        d.CancelledAt,
		CancelReason:       d.CancelReason,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := t.UTC()
	return &ts
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
