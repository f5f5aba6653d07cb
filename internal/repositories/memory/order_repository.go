package memory

import (
	"context"
	"sort"
	"strings"

	domain "github.com/machinehub/api/internal/domain"
)

type orderRepository struct {
	store *Store
}

func (r *orderRepository) Insert(_ context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	number := strings.TrimSpace(order.OrderNumber)
	if id == "" || number == "" {
		return conflictError("memory: order requires id and order number")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.orders[id]; exists {
		return conflictError("memory: order %s already exists", id)
	}
	if _, taken := r.store.numbers[number]; taken {
		return conflictError("memory: order number %s already reserved", number)
	}
	r.store.orders[id] = cloneOrder(order)
	r.store.numbers[number] = id
	return nil
}

func (r *orderRepository) Update(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.orders[order.ID]; !exists {
		return notFoundError("memory: order %s not found", order.ID)
	}
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, exists := r.store.orders[orderID]
	if !exists {
		return domain.Order{}, notFoundError("memory: order %s not found", orderID)
	}
	return cloneOrder(order), nil
}

func (r *orderRepository) FindByOrderNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, exists := r.store.numbers[orderNumber]
	if !exists {
		return domain.Order{}, notFoundError("memory: order number %s not found", orderNumber)
	}
	return cloneOrder(r.store.orders[id]), nil
}

func (r *orderRepository) FindByGatewayOrderRef(_ context.Context, ref string) (domain.Order, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.Order{}, notFoundError("memory: gateway order ref is empty")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, order := range r.store.orders {
		if order.Payment.GatewayOrderRef == ref {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, notFoundError("memory: no order with gateway ref %s", ref)
}

func (r *orderRepository) ListByOwner(_ context.Context, ownerID string, limit int) ([]domain.Order, error) {
	return r.collect(func(order domain.Order) bool {
		return order.OwnerID == ownerID
	}, limit), nil
}

func (r *orderRepository) ListByStatus(_ context.Context, status domain.FulfillmentStatus, limit int) ([]domain.Order, error) {
	return r.collect(func(order domain.Order) bool {
		return order.FulfillmentStatus == status
	}, limit), nil
}

func (r *orderRepository) collect(match func(domain.Order) bool, limit int) []domain.Order {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	orders := make([]domain.Order, 0)
	for _, order := range r.store.orders {
		if match(order) {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = append([]domain.OrderItem(nil), order.Items...)
	clone.StatusHistory = append([]domain.StatusEvent(nil), order.StatusHistory...)
	return clone
}
