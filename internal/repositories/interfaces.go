package repositories

import (
	"context"

	domain "github.com/machinehub/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository persists cart lines keyed by (owner, product). Insert fails
// with a conflict when a line for the same owner and product already exists.
type CartRepository interface {
	Insert(ctx context.Context, line domain.CartLine) error
	Update(ctx context.Context, line domain.CartLine) error
	Get(ctx context.Context, ownerID, productID string) (domain.CartLine, error)
	Delete(ctx context.Context, ownerID, productID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.CartLine, error)
	Clear(ctx context.Context, ownerID string) error
}

// OrderRepository persists order records. Insert enforces order number
// uniqueness and fails with a conflict on a duplicate number.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	FindByGatewayOrderRef(ctx context.Context, ref string) (domain.Order, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.FulfillmentStatus, limit int) ([]domain.Order, error)
}

// ProductRepository exposes read-only catalog lookups consumed by cart and checkout.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// HealthRepository aggregates dependency probes into a health report.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Store bundles the repository set behind a single backend selected at startup.
type Store interface {
	Carts() CartRepository
	Orders() OrderRepository
	Products() ProductRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	UnitOfWork
}
