package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/machinehub/api/internal/platform/firestore"
	"github.com/machinehub/api/internal/repositories"
)

// Store bundles the Firestore-backed repositories behind the shared provider.
type Store struct {
	provider *pfirestore.Provider
	carts    *CartRepository
	orders   *OrderRepository
	products *ProductRepository
}

// NewStore wires the repository set over a single Firestore provider.
func NewStore(provider *pfirestore.Provider) (*Store, error) {
	if provider == nil {
		return nil, errors.New("firestore store requires provider")
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Store{
		provider: provider,
		carts:    carts,
		orders:   orders,
		products: products,
	}, nil
}

func (s *Store) Carts() repositories.CartRepository       { return s.carts }
func (s *Store) Orders() repositories.OrderRepository     { return s.orders }
func (s *Store) Products() repositories.ProductRepository { return s.products }

// Ping verifies the backend is reachable with a single document read. A
// missing document is still a healthy backend.
func (s *Store) Ping(ctx context.Context) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(orderCollection).Doc("__ping__").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return pfirestore.WrapError("store.ping", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

// RunInTx executes fn directly. Cross-repository writes that need atomicity
// run their own Firestore transactions via the provider.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

var _ repositories.Store = (*Store)(nil)
