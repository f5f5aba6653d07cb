// Package memory provides an in-process repositories.Store used for local
// development and tests. The backend is selected explicitly via configuration.
package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/repositories"
)

// Store keeps all records in process memory guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	cartLines map[string]domain.CartLine
	orders    map[string]domain.Order
	numbers   map[string]string
	products  map[string]domain.Product

	carts       *cartRepository
	orderRepo   *orderRepository
	productRepo *productRepository
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	s := &Store{
		cartLines: make(map[string]domain.CartLine),
		orders:    make(map[string]domain.Order),
		numbers:   make(map[string]string),
		products:  make(map[string]domain.Product),
	}
	s.carts = &cartRepository{store: s}
	s.orderRepo = &orderRepository{store: s}
	s.productRepo = &productRepository{store: s}
	return s
}

func (s *Store) Carts() repositories.CartRepository       { return s.carts }
func (s *Store) Orders() repositories.OrderRepository     { return s.orderRepo }
func (s *Store) Products() repositories.ProductRepository { return s.productRepo }

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// RunInTx serialises fn against all other store operations.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// SeedProduct inserts or replaces a catalog entry. Intended for local
// development fixtures and tests.
func (s *Store) SeedProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

type repoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repoError) Error() string       { return e.msg }
func (e *repoError) IsNotFound() bool    { return e.notFound }
func (e *repoError) IsConflict() bool    { return e.conflict }
func (e *repoError) IsUnavailable() bool { return e.unavailable }

func notFoundError(format string, args ...any) error {
	return &repoError{msg: fmt.Sprintf(format, args...), notFound: true}
}

func conflictError(format string, args ...any) error {
	return &repoError{msg: fmt.Sprintf(format, args...), conflict: true}
}

var (
	_ repositories.Store           = (*Store)(nil)
	_ repositories.RepositoryError = (*repoError)(nil)
)
