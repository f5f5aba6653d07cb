package memory

import (
	"context"

	domain "github.com/machinehub/api/internal/domain"
)

type productRepository struct {
	store *Store
}

func (r *productRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, exists := r.store.products[productID]
	if !exists {
		return domain.Product{}, notFoundError("memory: product %s not found", productID)
	}
	return product, nil
}
