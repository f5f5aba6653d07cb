package memory

import (
	"context"
	"sort"
	"strings"

	domain "github.com/machinehub/api/internal/domain"
)

type cartRepository struct {
	store *Store
}

func cartKey(ownerID, productID string) string {
	return ownerID + "__" + productID
}

func (r *cartRepository) Insert(_ context.Context, line domain.CartLine) error {
	owner := strings.TrimSpace(line.OwnerID)
	product := strings.TrimSpace(line.ProductID)
	if owner == "" || product == "" {
		return conflictError("memory: cart line requires owner and product")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := cartKey(owner, product)
	if _, exists := r.store.cartLines[key]; exists {
		return conflictError("memory: cart line %s already exists", key)
	}
	r.store.cartLines[key] = line
	return nil
}

func (r *cartRepository) Update(_ context.Context, line domain.CartLine) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := cartKey(line.OwnerID, line.ProductID)
	if _, exists := r.store.cartLines[key]; !exists {
		return notFoundError("memory: cart line %s not found", key)
	}
	r.store.cartLines[key] = line
	return nil
}

func (r *cartRepository) Get(_ context.Context, ownerID, productID string) (domain.CartLine, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	line, exists := r.store.cartLines[cartKey(ownerID, productID)]
	if !exists {
		return domain.CartLine{}, notFoundError("memory: cart line %s not found", cartKey(ownerID, productID))
	}
	return line, nil
}

func (r *cartRepository) Delete(_ context.Context, ownerID, productID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := cartKey(ownerID, productID)
	if _, exists := r.store.cartLines[key]; !exists {
		return notFoundError("memory: cart line %s not found", key)
	}
	delete(r.store.cartLines, key)
	return nil
}

func (r *cartRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.CartLine, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	lines := make([]domain.CartLine, 0)
	for _, line := range r.store.cartLines {
		if line.OwnerID == ownerID {
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].ProductID < lines[j].ProductID
		}
		return lines[i].AddedAt.After(lines[j].AddedAt)
	})
	return lines, nil
}

func (r *cartRepository) Clear(_ context.Context, ownerID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for key, line := range r.store.cartLines {
		if line.OwnerID == ownerID {
			delete(r.store.cartLines, key)
		}
	}
	return nil
}
