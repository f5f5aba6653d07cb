package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/machinehub/api/internal/domain"
	pfirestore "github.com/machinehub/api/internal/platform/firestore"
	"github.com/machinehub/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository reads catalog entries from Firestore. The subsystem only
// needs lookups at cart and checkout time, so the surface stays read-only.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
	}, nil
}

// FindByID loads a product by its identifier.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Category    string    `firestore:"category,omitempty"`
	Brand       string    `firestore:"brand,omitempty"`
	UnitPrice   int64     `firestore:"unitPrice"`
	Currency    string    `firestore:"currency"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Brand:       d.Brand,
		UnitPrice:   d.UnitPrice,
		Currency:    d.Currency,
		ImageURL:    d.ImageURL,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
