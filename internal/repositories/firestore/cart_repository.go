package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/machinehub/api/internal/domain"
	pfirestore "github.com/machinehub/api/internal/platform/firestore"
	"github.com/machinehub/api/internal/repositories"
)

const (
	cartLineCollection = "cart_lines"
	cartLineIDSep      = "__"
)

// CartRepository persists cart lines in Firestore. The document ID encodes
// (owner, product), so the store itself enforces at most one line per pair.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartLineDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartLineDocument](provider, cartLineCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert creates the line document. A concurrent first insert for the same
// (owner, product) surfaces as a conflict via the Create precondition.
func (r *CartRepository) Insert(ctx context.Context, line domain.CartLine) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	id, err := cartLineID(line.OwnerID, line.ProductID)
	if err != nil {
		return err
	}
	_, err = r.base.Create(ctx, id, newCartLineDocument(line))
	return err
}

// Update rewrites the line document, requiring it to exist.
func (r *CartRepository) Update(ctx context.Context, line domain.CartLine) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	id, err := cartLineID(line.OwnerID, line.ProductID)
	if err != nil {
		return err
	}
	doc := newCartLineDocument(line)
	_, err = r.base.Update(ctx, id, []firestore.Update{
		{Path: "quantity", Value: doc.Quantity},
		{Path: "unitPrice", Value: doc.UnitPrice},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}, firestore.Exists)
	return err
}

// Get loads the line for the given owner and product.
func (r *CartRepository) Get(ctx context.Context, ownerID, productID string) (domain.CartLine, error) {
	if r == nil || r.base == nil {
		return domain.CartLine{}, errors.New("cart repository not initialised")
	}
	id, err := cartLineID(ownerID, productID)
	if err != nil {
		return domain.CartLine{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.CartLine{}, err
	}
	return doc.Data.toDomain(), nil
}

// Delete removes the line document, requiring it to exist.
func (r *CartRepository) Delete(ctx context.Context, ownerID, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	id, err := cartLineID(ownerID, productID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id, firestore.Exists)
}

// ListByOwner returns the owner's lines, most recently added first.
func (r *CartRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.CartLine, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cart repository not initialised")
	}
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return nil, errors.New("cart repository: owner id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", owner).OrderBy("addedAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, doc.Data.toDomain())
	}
	return lines, nil
}

// Clear removes every line owned by the user. Clearing an empty cart succeeds.
func (r *CartRepository) Clear(ctx context.Context, ownerID string) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return errors.New("cart repository: owner id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	iter := client.Collection(cartLineCollection).Where("ownerId", "==", owner).Documents(ctx)
	defer iter.Stop()

	writer := client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			writer.End()
			return pfirestore.WrapError("cart_lines.clear", err)
		}
		if _, err := writer.Delete(snap.Ref); err != nil {
			writer.End()
			return pfirestore.WrapError("cart_lines.clear", err)
		}
	}
	writer.End()
	return nil
}

func cartLineID(ownerID, productID string) (string, error) {
	owner := strings.TrimSpace(ownerID)
	product := strings.TrimSpace(productID)
	if owner == "" {
		return "", errors.New("cart repository: owner id is required")
	}
	if product == "" {
		return "", errors.New("cart repository: product id is required")
	}
	return owner + cartLineIDSep + product, nil
}

func newCartLineDocument(line domain.CartLine) cartLineDocument {
	updatedAt := line.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = line.AddedAt.UTC()
	}
	return cartLineDocument{
		OwnerID:   strings.TrimSpace(line.OwnerID),
		ProductID: strings.TrimSpace(line.ProductID),
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		Currency:  strings.ToUpper(strings.TrimSpace(line.Currency)),
		AddedAt:   line.AddedAt.UTC(),
		UpdatedAt: updatedAt,
	}
}

type cartLineDocument struct {
	OwnerID   string    `firestore:"ownerId"`
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	UnitPrice int64     `firestore:"unitPrice"`
	Currency  string    `firestore:"currency"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d cartLineDocument) toDomain() domain.CartLine {
	return domain.CartLine{
		OwnerID:   d.OwnerID,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		UnitPrice: d.UnitPrice,
		Currency:  d.Currency,
		AddedAt:   d.AddedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
