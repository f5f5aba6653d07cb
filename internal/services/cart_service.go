package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/repositories"
)

const maxCartLineQuantity = 999

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the requested cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartProductNotFound indicates the referenced product does not exist in the catalog.
var ErrCartProductNotFound = errors.New("cart service: product not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// CartServiceDeps bundles collaborators required to construct a cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService wires dependencies into a CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) List(ctx context.Context, ownerID string) ([]CartLine, error) {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrCartInvalidInput)
	}
	lines, err := s.carts.ListByOwner(ctx, owner)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return s.enrichLines(ctx, lines)
}

// enrichLines decorates stored lines with the current catalog name, image and
// price. Lines whose product has been retired from the catalog are returned
// as stored, without decoration.
func (s *cartService) enrichLines(ctx context.Context, lines []domain.CartLine) ([]domain.CartLine, error) {
	for i := range lines {
		product, err := s.products.FindByID(ctx, lines[i].ProductID)
		if err != nil {
			if isRepoNotFound(err) {
				continue
			}
			return nil, s.translateRepoError(err)
		}
		lines[i].Name = product.Name
		lines[i].ImageURL = product.ImageURL
		lines[i].CatalogPrice = product.UnitPrice
	}
	return lines, nil
}

// AddLine adds a product to the cart or increments the quantity of an
// existing line. The unit price is captured at first insert and never
// adjusted by later additions.
func (s *cartService) AddLine(ctx context.Context, cmd AddCartLineCommand) ([]CartLine, error) {
	owner := strings.TrimSpace(cmd.OwnerID)
	productID := strings.TrimSpace(cmd.ProductID)
	if owner == "" || productID == "" {
		return nil, fmt.Errorf("%w: owner id and product id are required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}
	if cmd.Quantity > maxCartLineQuantity {
		return nil, fmt.Errorf("%w: quantity must be %d or fewer", ErrCartInvalidInput, maxCartLineQuantity)
	}

	existing, err := s.carts.Get(ctx, owner, productID)
	switch {
	case err == nil:
		if err := s.incrementLine(ctx, existing, cmd.Quantity); err != nil {
			return nil, err
		}
	case isRepoNotFound(err):
		if err := s.insertLine(ctx, owner, productID, cmd.Quantity); err != nil {
			return nil, err
		}
	default:
		return nil, s.translateRepoError(err)
	}

	return s.List(ctx, owner)
}

// SetQuantity replaces the quantity of an existing line. A non-positive
// quantity removes the line. The line must already exist.
func (s *cartService) SetQuantity(ctx context.Context, cmd SetCartQuantityCommand) ([]CartLine, error) {
	owner := strings.TrimSpace(cmd.OwnerID)
	productID := strings.TrimSpace(cmd.ProductID)
	if owner == "" || productID == "" {
		return nil, fmt.Errorf("%w: owner id and product id are required", ErrCartInvalidInput)
	}
	if cmd.Quantity > maxCartLineQuantity {
		return nil, fmt.Errorf("%w: quantity must be %d or fewer", ErrCartInvalidInput, maxCartLineQuantity)
	}

	line, err := s.carts.Get(ctx, owner, productID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	if cmd.Quantity <= 0 {
		if err := s.carts.Delete(ctx, owner, productID); err != nil && !isRepoNotFound(err) {
			return nil, s.translateRepoError(err)
		}
		return s.List(ctx, owner)
	}

	line.Quantity = cmd.Quantity
	line.UpdatedAt = s.clock()
	if err := s.carts.Update(ctx, line); err != nil {
		return nil, s.translateRepoError(err)
	}
	return s.List(ctx, owner)
}

// RemoveLine deletes a line if present. Removing an absent line is a no-op.
func (s *cartService) RemoveLine(ctx context.Context, ownerID, productID string) ([]CartLine, error) {
	owner := strings.TrimSpace(ownerID)
	product := strings.TrimSpace(productID)
	if owner == "" || product == "" {
		return nil, fmt.Errorf("%w: owner id and product id are required", ErrCartInvalidInput)
	}

	if err := s.carts.Delete(ctx, owner, product); err != nil && !isRepoNotFound(err) {
		return nil, s.translateRepoError(err)
	}
	return s.List(ctx, owner)
}

func (s *cartService) Clear(ctx context.Context, ownerID string) error {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return fmt.Errorf("%w: owner id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Clear(ctx, owner); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) insertLine(ctx context.Context, owner, productID string, quantity int) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
		}
		return s.translateRepoError(err)
	}
	if !product.Active {
		return fmt.Errorf("%w: product %s is not available", ErrCartInvalidInput, productID)
	}

	now := s.clock()
	line := domain.CartLine{
		OwnerID:   owner,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.UnitPrice,
		Currency:  product.Currency,
		AddedAt:   now,
		UpdatedAt: now,
	}

	err = s.carts.Insert(ctx, line)
	if err == nil {
		return nil
	}
	if !isRepoConflict(err) {
		return s.translateRepoError(err)
	}

	// Lost an insert race for the same (owner, product). Fold into the
	// winner's line, keeping its captured unit price.
	existing, getErr := s.carts.Get(ctx, owner, productID)
	if getErr != nil {
		return s.translateRepoError(getErr)
	}
	return s.incrementLine(ctx, existing, quantity)
}

func (s *cartService) incrementLine(ctx context.Context, line domain.CartLine, quantity int) error {
	line.Quantity += quantity
	if line.Quantity > maxCartLineQuantity {
		return fmt.Errorf("%w: quantity must be %d or fewer", ErrCartInvalidInput, maxCartLineQuantity)
	}
	line.UpdatedAt = s.clock()
	if err := s.carts.Update(ctx, line); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
