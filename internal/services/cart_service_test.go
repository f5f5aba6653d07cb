package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/machinehub/api/internal/domain"
)

type testRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *testRepoError) Error() string       { return e.msg }
func (e *testRepoError) IsNotFound() bool    { return e.notFound }
func (e *testRepoError) IsConflict() bool    { return e.conflict }
func (e *testRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errRepoNotFound    = &testRepoError{msg: "not found", notFound: true}
	errRepoConflict    = &testRepoError{msg: "conflict", conflict: true}
	errRepoUnavailable = &testRepoError{msg: "unavailable", unavailable: true}
)

type stubCartRepository struct {
	insertFn func(ctx context.Context, line domain.CartLine) error
	updateFn func(ctx context.Context, line domain.CartLine) error
	getFn    func(ctx context.Context, ownerID, productID string) (domain.CartLine, error)
	deleteFn func(ctx context.Context, ownerID, productID string) error
	listFn   func(ctx context.Context, ownerID string) ([]domain.CartLine, error)
	clearFn  func(ctx context.Context, ownerID string) error
}

func (s *stubCartRepository) Insert(ctx context.Context, line domain.CartLine) error {
	if s.insertFn == nil {
		return errors.New("unexpected Insert call")
	}
	return s.insertFn(ctx, line)
}

func (s *stubCartRepository) Update(ctx context.Context, line domain.CartLine) error {
	if s.updateFn == nil {
		return errors.New("unexpected Update call")
	}
	return s.updateFn(ctx, line)
}

func (s *stubCartRepository) Get(ctx context.Context, ownerID, productID string) (domain.CartLine, error) {
	if s.getFn == nil {
		return domain.CartLine{}, errors.New("unexpected Get call")
	}
	return s.getFn(ctx, ownerID, productID)
}

func (s *stubCartRepository) Delete(ctx context.Context, ownerID, productID string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFn(ctx, ownerID, productID)
}

func (s *stubCartRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.CartLine, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, ownerID)
}

func (s *stubCartRepository) Clear(ctx context.Context, ownerID string) error {
	if s.clearFn == nil {
		return errors.New("unexpected Clear call")
	}
	return s.clearFn(ctx, ownerID)
}

type stubProductRepository struct {
	findFn func(ctx context.Context, productID string) (domain.Product, error)
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFn == nil {
		return domain.Product{}, errors.New("unexpected FindByID call")
	}
	return s.findFn(ctx, productID)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var cartTestNow = time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)

func activeProduct(id string, price int64) domain.Product {
	return domain.Product{ID: id, Name: "Bench Lathe", UnitPrice: price, Currency: "INR", Active: true}
}

func TestCartServiceAddLineInsertsNewLine(t *testing.T) {
	var inserted domain.CartLine
	carts := &stubCartRepository{
		getFn: func(context.Context, string, string) (domain.CartLine, error) {
			return domain.CartLine{}, errRepoNotFound
		},
		insertFn: func(_ context.Context, line domain.CartLine) error {
			inserted = line
			return nil
		},
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return []domain.CartLine{inserted}, nil
		},
	}
	products := &stubProductRepository{
		findFn: func(_ context.Context, id string) (domain.Product, error) {
			return activeProduct(id, 4550000), nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products, Clock: fixedClock(cartTestNow)})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	lines, err := svc.AddLine(context.Background(), AddCartLineCommand{OwnerID: "user-1", ProductID: "prod-1", Quantity: 2})
	if err != nil {
		t.Fatalf("AddLine returned error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if inserted.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", inserted.Quantity)
	}
	if inserted.UnitPrice != 4550000 {
		t.Fatalf("expected catalog price captured, got %d", inserted.UnitPrice)
	}
	if !inserted.AddedAt.Equal(cartTestNow) {
		t.Fatalf("expected addedAt %s, got %s", cartTestNow, inserted.AddedAt)
	}
}

func TestCartServiceAddLineIncrementsExistingKeepingPrice(t *testing.T) {
	existing := domain.CartLine{
		OwnerID:   "user-1",
		ProductID: "prod-1",
		Quantity:  2,
		UnitPrice: 4000000,
		Currency:  "INR",
		AddedAt:   cartTestNow.Add(-time.Hour),
	}
	var updated domain.CartLine
	carts := &stubCartRepository{
		getFn: func(context.Context, string, string) (domain.CartLine, error) {
			return existing, nil
		},
		updateFn: func(_ context.Context, line domain.CartLine) error {
			updated = line
			return nil
		},
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return []domain.CartLine{updated}, nil
		},
	}
	products := &stubProductRepository{
		findFn: func(_ context.Context, id string) (domain.Product, error) {
			// Catalog price has moved since the line was captured.
			return activeProduct(id, 4550000), nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products, Clock: fixedClock(cartTestNow)})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	lines, err := svc.AddLine(context.Background(), AddCartLineCommand{OwnerID: "user-1", ProductID: "prod-1", Quantity: 3})
	if err != nil {
		t.Fatalf("AddLine returned error: %v", err)
	}
	if updated.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", updated.Quantity)
	}
	if updated.UnitPrice != 4000000 {
		t.Fatalf("expected original price kept, got %d", updated.UnitPrice)
	}
	if len(lines) != 1 || lines[0].UnitPrice != 4000000 {
		t.Fatalf("expected captured price on the returned line, got %+v", lines)
	}
	if lines[0].CatalogPrice != 4550000 {
		t.Fatalf("expected current catalog price alongside, got %d", lines[0].CatalogPrice)
	}
}

func TestCartServiceListAttachesCatalogSnapshot(t *testing.T) {
	carts := &stubCartRepository{
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return []domain.CartLine{
				{OwnerID: "user-1", ProductID: "prod-1", Quantity: 2, UnitPrice: 4000000, Currency: "INR"},
			}, nil
		},
	}
	products := &stubProductRepository{
		findFn: func(_ context.Context, id string) (domain.Product, error) {
			p := activeProduct(id, 4550000)
			p.ImageURL = "https://cdn.machinehub.example/prod-1.jpg"
			return p, nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	lines, err := svc.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line.Name != "Bench Lathe" {
		t.Fatalf("expected live catalog name, got %q", line.Name)
	}
	if line.ImageURL != "https://cdn.machinehub.example/prod-1.jpg" {
		t.Fatalf("expected live catalog image, got %q", line.ImageURL)
	}
	if line.CatalogPrice != 4550000 {
		t.Fatalf("expected live catalog price, got %d", line.CatalogPrice)
	}
	if line.UnitPrice != 4000000 {
		t.Fatalf("stored unit price must not change, got %d", line.UnitPrice)
	}
}

func TestCartServiceListKeepsLinesForRetiredProducts(t *testing.T) {
	carts := &stubCartRepository{
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return []domain.CartLine{
				{OwnerID: "user-1", ProductID: "gone-1", Quantity: 1, UnitPrice: 4000000, Currency: "INR"},
			}, nil
		},
	}
	products := &stubProductRepository{
		findFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, errRepoNotFound
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	lines, err := svc.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected the stored line to survive, got %d lines", len(lines))
	}
	if lines[0].Name != "" || lines[0].CatalogPrice != 0 {
		t.Fatalf("retired product must not be decorated, got %+v", lines[0])
	}
}

func TestCartServiceAddLineRetriesAsIncrementOnInsertRace(t *testing.T) {
	getCalls := 0
	winner := domain.CartLine{OwnerID: "user-1", ProductID: "prod-1", Quantity: 1, UnitPrice: 4550000, Currency: "INR"}
	var updated domain.CartLine

	carts := &stubCartRepository{
		getFn: func(context.Context, string, string) (domain.CartLine, error) {
			getCalls++
			if getCalls == 1 {
				return domain.CartLine{}, errRepoNotFound
			}
			return winner, nil
		},
		insertFn: func(context.Context, domain.CartLine) error {
			return errRepoConflict
		},
		updateFn: func(_ context.Context, line domain.CartLine) error {
			updated = line
			return nil
		},
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return []domain.CartLine{updated}, nil
		},
	}
	products := &stubProductRepository{
		findFn: func(_ context.Context, id string) (domain.Product, error) {
			return activeProduct(id, 4550000), nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products, Clock: fixedClock(cartTestNow)})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	if _, err := svc.AddLine(context.Background(), AddCartLineCommand{OwnerID: "user-1", ProductID: "prod-1", Quantity: 2}); err != nil {
		t.Fatalf("AddLine returned error: %v", err)
	}
	if updated.Quantity != 3 {
		t.Fatalf("expected racing insert folded into increment, got quantity %d", updated.Quantity)
	}
}

func TestCartServiceAddLineUnknownProduct(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(context.Context, string, string) (domain.CartLine, error) {
			return domain.CartLine{}, errRepoNotFound
		},
	}
	products := &stubProductRepository{
		findFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, errRepoNotFound
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.AddLine(context.Background(), AddCartLineCommand{OwnerID: "user-1", ProductID: "ghost", Quantity: 1})
	if !errors.Is(err, ErrCartProductNotFound) {
		t.Fatalf("expected ErrCartProductNotFound, got %v", err)
	}
}

func TestCartServiceSetQuantityAbsentLine(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(context.Context, string, string) (domain.CartLine, error) {
			return domain.CartLine{}, errRepoNotFound
		},
	}
	products := &stubProductRepository{}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.SetQuantity(context.Background(), SetCartQuantityCommand{OwnerID: "user-1", ProductID: "prod-1", Quantity: 4})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartServiceSetQuantityZeroRemovesLine(t *testing.T) {
	deleted := false
	carts := &stubCartRepository{
		getFn: func(context.Context, string, string) (domain.CartLine, error) {
			return domain.CartLine{OwnerID: "user-1", ProductID: "prod-1", Quantity: 2}, nil
		},
		deleteFn: func(context.Context, string, string) error {
			deleted = true
			return nil
		},
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return nil, nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: &stubProductRepository{}})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	lines, err := svc.SetQuantity(context.Background(), SetCartQuantityCommand{OwnerID: "user-1", ProductID: "prod-1", Quantity: 0})
	if err != nil {
		t.Fatalf("SetQuantity returned error: %v", err)
	}
	if !deleted {
		t.Fatal("expected line to be deleted")
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}
}

func TestCartServiceRemoveLineAbsentIsNoOp(t *testing.T) {
	carts := &stubCartRepository{
		deleteFn: func(context.Context, string, string) error {
			return errRepoNotFound
		},
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return nil, nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: &stubProductRepository{}})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	if _, err := svc.RemoveLine(context.Background(), "user-1", "prod-1"); err != nil {
		t.Fatalf("RemoveLine on absent line returned error: %v", err)
	}
}

func TestCartServiceTranslatesBackendOutage(t *testing.T) {
	carts := &stubCartRepository{
		listFn: func(context.Context, string) ([]domain.CartLine, error) {
			return nil, errRepoUnavailable
		},
	}

	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: &stubProductRepository{}})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.List(context.Background(), "user-1")
	if !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable, got %v", err)
	}
}
