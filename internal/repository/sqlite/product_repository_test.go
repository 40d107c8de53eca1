package sqlite

import (
	"context"
	"errors"
	"testing"

	"catalog-api/internal/domain"
	"catalog-api/internal/repository"
)

func newTestProductRepo(t *testing.T) repository.ProductRepository {
	t.Helper()
	repo := NewProductRepository(newTestDB(t))
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init product repository: %v", err)
	}
	return repo
}

func TestProductCRUDRoundtrip(t *testing.T) {
	repo := newTestProductRepo(t)

	product := &domain.Product{
		Name:        "Mug",
		Description: "ceramic",
		Value:       9.5,
		Quantity:    3,
		Image:       "s3://bucket/mug.png",
	}
	id, err := repo.Create(context.Background(), product)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Name != "Mug" || got.Value != 9.5 || got.Quantity != 3 || got.Image != "s3://bucket/mug.png" {
		t.Fatalf("unexpected product: %+v", got)
	}

	got.Quantity = 0
	got.Value = 12
	if err := repo.Update(context.Background(), got); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	updated, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get after update error: %v", err)
	}
	if updated.Quantity != 0 || updated.Value != 12 {
		t.Fatalf("update not applied: %+v", updated)
	}

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := repo.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := repo.Get(context.Background(), id); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get after delete: expected ErrNotFound, got %v", err)
	}
}

func TestProductUpdateNotFound(t *testing.T) {
	repo := newTestProductRepo(t)

	err := repo.Update(context.Background(), &domain.Product{ID: 99, Name: "Ghost"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductDeleteNotFound(t *testing.T) {
	repo := newTestProductRepo(t)

	if err := repo.Delete(context.Background(), 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
