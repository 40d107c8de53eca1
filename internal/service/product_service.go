package service

import (
	"context"
	"fmt"

	"catalog-api/internal/domain"
	"catalog-api/internal/repository"
)

// ProductService coordinates catalog operations backed by the product repository.
type ProductService interface {
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, id int64, update domain.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type productService struct {
	products repository.ProductRepository
}

func NewProductService(products repository.ProductRepository) ProductService {
	return &productService{products: products}
}

func (s *productService) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if product.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if product.Value < 0 {
		return nil, fmt.Errorf("%w: value must not be negative", ErrValidation)
	}
	if product.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}

	if _, err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *productService) List(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

// Update applies a partial update. Nil fields keep the stored value; set
// fields are written as given, including zero values.
func (s *productService) Update(ctx context.Context, id int64, update domain.ProductUpdate) (*domain.Product, error) {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		product.Name = *update.Name
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Value != nil {
		if *update.Value < 0 {
			return nil, fmt.Errorf("%w: value must not be negative", ErrValidation)
		}
		product.Value = *update.Value
	}
	if update.Quantity != nil {
		if *update.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
		}
		product.Quantity = *update.Quantity
	}
	if update.Image != nil {
		product.Image = *update.Image
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}
