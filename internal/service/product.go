package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

const slugAttempts = 5

// ProductService manages the storefront catalogue.
type ProductService struct {
	products *repository.ProductRepo
}

func NewProductService(products *repository.ProductRepo) *ProductService {
	return &ProductService{products: products}
}

// ProductInput is the writable part of a product.
type ProductInput struct {
	Name        string
	Description *string
	Category    *string
	Price       decimal.Decimal
	Stock       int
	ImageURL    *string
	IsActive    *bool
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if in.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

func (in ProductInput) apply(p *model.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Category = in.Category
	p.Price = in.Price
	p.Stock = in.Stock
	p.ImageURL = in.ImageURL
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

// baseSlug derives the URL slug of a product name.
func baseSlug(name string) string {
	s := slug.Make(name)
	if s == "" {
		s = "product"
	}
	return s
}

// save writes p, suffixing the slug with -2, -3, ... while it is taken.
func (s *ProductService) save(p *model.Product, write func() error) error {
	base := baseSlug(p.Name)
	for attempt := 1; attempt <= slugAttempts; attempt++ {
		p.Slug = base
		if attempt > 1 {
			p.Slug = base + "-" + strconv.Itoa(attempt)
		}
		err := write()
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return repository.ErrDuplicate
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (model.Product, error) {
	if err := in.validate(); err != nil {
		return model.Product{}, err
	}
	p := model.Product{IsActive: true}
	in.apply(&p)
	if err := s.save(&p, func() error { return s.products.Create(ctx, &p) }); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return p, apperr.Conflict("Product slug already exists")
		}
		return p, apperr.Internal("create product failed", err)
	}
	return s.Get(ctx, p.ID)
}

func (s *ProductService) Update(ctx context.Context, id uint64, in ProductInput) (model.Product, error) {
	if err := in.validate(); err != nil {
		return model.Product{}, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return p, err
	}
	renamed := p.Name != strings.TrimSpace(in.Name)
	in.apply(&p)
	if renamed {
		err = s.save(&p, func() error { return s.products.Update(ctx, &p) })
	} else {
		err = s.products.Update(ctx, &p)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return p, apperr.Conflict("Product slug already exists")
		}
		return p, notFoundOr(err, "Product not found")
	}
	return s.Get(ctx, id)
}

func (s *ProductService) Get(ctx context.Context, id uint64) (model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return p, notFoundOr(err, "Product not found")
	}
	return p, nil
}

// GetBySlug is the storefront detail lookup; inactive products are hidden.
func (s *ProductService) GetBySlug(ctx context.Context, productSlug string) (model.Product, error) {
	p, err := s.products.GetBySlug(ctx, productSlug)
	if err != nil {
		return p, notFoundOr(err, "Product not found")
	}
	if !p.IsActive {
		return model.Product{}, apperr.NotFound("Product not found")
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]model.Product, int, error) {
	out, total, err := s.products.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("list products failed", err)
	}
	return out, total, nil
}

// Deactivate is the delete operation for products.
func (s *ProductService) Deactivate(ctx context.Context, id uint64) error {
	if err := s.products.Deactivate(ctx, id); err != nil {
		return notFoundOr(err, "Product not found")
	}
	return nil
}
