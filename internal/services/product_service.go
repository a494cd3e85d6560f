package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ProductIndex is a full-text index of the catalog. MatchIDs returns matching product IDs.
type ProductIndex interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	MatchIDs(ctx context.Context, query string) ([]string, error)
}

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}
	return nil
}

// ImageOrder moves one image to a display position.
type ImageOrder struct {
	ImageID string
	Order   int
}

// ProductService handles the catalog and the seller's product administration.
type ProductService struct {
	store     *repositories.Store
	index     ProductIndex
	publisher events.Publisher
}

// NewProductService creates a new ProductService. index may be nil, in which case searches
// run against the database.
func NewProductService(store *repositories.Store, index ProductIndex, publisher events.Publisher) *ProductService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ProductService{store: store, index: index, publisher: publisher}
}

// ListProducts returns the catalog narrowed by filter.
func (s *ProductService) ListProducts(ctx context.Context, filter repositories.ProductFilter) ([]models.Product, error) {
	if s.index != nil && strings.TrimSpace(filter.Search) != "" && filter.IDs == nil {
		ids, err := s.index.MatchIDs(ctx, filter.Search)
		if err != nil {
			logging.FromContext(ctx).Warn("search index unavailable, falling back to database", "error", err)
		} else {
			filter.IDs = append([]string{}, ids...)
		}
	}
	products, err := s.store.Products.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.store.Products.GetByID(ctx, id)
}

// SellerProducts lists the products owned by the calling seller.
func (s *ProductService) SellerProducts(ctx context.Context, p Principal) ([]models.Product, error) {
	if err := p.RequireSeller("manage products"); err != nil {
		return nil, err
	}
	return s.store.Products.List(ctx, repositories.ProductFilter{SellerID: p.UserID})
}

// CreateProduct stores a new product of the calling seller. Images are displayed in the
// order of imagePaths.
func (s *ProductService) CreateProduct(ctx context.Context, p Principal, in ProductInput, imagePaths []string) (*models.Product, error) {
	if err := p.RequireSeller("create products"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		SellerID:    p.UserID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
	}
	for i, path := range imagePaths {
		product.Images = append(product.Images, models.ProductImage{Path: path, Order: i})
	}

	if err := s.store.Products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.reindex(ctx, product)
	publish(ctx, s.publisher, events.New(events.ProductCreated, product.ID, productPayload(product)))
	return product, nil
}

// UpdateProduct edits an owned product. New images are appended after the existing ones.
func (s *ProductService) UpdateProduct(ctx context.Context, p Principal, id string, in ProductInput, newImagePaths []string) (*models.Product, error) {
	if err := p.RequireSeller("edit products"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *models.Product
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		product, err := s.lockOwnedProduct(ctx, tx, p, id)
		if err != nil {
			return err
		}
		product.Name = in.Name
		product.Description = in.Description
		product.Price = in.Price.Round(2)
		product.Stock = in.Stock
		if err := tx.Products.Update(ctx, product); err != nil {
			return err
		}

		if len(newImagePaths) > 0 {
			max, err := tx.Products.MaxImageOrder(ctx, id)
			if err != nil {
				return err
			}
			images := make([]models.ProductImage, 0, len(newImagePaths))
			for i, path := range newImagePaths {
				images = append(images, models.ProductImage{ProductID: id, Path: path, Order: max + 1 + i})
			}
			if err := tx.Products.AddImages(ctx, images); err != nil {
				return err
			}
		}

		updated, err = tx.Products.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, updated)
	publish(ctx, s.publisher, events.New(events.ProductUpdated, updated.ID, productPayload(updated)))
	return updated, nil
}

// DeleteProduct removes an owned product together with its images and the cart lines
// referencing it. Order lines keep pointing at the deleted product.
func (s *ProductService) DeleteProduct(ctx context.Context, p Principal, id string) error {
	if err := p.RequireSeller("delete products"); err != nil {
		return err
	}
	if _, err := s.ownedProduct(ctx, s.store, p, id); err != nil {
		return err
	}
	if err := s.store.Products.Delete(ctx, id); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("failed to remove product from search index", "product_id", id, "error", err)
		}
	}
	publish(ctx, s.publisher, events.New(events.ProductDeleted, id, map[string]any{"product_id": id, "seller_id": p.UserID}))
	return nil
}

// DeleteImage removes one image of an owned product.
func (s *ProductService) DeleteImage(ctx context.Context, p Principal, imageID string) error {
	if err := p.RequireSeller("manage product images"); err != nil {
		return err
	}
	image, err := s.store.Products.GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	if _, err := s.ownedProduct(ctx, s.store, p, image.ProductID); err != nil {
		return err
	}
	return s.store.Products.DeleteImage(ctx, imageID)
}

// ReorderImages applies the moves in sequence. When another image already holds the target
// position the two images swap positions, otherwise the image moves directly.
func (s *ProductService) ReorderImages(ctx context.Context, p Principal, productID string, moves []ImageOrder) ([]models.ProductImage, error) {
	if err := p.RequireSeller("manage product images"); err != nil {
		return nil, err
	}

	var result []models.ProductImage
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if _, err := s.lockOwnedProduct(ctx, tx, p, productID); err != nil {
			return err
		}
		images, err := tx.Products.ListImages(ctx, productID)
		if err != nil {
			return err
		}

		byID := make(map[string]int, len(images))
		for i := range images {
			byID[images[i].ID] = i
		}
		dirty := make(map[int]bool)

		for _, m := range moves {
			idx, ok := byID[m.ImageID]
			if !ok {
				return fmt.Errorf("image with ID %s of product %s: %w", m.ImageID, productID, ErrNotFound)
			}
			current := images[idx].Order
			if current == m.Order {
				continue
			}
			for j := range images {
				if j != idx && images[j].Order == m.Order {
					images[j].Order = current
					dirty[j] = true
					break
				}
			}
			images[idx].Order = m.Order
			dirty[idx] = true
		}

		for i := range images {
			if !dirty[i] {
				continue
			}
			if err := tx.Products.SetImageOrder(ctx, images[i].ID, images[i].Order); err != nil {
				return err
			}
		}

		result, err = tx.Products.ListImages(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ownedProduct loads a product and checks that p sells it.
func (s *ProductService) ownedProduct(ctx context.Context, store *repositories.Store, p Principal, id string) (*models.Product, error) {
	product, err := store.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.SellerID != p.UserID {
		return nil, fmt.Errorf("%w: product %s belongs to another seller", ErrForbidden, id)
	}
	return product, nil
}

// lockOwnedProduct is ownedProduct that also holds the product row lock for the rest of tx, so
// image orders are read and written by one request at a time.
func (s *ProductService) lockOwnedProduct(ctx context.Context, tx *repositories.Store, p Principal, id string) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, tx, p, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Products.LockByIDs(ctx, []string{id}); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) reindex(ctx context.Context, product *models.Product) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexProduct(ctx, product); err != nil {
		logging.FromContext(ctx).Warn("failed to index product", "product_id", product.ID, "error", err)
	}
}

func productPayload(p *models.Product) map[string]any {
	return map[string]any{
		"product_id": p.ID,
		"seller_id":  p.SellerID,
		"name":       p.Name,
		"price":      p.Price.StringFixed(2),
		"stock":      p.Stock,
	}
}

// publish sends e and logs a failure; the business operation has already committed.
func publish(ctx context.Context, publisher events.Publisher, e events.Event) {
	if err := publisher.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Error("failed to publish event", "type", e.Type, "key", e.Key, "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
