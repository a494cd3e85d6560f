package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

type StockFilter string

const (
	StockAny        StockFilter = ""
	StockInStock    StockFilter = "in_stock"
	StockOutOfStock StockFilter = "out_of_stock"
)

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceLow  ProductSort = "price_low"
	SortPriceHigh ProductSort = "price_high"
	SortName      ProductSort = "name"
)

// ProductFilter narrows a product listing. A non-nil IDs restricts the result to those
// products and replaces the Search text match.
type ProductFilter struct {
	Search   string
	IDs      []string
	SellerID string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Stock    StockFilter
	Sort     ProductSort
}

// ProductRepository defines the interface for product and product image data access.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error

	// LockByIDs loads the products for update, keyed by ID.
	LockByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
	// DecrementStock subtracts qty when at least qty units are left and reports whether it did.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	IncrementStock(ctx context.Context, id string, qty int) error

	ListImages(ctx context.Context, productID string) ([]models.ProductImage, error)
	GetImage(ctx context.Context, id string) (*models.ProductImage, error)
	AddImages(ctx context.Context, images []models.ProductImage) error
	DeleteImage(ctx context.Context, id string) error
	SetImageOrder(ctx context.Context, id string, order int) error
	// MaxImageOrder returns the highest display order of a product's images, -1 if it has none.
	MaxImageOrder(ctx context.Context, productID string) (int, error)
}
