package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create inserts the order and its line items.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	// TransitionStatus sets status to `to` only while the order is in one of `from` and reports
	// whether it did.
	TransitionStatus(ctx context.Context, id string, to models.OrderStatus, from ...models.OrderStatus) (bool, error)
	// HasSellerItems reports whether at least one line of the order is a product of sellerID.
	HasSellerItems(ctx context.Context, orderID, sellerID string) (bool, error)
	// ListItemsBySeller returns every line item of the seller's products, with order and product.
	ListItemsBySeller(ctx context.Context, sellerID string) ([]models.OrderItem, error)
}
