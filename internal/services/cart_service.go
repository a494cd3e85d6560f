package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// Cart is a customer's cart with its total at current prices.
type Cart struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

// CartService manages the per-customer cart lines.
type CartService struct {
	store *repositories.Store
}

func NewCartService(store *repositories.Store) *CartService {
	return &CartService{store: store}
}

// AddItem puts qty units of a product in the cart, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, p Principal, productID string, qty int) (*models.CartItem, error) {
	if err := p.RequireCustomer("add items to a cart"); err != nil {
		return nil, err
	}
	if qty <= 0 {
		qty = 1
	}

	var item *models.CartItem
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		product, err := tx.Products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if product.Stock <= 0 {
			return fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
		}

		existing, err := tx.Carts.GetByUserAndProduct(ctx, p.UserID, productID)
		switch {
		case err == nil:
			want := existing.Quantity + qty
			if want > product.Stock {
				return insufficientStock(product)
			}
			if err := tx.Carts.UpdateQuantity(ctx, existing.ID, want); err != nil {
				return err
			}
			existing.Quantity = want
			item = existing
		case errors.Is(err, ErrNotFound):
			if qty > product.Stock {
				return insufficientStock(product)
			}
			item = &models.CartItem{UserID: p.UserID, ProductID: productID, Quantity: qty}
			if err := tx.Carts.Create(ctx, item); err != nil {
				return err
			}
		default:
			return err
		}
		item.Product = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem sets the quantity of a cart line. A quantity of zero or less removes the line.
// Stock is not checked here; checkout validates it.
func (s *CartService) UpdateItem(ctx context.Context, p Principal, itemID string, qty int) error {
	if err := p.RequireCustomer("change a cart"); err != nil {
		return err
	}
	item, err := s.ownedItem(ctx, p, itemID)
	if err != nil {
		return err
	}
	if qty <= 0 {
		return s.store.Carts.Delete(ctx, item.ID)
	}
	return s.store.Carts.UpdateQuantity(ctx, item.ID, qty)
}

// RemoveItem deletes a cart line. Removing a line that does not exist is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, p Principal, itemID string) error {
	if err := p.RequireCustomer("change a cart"); err != nil {
		return err
	}
	item, err := s.ownedItem(ctx, p, itemID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	return s.store.Carts.Delete(ctx, item.ID)
}

// ViewCart returns the caller's cart lines and their total at current prices.
func (s *CartService) ViewCart(ctx context.Context, p Principal) (*Cart, error) {
	if err := p.RequireCustomer("view a cart"); err != nil {
		return nil, err
	}
	items, err := s.store.Carts.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return &Cart{Items: items, Total: cartTotal(items)}, nil
}

func (s *CartService) Total(ctx context.Context, p Principal) (decimal.Decimal, error) {
	cart, err := s.ViewCart(ctx, p)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.Total, nil
}

func (s *CartService) ownedItem(ctx context.Context, p Principal, itemID string) (*models.CartItem, error) {
	item, err := s.store.Carts.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != p.UserID {
		return nil, fmt.Errorf("%w: cart item %s belongs to another user", ErrForbidden, itemID)
	}
	return item, nil
}

func cartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].LineTotal())
	}
	return total
}

func insufficientStock(product *models.Product) error {
	return fmt.Errorf("%w: %s has only %d items in stock", ErrInsufficientStock, product.Name, product.Stock)
}
