package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// OrderService turns carts into orders and drives the order lifecycle.
type OrderService struct {
	store     *repositories.Store
	publisher events.Publisher
}

// NewOrderService creates a new OrderService.
func NewOrderService(store *repositories.Store, publisher events.Publisher) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderService{store: store, publisher: publisher}
}

// Checkout converts the caller's cart into an order. The order, its line items, the stock
// decrements and the cart clearing commit together or not at all.
func (s *OrderService) Checkout(ctx context.Context, p Principal, address, phone string) (*models.Order, error) {
	if err := p.RequireCustomer("place orders"); err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	phone = strings.TrimSpace(phone)
	if address == "" || phone == "" {
		return nil, fmt.Errorf("%w: address and phone are required", ErrValidation)
	}

	var order *models.Order
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		lines, err := tx.Carts.ListByUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		ids := make([]string, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ProductID)
		}
		products, err := tx.Products.LockByIDs(ctx, ids)
		if err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, ok := products[line.ProductID]
			if !ok {
				return fmt.Errorf("product with ID %s: %w", line.ProductID, ErrNotFound)
			}
			if line.Quantity > product.Stock {
				return insufficientStock(product)
			}
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order = &models.Order{
			CustomerID: p.UserID,
			TotalPrice: total,
			Address:    address,
			Phone:      phone,
			Status:     models.OrderStatusPending,
			Items:      items,
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}

		for _, item := range items {
			ok, err := tx.Products.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return insufficientStock(products[item.ProductID])
			}
		}

		return tx.Carts.DeleteByUser(ctx, p.UserID)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.New(events.OrderCreated, order.ID, orderPayload(order)))
	return order, nil
}

// CancelOrder cancels a pending or processing order of the caller and puts its stock back.
func (s *OrderService) CancelOrder(ctx context.Context, p Principal, orderID string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		order, err = tx.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != p.UserID {
			return fmt.Errorf("%w: order %s belongs to another customer", ErrForbidden, orderID)
		}
		return cancelOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.New(events.OrderCancelled, order.ID, orderPayload(order)))
	return order, nil
}

// UpdateOrderStatus lets a seller with at least one line in the order, or staff, set its
// status. Moving to cancelled follows the cancellation rules; a cancelled order stays cancelled.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, p Principal, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid order status: %s", ErrValidation, status)
	}
	if !p.IsStaff {
		if err := p.RequireSeller("update order status"); err != nil {
			return nil, err
		}
	}

	var order *models.Order
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		order, err = tx.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireSellerOf(ctx, tx, p, orderID); err != nil {
			return err
		}

		switch {
		case order.Status == models.OrderStatusCancelled:
			return fmt.Errorf("%w: order %s is cancelled", ErrInvalidTransition, orderID)
		case status == models.OrderStatusCancelled:
			return cancelOrder(ctx, tx, order)
		}

		if err := tx.Orders.UpdateStatus(ctx, orderID, status); err != nil {
			return fmt.Errorf("failed to update order status for order %s: %w", orderID, err)
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := events.OrderStatusUpdated
	if order.Status == models.OrderStatusCancelled {
		eventType = events.OrderCancelled
	}
	publish(ctx, s.publisher, events.New(eventType, order.ID, orderPayload(order)))
	return order, nil
}

// GetOrder returns an order visible to the caller: its customer, a seller with a line in it,
// or staff.
func (s *OrderService) GetOrder(ctx context.Context, p Principal, orderID string) (*models.Order, error) {
	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID == p.UserID || p.IsStaff {
		return order, nil
	}
	if p.IsSeller() {
		if err := requireSellerOf(ctx, s.store, p, orderID); err != nil {
			return nil, err
		}
		return order, nil
	}
	return nil, fmt.Errorf("%w: order %s belongs to another customer", ErrForbidden, orderID)
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, p Principal) ([]models.Order, error) {
	if err := p.RequireCustomer("view orders"); err != nil {
		return nil, err
	}
	return s.store.Orders.ListByCustomer(ctx, p.UserID)
}

// cancelOrder moves order to cancelled and restores the stock of every line. It must run in
// the transaction that loaded order, with its return request preloaded. Orders with a return
// request are never cancelled: the return workflow owns their stock.
func cancelOrder(ctx context.Context, tx *repositories.Store, order *models.Order) error {
	if !order.Status.Cancellable() {
		return fmt.Errorf("%w: cannot cancel an order that is %s", ErrInvalidTransition, order.Status)
	}
	if order.ReturnRequest != nil {
		return fmt.Errorf("%w: order %s has a return request", ErrInvalidTransition, order.ID)
	}
	ok, err := tx.Orders.TransitionStatus(ctx, order.ID, models.OrderStatusCancelled,
		models.OrderStatusPending, models.OrderStatusProcessing)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s changed status concurrently", ErrInvalidTransition, order.ID)
	}
	for _, item := range order.Items {
		if err := tx.Products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	order.Status = models.OrderStatusCancelled
	return nil
}

// requireSellerOf fails with ErrForbidden unless p is staff or sells a product of the order.
func requireSellerOf(ctx context.Context, store *repositories.Store, p Principal, orderID string) error {
	if p.IsStaff {
		return nil
	}
	if !p.IsSeller() {
		return fmt.Errorf("%w: only sellers can manage orders", ErrForbidden)
	}
	ok, err := store.Orders.HasSellerItems(ctx, orderID, p.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s has no products of this seller", ErrForbidden, orderID)
	}
	return nil
}

func orderPayload(o *models.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
			"price":      item.Price.StringFixed(2),
		})
	}
	return map[string]any{
		"order_id":    o.ID,
		"customer_id": o.CustomerID,
		"status":      string(o.Status),
		"total":       o.TotalPrice.StringFixed(2),
		"items":       items,
	}
}
