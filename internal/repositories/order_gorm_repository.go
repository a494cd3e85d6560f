package repositories

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"storefront/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Line items keep pointing at soft-deleted products.
func withDeleted(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

func (r *GORMOrderRepository) sellerProductIDs(sellerID string) *gorm.DB {
	return r.db.Unscoped().Model(&models.Product{}).Select("id").Where("seller_id = ?", sellerID)
}

func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items.Product", withDeleted).
		Preload("ReturnRequest").
		First(&order, "id = ?", id).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *GORMOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items.Product", withDeleted).
		Preload("ReturnRequest").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of customer %s: %w", customerID, err)
	}
	return orders, nil
}

func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *GORMOrderRepository) TransitionStatus(ctx context.Context, id string, to models.OrderStatus, from ...models.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status of order %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMOrderRepository) HasSellerItems(ctx context.Context, orderID, sellerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ? AND product_id IN (?)", orderID, r.sellerProductIDs(sellerID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check seller items of order %s: %w", orderID, err)
	}
	return count > 0, nil
}

// ListItemsBySeller returns the seller's line items, newest order first.
func (r *GORMOrderRepository) ListItemsBySeller(ctx context.Context, sellerID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Product", withDeleted).
		Where("product_id IN (?)", r.sellerProductIDs(sellerID)).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list order items of seller %s: %w", sellerID, err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order == nil || items[j].Order == nil {
			return false
		}
		return items[i].Order.CreatedAt.After(items[j].Order.CreatedAt)
	})
	return items, nil
}
