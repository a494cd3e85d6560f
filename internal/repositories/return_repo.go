package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/models"
)

// ReturnRepository defines the interface for return request data access.
type ReturnRepository interface {
	Create(ctx context.Context, ret *models.ReturnRequest) error
	// GetByID loads the return request with its order and the order's line items.
	GetByID(ctx context.Context, id string) (*models.ReturnRequest, error)
	// GetForUpdate is GetByID with the return request row locked until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.ReturnRequest, error)
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	// Save writes the request's editable columns only while its stored status is still from,
	// and reports whether it did. The stock-restored flag is left to ClaimStockRestore.
	Save(ctx context.Context, ret *models.ReturnRequest, from models.ReturnStatus) (bool, error)
	// ClaimStockRestore flags the request's stock as restored and reports whether this call
	// was the one that flipped the flag.
	ClaimStockRestore(ctx context.Context, id string) (bool, error)
	// ListBySeller returns the return requests of orders containing the seller's products.
	ListBySeller(ctx context.Context, sellerID string) ([]models.ReturnRequest, error)
}

// GORMReturnRepository is a GORM implementation of ReturnRepository.
type GORMReturnRepository struct {
	db *gorm.DB
}

func NewGORMReturnRepository(db *gorm.DB) *GORMReturnRepository {
	return &GORMReturnRepository{db: db}
}

// Create inserts the return request. A second request for the same order fails with
// ErrDuplicate.
func (r *GORMReturnRepository) Create(ctx context.Context, ret *models.ReturnRequest) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(ret).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("return request for order %s: %w", ret.OrderID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create return request: %w", err)
	}
	return nil
}

func (r *GORMReturnRepository) GetByID(ctx context.Context, id string) (*models.ReturnRequest, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *GORMReturnRepository) GetForUpdate(ctx context.Context, id string) (*models.ReturnRequest, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GORMReturnRepository) get(db *gorm.DB, id string) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := db.
		Preload("Order.Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&ret, "id = ?", id).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("return request %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get return request %s: %w", id, err)
	}
	return &ret, nil
}

func (r *GORMReturnRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check return requests of order %s: %w", orderID, err)
	}
	return count > 0, nil
}

func (r *GORMReturnRepository) Save(ctx context.Context, ret *models.ReturnRequest, from models.ReturnStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", ret.ID, from).
		Updates(map[string]any{
			"status":          ret.Status,
			"admin_response":  ret.AdminResponse,
			"refund_amount":   ret.RefundAmount,
			"refund_date":     ret.RefundDate,
			"refund_method":   ret.RefundMethod,
			"tracking_number": ret.TrackingNumber,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to save return request %s: %w", ret.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMReturnRepository) ClaimStockRestore(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).
		Where("id = ? AND stock_restored = ?", id, false).
		Update("stock_restored", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to flag stock of return request %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMReturnRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.ReturnRequest, error) {
	sellerProducts := r.db.Unscoped().Model(&models.Product{}).Select("id").Where("seller_id = ?", sellerID)
	sellerOrders := r.db.Model(&models.OrderItem{}).Select("order_id").Where("product_id IN (?)", sellerProducts)

	var out []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Order").
		Where("order_id IN (?)", sellerOrders).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list return requests of seller %s: %w", sellerID, err)
	}
	return out, nil
}
