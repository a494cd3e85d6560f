package services

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// Dashboard summarises a seller's catalog, sales and returns.
type Dashboard struct {
	Products       []models.Product       `json:"products"`
	OrderItems     []models.OrderItem     `json:"order_items"`
	ReturnRequests []models.ReturnRequest `json:"return_requests"`
	TotalProducts  int                    `json:"total_products"`
	TotalOrders    int                    `json:"total_orders"`
	TotalSales     decimal.Decimal        `json:"total_sales"`
	TotalRefunded  decimal.Decimal        `json:"total_refunded"`
}

type DashboardService struct {
	store *repositories.Store
}

func NewDashboardService(store *repositories.Store) *DashboardService {
	return &DashboardService{store: store}
}

// SellerDashboard builds the dashboard of the calling seller. Sales exclude the lines of
// orders whose refund was completed.
func (s *DashboardService) SellerDashboard(ctx context.Context, p Principal) (*Dashboard, error) {
	if err := p.RequireSeller("view the seller dashboard"); err != nil {
		return nil, err
	}

	products, err := s.store.Products.List(ctx, repositories.ProductFilter{SellerID: p.UserID})
	if err != nil {
		return nil, err
	}
	items, err := s.store.Orders.ListItemsBySeller(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	returns, err := s.store.Returns.ListBySeller(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	refundedOrders := make(map[string]bool)
	totalRefunded := decimal.Zero
	for _, r := range returns {
		if r.Status != models.ReturnStatusRefundCompleted {
			continue
		}
		refundedOrders[r.OrderID] = true
		if r.RefundAmount.Valid {
			totalRefunded = totalRefunded.Add(r.RefundAmount.Decimal)
		}
	}

	totalSales := decimal.Zero
	for i := range items {
		if refundedOrders[items[i].OrderID] {
			continue
		}
		totalSales = totalSales.Add(items[i].LineTotal())
	}

	return &Dashboard{
		Products:       products,
		OrderItems:     items,
		ReturnRequests: returns,
		TotalProducts:  len(products),
		TotalOrders:    len(items),
		TotalSales:     totalSales,
		TotalRefunded:  totalRefunded,
	}, nil
}
