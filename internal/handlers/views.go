package handlers

import (
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/pkg/money"
)

type productView struct {
	models.Product
	PriceDisplay string `json:"price_display"`
	PrimaryImage string `json:"primary_image"`
}

func newProductView(p *models.Product) productView {
	return productView{Product: *p, PriceDisplay: money.Format(p.Price), PrimaryImage: p.PrimaryImage()}
}

func newProductViews(products []models.Product) []productView {
	out := make([]productView, 0, len(products))
	for i := range products {
		out = append(out, newProductView(&products[i]))
	}
	return out
}

type orderView struct {
	models.Order
	TotalDisplay string `json:"total_display"`
}

func newOrderView(o *models.Order) orderView {
	return orderView{Order: *o, TotalDisplay: money.Format(o.TotalPrice)}
}

func newOrderViews(orders []models.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderView(&orders[i]))
	}
	return out
}

type cartView struct {
	services.Cart
	TotalDisplay string `json:"total_display"`
}

type dashboardView struct {
	services.Dashboard
	TotalSalesDisplay    string `json:"total_sales_display"`
	TotalRefundedDisplay string `json:"total_refunded_display"`
}
