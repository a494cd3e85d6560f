package handlers

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/repositories"
	"storefront/internal/services"
)

// ProductHandler serves the public catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service, validate: validator.New()}
}

// RegisterRoutes registers the catalog routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)
}

// ProductQuery holds the catalog query string.
type ProductQuery struct {
	Search   string `query:"search"`
	MinPrice string `query:"min_price" validate:"omitempty,numeric"`
	MaxPrice string `query:"max_price" validate:"omitempty,numeric"`
	Stock    string `query:"stock" validate:"omitempty,oneof=in_stock out_of_stock"`
	Sort     string `query:"sort" validate:"omitempty,oneof=newest price_low price_high name"`
}

func (q ProductQuery) filter() (repositories.ProductFilter, error) {
	f := repositories.ProductFilter{
		Search: strings.TrimSpace(q.Search),
		Stock:  repositories.StockFilter(q.Stock),
		Sort:   repositories.ProductSort(q.Sort),
	}
	var err error
	if f.MinPrice, err = optionalDecimal("min_price", q.MinPrice); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optionalDecimal("max_price", q.MaxPrice); err != nil {
		return f, err
	}
	return f, nil
}

func optionalDecimal(name, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a number", services.ErrValidation, name)
	}
	return &d, nil
}

// HandleListProducts lists the catalog with search, price and stock filters and sorting.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	var q ProductQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query", err)
	}
	if err := h.validate.Struct(q); err != nil {
		return validationFailed(c, err)
	}
	filter, err := q.filter()
	if err != nil {
		return respondError(c, "Invalid query", err)
	}

	products, err := h.service.ListProducts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, "Could not retrieve products", err)
	}
	return c.JSON(newProductViews(products))
}

// HandleGetProduct retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, "Could not retrieve product", err)
	}
	return c.JSON(newProductView(product))
}
