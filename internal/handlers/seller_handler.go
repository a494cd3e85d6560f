package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/pkg/money"
)

// SellerHandler serves the seller's product, order and return administration.
type SellerHandler struct {
	products  *services.ProductService
	orders    *services.OrderService
	returns   *services.ReturnService
	dashboard *services.DashboardService
	mediaDir  string
	validate  *validator.Validate
}

func NewSellerHandler(products *services.ProductService, orders *services.OrderService, returns *services.ReturnService, dashboard *services.DashboardService, mediaDir string) *SellerHandler {
	return &SellerHandler{
		products:  products,
		orders:    orders,
		returns:   returns,
		dashboard: dashboard,
		mediaDir:  mediaDir,
		validate:  validator.New(),
	}
}

// RegisterRoutes registers the seller routes. They require an authenticated router.
func (h *SellerHandler) RegisterRoutes(router fiber.Router) {
	sellerRoutes := router.Group("/seller")
	sellerRoutes.Get("/dashboard", h.HandleDashboard)

	sellerRoutes.Get("/products", h.HandleListProducts)
	sellerRoutes.Post("/products", h.HandleCreateProduct)
	sellerRoutes.Put("/products/:id", h.HandleUpdateProduct)
	sellerRoutes.Delete("/products/:id", h.HandleDeleteProduct)
	sellerRoutes.Post("/products/:id/images/reorder", h.HandleReorderImages)
	sellerRoutes.Delete("/images/:id", h.HandleDeleteImage)

	sellerRoutes.Patch("/orders/:id/status", h.HandleUpdateOrderStatus)

	sellerRoutes.Get("/returns", h.HandleListReturns)
	sellerRoutes.Post("/returns/:id", h.HandleReturnAction)
}

// ProductForm is the body of product create and edit requests, JSON or multipart.
type ProductForm struct {
	Name        string `json:"name" form:"name" validate:"required,max=200"`
	Description string `json:"description" form:"description"`
	Price       string `json:"price" form:"price" validate:"required,numeric"`
	Stock       int    `json:"stock" form:"stock" validate:"gte=0"`
}

func (f ProductForm) input() (services.ProductInput, error) {
	price, err := optionalDecimal("price", f.Price)
	if err != nil {
		return services.ProductInput{}, err
	}
	in := services.ProductInput{Name: f.Name, Description: f.Description, Stock: f.Stock, Price: decimal.Zero}
	if price != nil {
		in.Price = *price
	}
	return in, nil
}

type ReorderImagesRequest struct {
	Images []ImageOrderRequest `json:"images" validate:"required,min=1,dive"`
}

type ImageOrderRequest struct {
	ImageID string `json:"image_id" validate:"required"`
	Order   *int   `json:"order" validate:"required,gte=0"`
}

type OrderStatusRequest struct {
	Status string `json:"status" form:"status" validate:"required"`
}

type ReturnActionRequest struct {
	Action         string `json:"action" form:"action" validate:"required,oneof=approve reject item_received initiate_refund complete_refund"`
	AdminResponse  string `json:"admin_response" form:"admin_response"`
	TrackingNumber string `json:"tracking_number" form:"tracking_number" validate:"max=100"`
	RefundMethod   string `json:"refund_method" form:"refund_method" validate:"max=50"`
}

func (h *SellerHandler) HandleDashboard(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	d, err := h.dashboard.SellerDashboard(c.UserContext(), p)
	if err != nil {
		return respondError(c, "Could not build dashboard", err)
	}
	return c.JSON(dashboardView{
		Dashboard:            *d,
		TotalSalesDisplay:    money.Format(d.TotalSales),
		TotalRefundedDisplay: money.Format(d.TotalRefunded),
	})
}

func (h *SellerHandler) HandleListProducts(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	products, err := h.products.SellerProducts(c.UserContext(), p)
	if err != nil {
		return respondError(c, "Could not retrieve products", err)
	}
	return c.JSON(newProductViews(products))
}

// HandleCreateProduct creates a product. Images are uploaded as the "images" multipart field
// and displayed in upload order.
func (h *SellerHandler) HandleCreateProduct(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	in, ok, err := h.parseProductForm(c)
	if !ok {
		return err
	}
	if !p.IsSeller() {
		return respondError(c, "Could not create product", p.RequireSeller("create products"))
	}

	paths, err := saveImages(c, h.mediaDir)
	if err != nil {
		return respondError(c, "Could not store images", err)
	}
	product, err := h.products.CreateProduct(c.UserContext(), p, in, paths)
	if err != nil {
		removeFiles(c, h.mediaDir, paths)
		return respondError(c, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(newProductView(product))
}

// HandleUpdateProduct edits a product. Uploaded images are appended after the existing ones.
func (h *SellerHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	in, ok, err := h.parseProductForm(c)
	if !ok {
		return err
	}
	if !p.IsSeller() {
		return respondError(c, "Could not update product", p.RequireSeller("edit products"))
	}

	paths, err := saveImages(c, h.mediaDir)
	if err != nil {
		return respondError(c, "Could not store images", err)
	}
	product, err := h.products.UpdateProduct(c.UserContext(), p, c.Params("id"), in, paths)
	if err != nil {
		removeFiles(c, h.mediaDir, paths)
		return respondError(c, "Could not update product", err)
	}
	return c.JSON(newProductView(product))
}

func (h *SellerHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.products.DeleteProduct(c.UserContext(), p, c.Params("id")); err != nil {
		return respondError(c, "Could not delete product", err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

func (h *SellerHandler) HandleReorderImages(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req ReorderImagesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	moves := make([]services.ImageOrder, 0, len(req.Images))
	for _, img := range req.Images {
		moves = append(moves, services.ImageOrder{ImageID: img.ImageID, Order: *img.Order})
	}
	images, err := h.products.ReorderImages(c.UserContext(), p, c.Params("id"), moves)
	if err != nil {
		return respondError(c, "Could not reorder images", err)
	}
	return c.JSON(fiber.Map{
		"message": "Images reordered",
		"images":  images,
	})
}

func (h *SellerHandler) HandleDeleteImage(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.products.DeleteImage(c.UserContext(), p, c.Params("id")); err != nil {
		return respondError(c, "Could not delete image", err)
	}
	return c.JSON(fiber.Map{"message": "Image deleted"})
}

func (h *SellerHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req OrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body for status update", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.orders.UpdateOrderStatus(c.UserContext(), p, c.Params("id"), models.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, "Could not update order status", err)
	}
	return c.JSON(fiber.Map{
		"message": "Order status updated to " + string(order.Status),
		"order":   newOrderView(order),
	})
}

func (h *SellerHandler) HandleListReturns(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	returns, err := h.returns.SellerReturns(c.UserContext(), p)
	if err != nil {
		return respondError(c, "Could not retrieve return requests", err)
	}
	return c.JSON(returns)
}

// HandleReturnAction applies one handling step to a return request.
func (h *SellerHandler) HandleReturnAction(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req ReturnActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	ret, err := h.returns.HandleReturn(c.UserContext(), p, c.Params("id"), services.ReturnAction(req.Action), services.ReturnInput{
		AdminResponse:  req.AdminResponse,
		TrackingNumber: req.TrackingNumber,
		RefundMethod:   req.RefundMethod,
	})
	if err != nil {
		return respondError(c, "Could not update return request", err)
	}
	return c.JSON(ret)
}

// parseProductForm reads the product body. When ok is false the error response has already
// been written and err is the result of writing it.
func (h *SellerHandler) parseProductForm(c *fiber.Ctx) (in services.ProductInput, ok bool, err error) {
	var form ProductForm
	if err := c.BodyParser(&form); err != nil {
		return in, false, badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(form); err != nil {
		return in, false, validationFailed(c, err)
	}
	in, err = form.input()
	if err != nil {
		return in, false, respondError(c, "Invalid request body", err)
	}
	return in, true, nil
}
