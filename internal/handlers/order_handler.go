package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/services"
)

// OrderHandler handles HTTP requests for the customer's orders and returns.
type OrderHandler struct {
	orders   *services.OrderService
	returns  *services.ReturnService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *services.OrderService, returns *services.ReturnService) *OrderHandler {
	return &OrderHandler{orders: orders, returns: returns, validate: validator.New()}
}

// RegisterRoutes registers the order routes. They require an authenticated router.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/checkout", h.HandleCheckout)

	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Post("/:id/returns", h.HandleRequestReturn)

	router.Patch("/returns/:id/tracking", h.HandleUpdateTracking)
}

type CheckoutRequest struct {
	Address string `json:"address" form:"address" validate:"required,max=300"`
	Phone   string `json:"phone" form:"phone" validate:"required,max=20"`
}

type ReturnRequestBody struct {
	Reason string `json:"reason" form:"reason" validate:"required"`
}

type TrackingRequest struct {
	TrackingNumber string `json:"tracking_number" form:"tracking_number" validate:"required,max=100"`
}

// HandleCheckout places an order from the caller's cart.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.orders.Checkout(c.UserContext(), p, req.Address, req.Phone)
	if err != nil {
		return respondError(c, "Could not place order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(newOrderView(order))
}

// HandleGetOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	orders, err := h.orders.ListOrders(c.UserContext(), p)
	if err != nil {
		return respondError(c, "Could not retrieve orders", err)
	}
	return c.JSON(newOrderViews(orders))
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	order, err := h.orders.GetOrder(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return respondError(c, "Could not retrieve order", err)
	}
	return c.JSON(newOrderView(order))
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	order, err := h.orders.CancelOrder(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return respondError(c, "Could not cancel order", err)
	}
	return c.JSON(fiber.Map{
		"message": "Order cancelled",
		"order":   newOrderView(order),
	})
}

func (h *OrderHandler) HandleRequestReturn(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req ReturnRequestBody
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	ret, err := h.returns.RequestReturn(c.UserContext(), p, c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, "Could not request return", err)
	}
	return c.Status(fiber.StatusCreated).JSON(ret)
}

func (h *OrderHandler) HandleUpdateTracking(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req TrackingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	ret, err := h.returns.UpdateTracking(c.UserContext(), p, c.Params("id"), req.TrackingNumber)
	if err != nil {
		return respondError(c, "Could not update tracking number", err)
	}
	return c.JSON(ret)
}
