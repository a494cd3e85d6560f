package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/services"
	"storefront/pkg/money"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
}

func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service, validate: validator.New()}
}

// RegisterRoutes registers the cart routes. They require an authenticated router.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleViewCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Patch("/items/:id", h.HandleUpdateItem)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)
}

type AddCartItemRequest struct {
	ProductID string `json:"product_id" form:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" form:"quantity" validate:"gte=0"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" form:"quantity" validate:"required"`
}

func (h *CartHandler) HandleViewCart(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	cart, err := h.service.ViewCart(c.UserContext(), p)
	if err != nil {
		return respondError(c, "Could not retrieve cart", err)
	}
	return c.JSON(cartView{Cart: *cart, TotalDisplay: money.Format(cart.Total)})
}

// HandleAddItem adds a product to the cart; quantity defaults to 1.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req AddCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	item, err := h.service.AddItem(c.UserContext(), p, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, "Could not add item to cart", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Item added to cart",
		"item":    item,
	})
}

// HandleUpdateItem sets a line quantity; zero or less removes the line.
func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req UpdateCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.service.UpdateItem(c.UserContext(), p, c.Params("id"), *req.Quantity); err != nil {
		return respondError(c, "Could not update cart item", err)
	}
	return c.JSON(fiber.Map{"message": "Cart updated"})
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveItem(c.UserContext(), p, c.Params("id")); err != nil {
		return respondError(c, "Could not remove cart item", err)
	}
	return c.JSON(fiber.Map{"message": "Item removed from cart"})
}
