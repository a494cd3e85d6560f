package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/models"
)

// setupApp builds the full application on a private in-memory SQLite database.
func setupApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	db, err := database.Open(t.Context(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mediaDir := t.TempDir()
	cfg := &config.Config{
		App: config.AppConfig{MediaDir: mediaDir},
		JWT: config.JWTConfig{Secret: "test_jwt_secret"},
	}
	return app.New(app.Deps{
		Config: cfg,
		DB:     db,
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}), mediaDir
}

// call sends a JSON request and decodes the response body into out when out is not nil.
func call(t *testing.T, a *fiber.App, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "%s %s", method, path)
	}
	return resp.StatusCode
}

func registerAndLogin(t *testing.T, a *fiber.App, username, role string) string {
	t.Helper()
	status := call(t, a, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"role":     role,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var loginResp map[string]string
	status = call(t, a, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	}, &loginResp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

type productResponse struct {
	models.Product
	PriceDisplay string `json:"price_display"`
	PrimaryImage string `json:"primary_image"`
}

type orderResponse struct {
	models.Order
	TotalDisplay string `json:"total_display"`
}

func TestAuthRegisterAndLogin(t *testing.T) {
	a, _ := setupApp(t)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	var registerResp struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}
	status := call(t, a, http.MethodPost, "/api/v1/auth/register", "", userToRegister, &registerResp)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", registerResp.Message)
	assert.Equal(t, models.RoleCustomer, registerResp.User.Role)
	assert.Empty(t, registerResp.User.Password)

	// Duplicate username
	status = call(t, a, http.MethodPost, "/api/v1/auth/register", "", userToRegister, nil)
	assert.Equal(t, http.StatusConflict, status)

	var validationResp struct {
		Errors map[string]string `json:"errors"`
	}
	status = call(t, a, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "x",
		"email":    "not-an-email",
		"password": "123",
	}, &validationResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, validationResp.Errors, "Email")
	assert.Contains(t, validationResp.Errors, "Password")

	var loginResp map[string]string
	status = call(t, a, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "password123",
	}, &loginResp)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, loginResp["token"])

	status = call(t, a, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProtectedEndpointsWithoutAuth(t *testing.T) {
	a, _ := setupApp(t)

	// The catalog is public.
	var products []productResponse
	status := call(t, a, http.MethodGet, "/api/v1/products", "", nil, &products)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, products)

	status = call(t, a, http.MethodGet, "/api/v1/cart", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = call(t, a, http.MethodPost, "/api/v1/seller/products", "", map[string]any{"name": "X", "price": "1", "stock": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = call(t, a, http.MethodGet, "/api/v1/orders", "invalid-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestShoppingFlow(t *testing.T) {
	a, _ := setupApp(t)
	sellerToken := registerAndLogin(t, a, "seller", "seller")
	customerToken := registerAndLogin(t, a, "customer", "customer")

	// Customers cannot sell.
	status := call(t, a, http.MethodPost, "/api/v1/seller/products", customerToken, map[string]any{"name": "X", "price": "1", "stock": 1}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var laptop productResponse
	status = call(t, a, http.MethodPost, "/api/v1/seller/products", sellerToken, map[string]any{
		"name":        "Laptop",
		"description": "Fast",
		"price":       "1000.00",
		"stock":       2,
	}, &laptop)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "₹1,000.00", laptop.PriceDisplay)

	var products []productResponse
	status = call(t, a, http.MethodGet, "/api/v1/products?search=lap&stock=in_stock", "", nil, &products)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, products, 1)
	assert.Equal(t, laptop.ID, products[0].ID)

	status = call(t, a, http.MethodGet, "/api/v1/products?sort=cheapest", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status = call(t, a, http.MethodGet, "/api/v1/products/missing", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Cart
	status = call(t, a, http.MethodPost, "/api/v1/cart/items", customerToken, map[string]any{"product_id": laptop.ID, "quantity": 3}, nil)
	assert.Equal(t, http.StatusConflict, status)
	status = call(t, a, http.MethodPost, "/api/v1/cart/items", customerToken, map[string]any{"product_id": laptop.ID, "quantity": 2}, nil)
	require.Equal(t, http.StatusCreated, status)

	var cart struct {
		Items        []models.CartItem `json:"items"`
		Total        decimal.Decimal   `json:"total"`
		TotalDisplay string            `json:"total_display"`
	}
	status = call(t, a, http.MethodGet, "/api/v1/cart", customerToken, nil, &cart)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.NewFromInt(2000).Equal(cart.Total))
	assert.Equal(t, "₹2,000.00", cart.TotalDisplay)

	// Checkout
	status = call(t, a, http.MethodPost, "/api/v1/checkout", customerToken, map[string]string{"address": "1 Main St"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var order orderResponse
	status = call(t, a, http.MethodPost, "/api/v1/checkout", customerToken, map[string]string{"address": "1 Main St", "phone": "555-0100"}, &order)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, decimal.NewFromInt(2000).Equal(order.TotalPrice))
	require.Len(t, order.Items, 1)

	status = call(t, a, http.MethodPost, "/api/v1/checkout", customerToken, map[string]string{"address": "1 Main St", "phone": "555-0100"}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "empty cart")

	var fetched productResponse
	call(t, a, http.MethodGet, "/api/v1/products/"+laptop.ID, "", nil, &fetched)
	assert.Equal(t, 0, fetched.Stock)

	var orders []orderResponse
	status = call(t, a, http.MethodGet, "/api/v1/orders", customerToken, nil, &orders)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	// Seller ships and delivers.
	status = call(t, a, http.MethodPatch, "/api/v1/seller/orders/"+order.ID+"/status", sellerToken, map[string]string{"status": "teleported"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status = call(t, a, http.MethodPatch, "/api/v1/seller/orders/"+order.ID+"/status", customerToken, map[string]string{"status": "shipped"}, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = call(t, a, http.MethodPatch, "/api/v1/seller/orders/"+order.ID+"/status", sellerToken, map[string]string{"status": "shipped"}, nil)
	assert.Equal(t, http.StatusOK, status)

	status = call(t, a, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", customerToken, nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = call(t, a, http.MethodPatch, "/api/v1/seller/orders/"+order.ID+"/status", sellerToken, map[string]string{"status": "delivered"}, nil)
	assert.Equal(t, http.StatusOK, status)

	// Return and refund
	var ret models.ReturnRequest
	status = call(t, a, http.MethodPost, "/api/v1/orders/"+order.ID+"/returns", customerToken, map[string]string{"reason": "Too heavy"}, &ret)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.ReturnStatusPending, ret.Status)

	status = call(t, a, http.MethodPost, "/api/v1/orders/"+order.ID+"/returns", customerToken, map[string]string{"reason": "Again"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = call(t, a, http.MethodPost, "/api/v1/seller/returns/"+ret.ID, sellerToken, map[string]string{"action": "approve", "admin_response": "ok"}, &ret)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ReturnStatusApproved, ret.Status)

	status = call(t, a, http.MethodPatch, "/api/v1/returns/"+ret.ID+"/tracking", customerToken, map[string]string{"tracking_number": "TRK-1"}, &ret)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "TRK-1", ret.TrackingNumber)

	for _, action := range []string{"item_received", "initiate_refund", "complete_refund"} {
		status = call(t, a, http.MethodPost, "/api/v1/seller/returns/"+ret.ID, sellerToken, map[string]string{"action": action}, &ret)
		require.Equal(t, http.StatusOK, status, action)
	}
	assert.Equal(t, models.ReturnStatusRefundCompleted, ret.Status)
	assert.Equal(t, models.DefaultRefundMethod, ret.RefundMethod)
	assert.True(t, ret.StockRestored)

	status = call(t, a, http.MethodPost, "/api/v1/seller/returns/"+ret.ID, sellerToken, map[string]string{"action": "approve"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	call(t, a, http.MethodGet, "/api/v1/products/"+laptop.ID, "", nil, &fetched)
	assert.Equal(t, 2, fetched.Stock)

	var dashboard struct {
		TotalProducts        int             `json:"total_products"`
		TotalOrders          int             `json:"total_orders"`
		TotalSales           decimal.Decimal `json:"total_sales"`
		TotalRefundedDisplay string          `json:"total_refunded_display"`
	}
	status = call(t, a, http.MethodGet, "/api/v1/seller/dashboard", sellerToken, nil, &dashboard)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, dashboard.TotalProducts)
	assert.Equal(t, 1, dashboard.TotalOrders)
	assert.True(t, dashboard.TotalSales.IsZero())
	assert.Equal(t, "₹2,000.00", dashboard.TotalRefundedDisplay)

	status = call(t, a, http.MethodGet, "/api/v1/seller/dashboard", customerToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

// postProductForm creates a camera product through a multipart form with one image per file name.
func postProductForm(t *testing.T, a *fiber.App, token string, files ...string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("name", "Camera"))
	require.NoError(t, w.WriteField("price", "499.99"))
	require.NoError(t, w.WriteField("stock", "4"))
	for _, name := range files {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seller/products", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSellerProductRejectedUploadLeavesNoFiles(t *testing.T) {
	a, mediaDir := setupApp(t)
	sellerToken := registerAndLogin(t, a, "seller", "seller")

	resp := postProductForm(t, a, sellerToken, "front.png", "notes.txt")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	entries, err := os.ReadDir(filepath.Join(mediaDir, "products"))
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)

	var products []productResponse
	call(t, a, http.MethodGet, "/api/v1/products", "", nil, &products)
	assert.Empty(t, products)
}

func TestSellerProductImages(t *testing.T) {
	a, mediaDir := setupApp(t)
	sellerToken := registerAndLogin(t, a, "seller", "seller")
	otherToken := registerAndLogin(t, a, "other", "seller")

	resp := postProductForm(t, a, sellerToken, "front.png", "back.jpg")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var camera productResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&camera))
	require.Len(t, camera.Images, 2)
	assert.Equal(t, 0, camera.Images[0].Order)
	assert.Equal(t, 1, camera.Images[1].Order)
	assert.Equal(t, camera.Images[0].Path, camera.PrimaryImage)
	for _, img := range camera.Images {
		_, err := os.Stat(filepath.Join(mediaDir, filepath.FromSlash(img.Path)))
		assert.NoError(t, err, img.Path)
	}

	front, back := camera.Images[0], camera.Images[1]
	reorder := map[string]any{"images": []map[string]any{{"image_id": back.ID, "order": 0}}}

	status := call(t, a, http.MethodPost, "/api/v1/seller/products/"+camera.ID+"/images/reorder", otherToken, reorder, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var reordered struct {
		Images []models.ProductImage `json:"images"`
	}
	status = call(t, a, http.MethodPost, "/api/v1/seller/products/"+camera.ID+"/images/reorder", sellerToken, reorder, &reordered)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, reordered.Images, 2)
	assert.Equal(t, back.ID, reordered.Images[0].ID)
	assert.Equal(t, front.ID, reordered.Images[1].ID)

	status = call(t, a, http.MethodDelete, "/api/v1/seller/images/"+front.ID, otherToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = call(t, a, http.MethodDelete, "/api/v1/seller/images/"+front.ID, sellerToken, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	var updated productResponse
	status = call(t, a, http.MethodPut, "/api/v1/seller/products/"+camera.ID, sellerToken, map[string]any{
		"name":  "Camera II",
		"price": "549.99",
		"stock": 3,
	}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Camera II", updated.Name)
	assert.Len(t, updated.Images, 1)

	var mine []productResponse
	status = call(t, a, http.MethodGet, "/api/v1/seller/products", sellerToken, nil, &mine)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, mine, 1)

	status = call(t, a, http.MethodDelete, "/api/v1/seller/products/"+camera.ID, otherToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = call(t, a, http.MethodDelete, "/api/v1/seller/products/"+camera.ID, sellerToken, nil, nil)
	assert.Equal(t, http.StatusOK, status)
	status = call(t, a, http.MethodGet, "/api/v1/products/"+camera.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
