package repositories_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

func newStore(t *testing.T) *repositories.Store {
	t.Helper()
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return repositories.NewStore(db)
}

func seedProduct(t *testing.T, store *repositories.Store, stock int) *models.Product {
	t.Helper()
	p := &models.Product{SellerID: uuid.NewString(), Name: "Lamp", Price: decimal.NewFromInt(15), Stock: stock}
	require.NoError(t, store.Products.Create(context.Background(), p))
	return p
}

func TestProductRepository_Stock(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	p := seedProduct(t, store, 3)

	ok, err := store.Products.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Products.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "only one unit left")

	require.NoError(t, store.Products.Delete(ctx, p.ID))
	// Returned units reach deleted products too.
	require.NoError(t, store.Products.IncrementStock(ctx, p.ID, 4))
	var stock int
	require.NoError(t, store.DB().Unscoped().Model(&models.Product{}).Where("id = ?", p.ID).Select("stock").Scan(&stock).Error)
	assert.Equal(t, 5, stock)

	_, err = store.Products.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, store.Products.IncrementStock(ctx, "missing", 1), repositories.ErrNotFound)
}

func TestProductRepository_Images(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	p := seedProduct(t, store, 1)

	max, err := store.Products.MaxImageOrder(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, max)

	require.NoError(t, store.Products.AddImages(ctx, []models.ProductImage{
		{ProductID: p.ID, Path: "b.png", Order: 4},
		{ProductID: p.ID, Path: "a.png", Order: 1},
	}))
	max, err = store.Products.MaxImageOrder(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, max)

	images, err := store.Products.ListImages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "a.png", images[0].Path)

	loaded, err := store.Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", loaded.PrimaryImage())
}

func TestOrderRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	p := seedProduct(t, store, 1)

	order := &models.Order{
		CustomerID: uuid.NewString(),
		TotalPrice: decimal.NewFromInt(15),
		Address:    "1 Main St",
		Phone:      "555",
		Status:     models.OrderStatusPending,
		Items:      []models.OrderItem{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
	}
	require.NoError(t, store.Orders.Create(ctx, order))

	ok, err := store.Orders.TransitionStatus(ctx, order.ID, models.OrderStatusCancelled, models.OrderStatusPending, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Orders.TransitionStatus(ctx, order.ID, models.OrderStatusCancelled, models.OrderStatusPending, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok, "already cancelled")

	ok, err = store.Orders.HasSellerItems(ctx, order.ID, p.SellerID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Orders.HasSellerItems(ctx, order.ID, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReturnRepository_ClaimStockRestore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	p := seedProduct(t, store, 1)

	order := &models.Order{
		CustomerID: uuid.NewString(),
		TotalPrice: decimal.NewFromInt(15),
		Address:    "1 Main St",
		Phone:      "555",
		Status:     models.OrderStatusDelivered,
		Items:      []models.OrderItem{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
	}
	require.NoError(t, store.Orders.Create(ctx, order))

	ret := &models.ReturnRequest{OrderID: order.ID, Reason: "broken", Status: models.ReturnStatusPending}
	require.NoError(t, store.Returns.Create(ctx, ret))

	exists, err := store.Returns.ExistsForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	claimed, err := store.Returns.ClaimStockRestore(ctx, ret.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = store.Returns.ClaimStockRestore(ctx, ret.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	loaded, err := store.Returns.GetByID(ctx, ret.ID)
	require.NoError(t, err)
	assert.True(t, loaded.StockRestored)
	require.NotNil(t, loaded.Order)
	assert.Len(t, loaded.Order.Items, 1)

	returns, err := store.Returns.ListBySeller(ctx, p.SellerID)
	require.NoError(t, err)
	assert.Len(t, returns, 1)

	err = store.Returns.Create(ctx, &models.ReturnRequest{OrderID: order.ID, Reason: "again", Status: models.ReturnStatusPending})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestReturnRepository_SaveIsConditional(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	p := seedProduct(t, store, 1)

	order := &models.Order{
		CustomerID: uuid.NewString(),
		TotalPrice: decimal.NewFromInt(15),
		Address:    "1 Main St",
		Phone:      "555",
		Status:     models.OrderStatusDelivered,
		Items:      []models.OrderItem{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
	}
	require.NoError(t, store.Orders.Create(ctx, order))
	ret := &models.ReturnRequest{OrderID: order.ID, Reason: "broken", Status: models.ReturnStatusPending}
	require.NoError(t, store.Returns.Create(ctx, ret))

	ret.Status = models.ReturnStatusApproved
	ok, err := store.Returns.Save(ctx, ret, models.ReturnStatusPending)
	require.NoError(t, err)
	assert.True(t, ok)

	stale, err := store.Returns.GetForUpdate(ctx, ret.ID)
	require.NoError(t, err)

	// Another request receives the goods after the stale copy was read.
	claimed, err := store.Returns.ClaimStockRestore(ctx, ret.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	fresh, err := store.Returns.GetByID(ctx, ret.ID)
	require.NoError(t, err)
	fresh.Status = models.ReturnStatusItemReceived
	ok, err = store.Returns.Save(ctx, fresh, models.ReturnStatusApproved)
	require.NoError(t, err)
	require.True(t, ok)

	stale.TrackingNumber = "TRK-1"
	ok, err = store.Returns.Save(ctx, stale, models.ReturnStatusApproved)
	require.NoError(t, err)
	assert.False(t, ok)

	// Save leaves the stock flag alone even when the copy disagrees.
	stale.Status = models.ReturnStatusRefundProcessing
	stale.StockRestored = false
	ok, err = store.Returns.Save(ctx, stale, models.ReturnStatusItemReceived)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := store.Returns.GetByID(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusRefundProcessing, loaded.Status)
	assert.True(t, loaded.StockRestored)
	assert.Equal(t, "TRK-1", loaded.TrackingNumber)
}
