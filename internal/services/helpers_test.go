package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

// newTestStore opens a private in-memory SQLite database with the schema migrated.
func newTestStore(t *testing.T) *repositories.Store {
	t.Helper()
	db, err := database.Open(context.Background(), config.DatabaseConfig{
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
	return repositories.NewStore(db)
}

func createUser(t *testing.T, store *repositories.Store, username string, role models.Role) services.Principal {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		Role:     role,
	}
	require.NoError(t, store.Users.Create(context.Background(), u))
	return services.PrincipalOf(u)
}

func createProduct(t *testing.T, store *repositories.Store, seller services.Principal, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		SellerID: seller.UserID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	require.NoError(t, store.Products.Create(context.Background(), p))
	return p
}

func stockOf(t *testing.T, store *repositories.Store, productID string) int {
	t.Helper()
	var p models.Product
	require.NoError(t, store.DB().Unscoped().First(&p, "id = ?", productID).Error)
	return p.Stock
}

func countRows(t *testing.T, store *repositories.Store, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.DB().Model(model).Count(&n).Error)
	return n
}

// interleave runs fn once, right before the first "create" or "update" statement against table
// executes, on that statement's connection. fn stands in for another request committing in
// between a read and the write that depends on it. The returned flag reports whether fn ran.
func interleave(t *testing.T, store *repositories.Store, op, table string, fn func(tx *gorm.DB)) *bool {
	t.Helper()
	fired := new(bool)
	cb := func(db *gorm.DB) {
		if *fired || db.Statement.Table != table {
			return
		}
		*fired = true
		fn(db.Session(&gorm.Session{NewDB: true}))
	}

	var err error
	switch op {
	case "create":
		err = store.DB().Callback().Create().Before("gorm:create").Register("test:interleave", cb)
	case "update":
		err = store.DB().Callback().Update().Before("gorm:update").Register("test:interleave", cb)
	default:
		t.Fatalf("unknown operation %q", op)
	}
	require.NoError(t, err)
	return fired
}

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// shop bundles the services of one test database.
type shop struct {
	store     *repositories.Store
	events    *recordingPublisher
	products  *services.ProductService
	carts     *services.CartService
	orders    *services.OrderService
	returns   *services.ReturnService
	dashboard *services.DashboardService
	seller    services.Principal
	customer  services.Principal
}

func newShop(t *testing.T) *shop {
	t.Helper()
	store := newTestStore(t)
	pub := &recordingPublisher{}
	return &shop{
		store:     store,
		events:    pub,
		products:  services.NewProductService(store, nil, pub),
		carts:     services.NewCartService(store),
		orders:    services.NewOrderService(store, pub),
		returns:   services.NewReturnService(store, pub),
		dashboard: services.NewDashboardService(store),
		seller:    createUser(t, store, "seller", models.RoleSeller),
		customer:  createUser(t, store, "customer", models.RoleCustomer),
	}
}

// deliveredOrder checks out qty units of product for the customer and marks the order delivered.
func (s *shop) deliveredOrder(t *testing.T, product *models.Product, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, s.customer, product.ID, qty)
	require.NoError(t, err)
	order, err := s.orders.Checkout(ctx, s.customer, "1 Main St", "555-0100")
	require.NoError(t, err)
	_, err = s.orders.UpdateOrderStatus(ctx, s.seller, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	return order
}
