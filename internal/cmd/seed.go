package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate and load demo users and products",
	Long: `Seed creates the demo accounts seller, customer and staff (password "password123")
and, when the seller has no products yet, a few demo products.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx := background(cmd)
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		return seedDemo(ctx, db, cfg.JWT.Secret, logger)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

const demoPassword = "password123"

type demoUser struct {
	username string
	role     models.Role
	staff    bool
}

var demoUsers = []demoUser{
	{username: "seller", role: models.RoleSeller},
	{username: "customer", role: models.RoleCustomer},
	{username: "staff", role: models.RoleCustomer, staff: true},
}

var demoProducts = []services.ProductInput{
	{Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("1200.00"), Stock: 10},
	{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("75.00"), Stock: 25},
	{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.RequireFromString("25.00"), Stock: 50},
}

// seedDemo is idempotent: existing users are kept and products are only added to a seller
// without any.
func seedDemo(ctx context.Context, db *gorm.DB, jwtSecret string, logger *slog.Logger) error {
	store := repositories.NewStore(db)
	auth := services.NewAuthService(store.Users, jwtSecret, 0)

	users := make(map[string]*models.User, len(demoUsers))
	for _, du := range demoUsers {
		user := &models.User{
			Username: du.username,
			Email:    du.username + "@example.com",
			Password: demoPassword,
			Role:     du.role,
		}
		err := auth.RegisterUser(ctx, user)
		switch {
		case err == nil:
			logger.Info("seeded user", "username", user.Username, "role", user.Role)
		case errors.Is(err, services.ErrConflict):
			if user, err = store.Users.GetByUsername(ctx, du.username); err != nil {
				return err
			}
		default:
			return fmt.Errorf("failed to seed user %s: %w", du.username, err)
		}
		if du.staff && !user.IsStaff {
			if err := db.WithContext(ctx).Model(user).Update("is_staff", true).Error; err != nil {
				return fmt.Errorf("failed to grant staff to %s: %w", du.username, err)
			}
		}
		users[du.username] = user
	}

	seller := services.PrincipalOf(users["seller"])
	catalog := services.NewProductService(store, nil, events.NopPublisher{})
	existing, err := catalog.SellerProducts(ctx, seller)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("demo products already present", "count", len(existing))
		return nil
	}
	for _, in := range demoProducts {
		product, err := catalog.CreateProduct(ctx, seller, in, nil)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", in.Name, err)
		}
		logger.Info("seeded product", "name", product.Name, "id", product.ID)
	}
	return nil
}
