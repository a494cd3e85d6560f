package cmd

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logging"
	"storefront/internal/models"
)

func TestSeedDemo_Idempotent(t *testing.T) {
	db, err := database.Open(t.Context(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	logger := logging.NewWithWriter(io.Discard, "error")

	require.NoError(t, seedDemo(t.Context(), db, "secret", logger))
	require.NoError(t, seedDemo(t.Context(), db, "secret", logger))

	var users []models.User
	require.NoError(t, db.Order("username").Find(&users).Error)
	require.Len(t, users, 3)
	assert.Equal(t, "customer", users[0].Username)
	assert.Equal(t, models.RoleSeller, users[1].Role)
	assert.True(t, users[2].IsStaff)

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	assert.Equal(t, int64(len(demoProducts)), count)
}
