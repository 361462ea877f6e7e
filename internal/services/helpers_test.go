package services

import (
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/utils"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	utils.BcryptCost = bcrypt.MinCost
	utils.SetJWTSecret("services-test-secret")
	logger.SetOutput(io.Discard)
}

// setupTestDB opens a private in-memory database. A single connection keeps
// concurrent transactions strictly serialized.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := models.Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()

	hashed, err := utils.HashPassword("secret123")
	require.NoError(t, err)

	user := &models.User{
		Username: name,
		Email:    name + "@example.com",
		Password: hashed,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func identityOf(u *models.User) Identity {
	return Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func testSessionConfig() *config.SessionConfig {
	cfg := config.DefaultConfig().Session
	return &cfg
}
