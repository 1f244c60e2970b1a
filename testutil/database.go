package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database that is closed when
// the test ends. It holds a single connection, so code under test must use
// the transaction handle inside a transaction.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// NewConcurrentTestDB opens a migrated file-backed SQLite database with
// several connections, for tests that need callers to really run in
// parallel. Transactions take the write lock when they begin and wait for it
// instead of failing with SQLITE_BUSY.
func NewConcurrentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "procurement.db")
	dsn := "file:" + path + "?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with the given role. The email is derived from
// the name.
func CreateUser(t *testing.T, db *gorm.DB, name string, role workflow.Role) *models.User {
	t.Helper()

	user := models.User{
		Auth0ID: "auth0|" + name,
		Name:    name,
		Email:   fmt.Sprintf("%s@example.com", name),
		Role:    role,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// CreateProject inserts a project.
func CreateProject(t *testing.T, db *gorm.DB, name string) *models.Project {
	t.Helper()

	project := models.Project{Name: name}
	require.NoError(t, db.Create(&project).Error)
	return &project
}

// CreateCategory inserts a budget category.
func CreateCategory(t *testing.T, db *gorm.DB, name string, budget int64) *models.BudgetCategory {
	t.Helper()

	category := models.BudgetCategory{Name: name, Budget: decimal.NewFromInt(budget)}
	require.NoError(t, db.Create(&category).Error)
	return &category
}
