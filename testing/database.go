// Package testing provides test utilities and database setup for testing the outreach orchestrator
package testing

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/amirphl/outreach-orchestrator/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// TestDB represents a test database instance
type TestDB struct {
	DB   *gorm.DB
	Name string
}

// SetupTestDB opens a fresh in-memory SQLite database and migrates every model.
// A single connection keeps the shared-cache database alive and serializes writers,
// so transactions behave like row locks for concurrency tests.
func SetupTestDB() (*TestDB, error) {
	name := fmt.Sprintf("outreach_test_%d", dbSeq.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database %s: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate test database %s: %w", name, err)
	}

	return &TestDB{DB: db, Name: name}, nil
}

// TeardownTestDB closes the connection, which drops the in-memory database
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewTestDB sets up a database bound to the lifetime of t
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()
	tdb, err := SetupTestDB()
	if err != nil {
		t.Fatalf("setup test database: %v", err)
	}
	t.Cleanup(func() {
		if err := tdb.TeardownTestDB(); err != nil {
			t.Logf("Warning: failed to cleanup test database: %v", err)
		}
	})
	return tdb
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
