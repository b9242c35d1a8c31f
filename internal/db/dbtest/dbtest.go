// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/db"
)

// New returns an in-memory sqlite database that is closed when t finishes
func New(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := db.InitDB(db.Config{
		Driver:  db.DriverSQLite,
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpen: 1,
		MaxIdle: 1,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}
