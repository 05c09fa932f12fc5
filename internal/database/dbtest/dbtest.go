// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/config"
	"github.com/vesseleye/internal/database"
	"github.com/vesseleye/internal/models"
	"gorm.io/gorm"
)

// New returns a migrated sqlite database in a temp directory.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// Vessel registers a vessel with the default report type.
func Vessel(t testing.TB, db *gorm.DB, imei, name string) *models.Vessel {
	t.Helper()
	v := &models.Vessel{IMEI: imei, Name: name, ReportTypeID: 1, AtSea: true}
	require.NoError(t, db.Create(v).Error)
	return v
}
