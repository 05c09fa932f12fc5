package database_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/config"
	"github.com/vesseleye/internal/database"
	"github.com/vesseleye/internal/database/dbtest"
	"github.com/vesseleye/internal/models"
	"gorm.io/gorm"
)

func TestMigrate_SeedsDefaultReportType(t *testing.T) {
	db := dbtest.New(t)

	var rt models.ReportType
	require.NoError(t, db.First(&rt, 1).Error)
	assert.Equal(t, "default", rt.Name)

	// Running migrations twice is harmless.
	require.NoError(t, database.Migrate(db))
}

func TestMigrate_ReopenedFileDatabase(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "fleet.db")}

	for boot := 1; boot <= 3; boot++ {
		db, err := database.Open(cfg)
		require.NoError(t, err)
		require.NoError(t, database.Migrate(db), "boot %d", boot)
		require.NoError(t, database.Migrate(db), "boot %d, second migrate", boot)
		assert.True(t, db.Migrator().HasIndex(&models.Alert{}, "idx_alert_history_active"))

		if boot == 1 {
			now := time.Now().UTC()
			a := models.Alert{VesselID: 1, RuleID: 2, AlertText: "a", FirstTriggeredAt: now, LastTriggeredAt: now, Status: models.AlertStatusActive}
			require.NoError(t, db.Create(&a).Error)
		} else {
			// The partial index still holds after the schema is re-read.
			now := time.Now().UTC()
			dup := models.Alert{VesselID: 1, RuleID: 2, AlertText: "b", FirstTriggeredAt: now, LastTriggeredAt: now, Status: models.AlertStatusActive}
			assert.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)
		}
		require.NoError(t, database.Close(db))
	}
}

func TestActiveAlertIndex_AllowsOnlyOneActivePerRule(t *testing.T) {
	db := dbtest.New(t)
	now := time.Now().UTC()

	first := models.Alert{VesselID: 1, RuleID: 7, AlertText: "a", FirstTriggeredAt: now, LastTriggeredAt: now, RepeatCount: 1, Status: models.AlertStatusActive}
	require.NoError(t, db.Create(&first).Error)

	dup := first
	dup.ID = 0
	err := db.Create(&dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Once resolved, a fresh active alert may be opened.
	require.NoError(t, db.Model(&first).Update("status", models.AlertStatusResolved).Error)
	again := first
	again.ID = 0
	again.Status = models.AlertStatusActive
	require.NoError(t, db.Create(&again).Error)
}

func TestTelemetryUniqueOnVesselAndTimestamp(t *testing.T) {
	db := dbtest.New(t)
	v := dbtest.Vessel(t, db, "300234010000001", "Aurora")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	r := models.TelemetryReport{VesselID: v.ID, ReportTypeID: 1, Timestamp: ts, ReceivedAt: ts}
	require.NoError(t, db.Create(&r).Error)

	dup := models.TelemetryReport{VesselID: v.ID, ReportTypeID: 1, Timestamp: ts, ReceivedAt: ts}
	assert.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)
}

func TestImportFixtureFile(t *testing.T) {
	db := dbtest.New(t)
	path := filepath.Join(t.TempDir(), "fixture.json")
	fixture := `{
  "vessels": [{"imei": "300234010000001", "name": "Aurora", "report_type_id": 1, "at_sea": true}],
  "rules": [{
    "vessel_imei": "300234010000001",
    "name": "Wind Speed High", "field_name": "wind_speed", "operator": ">", "threshold": 20,
    "enabled": true, "consecutivity_enabled": true, "consecutivity_count": 3
  }],
  "geofences": [{
    "vessel_imei": "300234010000001", "geofence_type": "keep_out_point",
    "geometry": {"coordinates": [50.0, -1.0], "radius_meters": 500, "name": "Wreck"}
  }],
  "users": [{"username": "ops", "password": "s3cret", "role": "supervisor"}]
}`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	require.NoError(t, database.ImportFixtureFile(db, path))
	// Re-import does not duplicate the vessel or user.
	require.NoError(t, database.ImportFixtureFile(db, path))

	var vessels []models.Vessel
	require.NoError(t, db.Find(&vessels).Error)
	require.Len(t, vessels, 1)

	var rule models.AlertRule
	require.NoError(t, db.First(&rule).Error)
	assert.Equal(t, vessels[0].ID, rule.VesselID)
	assert.Equal(t, models.OperatorGT, rule.Operator)
	assert.Equal(t, 3, rule.ConsecutivityCount)

	var fence models.Geofence
	require.NoError(t, db.First(&fence).Error)
	assert.Equal(t, models.GeofenceKeepOutPoint, fence.Type)

	var user models.User
	require.NoError(t, db.Where("username = ?", "ops").First(&user).Error)
	assert.True(t, user.CheckPassword("s3cret"))
	assert.True(t, user.HasPermission(models.ActionHandleAlerts))
	assert.False(t, user.HasPermission(models.ActionManageUsers))

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 1, users)
}
