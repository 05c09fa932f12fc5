package database

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vesseleye/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixture is the on-disk format accepted by ImportFixture. Vessels are
// matched by IMEI; rules and geofences reference vessels through
// VesselIMEI.
type Fixture struct {
	ReportTypes []models.ReportType `json:"report_types"`
	Vessels     []models.Vessel     `json:"vessels"`
	Rules       []struct {
		VesselIMEI string `json:"vessel_imei"`
		models.AlertRule
	} `json:"rules"`
	Geofences []struct {
		VesselIMEI string `json:"vessel_imei"`
		models.Geofence
	} `json:"geofences"`
	Users []struct {
		Username string      `json:"username"`
		Password string      `json:"password"`
		Role     models.Role `json:"role"`
		Email    string      `json:"email"`
	} `json:"users"`
}

// ImportFixtureFile loads a JSON fixture from disk.
func ImportFixtureFile(db *gorm.DB, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("failed to parse fixture: %w", err)
	}
	return ImportFixture(db, &fx)
}

// ImportFixture registers the fixture contents in one transaction. Existing
// vessels and users are left untouched.
func ImportFixture(db *gorm.DB, fx *Fixture) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, rt := range fx.ReportTypes {
			rt := rt
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rt).Error; err != nil {
				return fmt.Errorf("failed to import report type %q: %w", rt.Name, err)
			}
		}

		ids := make(map[string]uint, len(fx.Vessels))
		for _, v := range fx.Vessels {
			v := v
			v.ID = 0
			if err := tx.Where(models.Vessel{IMEI: v.IMEI}).Attrs(v).FirstOrCreate(&v).Error; err != nil {
				return fmt.Errorf("failed to import vessel %q: %w", v.IMEI, err)
			}
			ids[v.IMEI] = v.ID
		}

		lookup := func(imei string) (uint, error) {
			if id, ok := ids[imei]; ok {
				return id, nil
			}
			var v models.Vessel
			if err := tx.Where("imei = ?", imei).First(&v).Error; err != nil {
				return 0, fmt.Errorf("unknown vessel %q: %w", imei, err)
			}
			ids[imei] = v.ID
			return v.ID, nil
		}

		for _, r := range fx.Rules {
			rule := r.AlertRule
			rule.ID = 0
			vesselID, err := lookup(r.VesselIMEI)
			if err != nil {
				return fmt.Errorf("failed to import rule '%s': %w", rule.Name, err)
			}
			rule.VesselID = vesselID
			if rule.ReportTypeID == 0 {
				rule.ReportTypeID = 1
			}
			if err := tx.Create(&rule).Error; err != nil {
				return fmt.Errorf("failed to import rule '%s': %w", rule.Name, err)
			}
		}

		for _, g := range fx.Geofences {
			fence := g.Geofence
			fence.ID = 0
			vesselID, err := lookup(g.VesselIMEI)
			if err != nil {
				return fmt.Errorf("failed to import geofence: %w", err)
			}
			fence.VesselID = vesselID
			if err := tx.Create(&fence).Error; err != nil {
				return fmt.Errorf("failed to import geofence: %w", err)
			}
		}

		for _, u := range fx.Users {
			user := models.User{Username: u.Username, Role: u.Role, Email: u.Email, Active: true}
			if err := user.SetPassword(u.Password); err != nil {
				return fmt.Errorf("failed to hash password for %q: %w", u.Username, err)
			}
			if err := tx.Where(models.User{Username: u.Username}).Attrs(user).FirstOrCreate(&user).Error; err != nil {
				return fmt.Errorf("failed to import user %q: %w", u.Username, err)
			}
		}
		return nil
	})
}
