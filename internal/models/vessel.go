package models

import (
	"time"

	"gorm.io/gorm"
)

// Vessel is a tracked remote device. Vessels are registered by the
// administration side; the monitoring engine only updates position,
// check-in time and the emergency flag.
type Vessel struct {
	gorm.Model
	IMEI                 string     `gorm:"uniqueIndex;not null" json:"imei"`
	Name                 string     `gorm:"not null" json:"name"`
	ReportTypeID         uint       `gorm:"not null;default:1" json:"report_type_id"`
	AtSea                bool       `gorm:"index;not null" json:"at_sea"`
	LatestLatitude       *float64   `json:"latest_latitude,omitempty"`
	LatestLongitude      *float64   `json:"latest_longitude,omitempty"`
	LatestPositionAt     *time.Time `json:"latest_position_at,omitempty"`
	LastCheckInAt        *time.Time `json:"last_check_in_at,omitempty"`
	EmergencyAlertActive bool       `gorm:"not null" json:"emergency_alert_active"`
}

// LatestPosition returns the last known position, if any.
func (v *Vessel) LatestPosition() (Position, bool) {
	if v.LatestLatitude == nil || v.LatestLongitude == nil {
		return Position{}, false
	}
	return Position{Latitude: *v.LatestLatitude, Longitude: *v.LatestLongitude}, true
}

// ReportType is the schema family a telemetry payload conforms to.
type ReportType struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// Position is a WGS84 latitude/longitude pair in degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
