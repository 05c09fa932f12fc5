package models

import (
	"time"

	"gorm.io/datatypes"
)

// TelemetryReport is one persisted position/measurement report. Rows are
// append-only; (vessel_id, timestamp) is unique so a report seen twice is
// stored once.
type TelemetryReport struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	VesselID     uint              `gorm:"not null;uniqueIndex:idx_telemetry_vessel_ts,priority:1" json:"vessel_id"`
	ReportTypeID uint              `gorm:"not null;index" json:"report_type_id"`
	Timestamp    time.Time         `gorm:"not null;uniqueIndex:idx_telemetry_vessel_ts,priority:2" json:"timestamp"`
	ReceivedAt   time.Time         `gorm:"not null" json:"received_at"`
	Latitude     *float64          `json:"latitude,omitempty"`
	Longitude    *float64          `json:"longitude,omitempty"`
	Fields       datatypes.JSONMap `gorm:"column:data" json:"data"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (TelemetryReport) TableName() string {
	return "telemetry"
}

// Position returns the report position when both coordinates are present.
func (r *TelemetryReport) Position() (Position, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return Position{}, false
	}
	return Position{Latitude: *r.Latitude, Longitude: *r.Longitude}, true
}
