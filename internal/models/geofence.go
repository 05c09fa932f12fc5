package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GeofenceType string

const (
	GeofenceKeepIn       GeofenceType = "keep_in"
	GeofenceKeepOutZone  GeofenceType = "keep_out_zone"
	GeofenceKeepOutPoint GeofenceType = "keep_out_point"
)

// Geofence is a spatial rule for one vessel. Geometry holds a GeoJSON-like
// document: a polygon ring for the zone types, a center point plus
// radius_meters for keep_out_point. Coordinates are [lat, lon].
type Geofence struct {
	gorm.Model
	VesselID uint           `gorm:"not null;index" json:"vessel_id"`
	Type     GeofenceType   `gorm:"column:geofence_type;not null" json:"geofence_type"`
	Geometry datatypes.JSON `gorm:"not null" json:"geometry"`
	IsMuted  bool           `gorm:"not null" json:"is_muted"`
}
