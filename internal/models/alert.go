package models

import (
	"time"

	"gorm.io/gorm"
)

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert is an alert-history entry. At most one active alert exists per
// (vessel, rule); repeated escalations bump RepeatCount on that row.
type Alert struct {
	gorm.Model
	VesselID         uint        `gorm:"not null;index;uniqueIndex:idx_alert_history_active,priority:1,where:status = 'active' AND deleted_at IS NULL" json:"vessel_id"`
	RuleID           uint        `gorm:"not null;index;uniqueIndex:idx_alert_history_active,priority:2,where:status = 'active' AND deleted_at IS NULL" json:"rule_id"`
	AlertText        string      `gorm:"not null" json:"alert_text"`
	FirstTriggeredAt time.Time   `gorm:"not null;index" json:"first_triggered_at"`
	LastTriggeredAt  time.Time   `gorm:"not null" json:"last_triggered_at"`
	RepeatCount      int         `gorm:"not null" json:"repeat_count"`
	Status           AlertStatus `gorm:"not null;index" json:"status"`
	AcknowledgedBy   string      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt   *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedBy       string      `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty"`
	PagingSent       bool        `gorm:"not null" json:"paging_sent"`
}

func (Alert) TableName() string {
	return "alert_history"
}
