package models

import (
	"time"

	"gorm.io/gorm"
)

type Operator string

const (
	OperatorGT     Operator = ">"
	OperatorLT     Operator = "<"
	OperatorGTE    Operator = ">="
	OperatorLTE    Operator = "<="
	OperatorEQ     Operator = "=="
	OperatorAbsGTE Operator = "||>="
)

// AlertRule is a threshold rule bound to one vessel and report type.
type AlertRule struct {
	gorm.Model
	VesselID             uint       `gorm:"not null;index:idx_rules_vessel_type,priority:1" json:"vessel_id"`
	ReportTypeID         uint       `gorm:"not null;index:idx_rules_vessel_type,priority:2" json:"report_type_id"`
	Name                 string     `gorm:"not null" json:"name"`
	FieldName            string     `gorm:"not null" json:"field_name"`
	Operator             Operator   `gorm:"not null" json:"operator"`
	Threshold            float64    `gorm:"not null" json:"threshold"`
	Enabled              bool       `gorm:"not null;index" json:"enabled"`
	IsMuted              bool       `gorm:"not null" json:"is_muted"`
	UnmuteAt             *time.Time `json:"unmute_at,omitempty"`
	ConsecutivityEnabled bool       `gorm:"not null" json:"consecutivity_enabled"`
	ConsecutivityCount   int        `gorm:"not null" json:"consecutivity_count"`
	TimeEnabled          bool       `gorm:"not null" json:"time_enabled"`
	TimeWindowMinutes    int        `gorm:"not null" json:"time_window_mins"`
	TimeCount            int        `gorm:"not null" json:"time_count"`
	LastTriggered        *time.Time `json:"last_triggered,omitempty"`
	TriggerCount         int        `gorm:"not null" json:"trigger_count"`
}

// MutedAt reports whether the rule is suppressed at the given instant. A
// mute without an expiry lasts until it is cleared.
func (r *AlertRule) MutedAt(now time.Time) bool {
	if !r.IsMuted {
		return false
	}
	if r.UnmuteAt == nil {
		return true
	}
	return now.Before(*r.UnmuteAt)
}

// RuleEvaluation records one comparison of a rule against a report, whether
// or not it held. The trailing history drives consecutivity and time-window
// escalation.
type RuleEvaluation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RuleID      uint      `gorm:"not null;index:idx_evaluations_rule_time,priority:1" json:"rule_id"`
	ReportID    uint      `gorm:"not null;index" json:"report_id"`
	Triggered   bool      `gorm:"not null" json:"triggered"`
	FieldValue  float64   `json:"field_value"`
	EvaluatedAt time.Time `gorm:"not null;index:idx_evaluations_rule_time,priority:2" json:"evaluated_at"`
}

func (RuleEvaluation) TableName() string {
	return "alert_evaluations"
}
