package alert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/metrics"
	"github.com/vesseleye/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrReportNotFound = errors.New("telemetry report not found")

// Rule outcome statuses.
const (
	OutcomeEvaluated    = "evaluated"
	OutcomeMuted        = "muted"
	OutcomeFieldMissing = "field_missing"
	OutcomeError        = "error"
)

// RuleOutcome describes what happened to one rule for one report.
type RuleOutcome struct {
	RuleID        uint    `json:"rule_id"`
	RuleName      string  `json:"rule_name"`
	Status        string  `json:"status"`
	FieldKey      string  `json:"field_key,omitempty"`
	FieldValue    float64 `json:"field_value"`
	Triggered     bool    `json:"triggered"`
	Consecutivity bool    `json:"consecutivity_met"`
	TimeWindow    bool    `json:"time_window_met"`
	Escalated     bool    `json:"escalated"`
	AlertID       uint    `json:"alert_id,omitempty"`
	AlertOpened   bool    `json:"alert_opened"`
	Error         string  `json:"error,omitempty"`
}

type EvaluationResult struct {
	ReportID        uint          `json:"report_id"`
	VesselID        uint          `json:"vessel_id"`
	RulesEvaluated  int           `json:"rules_evaluated"`
	AlertsTriggered int           `json:"alerts_triggered"`
	Outcomes        []RuleOutcome `json:"outcomes"`
}

type EvaluatorOption func(*RuleEvaluator)

func WithFieldNameTransforms(transforms ...FieldNameTransform) EvaluatorOption {
	return func(e *RuleEvaluator) {
		if len(transforms) > 0 {
			e.transforms = transforms
		}
	}
}

// RuleEvaluator runs threshold rules against persisted telemetry reports.
// Evaluations for one vessel are serialized so escalation history reads
// and alert writes for that vessel never interleave.
type RuleEvaluator struct {
	db         *gorm.DB
	alerts     *AlertManager
	clock      clock.Clock
	logger     *zap.Logger
	transforms []FieldNameTransform

	// One mutex per vessel ever evaluated; never pruned, which is bounded
	// by fleet size.
	locksMu sync.Mutex
	locks   map[uint]*sync.Mutex
}

// NewRuleEvaluator shares the manager's clock.
func NewRuleEvaluator(db *gorm.DB, alerts *AlertManager, logger *zap.Logger, opts ...EvaluatorOption) *RuleEvaluator {
	e := &RuleEvaluator{
		db:         db,
		alerts:     alerts,
		clock:      alerts.clock,
		logger:     logger,
		transforms: DefaultFieldNameTransforms,
		locks:      make(map[uint]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *RuleEvaluator) lockVessel(vesselID uint) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[vesselID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[vesselID] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// EvaluateReport evaluates every enabled rule bound to the report's vessel
// and report type. A failure in one rule is recorded in its outcome and
// does not stop the others.
func (e *RuleEvaluator) EvaluateReport(ctx context.Context, reportID uint) (*EvaluationResult, error) {
	db := e.db.WithContext(ctx)

	var report models.TelemetryReport
	if err := db.First(&report, reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrReportNotFound, reportID)
		}
		return nil, fmt.Errorf("failed to load report %d: %w", reportID, err)
	}

	var vessel models.Vessel
	if err := db.First(&vessel, report.VesselID).Error; err != nil {
		return nil, fmt.Errorf("failed to load vessel %d: %w", report.VesselID, err)
	}

	unlock := e.lockVessel(vessel.ID)
	defer unlock()

	var rules []models.AlertRule
	if err := db.Where("vessel_id = ? AND report_type_id = ? AND enabled = ?", vessel.ID, report.ReportTypeID, true).
		Order("id").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	result := &EvaluationResult{ReportID: report.ID, VesselID: vessel.ID, Outcomes: make([]RuleOutcome, 0, len(rules))}
	for i := range rules {
		outcome := e.evaluateRule(ctx, &rules[i], &report, &vessel)
		if outcome.Status == OutcomeEvaluated {
			result.RulesEvaluated++
		}
		if outcome.Escalated {
			result.AlertsTriggered++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func (e *RuleEvaluator) evaluateRule(ctx context.Context, rule *models.AlertRule, report *models.TelemetryReport, vessel *models.Vessel) RuleOutcome {
	out := RuleOutcome{RuleID: rule.ID, RuleName: rule.Name}
	now := e.clock.Now().UTC()
	log := e.logger.With(zap.Uint("rule_id", rule.ID), zap.Uint("report_id", report.ID))

	if rule.MutedAt(now) {
		out.Status = OutcomeMuted
		return out
	}

	raw, key, ok := ExtractField(report.Fields, rule.FieldName, e.transforms)
	if !ok {
		log.Warn("field not found in report", zap.String("field", rule.FieldName), zap.String("rule", rule.Name))
		out.Status = OutcomeFieldMissing
		return out
	}
	out.FieldKey = key

	value := ToFloat(raw)
	triggered, err := Compare(value, rule.Threshold, rule.Operator)
	if err != nil {
		log.Error("rule has an unusable operator", zap.Error(err))
		out.Status = OutcomeError
		out.Error = err.Error()
		return out
	}

	stored := value
	if math.IsNaN(stored) || math.IsInf(stored, 0) {
		stored = 0
	}
	record := models.RuleEvaluation{
		RuleID:      rule.ID,
		ReportID:    report.ID,
		Triggered:   triggered,
		FieldValue:  stored,
		EvaluatedAt: now,
	}
	if err := e.db.WithContext(ctx).Create(&record).Error; err != nil {
		log.Error("failed to record evaluation", zap.Error(err))
		out.Status = OutcomeError
		out.Error = err.Error()
		return out
	}
	metrics.RuleEvaluations.WithLabelValues(strconv.FormatBool(triggered)).Inc()

	out.Status = OutcomeEvaluated
	out.FieldValue = stored
	out.Triggered = triggered
	if !triggered {
		return out
	}

	consec, timed, err := e.checkThresholds(ctx, rule, &record, now)
	if err != nil {
		log.Error("failed to read evaluation history", zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.Consecutivity, out.TimeWindow = consec, timed

	escalate := (rule.ConsecutivityEnabled && consec) || (rule.TimeEnabled && timed)
	if !escalate {
		return out
	}

	alert, opened, err := e.alerts.Escalate(ctx, vessel, rule, AlertText(rule, raw, consec, timed))
	if err != nil {
		log.Error("failed to escalate alert", zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.Escalated = true
	out.AlertID = alert.ID
	out.AlertOpened = opened
	return out
}

// checkThresholds decides both escalation mechanisms for a triggering
// evaluation. The current record is excluded from the history queries and
// counted once.
func (e *RuleEvaluator) checkThresholds(ctx context.Context, rule *models.AlertRule, current *models.RuleEvaluation, now time.Time) (consec, timed bool, err error) {
	db := e.db.WithContext(ctx)

	if rule.ConsecutivityEnabled {
		count := 1
		if rule.ConsecutivityCount > 1 {
			var prior []models.RuleEvaluation
			if err := db.Where("rule_id = ? AND id <> ?", rule.ID, current.ID).
				Order("evaluated_at DESC, id DESC").
				Limit(rule.ConsecutivityCount).
				Find(&prior).Error; err != nil {
				return false, false, fmt.Errorf("failed to load recent evaluations: %w", err)
			}
			for _, p := range prior {
				if !p.Triggered {
					break
				}
				count++
			}
		}
		consec = count >= rule.ConsecutivityCount
	}

	if rule.TimeEnabled {
		since := now.Add(-time.Duration(rule.TimeWindowMinutes) * time.Minute)
		var n int64
		if err := db.Model(&models.RuleEvaluation{}).
			Where("rule_id = ? AND triggered = ? AND evaluated_at >= ? AND id <> ?", rule.ID, true, since, current.ID).
			Count(&n).Error; err != nil {
			return false, false, fmt.Errorf("failed to count evaluations in window: %w", err)
		}
		timed = int(n)+1 >= rule.TimeCount
	}
	return consec, timed, nil
}

// AlertText renders "<name>: <value> <op> <threshold>" followed by the
// mechanisms that fired.
func AlertText(rule *models.AlertRule, value interface{}, consec, timed bool) string {
	var reasons []string
	if consec {
		reasons = append(reasons, "Consecutivity threshold met")
	}
	if timed {
		reasons = append(reasons, "Time threshold met")
	}
	text := fmt.Sprintf("%s: %s %s %s", rule.Name, formatValue(value), rule.Operator, formatValue(rule.Threshold))
	if len(reasons) > 0 {
		text += " (" + strings.Join(reasons, ", ") + ")"
	}
	return text
}
