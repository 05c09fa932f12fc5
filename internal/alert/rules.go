package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vesseleye/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrRuleNotFound = errors.New("alert rule not found")

// pendingBatchSize bounds one EvaluatePending run.
const pendingBatchSize = 100

// RuleManager is the read side of rule configuration plus the operational
// actions on rules: muting and batch re-evaluation.
type RuleManager struct {
	evaluator *RuleEvaluator
	db        *gorm.DB
	logger    *zap.Logger
}

func NewRuleManager(evaluator *RuleEvaluator, db *gorm.DB, logger *zap.Logger) *RuleManager {
	return &RuleManager{
		evaluator: evaluator,
		db:        db,
		logger:    logger,
	}
}

type RuleFilter struct {
	VesselID uint
	Enabled  *bool
	Muted    *bool
}

func (rm *RuleManager) ListRules(ctx context.Context, f RuleFilter) ([]models.AlertRule, error) {
	query := rm.db.WithContext(ctx)
	if f.VesselID != 0 {
		query = query.Where("vessel_id = ?", f.VesselID)
	}
	if f.Enabled != nil {
		query = query.Where("enabled = ?", *f.Enabled)
	}
	if f.Muted != nil {
		query = query.Where("is_muted = ?", *f.Muted)
	}

	var rules []models.AlertRule
	if err := query.Order("created_at DESC, id DESC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (rm *RuleManager) GetRule(ctx context.Context, id uint) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := rm.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
		}
		return nil, fmt.Errorf("failed to find rule: %w", err)
	}
	return &rule, nil
}

// SetMute mutes or unmutes a rule. until is ignored when unmuting; a nil
// until mutes indefinitely.
func (rm *RuleManager) SetMute(ctx context.Context, id uint, muted bool, until *time.Time) (*models.AlertRule, error) {
	rule, err := rm.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !muted {
		until = nil
	}
	if err := rm.db.WithContext(ctx).Model(rule).Updates(map[string]interface{}{
		"is_muted":  muted,
		"unmute_at": until,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update rule mute: %w", err)
	}
	rule.IsMuted = muted
	rule.UnmuteAt = until
	return rule, nil
}

// ListEvaluations returns a rule's evaluation history, newest first.
func (rm *RuleManager) ListEvaluations(ctx context.Context, ruleID uint, limit int) ([]models.RuleEvaluation, error) {
	if limit <= 0 {
		limit = 100
	}
	var evals []models.RuleEvaluation
	if err := rm.db.WithContext(ctx).Where("rule_id = ?", ruleID).
		Order("evaluated_at DESC, id DESC").Limit(limit).Find(&evals).Error; err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return evals, nil
}

type BatchResult struct {
	EntriesEvaluated     int                 `json:"entries_evaluated"`
	TotalAlertsTriggered int                 `json:"total_alerts_triggered"`
	Failed               int                 `json:"failed"`
	Results              []*EvaluationResult `json:"results"`
}

// EvaluatePending evaluates the latest reports that have no evaluation
// records yet, oldest first so trailing history builds up in order.
// vesselID 0 covers the whole fleet.
func (rm *RuleManager) EvaluatePending(ctx context.Context, vesselID uint) (*BatchResult, error) {
	query := rm.db.WithContext(ctx).Model(&models.TelemetryReport{}).
		Where("NOT EXISTS (SELECT 1 FROM alert_evaluations ae WHERE ae.report_id = telemetry.id)")
	if vesselID != 0 {
		query = query.Where("vessel_id = ?", vesselID)
	}

	var ids []uint
	if err := query.Order("timestamp DESC").Limit(pendingBatchSize).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to find pending reports: %w", err)
	}

	result := &BatchResult{Results: make([]*EvaluationResult, 0, len(ids))}
	for i := len(ids) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := rm.evaluator.EvaluateReport(ctx, ids[i])
		if err != nil {
			rm.logger.Warn("pending evaluation failed", zap.Uint("report_id", ids[i]), zap.Error(err))
			result.Failed++
			continue
		}
		result.EntriesEvaluated++
		result.TotalAlertsTriggered += res.AlertsTriggered
		result.Results = append(result.Results, res)
	}
	return result, nil
}
