package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/metrics"
	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAlertNotFound     = errors.New("alert not found")
	ErrInvalidTransition = errors.New("invalid alert status transition")
)

// AlertManager owns the alert-history state machine. Only the manager
// creates or bumps active alerts; acknowledge and resolve are operator
// actions.
type AlertManager struct {
	db       *gorm.DB
	notifier notify.Notifier
	pager    Pager
	clock    clock.Clock
	logger   *zap.Logger
}

type ManagerOption func(*AlertManager)

func WithNotifier(n notify.Notifier) ManagerOption {
	return func(m *AlertManager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithPager(p Pager) ManagerOption {
	return func(m *AlertManager) {
		if p != nil {
			m.pager = p
		}
	}
}

func WithClock(clk clock.Clock) ManagerOption {
	return func(m *AlertManager) {
		if clk != nil {
			m.clock = clk
		}
	}
}

func NewAlertManager(db *gorm.DB, logger *zap.Logger, opts ...ManagerOption) *AlertManager {
	m := &AlertManager{
		db:       db,
		notifier: notify.Nop{},
		pager:    NoopPager{},
		clock:    clock.System{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Escalate opens a new active alert for (vessel, rule) or, when one is
// already active, bumps its repeat count. opened reports which happened.
func (m *AlertManager) Escalate(ctx context.Context, vessel *models.Vessel, rule *models.AlertRule, text string) (alert *models.Alert, opened bool, err error) {
	now := m.clock.Now().UTC()

	alert, opened, err = m.openOrBump(ctx, vessel.ID, rule.ID, text, now)
	if err != nil {
		return nil, false, err
	}

	if err := m.db.WithContext(ctx).Model(&models.AlertRule{}).Where("id = ?", rule.ID).
		Updates(map[string]interface{}{
			"last_triggered": now,
			"trigger_count":  gorm.Expr("trigger_count + 1"),
		}).Error; err != nil {
		m.logger.Warn("failed to update rule trigger stats", zap.Uint("rule_id", rule.ID), zap.Error(err))
	}

	kind := notify.KindAlertEscalated
	if opened {
		kind = notify.KindAlertOpened
		metrics.Alerts.WithLabelValues("opened").Inc()
		if err := m.db.WithContext(ctx).Model(&models.Vessel{}).Where("id = ?", vessel.ID).
			Update("emergency_alert_active", true).Error; err != nil {
			m.logger.Warn("failed to set emergency flag", zap.Uint("vessel_id", vessel.ID), zap.Error(err))
		}
		m.page(ctx, alert, vessel)
		m.logger.Info("alert opened",
			zap.Uint("alert_id", alert.ID),
			zap.Uint("vessel_id", vessel.ID),
			zap.Uint("rule_id", rule.ID),
			zap.String("text", text))
	} else {
		metrics.Alerts.WithLabelValues("escalated").Inc()
		m.logger.Info("alert repeated",
			zap.Uint("alert_id", alert.ID),
			zap.Int("repeat_count", alert.RepeatCount))
	}

	if err := m.notifier.Notify(ctx, notify.Event{
		Kind:        kind,
		VesselID:    vessel.ID,
		VesselName:  vessel.Name,
		AlertID:     alert.ID,
		RuleID:      rule.ID,
		Text:        alert.AlertText,
		RepeatCount: alert.RepeatCount,
		Time:        now,
	}); err != nil {
		m.logger.Warn("alert notification failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
	}
	return alert, opened, nil
}

// openOrBump bumps the active alert if there is one and otherwise inserts
// a new one. The partial unique index on active alerts turns a lost insert
// race into ErrDuplicatedKey, after which the winner's row is bumped.
func (m *AlertManager) openOrBump(ctx context.Context, vesselID, ruleID uint, text string, now time.Time) (*models.Alert, bool, error) {
	db := m.db.WithContext(ctx)
	for attempt := 0; attempt < 2; attempt++ {
		res := db.Model(&models.Alert{}).
			Where("vessel_id = ? AND rule_id = ? AND status = ?", vesselID, ruleID, models.AlertStatusActive).
			Updates(map[string]interface{}{
				"repeat_count":      gorm.Expr("repeat_count + 1"),
				"last_triggered_at": now,
			})
		if res.Error != nil {
			return nil, false, fmt.Errorf("failed to bump active alert: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			var existing models.Alert
			if err := db.Where("vessel_id = ? AND rule_id = ? AND status = ?", vesselID, ruleID, models.AlertStatusActive).
				First(&existing).Error; err != nil {
				return nil, false, fmt.Errorf("failed to reload active alert: %w", err)
			}
			return &existing, false, nil
		}

		alert := &models.Alert{
			VesselID:         vesselID,
			RuleID:           ruleID,
			AlertText:        text,
			FirstTriggeredAt: now,
			LastTriggeredAt:  now,
			RepeatCount:      0,
			Status:           models.AlertStatusActive,
		}
		err := db.Create(alert).Error
		if err == nil {
			return alert, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, fmt.Errorf("failed to create alert: %w", err)
		}
	}
	return nil, false, fmt.Errorf("could not open or bump alert for vessel %d rule %d", vesselID, ruleID)
}

func (m *AlertManager) page(ctx context.Context, alert *models.Alert, vessel *models.Vessel) {
	sent, err := m.pager.Page(ctx, alert, vessel)
	if err != nil {
		m.logger.Warn("paging failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
		return
	}
	if !sent {
		return
	}
	if err := m.db.WithContext(ctx).Model(alert).Update("paging_sent", true).Error; err != nil {
		m.logger.Warn("failed to record paging", zap.Uint("alert_id", alert.ID), zap.Error(err))
		return
	}
	alert.PagingSent = true
}

func (m *AlertManager) GetAlert(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := m.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrAlertNotFound, id)
		}
		return nil, fmt.Errorf("failed to find alert: %w", err)
	}
	return &alert, nil
}

// AcknowledgeAlert moves an active alert to acknowledged. Acknowledging an
// already acknowledged alert returns it unchanged.
func (m *AlertManager) AcknowledgeAlert(ctx context.Context, id uint, actor string) (*models.Alert, error) {
	var out *models.Alert
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alert models.Alert
		if err := tx.First(&alert, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrAlertNotFound, id)
			}
			return fmt.Errorf("failed to find alert: %w", err)
		}

		switch alert.Status {
		case models.AlertStatusAcknowledged:
			out = &alert
			return nil
		case models.AlertStatusResolved:
			return fmt.Errorf("%w: alert %d is resolved", ErrInvalidTransition, id)
		}

		now := m.clock.Now().UTC()
		alert.Status = models.AlertStatusAcknowledged
		alert.AcknowledgedBy = actor
		alert.AcknowledgedAt = &now
		if err := tx.Save(&alert).Error; err != nil {
			return fmt.Errorf("failed to update alert: %w", err)
		}
		out = &alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Alerts.WithLabelValues("acknowledged").Inc()
	return out, nil
}

// ResolveAlert closes an active or acknowledged alert. When the vessel has
// no unresolved alerts left its emergency flag is cleared.
func (m *AlertManager) ResolveAlert(ctx context.Context, id uint, actor string) (*models.Alert, error) {
	var out *models.Alert
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alert models.Alert
		if err := tx.First(&alert, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrAlertNotFound, id)
			}
			return fmt.Errorf("failed to find alert: %w", err)
		}
		if alert.Status == models.AlertStatusResolved {
			return fmt.Errorf("%w: alert %d is already resolved", ErrInvalidTransition, id)
		}

		now := m.clock.Now().UTC()
		alert.Status = models.AlertStatusResolved
		alert.ResolvedBy = actor
		alert.ResolvedAt = &now
		if err := tx.Save(&alert).Error; err != nil {
			return fmt.Errorf("failed to update alert: %w", err)
		}

		var open int64
		if err := tx.Model(&models.Alert{}).
			Where("vessel_id = ? AND status <> ?", alert.VesselID, models.AlertStatusResolved).
			Count(&open).Error; err != nil {
			return fmt.Errorf("failed to count open alerts: %w", err)
		}
		if open == 0 {
			if err := tx.Model(&models.Vessel{}).Where("id = ?", alert.VesselID).
				Update("emergency_alert_active", false).Error; err != nil {
				return fmt.Errorf("failed to clear emergency flag: %w", err)
			}
		}
		out = &alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Alerts.WithLabelValues("resolved").Inc()
	return out, nil
}

type AlertFilter struct {
	VesselID uint
	RuleID   uint
	Status   models.AlertStatus
	Since    *time.Time
	Limit    int
}

// ListAlerts returns alert history newest first. Limit defaults to 100; a
// negative limit returns everything.
func (m *AlertManager) ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	q := m.db.WithContext(ctx).Model(&models.Alert{})
	if f.VesselID != 0 {
		q = q.Where("vessel_id = ?", f.VesselID)
	}
	if f.RuleID != 0 {
		q = q.Where("rule_id = ?", f.RuleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Since != nil {
		q = q.Where("first_triggered_at >= ?", f.Since.UTC())
	}
	limit := f.Limit
	if limit == 0 {
		limit = 100
	}

	var alerts []models.Alert
	if err := q.Order("first_triggered_at DESC, id DESC").Limit(limit).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// ActiveAlerts lists active alerts, optionally for a single vessel.
func (m *AlertManager) ActiveAlerts(ctx context.Context, vesselID uint) ([]models.Alert, error) {
	return m.ListAlerts(ctx, AlertFilter{VesselID: vesselID, Status: models.AlertStatusActive, Limit: -1})
}

type AlertStats struct {
	Total        int64 `json:"total"`
	Active       int64 `json:"active"`
	Acknowledged int64 `json:"acknowledged"`
	Resolved     int64 `json:"resolved"`
}

func (m *AlertManager) Stats(ctx context.Context, vesselID uint) (*AlertStats, error) {
	type row struct {
		Status models.AlertStatus
		N      int64
	}
	q := m.db.WithContext(ctx).Model(&models.Alert{})
	if vesselID != 0 {
		q = q.Where("vessel_id = ?", vesselID)
	}
	var rows []row
	if err := q.Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	stats := &AlertStats{}
	for _, r := range rows {
		stats.Total += r.N
		switch r.Status {
		case models.AlertStatusActive:
			stats.Active = r.N
		case models.AlertStatusAcknowledged:
			stats.Acknowledged = r.N
		case models.AlertStatusResolved:
			stats.Resolved = r.N
		}
	}
	return stats, nil
}
