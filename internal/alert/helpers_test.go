package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/database/dbtest"
	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/notify"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	clock     *clock.Fake
	events    *recorder
	manager   *AlertManager
	evaluator *RuleEvaluator
	rules     *RuleManager
	vessel    *models.Vessel
	lastTS    time.Time
}

func newFixture(t *testing.T, opts ...ManagerOption) *fixture {
	t.Helper()
	db := dbtest.New(t)
	f := &fixture{
		db:     db,
		clock:  clock.NewFake(t0),
		events: &recorder{},
	}
	opts = append([]ManagerOption{WithClock(f.clock), WithNotifier(f.events)}, opts...)
	f.manager = NewAlertManager(db, zap.NewNop(), opts...)
	f.evaluator = NewRuleEvaluator(db, f.manager, zap.NewNop())
	f.rules = NewRuleManager(f.evaluator, db, zap.NewNop())
	f.vessel = dbtest.Vessel(t, db, "300234010000001", "Aurora")
	return f
}

func (f *fixture) rule(t *testing.T, r models.AlertRule) *models.AlertRule {
	t.Helper()
	r.VesselID = f.vessel.ID
	if r.ReportTypeID == 0 {
		r.ReportTypeID = 1
	}
	if r.Name == "" {
		r.Name = "Speed High"
	}
	if r.FieldName == "" {
		r.FieldName = "speed"
	}
	if r.Operator == "" {
		r.Operator = models.OperatorGT
	}
	r.Enabled = true
	require.NoError(t, f.db.Create(&r).Error)
	return &r
}

// report stores a report stamped with the fake clock's current time. When
// the clock has not moved since the previous report the timestamp is nudged
// forward a millisecond, since (vessel, timestamp) is unique.
func (f *fixture) report(t *testing.T, fields map[string]interface{}) uint {
	t.Helper()
	ts := f.clock.Now()
	if !ts.After(f.lastTS) {
		ts = f.lastTS.Add(time.Millisecond)
	}
	f.lastTS = ts
	r := models.TelemetryReport{
		VesselID:     f.vessel.ID,
		ReportTypeID: 1,
		Timestamp:    ts,
		ReceivedAt:   ts,
		Fields:       datatypes.JSONMap(fields),
	}
	require.NoError(t, f.db.Create(&r).Error)
	return r.ID
}

// feed stores and evaluates a report carrying one speed value.
func (f *fixture) feed(t *testing.T, speed float64) *EvaluationResult {
	t.Helper()
	res, err := f.evaluator.EvaluateReport(context.Background(), f.report(t, map[string]interface{}{"speed": speed}))
	require.NoError(t, err)
	return res
}

func (f *fixture) alerts(t *testing.T) []models.Alert {
	t.Helper()
	var alerts []models.Alert
	require.NoError(t, f.db.Order("id").Find(&alerts).Error)
	return alerts
}

func (f *fixture) evaluationCount(t *testing.T, ruleID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.RuleEvaluation{}).Where("rule_id = ?", ruleID).Count(&n).Error)
	return n
}
