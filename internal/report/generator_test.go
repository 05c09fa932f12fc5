package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/database/dbtest"
	"github.com/vesseleye/internal/models"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedRule(t *testing.T, db *gorm.DB, vesselID uint, name string) *models.AlertRule {
	t.Helper()
	r := &models.AlertRule{VesselID: vesselID, ReportTypeID: 1, Name: name, FieldName: "speed", Operator: models.OperatorGT, Threshold: 20, Enabled: true}
	require.NoError(t, db.Create(r).Error)
	return r
}

func seedAlert(t *testing.T, db *gorm.DB, vesselID, ruleID uint, at time.Time, status models.AlertStatus, repeats int) {
	t.Helper()
	a := &models.Alert{
		VesselID:         vesselID,
		RuleID:           ruleID,
		AlertText:        "test",
		FirstTriggeredAt: at,
		LastTriggeredAt:  at,
		RepeatCount:      repeats,
		Status:           status,
	}
	require.NoError(t, db.Create(a).Error)
}

func seedReport(t *testing.T) (*Generator, *models.Vessel) {
	t.Helper()
	db := dbtest.New(t)
	aurora := dbtest.Vessel(t, db, "300234010000001", "Aurora")
	borealis := dbtest.Vessel(t, db, "300234010000002", "Borealis")
	speed := seedRule(t, db, aurora.ID, "Speed High")
	heel := seedRule(t, db, aurora.ID, "Heel")
	bSpeed := seedRule(t, db, borealis.ID, "Speed High B")

	seedAlert(t, db, aurora.ID, speed.ID, t0.Add(10*time.Minute), models.AlertStatusActive, 3)
	seedAlert(t, db, aurora.ID, speed.ID, t0.Add(20*time.Minute), models.AlertStatusResolved, 0)
	seedAlert(t, db, aurora.ID, heel.ID, t0.Add(90*time.Minute), models.AlertStatusAcknowledged, 1)
	seedAlert(t, db, borealis.ID, bSpeed.ID, t0.Add(30*time.Minute), models.AlertStatusActive, 0)
	seedAlert(t, db, borealis.ID, bSpeed.ID, t0.Add(-time.Hour), models.AlertStatusResolved, 0)

	require.NoError(t, db.Create(&models.TelemetryReport{VesselID: aurora.ID, ReportTypeID: 1, Timestamp: t0.Add(time.Minute), ReceivedAt: t0}).Error)
	return NewGenerator(db), aurora
}

type fakeSender struct {
	sent []*gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return nil
}

func TestGenerateSummarizesPeriod(t *testing.T) {
	g, aurora := seedReport(t)

	data, err := g.Generate(context.Background(), t0, t0.Add(2*time.Hour))
	require.NoError(t, err)

	s := data.AlertSummary
	assert.Equal(t, 4, s.TotalAlerts)
	assert.Equal(t, 2, s.ActiveAlerts)
	assert.Equal(t, 1, s.AcknowledgedAlerts)
	assert.Equal(t, 1, s.ResolvedAlerts)
	assert.Equal(t, 4, s.TotalRepeats)

	require.Len(t, s.TopRules, 3)
	assert.Equal(t, "Speed High", s.TopRules[0].RuleName)
	assert.Equal(t, 2, s.TopRules[0].AlertCount)
	assert.Equal(t, []string{"Aurora"}, s.TopRules[0].TopVessels)

	require.Len(t, data.Vessels, 2)
	assert.Equal(t, aurora.ID, data.Vessels[0].VesselID)
	assert.Equal(t, 3, data.Vessels[0].AlertCount)
	assert.Equal(t, 1, data.Vessels[0].ActiveAlerts)
	assert.EqualValues(t, 1, data.Vessels[0].TelemetryReports)

	require.Len(t, data.Trend, 2)
	assert.True(t, data.Trend[0].Timestamp.Equal(t0))
	assert.Equal(t, 3, data.Trend[0].Value)
	assert.Equal(t, 1, data.Trend[1].Value)
}

func TestGenerateRejectsEmptyPeriod(t *testing.T) {
	g, _ := seedReport(t)
	_, err := g.Generate(context.Background(), t0, t0)
	assert.Error(t, err)
}

func TestRenderHTMLAndMail(t *testing.T) {
	g, _ := seedReport(t)
	data, err := g.Generate(context.Background(), t0, t0.Add(2*time.Hour))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.RenderHTML(&buf, data))
	assert.Contains(t, buf.String(), "Speed High")
	assert.Contains(t, buf.String(), "Borealis")

	sender := &fakeSender{}
	m := NewMailer(g, sender, "ops@example.com", []string{"bridge@example.com"})
	require.NoError(t, m.Send(context.Background(), data))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"VesselEye Alert Report (2024-03-01 - 2024-03-01)"}, sender.sent[0].GetHeader("Subject"))
}
