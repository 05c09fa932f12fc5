package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/notify"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

const (
	topRules       = 10
	topRuleVessels = 5
)

type Generator struct {
	db   *gorm.DB
	tmpl *template.Template
}

type ReportData struct {
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	AlertSummary AlertSummary      `json:"alert_summary"`
	Vessels      []VesselSummary   `json:"vessels"`
	Trend        []TimeSeriesPoint `json:"trend"`
}

type AlertSummary struct {
	TotalAlerts        int           `json:"total_alerts"`
	ActiveAlerts       int           `json:"active_alerts"`
	AcknowledgedAlerts int           `json:"acknowledged_alerts"`
	ResolvedAlerts     int           `json:"resolved_alerts"`
	TotalRepeats       int           `json:"total_repeats"`
	TopRules           []RuleSummary `json:"top_rules"`
}

type RuleSummary struct {
	RuleID     uint     `json:"rule_id"`
	RuleName   string   `json:"rule_name"`
	AlertCount int      `json:"alert_count"`
	TopVessels []string `json:"top_vessels"`
}

type VesselSummary struct {
	VesselID         uint   `json:"vessel_id"`
	VesselName       string `json:"vessel_name"`
	AlertCount       int    `json:"alert_count"`
	ActiveAlerts     int    `json:"active_alerts"`
	TelemetryReports int64  `json:"telemetry_reports"`
}

// TimeSeriesPoint counts alerts first triggered within one hour.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     int       `json:"value"`
}

func NewGenerator(db *gorm.DB) *Generator {
	return &Generator{
		db:   db,
		tmpl: template.Must(template.New("alerts").Parse(alertReportTemplate)),
	}
}

// Generate summarizes alerts first triggered in [start, end).
func (g *Generator) Generate(ctx context.Context, start, end time.Time) (*ReportData, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("report period end %s is not after start %s", end, start)
	}
	db := g.db.WithContext(ctx)
	data := &ReportData{StartTime: start.UTC(), EndTime: end.UTC()}

	var alerts []models.Alert
	if err := db.Where("first_triggered_at >= ? AND first_triggered_at < ?", start, end).
		Order("first_triggered_at").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	names, err := g.vesselNames(db, alerts)
	if err != nil {
		return nil, err
	}
	rules, err := g.ruleNames(db, alerts)
	if err != nil {
		return nil, err
	}

	data.AlertSummary = processAlerts(alerts, names, rules)
	data.Vessels = processVessels(alerts, names)
	for i := range data.Vessels {
		vs := &data.Vessels[i]
		if err := db.Model(&models.TelemetryReport{}).
			Where("vessel_id = ? AND timestamp >= ? AND timestamp < ?", vs.VesselID, start, end).
			Count(&vs.TelemetryReports).Error; err != nil {
			return nil, fmt.Errorf("failed to count telemetry: %w", err)
		}
	}
	data.Trend = calculateTrend(alerts)
	return data, nil
}

func (g *Generator) vesselNames(db *gorm.DB, alerts []models.Alert) (map[uint]string, error) {
	ids := make([]uint, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.VesselID)
	}
	names := make(map[uint]string)
	if len(ids) == 0 {
		return names, nil
	}
	var vessels []models.Vessel
	if err := db.Unscoped().Where("id IN ?", ids).Find(&vessels).Error; err != nil {
		return nil, fmt.Errorf("failed to load vessels: %w", err)
	}
	for _, v := range vessels {
		names[v.ID] = v.Name
	}
	return names, nil
}

func (g *Generator) ruleNames(db *gorm.DB, alerts []models.Alert) (map[uint]string, error) {
	ids := make([]uint, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.RuleID)
	}
	names := make(map[uint]string)
	if len(ids) == 0 {
		return names, nil
	}
	var rules []models.AlertRule
	if err := db.Unscoped().Where("id IN ?", ids).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	for _, r := range rules {
		names[r.ID] = r.Name
	}
	return names, nil
}

func processAlerts(alerts []models.Alert, vessels, rules map[uint]string) AlertSummary {
	summary := AlertSummary{TopRules: []RuleSummary{}}
	ruleAlerts := make(map[uint]*RuleSummary)

	for _, a := range alerts {
		summary.TotalAlerts++
		summary.TotalRepeats += a.RepeatCount
		switch a.Status {
		case models.AlertStatusActive:
			summary.ActiveAlerts++
		case models.AlertStatusAcknowledged:
			summary.AcknowledgedAlerts++
		case models.AlertStatusResolved:
			summary.ResolvedAlerts++
		}

		vessel := vessels[a.VesselID]
		rs, ok := ruleAlerts[a.RuleID]
		if !ok {
			rs = &RuleSummary{RuleID: a.RuleID, RuleName: rules[a.RuleID]}
			ruleAlerts[a.RuleID] = rs
		}
		rs.AlertCount++
		if len(rs.TopVessels) < topRuleVessels && !contains(rs.TopVessels, vessel) {
			rs.TopVessels = append(rs.TopVessels, vessel)
		}
	}

	for _, rs := range ruleAlerts {
		summary.TopRules = append(summary.TopRules, *rs)
	}
	sort.Slice(summary.TopRules, func(i, j int) bool {
		a, b := summary.TopRules[i], summary.TopRules[j]
		if a.AlertCount != b.AlertCount {
			return a.AlertCount > b.AlertCount
		}
		return a.RuleID < b.RuleID
	})
	if len(summary.TopRules) > topRules {
		summary.TopRules = summary.TopRules[:topRules]
	}
	return summary
}

func processVessels(alerts []models.Alert, names map[uint]string) []VesselSummary {
	vessels := make(map[uint]*VesselSummary)
	for _, a := range alerts {
		vs, ok := vessels[a.VesselID]
		if !ok {
			vs = &VesselSummary{VesselID: a.VesselID, VesselName: names[a.VesselID]}
			vessels[a.VesselID] = vs
		}
		vs.AlertCount++
		if a.Status == models.AlertStatusActive {
			vs.ActiveAlerts++
		}
	}

	result := make([]VesselSummary, 0, len(vessels))
	for _, vs := range vessels {
		result = append(result, *vs)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AlertCount != result[j].AlertCount {
			return result[i].AlertCount > result[j].AlertCount
		}
		return result[i].VesselID < result[j].VesselID
	})
	return result
}

func calculateTrend(alerts []models.Alert) []TimeSeriesPoint {
	buckets := make(map[time.Time]int)
	for _, a := range alerts {
		buckets[a.FirstTriggeredAt.UTC().Truncate(time.Hour)]++
	}

	times := make([]time.Time, 0, len(buckets))
	for t := range buckets {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	trend := make([]TimeSeriesPoint, 0, len(times))
	for _, t := range times {
		trend = append(trend, TimeSeriesPoint{Timestamp: t, Value: buckets[t]})
	}
	return trend
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (g *Generator) RenderHTML(w io.Writer, data *ReportData) error {
	if err := g.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// Mailer delivers rendered reports by e-mail.
type Mailer struct {
	generator *Generator
	sender    notify.Sender
	from      string
	to        []string
}

func NewMailer(generator *Generator, sender notify.Sender, from string, to []string) *Mailer {
	return &Mailer{generator: generator, sender: sender, from: from, to: to}
}

func (m *Mailer) Send(ctx context.Context, data *ReportData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := m.generator.RenderHTML(&buf, data); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", fmt.Sprintf("VesselEye Alert Report (%s - %s)",
		data.StartTime.Format("2006-01-02"), data.EndTime.Format("2006-01-02")))
	msg.SetBody("text/html", buf.String())

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	return nil
}

const alertReportTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>VesselEye Alert Report</title></head>
<body>
<h1>Alert Report</h1>
<p>{{.StartTime.Format "2006-01-02 15:04"}} to {{.EndTime.Format "2006-01-02 15:04"}} UTC</p>
<h2>Summary</h2>
<table>
<tr><th>Total</th><th>Active</th><th>Acknowledged</th><th>Resolved</th><th>Repeats</th></tr>
<tr><td>{{.AlertSummary.TotalAlerts}}</td><td>{{.AlertSummary.ActiveAlerts}}</td><td>{{.AlertSummary.AcknowledgedAlerts}}</td><td>{{.AlertSummary.ResolvedAlerts}}</td><td>{{.AlertSummary.TotalRepeats}}</td></tr>
</table>
<h2>Top Rules</h2>
<table>
<tr><th>Rule</th><th>Alerts</th><th>Vessels</th></tr>
{{range .AlertSummary.TopRules}}<tr><td>{{.RuleName}}</td><td>{{.AlertCount}}</td><td>{{range $i, $v := .TopVessels}}{{if $i}}, {{end}}{{$v}}{{end}}</td></tr>
{{end}}</table>
<h2>Vessels</h2>
<table>
<tr><th>Vessel</th><th>Alerts</th><th>Active</th><th>Reports</th></tr>
{{range .Vessels}}<tr><td>{{.VesselName}}</td><td>{{.AlertCount}}</td><td>{{.ActiveAlerts}}</td><td>{{.TelemetryReports}}</td></tr>
{{end}}</table>
</body>
</html>
`
