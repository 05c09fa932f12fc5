package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vesseleye/internal/alert"
	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/geofence"
	"github.com/vesseleye/internal/metrics"
	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/store"
	"github.com/vesseleye/internal/tracking"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HistorySource is the slice of the tracking client the fetcher uses.
type HistorySource interface {
	ResolveVesselID(ctx context.Context, imei string) (int64, error)
	FetchHistory(ctx context.Context, externalID int64, windowMinutes, maxPoints int) ([]tracking.Report, error)
	CacheStats() tracking.CacheStats
}

type ReportEvaluator interface {
	EvaluateReport(ctx context.Context, reportID uint) (*alert.EvaluationResult, error)
}

type GeofenceChecker interface {
	CheckVessel(ctx context.Context, vessel *models.Vessel, pos models.Position) ([]geofence.Violation, error)
}

type StatePublisher interface {
	UpdateVesselState(ctx context.Context, st store.VesselState) error
}

type Config struct {
	PollingInterval      time.Duration
	VesselDelay          time.Duration
	HistoryWindowMinutes int
	HistoryLimit         int
}

// VesselResult is one vessel's contribution to a fetch cycle.
type VesselResult struct {
	VesselID           uint       `json:"vessel_id"`
	Vessel             string     `json:"vessel"`
	Success            bool       `json:"success"`
	Reason             string     `json:"reason,omitempty"`
	Stored             int        `json:"stored"`
	Timestamp          *time.Time `json:"timestamp,omitempty"`
	AlertsTriggered    int        `json:"alerts_triggered"`
	GeofenceViolations int        `json:"geofence_violations"`
}

type CycleResult struct {
	ID                string         `json:"id"`
	StartedAt         time.Time      `json:"started_at"`
	Success           bool           `json:"success"`
	Error             string         `json:"error,omitempty"`
	VesselsProcessed  int            `json:"vessels_processed"`
	SuccessfulFetches int            `json:"successful_fetches"`
	EntriesStored     int            `json:"entries_stored"`
	Duration          time.Duration  `json:"duration"`
	Results           []VesselResult `json:"results"`
}

type Status struct {
	Running                bool                `json:"is_running"`
	PollingIntervalMinutes float64             `json:"polling_interval_minutes"`
	LastFetchTime          *time.Time          `json:"last_fetch_time"`
	TotalFetchCycles       int                 `json:"total_fetch_cycles"`
	LastCycleID            string              `json:"last_cycle_id,omitempty"`
	CacheStats             tracking.CacheStats `json:"cache_stats"`
}

type Option func(*Fetcher)

func WithClock(clk clock.Clock) Option {
	return func(f *Fetcher) {
		if clk != nil {
			f.clock = clk
		}
	}
}

// WithGeofenceChecker checks every stored position against the vessel's
// geofences.
func WithGeofenceChecker(c GeofenceChecker) Option {
	return func(f *Fetcher) { f.geofences = c }
}

// WithStatePublisher publishes each stored position as live vessel state.
func WithStatePublisher(p StatePublisher) Option {
	return func(f *Fetcher) { f.state = p }
}

// Fetcher polls the tracking API for every vessel at sea, stores new
// reports and hands them to the rule evaluator. Cycles never overlap:
// the timer is re-armed only after a cycle finishes, and manual triggers
// queue behind a running cycle.
type Fetcher struct {
	db        *gorm.DB
	source    HistorySource
	evaluator ReportEvaluator
	geofences GeofenceChecker
	state     StatePublisher
	clock     clock.Clock
	logger    *zap.Logger
	cfg       Config

	cycle *semaphore.Weighted
	wg    sync.WaitGroup

	mu            sync.Mutex
	running       bool
	stopChan      chan struct{}
	lastFetchTime *time.Time
	totalCycles   int
	lastCycleID   string
}

func NewFetcher(db *gorm.DB, source HistorySource, evaluator ReportEvaluator, cfg Config, logger *zap.Logger, opts ...Option) *Fetcher {
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = 5 * time.Minute
	}
	if cfg.HistoryWindowMinutes <= 0 {
		cfg.HistoryWindowMinutes = 60
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	f := &Fetcher{
		db:        db,
		source:    source,
		evaluator: evaluator,
		clock:     clock.System{},
		logger:    logger,
		cfg:       cfg,
		cycle:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start runs a cycle immediately and then one per polling interval. It
// returns false, and logs a warning, when the fetcher is already running.
func (f *Fetcher) Start() bool {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		f.logger.Warn("fetcher is already running")
		return false
	}
	f.running = true
	stop := make(chan struct{})
	f.stopChan = stop
	f.mu.Unlock()

	metrics.FetcherRunning.Set(1)
	f.logger.Info("fetcher started", zap.Duration("polling_interval", f.cfg.PollingInterval))

	f.wg.Add(1)
	go f.loop(stop)
	return true
}

func (f *Fetcher) loop(stop <-chan struct{}) {
	defer f.wg.Done()
	for {
		if _, err := f.runCycle(context.Background()); err != nil {
			f.logger.Error("fetch cycle failed", zap.Error(err))
		}

		timer := f.clock.NewTimer(f.cfg.PollingInterval)
		select {
		case <-timer.C():
		case <-stop:
			timer.Stop()
			return
		}
	}
}

// Stop disarms the timer. A cycle already in flight runs to completion;
// use Wait to block until it has. Returns false when not running.
func (f *Fetcher) Stop() bool {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		f.logger.Warn("fetcher is not running")
		return false
	}
	f.running = false
	close(f.stopChan)
	total, last := f.totalCycles, f.lastFetchTime
	f.mu.Unlock()

	metrics.FetcherRunning.Set(0)
	fields := []zap.Field{zap.Int("total_fetch_cycles", total)}
	if last != nil {
		fields = append(fields, zap.Time("last_fetch_time", *last))
	}
	f.logger.Info("fetcher stopped", fields...)
	return true
}

// Wait blocks until the background loop has exited.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Trigger runs one cycle outside the timer.
func (f *Fetcher) Trigger(ctx context.Context) (*CycleResult, error) {
	f.logger.Info("manual fetch triggered")
	return f.runCycle(ctx)
}

func (f *Fetcher) Status() Status {
	f.mu.Lock()
	st := Status{
		Running:                f.running,
		PollingIntervalMinutes: f.cfg.PollingInterval.Minutes(),
		LastFetchTime:          f.lastFetchTime,
		TotalFetchCycles:       f.totalCycles,
		LastCycleID:            f.lastCycleID,
	}
	f.mu.Unlock()
	st.CacheStats = f.source.CacheStats()
	return st
}

func (f *Fetcher) runCycle(ctx context.Context) (*CycleResult, error) {
	if err := f.cycle.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.cycle.Release(1)

	f.mu.Lock()
	f.totalCycles++
	n := f.totalCycles
	f.mu.Unlock()

	result := &CycleResult{ID: uuid.NewString(), StartedAt: f.clock.Now().UTC(), Results: []VesselResult{}}
	log := f.logger.With(zap.String("cycle_id", result.ID), zap.Int("cycle", n))
	log.Info("fetch cycle started")

	var vessels []models.Vessel
	if err := f.db.WithContext(ctx).Where("at_sea = ?", true).Order("id").Find(&vessels).Error; err != nil {
		metrics.FetchCycles.WithLabelValues(metrics.ResultError).Inc()
		result.Error = err.Error()
		return result, fmt.Errorf("failed to load vessels at sea: %w", err)
	}

	for i := range vessels {
		if i > 0 && f.cfg.VesselDelay > 0 {
			if err := f.sleep(ctx, f.cfg.VesselDelay); err != nil {
				log.Warn("fetch cycle interrupted", zap.Int("remaining", len(vessels)-i))
				break
			}
		}
		vr := f.fetchVessel(ctx, &vessels[i], log)
		switch {
		case vr.Success && vr.Stored > 0:
			result.SuccessfulFetches++
			metrics.VesselFetches.WithLabelValues(metrics.ResultSuccess).Inc()
		case vr.Success:
			result.SuccessfulFetches++
			metrics.VesselFetches.WithLabelValues(metrics.ResultSkipped).Inc()
		default:
			metrics.VesselFetches.WithLabelValues(metrics.ResultError).Inc()
		}
		result.EntriesStored += vr.Stored
		result.Results = append(result.Results, vr)
	}

	result.Success = true
	result.VesselsProcessed = len(vessels)
	finished := f.clock.Now().UTC()
	result.Duration = finished.Sub(result.StartedAt)

	f.mu.Lock()
	f.lastFetchTime = &finished
	f.lastCycleID = result.ID
	f.mu.Unlock()

	metrics.FetchCycles.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.FetchCycleDuration.Observe(result.Duration.Seconds())
	log.Info("fetch cycle complete",
		zap.Int("vessels", result.VesselsProcessed),
		zap.Int("successful", result.SuccessfulFetches),
		zap.Int("stored", result.EntriesStored),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (f *Fetcher) fetchVessel(ctx context.Context, v *models.Vessel, log *zap.Logger) VesselResult {
	res := VesselResult{VesselID: v.ID, Vessel: v.Name}
	log = log.With(zap.Uint("vessel_id", v.ID), zap.String("vessel", v.Name))

	externalID, err := f.source.ResolveVesselID(ctx, v.IMEI)
	if err != nil {
		if errors.Is(err, tracking.ErrVesselNotFound) {
			res.Reason = "Vessel not found in tracking API"
		} else {
			res.Reason = "identity lookup failed: " + err.Error()
		}
		log.Warn("could not resolve vessel", zap.String("imei", v.IMEI), zap.Error(err))
		return res
	}

	reports, err := f.source.FetchHistory(ctx, externalID, f.cfg.HistoryWindowMinutes, f.cfg.HistoryLimit)
	if err != nil {
		res.Reason = "history fetch failed: " + err.Error()
		log.Warn("history fetch failed", zap.Error(err))
		return res
	}
	if len(reports) == 0 {
		res.Reason = "No recent data"
		return res
	}

	latest := reports[0]
	ts := latest.Timestamp.UTC()
	res.Timestamp = &ts

	report, stored, err := f.storeReport(ctx, v, latest)
	if err != nil {
		res.Reason = "failed to store report: " + err.Error()
		log.Error("failed to store report", zap.Error(err))
		return res
	}
	res.Success = true
	if !stored {
		res.Reason = "Already up to date"
		return res
	}
	res.Stored = 1
	metrics.ReportsStored.Inc()

	if f.evaluator != nil {
		eval, err := f.evaluator.EvaluateReport(ctx, report.ID)
		if err != nil {
			log.Warn("rule evaluation failed", zap.Uint("report_id", report.ID), zap.Error(err))
		} else {
			res.AlertsTriggered = eval.AlertsTriggered
		}
	}

	if pos, ok := report.Position(); ok {
		if f.state != nil {
			if err := f.state.UpdateVesselState(ctx, store.VesselState{
				VesselID:  v.ID,
				Name:      v.Name,
				Latitude:  pos.Latitude,
				Longitude: pos.Longitude,
				Timestamp: ts,
			}); err != nil {
				log.Warn("failed to publish vessel state", zap.Error(err))
			}
		}
		if f.geofences != nil {
			violations, err := f.geofences.CheckVessel(ctx, v, pos)
			if err != nil {
				log.Warn("geofence check failed", zap.Error(err))
			}
			res.GeofenceViolations = len(violations)
		}
	}
	return res
}

// storeReport persists r unless the vessel already has a report with the
// same timestamp, and moves the vessel's last-known position forward.
func (f *Fetcher) storeReport(ctx context.Context, v *models.Vessel, r tracking.Report) (*models.TelemetryReport, bool, error) {
	db := f.db.WithContext(ctx)
	now := f.clock.Now().UTC()
	ts := r.Timestamp.UTC()

	var existing int64
	if err := db.Model(&models.TelemetryReport{}).
		Where("vessel_id = ? AND timestamp = ?", v.ID, ts).Count(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("dedup check failed: %w", err)
	}
	if existing > 0 {
		return nil, false, nil
	}

	receivedAt := now
	if ts.After(now) {
		receivedAt = ts
	}
	reportType := v.ReportTypeID
	if reportType == 0 {
		reportType = 1
	}
	report := &models.TelemetryReport{
		VesselID:     v.ID,
		ReportTypeID: reportType,
		Timestamp:    ts,
		ReceivedAt:   receivedAt,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Fields:       datatypes.JSONMap(r.Fields),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{"last_check_in_at": now}
		if pos, ok := report.Position(); ok {
			updates["latest_latitude"] = pos.Latitude
			updates["latest_longitude"] = pos.Longitude
			updates["latest_position_at"] = ts
		}
		return tx.Model(&models.Vessel{}).Where("id = ?", v.ID).Updates(updates).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return report, true, nil
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	t := f.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
