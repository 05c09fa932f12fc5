package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "vesseleye"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	FetchCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_cycles_total",
		Help:      "Fetch cycles run, by outcome",
	}, []string{"result"})

	FetchCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_cycle_duration_seconds",
		Help:      "Duration of a full fetch cycle",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	VesselFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vessel_fetches_total",
		Help:      "Per-vessel fetch attempts, by outcome",
	}, []string{"result"})

	ReportsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telemetry_reports_stored_total",
		Help:      "Telemetry reports persisted",
	})

	RuleEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rule_evaluations_total",
		Help:      "Rule evaluations recorded, by whether the comparison held",
	}, []string{"triggered"})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Alert history transitions, by action",
	}, []string{"action"})

	GeofenceViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geofence_violations_total",
		Help:      "Geofence violations detected, by geofence type",
	}, []string{"type"})

	IdentityCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_cache_lookups_total",
		Help:      "Vessel identity cache lookups, by hit or miss",
	}, []string{"result"})

	FetcherRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fetcher_running",
		Help:      "1 while the periodic fetcher is running",
	})
)
