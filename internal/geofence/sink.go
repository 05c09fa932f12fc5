package geofence

import (
	"context"

	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/metrics"
	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/notify"
	"go.uber.org/zap"
)

// Sink receives the violations found for a vessel position.
type Sink interface {
	Report(ctx context.Context, vessel *models.Vessel, violations []Violation) error
}

type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(_ context.Context, vessel *models.Vessel, violations []Violation) error {
	for _, v := range violations {
		s.logger.Warn("geofence violation",
			zap.Uint("vessel_id", vessel.ID),
			zap.String("vessel", vessel.Name),
			zap.Uint("geofence_id", v.GeofenceID),
			zap.String("type", string(v.Type)),
			zap.String("message", v.Message))
	}
	return nil
}

// NotifierSink forwards each violation as a notification event.
type NotifierSink struct {
	notifier notify.Notifier
	clock    clock.Clock
}

func NewNotifierSink(n notify.Notifier, clk clock.Clock) *NotifierSink {
	if clk == nil {
		clk = clock.System{}
	}
	return &NotifierSink{notifier: n, clock: clk}
}

func (s *NotifierSink) Report(ctx context.Context, vessel *models.Vessel, violations []Violation) error {
	now := s.clock.Now()
	for _, v := range violations {
		if err := s.notifier.Notify(ctx, notify.Event{
			Kind:       notify.KindGeofenceViolation,
			VesselID:   vessel.ID,
			VesselName: vessel.Name,
			GeofenceID: v.GeofenceID,
			Text:       v.Message,
			Time:       now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Sinks fans violations out to several sinks; the first error wins but
// every sink is called.
type Sinks []Sink

func (ss Sinks) Report(ctx context.Context, vessel *models.Vessel, violations []Violation) error {
	var first error
	for _, s := range ss {
		if err := s.Report(ctx, vessel, violations); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Checker evaluates a vessel position and hands any violations to a sink.
type Checker struct {
	evaluator *Evaluator
	sink      Sink
	logger    *zap.Logger
}

func NewChecker(evaluator *Evaluator, sink Sink, logger *zap.Logger) *Checker {
	return &Checker{evaluator: evaluator, sink: sink, logger: logger}
}

func (c *Checker) CheckVessel(ctx context.Context, vessel *models.Vessel, pos models.Position) ([]Violation, error) {
	violations, err := c.evaluator.Evaluate(ctx, vessel.ID, pos)
	if err != nil {
		return nil, err
	}
	if len(violations) == 0 {
		return violations, nil
	}
	for _, v := range violations {
		metrics.GeofenceViolations.WithLabelValues(string(v.Type)).Inc()
	}
	if c.sink != nil {
		if err := c.sink.Report(ctx, vessel, violations); err != nil {
			c.logger.Warn("geofence sink failed", zap.Uint("vessel_id", vessel.ID), zap.Error(err))
		}
	}
	return violations, nil
}
