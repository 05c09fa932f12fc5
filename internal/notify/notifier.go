package notify

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	KindAlertOpened       Kind = "alert_opened"
	KindAlertEscalated    Kind = "alert_escalated"
	KindGeofenceViolation Kind = "geofence_violation"
)

// Event is a notification about a vessel that needs attention.
type Event struct {
	Kind        Kind      `json:"kind"`
	VesselID    uint      `json:"vessel_id"`
	VesselName  string    `json:"vessel_name,omitempty"`
	AlertID     uint      `json:"alert_id,omitempty"`
	RuleID      uint      `json:"rule_id,omitempty"`
	GeofenceID  uint      `json:"geofence_id,omitempty"`
	Text        string    `json:"text"`
	RepeatCount int       `json:"repeat_count"`
	Time        time.Time `json:"time"`
}

func (e Event) Title() string {
	switch e.Kind {
	case KindAlertOpened:
		return "New alert"
	case KindAlertEscalated:
		return "Alert repeated"
	case KindGeofenceViolation:
		return "Geofence violation"
	default:
		return "Vessel event"
	}
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Func adapts a function to Notifier.
type Func func(ctx context.Context, ev Event) error

func (f Func) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }
