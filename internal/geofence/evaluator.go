package geofence

import (
	"context"
	"fmt"

	"github.com/vesseleye/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Violation is a breach of one geofence by a position.
type Violation struct {
	GeofenceID uint                `json:"geofence_id"`
	VesselID   uint                `json:"vessel_id"`
	Type       models.GeofenceType `json:"type"`
	Message    string              `json:"message"`
}

// Check tests a position against a single geofence. It returns nil when
// the position is compliant.
func Check(fence *models.Geofence, pos models.Position) (*Violation, error) {
	g, err := parseGeometry(fence.Geometry)
	if err != nil {
		return nil, err
	}

	v := &Violation{GeofenceID: fence.ID, VesselID: fence.VesselID, Type: fence.Type}
	switch fence.Type {
	case models.GeofenceKeepIn:
		ring, err := g.ring()
		if err != nil {
			return nil, err
		}
		if PointInPolygon(pos, ring) {
			return nil, nil
		}
		v.Message = "Vessel outside keep-in zone"
	case models.GeofenceKeepOutZone:
		ring, err := g.ring()
		if err != nil {
			return nil, err
		}
		if !PointInPolygon(pos, ring) {
			return nil, nil
		}
		v.Message = "Vessel inside keep-out zone: " + g.displayName()
	case models.GeofenceKeepOutPoint:
		center, err := g.center()
		if err != nil {
			return nil, err
		}
		if HaversineMeters(pos, center) > g.RadiusMeters {
			return nil, nil
		}
		v.Message = "Vessel too close to keep-out point: " + g.displayName()
	default:
		return nil, fmt.Errorf("%w: unknown geofence type %q", ErrInvalidGeometry, fence.Type)
	}
	return v, nil
}

// Evaluator checks positions against a vessel's stored geofences. It keeps
// no state between calls.
type Evaluator struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewEvaluator(db *gorm.DB, logger *zap.Logger) *Evaluator {
	return &Evaluator{db: db, logger: logger}
}

// Geofences lists a vessel's geofences, muted ones included.
func (e *Evaluator) Geofences(ctx context.Context, vesselID uint) ([]models.Geofence, error) {
	var fences []models.Geofence
	if err := e.db.WithContext(ctx).Where("vessel_id = ?", vesselID).
		Order("geofence_type, id").Find(&fences).Error; err != nil {
		return nil, fmt.Errorf("failed to load geofences: %w", err)
	}
	return fences, nil
}

// Evaluate returns every violation of the vessel's non-muted geofences.
// Geofences with unusable geometry are logged and skipped.
func (e *Evaluator) Evaluate(ctx context.Context, vesselID uint, pos models.Position) ([]Violation, error) {
	var fences []models.Geofence
	if err := e.db.WithContext(ctx).Where("vessel_id = ? AND is_muted = ?", vesselID, false).
		Order("geofence_type, id").Find(&fences).Error; err != nil {
		return nil, fmt.Errorf("failed to load geofences: %w", err)
	}

	violations := make([]Violation, 0)
	for i := range fences {
		v, err := Check(&fences[i], pos)
		if err != nil {
			e.logger.Warn("skipping geofence", zap.Uint("geofence_id", fences[i].ID), zap.Error(err))
			continue
		}
		if v != nil {
			violations = append(violations, *v)
		}
	}
	return violations, nil
}
