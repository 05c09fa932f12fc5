package geofence

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/database/dbtest"
	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/notify"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// A 1x1 degree box in the Channel, as [lat, lon] pairs.
var box = [][2]float64{{50, -2}, {50, -1}, {51, -1}, {51, -2}, {50, -2}}

var centroid = models.Position{Latitude: 50.5, Longitude: -1.5}

func zoneGeometry(t *testing.T, ring [][2]float64, name string) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"coordinates": [][][2]float64{ring}, "name": name})
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

func pointGeometry(t *testing.T, center models.Position, radius float64, name string) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"coordinates":   []float64{center.Latitude, center.Longitude},
		"radius_meters": radius,
		"name":          name,
	})
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

func TestPointInPolygon(t *testing.T) {
	assert.True(t, PointInPolygon(centroid, box))
	assert.False(t, PointInPolygon(models.Position{Latitude: 52, Longitude: -1.5}, box))
	assert.False(t, PointInPolygon(models.Position{Latitude: 50.5, Longitude: 0}, box))

	// Open rings work the same as closed ones.
	assert.True(t, PointInPolygon(centroid, box[:4]))
}

func TestHaversineMeters(t *testing.T) {
	assert.Zero(t, HaversineMeters(centroid, centroid))
	// One degree of latitude is roughly 111.2 km.
	d := HaversineMeters(models.Position{Latitude: 50, Longitude: 0}, models.Position{Latitude: 51, Longitude: 0})
	assert.InDelta(t, 111195, d, 10)
}

func TestCheck_Centroid(t *testing.T) {
	keepOut := &models.Geofence{Type: models.GeofenceKeepOutZone, Geometry: zoneGeometry(t, box, "Firing range")}
	v, err := Check(keepOut, centroid)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Vessel inside keep-out zone: Firing range", v.Message)

	keepIn := &models.Geofence{Type: models.GeofenceKeepIn, Geometry: zoneGeometry(t, box, "")}
	v, err = Check(keepIn, centroid)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Check(keepIn, models.Position{Latitude: 49, Longitude: -1.5})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Vessel outside keep-in zone", v.Message)
}

func TestCheck_PointRadiusBoundaryIsViolation(t *testing.T) {
	center := models.Position{Latitude: 50.1, Longitude: -1.3}
	pos := models.Position{Latitude: 50.1045, Longitude: -1.3}
	radius := HaversineMeters(pos, center)

	fence := &models.Geofence{Type: models.GeofenceKeepOutPoint, Geometry: pointGeometry(t, center, radius, "")}
	v, err := Check(fence, pos)
	require.NoError(t, err)
	require.NotNil(t, v, "exactly on the radius counts")
	assert.Equal(t, "Vessel too close to keep-out point: Unnamed", v.Message)

	fence.Geometry = pointGeometry(t, center, radius-0.01, "Wreck")
	v, err = Check(fence, pos)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCheck_InvalidGeometry(t *testing.T) {
	cases := []*models.Geofence{
		{Type: models.GeofenceKeepIn, Geometry: datatypes.JSON(`{"coordinates": [[[50, -2], [50, -1]]]}`)},
		{Type: models.GeofenceKeepOutZone, Geometry: datatypes.JSON(`{"name": "no coords"}`)},
		{Type: models.GeofenceKeepOutPoint, Geometry: datatypes.JSON(`{"coordinates": [[50, -2]]}`)},
		{Type: "keep_near", Geometry: datatypes.JSON(`{"coordinates": [50, -2]}`)},
		{Type: models.GeofenceKeepIn, Geometry: datatypes.JSON(`not json`)},
	}
	for _, fence := range cases {
		_, err := Check(fence, centroid)
		assert.ErrorIs(t, err, ErrInvalidGeometry, "%s %s", fence.Type, fence.Geometry)
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	db := dbtest.New(t)
	vessel := dbtest.Vessel(t, db, "300234010000001", "Aurora")
	other := dbtest.Vessel(t, db, "300234010000002", "Borealis")
	ev := NewEvaluator(db, zap.NewNop())
	ctx := context.Background()

	violations, err := ev.Evaluate(ctx, vessel.ID, centroid)
	require.NoError(t, err)
	assert.NotNil(t, violations)
	assert.Empty(t, violations, "no geofences, no violations")

	fences := []models.Geofence{
		{VesselID: vessel.ID, Type: models.GeofenceKeepIn, Geometry: zoneGeometry(t, box, "Ops area")},
		{VesselID: vessel.ID, Type: models.GeofenceKeepOutZone, Geometry: zoneGeometry(t, box, "Range")},
		{VesselID: vessel.ID, Type: models.GeofenceKeepOutZone, Geometry: zoneGeometry(t, box, "Muted"), IsMuted: true},
		{VesselID: vessel.ID, Type: models.GeofenceKeepOutPoint, Geometry: pointGeometry(t, centroid, 100, "Buoy")},
		{VesselID: vessel.ID, Type: models.GeofenceKeepOutPoint, Geometry: datatypes.JSON(`{"coordinates": "bad"}`)},
		{VesselID: other.ID, Type: models.GeofenceKeepOutZone, Geometry: zoneGeometry(t, box, "Elsewhere")},
	}
	require.NoError(t, db.Create(&fences).Error)

	violations, err = ev.Evaluate(ctx, vessel.ID, centroid)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	messages := []string{violations[0].Message, violations[1].Message}
	assert.ElementsMatch(t, []string{
		"Vessel inside keep-out zone: Range",
		"Vessel too close to keep-out point: Buoy",
	}, messages)

	all, err := ev.Geofences(ctx, vessel.ID)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestChecker_ReportsToSink(t *testing.T) {
	db := dbtest.New(t)
	vessel := dbtest.Vessel(t, db, "300234010000001", "Aurora")
	require.NoError(t, db.Create(&models.Geofence{VesselID: vessel.ID, Type: models.GeofenceKeepIn, Geometry: zoneGeometry(t, box, "")}).Error)

	var events []notify.Event
	sink := Sinks{
		NewLogSink(zap.NewNop()),
		NewNotifierSink(notify.Func(func(_ context.Context, ev notify.Event) error {
			events = append(events, ev)
			return nil
		}), nil),
	}
	checker := NewChecker(NewEvaluator(db, zap.NewNop()), sink, zap.NewNop())

	violations, err := checker.CheckVessel(context.Background(), vessel, centroid)
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.Empty(t, events)

	violations, err = checker.CheckVessel(context.Background(), vessel, models.Position{Latitude: 40, Longitude: 0})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	require.Len(t, events, 1)
	assert.Equal(t, notify.KindGeofenceViolation, events[0].Kind)
	assert.Equal(t, "Vessel outside keep-in zone", events[0].Text)
	assert.Equal(t, vessel.ID, events[0].VesselID)
}
