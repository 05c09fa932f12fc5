package geofence

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/vesseleye/internal/models"
)

const earthRadiusMeters = 6371e3

var ErrInvalidGeometry = errors.New("invalid geofence geometry")

// geometry is the stored geometry document. Zone coordinates are a list of
// rings (only the first, outer ring is used); point coordinates are a
// single [lat, lon] pair.
type geometry struct {
	Coordinates  json.RawMessage `json:"coordinates"`
	RadiusMeters float64         `json:"radius_meters"`
	Name         string          `json:"name"`
}

func parseGeometry(raw []byte) (*geometry, error) {
	var g geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if len(g.Coordinates) == 0 {
		return nil, fmt.Errorf("%w: missing coordinates", ErrInvalidGeometry)
	}
	return &g, nil
}

func (g *geometry) ring() ([][2]float64, error) {
	var rings [][][2]float64
	if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
		return nil, fmt.Errorf("%w: polygon coordinates: %v", ErrInvalidGeometry, err)
	}
	if len(rings) == 0 || len(rings[0]) < 3 {
		return nil, fmt.Errorf("%w: polygon needs a ring of at least 3 points", ErrInvalidGeometry)
	}
	return rings[0], nil
}

func (g *geometry) center() (models.Position, error) {
	var c [2]float64
	if err := json.Unmarshal(g.Coordinates, &c); err != nil {
		return models.Position{}, fmt.Errorf("%w: point coordinates: %v", ErrInvalidGeometry, err)
	}
	if g.RadiusMeters < 0 {
		return models.Position{}, fmt.Errorf("%w: negative radius", ErrInvalidGeometry)
	}
	return models.Position{Latitude: c[0], Longitude: c[1]}, nil
}

func (g *geometry) displayName() string {
	if g.Name == "" {
		return "Unnamed"
	}
	return g.Name
}

// PointInPolygon is a planar ray-casting test over a ring of [lat, lon]
// vertices. The ring may be open or closed.
func PointInPolygon(p models.Position, ring [][2]float64) bool {
	lat, lon := p.Latitude, p.Longitude
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		lat1, lon1 := ring[i][0], ring[i][1]
		lat2, lon2 := ring[j][0], ring[j][1]
		if (lon1 > lon) != (lon2 > lon) &&
			lat < (lat2-lat1)*(lon-lon1)/(lon2-lon1)+lat1 {
			inside = !inside
		}
	}
	return inside
}

// HaversineMeters is the great-circle distance between two positions.
func HaversineMeters(a, b models.Position) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
