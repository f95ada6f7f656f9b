package model

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Region is a closed lon/lat polygon ring. The zero value is not a valid region.
type Region struct {
	ring orb.Ring
}

// NewRegion validates ring and returns a Region holding a private copy of it.
func NewRegion(ring orb.Ring) (Region, error) {
	if len(ring) < 4 {
		return Region{}, invalid("region", "ring needs at least 4 vertices (first = last), got %d", len(ring))
	}
	if !ring.Closed() {
		return Region{}, invalid("region", "ring is not closed")
	}
	for _, p := range ring {
		if p.Lon() < -180 || p.Lon() > 180 || p.Lat() < -90 || p.Lat() > 90 {
			return Region{}, invalid("region", "vertex %v out of lon/lat range", p)
		}
	}
	if math.Abs(planar.Area(ring)) == 0 {
		return Region{}, invalid("region", "polygon has zero area")
	}
	if selfIntersects(ring) {
		return Region{}, invalid("region", "polygon is self-intersecting")
	}
	return Region{ring: ring.Clone()}, nil
}

// ParseRegionGeoJSON accepts a Polygon, a MultiPolygon (first polygon is used)
// or a Feature wrapping either.
func ParseRegionGeoJSON(data []byte) (Region, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Region{}, invalid("region", "malformed GeoJSON: %v", err)
	}

	var g orb.Geometry
	switch header.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Region{}, invalid("region", "malformed GeoJSON feature: %v", err)
		}
		g = f.Geometry
	case "Polygon", "MultiPolygon":
		geom, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return Region{}, invalid("region", "malformed GeoJSON geometry: %v", err)
		}
		g = geom.Geometry()
	default:
		return Region{}, invalid("region", "unsupported GeoJSON type %q", header.Type)
	}

	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return Region{}, invalid("region", "polygon has no rings")
		}
		return NewRegion(v[0])
	case orb.MultiPolygon:
		if len(v) == 0 || len(v[0]) == 0 {
			return Region{}, invalid("region", "multipolygon has no rings")
		}
		return NewRegion(v[0][0])
	default:
		return Region{}, invalid("region", "geometry must be a polygon")
	}
}

// IsZero reports whether r was never initialised.
func (r Region) IsZero() bool { return len(r.ring) == 0 }

// Ring returns a copy of the outer ring.
func (r Region) Ring() orb.Ring { return r.ring.Clone() }

// Polygon returns the region as an orb polygon copy.
func (r Region) Polygon() orb.Polygon { return orb.Polygon{r.ring.Clone()} }

func (r Region) Bound() orb.Bound { return r.ring.Bound() }

// Contains reports whether p lies inside the polygon.
func (r Region) Contains(p orb.Point) bool {
	return planar.RingContains(r.ring, p)
}

// BoundAreaSqDeg is the area of the bounding box in square degrees.
func (r Region) BoundAreaSqDeg() float64 {
	b := r.Bound()
	return math.Abs(b.Top()-b.Bottom()) * math.Abs(b.Right()-b.Left())
}

func (r Region) Centroid() orb.Point {
	c, _ := planar.CentroidArea(r.ring)
	return c
}

func (r Region) MarshalJSON() ([]byte, error) {
	return json.Marshal(geojson.NewGeometry(r.Polygon()))
}

func (r *Region) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRegionGeoJSON(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Region) String() string {
	b := r.Bound()
	return fmt.Sprintf("region[%.4f,%.4f,%.4f,%.4f]", b.Left(), b.Bottom(), b.Right(), b.Top())
}

// selfIntersects checks every pair of non-adjacent edges.
func selfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}
