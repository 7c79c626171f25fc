// Package geo provides the geographic primitives used by the viewport engine
// and the notification fanout: bounding boxes, haversine distances, segment
// containment, and grid snapping. All math is delegated to paulmach/orb;
// this package only adds the validation and conventions the API needs.
//
// Known limitation: bounding boxes are plain min/max comparisons on latitude
// and longitude. Boxes crossing the antimeridian are rejected by Validate
// rather than wrapped.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	orbgeo "github.com/paulmach/orb/geo"
)

// Bounds is a geographic bounding box in WGS84 degrees.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Valid reports whether the bounds are well-formed: coordinates in range,
// south < north, and west < east (no antimeridian wraparound).
func (b Bounds) Valid() bool {
	if b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return false
	}
	return b.South < b.North && b.West < b.East
}

// Expand grows the bounds by frac of each axis extent on every side,
// clamped to the valid coordinate range. A frac of 0.2 pads a viewport by
// 20% so connections near the edge do not pop in as the user pans.
func (b Bounds) Expand(frac float64) Bounds {
	if frac <= 0 {
		return b
	}
	dLat := (b.North - b.South) * frac
	dLng := (b.East - b.West) * frac
	return Bounds{
		South: math.Max(b.South-dLat, -90),
		West:  math.Max(b.West-dLng, -180),
		North: math.Min(b.North+dLat, 90),
		East:  math.Min(b.East+dLng, 180),
	}
}

// Bound converts to an orb.Bound (orb points are (lng, lat)).
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// ContainsPoint reports whether (lat, lng) lies within the bounds,
// boundary inclusive.
func (b Bounds) ContainsPoint(lat, lng float64) bool {
	return b.Bound().Contains(orb.Point{lng, lat})
}

// SegmentIntersects reports whether the straight segment from (fromLat,
// fromLng) to (toLat, toLng) touches the bounds. Either endpoint inside
// counts; otherwise the segment is clipped against the box and a non-empty
// remainder means it crosses through.
func (b Bounds) SegmentIntersects(fromLat, fromLng, toLat, toLng float64) bool {
	bound := b.Bound()
	from := orb.Point{fromLng, fromLat}
	to := orb.Point{toLng, toLat}
	if bound.Contains(from) || bound.Contains(to) {
		return true
	}
	clipped := clip.LineString(bound, orb.LineString{from, to})
	return len(clipped) > 0
}

// DistanceKm returns the haversine distance between two (lat, lng) points
// in kilometers.
func DistanceKm(aLat, aLng, bLat, bLng float64) float64 {
	return orbgeo.DistanceHaversine(orb.Point{aLng, aLat}, orb.Point{bLng, bLat}) / 1000.0
}

// SegmentBBox returns the min/max latitude and longitude of a segment, the
// denormalized columns the connection store indexes for viewport prefilters.
func SegmentBBox(fromLat, fromLng, toLat, toLng float64) (minLat, maxLat, minLng, maxLng float64) {
	return math.Min(fromLat, toLat), math.Max(fromLat, toLat),
		math.Min(fromLng, toLng), math.Max(fromLng, toLng)
}

// ValidCoord reports whether (lat, lng) is a plausible WGS84 coordinate.
func ValidCoord(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
