package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog"
)

// DefaultOverlapThreshold is the minimum intersection ratio for a bounding
// box overlap match.
const DefaultOverlapThreshold = 0.8

// indexEntry caches the screen-space footprint of one feature.
type indexEntry struct {
	feature  *Feature
	bound    orb.Bound
	centroid orb.Point
}

// SpatialIndex answers point containment, box overlap, and nearest-county
// queries against a feature collection viewed through a MapView. Screen
// bounds and centroids are cached per feature; the index is rebuilt
// wholesale whenever the collection, projection, or transform changes.
type SpatialIndex struct {
	view    *MapView
	fc      *FeatureCollection
	entries []indexEntry
	log     zerolog.Logger
}

// NewSpatialIndex builds an index over the collection as seen through the
// view. Features whose geometry cannot be projected are skipped.
func NewSpatialIndex(view *MapView, fc *FeatureCollection, log zerolog.Logger) *SpatialIndex {
	idx := &SpatialIndex{view: view, fc: fc, log: log}
	idx.Rebuild()
	return idx
}

// Rebuild recomputes every cached bound and centroid. Call after any
// change to the collection, projection, or view transform.
func (s *SpatialIndex) Rebuild() {
	s.entries = s.entries[:0]
	if s.fc == nil {
		return
	}
	for _, f := range s.fc.Features {
		projBound, ok := FeatureBounds(s.view.Projection, f)
		if !ok {
			continue
		}
		centroid, ok := FeatureCentroid(s.view.Projection, f)
		if !ok {
			centroid = projBound.Center()
		}
		t := s.view.Transform
		s.entries = append(s.entries, indexEntry{
			feature:  f,
			bound:    orb.Bound{Min: t.Apply(projBound.Min), Max: t.Apply(projBound.Max)},
			centroid: t.Apply(centroid),
		})
	}
}

// Len reports how many features are indexed.
func (s *SpatialIndex) Len() int {
	return len(s.entries)
}

// PointInFeature returns the first county, in collection order, whose
// polygon contains the lon/lat point. Containment tests the outer ring of
// each polygon; holes are not carved out. Returns nil when no county
// contains the point.
func (s *SpatialIndex) PointInFeature(geo orb.Point) *Feature {
	if s.fc == nil {
		return nil
	}

	var hit *Feature
	for _, f := range s.fc.Features {
		if !geometryContains(f.Geometry, geo) {
			continue
		}
		if hit == nil {
			hit = f
			continue
		}
		// County polygons should tile without overlap; a second match
		// means the source data is suspect.
		s.log.Warn().
			Str("point_in", hit.GeoID()).
			Str("also_in", f.GeoID()).
			Msg("point contained by multiple counties")
	}
	return hit
}

// OverlapMatch pairs a feature with its bounding box intersection ratio.
type OverlapMatch struct {
	Feature *Feature
	Ratio   float64
}

// BoundingBoxOverlap returns the counties whose screen-space bounds overlap
// the query rectangle by strictly more than threshold, ordered by
// descending ratio. The ratio is intersection area over the smaller of the
// two boxes, so a small county fully inside a large query rectangle
// scores 1.
func (s *SpatialIndex) BoundingBoxOverlap(rect orb.Bound, threshold float64) []OverlapMatch {
	var matches []OverlapMatch
	for _, e := range s.entries {
		ratio := overlapRatio(rect, e.bound)
		if ratio > threshold {
			matches = append(matches, OverlapMatch{Feature: e.feature, Ratio: ratio})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Ratio > matches[j].Ratio
	})
	return matches
}

// NearestFeature returns the county whose screen-space centroid is closest
// to the screen point, or nil when none lies within maxDistance pixels.
func (s *SpatialIndex) NearestFeature(screen orb.Point, maxDistance float64) *Feature {
	var nearest *Feature
	best := maxDistance
	for _, e := range s.entries {
		d := planar.Distance(screen, e.centroid)
		if d <= best {
			best = d
			nearest = e.feature
		}
	}
	return nearest
}

// geometryContains tests point containment against the outer rings of a
// polygonal geometry. Non-polygonal geometries never contain a point.
func geometryContains(g *Geometry, p orb.Point) bool {
	if g == nil {
		return false
	}
	switch g.Type {
	case GeometryPolygon:
		rings, err := PolygonRings(g)
		if err != nil || len(rings) == 0 {
			return false
		}
		return ringContains(rings[0], p)
	case GeometryMultiPolygon:
		polys, err := MultiPolygonRings(g)
		if err != nil {
			return false
		}
		for _, rings := range polys {
			if len(rings) > 0 && ringContains(rings[0], p) {
				return true
			}
		}
	}
	return false
}

// ringContains runs the even-odd ray cast. Points on the left and bottom
// edges count as inside, points on the right and top edges as outside, so
// adjacent counties never both claim a shared border point.
func ringContains(ring []orb.Point, p orb.Point) bool {
	inside := false
	x, y := p[0], p[1]
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) {
			intercept := (xj-xi)*(y-yi)/(yj-yi) + xi
			if x < intercept {
				inside = !inside
			}
		}
	}
	return inside
}

// overlapRatio computes intersection area over the smaller box's area.
func overlapRatio(a, b orb.Bound) float64 {
	ix := math.Min(a.Max[0], b.Max[0]) - math.Max(a.Min[0], b.Min[0])
	iy := math.Min(a.Max[1], b.Max[1]) - math.Max(a.Min[1], b.Min[1])
	if ix <= 0 || iy <= 0 {
		return 0
	}
	areaA := (a.Max[0] - a.Min[0]) * (a.Max[1] - a.Min[1])
	areaB := (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
	minArea := math.Min(areaA, areaB)
	if minArea <= 0 {
		return 0
	}
	return (ix * iy) / minArea
}
