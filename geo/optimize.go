package geo

import (
	"encoding/json"
	"fmt"
	"time"
)

// DetailLevel selects a simplification budget for county geometry.
type DetailLevel string

const (
	DetailUltraLow DetailLevel = "ultra-low"
	DetailLow      DetailLevel = "low"
	DetailMedium   DetailLevel = "medium"
	DetailHigh     DetailLevel = "high"
)

// ErrUnknownLevel reports a detail level outside the fixed set.
var ErrUnknownLevel = fmt.Errorf("unknown detail level")

// levelParams maps each level to its simplification tolerance (degrees)
// and per-ring point budget.
type levelParams struct {
	Tolerance float64
	MaxPoints int
}

var simplificationLevels = map[DetailLevel]levelParams{
	DetailUltraLow: {Tolerance: 0.05, MaxPoints: 50},
	DetailLow:      {Tolerance: 0.01, MaxPoints: 100},
	DetailMedium:   {Tolerance: 0.005, MaxPoints: 200},
	DetailHigh:     {Tolerance: 0.001, MaxPoints: 500},
}

// detailOrder lists levels from coarsest to finest.
var detailOrder = []DetailLevel{DetailUltraLow, DetailLow, DetailMedium, DetailHigh}

// ParseDetailLevel validates a level string from config or a request.
func ParseDetailLevel(s string) (DetailLevel, error) {
	level := DetailLevel(s)
	if _, ok := simplificationLevels[level]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return level, nil
}

// LowerLevel returns the next-coarser detail level, or "" when the level is
// already the coarsest.
func LowerLevel(level DetailLevel) DetailLevel {
	for i, l := range detailOrder {
		if l == level && i > 0 {
			return detailOrder[i-1]
		}
	}
	return ""
}

// OptimalDetailLevel picks a detail level for a zoom factor.
func OptimalDetailLevel(zoom float64) DetailLevel {
	switch {
	case zoom <= 5:
		return DetailUltraLow
	case zoom <= 7:
		return DetailLow
	case zoom <= 9:
		return DetailMedium
	default:
		return DetailHigh
	}
}

// essentialProperties is the attribute allow-list kept after optimization.
// An allow-list rather than a blocklist, so heavier fields introduced by a
// future data source never leak into the optimized bundle.
var essentialProperties = []string{
	"GEOID", "NAME", "NAMELSAD", "ALAND", "AWATER",
	"INTPTLAT", "INTPTLON",
}

// OptimizeCollection simplifies every feature's geometry at the given
// detail level and strips non-essential properties. The feature count is
// preserved; only geometry shrinks. The returned collection carries
// before/after size metadata.
func OptimizeCollection(fc *FeatureCollection, level DetailLevel) (*FeatureCollection, error) {
	params, ok := simplificationLevels[level]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	start := time.Now()
	originalSize := serializedSize(fc)

	out := NewFeatureCollection()
	for _, f := range fc.Features {
		out.AddFeature(optimizeFeature(f, params.Tolerance, params.MaxPoints))
	}

	optimizedSize := serializedSize(out)
	meta := &Metadata{
		OptimizationLevel:     string(level),
		Tolerance:             params.Tolerance,
		MaxPoints:             params.MaxPoints,
		OriginalFeatureCount:  len(fc.Features),
		OptimizedFeatureCount: len(out.Features),
		ProcessingTimeMS:      float64(time.Since(start).Microseconds()) / 1000.0,
		OriginalSize:          originalSize,
		OptimizedSize:         optimizedSize,
	}
	if optimizedSize > 0 {
		meta.CompressionRatio = float64(originalSize) / float64(optimizedSize)
	}
	out.Metadata = meta

	return out, nil
}

func optimizeFeature(f *Feature, tolerance float64, maxPoints int) *Feature {
	out := &Feature{
		Type:       f.Type,
		ID:         f.ID,
		Geometry:   optimizeGeometry(f.Geometry, tolerance, maxPoints),
		Properties: reduceProperties(f.Properties),
	}
	return out
}

// optimizeGeometry dispatches simplification per geometry type. Every ring
// of a Polygon (outer boundary and holes alike) is simplified
// independently. Geometry types without a branch pass through unmodified.
func optimizeGeometry(geom *Geometry, tolerance float64, maxPoints int) *Geometry {
	if geom == nil {
		return nil
	}

	switch geom.Type {
	case GeometryPolygon:
		rings, err := PolygonRings(geom)
		if err != nil {
			return geom
		}
		for i, r := range rings {
			rings[i] = Simplify(r, tolerance, maxPoints)
		}
		return RingsToPolygon(rings)

	case GeometryMultiPolygon:
		polys, err := MultiPolygonRings(geom)
		if err != nil {
			return geom
		}
		for i, rings := range polys {
			for j, r := range rings {
				polys[i][j] = Simplify(r, tolerance, maxPoints)
			}
		}
		return RingsToMultiPolygon(polys)

	case GeometryLineString:
		pts, err := LineStringPoints(geom)
		if err != nil {
			return geom
		}
		return PointsToLineString(Simplify(pts, tolerance, maxPoints))

	case GeometryMultiLineString:
		lines, err := MultiLineStringLines(geom)
		if err != nil {
			return geom
		}
		for i, l := range lines {
			lines[i] = Simplify(l, tolerance, maxPoints)
		}
		return LinesToMultiLineString(lines)

	case GeometryPoint, GeometryMultiPoint:
		return geom
	}

	return geom
}

// reduceProperties keeps only the allow-listed attributes.
func reduceProperties(props map[string]interface{}) map[string]interface{} {
	reduced := make(map[string]interface{}, len(essentialProperties))
	for _, key := range essentialProperties {
		if v, ok := props[key]; ok {
			reduced[key] = v
		}
	}
	return reduced
}

// serializedSize measures a value's JSON byte length. An approximation used
// only for the cache's soft eviction policy and optimization metadata, not
// exact memory accounting.
func serializedSize(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// ManifestEntry describes recommended usage for one detail level.
type ManifestEntry struct {
	Level       DetailLevel `json:"level"`
	Tolerance   float64     `json:"tolerance"`
	MaxPoints   int         `json:"maxPoints"`
	Recommended string      `json:"recommendedUsage"`
}

// Manifest returns the advisory level table, coarsest first.
func Manifest() []ManifestEntry {
	usage := map[DetailLevel]string{
		DetailUltraLow: "Initial load, overview zoom levels 0-4",
		DetailLow:      "Overview and navigation, zoom levels 5-6",
		DetailMedium:   "Interactive selection, zoom levels 7-8",
		DetailHigh:     "Detailed interaction, zoom levels 9+",
	}

	entries := make([]ManifestEntry, 0, len(detailOrder))
	for _, level := range detailOrder {
		p := simplificationLevels[level]
		entries = append(entries, ManifestEntry{
			Level:       level,
			Tolerance:   p.Tolerance,
			MaxPoints:   p.MaxPoints,
			Recommended: usage[level],
		})
	}
	return entries
}
