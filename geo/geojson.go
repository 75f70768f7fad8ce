package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// GeometryType represents the GeoJSON geometry type
type GeometryType string

const (
	GeometryPoint           GeometryType = "Point"
	GeometryLineString      GeometryType = "LineString"
	GeometryPolygon         GeometryType = "Polygon"
	GeometryMultiPoint      GeometryType = "MultiPoint"
	GeometryMultiLineString GeometryType = "MultiLineString"
	GeometryMultiPolygon    GeometryType = "MultiPolygon"
)

// Geometry represents a GeoJSON geometry object. Coordinates stay as raw
// JSON until a consumer decodes them for the concrete type; unknown
// geometry types round-trip untouched.
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature represents a GeoJSON feature with geometry and properties.
// For county data the properties carry the Census attribute bag
// (GEOID, NAME, NAMELSAD, ALAND, AWATER, INTPTLAT, INTPTLON).
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	ID         interface{}            `json:"id,omitempty"`
}

// FeatureCollection represents a GeoJSON FeatureCollection, optionally
// annotated with optimization metadata.
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
	Metadata *Metadata  `json:"metadata,omitempty"`
}

// Metadata describes an optimization pass over a collection.
type Metadata struct {
	OptimizationLevel     string  `json:"optimizationLevel"`
	Tolerance             float64 `json:"tolerance"`
	MaxPoints             int     `json:"maxPoints"`
	OriginalFeatureCount  int     `json:"originalFeatureCount"`
	OptimizedFeatureCount int     `json:"optimizedFeatureCount"`
	ProcessingTimeMS      float64 `json:"processingTime"`
	OriginalSize          int     `json:"originalSize"`
	OptimizedSize         int     `json:"optimizedSize"`
	CompressionRatio      float64 `json:"compressionRatio"`
}

// NewFeatureCollection creates a new empty FeatureCollection
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]*Feature, 0),
	}
}

// AddFeature appends a feature to the collection
func (fc *FeatureCollection) AddFeature(f *Feature) {
	fc.Features = append(fc.Features, f)
}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection document.
func ParseFeatureCollection(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected document type %q", fc.Type)
	}
	return &fc, nil
}

// GeoID returns the feature's stable county identifier, or "" if absent.
func (f *Feature) GeoID() string {
	id, _ := f.Properties["GEOID"].(string)
	return id
}

// Name returns the feature's display name, or "" if absent.
func (f *Feature) Name() string {
	name, _ := f.Properties["NAME"].(string)
	return name
}

// decodeRing decodes a single coordinate sequence [[x,y],...].
func decodeRing(raw [][2]float64) []orb.Point {
	ring := make([]orb.Point, len(raw))
	for i, c := range raw {
		ring[i] = orb.Point{c[0], c[1]}
	}
	return ring
}

func encodeRing(ring []orb.Point) [][2]float64 {
	raw := make([][2]float64, len(ring))
	for i, p := range ring {
		raw[i] = [2]float64{p[0], p[1]}
	}
	return raw
}

// PolygonRings decodes a Polygon geometry into its linear rings. The first
// ring is the outer boundary, any others are holes.
func PolygonRings(geom *Geometry) ([][]orb.Point, error) {
	if geom == nil || geom.Type != GeometryPolygon {
		return nil, fmt.Errorf("geometry is not a Polygon")
	}
	var raw [][][2]float64
	if err := json.Unmarshal(geom.Coordinates, &raw); err != nil {
		return nil, fmt.Errorf("decoding polygon coordinates: %w", err)
	}
	rings := make([][]orb.Point, len(raw))
	for i, r := range raw {
		rings[i] = decodeRing(r)
	}
	return rings, nil
}

// MultiPolygonRings decodes a MultiPolygon geometry into its constituent
// polygons, each a slice of rings.
func MultiPolygonRings(geom *Geometry) ([][][]orb.Point, error) {
	if geom == nil || geom.Type != GeometryMultiPolygon {
		return nil, fmt.Errorf("geometry is not a MultiPolygon")
	}
	var raw [][][][2]float64
	if err := json.Unmarshal(geom.Coordinates, &raw); err != nil {
		return nil, fmt.Errorf("decoding multipolygon coordinates: %w", err)
	}
	polys := make([][][]orb.Point, len(raw))
	for i, rings := range raw {
		polys[i] = make([][]orb.Point, len(rings))
		for j, r := range rings {
			polys[i][j] = decodeRing(r)
		}
	}
	return polys, nil
}

// LineStringPoints decodes a LineString geometry's coordinate sequence.
func LineStringPoints(geom *Geometry) ([]orb.Point, error) {
	if geom == nil || geom.Type != GeometryLineString {
		return nil, fmt.Errorf("geometry is not a LineString")
	}
	var raw [][2]float64
	if err := json.Unmarshal(geom.Coordinates, &raw); err != nil {
		return nil, fmt.Errorf("decoding linestring coordinates: %w", err)
	}
	return decodeRing(raw), nil
}

// MultiLineStringLines decodes a MultiLineString geometry's lines.
func MultiLineStringLines(geom *Geometry) ([][]orb.Point, error) {
	if geom == nil || geom.Type != GeometryMultiLineString {
		return nil, fmt.Errorf("geometry is not a MultiLineString")
	}
	var raw [][][2]float64
	if err := json.Unmarshal(geom.Coordinates, &raw); err != nil {
		return nil, fmt.Errorf("decoding multilinestring coordinates: %w", err)
	}
	lines := make([][]orb.Point, len(raw))
	for i, l := range raw {
		lines[i] = decodeRing(l)
	}
	return lines, nil
}

// RingsToPolygon encodes linear rings back into a Polygon geometry.
func RingsToPolygon(rings [][]orb.Point) *Geometry {
	raw := make([][][2]float64, len(rings))
	for i, r := range rings {
		raw[i] = encodeRing(r)
	}
	coords, _ := json.Marshal(raw)
	return &Geometry{Type: GeometryPolygon, Coordinates: coords}
}

// RingsToMultiPolygon encodes polygons (each a slice of rings) back into a
// MultiPolygon geometry.
func RingsToMultiPolygon(polys [][][]orb.Point) *Geometry {
	raw := make([][][][2]float64, len(polys))
	for i, rings := range polys {
		raw[i] = make([][][2]float64, len(rings))
		for j, r := range rings {
			raw[i][j] = encodeRing(r)
		}
	}
	coords, _ := json.Marshal(raw)
	return &Geometry{Type: GeometryMultiPolygon, Coordinates: coords}
}

// PointsToLineString encodes a coordinate sequence into a LineString geometry.
func PointsToLineString(pts []orb.Point) *Geometry {
	coords, _ := json.Marshal(encodeRing(pts))
	return &Geometry{Type: GeometryLineString, Coordinates: coords}
}

// LinesToMultiLineString encodes lines into a MultiLineString geometry.
func LinesToMultiLineString(lines [][]orb.Point) *Geometry {
	raw := make([][][2]float64, len(lines))
	for i, l := range lines {
		raw[i] = encodeRing(l)
	}
	coords, _ := json.Marshal(raw)
	return &Geometry{Type: GeometryMultiLineString, Coordinates: coords}
}

// OrbGeometry converts a Geometry to its orb equivalent for geometric math.
// Returns nil for unsupported or malformed geometries.
func OrbGeometry(geom *Geometry) orb.Geometry {
	if geom == nil {
		return nil
	}

	switch geom.Type {
	case GeometryPoint:
		var c [2]float64
		if err := json.Unmarshal(geom.Coordinates, &c); err != nil {
			return nil
		}
		return orb.Point{c[0], c[1]}

	case GeometryLineString:
		pts, err := LineStringPoints(geom)
		if err != nil {
			return nil
		}
		return orb.LineString(pts)

	case GeometryMultiLineString:
		lines, err := MultiLineStringLines(geom)
		if err != nil {
			return nil
		}
		mls := make(orb.MultiLineString, len(lines))
		for i, l := range lines {
			mls[i] = orb.LineString(l)
		}
		return mls

	case GeometryPolygon:
		rings, err := PolygonRings(geom)
		if err != nil {
			return nil
		}
		poly := make(orb.Polygon, len(rings))
		for i, r := range rings {
			poly[i] = orb.Ring(r)
		}
		return poly

	case GeometryMultiPolygon:
		polys, err := MultiPolygonRings(geom)
		if err != nil {
			return nil
		}
		mp := make(orb.MultiPolygon, len(polys))
		for i, rings := range polys {
			poly := make(orb.Polygon, len(rings))
			for j, r := range rings {
				poly[j] = orb.Ring(r)
			}
			mp[i] = poly
		}
		return mp
	}

	return nil
}

// GeometryBound computes the geographic bounding box of a feature's geometry.
// The bool return reports whether a valid bound was computed.
func GeometryBound(geom *Geometry) (orb.Bound, bool) {
	g := OrbGeometry(geom)
	if g == nil {
		return orb.Bound{}, false
	}
	return g.Bound(), true
}

// GeometryCentroid computes the area centroid of a feature's geometry.
// Polygonal geometries use the area-weighted centroid; lines and points
// fall back to the bound center. The bool return reports validity.
func GeometryCentroid(geom *Geometry) (orb.Point, bool) {
	g := OrbGeometry(geom)
	if g == nil {
		return orb.Point{}, false
	}

	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		c, area := planar.CentroidArea(g)
		if area == 0 {
			return g.Bound().Center(), true
		}
		return c, true
	}
	return g.Bound().Center(), true
}
