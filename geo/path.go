package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ProjectGeometry maps every coordinate of a geometry through the
// projection, producing a screen-space orb geometry. Points the projection
// cannot represent are dropped from their ring or line.
func ProjectGeometry(proj Projection, geom *Geometry) orb.Geometry {
	g := OrbGeometry(geom)
	if g == nil {
		return nil
	}

	switch t := g.(type) {
	case orb.Point:
		p, ok := proj.Forward(t)
		if !ok {
			return nil
		}
		return p

	case orb.LineString:
		return orb.LineString(projectPoints(proj, t))

	case orb.MultiLineString:
		mls := make(orb.MultiLineString, len(t))
		for i, ls := range t {
			mls[i] = orb.LineString(projectPoints(proj, ls))
		}
		return mls

	case orb.Polygon:
		return projectPolygon(proj, t)

	case orb.MultiPolygon:
		mp := make(orb.MultiPolygon, len(t))
		for i, poly := range t {
			mp[i] = projectPolygon(proj, poly)
		}
		return mp
	}

	return nil
}

func projectPolygon(proj Projection, poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		out[i] = orb.Ring(projectPoints(proj, ring))
	}
	return out
}

func projectPoints(proj Projection, pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		sp, ok := proj.Forward(p)
		if !ok {
			continue
		}
		out = append(out, sp)
	}
	return out
}

// FeatureBounds computes a feature's screen-space bounding box under the
// projection. Bounds are projection-dependent; recompute after a switch.
func FeatureBounds(proj Projection, f *Feature) (orb.Bound, bool) {
	g := ProjectGeometry(proj, f.Geometry)
	if g == nil {
		return orb.Bound{}, false
	}
	return g.Bound(), true
}

// FeatureCentroid computes a feature's screen-space area centroid under
// the projection. Non-areal geometries fall back to the bound center.
func FeatureCentroid(proj Projection, f *Feature) (orb.Point, bool) {
	g := ProjectGeometry(proj, f.Geometry)
	if g == nil {
		return orb.Point{}, false
	}

	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		c, area := planar.CentroidArea(g)
		if area != 0 {
			return c, true
		}
	}
	return g.Bound().Center(), true
}

// FeaturePaths returns a feature's projected rings and lines as flat point
// sequences, ready to be drawn as screen paths.
func FeaturePaths(proj Projection, f *Feature) [][]orb.Point {
	g := ProjectGeometry(proj, f.Geometry)
	if g == nil {
		return nil
	}

	var paths [][]orb.Point
	switch t := g.(type) {
	case orb.LineString:
		paths = append(paths, t)
	case orb.MultiLineString:
		for _, ls := range t {
			paths = append(paths, ls)
		}
	case orb.Polygon:
		for _, ring := range t {
			paths = append(paths, ring)
		}
	case orb.MultiPolygon:
		for _, poly := range t {
			for _, ring := range poly {
				paths = append(paths, ring)
			}
		}
	}
	return paths
}
