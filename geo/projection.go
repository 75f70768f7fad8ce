package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ProjectionName selects one of the California-configured projections.
type ProjectionName string

const (
	// ProjectionAlbers is an equal-area conic, the default: best visual
	// proportions for a state-level overview.
	ProjectionAlbers ProjectionName = "albers"
	// ProjectionMercator matches standard web tile conventions.
	ProjectionMercator ProjectionName = "mercator"
	// ProjectionLambert is a shape-preserving conformal conic.
	ProjectionLambert ProjectionName = "lambert"
)

// CaliforniaBounds is the state's geographic extent in lon/lat.
var CaliforniaBounds = struct {
	Southwest orb.Point
	Northeast orb.Point
	Center    orb.Point
}{
	Southwest: orb.Point{-124.848974, 32.528832},
	Northeast: orb.Point{-114.131211, 42.009518},
	Center:    orb.Point{-119.449444, 37.166111},
}

// MapOptions describes the viewport the projections target.
type MapOptions struct {
	Width  float64
	Height float64
	Margin Margin
}

// Margin is the viewport inset in pixels.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// DefaultMapOptions matches the game's standard canvas.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Width:  1024,
		Height: 768,
		Margin: Margin{Top: 20, Right: 20, Bottom: 20, Left: 20},
	}
}

// rawProjection is a spherical projection in rotated radians, before
// scale and translate are applied. y grows upward; the screen mapping
// flips it.
type rawProjection interface {
	forward(lambda, phi float64) (x, y float64)
	invert(x, y float64) (lambda, phi float64, ok bool)
}

// Projection is an immutable projection value: pure Forward/Inverse with
// the rotation, centering, scale, and translation baked in at
// construction. Switching projections constructs a new value; anything
// derived from the old one (bounds, centroids, the spatial index) must be
// rebuilt against the new value.
type Projection struct {
	name         ProjectionName
	raw          rawProjection
	rotateLambda float64 // radians added to longitude before projecting
	k            float64
	dx, dy       float64
}

// Name reports which projection this value was configured as.
func (p Projection) Name() ProjectionName { return p.name }

// Forward maps a lon/lat point to screen coordinates. Reports ok=false for
// points the projection cannot represent.
func (p Projection) Forward(lonlat orb.Point) (orb.Point, bool) {
	lambda := normalizeLambda(lonlat[0]*math.Pi/180 + p.rotateLambda)
	phi := lonlat[1] * math.Pi / 180

	x, y := p.raw.forward(lambda, phi)
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return orb.Point{}, false
	}
	return orb.Point{p.dx + p.k*x, p.dy - p.k*y}, true
}

// Inverse maps screen coordinates back to lon/lat. Reports ok=false when
// the point lies outside the projection's domain (there is no geographic
// point there, which is not an error).
func (p Projection) Inverse(screen orb.Point) (orb.Point, bool) {
	x := (screen[0] - p.dx) / p.k
	y := (p.dy - screen[1]) / p.k

	lambda, phi, ok := p.raw.invert(x, y)
	if !ok || math.IsNaN(lambda) || math.IsNaN(phi) {
		return orb.Point{}, false
	}

	lon := normalizeLambda(lambda-p.rotateLambda) * 180 / math.Pi
	lat := phi * 180 / math.Pi
	return orb.Point{lon, lat}, true
}

// NewProjection builds one of the three California-configured projections
// for the given viewport.
func NewProjection(name ProjectionName, opts MapOptions) (Projection, error) {
	mapWidth := opts.Width - opts.Margin.Left - opts.Margin.Right
	mapHeight := opts.Height - opts.Margin.Top - opts.Margin.Bottom
	tx := mapWidth / 2
	ty := mapHeight / 2

	switch name {
	case ProjectionAlbers:
		return newProjection(name, newConicEqualArea(34, 40.5), 120, -2, 36.5, 7000, tx, ty), nil
	case ProjectionMercator:
		c := CaliforniaBounds.Center
		return newProjection(name, mercatorRaw{}, 0, c[0], c[1], 3500, tx, ty), nil
	case ProjectionLambert:
		return newProjection(name, newConicConformal(33, 45), 120, -2, 36.5, 6000, tx, ty), nil
	}
	return Projection{}, fmt.Errorf("unknown projection: %q", name)
}

// newProjection bakes rotation, center, scale, and translate into a value.
// The center is given in the rotated coordinate system; the translate
// offsets are chosen so the center projects to (tx, ty).
func newProjection(name ProjectionName, raw rawProjection, rotateDeg, centerLon, centerLat, scale, tx, ty float64) Projection {
	cx, cy := raw.forward(centerLon*math.Pi/180, centerLat*math.Pi/180)
	return Projection{
		name:         name,
		raw:          raw,
		rotateLambda: rotateDeg * math.Pi / 180,
		k:            scale,
		dx:           tx - scale*cx,
		dy:           ty + scale*cy,
	}
}

func normalizeLambda(lambda float64) float64 {
	for lambda > math.Pi {
		lambda -= 2 * math.Pi
	}
	for lambda < -math.Pi {
		lambda += 2 * math.Pi
	}
	return lambda
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// conicEqualAreaRaw implements the Albers equal-area conic.
type conicEqualAreaRaw struct {
	n, c, r0 float64
}

func newConicEqualArea(parallel0, parallel1 float64) conicEqualAreaRaw {
	y0 := parallel0 * math.Pi / 180
	y1 := parallel1 * math.Pi / 180

	sy0 := math.Sin(y0)
	n := (sy0 + math.Sin(y1)) / 2
	c := 1 + sy0*(2*n-sy0)
	return conicEqualAreaRaw{n: n, c: c, r0: math.Sqrt(c) / n}
}

func (p conicEqualAreaRaw) forward(lambda, phi float64) (float64, float64) {
	r := math.Sqrt(p.c-2*p.n*math.Sin(phi)) / p.n
	return r * math.Sin(lambda * p.n), p.r0 - r*math.Cos(lambda*p.n)
}

func (p conicEqualAreaRaw) invert(x, y float64) (float64, float64, bool) {
	r0y := p.r0 - y

	l := math.Atan2(x, math.Abs(r0y)) * sign(r0y)
	if r0y*p.n < 0 {
		l -= math.Pi * sign(x) * sign(r0y)
	}

	sinPhi := (p.c - (x*x+r0y*r0y)*p.n*p.n) / (2 * p.n)
	if math.Abs(sinPhi) > 1 {
		return 0, 0, false
	}
	return l / p.n, math.Asin(sinPhi), true
}

// conicConformalRaw implements the Lambert conformal conic.
type conicConformalRaw struct {
	n, f float64
}

func newConicConformal(parallel0, parallel1 float64) conicConformalRaw {
	y0 := parallel0 * math.Pi / 180
	y1 := parallel1 * math.Pi / 180

	cy0 := math.Cos(y0)
	var n float64
	if y0 == y1 {
		n = math.Sin(y0)
	} else {
		n = math.Log(cy0/math.Cos(y1)) /
			math.Log(math.Tan(math.Pi/4+y1/2)/math.Tan(math.Pi/4+y0/2))
	}
	f := cy0 * math.Pow(math.Tan(math.Pi/4+y0/2), n) / n
	return conicConformalRaw{n: n, f: f}
}

func (p conicConformalRaw) forward(lambda, phi float64) (float64, float64) {
	// Clamp the pole opposite the cone apex; it projects to infinity.
	const eps = 1e-6
	if p.f > 0 {
		if phi < -math.Pi/2+eps {
			phi = -math.Pi/2 + eps
		}
	} else if phi > math.Pi/2-eps {
		phi = math.Pi/2 - eps
	}

	r := p.f / math.Pow(math.Tan(math.Pi/4+phi/2), p.n)
	return r * math.Sin(p.n * lambda), p.f - r*math.Cos(p.n*lambda)
}

func (p conicConformalRaw) invert(x, y float64) (float64, float64, bool) {
	fy := p.f - y
	r := sign(p.n) * math.Sqrt(x*x+fy*fy)
	if r == 0 {
		return 0, 0, false
	}

	l := math.Atan2(x, math.Abs(fy)) * sign(fy)
	if fy*p.n < 0 {
		l -= math.Pi * sign(x) * sign(fy)
	}

	phi := 2*math.Atan(math.Pow(p.f/r, 1/p.n)) - math.Pi/2
	return l / p.n, phi, true
}

// mercatorRaw implements the spherical web-mercator.
type mercatorRaw struct{}

func (mercatorRaw) forward(lambda, phi float64) (float64, float64) {
	return lambda, math.Log(math.Tan((math.Pi/2 + phi) / 2))
}

func (mercatorRaw) invert(x, y float64) (float64, float64, bool) {
	if x < -math.Pi || x > math.Pi {
		return 0, 0, false
	}
	return x, 2*math.Atan(math.Exp(y)) - math.Pi/2, true
}
