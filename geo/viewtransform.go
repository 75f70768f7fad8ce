package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// MinScale and MaxScale bound the interactive zoom range.
	MinScale = 0.5
	MaxScale = 20
	// MaxFeatureZoom caps how far a single-feature fit may zoom in.
	MaxFeatureZoom = 8
	// DefaultFitPadding leaves a margin around fitted content.
	DefaultFitPadding = 0.1
)

var (
	// ErrCountyNotFound reports an identifier with no matching feature.
	ErrCountyNotFound = fmt.Errorf("county not found")
	// ErrNoData reports an operation that needs loaded features.
	ErrNoData = fmt.Errorf("no feature data loaded")
)

// ViewTransform is the screen-space transform applied on top of the active
// projection: scale K and translate (Tx, Ty).
type ViewTransform struct {
	K  float64 `json:"k"`
	Tx float64 `json:"tx"`
	Ty float64 `json:"ty"`
}

// IdentityTransform returns the no-op view transform.
func IdentityTransform() ViewTransform {
	return ViewTransform{K: 1}
}

// Apply maps a projected point through the transform.
func (t ViewTransform) Apply(p orb.Point) orb.Point {
	return orb.Point{p[0]*t.K + t.Tx, p[1]*t.K + t.Ty}
}

// Unapply maps a screen point back to projected space.
func (t ViewTransform) Unapply(p orb.Point) orb.Point {
	return orb.Point{(p[0] - t.Tx) / t.K, (p[1] - t.Ty) / t.K}
}

// ClampScale limits a scale factor to the interactive zoom range. Fit
// computations that land outside the range are still clamped.
func ClampScale(k float64) float64 {
	if k < MinScale {
		return MinScale
	}
	if k > MaxScale {
		return MaxScale
	}
	return k
}

// MapView combines the active projection and the live view transform. All
// screen/geo conversions are pure functions of the pair; there is no other
// implicit state.
type MapView struct {
	Projection Projection
	Options    MapOptions
	Transform  ViewTransform
}

// NewMapView creates a view with the identity transform.
func NewMapView(proj Projection, opts MapOptions) *MapView {
	return &MapView{
		Projection: proj,
		Options:    opts,
		Transform:  IdentityTransform(),
	}
}

// SetTransform installs a transform, clamping its scale to the
// interactive range.
func (v *MapView) SetTransform(t ViewTransform) {
	t.K = ClampScale(t.K)
	v.Transform = t
}

// SetProjection swaps the projection. Bounds, centroids, and any spatial
// index derived from the old projection are stale and must be rebuilt.
func (v *MapView) SetProjection(proj Projection) {
	v.Projection = proj
}

// ToScreen maps a lon/lat point to screen coordinates through the
// projection and the live transform.
func (v *MapView) ToScreen(geo orb.Point) (orb.Point, bool) {
	p, ok := v.Projection.Forward(geo)
	if !ok {
		return orb.Point{}, false
	}
	return v.Transform.Apply(p), true
}

// ToGeo maps screen coordinates back to lon/lat. Reports ok=false when the
// point has no geographic preimage under the projection.
func (v *MapView) ToGeo(screen orb.Point) (orb.Point, bool) {
	return v.Projection.Inverse(v.Transform.Unapply(screen))
}

// ZoomToFeature computes the transform that frames one county with the
// given padding fraction, capped at MaxFeatureZoom and clamped to the
// interactive range. The transform is returned, not applied; the caller
// decides whether and how to animate it.
func (v *MapView) ZoomToFeature(fc *FeatureCollection, id string, padding float64) (ViewTransform, error) {
	if fc == nil || len(fc.Features) == 0 {
		return ViewTransform{}, ErrNoData
	}

	var feature *Feature
	for _, f := range fc.Features {
		if f.GeoID() == id {
			feature = f
			break
		}
	}
	if feature == nil {
		return ViewTransform{}, fmt.Errorf("%w: %s", ErrCountyNotFound, id)
	}

	bound, ok := FeatureBounds(v.Projection, feature)
	if !ok {
		return ViewTransform{}, fmt.Errorf("county %s has no projectable geometry", id)
	}

	return v.fitTransform(bound, padding, MaxFeatureZoom), nil
}

// ZoomToFitAll computes the transform framing every loaded feature. No
// feature-zoom cap applies, only the interactive clamp.
func (v *MapView) ZoomToFitAll(fc *FeatureCollection, padding float64) (ViewTransform, error) {
	if fc == nil || len(fc.Features) == 0 {
		return ViewTransform{}, ErrNoData
	}

	var union orb.Bound
	first := true
	for _, f := range fc.Features {
		b, ok := FeatureBounds(v.Projection, f)
		if !ok {
			continue
		}
		if first {
			union = b
			first = false
		} else {
			union = union.Union(b)
		}
	}
	if first {
		return ViewTransform{}, ErrNoData
	}

	return v.fitTransform(union, padding, math.Inf(1)), nil
}

// fitTransform chooses scale and translate so the bound's center maps to
// the viewport center at the largest scale that keeps the padded bound
// visible.
func (v *MapView) fitTransform(bound orb.Bound, padding, maxZoom float64) ViewTransform {
	width := v.Options.Width
	height := v.Options.Height

	dx := bound.Max[0] - bound.Min[0]
	dy := bound.Max[1] - bound.Min[1]
	cx := (bound.Min[0] + bound.Max[0]) / 2
	cy := (bound.Min[1] + bound.Max[1]) / 2

	k := math.Inf(1)
	if span := math.Max(dx/width, dy/height); span > 0 {
		k = (1 - padding) / span
	}
	k = math.Min(maxZoom, k)
	k = ClampScale(k)

	return ViewTransform{
		K:  k,
		Tx: width/2 - k*cx,
		Ty: height/2 - k*cy,
	}
}
