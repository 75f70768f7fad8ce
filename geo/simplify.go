package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Simplify reduces a coordinate sequence using adaptive Douglas-Peucker
// simplification. Sequences with at most two points are returned unchanged.
// When a sequence exceeds maxPoints it is first reduced by uniform stride
// sampling, then simplified with the given tolerance; otherwise
// Douglas-Peucker runs directly.
//
// The stride pre-pass always keeps the final point, so closed rings stay
// closed and open lines keep their endpoint. Tolerance is in coordinate
// units (degrees for geographic rings).
func Simplify(points []orb.Point, tolerance float64, maxPoints int) []orb.Point {
	if len(points) <= 2 {
		return points
	}

	if maxPoints > 0 && len(points) > maxPoints {
		points = reducePoints(points, float64(maxPoints)/float64(len(points)))
	}

	return douglasPeucker(points, tolerance)
}

// reducePoints thins a sequence to roughly len*ratio points by uniform
// stride sampling. The final point is force-included even when the stride
// would skip it.
func reducePoints(points []orb.Point, ratio float64) []orb.Point {
	if ratio >= 1 {
		return points
	}

	targetCount := int(math.Floor(float64(len(points)) * ratio))
	if targetCount < 3 {
		targetCount = 3
	}
	step := float64(len(points)) / float64(targetCount)

	reduced := make([]orb.Point, 0, targetCount+1)
	for i := 0.0; i < float64(len(points)); i += step {
		reduced = append(reduced, points[int(math.Floor(i))])
	}

	last := points[len(points)-1]
	if reduced[len(reduced)-1] != last {
		reduced = append(reduced, last)
	}

	return reduced
}

// douglasPeucker recursively collapses near-collinear spans. Ties on the
// maximum distance resolve to the first point in index order.
func douglasPeucker(points []orb.Point, tolerance float64) []orb.Point {
	if len(points) <= 2 {
		return points
	}

	first := points[0]
	last := points[len(points)-1]

	maxDist := 0.0
	maxIndex := 0
	for i := 1; i < len(points)-1; i++ {
		d := segmentDistance(points[i], first, last)
		if d > maxDist {
			maxDist = d
			maxIndex = i
		}
	}

	// maxIndex == 0 means every interior point sits exactly on the
	// segment; collapse, or the recursion below never shrinks its input.
	if maxDist < tolerance || maxIndex == 0 {
		return []orb.Point{first, last}
	}

	left := douglasPeucker(points[:maxIndex+1], tolerance)
	right := douglasPeucker(points[maxIndex:], tolerance)

	// Drop the duplicated split point at the join.
	result := make([]orb.Point, 0, len(left)+len(right)-1)
	result = append(result, left[:len(left)-1]...)
	result = append(result, right...)
	return result
}

// segmentDistance returns the distance from pt to the segment [a, b].
// The projection parameter is clamped to the segment, so points beyond
// either endpoint measure to that endpoint. A degenerate segment (a == b)
// measures plain Euclidean distance to a.
func segmentDistance(pt, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]

	if dx == 0 && dy == 0 {
		return math.Hypot(pt[0]-a[0], pt[1]-a[1])
	}

	t := ((pt[0]-a[0])*dx + (pt[1]-a[1])*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	px := a[0] + t*dx
	py := a[1] + t*dy
	return math.Hypot(pt[0]-px, pt[1]-py)
}
