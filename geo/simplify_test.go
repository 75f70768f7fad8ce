package geo

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestSimplify_ShortSequenceUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		points []orb.Point
	}{
		{"empty", nil},
		{"single", []orb.Point{{1, 1}}},
		{"pair", []orb.Point{{0, 0}, {1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Simplify(tt.points, 0.01, 100)
			if len(got) != len(tt.points) {
				t.Errorf("Simplify() returned %d points, want %d", len(got), len(tt.points))
			}
		})
	}
}

func TestSimplify_CollinearCollapse(t *testing.T) {
	// Ten points on a straight line collapse to the endpoints.
	points := make([]orb.Point, 10)
	for i := range points {
		points[i] = orb.Point{float64(i), float64(i) * 2}
	}

	got := Simplify(points, 0.001, 0)
	if len(got) != 2 {
		t.Fatalf("collinear line simplified to %d points, want 2", len(got))
	}
	if got[0] != points[0] || got[1] != points[len(points)-1] {
		t.Errorf("endpoints not preserved: got %v and %v", got[0], got[1])
	}
}

func TestSimplify_CollinearZeroTolerance(t *testing.T) {
	// Exactly collinear interior points with tolerance zero must still
	// collapse and terminate: the max distance is 0, never above the
	// tolerance, so the split index alone cannot drive the recursion.
	points := []orb.Point{{0, 0}, {1, 3}, {2, 6}, {3, 9}, {4, 12}}

	got := Simplify(points, 0, 0)
	if len(got) != 2 {
		t.Fatalf("collinear run at tolerance 0 simplified to %d points, want 2", len(got))
	}
	if got[0] != points[0] || got[1] != points[len(points)-1] {
		t.Errorf("endpoints not preserved: got %v and %v", got[0], got[1])
	}
}

func TestSimplify_Idempotent(t *testing.T) {
	// Simplifying an already-simplified sequence changes nothing.
	points := make([]orb.Point, 60)
	for i := range points {
		y := 0.0
		if i%3 == 1 {
			y = float64(i%11) * 0.02
		}
		points[i] = orb.Point{float64(i) * 0.1, y}
	}

	once := Simplify(points, 0.005, 100)
	if len(once) >= len(points) {
		t.Fatalf("first pass kept %d of %d points, nothing to verify", len(once), len(points))
	}
	twice := Simplify(once, 0.005, 100)
	if len(twice) != len(once) {
		t.Fatalf("second pass changed length: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("point %d changed: %v then %v", i, once[i], twice[i])
		}
	}
}

func TestSimplify_KeepsSignificantVertex(t *testing.T) {
	// A right angle well above tolerance must survive.
	points := []orb.Point{{0, 0}, {5, 0}, {5, 5}}

	got := Simplify(points, 0.5, 0)
	if len(got) != 3 {
		t.Fatalf("corner simplified to %d points, want 3", len(got))
	}
	if got[1] != (orb.Point{5, 0}) {
		t.Errorf("corner vertex dropped, got %v", got)
	}
}

func TestSimplify_ToleranceMonotonic(t *testing.T) {
	// Wavy line: higher tolerance never yields more points.
	points := make([]orb.Point, 50)
	for i := range points {
		y := 0.0
		if i%2 == 1 {
			y = float64(i%5) * 0.1
		}
		points[i] = orb.Point{float64(i), y}
	}

	prev := len(points)
	for _, tol := range []float64{0.001, 0.005, 0.01, 0.05, 1.0} {
		got := Simplify(points, tol, 0)
		if len(got) > prev {
			t.Errorf("tolerance %v produced %d points, more than previous %d", tol, len(got), prev)
		}
		prev = len(got)
	}
}

func TestSimplify_StridePrePass(t *testing.T) {
	points := make([]orb.Point, 1000)
	for i := range points {
		points[i] = orb.Point{float64(i), float64(i % 7)}
	}

	got := Simplify(points, 0, 100)
	// Tolerance zero keeps every point that deviates from its chord at
	// all, so the count reflects the stride reduction (plus the forced
	// last point) minus any exactly collinear leftovers.
	if len(got) > 102 {
		t.Errorf("stride pre-pass kept %d points, want at most ~100", len(got))
	}
	if got[len(got)-1] != points[len(points)-1] {
		t.Errorf("last point not preserved: got %v, want %v", got[len(got)-1], points[len(points)-1])
	}
}

func TestSimplify_RingStaysClosed(t *testing.T) {
	// A dense closed ring must keep identical first and last points
	// through both stride reduction and simplification.
	ring := make([]orb.Point, 0, 201)
	for i := 0; i <= 200; i++ {
		frac := float64(i) / 200
		ring = append(ring, orb.Point{frac * 4, frac * frac})
	}
	ring[len(ring)-1] = ring[0]

	got := Simplify(ring, 0.01, 50)
	if got[0] != got[len(got)-1] {
		t.Errorf("ring opened: first %v, last %v", got[0], got[len(got)-1])
	}
}

func TestReducePoints_TargetFloor(t *testing.T) {
	points := []orb.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}

	got := reducePoints(points, 0.1)
	// Target below 3 clamps to 3; the forced last point may add one.
	if len(got) < 3 || len(got) > 4 {
		t.Errorf("reducePoints() kept %d points, want 3 or 4", len(got))
	}
}

func TestSegmentDistance(t *testing.T) {
	tests := []struct {
		name     string
		pt, a, b orb.Point
		want     float64
	}{
		{"perpendicular", orb.Point{1, 1}, orb.Point{0, 0}, orb.Point{2, 0}, 1},
		{"beyond end clamps", orb.Point{4, 0}, orb.Point{0, 0}, orb.Point{2, 0}, 2},
		{"before start clamps", orb.Point{-3, 4}, orb.Point{0, 0}, orb.Point{2, 0}, 5},
		{"degenerate segment", orb.Point{3, 4}, orb.Point{0, 0}, orb.Point{0, 0}, 5},
		{"on segment", orb.Point{1, 0}, orb.Point{0, 0}, orb.Point{2, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := segmentDistance(tt.pt, tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("segmentDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}
