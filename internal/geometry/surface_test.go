package geometry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestPlaneLocalGlobalRoundTrip(t *testing.T) {
	p := NewPlaneSurfaceWithAxes(r3.Vec{X: 2, Y: 3, Z: 4}, r3.Vec{Y: 1}, r3.Vec{Z: 1})

	loc := Local{L0: 1.5, L1: -2.5}
	pos := p.LocalToGlobal(loc)
	back, err := p.GlobalToLocal(pos)
	if err != nil {
		t.Fatal(err)
	}
	if !near(back.L0, loc.L0, 1e-12) || !near(back.L1, loc.L1, 1e-12) {
		t.Fatalf("round trip gave %+v", back)
	}
}

func TestPlaneGlobalToLocalOffSurface(t *testing.T) {
	p := NewPlaneSurface(r3.Vec{}, r3.Vec{Z: 1})
	if _, err := p.GlobalToLocal(r3.Vec{Z: 1}); err != ErrOffSurface {
		t.Fatalf("want ErrOffSurface, got %v", err)
	}
	// within tolerance still resolves
	if _, err := p.GlobalToLocal(r3.Vec{Z: OnSurfaceTolerance / 2}); err != nil {
		t.Fatal(err)
	}
}

func TestPlaneIntersect(t *testing.T) {
	p := NewPlaneSurfaceWithAxes(r3.Vec{X: 10}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
	pos := r3.Vec{}
	dir := r3.Vec{X: 1}

	ix := p.Intersect(pos, dir, true, false)
	if ix.Status != Reachable {
		t.Fatalf("status %v", ix.Status)
	}
	if !near(ix.PathLength, 10, 1e-12) {
		t.Fatalf("path %g", ix.PathLength)
	}
	if !near(ix.Position.X, 10, 1e-12) {
		t.Fatalf("position %v", ix.Position)
	}

	// behind the ray with forced direction
	ix = p.Intersect(r3.Vec{X: 20}, dir, true, false)
	if ix.Status != Unreachable {
		t.Fatalf("status %v", ix.Status)
	}
	// without forcing, the negative solution is reported
	ix = p.Intersect(r3.Vec{X: 20}, dir, false, false)
	if ix.Status != Reachable || !near(ix.PathLength, -10, 1e-12) {
		t.Fatalf("status %v path %g", ix.Status, ix.PathLength)
	}

	// parallel ray
	ix = p.Intersect(pos, r3.Vec{Y: 1}, true, false)
	if ix.Status != Unreachable {
		t.Fatalf("status %v", ix.Status)
	}
}

func TestPlaneIntersectBoundaryCheck(t *testing.T) {
	p := NewPlaneSurfaceWithAxes(r3.Vec{X: 10}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
	p.Bounds = RectangleBounds{HalfX: 1, HalfY: 1}

	inside := p.Intersect(r3.Vec{}, r3.Vec{X: 1}, true, true)
	if inside.Status != Reachable {
		t.Fatalf("status %v", inside.Status)
	}

	outside := p.Intersect(r3.Vec{Y: 5}, r3.Vec{X: 1}, true, true)
	if outside.Status != Unreachable {
		t.Fatalf("status %v", outside.Status)
	}
}

func TestPlaneIntersectOnSurface(t *testing.T) {
	p := NewPlaneSurface(r3.Vec{}, r3.Vec{X: 1})
	ix := p.Intersect(r3.Vec{}, r3.Vec{X: 1}, true, false)
	if ix.Status != OnSurface {
		t.Fatalf("status %v", ix.Status)
	}
}

func TestDiscLocalGlobalRoundTrip(t *testing.T) {
	d := NewDiscSurface(r3.Vec{Z: 3}, r3.Vec{Z: 1}, 5, 50)

	loc := Local{L0: 20, L1: 1.2}
	pos := d.LocalToGlobal(loc)
	back, err := d.GlobalToLocal(pos)
	if err != nil {
		t.Fatal(err)
	}
	if !near(back.L0, loc.L0, 1e-9) || !near(back.L1, loc.L1, 1e-9) {
		t.Fatalf("round trip gave %+v", back)
	}
}

func TestDiscBounds(t *testing.T) {
	d := NewDiscSurface(r3.Vec{}, r3.Vec{Z: 1}, 5, 50)
	if d.InsideBounds(Local{L0: 3}, 0) {
		t.Fatal("inside below rmin")
	}
	if !d.InsideBounds(Local{L0: 30}, 0) {
		t.Fatal("outside within annulus")
	}
	if d.InsideBounds(Local{L0: 60}, 0) {
		t.Fatal("inside beyond rmax")
	}

	sector := NewDiscSurface(r3.Vec{}, r3.Vec{Z: 1}, 0, 50)
	sector.Bounds.HalfPhi = 0.5
	if !sector.InsideBounds(Local{L0: 10, L1: 0.3}, 0) {
		t.Fatal("outside within sector")
	}
	if sector.InsideBounds(Local{L0: 10, L1: 1.2}, 0) {
		t.Fatal("inside beyond sector")
	}
}

func TestDiscLocalFrameDegeneratesAtOrigin(t *testing.T) {
	d := NewDiscSurface(r3.Vec{}, r3.Vec{Z: 1}, 0, 50)

	_, v := d.LocalFrame(Local{L0: 0})
	if r3.Norm(v) != 0 {
		t.Fatalf("phi axis should vanish at r=0, got %v", v)
	}

	u, v := d.LocalFrame(Local{L0: 10, L1: 0.4})
	if !near(r3.Norm(u), 1, 1e-12) {
		t.Fatalf("radial axis not unit: %v", u)
	}
	if !near(r3.Norm(v), 10, 1e-9) {
		t.Fatalf("phi axis should scale with r: %v", v)
	}
	if !near(r3.Dot(u, v), 0, 1e-9) {
		t.Fatal("frame axes not orthogonal")
	}
}
