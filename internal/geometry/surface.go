// Package geometry provides the spatial primitives the propagation
// kernel navigates: surfaces with local 2D frames, volumes bounded by
// boundary surfaces, and a tracking geometry arena built from rows of
// box volumes.
//
// Surfaces expose exact local<->global mappings. Converting a global
// position to local coordinates fails when the position is off the
// surface beyond [OnSurfaceTolerance]; intersection math reports a
// near-parallel ray as unreachable instead of dividing by the
// vanishing denominator.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/material"
)

// OnSurfaceTolerance is the distance [mm] below which a position
// counts as lying on a surface.
const OnSurfaceTolerance = 1e-4

// denominator floor for ray-plane intersections
const parallelEps = 1e-12

var ErrOffSurface = errors.New("geometry: position outside surface local domain")

type SurfaceType int

const (
	Plane SurfaceType = iota
	Disc
)

// Local is a position in a surface's 2D frame. For plane surfaces the
// components are cartesian, for disc surfaces they are (r, phi).
type Local struct {
	L0, L1 float64
}

type IntersectionStatus int

const (
	Unreachable IntersectionStatus = iota
	Reachable
	OnSurface
)

// Intersection is the result of a ray-surface query. PathLength is
// signed along the ray direction.
type Intersection struct {
	Position   r3.Vec
	PathLength float64
	Status     IntersectionStatus
}

type Surface interface {
	Type() SurfaceType
	Center() r3.Vec
	// Normal returns the unit surface normal closest to pos.
	Normal(pos r3.Vec) r3.Vec
	LocalToGlobal(loc Local) r3.Vec
	// GlobalToLocal fails with ErrOffSurface when pos is off the
	// surface by more than OnSurfaceTolerance.
	GlobalToLocal(pos r3.Vec) (Local, error)
	InsideBounds(loc Local, tol float64) bool
	// LocalFrame returns the derivatives of the global position with
	// respect to the two local coordinates, evaluated at loc.
	LocalFrame(loc Local) (u, v r3.Vec)
	// Intersect computes the ray intersection from pos along dir.
	// With forceDir set, solutions behind the ray are unreachable.
	// With boundaryCheck set, the intersection point must also fall
	// inside the surface bounds.
	Intersect(pos, dir r3.Vec, forceDir, boundaryCheck bool) Intersection
}

// RectangleBounds limits a plane surface to |l0|<=HalfX, |l1|<=HalfY.
// The zero value means unbounded.
type RectangleBounds struct {
	HalfX, HalfY float64
}

func (b RectangleBounds) unbounded() bool { return b.HalfX <= 0 && b.HalfY <= 0 }

func (b RectangleBounds) inside(loc Local, tol float64) bool {
	if b.unbounded() {
		return true
	}
	return math.Abs(loc.L0) <= b.HalfX+tol && math.Abs(loc.L1) <= b.HalfY+tol
}

// PlaneSurface is a rectangle-bounded plane with an orthonormal local
// frame (axisU, axisV, normal).
type PlaneSurface struct {
	center    r3.Vec
	axisU     r3.Vec
	axisV     r3.Vec
	normal    r3.Vec
	Bounds    RectangleBounds
	Mat       material.Material
	Thickness float64
	Sensitive bool
}

// NewPlaneSurface constructs a plane from its center and normal,
// choosing an arbitrary in-plane frame.
func NewPlaneSurface(center, normal r3.Vec) *PlaneSurface {
	n := r3.Unit(normal)
	// pick the global axis least aligned with n as seed
	seed := r3.Vec{X: 1}
	if math.Abs(n.X) > math.Abs(n.Y) {
		seed = r3.Vec{Y: 1}
	}
	u := r3.Unit(r3.Cross(seed, n))
	v := r3.Cross(n, u)
	return &PlaneSurface{center: center, axisU: u, axisV: v, normal: n}
}

// NewPlaneSurfaceWithAxes constructs a plane from its center and two
// orthonormal in-plane axes.
func NewPlaneSurfaceWithAxes(center, u, v r3.Vec) *PlaneSurface {
	uu := r3.Unit(u)
	vv := r3.Unit(v)
	return &PlaneSurface{center: center, axisU: uu, axisV: vv, normal: r3.Cross(uu, vv)}
}

func (p *PlaneSurface) Type() SurfaceType    { return Plane }
func (p *PlaneSurface) Center() r3.Vec       { return p.center }
func (p *PlaneSurface) Normal(r3.Vec) r3.Vec { return p.normal }

func (p *PlaneSurface) LocalToGlobal(loc Local) r3.Vec {
	return r3.Add(p.center, r3.Add(r3.Scale(loc.L0, p.axisU), r3.Scale(loc.L1, p.axisV)))
}

func (p *PlaneSurface) GlobalToLocal(pos r3.Vec) (Local, error) {
	d := r3.Sub(pos, p.center)
	if math.Abs(r3.Dot(d, p.normal)) > OnSurfaceTolerance {
		return Local{}, ErrOffSurface
	}
	return Local{L0: r3.Dot(d, p.axisU), L1: r3.Dot(d, p.axisV)}, nil
}

func (p *PlaneSurface) InsideBounds(loc Local, tol float64) bool {
	return p.Bounds.inside(loc, tol)
}

func (p *PlaneSurface) LocalFrame(Local) (r3.Vec, r3.Vec) {
	return p.axisU, p.axisV
}

func (p *PlaneSurface) Intersect(pos, dir r3.Vec, forceDir, boundaryCheck bool) Intersection {
	denom := r3.Dot(dir, p.normal)
	if math.Abs(denom) < parallelEps {
		return Intersection{Status: Unreachable}
	}
	s := r3.Dot(r3.Sub(p.center, pos), p.normal) / denom
	if forceDir && s < -OnSurfaceTolerance {
		return Intersection{PathLength: s, Status: Unreachable}
	}
	point := r3.Add(pos, r3.Scale(s, dir))
	if boundaryCheck {
		loc, err := p.GlobalToLocal(point)
		if err != nil || !p.Bounds.inside(loc, OnSurfaceTolerance) {
			return Intersection{Position: point, PathLength: s, Status: Unreachable}
		}
	}
	status := Reachable
	if math.Abs(s) < OnSurfaceTolerance {
		status = OnSurface
	}
	return Intersection{Position: point, PathLength: s, Status: status}
}
