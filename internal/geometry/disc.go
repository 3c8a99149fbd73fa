package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/material"
)

// DiscBounds limits a disc surface to Rmin <= r <= Rmax and, when
// HalfPhi < pi, |phi - AvgPhi| <= HalfPhi.
type DiscBounds struct {
	Rmin, Rmax float64
	AvgPhi     float64
	HalfPhi    float64
}

func (b DiscBounds) inside(loc Local, tol float64) bool {
	if loc.L0 < b.Rmin-tol || (b.Rmax > 0 && loc.L0 > b.Rmax+tol) {
		return false
	}
	if b.HalfPhi <= 0 || b.HalfPhi >= math.Pi {
		return true
	}
	dphi := math.Remainder(loc.L1-b.AvgPhi, 2*math.Pi)
	return math.Abs(dphi) <= b.HalfPhi+tol
}

// DiscSurface is a planar annulus with polar local coordinates
// (r, phi). Its local frame degenerates at r = 0, mirroring the
// coordinate singularity of the polar parameterization.
type DiscSurface struct {
	center    r3.Vec
	axisU     r3.Vec // phi = 0 direction
	axisV     r3.Vec
	normal    r3.Vec
	Bounds    DiscBounds
	Mat       material.Material
	Thickness float64
	Sensitive bool
}

func NewDiscSurface(center, normal r3.Vec, rmin, rmax float64) *DiscSurface {
	p := NewPlaneSurface(center, normal)
	return &DiscSurface{
		center: p.center, axisU: p.axisU, axisV: p.axisV, normal: p.normal,
		Bounds: DiscBounds{Rmin: rmin, Rmax: rmax},
	}
}

func (d *DiscSurface) Type() SurfaceType    { return Disc }
func (d *DiscSurface) Center() r3.Vec       { return d.center }
func (d *DiscSurface) Normal(r3.Vec) r3.Vec { return d.normal }

func (d *DiscSurface) LocalToGlobal(loc Local) r3.Vec {
	x := loc.L0 * math.Cos(loc.L1)
	y := loc.L0 * math.Sin(loc.L1)
	return r3.Add(d.center, r3.Add(r3.Scale(x, d.axisU), r3.Scale(y, d.axisV)))
}

func (d *DiscSurface) GlobalToLocal(pos r3.Vec) (Local, error) {
	rel := r3.Sub(pos, d.center)
	if math.Abs(r3.Dot(rel, d.normal)) > OnSurfaceTolerance {
		return Local{}, ErrOffSurface
	}
	x := r3.Dot(rel, d.axisU)
	y := r3.Dot(rel, d.axisV)
	return Local{L0: math.Hypot(x, y), L1: math.Atan2(y, x)}, nil
}

func (d *DiscSurface) InsideBounds(loc Local, tol float64) bool {
	return d.Bounds.inside(loc, tol)
}

func (d *DiscSurface) LocalFrame(loc Local) (r3.Vec, r3.Vec) {
	sin, cos := math.Sincos(loc.L1)
	u := r3.Add(r3.Scale(cos, d.axisU), r3.Scale(sin, d.axisV))
	v := r3.Scale(loc.L0, r3.Add(r3.Scale(-sin, d.axisU), r3.Scale(cos, d.axisV)))
	return u, v
}

func (d *DiscSurface) Intersect(pos, dir r3.Vec, forceDir, boundaryCheck bool) Intersection {
	denom := r3.Dot(dir, d.normal)
	if math.Abs(denom) < parallelEps {
		return Intersection{Status: Unreachable}
	}
	s := r3.Dot(r3.Sub(d.center, pos), d.normal) / denom
	if forceDir && s < -OnSurfaceTolerance {
		return Intersection{PathLength: s, Status: Unreachable}
	}
	point := r3.Add(pos, r3.Scale(s, dir))
	if boundaryCheck {
		loc, err := d.GlobalToLocal(point)
		if err != nil || !d.Bounds.inside(loc, OnSurfaceTolerance) {
			return Intersection{Position: point, PathLength: s, Status: Unreachable}
		}
	}
	status := Reachable
	if math.Abs(s) < OnSurfaceTolerance {
		status = OnSurface
	}
	return Intersection{Position: point, PathLength: s, Status: status}
}
