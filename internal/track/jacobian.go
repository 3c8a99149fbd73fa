package track

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/geometry"
)

// curvilinearFrame returns the local axes of the plane perpendicular
// to dir: U in the global x-y plane, V completing the right-handed
// frame.
func curvilinearFrame(dir r3.Vec) (u, v r3.Vec) {
	phi, theta := AnglesFromDirection(dir)
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	u = r3.Vec{X: -sinPhi, Y: cosPhi}
	v = r3.Vec{X: -cosTheta * cosPhi, Y: -cosTheta * sinPhi, Z: sinTheta}
	return u, v
}

func setColumn3(m *mat.Dense, row, col int, v r3.Vec) {
	m.Set(row, col, v.X)
	m.Set(row+1, col, v.Y)
	m.Set(row+2, col, v.Z)
}

func setRow3(m *mat.Dense, row, col int, v r3.Vec) {
	m.Set(row, col, v.X)
	m.Set(row, col+1, v.Y)
	m.Set(row, col+2, v.Z)
}

// BoundToFreeJacobian is the 8x6 derivative of the free parameters
// with respect to the bound parameters at the given surface point.
func BoundToFreeJacobian(srf geometry.Surface, v BoundVector) *mat.Dense {
	j := mat.NewDense(FreeSize, BoundSize, nil)
	u, w := srf.LocalFrame(geometry.Local{L0: v[BoundLoc0], L1: v[BoundLoc1]})
	fillBoundToFree(j, u, w, v[BoundPhi], v[BoundTheta])
	return j
}

// CurvilinearToFreeJacobian is the 8x6 derivative for a curvilinear
// start frame defined by dir.
func CurvilinearToFreeJacobian(dir r3.Vec) *mat.Dense {
	j := mat.NewDense(FreeSize, BoundSize, nil)
	u, w := curvilinearFrame(dir)
	phi, theta := AnglesFromDirection(dir)
	fillBoundToFree(j, u, w, phi, theta)
	return j
}

func fillBoundToFree(j *mat.Dense, u, w r3.Vec, phi, theta float64) {
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	setColumn3(j, FreePos0, BoundLoc0, u)
	setColumn3(j, FreePos0, BoundLoc1, w)
	j.Set(FreeTime, BoundTime, 1)
	setColumn3(j, FreeDir0, BoundPhi, r3.Vec{X: -sinPhi * sinTheta, Y: cosPhi * sinTheta})
	setColumn3(j, FreeDir0, BoundTheta, r3.Vec{X: cosPhi * cosTheta, Y: sinPhi * cosTheta, Z: -sinTheta})
	j.Set(FreeQOverP, BoundQOverP, 1)
}

// FreeToBoundJacobian is the 6x8 derivative of the bound parameters
// at srf with respect to the free parameters. The local-position rows
// invert the (possibly non-orthonormal) local frame metric, which
// covers polar frames such as disc surfaces.
func FreeToBoundJacobian(srf geometry.Surface, f FreeVector) (*mat.Dense, error) {
	loc, err := srf.GlobalToLocal(f.Position())
	if err != nil {
		return nil, err
	}
	u, w := srf.LocalFrame(loc)
	j := mat.NewDense(BoundSize, FreeSize, nil)
	fillLocalRows(j, u, w)
	fillAngleRows(j, f.Direction())
	j.Set(BoundTime, FreeTime, 1)
	j.Set(BoundQOverP, FreeQOverP, 1)
	return j, nil
}

// FreeToCurvilinearJacobian is the 6x8 derivative into the
// curvilinear frame of dir.
func FreeToCurvilinearJacobian(dir r3.Vec) *mat.Dense {
	u, w := curvilinearFrame(dir)
	j := mat.NewDense(BoundSize, FreeSize, nil)
	fillLocalRows(j, u, w)
	fillAngleRows(j, dir)
	j.Set(BoundTime, FreeTime, 1)
	j.Set(BoundQOverP, FreeQOverP, 1)
	return j
}

func fillLocalRows(j *mat.Dense, u, w r3.Vec) {
	guu := r3.Dot(u, u)
	guw := r3.Dot(u, w)
	gww := r3.Dot(w, w)
	det := guu*gww - guw*guw
	if det == 0 {
		// degenerate frame (e.g. disc origin): fall back to the
		// unnormalized rows, the covariance is singular there anyway
		setRow3(j, BoundLoc0, FreePos0, u)
		setRow3(j, BoundLoc1, FreePos0, w)
		return
	}
	r0 := r3.Scale(1/det, r3.Sub(r3.Scale(gww, u), r3.Scale(guw, w)))
	r1 := r3.Scale(1/det, r3.Sub(r3.Scale(guu, w), r3.Scale(guw, u)))
	setRow3(j, BoundLoc0, FreePos0, r0)
	setRow3(j, BoundLoc1, FreePos0, r1)
}

func fillAngleRows(j *mat.Dense, dir r3.Vec) {
	phi, theta := AnglesFromDirection(dir)
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	invSinTheta := 0.0
	if sinTheta != 0 {
		invSinTheta = 1 / sinTheta
	}
	setRow3(j, BoundPhi, FreeDir0, r3.Vec{X: -sinPhi * invSinTheta, Y: cosPhi * invSinTheta})
	setRow3(j, BoundTheta, FreeDir0, r3.Vec{X: cosPhi * cosTheta, Y: sinPhi * cosTheta, Z: -sinTheta})
}

// FreeToPathDerivative is the derivative of the path length to reach
// a frame with the given normal with respect to the free position.
// For a curvilinear target pass the direction itself as normal.
func FreeToPathDerivative(normal, dir r3.Vec) *mat.VecDense {
	d := mat.NewVecDense(FreeSize, nil)
	denom := r3.Dot(normal, dir)
	if math.Abs(denom) < 1e-12 {
		return d
	}
	n := r3.Scale(-1/denom, normal)
	d.SetVec(FreePos0, n.X)
	d.SetVec(FreePos1, n.Y)
	d.SetVec(FreePos2, n.Z)
	return d
}
