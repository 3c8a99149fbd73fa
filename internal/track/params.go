// Package track defines the trajectory parameter model: free states
// in the global frame, bound states in a surface's local frame,
// curvilinear states, the exact conversions between them and the
// Jacobians needed for covariance transport.
package track

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/geometry"
)

// Free parameter indices (global frame).
const (
	FreePos0 = iota
	FreePos1
	FreePos2
	FreeTime
	FreeDir0
	FreeDir1
	FreeDir2
	FreeQOverP
	FreeSize
)

// Bound parameter indices (surface-local frame).
const (
	BoundLoc0 = iota
	BoundLoc1
	BoundPhi
	BoundTheta
	BoundQOverP
	BoundTime
	BoundSize
)

var (
	ErrZeroMomentum = errors.New("track: momentum must be positive")
	ErrZeroDirection = errors.New("track: direction must not vanish")
)

// FreeVector holds the eight free parameters.
type FreeVector [FreeSize]float64

func (f FreeVector) Position() r3.Vec {
	return r3.Vec{X: f[FreePos0], Y: f[FreePos1], Z: f[FreePos2]}
}

func (f FreeVector) Direction() r3.Vec {
	return r3.Vec{X: f[FreeDir0], Y: f[FreeDir1], Z: f[FreeDir2]}
}

func (f *FreeVector) SetPosition(p r3.Vec) {
	f[FreePos0], f[FreePos1], f[FreePos2] = p.X, p.Y, p.Z
}

func (f *FreeVector) SetDirection(d r3.Vec) {
	f[FreeDir0], f[FreeDir1], f[FreeDir2] = d.X, d.Y, d.Z
}

// BoundVector holds the six bound parameters.
type BoundVector [BoundSize]float64

// MomentumFromQOverP recovers the absolute momentum from a signed
// inverse momentum; neutral particles encode 1/p directly.
func MomentumFromQOverP(qop, q float64) float64 {
	if qop == 0 {
		return 0
	}
	if q != 0 {
		return math.Abs(q / qop)
	}
	return math.Abs(1 / qop)
}

// QOverP encodes charge and momentum jointly.
func QOverP(p, q float64) float64 {
	if q != 0 {
		return q / p
	}
	return 1 / p
}

// CurvilinearParameters is a free state together with the implicit
// plane perpendicular to its direction.
type CurvilinearParameters struct {
	Pos  r3.Vec
	Dir  r3.Vec // unit
	P    float64
	Q    float64 // 0 for neutral
	T    float64
	Cov  *mat.SymDense // bound-frame covariance, nil when absent
}

// NewCurvilinear normalizes the direction on construction; it need
// not be pre-normalized.
func NewCurvilinear(pos, dir r3.Vec, p, q, t float64) (CurvilinearParameters, error) {
	if p <= 0 {
		return CurvilinearParameters{}, ErrZeroMomentum
	}
	if r3.Norm(dir) == 0 {
		return CurvilinearParameters{}, ErrZeroDirection
	}
	return CurvilinearParameters{Pos: pos, Dir: r3.Unit(dir), P: p, Q: q, T: t}, nil
}

func (c CurvilinearParameters) QOverP() float64 { return QOverP(c.P, c.Q) }

func (c CurvilinearParameters) Momentum() r3.Vec { return r3.Scale(c.P, c.Dir) }

// Free expands the curvilinear state into the free vector.
func (c CurvilinearParameters) Free() FreeVector {
	var f FreeVector
	f.SetPosition(c.Pos)
	f.SetDirection(c.Dir)
	f[FreeTime] = c.T
	f[FreeQOverP] = c.QOverP()
	return f
}

// BoundParameters is a state expressed in the local frame of a
// surface; it is only meaningful paired with that surface.
type BoundParameters struct {
	Surface geometry.Surface
	Vector  BoundVector
	Q       float64
	Cov     *mat.SymDense
}

// NewBound applies the bound-parameter range correction before
// storing the vector: corrections happen on every write, never on
// read.
func NewBound(srf geometry.Surface, v BoundVector, q float64, cov *mat.SymDense) BoundParameters {
	CorrectBound(&v)
	return BoundParameters{Surface: srf, Vector: v, Q: q, Cov: cov}
}

func (b BoundParameters) Position() r3.Vec {
	return b.Surface.LocalToGlobal(geometry.Local{L0: b.Vector[BoundLoc0], L1: b.Vector[BoundLoc1]})
}

func (b BoundParameters) Direction() r3.Vec {
	return DirectionFromAngles(b.Vector[BoundPhi], b.Vector[BoundTheta])
}

func (b BoundParameters) Momentum() float64 {
	return MomentumFromQOverP(b.Vector[BoundQOverP], b.Q)
}

func (b BoundParameters) Time() float64 { return b.Vector[BoundTime] }

// DirectionFromAngles builds the unit direction for azimuth phi and
// polar angle theta.
func DirectionFromAngles(phi, theta float64) r3.Vec {
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	return r3.Vec{X: cosPhi * sinTheta, Y: sinPhi * sinTheta, Z: cosTheta}
}

// AnglesFromDirection inverts DirectionFromAngles for a unit vector.
func AnglesFromDirection(d r3.Vec) (phi, theta float64) {
	return math.Atan2(d.Y, d.X), math.Acos(d.Z)
}
