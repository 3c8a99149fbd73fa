package stepper

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/track"
)

func identity8() *mat.Dense {
	d := mat.NewDense(track.FreeSize, track.FreeSize, nil)
	for i := 0; i < track.FreeSize; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// FreeVector snapshots the state as an eight-component free vector.
func (s *State) FreeVector() track.FreeVector {
	var f track.FreeVector
	f.SetPosition(s.Pos)
	f.SetDirection(s.Dir)
	f[track.FreeTime] = s.T
	f[track.FreeQOverP] = qOverP(s)
	return f
}

// fullJacobian composes the bound-to-bound Jacobian of the transport
// since the last projection: the target projection, corrected for the
// path-length variation induced by the target frame, applied to the
// accumulated free transport and the start projection.
func (s *State) fullJacobian(jacToLocal *mat.Dense, pathDeriv *mat.VecDense) *mat.Dense {
	corr := identity8()
	var outer mat.Dense
	outer.Outer(1, s.Derivative, pathDeriv)
	corr.Add(corr, &outer)

	var a, b mat.Dense
	a.Mul(corr, s.JacTransport)
	b.Mul(&a, s.JacToGlobal)
	full := mat.NewDense(track.BoundSize, track.BoundSize, nil)
	full.Mul(jacToLocal, &b)
	return full
}

// transported is jac * cov * jac^T, re-symmetrized against numerical
// drift.
func transported(jac *mat.Dense, cov *mat.SymDense) *mat.SymDense {
	var t, c mat.Dense
	t.Mul(jac, cov)
	c.Mul(&t, jac.T())
	out := mat.NewSymDense(track.BoundSize, nil)
	for i := 0; i < track.BoundSize; i++ {
		for j := i; j < track.BoundSize; j++ {
			out.SetSym(i, j, (c.At(i, j)+c.At(j, i))/2)
		}
	}
	return out
}

func (s *State) resetJacobians(jacToGlobal *mat.Dense) {
	s.JacToGlobal = jacToGlobal
	s.JacTransport = identity8()
	s.Derivative = mat.NewVecDense(track.FreeSize, nil)
}

// CurvilinearState extracts the current state in the curvilinear frame
// together with the bound-to-bound Jacobian of the transport (nil
// without covariance) and the accumulated path. The state itself is
// not modified.
func (s *State) CurvilinearState() (track.CurvilinearParameters, *mat.Dense, float64) {
	c := track.CurvilinearParameters{Pos: s.Pos, Dir: s.Dir, P: s.P, Q: s.Q, T: s.T}
	var jac *mat.Dense
	if s.CovTransport && s.Cov != nil {
		jacToLocal := track.FreeToCurvilinearJacobian(s.Dir)
		pathDeriv := track.FreeToPathDerivative(s.Dir, s.Dir)
		jac = s.fullJacobian(jacToLocal, pathDeriv)
		c.Cov = transported(jac, s.Cov)
	}
	return c, jac, s.PathAccumulated
}

// BoundState projects the current state onto a surface. It fails when
// the position is not within the surface's local domain; the stepping
// state stays untouched then.
func (s *State) BoundState(srf geometry.Surface) (track.BoundParameters, *mat.Dense, float64, error) {
	f := s.FreeVector()
	bv, err := track.FreeToBound(srf, f)
	if err != nil {
		return track.BoundParameters{}, nil, 0, err
	}
	var jac *mat.Dense
	var cov *mat.SymDense
	if s.CovTransport && s.Cov != nil {
		jacToLocal, err := track.FreeToBoundJacobian(srf, f)
		if err != nil {
			return track.BoundParameters{}, nil, 0, err
		}
		pathDeriv := track.FreeToPathDerivative(srf.Normal(s.Pos), s.Dir)
		jac = s.fullJacobian(jacToLocal, pathDeriv)
		cov = transported(jac, s.Cov)
	}
	return track.NewBound(srf, bv, s.Q, cov), jac, s.PathAccumulated, nil
}

// CovarianceTransport re-anchors the covariance in the curvilinear
// frame of the current direction and resets the accumulated transport.
func (s *State) CovarianceTransport() {
	if !s.CovTransport || s.Cov == nil {
		return
	}
	jacToLocal := track.FreeToCurvilinearJacobian(s.Dir)
	pathDeriv := track.FreeToPathDerivative(s.Dir, s.Dir)
	s.Cov = transported(s.fullJacobian(jacToLocal, pathDeriv), s.Cov)
	s.resetJacobians(track.CurvilinearToFreeJacobian(s.Dir))
}

// CovarianceTransportBound re-anchors the covariance in the bound
// frame of srf and resets the accumulated transport. On failure the
// covariance state is left as it was.
func (s *State) CovarianceTransportBound(srf geometry.Surface) error {
	if !s.CovTransport || s.Cov == nil {
		return nil
	}
	f := s.FreeVector()
	bv, err := track.FreeToBound(srf, f)
	if err != nil {
		return err
	}
	jacToLocal, err := track.FreeToBoundJacobian(srf, f)
	if err != nil {
		return err
	}
	pathDeriv := track.FreeToPathDerivative(srf.Normal(s.Pos), s.Dir)
	s.Cov = transported(s.fullJacobian(jacToLocal, pathDeriv), s.Cov)
	s.resetJacobians(track.BoundToFreeJacobian(srf, bv))
	return nil
}

// Update overwrites the kinematic state from a free vector and, when
// given, the covariance. The direction is re-normalized.
func (s *State) Update(f track.FreeVector, cov *mat.SymDense) {
	s.Pos = f.Position()
	s.Dir = r3.Unit(f.Direction())
	s.P = track.MomentumFromQOverP(f[track.FreeQOverP], s.Q)
	s.T = f[track.FreeTime]
	if cov != nil {
		s.Cov = mat.NewSymDense(track.BoundSize, nil)
		s.Cov.CopySym(cov)
		s.CovTransport = true
	}
}

// UpdateComponents overwrites position, direction, momentum and time
// individually.
func (s *State) UpdateComponents(pos, dir r3.Vec, p, t float64) {
	s.Pos = pos
	s.Dir = r3.Unit(dir)
	s.P = p
	s.T = t
}

// ResetState restarts the stepping state from a bound state on a
// surface, keeping the field and extension roster. Pass
// math.MaxFloat64 as stepSize to leave the step unconstrained.
func (s *State) ResetState(bv track.BoundVector, cov *mat.SymDense, srf geometry.Surface, nav NavigationDirection, stepSize float64) {
	f := track.BoundToFree(srf, bv)
	s.Pos = f.Position()
	s.Dir = r3.Unit(f.Direction())
	s.P = track.MomentumFromQOverP(bv[track.BoundQOverP], s.Q)
	s.T = bv[track.BoundTime]

	s.NavDir = nav
	s.StepSize = NewConstrainedStep(float64(nav) * math.Abs(stepSize))
	s.PreviousStepSize = 0
	s.PathAccumulated = 0

	if cov != nil {
		s.Cov = mat.NewSymDense(track.BoundSize, nil)
		s.Cov.CopySym(cov)
		s.CovTransport = true
		s.resetJacobians(track.BoundToFreeJacobian(srf, bv))
	} else {
		s.resetJacobians(s.JacToGlobal)
	}
}
