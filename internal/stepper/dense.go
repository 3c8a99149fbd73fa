package stepper

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/track"
	"github.com/san-kum/trackprop/internal/units"
)

// momentum floor below which the dense model refuses to integrate
const denseMinMomentum = 10 * units.MeV

// DenseExtension adds ionization energy loss and multiple-scattering
// covariance inflation inside material-bearing volumes. It is only
// valid for charged particles above a momentum floor while the
// current volume carries material, and pre-empts the vacuum model
// there via its higher bid.
//
// The energy-loss slope is evaluated once per step at the step start;
// field and material are step-constant, so the midpoint slopes agree
// to the order the embedded error control already absorbs.
type DenseExtension struct {
	initialE float64
	slope    float64 // dE/ds, positive
	qopSlope float64 // d(q/p)/ds
}

func NewDenseExtension() Extension { return &DenseExtension{} }

func (e *DenseExtension) Bid(s *State) int {
	if s.Volume == nil || !s.Volume.Mat.IsValid() {
		return 0
	}
	if s.Q == 0 || s.P < denseMinMomentum {
		return 0
	}
	return 2
}

func (e *DenseExtension) Stage(s *State, i int, h float64, b r3.Vec, kPrev r3.Vec, k *r3.Vec, kQoP *float64) bool {
	if i == 0 {
		m := s.Volume.Mat
		mass := s.stages.mass
		p := s.P
		e.slope = m.MeanEnergyLoss(p, mass, s.Q)
		e.initialE = math.Sqrt(p*p + mass*mass)
		// d(q/p)/ds = q g E / p^3
		e.qopSlope = s.Q * e.slope * e.initialE / (p * p * p)
	} else {
		// reject stages that would stop the particle inside the step
		if e.initialE-e.slope*math.Abs(h) <= s.stages.mass {
			return false
		}
	}
	lorentzStage(s, i, h, b, kPrev, k, chargeOverP(s))
	*kQoP = e.qopSlope
	return true
}

func (e *DenseExtension) Finalize(s *State, h float64, d *mat.Dense) bool {
	mass := s.stages.mass
	newE := e.initialE - e.slope*h
	if newE <= mass {
		return false
	}
	newP := math.Sqrt(newE*newE - mass*mass)

	if d != nil {
		fillTransportMatrix(s, h, chargeOverP(s), d)
	}

	if s.CovTransport && s.Cov != nil {
		theta0 := s.Volume.Mat.ScatteringTheta0(math.Abs(h), s.P, mass, s.Q)
		if theta0 > 0 {
			sinTheta := math.Sqrt(1 - s.Dir.Z*s.Dir.Z)
			invSin2 := 1.0
			if sinTheta > 1e-6 {
				invSin2 = 1 / (sinTheta * sinTheta)
			}
			v := theta0 * theta0
			s.Cov.SetSym(track.BoundPhi, track.BoundPhi,
				s.Cov.At(track.BoundPhi, track.BoundPhi)+v*invSin2)
			s.Cov.SetSym(track.BoundTheta, track.BoundTheta,
				s.Cov.At(track.BoundTheta, track.BoundTheta)+v)
		}
	}

	s.P = newP
	return true
}
