// Package stepper implements an adaptive fourth-order Runge-Kutta
// propagation step for charged and neutral particles in a magnetic
// field, with embedded error control, pluggable physics extensions
// and exact per-step covariance transport.
package stepper

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/field"
	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/track"
)

// NavigationDirection orients the propagation along or against the
// momentum.
type NavigationDirection int

const (
	Forward  NavigationDirection = 1
	Backward NavigationDirection = -1
)

// Options collects the numerical knobs of a single propagation.
type Options struct {
	// Tolerance is the accepted local truncation error per step.
	Tolerance float64
	// StepSizeCutoff aborts the step when the required step size
	// falls below it.
	StepSizeCutoff float64
	// MaxStepTrials bounds the number of step-size adjustments per
	// step.
	MaxStepTrials int
	// Mass of the propagated particle, used for the time update and
	// by material-aware extensions.
	Mass float64
}

// DefaultOptions returns the options used when the caller has no
// opinion.
func DefaultOptions() Options {
	return Options{
		Tolerance:     1e-4,
		MaxStepTrials: 10000,
	}
}

// Stepper owns the field lookup and the extension roster. It is
// stateless across propagations; all mutable data lives in State, so
// one Stepper serves concurrent propagations.
type Stepper struct {
	field      field.Provider
	extensions []func() Extension
	auctioneer Auctioneer
}

// Option configures a Stepper.
type Option func(*Stepper)

// WithExtensions replaces the extension roster. Constructors rather
// than instances, because extensions carry per-step caches and every
// State gets its own set.
func WithExtensions(ctors ...func() Extension) Option {
	return func(st *Stepper) { st.extensions = ctors }
}

// WithAuctioneer replaces the arbitration strategy.
func WithAuctioneer(a Auctioneer) Option {
	return func(st *Stepper) { st.auctioneer = a }
}

// New builds a stepper over the given field. Without options it
// integrates the pure vacuum model.
func New(f field.Provider, opts ...Option) *Stepper {
	st := &Stepper{
		field:      f,
		extensions: []func() Extension{NewVacuumExtension},
		auctioneer: FirstValidAuctioneer{},
	}
	for _, o := range opts {
		o(st)
	}
	return st
}

// State is the full mutable state of one propagation.
type State struct {
	Pos r3.Vec
	Dir r3.Vec // unit
	P   float64
	Q   float64 // 0 for neutral
	T   float64

	NavDir           NavigationDirection
	StepSize         ConstrainedStep
	PreviousStepSize float64
	PathAccumulated  float64

	// Covariance machinery. Cov is the bound-frame covariance at the
	// start frame; JacToGlobal the start-frame projection; JacTransport
	// the accumulated free transport since the last (re)projection.
	Cov          *mat.SymDense
	CovTransport bool
	JacToGlobal  *mat.Dense
	JacTransport *mat.Dense
	Derivative   *mat.VecDense

	// Volume is maintained by the navigator and consulted by
	// material-aware extensions.
	Volume *geometry.Volume

	field      field.Provider
	extensions []Extension
	bids       []int
	auction    Auctioneer
	stages     stageData
}

// NewState starts a propagation from a curvilinear state. The sign of
// the initial step size follows nav regardless of the sign passed in.
func (st *Stepper) NewState(c track.CurvilinearParameters, nav NavigationDirection, stepSize float64) *State {
	s := st.newState(nav, stepSize)
	s.Pos = c.Pos
	s.Dir = c.Dir
	s.P = c.P
	s.Q = c.Q
	s.T = c.T
	if c.Cov != nil {
		s.CovTransport = true
		s.Cov = mat.NewSymDense(track.BoundSize, nil)
		s.Cov.CopySym(c.Cov)
		s.JacToGlobal = track.CurvilinearToFreeJacobian(c.Dir)
	}
	return s
}

// NewStateFromBound starts a propagation from a bound state on a
// surface.
func (st *Stepper) NewStateFromBound(b track.BoundParameters, nav NavigationDirection, stepSize float64) *State {
	s := st.newState(nav, stepSize)
	s.Pos = b.Position()
	s.Dir = b.Direction()
	s.P = b.Momentum()
	s.Q = b.Q
	s.T = b.Time()
	if b.Cov != nil {
		s.CovTransport = true
		s.Cov = mat.NewSymDense(track.BoundSize, nil)
		s.Cov.CopySym(b.Cov)
		s.JacToGlobal = track.BoundToFreeJacobian(b.Surface, b.Vector)
	}
	return s
}

func (st *Stepper) newState(nav NavigationDirection, stepSize float64) *State {
	s := &State{
		NavDir:       nav,
		StepSize:     NewConstrainedStep(float64(nav) * math.Abs(stepSize)),
		JacTransport: identity8(),
		Derivative:   mat.NewVecDense(track.FreeSize, nil),
		field:        st.field,
		auction:      st.auctioneer,
	}
	s.extensions = make([]Extension, len(st.extensions))
	for i, ctor := range st.extensions {
		s.extensions[i] = ctor()
	}
	s.bids = make([]int, len(s.extensions))
	return s
}

func (s *State) Position() r3.Vec  { return s.Pos }
func (s *State) Direction() r3.Vec { return s.Dir }
func (s *State) Momentum() float64 { return s.P }
func (s *State) Charge() float64   { return s.Q }
func (s *State) Time() float64     { return s.T }

// Field looks up the magnetic field at a position.
func (s *State) Field(pos r3.Vec) r3.Vec { return s.field.Field(pos) }

// qOverP is the signed inverse momentum as carried in the free vector.
func qOverP(s *State) float64 { return track.QOverP(s.P, s.Q) }

// chargeOverP is the Lorentz-force coupling; zero for neutrals, which
// therefore travel straight.
func chargeOverP(s *State) float64 {
	if s.Q == 0 {
		return 0
	}
	return s.Q / s.P
}

// SetStepSize overwrites one constraint slot and records the step size
// that was active before.
func (s *State) SetStepSize(v float64, src StepSource) {
	s.PreviousStepSize = s.StepSize.Value()
	s.StepSize.Set(v, src)
}

// ReleaseStepSize drops one constraint slot.
func (s *State) ReleaseStepSize(src StepSource) {
	s.StepSize.Release(src)
}

// OutputStepSize renders the current constraints for diagnostics.
func (s *State) OutputStepSize() string { return s.StepSize.String() }

// UpdateSurfaceStatus intersects the target surface along the
// navigation direction and, when reachable, constrains the actor slot
// to stop there.
func (s *State) UpdateSurfaceStatus(srf geometry.Surface, boundaryCheck bool) geometry.IntersectionStatus {
	ix := srf.Intersect(s.Pos, r3.Scale(float64(s.NavDir), s.Dir), true, boundaryCheck)
	if ix.Status == geometry.Reachable {
		s.UpdateStepSize(ix, true)
	}
	return ix.Status
}

// UpdateStepSize folds an intersection into the actor constraint. With
// release set the slot is overwritten even if it grows.
func (s *State) UpdateStepSize(ix geometry.Intersection, release bool) {
	v := float64(s.NavDir) * ix.PathLength
	s.StepSize.Update(v, SourceActor, !release)
}

// stepSizeScaling is the embedded-error controller gain, clamped so a
// single trial never explodes or collapses the step.
func stepSizeScaling(tolerance, errEstimate float64) float64 {
	sc := math.Sqrt(math.Sqrt(tolerance / (2 * errEstimate)))
	return math.Min(math.Max(sc, 0.25), 4.0)
}

// maxTrialStep caps the first trial step when no constraint is in
// force; beyond it h*h overflows and the error estimate is no longer
// finite.
const maxTrialStep = 1e8

// Step advances the state by at most the current step-size constraint,
// adapting the actual step to the error tolerance. It returns the
// signed step taken.
func (s *State) Step(o Options) (float64, error) {
	for i, ext := range s.extensions {
		s.bids[i] = ext.Bid(s)
	}
	var auction Auctioneer = FirstValidAuctioneer{}
	if s.auction != nil {
		auction = s.auction
	}
	winner := auction.Select(s.bids)
	if winner < 0 {
		return 0, ErrNoValidExtension
	}
	ext := s.extensions[winner]

	sd := &s.stages
	sd.mass = o.Mass
	sd.b[0] = s.Field(s.Pos)
	if !ext.Stage(s, 0, 0, sd.b[0], r3.Vec{}, &sd.k[0], &sd.kQoP[0]) {
		return 0, ErrStepInvalid
	}

	h := s.StepSize.Value()
	if math.Abs(h) > maxTrialStep {
		h = math.Copysign(maxTrialStep, h)
	}
	errEstimate := 0.0
	trials := 0
	for {
		trials++
		ok := s.tryStep(ext, h, &errEstimate)
		if ok && errEstimate <= o.Tolerance {
			break
		}
		h *= stepSizeScaling(o.Tolerance, errEstimate)
		if h*h < o.StepSizeCutoff*o.StepSizeCutoff {
			return 0, ErrStepSizeStalled
		}
		if trials > o.MaxStepTrials {
			return 0, ErrStepSizeAdjustmentFailed
		}
	}

	var d *mat.Dense
	if s.CovTransport {
		d = identity8()
	}
	if !ext.Finalize(s, h, d) {
		return 0, ErrStepInvalid
	}
	if d != nil {
		next := mat.NewDense(track.FreeSize, track.FreeSize, nil)
		next.Mul(d, s.JacTransport)
		s.JacTransport = next
	}

	k1, k2, k3, k4 := sd.k[0], sd.k[1], sd.k[2], sd.k[3]
	s.Pos = r3.Add(s.Pos, r3.Add(
		r3.Scale(h, s.Dir),
		r3.Scale(h*h/6, r3.Add(r3.Add(k1, k2), k3))))
	s.Dir = r3.Unit(r3.Add(s.Dir, r3.Scale(h/6,
		r3.Add(r3.Add(k1, r3.Scale(2, r3.Add(k2, k3))), k4))))

	qop := qOverP(s)
	dtds := math.Sqrt(1 + o.Mass*o.Mass*qop*qop)
	s.T += h * dtds

	s.Derivative.SetVec(track.FreePos0, s.Dir.X)
	s.Derivative.SetVec(track.FreePos1, s.Dir.Y)
	s.Derivative.SetVec(track.FreePos2, s.Dir.Z)
	s.Derivative.SetVec(track.FreeTime, dtds)
	s.Derivative.SetVec(track.FreeDir0, k4.X)
	s.Derivative.SetVec(track.FreeDir1, k4.Y)
	s.Derivative.SetVec(track.FreeDir2, k4.Z)
	s.Derivative.SetVec(track.FreeQOverP, sd.kQoP[3])

	s.PathAccumulated += h
	s.PreviousStepSize = h
	s.StepSize.Set(h*stepSizeScaling(o.Tolerance, errEstimate), SourceAccuracy)
	return h, nil
}

// tryStep evaluates stages two to four for a trial step h and the
// embedded error estimate. A false return rejects the trial, either
// because a stage refused or because the estimate is recorded for the
// controller to shrink h.
func (s *State) tryStep(ext Extension, h float64, errEstimate *float64) bool {
	sd := &s.stages
	half := h / 2

	pos1 := r3.Add(s.Pos, r3.Add(
		r3.Scale(half, s.Dir),
		r3.Scale(h*h/8, sd.k[0])))
	sd.b[1] = s.Field(pos1)
	if !ext.Stage(s, 1, half, sd.b[1], sd.k[0], &sd.k[1], &sd.kQoP[1]) {
		*errEstimate = math.MaxFloat64
		return false
	}
	if !ext.Stage(s, 2, half, sd.b[1], sd.k[1], &sd.k[2], &sd.kQoP[2]) {
		*errEstimate = math.MaxFloat64
		return false
	}

	pos2 := r3.Add(s.Pos, r3.Add(
		r3.Scale(h, s.Dir),
		r3.Scale(h*h/2, sd.k[2])))
	sd.b[2] = s.Field(pos2)
	if !ext.Stage(s, 3, h, sd.b[2], sd.k[2], &sd.k[3], &sd.kQoP[3]) {
		*errEstimate = math.MaxFloat64
		return false
	}

	dk := r3.Add(r3.Sub(r3.Sub(sd.k[0], sd.k[1]), sd.k[2]), sd.k[3])
	dl := sd.kQoP[0] - sd.kQoP[1] - sd.kQoP[2] + sd.kQoP[3]
	est := h * h * (math.Abs(dk.X) + math.Abs(dk.Y) + math.Abs(dk.Z) + math.Abs(dl))
	*errEstimate = math.Max(est, 1e-20)
	return true
}
