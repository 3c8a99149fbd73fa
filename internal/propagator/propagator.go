// Package propagator orchestrates the stepping loop: it alternates
// navigation targeting, adaptive integration steps, user actions and
// abort conditions until the propagation reaches its target, leaves
// the world or hits a limit.
package propagator

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/navigator"
	"github.com/san-kum/trackprop/internal/stepper"
	"github.com/san-kum/trackprop/internal/track"
)

var ErrTargetUnreached = errors.New("propagator: target surface not reached")

// Reason explains why a propagation stopped.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonTargetReached
	ReasonEndOfWorld
	ReasonPathLimit
	ReasonStepLimit
	ReasonAborted
)

var reasonNames = [...]string{"unknown", "target-reached", "end-of-world", "path-limit", "step-limit", "aborted"}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// State is the combined propagation state handed to actions and
// aborters.
type State struct {
	Stepping   *stepper.State
	Navigation navigator.State
	Options    Options
	Steps      int
	Reason     Reason
}

// Action observes the state after every accepted step.
type Action interface {
	Act(s *State)
}

// Aborter is consulted before every step; returning true ends the
// propagation. Aborters may tighten the aborter step constraint so the
// stepper lands exactly on their limit.
type Aborter interface {
	Abort(s *State) bool
}

// Options configures a single propagation.
type Options struct {
	Stepping  stepper.Options
	Direction stepper.NavigationDirection

	// MaxSteps bounds the number of accepted steps.
	MaxSteps int
	// MaxStepSize seeds the user step constraint.
	MaxStepSize float64
	// MaxPathLength stops the propagation after this much signed path,
	// 0 meaning unlimited.
	MaxPathLength float64

	Actions  []Action
	Aborters []Aborter
}

// DefaultOptions returns forward propagation with the stepper
// defaults.
func DefaultOptions() Options {
	return Options{
		Stepping:    stepper.DefaultOptions(),
		Direction:   stepper.Forward,
		MaxSteps:    1000,
		MaxStepSize: math.MaxFloat64,
	}
}

// Result is the outcome of a propagation to no particular surface.
// Jacobian is the bound-to-bound transport Jacobian of the whole
// propagation, nil without covariance transport.
type Result struct {
	End      track.CurvilinearParameters
	Jacobian *mat.Dense
	Path     float64
	Steps    int
	Reason   Reason
}

// BoundResult is the outcome of a propagation onto a target surface.
type BoundResult struct {
	End      track.BoundParameters
	Jacobian *mat.Dense
	Path     float64
	Steps    int
	Reason   Reason
}

// Propagator ties a stepper to a navigator. It is stateless across
// propagations.
type Propagator struct {
	stepper   *stepper.Stepper
	navigator *navigator.Navigator
}

func New(st *stepper.Stepper, nav *navigator.Navigator) *Propagator {
	return &Propagator{stepper: st, navigator: nav}
}

// Propagate runs the loop from a curvilinear start until an aborter
// fires, the world ends or a limit is hit. The end state is returned
// in the curvilinear frame with the covariance transported there.
func (p *Propagator) Propagate(start track.CurvilinearParameters, o Options) (Result, error) {
	s, err := p.run(start, nil, o)
	if err != nil {
		return Result{}, err
	}
	end, jac, path := s.Stepping.CurvilinearState()
	return Result{End: end, Jacobian: jac, Path: path, Steps: s.Steps, Reason: s.Reason}, nil
}

// PropagateTo runs the loop until the target surface is reached and
// returns the state bound to it. Failing to reach the target is an
// error even when the propagation ended cleanly otherwise.
func (p *Propagator) PropagateTo(start track.CurvilinearParameters, target geometry.Surface, o Options) (BoundResult, error) {
	s, err := p.run(start, target, o)
	if err != nil {
		return BoundResult{}, err
	}
	if !s.Navigation.TargetReached {
		return BoundResult{}, ErrTargetUnreached
	}
	end, jac, path, err := s.Stepping.BoundState(target)
	if err != nil {
		return BoundResult{}, err
	}
	return BoundResult{End: end, Jacobian: jac, Path: path, Steps: s.Steps, Reason: s.Reason}, nil
}

func (p *Propagator) run(start track.CurvilinearParameters, target geometry.Surface, o Options) (*State, error) {
	ss := p.stepper.NewState(start, o.Direction, o.MaxStepSize)
	s := &State{Stepping: ss, Options: o}
	s.Navigation.Target = target

	p.navigator.Initialize(&s.Navigation, ss)

	for {
		if s.Navigation.ExitedWorld {
			s.Reason = ReasonEndOfWorld
			break
		}
		p.navigator.PreStep(&s.Navigation, ss)
		if s.Navigation.ExitedWorld {
			s.Reason = ReasonEndOfWorld
			break
		}

		if p.checkLimits(s) || p.checkAborters(s) {
			break
		}

		if _, err := ss.Step(o.Stepping); err != nil {
			return nil, err
		}
		s.Steps++

		p.navigator.PostStep(&s.Navigation, ss)
		for _, a := range o.Actions {
			a.Act(s)
		}
		if s.Navigation.TargetReached {
			s.Reason = ReasonTargetReached
			break
		}
		if s.Steps >= o.MaxSteps {
			s.Reason = ReasonStepLimit
			break
		}
	}
	return s, nil
}

// checkLimits enforces the path-length limit, constraining the last
// step so the propagation stops exactly at the limit.
func (p *Propagator) checkLimits(s *State) bool {
	limit := s.Options.MaxPathLength
	if limit == 0 {
		return false
	}
	remaining := limit - math.Abs(s.Stepping.PathAccumulated)
	if remaining <= stepperPathTolerance {
		s.Reason = ReasonPathLimit
		return true
	}
	s.Stepping.StepSize.Update(float64(s.Stepping.NavDir)*remaining, stepper.SourceAborter, true)
	return false
}

func (p *Propagator) checkAborters(s *State) bool {
	for _, a := range s.Options.Aborters {
		if a.Abort(s) {
			s.Reason = ReasonAborted
			return true
		}
	}
	return false
}

const stepperPathTolerance = 1e-6
