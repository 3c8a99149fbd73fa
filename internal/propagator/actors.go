package propagator

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// StepRecord is one accepted step as seen by the StepCollector.
type StepRecord struct {
	Pos      r3.Vec
	Dir      r3.Vec
	P        float64
	T        float64
	Path     float64
	StepSize float64
	Volume   string
}

// StepCollector records the trajectory step by step. Attach one
// instance per propagation; it is not safe for concurrent use.
type StepCollector struct {
	Records []StepRecord
}

func (c *StepCollector) Act(s *State) {
	rec := StepRecord{
		Pos:      s.Stepping.Pos,
		Dir:      s.Stepping.Dir,
		P:        s.Stepping.P,
		T:        s.Stepping.T,
		Path:     s.Stepping.PathAccumulated,
		StepSize: s.Stepping.PreviousStepSize,
	}
	if s.Stepping.Volume != nil {
		rec.Volume = s.Stepping.Volume.Name
	}
	c.Records = append(c.Records, rec)
}

// BoxAborter ends the propagation when the position leaves an
// axis-aligned box centered on the origin. It backs up the navigator's
// end-of-world detection for geometries without closing boundaries.
type BoxAborter struct {
	HalfX, HalfY, HalfZ float64
}

func (b BoxAborter) Abort(s *State) bool {
	p := s.Stepping.Pos
	return math.Abs(p.X) > b.HalfX || math.Abs(p.Y) > b.HalfY || math.Abs(p.Z) > b.HalfZ
}

// MomentumFloorAborter ends the propagation when energy loss has
// pushed the momentum below a floor.
type MomentumFloorAborter struct {
	MinP float64
}

func (m MomentumFloorAborter) Abort(s *State) bool {
	return s.Stepping.P < m.MinP
}
