package stepper

import (
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/field"
	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/track"
	"github.com/san-kum/trackprop/internal/units"
)

func seedCov() *mat.SymDense {
	c := mat.NewSymDense(track.BoundSize, nil)
	for i := 0; i < track.BoundSize; i++ {
		c.SetSym(i, i, 0.01)
	}
	return c
}

func testOptions() Options {
	o := DefaultOptions()
	o.Mass = units.MassMuon
	return o
}

func TestNewStateWithoutCovariance(t *testing.T) {
	g := NewWithT(t)

	pos := r3.Vec{X: 1, Y: 2, Z: 3}
	c, err := track.NewCurvilinear(pos, r3.Vec{X: 1}, 1.5, -1, 7)
	g.Expect(err).NotTo(HaveOccurred())

	st := New(field.Null{})
	s := st.NewState(c, Forward, 10)

	g.Expect(s.Pos).To(Equal(pos))
	g.Expect(s.Dir).To(Equal(r3.Vec{X: 1}))
	g.Expect(s.P).To(Equal(1.5))
	g.Expect(s.Q).To(Equal(-1.0))
	g.Expect(s.T).To(Equal(7.0))
	g.Expect(s.CovTransport).To(BeFalse())
	g.Expect(s.Cov).To(BeNil())
	g.Expect(s.JacToGlobal).To(BeNil())
	g.Expect(s.PathAccumulated).To(BeZero())
	g.Expect(s.PreviousStepSize).To(BeZero())
	g.Expect(s.StepSize.Value()).To(Equal(10.0))

	for i := 0; i < track.FreeSize; i++ {
		for j := 0; j < track.FreeSize; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			g.Expect(s.JacTransport.At(i, j)).To(Equal(want))
		}
	}
}

func TestNewStateBackwardSignsStepSize(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Backward, 10)
	g.Expect(s.StepSize.Value()).To(Equal(-10.0))

	// the sign follows the navigation direction even for a negative
	// input
	s = New(field.Null{}).NewState(c, Backward, -10)
	g.Expect(s.StepSize.Value()).To(Equal(-10.0))
}

func TestNewStateWithCovariance(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	c.Cov = seedCov()
	s := New(field.Null{}).NewState(c, Forward, 10)

	g.Expect(s.CovTransport).To(BeTrue())
	g.Expect(s.Cov).NotTo(BeNil())
	g.Expect(s.JacToGlobal).NotTo(BeNil())
	r, cc := s.JacToGlobal.Dims()
	g.Expect(r).To(Equal(track.FreeSize))
	g.Expect(cc).To(Equal(track.BoundSize))
}

func TestNewStateFromBound(t *testing.T) {
	g := NewWithT(t)

	srf := geometry.NewPlaneSurface(r3.Vec{X: 5}, r3.Vec{X: 1})
	var bv track.BoundVector
	bv[track.BoundPhi] = 0
	bv[track.BoundTheta] = math.Pi / 2
	bv[track.BoundQOverP] = -1
	bv[track.BoundTime] = 3
	b := track.NewBound(srf, bv, -1, seedCov())

	s := New(field.Null{}).NewStateFromBound(b, Forward, 100)
	g.Expect(s.Pos.X).To(BeNumerically("~", 5, 1e-12))
	g.Expect(s.Dir.X).To(BeNumerically("~", 1, 1e-12))
	g.Expect(s.P).To(Equal(1.0))
	g.Expect(s.T).To(Equal(3.0))
	g.Expect(s.CovTransport).To(BeTrue())
}

func TestSetAndReleaseStepSize(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Forward, 10)

	s.SetStepSize(2, SourceActor)
	g.Expect(s.StepSize.Value()).To(Equal(2.0))
	g.Expect(s.StepSize.ValueOf(SourceActor)).To(Equal(2.0))
	g.Expect(s.PreviousStepSize).To(Equal(10.0))

	// release re-arms the actor slot and hands the active constraint
	// back to the user slot
	s.ReleaseStepSize(SourceActor)
	g.Expect(s.StepSize.Value()).To(Equal(10.0))
	g.Expect(s.StepSize.ValueOf(SourceUser)).To(Equal(10.0))
	g.Expect(s.StepSize.ValueOf(SourceActor)).To(Equal(math.MaxFloat64))
}

func TestStepUnconstrainedStepSize(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{X: 1}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Forward, math.MaxFloat64)

	h, err := s.Step(testOptions())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(h).To(Equal(1e8))
	g.Expect(s.Pos.X).To(BeNumerically("~", 1+1e8, 1e-6))
	g.Expect(s.Dir.X).To(BeNumerically("~", 1, 1e-12))
	g.Expect(s.P).To(Equal(1.0))
}

func TestStepStraightLine(t *testing.T) {
	g := NewWithT(t)

	start := r3.Vec{X: 1, Y: 2, Z: 3}
	c, _ := track.NewCurvilinear(start, r3.Vec{X: 1}, 1, -1, 7)
	s := New(field.Null{}).NewState(c, Forward, 10)

	o := testOptions()
	h, err := s.Step(o)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(h).To(Equal(10.0))

	g.Expect(s.Pos.X).To(BeNumerically("~", 11, 1e-9))
	g.Expect(s.Pos.Y).To(BeNumerically("~", 2, 1e-9))
	g.Expect(s.Dir.X).To(BeNumerically("~", 1, 1e-12))
	g.Expect(s.P).To(Equal(1.0))
	g.Expect(s.PathAccumulated).To(Equal(10.0))
	g.Expect(s.PreviousStepSize).To(Equal(10.0))

	dtds := math.Sqrt(1 + o.Mass*o.Mass)
	g.Expect(s.T).To(BeNumerically("~", 7+10*dtds, 1e-9))

	// error floor plus default tolerance lets the accuracy constraint
	// grow by the clamped maximum
	g.Expect(s.StepSize.ValueOf(SourceAccuracy)).To(BeNumerically("~", 40, 1e-9))
	g.Expect(s.StepSize.Value()).To(Equal(10.0))
}

func TestStepInConstantField(t *testing.T) {
	g := NewWithT(t)

	b := field.Constant{B: r3.Vec{Z: 2 * units.Tesla}}
	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(b).NewState(c, Forward, 50)

	h, err := s.Step(testOptions())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(h).To(BeNumerically(">", 0))

	// Lorentz force bends but never changes the momentum magnitude
	g.Expect(s.P).To(Equal(1.0))
	g.Expect(r3.Norm(s.Dir)).To(BeNumerically("~", 1, 1e-12))
	g.Expect(s.Dir.Y).NotTo(BeZero())
}

func TestStepTransportsJacobian(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	c.Cov = seedCov()
	s := New(field.Null{}).NewState(c, Forward, 10)

	_, err := s.Step(testOptions())
	g.Expect(err).NotTo(HaveOccurred())

	// field-free transport still couples position to direction and
	// time to inverse momentum
	g.Expect(s.JacTransport.At(track.FreePos0, track.FreeDir0)).To(BeNumerically("~", 10, 1e-9))
	g.Expect(s.JacTransport.At(track.FreeTime, track.FreeQOverP)).NotTo(BeZero())
}

func TestStepSizeStalled(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Forward, 10)

	o := testOptions()
	o.Tolerance = 1e-21
	o.StepSizeCutoff = 1e20

	_, err := s.Step(o)
	g.Expect(err).To(MatchError(ErrStepSizeStalled))
}

func TestStepSizeAdjustmentFailed(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Forward, 10)

	o := testOptions()
	o.Tolerance = 1e-21
	o.MaxStepTrials = 0

	_, err := s.Step(o)
	g.Expect(err).To(MatchError(ErrStepSizeAdjustmentFailed))
}

func TestUpdateSurfaceStatus(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Forward, 100)

	ahead := geometry.NewPlaneSurface(r3.Vec{X: 5}, r3.Vec{X: 1})
	g.Expect(s.UpdateSurfaceStatus(ahead, false)).To(Equal(geometry.Reachable))
	g.Expect(s.StepSize.ValueOf(SourceActor)).To(BeNumerically("~", 5, 1e-9))

	behind := geometry.NewPlaneSurface(r3.Vec{X: -5}, r3.Vec{X: 1})
	g.Expect(s.UpdateSurfaceStatus(behind, false)).To(Equal(geometry.Unreachable))

	here := geometry.NewPlaneSurface(r3.Vec{}, r3.Vec{X: 1})
	g.Expect(s.UpdateSurfaceStatus(here, false)).To(Equal(geometry.OnSurface))
}

func TestUpdateSurfaceStatusBackward(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Backward, 100)

	// moving against the momentum, only surfaces behind are reachable
	// and the constraint is negative
	behind := geometry.NewPlaneSurface(r3.Vec{X: -5}, r3.Vec{X: 1})
	g.Expect(s.UpdateSurfaceStatus(behind, false)).To(Equal(geometry.Reachable))
	g.Expect(s.StepSize.ValueOf(SourceActor)).To(BeNumerically("~", -5, 1e-9))
}

func TestUpdateStepSize(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Forward, 100)

	s.UpdateStepSize(geometry.Intersection{PathLength: 3, Status: geometry.Reachable}, true)
	g.Expect(s.StepSize.ValueOf(SourceActor)).To(Equal(3.0))

	// without release the slot only shrinks
	s.UpdateStepSize(geometry.Intersection{PathLength: 8, Status: geometry.Reachable}, false)
	g.Expect(s.StepSize.ValueOf(SourceActor)).To(Equal(3.0))
	s.UpdateStepSize(geometry.Intersection{PathLength: 1, Status: geometry.Reachable}, false)
	g.Expect(s.StepSize.ValueOf(SourceActor)).To(Equal(1.0))
}

func TestCurvilinearState(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{X: 1}, r3.Vec{X: 1}, 2, -1, 5)
	c.Cov = seedCov()
	s := New(field.Null{}).NewState(c, Forward, 10)

	_, err := s.Step(testOptions())
	g.Expect(err).NotTo(HaveOccurred())

	out, jac, path := s.CurvilinearState()
	g.Expect(out.Pos).To(Equal(s.Pos))
	g.Expect(out.P).To(Equal(2.0))
	g.Expect(out.Cov).NotTo(BeNil())
	g.Expect(jac).NotTo(BeNil())
	g.Expect(path).To(Equal(10.0))

	r, cc := jac.Dims()
	g.Expect(r).To(Equal(track.BoundSize))
	g.Expect(cc).To(Equal(track.BoundSize))
}

func TestCurvilinearStateZeroPathIsIdentity(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 0.3, Y: -0.2, Z: 0.9}, 1, -1, 0)
	c.Cov = seedCov()
	s := New(field.Null{}).NewState(c, Forward, 10)

	// without stepping, the transport is the identity and the
	// covariance comes back unchanged
	out, jac, path := s.CurvilinearState()
	g.Expect(path).To(BeZero())
	for i := 0; i < track.BoundSize; i++ {
		for j := 0; j < track.BoundSize; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			g.Expect(jac.At(i, j)).To(BeNumerically("~", want, 1e-9))
			g.Expect(out.Cov.At(i, j)).To(BeNumerically("~", seedCov().At(i, j), 1e-9))
		}
	}
}

func TestBoundState(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	c.Cov = seedCov()
	s := New(field.Null{}).NewState(c, Forward, 10)

	_, err := s.Step(testOptions())
	g.Expect(err).NotTo(HaveOccurred())

	srf := geometry.NewPlaneSurface(s.Pos, r3.Vec{X: 1})
	b, jac, path, err := s.BoundState(srf)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(b.Surface).To(Equal(geometry.Surface(srf)))
	g.Expect(b.Vector[track.BoundTheta]).To(BeNumerically("~", math.Pi/2, 1e-12))
	g.Expect(b.Cov).NotTo(BeNil())
	g.Expect(jac).NotTo(BeNil())
	g.Expect(path).To(Equal(10.0))

	// projecting onto a surface the state is nowhere near fails and
	// leaves the state untouched
	far := geometry.NewPlaneSurface(r3.Vec{X: 500}, r3.Vec{X: 1})
	_, _, _, err = s.BoundState(far)
	g.Expect(err).To(MatchError(geometry.ErrOffSurface))
}

func TestCovarianceTransportResets(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	c.Cov = seedCov()
	s := New(field.Null{}).NewState(c, Forward, 10)

	_, err := s.Step(testOptions())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(s.JacTransport.At(track.FreePos0, track.FreeDir0)).NotTo(BeZero())

	s.CovarianceTransport()
	g.Expect(s.JacTransport.At(track.FreePos0, track.FreeDir0)).To(BeZero())
	g.Expect(s.JacTransport.At(0, 0)).To(Equal(1.0))
	g.Expect(mat.Norm(s.Derivative, 2)).To(BeZero())
}

func TestUpdateOverwritesState(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	s := New(field.Null{}).NewState(c, Forward, 10)

	var f track.FreeVector
	f.SetPosition(r3.Vec{X: 4, Y: 5, Z: 6})
	f.SetDirection(r3.Vec{Y: 2})
	f[track.FreeTime] = 9
	f[track.FreeQOverP] = -0.5

	s.Update(f, nil)
	g.Expect(s.Pos).To(Equal(r3.Vec{X: 4, Y: 5, Z: 6}))
	g.Expect(s.Dir).To(Equal(r3.Vec{Y: 1}))
	g.Expect(s.P).To(Equal(2.0))
	g.Expect(s.T).To(Equal(9.0))
}

func TestResetState(t *testing.T) {
	g := NewWithT(t)

	c, _ := track.NewCurvilinear(r3.Vec{}, r3.Vec{X: 1}, 1, -1, 0)
	c.Cov = seedCov()
	s := New(field.Null{}).NewState(c, Forward, 10)
	_, err := s.Step(testOptions())
	g.Expect(err).NotTo(HaveOccurred())

	srf := geometry.NewPlaneSurface(r3.Vec{X: 20}, r3.Vec{X: 1})
	var bv track.BoundVector
	bv[track.BoundPhi] = math.Pi
	bv[track.BoundTheta] = math.Pi / 2
	bv[track.BoundQOverP] = -1

	s.ResetState(bv, seedCov(), srf, Backward, math.MaxFloat64)

	g.Expect(s.PathAccumulated).To(BeZero())
	g.Expect(s.PreviousStepSize).To(BeZero())
	g.Expect(s.NavDir).To(Equal(Backward))
	g.Expect(s.StepSize.Value()).To(Equal(-math.MaxFloat64))
	g.Expect(s.Pos.X).To(BeNumerically("~", 20, 1e-12))
	g.Expect(s.Dir.X).To(BeNumerically("~", -1, 1e-12))
	g.Expect(s.JacTransport.At(track.FreePos0, track.FreeDir0)).To(BeZero())
	g.Expect(s.JacTransport.At(0, 0)).To(Equal(1.0))
}
