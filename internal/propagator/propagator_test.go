package propagator_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/field"
	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/material"
	"github.com/san-kum/trackprop/internal/navigator"
	"github.com/san-kum/trackprop/internal/propagator"
	"github.com/san-kum/trackprop/internal/stepper"
	"github.com/san-kum/trackprop/internal/track"
	"github.com/san-kum/trackprop/internal/units"
)

func vacuumWorld() *geometry.TrackingGeometry {
	geo, err := geometry.BuildRow(geometry.RowConfig{
		HalfY: 2000, HalfZ: 2000,
		Volumes: []geometry.VolumeConfig{
			{Name: "world", MinX: 0, MaxX: 2000},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return geo
}

func muonAt(pos r3.Vec) track.CurvilinearParameters {
	c, err := track.NewCurvilinear(pos, r3.Vec{X: 1}, 1.0, -1, 0)
	Expect(err).NotTo(HaveOccurred())
	return c
}

func muonOptions() propagator.Options {
	o := propagator.DefaultOptions()
	o.Stepping.Mass = units.MassMuon
	return o
}

var _ = Describe("Propagator", func() {
	var prop *propagator.Propagator

	Context("in a field-free vacuum volume", func() {
		BeforeEach(func() {
			prop = propagator.New(stepper.New(field.Null{}), navigator.New(vacuumWorld()))
		})

		It("runs straight until the world ends", func() {
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), muonOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonEndOfWorld))
			Expect(res.Path).To(BeNumerically("~", 1999, 1e-6))
			Expect(res.End.Pos.X).To(BeNumerically("~", 2000, 1e-6))
			Expect(res.End.P).To(BeNumerically("~", 1.0, 1e-12))
			Expect(res.End.T).To(BeNumerically(">", 0))
		})

		It("lands exactly on a target surface", func() {
			target := geometry.NewPlaneSurfaceWithAxes(r3.Vec{X: 1500}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
			res, err := prop.PropagateTo(muonAt(r3.Vec{X: 1}), target, muonOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonTargetReached))
			Expect(res.Path).To(BeNumerically("~", 1499, 1e-6))
			Expect(res.End.Surface).To(BeIdenticalTo(target))
			Expect(res.End.Position().X).To(BeNumerically("~", 1500, 1e-6))
		})

		It("reports an unreachable target as an error", func() {
			behind := geometry.NewPlaneSurfaceWithAxes(r3.Vec{X: -100}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
			_, err := prop.PropagateTo(muonAt(r3.Vec{X: 1}), behind, muonOptions())
			Expect(err).To(MatchError(propagator.ErrTargetUnreached))
		})

		It("stops at the path-length limit", func() {
			o := muonOptions()
			o.MaxPathLength = 500
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonPathLimit))
			Expect(res.Path).To(BeNumerically("~", 500, 1e-6))
		})

		It("stops cleanly when the step budget runs out", func() {
			o := muonOptions()
			o.MaxSteps = 1
			o.MaxStepSize = 10
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonStepLimit))
			Expect(res.Steps).To(Equal(1))
			Expect(res.Path).To(BeNumerically("~", 10, 1e-6))
		})

		It("lets an aborter end the propagation", func() {
			o := muonOptions()
			o.MaxStepSize = 10
			o.Aborters = []propagator.Aborter{propagator.BoxAborter{HalfX: 50, HalfY: 50, HalfZ: 50}}
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonAborted))
			Expect(res.End.Pos.X).To(BeNumerically("<", 70))
		})

		It("hands every accepted step to the collector", func() {
			col := &propagator.StepCollector{}
			o := muonOptions()
			o.MaxStepSize = 100
			o.Actions = []propagator.Action{col}
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(col.Records).To(HaveLen(res.Steps))
			Expect(col.Records[len(col.Records)-1].Path).To(BeNumerically("~", res.Path, 1e-9))
			for _, r := range col.Records {
				Expect(r.Volume).To(Equal("world"))
			}
		})

		It("transports the covariance to the end frame", func() {
			start := muonAt(r3.Vec{X: 1})
			start.Cov = mat.NewSymDense(track.BoundSize, nil)
			for i := 0; i < track.BoundSize; i++ {
				start.Cov.SetSym(i, i, 0.01)
			}
			o := muonOptions()
			o.MaxPathLength = 500
			res, err := prop.Propagate(start, o)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.End.Cov).NotTo(BeNil())
			Expect(res.Jacobian).NotTo(BeNil())
			for i := 0; i < track.BoundSize; i++ {
				Expect(res.End.Cov.At(i, i)).To(BeNumerically(">", 0))
			}
		})
	})

	Context("in a solenoid field", func() {
		BeforeEach(func() {
			b := field.Constant{B: r3.Vec{Z: 2 * units.Tesla}}
			prop = propagator.New(stepper.New(b), navigator.New(vacuumWorld()))
		})

		It("bends the track without losing momentum", func() {
			o := muonOptions()
			o.MaxPathLength = 300
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonPathLimit))
			Expect(res.End.P).To(BeNumerically("~", 1.0, 1e-9))
			Expect(r3.Norm(res.End.Dir)).To(BeNumerically("~", 1.0, 1e-12))
			Expect(math.Abs(res.End.Dir.Y)).To(BeNumerically(">", 0.1))
		})
	})

	Context("through a vacuum-material-vacuum sandwich", func() {
		BeforeEach(func() {
			geo, err := geometry.BuildRow(geometry.RowConfig{
				HalfY: 500, HalfZ: 500,
				Volumes: []geometry.VolumeConfig{
					{Name: "entry", MinX: 0, MaxX: 200},
					{Name: "absorber", MinX: 200, MaxX: 400, Mat: material.Beryllium()},
					{Name: "exit", MinX: 400, MaxX: 600},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			st := stepper.New(field.Null{},
				stepper.WithExtensions(stepper.NewVacuumExtension, stepper.NewDenseExtension),
				stepper.WithAuctioneer(stepper.HighestBidAuctioneer{}))
			prop = propagator.New(st, navigator.New(geo))
		})

		It("matches a piecewise propagation at the far end", func() {
			o := muonOptions()
			o.MaxStepSize = 50

			full, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(full.Reason).To(Equal(propagator.ReasonEndOfWorld))
			Expect(full.End.Pos.X).To(BeNumerically("~", 600, 1e-6))
			Expect(full.End.P).To(BeNumerically("<", 1.0))

			// same trajectory in three pieces, split inside the vacuum
			// volumes on either side of the absorber
			o.MaxPathLength = 100
			seg, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			o.MaxPathLength = 400
			restart, err := track.NewCurvilinear(seg.End.Pos, seg.End.Dir, seg.End.P, -1, seg.End.T)
			Expect(err).NotTo(HaveOccurred())
			seg2, err := prop.Propagate(restart, o)
			Expect(err).NotTo(HaveOccurred())
			o.MaxPathLength = 0
			restart2, err := track.NewCurvilinear(seg2.End.Pos, seg2.End.Dir, seg2.End.P, -1, seg2.End.T)
			Expect(err).NotTo(HaveOccurred())
			last, err := prop.Propagate(restart2, o)
			Expect(err).NotTo(HaveOccurred())

			Expect(r3.Norm(r3.Sub(last.End.Pos, full.End.Pos))).To(BeNumerically("<", 1e-3))
			Expect(math.Abs(last.End.P - full.End.P)).To(BeNumerically("<", 1e-6))
		})
	})

	Context("through a dense absorber", func() {
		BeforeEach(func() {
			geo, err := geometry.BuildRow(geometry.RowConfig{
				HalfY: 500, HalfZ: 500,
				Volumes: []geometry.VolumeConfig{
					{Name: "absorber", MinX: 0, MaxX: 500, Mat: material.Beryllium()},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			st := stepper.New(field.Null{},
				stepper.WithExtensions(stepper.NewVacuumExtension, stepper.NewDenseExtension),
				stepper.WithAuctioneer(stepper.HighestBidAuctioneer{}))
			prop = propagator.New(st, navigator.New(geo))
		})

		It("loses energy along the way", func() {
			o := muonOptions()
			o.MaxStepSize = 10
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonEndOfWorld))
			Expect(res.End.P).To(BeNumerically("<", 1.0))
			Expect(res.End.P).To(BeNumerically(">", 0.7))
		})

		It("can be stopped by a momentum floor", func() {
			o := muonOptions()
			o.MaxStepSize = 10
			o.Aborters = []propagator.Aborter{propagator.MomentumFloorAborter{MinP: 0.999}}
			res, err := prop.Propagate(muonAt(r3.Vec{X: 1}), o)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(propagator.ReasonAborted))
		})
	})
})
