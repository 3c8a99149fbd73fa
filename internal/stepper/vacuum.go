package stepper

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/track"
)

// VacuumExtension integrates the pure Lorentz force. It is valid
// everywhere and never changes the momentum magnitude.
type VacuumExtension struct{}

func NewVacuumExtension() Extension { return VacuumExtension{} }

func (VacuumExtension) Bid(*State) int { return 1 }

func (VacuumExtension) Stage(s *State, i int, h float64, b r3.Vec, kPrev r3.Vec, k *r3.Vec, kQoP *float64) bool {
	lorentzStage(s, i, h, b, kPrev, k, chargeOverP(s))
	*kQoP = 0
	return true
}

func (VacuumExtension) Finalize(s *State, h float64, d *mat.Dense) bool {
	if d != nil {
		fillTransportMatrix(s, h, chargeOverP(s), d)
	}
	return true
}

// lorentzStage evaluates k_i = q/p (T_i x B) with T_i the stage
// direction.
func lorentzStage(s *State, i int, h float64, b r3.Vec, kPrev r3.Vec, k *r3.Vec, qop float64) {
	dir := s.Dir
	if i > 0 {
		dir = r3.Add(dir, r3.Scale(h, kPrev))
	}
	*k = r3.Scale(qop, r3.Cross(dir, b))
}

// cols3 is a 3x3 matrix stored as columns; enough structure for the
// direction blocks of the transport matrix.
type cols3 [3]r3.Vec

func identCols() cols3 {
	return cols3{{X: 1}, {Y: 1}, {Z: 1}}
}

func (m cols3) addScaled(o cols3, f float64) cols3 {
	for i := range m {
		m[i] = r3.Add(m[i], r3.Scale(f, o[i]))
	}
	return m
}

// crossCols maps every column c to qop * (c x b).
func (m cols3) crossCols(b r3.Vec, qop float64) cols3 {
	for i := range m {
		m[i] = r3.Scale(qop, r3.Cross(m[i], b))
	}
	return m
}

func (m cols3) scale(f float64) cols3 {
	for i := range m {
		m[i] = r3.Scale(f, m[i])
	}
	return m
}

func (m cols3) add(o cols3) cols3 {
	for i := range m {
		m[i] = r3.Add(m[i], o[i])
	}
	return m
}

func setBlock(d *mat.Dense, row, col int, m cols3) {
	for j, c := range m {
		d.Set(row, col+j, c.X)
		d.Set(row+1, col+j, c.Y)
		d.Set(row+2, col+j, c.Z)
	}
}

func setColVec(d *mat.Dense, row, col int, v r3.Vec) {
	d.Set(row, col, v.X)
	d.Set(row+1, col, v.Y)
	d.Set(row+2, col, v.Z)
}

// fillTransportMatrix writes the exact per-step free transport matrix
// derived from the same stage evaluations the step used, so that a
// later covariance request costs no re-integration.
func fillTransportMatrix(s *State, h float64, qop float64, d *mat.Dense) {
	sd := &s.stages
	half := h / 2
	k1, k2, k3 := sd.k[0], sd.k[1], sd.k[2]
	b0, b1, b2 := sd.b[0], sd.b[1], sd.b[2]

	// direction sensitivities of the stages
	dk1dT := identCols().crossCols(b0, qop)
	dk2dT := identCols().addScaled(dk1dT, half).crossCols(b1, qop)
	dk3dT := identCols().addScaled(dk2dT, half).crossCols(b1, qop)
	dk4dT := identCols().addScaled(dk3dT, h).crossCols(b2, qop)

	// q/p sensitivities of the stages
	dk1dL := r3.Cross(s.Dir, b0)
	dk2dL := r3.Add(
		r3.Cross(r3.Add(s.Dir, r3.Scale(half, k1)), b1),
		r3.Scale(qop*half, r3.Cross(dk1dL, b1)))
	dk3dL := r3.Add(
		r3.Cross(r3.Add(s.Dir, r3.Scale(half, k2)), b1),
		r3.Scale(qop*half, r3.Cross(dk2dL, b1)))
	dk4dL := r3.Add(
		r3.Cross(r3.Add(s.Dir, r3.Scale(h, k3)), b2),
		r3.Scale(qop*h, r3.Cross(dk3dL, b2)))

	// position rows
	dFdT := identCols().add(dk1dT.add(dk2dT).add(dk3dT).scale(h / 6)).scale(h)
	dFdL := r3.Scale(h*h/6, r3.Add(r3.Add(dk1dL, dk2dL), dk3dL))
	setBlock(d, track.FreePos0, track.FreeDir0, dFdT)
	setColVec(d, track.FreePos0, track.FreeQOverP, dFdL)

	// direction rows (on top of the identity already present)
	dGdT := dk1dT.add(dk2dT.scale(2)).add(dk3dT.scale(2)).add(dk4dT).scale(h / 6)
	for j, c := range dGdT {
		d.Set(track.FreeDir0, track.FreeDir0+j, d.At(track.FreeDir0, track.FreeDir0+j)+c.X)
		d.Set(track.FreeDir1, track.FreeDir0+j, d.At(track.FreeDir1, track.FreeDir0+j)+c.Y)
		d.Set(track.FreeDir2, track.FreeDir0+j, d.At(track.FreeDir2, track.FreeDir0+j)+c.Z)
	}
	dGdL := r3.Scale(h/6, r3.Add(r3.Add(dk1dL, r3.Scale(2, r3.Add(dk2dL, dk3dL))), dk4dL))
	setColVec(d, track.FreeDir0, track.FreeQOverP, dGdL)

	// time-momentum coupling: dt/ds = sqrt(1 + m^2 (q/p)^2)
	qopFree := qOverP(s)
	m2 := sd.mass * sd.mass
	d.Set(track.FreeTime, track.FreeQOverP, h*m2*qopFree/math.Sqrt(1+m2*qopFree*qopFree))
}
