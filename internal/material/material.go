// Package material carries the matter properties the dense stepper
// extension needs: radiation length, nuclear interaction length and
// the quantities entering mean energy loss and multiple scattering.
package material

import (
	"math"

	"github.com/san-kum/trackprop/internal/units"
)

// Material describes a homogeneous medium. The zero value is vacuum.
type Material struct {
	X0  float64 // radiation length [mm]
	L0  float64 // nuclear interaction length [mm]
	Ar  float64 // relative atomic mass [g/mol]
	Z   float64 // atomic number
	Rho float64 // density [g/mm^3]
}

// Beryllium matches the test material of the reference detectors.
func Beryllium() Material {
	return Material{X0: 352.8, L0: 407.0, Ar: 9.012, Z: 4.0, Rho: 1.848e-3}
}

func Silicon() Material {
	return Material{X0: 95.7, L0: 465.2, Ar: 28.03, Z: 14.0, Rho: 2.32e-3}
}

func Vacuum() Material { return Material{} }

// IsValid reports whether the medium actually contains matter.
func (m Material) IsValid() bool { return m.X0 > 0 && m.Rho > 0 }

// MeanExcitationEnergy uses the common approximation I = 16 eV * Z^0.9.
func (m Material) MeanExcitationEnergy() float64 {
	return 16 * units.EV * math.Pow(m.Z, 0.9)
}

// K is the constant of the Bethe formula, 0.307075 MeV·cm^2/mol
// converted to native units (GeV·mm^2/mol).
const betheK = 0.307075 * units.MeV * 1e2

// MeanEnergyLoss returns the mean ionization energy loss per path
// length dE/ds (positive, GeV/mm) for a particle of momentum p, mass
// mass and charge q traversing the material. Returns 0 in vacuum and
// for neutral particles.
func (m Material) MeanEnergyLoss(p, mass, q float64) float64 {
	if !m.IsValid() || q == 0 || p <= 0 {
		return 0
	}
	e := math.Sqrt(p*p + mass*mass)
	beta := p / e
	gamma := e / mass
	bg2 := beta * beta * gamma * gamma

	// Maximum energy transfer to an electron in a single collision.
	me := units.MassElectron
	tMax := 2 * me * bg2 / (1 + 2*gamma*me/mass + (me/mass)*(me/mass))

	i := m.MeanExcitationEnergy()
	arg := 2 * me * bg2 * tMax / (i * i)
	if arg <= 1 {
		return 0
	}
	dEdx := betheK * q * q * m.Z / m.Ar / (beta * beta) *
		(0.5*math.Log(arg) - beta*beta)
	if dEdx < 0 {
		return 0
	}
	return dEdx * m.Rho
}

// ScatteringTheta0 returns the Highland standard deviation of the
// projected multiple-scattering angle after traversing a path of the
// given length [mm].
func (m Material) ScatteringTheta0(path, p, mass, q float64) float64 {
	if !m.IsValid() || q == 0 || p <= 0 || path <= 0 {
		return 0
	}
	e := math.Sqrt(p*p + mass*mass)
	beta := p / e
	t := path / m.X0
	return 13.6 * units.MeV / (beta * p) * math.Abs(q) * math.Sqrt(t) *
		(1 + 0.038*math.Log(t))
}
