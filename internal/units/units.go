// Package units defines the native unit system of the propagation
// kernel: lengths in millimeters, energies in GeV, charge in units of
// the elementary charge, and time measured in mm/c so that the speed
// of light is a pure conversion factor.
package units

const (
	Millimeter = 1.0
	Micrometer = 1e-3 * Millimeter
	Centimeter = 10.0 * Millimeter
	Meter      = 1e3 * Millimeter

	GeV = 1.0
	MeV = 1e-3 * GeV
	KeV = 1e-6 * GeV
	EV  = 1e-9 * GeV

	// SpeedOfLight converts nanoseconds to native time (mm/c).
	SpeedOfLight = 299.792458 // mm/ns
	Nanosecond   = SpeedOfLight

	// Tesla expresses a magnetic field in GeV/(e·mm) so that the
	// curvature term q/p · d×B comes out in 1/mm.
	Tesla = 0.000299792458

	// density units feeding the energy-loss formulas
	Gram            = 1.0
	CubicMillimeter = 1.0
)

// Particle rest masses.
const (
	MassElectron = 0.51099895 * MeV
	MassMuon     = 105.6583755 * MeV
	MassPion     = 139.57039 * MeV
	MassProton   = 938.27208816 * MeV
)
