package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/trackprop/internal/field"
	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/material"
	"github.com/san-kum/trackprop/internal/stepper"
	"github.com/san-kum/trackprop/internal/track"
	"github.com/san-kum/trackprop/internal/units"
)

const (
	DefaultMomentum    = 1.0    // GeV
	DefaultBz          = 2.0    // Tesla
	DefaultHalfY       = 1000.0 // mm
	DefaultHalfZ       = 1000.0 // mm
	DefaultMaxSteps    = 1000
	DefaultMaxStepSize = 1000.0 // mm
	DefaultTolerance   = 1e-4
)

type Config struct {
	Geometry    GeometryConfig    `yaml:"geometry"`
	Field       FieldConfig       `yaml:"field"`
	Particle    ParticleConfig    `yaml:"particle"`
	Propagation PropagationConfig `yaml:"propagation"`
}

type GeometryConfig struct {
	// Layout selects one of the built-in row layouts: vacuum,
	// material, vac-mat-vac or telescope.
	Layout   string  `yaml:"layout"`
	HalfY    float64 `yaml:"half_y"`
	HalfZ    float64 `yaml:"half_z"`
	Length   float64 `yaml:"length"`
	Material string  `yaml:"material"`
}

type FieldConfig struct {
	// components in Tesla
	Bx float64 `yaml:"bx"`
	By float64 `yaml:"by"`
	Bz float64 `yaml:"bz"`
}

type ParticleConfig struct {
	Kind     string  `yaml:"kind"`
	P        float64 `yaml:"p"` // GeV
	Charge   float64 `yaml:"charge"`
	PhiDeg   float64 `yaml:"phi_deg"`
	ThetaDeg float64 `yaml:"theta_deg"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Z        float64 `yaml:"z"`
}

type PropagationConfig struct {
	Direction   string  `yaml:"direction"`
	MaxSteps    int     `yaml:"max_steps"`
	MaxStepSize float64 `yaml:"max_step_size"` // mm
	MaxPath     float64 `yaml:"max_path"`      // mm, 0 = unlimited
	Tolerance   float64 `yaml:"tolerance"`
	Covariance  bool    `yaml:"covariance"`
}

func DefaultConfig() *Config {
	return &Config{
		Geometry: GeometryConfig{
			Layout: "vacuum",
			HalfY:  DefaultHalfY,
			HalfZ:  DefaultHalfZ,
			Length: 2000.0,
		},
		Field: FieldConfig{Bz: DefaultBz},
		Particle: ParticleConfig{
			Kind:     "muon",
			P:        DefaultMomentum,
			Charge:   -1,
			ThetaDeg: 90,
		},
		Propagation: PropagationConfig{
			Direction:   "forward",
			MaxSteps:    DefaultMaxSteps,
			MaxStepSize: DefaultMaxStepSize,
			Tolerance:   DefaultTolerance,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Mass resolves the particle kind to its mass in GeV.
func (p ParticleConfig) Mass() (float64, error) {
	switch p.Kind {
	case "electron":
		return units.MassElectron, nil
	case "muon", "":
		return units.MassMuon, nil
	case "pion":
		return units.MassPion, nil
	case "proton":
		return units.MassProton, nil
	}
	return 0, fmt.Errorf("config: unknown particle kind %q", p.Kind)
}

// Start builds the initial curvilinear state.
func (c *Config) Start() (track.CurvilinearParameters, error) {
	dir := track.DirectionFromAngles(
		c.Particle.PhiDeg*degToRad, c.Particle.ThetaDeg*degToRad)
	return track.NewCurvilinear(
		r3.Vec{X: c.Particle.X, Y: c.Particle.Y, Z: c.Particle.Z},
		dir, c.Particle.P, c.Particle.Charge, 0)
}

// BField builds the field provider, converting Tesla to internal
// units.
func (c *Config) BField() field.Provider {
	b := r3.Vec{
		X: c.Field.Bx * units.Tesla,
		Y: c.Field.By * units.Tesla,
		Z: c.Field.Bz * units.Tesla,
	}
	if b == (r3.Vec{}) {
		return field.Null{}
	}
	return field.Constant{B: b}
}

// Direction resolves the navigation direction string.
func (c *Config) Direction() (stepper.NavigationDirection, error) {
	switch c.Propagation.Direction {
	case "forward", "":
		return stepper.Forward, nil
	case "backward":
		return stepper.Backward, nil
	}
	return 0, fmt.Errorf("config: unknown direction %q", c.Propagation.Direction)
}

// VolumeMaterial resolves the named volume material.
func (c *Config) VolumeMaterial() (material.Material, error) {
	switch c.Geometry.Material {
	case "vacuum", "":
		return material.Material{}, nil
	case "beryllium":
		return material.Beryllium(), nil
	case "silicon":
		return material.Silicon(), nil
	}
	return material.Material{}, fmt.Errorf("config: unknown material %q", c.Geometry.Material)
}

// Arena builds the tracking geometry for the configured layout.
func (c *Config) Arena() (*geometry.TrackingGeometry, error) {
	g := c.Geometry
	mat, err := c.VolumeMaterial()
	if err != nil {
		return nil, err
	}
	length := g.Length
	if length <= 0 {
		length = 2000.0
	}
	row := geometry.RowConfig{HalfY: g.HalfY, HalfZ: g.HalfZ}
	switch g.Layout {
	case "vacuum", "":
		row.Volumes = []geometry.VolumeConfig{
			{Name: "world", MinX: 0, MaxX: length},
		}
	case "material":
		if !mat.IsValid() {
			mat = material.Beryllium()
		}
		row.Volumes = []geometry.VolumeConfig{
			{Name: "absorber", MinX: 0, MaxX: length, Mat: mat},
		}
	case "vac-mat-vac":
		if !mat.IsValid() {
			mat = material.Beryllium()
		}
		third := length / 3
		row.Volumes = []geometry.VolumeConfig{
			{Name: "entry", MinX: 0, MaxX: third},
			{Name: "absorber", MinX: third, MaxX: 2 * third, Mat: mat},
			{Name: "exit", MinX: 2 * third, MaxX: length},
		}
	case "telescope":
		vol := geometry.VolumeConfig{Name: "telescope", MinX: 0, MaxX: length}
		for i := 1; i <= 6; i++ {
			vol.Layers = append(vol.Layers, geometry.LayerConfig{
				X:         float64(i) * length / 7,
				Mat:       material.Silicon(),
				Thickness: 320 * units.Micrometer,
				Sensitive: true,
			})
		}
		row.Volumes = []geometry.VolumeConfig{vol}
	default:
		return nil, fmt.Errorf("config: unknown geometry layout %q", g.Layout)
	}
	return geometry.BuildRow(row)
}

const degToRad = 0.017453292519943295
