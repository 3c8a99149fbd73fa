package config

var Presets = map[string]map[string]*Config{
	"vacuum": {
		"straight": {
			Geometry: GeometryConfig{Layout: "vacuum", HalfY: 1000, HalfZ: 1000, Length: 2000},
			Particle: ParticleConfig{Kind: "muon", P: 1.0, Charge: -1, ThetaDeg: 90},
			Propagation: PropagationConfig{
				Direction: "forward", MaxSteps: 1000, MaxStepSize: 1000, Tolerance: 1e-4,
			},
		},
		"helix": {
			Geometry: GeometryConfig{Layout: "vacuum", HalfY: 1000, HalfZ: 1000, Length: 2000},
			Field:    FieldConfig{Bz: 2.0},
			Particle: ParticleConfig{Kind: "muon", P: 1.0, Charge: -1, ThetaDeg: 90},
			Propagation: PropagationConfig{
				Direction: "forward", MaxSteps: 2000, MaxStepSize: 100, Tolerance: 1e-4,
			},
		},
		"soft": {
			Geometry: GeometryConfig{Layout: "vacuum", HalfY: 500, HalfZ: 500, Length: 1000},
			Field:    FieldConfig{Bz: 2.0},
			Particle: ParticleConfig{Kind: "pion", P: 0.1, Charge: 1, ThetaDeg: 90},
			Propagation: PropagationConfig{
				Direction: "forward", MaxSteps: 5000, MaxStepSize: 50, Tolerance: 1e-4,
			},
		},
	},
	"material": {
		"beryllium": {
			Geometry: GeometryConfig{Layout: "material", Material: "beryllium", HalfY: 1000, HalfZ: 1000, Length: 1000},
			Particle: ParticleConfig{Kind: "muon", P: 1.0, Charge: -1, ThetaDeg: 90},
			Propagation: PropagationConfig{
				Direction: "forward", MaxSteps: 2000, MaxStepSize: 100, Tolerance: 1e-4, Covariance: true,
			},
		},
		"silicon": {
			Geometry: GeometryConfig{Layout: "material", Material: "silicon", HalfY: 1000, HalfZ: 1000, Length: 300},
			Particle: ParticleConfig{Kind: "muon", P: 1.0, Charge: -1, ThetaDeg: 90},
			Propagation: PropagationConfig{
				Direction: "forward", MaxSteps: 2000, MaxStepSize: 50, Tolerance: 1e-4, Covariance: true,
			},
		},
	},
	"vac-mat-vac": {
		"sandwich": {
			Geometry: GeometryConfig{Layout: "vac-mat-vac", Material: "beryllium", HalfY: 1000, HalfZ: 1000, Length: 3000},
			Field:    FieldConfig{Bz: 2.0},
			Particle: ParticleConfig{Kind: "muon", P: 1.0, Charge: -1, ThetaDeg: 90},
			Propagation: PropagationConfig{
				Direction: "forward", MaxSteps: 5000, MaxStepSize: 100, Tolerance: 1e-4, Covariance: true,
			},
		},
	},
	"telescope": {
		"six-plane": {
			Geometry: GeometryConfig{Layout: "telescope", HalfY: 500, HalfZ: 500, Length: 1400},
			Particle: ParticleConfig{Kind: "electron", P: 4.0, Charge: -1, ThetaDeg: 90},
			Propagation: PropagationConfig{
				Direction: "forward", MaxSteps: 2000, MaxStepSize: 200, Tolerance: 1e-4, Covariance: true,
			},
		},
	},
}

func GetPreset(layout, preset string) *Config {
	layoutPresets, ok := Presets[layout]
	if !ok {
		return nil
	}
	cfg, ok := layoutPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(layout string) []string {
	layoutPresets, ok := Presets[layout]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(layoutPresets))
	for name := range layoutPresets {
		names = append(names, name)
	}
	return names
}
