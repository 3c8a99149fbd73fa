package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/trackprop/internal/propagator"
)

type ExportData struct {
	Layout    string             `json:"layout"`
	Particle  string             `json:"particle"`
	P         float64            `json:"p"`
	Charge    float64            `json:"charge"`
	Bz        float64            `json:"bz"`
	Direction string             `json:"direction"`
	Reason    string             `json:"reason"`
	Steps     int                `json:"steps"`
	Metrics   map[string]float64 `json:"metrics"`
	Records   []exportRecord     `json:"records"`
}

type exportRecord struct {
	Path float64    `json:"path"`
	Pos  [3]float64 `json:"pos"`
	Dir  [3]float64 `json:"dir"`
	P    float64    `json:"p"`
	T    float64    `json:"t"`
}

func buildExport(meta RunMetadata, steps []propagator.StepRecord) ExportData {
	data := ExportData{
		Layout:    meta.Layout,
		Particle:  meta.Particle,
		P:         meta.P,
		Charge:    meta.Charge,
		Bz:        meta.Bz,
		Direction: meta.Direction,
		Reason:    meta.Reason,
		Steps:     len(steps),
		Metrics:   meta.Metrics,
		Records:   make([]exportRecord, len(steps)),
	}
	for i, rec := range steps {
		data.Records[i] = exportRecord{
			Path: rec.Path,
			Pos:  [3]float64{rec.Pos.X, rec.Pos.Y, rec.Pos.Z},
			Dir:  [3]float64{rec.Dir.X, rec.Dir.Y, rec.Dir.Z},
			P:    rec.P,
			T:    rec.T,
		}
	}
	return data
}

func ExportJSON(path string, meta RunMetadata, steps []propagator.StepRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeExport(file, meta, steps)
}

func ExportJSONStdout(meta RunMetadata, steps []propagator.StepRecord) error {
	return writeExport(os.Stdout, meta, steps)
}

func writeExport(w io.Writer, meta RunMetadata, steps []propagator.StepRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildExport(meta, steps))
}
