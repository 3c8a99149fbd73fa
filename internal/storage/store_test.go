package storage

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/propagator"
)

func sampleRun() (RunMetadata, []propagator.StepRecord) {
	meta := RunMetadata{
		Layout:    "vacuum",
		Particle:  "muon",
		P:         1.0,
		Charge:    -1,
		Bz:        2.0,
		Direction: "forward",
		Reason:    "end-of-world",
		Metrics:   map[string]float64{"path": 1999},
	}
	steps := []propagator.StepRecord{
		{Pos: r3.Vec{X: 100}, Dir: r3.Vec{X: 1}, P: 1.0, T: 0.3, Path: 99, StepSize: 99, Volume: "world"},
		{Pos: r3.Vec{X: 200}, Dir: r3.Vec{X: 1}, P: 1.0, T: 0.7, Path: 199, StepSize: 100, Volume: "world"},
	}
	return meta, steps
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	meta, steps := sampleRun()
	runID, err := store.Save(meta, steps)
	if err != nil {
		t.Fatal(err)
	}

	back, err := store.Load(runID)
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != runID || back.Layout != "vacuum" || back.Particle != "muon" {
		t.Fatalf("metadata %+v", back)
	}
	if back.Metrics["path"] != 1999 {
		t.Fatalf("metrics %v", back.Metrics)
	}
	if back.Timestamp.IsZero() {
		t.Fatal("timestamp not stamped on save")
	}
}

func TestLoadSteps(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	meta, steps := sampleRun()
	runID, err := store.Save(meta, steps)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := store.LoadSteps(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(steps) {
		t.Fatalf("%d rows, want %d", len(rows), len(steps))
	}
	// header order: path, x, y, z, t, dx, dy, dz, p, step_size
	if math.Abs(rows[0][0]-99) > 1e-6 || math.Abs(rows[0][1]-100) > 1e-6 {
		t.Fatalf("first row %v", rows[0])
	}
	if math.Abs(rows[1][8]-1.0) > 1e-9 || math.Abs(rows[1][9]-100) > 1e-6 {
		t.Fatalf("second row %v", rows[1])
	}
}

func TestList(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("empty store lists %d runs", len(runs))
	}

	meta, steps := sampleRun()
	if _, err := store.Save(meta, steps); err != nil {
		t.Fatal(err)
	}
	runs, err = store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Layout != "vacuum" {
		t.Fatalf("runs %+v", runs)
	}
}

func TestListMissingBaseDir(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-created"))
	runs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("runs %+v", runs)
	}
}

func TestExportJSON(t *testing.T) {
	meta, steps := sampleRun()
	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, meta, steps); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	if data.Steps != 2 || len(data.Records) != 2 {
		t.Fatalf("export %+v", data)
	}
	if data.Records[1].Pos[0] != 200 || data.Records[1].Path != 199 {
		t.Fatalf("record %+v", data.Records[1])
	}
}
