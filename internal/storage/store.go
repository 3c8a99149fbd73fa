// Package storage persists propagation runs: one directory per run
// with a JSON metadata file and a CSV of the recorded steps.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/trackprop/internal/propagator"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Layout    string             `json:"layout"`
	Particle  string             `json:"particle"`
	Timestamp time.Time          `json:"timestamp"`
	P         float64            `json:"p"`
	Charge    float64            `json:"charge"`
	Bz        float64            `json:"bz"`
	Direction string             `json:"direction"`
	Reason    string             `json:"reason"`
	Metrics   map[string]float64 `json:"metrics"`
}

var stepHeader = []string{"path", "x", "y", "z", "t", "dx", "dy", "dz", "p", "step_size"}

// Save writes one run directory and returns its ID.
func (s *Store) Save(meta RunMetadata, steps []propagator.StepRecord) (string, error) {
	runID := fmt.Sprintf("%s_%d", meta.Layout, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "steps.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write(stepHeader); err != nil {
		return "", err
	}
	for _, rec := range steps {
		row := []string{
			strconv.FormatFloat(rec.Path, 'f', 6, 64),
			strconv.FormatFloat(rec.Pos.X, 'f', 6, 64),
			strconv.FormatFloat(rec.Pos.Y, 'f', 6, 64),
			strconv.FormatFloat(rec.Pos.Z, 'f', 6, 64),
			strconv.FormatFloat(rec.T, 'f', 6, 64),
			strconv.FormatFloat(rec.Dir.X, 'f', 9, 64),
			strconv.FormatFloat(rec.Dir.Y, 'f', 9, 64),
			strconv.FormatFloat(rec.Dir.Z, 'f', 9, 64),
			strconv.FormatFloat(rec.P, 'f', 9, 64),
			strconv.FormatFloat(rec.StepSize, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadSteps reads the step table back as rows of columns in the header
// order.
func (s *Store) LoadSteps(runID string) ([][]float64, error) {
	csvPath := filepath.Join(s.baseDir, runID, "steps.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, nil
	}

	rows := make([][]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}
		row := make([]float64, 0, len(record))
		for _, field := range record {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			row = append(row, val)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
