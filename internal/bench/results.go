package bench

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Measurement is one measured generation run.
type Measurement struct {
	Patients     int           `json:"patients"`
	Engine       string        `json:"engine"`
	SingleWriter bool          `json:"single_writer"`
	Run          int           `json:"run"`
	Duration     time.Duration `json:"duration_ns"`
}

// Results collects every measured run of a benchmark session.
type Results struct {
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at,omitempty"`
	Measurements []Measurement `json:"measurements"`
}

// Add appends one measurement.
func (r *Results) Add(m Measurement) {
	r.Measurements = append(r.Measurements, m)
}

// WriteJSON persists the results as indented JSON.
func (r *Results) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results %s: %w", path, err)
	}
	return nil
}

// WriteCSV exports the measurements as a flat table for spreadsheet import.
func (r *Results) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"patients", "engine", "single_writer", "run", "seconds"}); err != nil {
		return fmt.Errorf("writing results %s: %w", path, err)
	}
	for _, m := range r.Measurements {
		rec := []string{
			strconv.Itoa(m.Patients),
			m.Engine,
			strconv.FormatBool(m.SingleWriter),
			strconv.Itoa(m.Run),
			strconv.FormatFloat(m.Duration.Seconds(), 'f', 6, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("writing results %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing results %s: %w", path, err)
	}
	return nil
}
