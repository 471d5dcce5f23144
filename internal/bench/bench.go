// Package bench benchmarks the proteome generation tool across a matrix of
// engine modes, patient counts, and output-writer modes. Each matrix cell is
// run a configurable number of warm-up (unmeasured) and measured repetitions,
// and wall-clock timings are checkpointed periodically so a killed session
// keeps its partial results.
package bench

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/proteogen/vcfbatch/internal/logging"
	"github.com/proteogen/vcfbatch/internal/tools"
)

// vcfFixedColumns is the number of leading tab-separated VCF columns before
// the per-patient genotype columns begin.
const vcfFixedColumns = 9

// Options carry everything one benchmark session needs.
type Options struct {
	SourceVCF  string
	Reference  string
	WorkDir    string
	ResultsDir string
	ReportDir  string

	Engines       []tools.Engine
	PatientCounts []int

	// WriterModes lists the single-writer settings to benchmark. Empty means
	// both on and off.
	WriterModes []bool

	Runs   int
	Warmup int

	// CheckpointEvery persists intermediate results after this many measured
	// runs; zero disables checkpoints.
	CheckpointEvery int
}

// TotalRuns returns the number of tool invocations the session will make,
// warm-ups included.
func (o Options) TotalRuns() int {
	modes := len(o.WriterModes)
	if modes == 0 {
		modes = 2
	}
	return (o.Runs + o.Warmup) * len(o.Engines) * len(o.PatientCounts) * modes
}

// Harness runs benchmark sessions.
type Harness struct {
	Gen *tools.Generator
}

// New creates a Harness over the given generator binding.
func New(gen *tools.Generator) *Harness {
	return &Harness{Gen: gen}
}

// Run executes the full benchmark matrix. Unlike batch dispatch, a failed
// tool invocation aborts the session: a benchmark with missing cells is not
// comparable, and the partial results have already been checkpointed.
func (h *Harness) Run(ctx context.Context, opts Options) (*Results, error) {
	log := logging.FromContext(ctx)

	writerModes := opts.WriterModes
	if len(writerModes) == 0 {
		writerModes = []bool{true, false}
	}

	results := &Results{StartedAt: time.Now()}
	total := opts.TotalRuns()
	log.Info().
		Int("total_runs", total).
		Int("engines", len(opts.Engines)).
		Int("patient_counts", len(opts.PatientCounts)).
		Msg("starting benchmark session")

	counter := 0
	for _, patients := range opts.PatientCounts {
		trialVCF := filepath.Join(opts.WorkDir, fmt.Sprintf("run_file_with_%d_patients.vcf", patients))
		if err := TruncateVCF(opts.SourceVCF, trialVCF, patients); err != nil {
			return results, err
		}
		log.Info().Int("patients", patients).Str("trial_vcf", trialVCF).Msg("trial input prepared")

		for _, engine := range opts.Engines {
			for _, singleWriter := range writerModes {
				for run := 0; run < opts.Warmup+opts.Runs; run++ {
					start := time.Now()
					err := h.Gen.Generate(ctx, tools.GenerateRequest{
						Artifact:     trialVCF,
						Reference:    opts.Reference,
						OutputDir:    opts.ResultsDir,
						Engine:       engine,
						SingleWriter: singleWriter,
					})
					if err != nil {
						return results, fmt.Errorf("benchmark run failed (patients=%d engine=%s): %w",
							patients, engine, err)
					}
					elapsed := time.Since(start)

					if run < opts.Warmup {
						continue
					}
					counter++
					results.Add(Measurement{
						Patients:     patients,
						Engine:       string(engine),
						SingleWriter: singleWriter,
						Run:          run - opts.Warmup,
						Duration:     elapsed,
					})
					log.Debug().
						Int("patients", patients).
						Str("engine", string(engine)).
						Bool("single_writer", singleWriter).
						Dur("elapsed", elapsed).
						Int("measured_runs", counter).
						Msg("run measured")

					if opts.CheckpointEvery > 0 && counter%opts.CheckpointEvery == 0 {
						path := filepath.Join(opts.ReportDir, fmt.Sprintf("results_at_%d_runs.json", counter))
						if err := results.WriteJSON(path); err != nil {
							return results, err
						}
						log.Info().Str("checkpoint", path).Msg("results checkpointed")
					}
				}
			}
		}
	}

	results.FinishedAt = time.Now()
	log.Info().
		Int("measured_runs", counter).
		Dur("elapsed", results.FinishedAt.Sub(results.StartedAt)).
		Msg("benchmark session finished")
	return results, nil
}

// TruncateVCF copies src to dst keeping only the fixed VCF columns plus the
// first `patients` genotype columns. Meta lines (##) are copied whole; the
// #CHROM header line is truncated like a record so column counts stay
// consistent. Lines are treated as opaque tab-separated text.
func TruncateVCF(src, dst string, patients int) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	keep := vcfFixedColumns + patients
	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "##") {
			fields := strings.Split(line, "\t")
			if len(fields) > keep {
				line = strings.Join(fields[:keep], "\t")
			}
		}
		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", dst, err)
	}
	return nil
}
