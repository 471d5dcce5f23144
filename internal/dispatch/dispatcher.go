// Package dispatch implements the batch dispatcher: it partitions the patient
// list of one source variant file into fixed-size batches, extracts each batch
// into an isolated temporary VCF, runs the generation tool on it, and executes
// batches concurrently on a bounded worker pool. A batch either fully succeeds
// or is counted as failed; sibling batches are never aborted.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/proteogen/vcfbatch/internal/logging"
	"github.com/proteogen/vcfbatch/internal/tools"
)

// Options carry everything one dispatch run needs. Built by the CLI from a
// validated RunConfig and passed in explicitly.
type Options struct {
	Source    string
	Reference string
	TempDir   string
	OutputDir string
	BatchSize int

	// Workers bounds concurrent batches; zero means one per CPU core.
	Workers int

	Engine tools.Engine

	// KeepArtifacts retains per-batch temp files after each batch finishes.
	KeepArtifacts bool
}

// Summary is the aggregate outcome of a dispatch run.
type Summary struct {
	Batches   int
	Succeeded int
	Failed    int
}

// Dispatcher runs batches through the filter and generation tools.
type Dispatcher struct {
	BCF *tools.BCFTools
	Gen *tools.Generator
}

// New creates a Dispatcher over the given tool bindings.
func New(bcf *tools.BCFTools, gen *tools.Generator) *Dispatcher {
	return &Dispatcher{BCF: bcf, Gen: gen}
}

// Artifact is the on-disk product of extracting one batch: the sample list
// fed to the filter tool and the extracted VCF it produced. Both carry the
// batch token in their names so concurrent batches sharing one temp
// directory cannot collide.
type Artifact struct {
	Token    string
	ListPath string
	Path     string
}

// Remove deletes the artifact's files. Missing files are ignored so Remove is
// safe on partially created artifacts.
func (a *Artifact) Remove() error {
	var errs []string
	for _, p := range []string{a.ListPath, a.Path} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("removing batch %s artifacts: %s", a.Token, strings.Join(errs, "; "))
	}
	return nil
}

// ExtractBatch writes the batch's patient identifiers to a token-named list
// file and invokes the filter tool to produce a token-named VCF restricted to
// those patients. On failure the returned *ExtractionError names the token.
func (d *Dispatcher) ExtractBatch(ctx context.Context, source string, ids []string, tempDir string) (*Artifact, error) {
	token := ulid.Make().String()
	a := &Artifact{
		Token:    token,
		ListPath: filepath.Join(tempDir, "patient_batch_"+token+".samples.txt"),
		Path:     filepath.Join(tempDir, "patient_batch_"+token+".vcf"),
	}

	if err := writeSampleList(a.ListPath, ids); err != nil {
		return a, &ExtractionError{Token: token, Err: err}
	}

	if err := d.BCF.ExtractSamples(ctx, source, a.ListPath, a.Path); err != nil {
		return a, &ExtractionError{Token: token, Err: err}
	}

	// bcftools can exit zero without producing output on some bad inputs.
	if _, err := os.Stat(a.Path); err != nil {
		return a, &ExtractionError{Token: token, Err: fmt.Errorf("filter tool produced no artifact: %w", err)}
	}
	return a, nil
}

// GenerateForBatch invokes the generation tool on one batch artifact.
func (d *Dispatcher) GenerateForBatch(ctx context.Context, artifact, reference, outputDir string, engine tools.Engine) error {
	err := d.Gen.Generate(ctx, tools.GenerateRequest{
		Artifact:  artifact,
		Reference: reference,
		OutputDir: outputDir,
		Engine:    engine,
	})
	if err != nil {
		return &GenerationError{Artifact: artifact, Err: err}
	}
	return nil
}

type batchResult struct {
	index int
	token string
	size  int
	err   error
}

// RunAll partitions ids, processes each batch (extract then generate) on a
// pool bounded by opts.Workers, and tallies outcomes as completions arrive.
// A batch failure is logged and counted but never aborts sibling batches;
// only partitioning itself can fail.
func (d *Dispatcher) RunAll(ctx context.Context, opts Options, ids []string) (Summary, error) {
	log := logging.FromContext(ctx)

	batches, err := Partition(ids, opts.BatchSize)
	if err != nil {
		return Summary{}, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log.Info().
		Int("patients", len(ids)).
		Int("batches", len(batches)).
		Int("batch_size", opts.BatchSize).
		Int("workers", workers).
		Str("engine", string(opts.Engine)).
		Msg("dispatching batches")

	// The pool limit doubles as back-pressure: a batch's temp files are only
	// created once the group admits it, so at most `workers` artifacts exist
	// ahead of completion.
	results := make(chan batchResult)
	var g errgroup.Group
	g.SetLimit(workers)

	go func() {
		for i, batch := range batches {
			i, batch := i, batch
			g.Go(func() error {
				results <- d.processBatch(ctx, opts, i, batch)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	// The tally is owned by this goroutine; results arrive in completion
	// order, not submission order.
	summary := Summary{Batches: len(batches)}
	progress := NewProgress(len(batches))
	for res := range results {
		progress.Add(res.err == nil)
		if res.err != nil {
			summary.Failed++
			log.Error().
				Int("batch", res.index).
				Str("batch_token", res.token).
				Int("patients", res.size).
				Err(res.err).
				Msg("batch failed")
		} else {
			summary.Succeeded++
		}
		log.Info().
			Int("completed", progress.Completed).
			Int("total", summary.Batches).
			Int("failed", summary.Failed).
			Str("percent", fmt.Sprintf("%.1f%%", progress.PercentComplete())).
			Dur("elapsed", progress.ElapsedTime()).
			Msg("batch finished")
	}

	log.Info().
		Int("batches", summary.Batches).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("elapsed", progress.ElapsedTime()).
		Msg("dispatch complete")
	return summary, nil
}

// processBatch runs one batch end to end inside a worker slot. Extraction and
// generation are sequential within the batch.
func (d *Dispatcher) processBatch(ctx context.Context, opts Options, index int, ids []string) batchResult {
	artifact, err := d.ExtractBatch(ctx, opts.Source, ids, opts.TempDir)
	if !opts.KeepArtifacts && artifact != nil {
		defer func() {
			if rmErr := artifact.Remove(); rmErr != nil {
				logging.FromContext(ctx).Warn().Err(rmErr).Msg("batch artifact cleanup failed")
			}
		}()
	}
	res := batchResult{index: index, size: len(ids)}
	if artifact != nil {
		res.token = artifact.Token
	}
	if err != nil {
		res.err = err
		return res
	}

	res.err = d.GenerateForBatch(ctx, artifact.Path, opts.Reference, opts.OutputDir, opts.Engine)
	return res
}

func writeSampleList(path string, ids []string) error {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(id)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing sample list %s: %w", path, err)
	}
	return nil
}
