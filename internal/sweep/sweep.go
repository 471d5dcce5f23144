// Package sweep automates proteome generation over a directory of compressed
// variant files. Each input is converted to an uncompressed VCF, optionally
// reduced to a transcript allow-list, and fed to the generation tool with its
// own output directory. Inputs are processed sequentially; one bad file never
// stops the sweep.
package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/proteogen/vcfbatch/internal/config"
	"github.com/proteogen/vcfbatch/internal/logging"
	"github.com/proteogen/vcfbatch/internal/tools"
)

// Options carry everything one sweep needs, built from a validated
// SweepConfig.
type Options struct {
	InputDir  string
	OutputDir string
	Reference string

	// SampleSheet restricts extraction to the listed samples when non-empty.
	SampleSheet string

	// TranscriptList names a file of transcript ids; when non-empty every
	// intermediate VCF is reduced to records mentioning one of them.
	TranscriptList string

	// Threads is handed to the filter tool when positive.
	Threads int

	Engine tools.Engine

	// KeepIntermediate retains per-input uncompressed VCFs after generation.
	KeepIntermediate bool
}

// Summary is the aggregate outcome of one sweep.
type Summary struct {
	Inputs    int
	Succeeded int
	Failed    int
}

// Sweeper runs the per-file pipeline.
type Sweeper struct {
	BCF *tools.BCFTools
	Gen *tools.Generator
}

// New creates a Sweeper over the given tool bindings.
func New(bcf *tools.BCFTools, gen *tools.Generator) *Sweeper {
	return &Sweeper{BCF: bcf, Gen: gen}
}

// ListInputs returns the names of the compressed variant files in dir,
// skipping index files, in directory order.
func ListInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory %s: %w", dir, err)
	}

	var inputs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.Contains(name, ".bcf.gz") && !strings.Contains(name, ".csi") {
			inputs = append(inputs, name)
		}
	}
	return inputs, nil
}

// Run sweeps every input in opts.InputDir. Per-file failures are logged and
// counted; only an unreadable input directory or a missing transcript list
// aborts the sweep.
func (s *Sweeper) Run(ctx context.Context, opts Options) (Summary, error) {
	log := logging.FromContext(ctx)

	inputs, err := ListInputs(opts.InputDir)
	if err != nil {
		return Summary{}, err
	}

	var transcripts []string
	if opts.TranscriptList != "" {
		transcripts, err = LoadTranscriptList(opts.TranscriptList)
		if err != nil {
			return Summary{}, err
		}
	}

	log.Info().
		Int("inputs", len(inputs)).
		Str("input_dir", opts.InputDir).
		Int("transcripts", len(transcripts)).
		Msg("starting sweep")

	summary := Summary{Inputs: len(inputs)}
	for _, name := range inputs {
		if err := s.processInput(ctx, opts, name, transcripts); err != nil {
			summary.Failed++
			log.Error().Str("input", name).Err(err).Msg("input failed")
			continue
		}
		summary.Succeeded++
		log.Info().
			Str("input", name).
			Int("completed", summary.Succeeded+summary.Failed).
			Int("total", summary.Inputs).
			Msg("input processed")
	}

	log.Info().
		Int("inputs", summary.Inputs).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("sweep complete")
	return summary, nil
}

// processInput runs one input end to end: convert, optionally reduce to the
// transcript allow-list, generate, then remove the intermediate VCFs.
func (s *Sweeper) processInput(ctx context.Context, opts Options, name string, transcripts []string) error {
	stem := inputStem(name)

	outDir := filepath.Join(opts.OutputDir, stem+"_proteomes")
	state, err := config.EnsureDir(outDir)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Debug().
		Str("dir", outDir).
		Str("state", state.String()).
		Msg("output directory ready")

	vcfPath := filepath.Join(opts.OutputDir, stem+".vcf")
	err = s.BCF.View(ctx, filepath.Join(opts.InputDir, name), vcfPath, tools.ViewOptions{
		SampleSheet: opts.SampleSheet,
		Threads:     opts.Threads,
	})
	if err != nil {
		return err
	}

	artifact := vcfPath
	if len(transcripts) > 0 {
		miniPath := filepath.Join(opts.OutputDir, stem+"_mini.vcf")
		if err := FilterVCF(vcfPath, miniPath, transcripts); err != nil {
			return err
		}
		if !opts.KeepIntermediate {
			if err := os.Remove(vcfPath); err != nil {
				return fmt.Errorf("removing intermediate %s: %w", vcfPath, err)
			}
		}
		artifact = miniPath
	}

	genErr := s.Gen.Generate(ctx, tools.GenerateRequest{
		Artifact:  artifact,
		Reference: opts.Reference,
		OutputDir: outDir,
		Engine:    opts.Engine,
	})

	if !opts.KeepIntermediate {
		if rmErr := os.Remove(artifact); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.FromContext(ctx).Warn().Err(rmErr).Msg("intermediate cleanup failed")
		}
	}
	return genErr
}

// inputStem returns the input name up to its first dot, matching the naming
// of the downstream output directories.
func inputStem(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
