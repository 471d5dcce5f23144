package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proteogen/vcfbatch/internal/config"
	"github.com/proteogen/vcfbatch/internal/dispatch"
	"github.com/proteogen/vcfbatch/internal/tools"
)

// RunParams holds the flag values of the run command. Exported for testing.
type RunParams struct {
	Source             string
	Reference          string
	OutputDir          string
	TempDir            string
	BatchSize          int
	Workers            int
	Engine             string
	KeepArtifacts      bool
	UseInputNameAsBase bool
	Strict             bool
	BCFToolsPath       string
	GeneratorPath      string
}

// newRunCmd creates the "run" subcommand: extract fixed-size patient batches
// from one compressed variant file and generate proteomes for each batch on a
// bounded worker pool.
func newRunCmd() *cobra.Command {
	var params RunParams

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one variant file in parallel patient batches",
		Long: `Partition the patients of a compressed variant file into fixed-size
batches, extract each batch into an isolated temporary VCF with the filter
tool, and run the generation tool on every batch. Batches execute
concurrently up to the worker count; a failed batch is logged and counted
but never stops its siblings.`,
		Example: `  # 100 patients per batch, one worker per CPU core
  vcfbatch run -f cohort.bcf.gz -r reference.fasta -o fasta/ -t tmp/

  # 8 workers, keep per-batch temp files for debugging
  vcfbatch run -f cohort.bcf.gz -r reference.fasta -o fasta/ -t tmp/ -w 8 --keep-artifacts`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeRun(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.Source, "file", "f", "", "compressed variant file (bcf.gz) holding all patients")
	cmd.Flags().StringVarP(&params.Reference, "ref", "r", "", "reference FASTA file")
	cmd.Flags().StringVarP(&params.OutputDir, "output-dir", "o", ".", "directory for generated sequences")
	cmd.Flags().StringVarP(&params.TempDir, "temp-dir", "t", ".", "directory for per-batch temp files")
	cmd.Flags().IntVarP(&params.BatchSize, "batch-size", "b", 0, "patients per batch (default from config, 100)")
	cmd.Flags().IntVarP(&params.Workers, "workers", "w", 0, "worker pool size (default: CPU cores)")
	cmd.Flags().StringVarP(&params.Engine, "engine", "g", "", "generation engine mode: st, mt or gpu")
	cmd.Flags().BoolVar(&params.KeepArtifacts, "keep-artifacts", false, "keep per-batch temp files after processing")
	cmd.Flags().BoolVarP(&params.UseInputNameAsBase, "input-name-as-base", "k", false,
		"nest temp and output files in a directory named after the input")
	cmd.Flags().BoolVar(&params.Strict, "strict", false, "exit non-zero when any batch failed")
	cmd.Flags().StringVar(&params.BCFToolsPath, "bcftools", "", "path to the filter tool executable")
	cmd.Flags().StringVar(&params.GeneratorPath, "generator", "", "path to the generation tool executable")

	return cmd
}

func executeRun(cmd *cobra.Command, params RunParams) error {
	ctx := cmd.Context()

	cfg, err := buildRunConfig(cmd, params)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	engine, err := tools.ParseEngine(cfg.Engine)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
	}

	tempDir, outputDir := cfg.TempDir, cfg.OutputDir
	if cfg.UseInputNameAsBase {
		base := inputBaseName(cfg.SourceFile)
		tempDir = filepath.Join(tempDir, base)
		outputDir = filepath.Join(outputDir, base)
	}
	for _, dir := range []string{tempDir, outputDir} {
		state, err := config.EnsureDir(dir)
		if err != nil {
			return err
		}
		logger.Debug().Str("dir", dir).Str("state", state.String()).Msg("directory ready")
	}

	bcf := tools.NewBCFTools(cfg.BCFToolsPath, nil)
	gen := tools.NewGenerator(cfg.GeneratorPath, nil)

	ids, err := bcf.ListSamples(ctx, cfg.SourceFile)
	if err != nil {
		return err
	}
	if err := writeProbandList(tempDir, ids); err != nil {
		return err
	}
	logger.Info().Int("patients", len(ids)).Str("source", cfg.SourceFile).Msg("patient list loaded")

	summary, err := dispatch.New(bcf, gen).RunAll(ctx, dispatch.Options{
		Source:        cfg.SourceFile,
		Reference:     cfg.ReferencePath,
		TempDir:       tempDir,
		OutputDir:     outputDir,
		BatchSize:     cfg.BatchSize,
		Workers:       cfg.Workers,
		Engine:        engine,
		KeepArtifacts: cfg.KeepArtifacts,
	}, ids)
	if err != nil {
		return err
	}

	cmd.Printf("Processed %d batches: %d succeeded, %d failed\n",
		summary.Batches, summary.Succeeded, summary.Failed)

	if cfg.Strict && summary.Failed > 0 {
		return &FailureTallyError{Failed: summary.Failed, Total: summary.Batches}
	}
	return nil
}

// buildRunConfig merges flag values over the YAML defaults file.
func buildRunConfig(cmd *cobra.Command, params RunParams) (config.RunConfig, error) {
	defaultsPath, _ := cmd.Flags().GetString("config")
	defaults, err := config.LoadDefaults(defaultsPath)
	if err != nil {
		return config.RunConfig{}, err
	}

	cfg := config.RunConfig{
		SourceFile:         params.Source,
		ReferencePath:      params.Reference,
		OutputDir:          params.OutputDir,
		TempDir:            params.TempDir,
		BatchSize:          params.BatchSize,
		Workers:            params.Workers,
		Engine:             params.Engine,
		KeepArtifacts:      params.KeepArtifacts || defaults.KeepArtifacts,
		UseInputNameAsBase: params.UseInputNameAsBase,
		Strict:             params.Strict,
		BCFToolsPath:       params.BCFToolsPath,
		GeneratorPath:      params.GeneratorPath,
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Engine == "" {
		cfg.Engine = defaults.Engine
	}
	if cfg.BCFToolsPath == "" {
		cfg.BCFToolsPath = defaults.BCFToolsPath
	}
	if cfg.GeneratorPath == "" {
		cfg.GeneratorPath = defaults.GeneratorPath
	}
	return cfg, nil
}

// inputBaseName strips directory and extensions from the input path, so
// "csq/chr1.bcf.gz" becomes "chr1".
func inputBaseName(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return base
}

// writeProbandList records the full patient enumeration next to the batch
// temp files, mirroring what the extraction tool saw.
func writeProbandList(tempDir string, ids []string) error {
	path := filepath.Join(tempDir, "name_probands.txt")
	if err := os.WriteFile(path, []byte(strings.Join(ids, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing proband list %s: %w", path, err)
	}
	return nil
}
