package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/proteogen/vcfbatch/internal/bench"
	"github.com/proteogen/vcfbatch/internal/config"
	"github.com/proteogen/vcfbatch/internal/tools"
)

// BenchParams holds the flag values of the bench command. Exported for
// testing.
type BenchParams struct {
	SourceVCF       string
	Reference       string
	WorkDir         string
	ResultsDir      string
	ReportDir       string
	Engines         []string
	PatientCounts   []int
	WriterModes     []string
	Runs            int
	Warmup          int
	CheckpointEvery int
	GeneratorPath   string
}

// newBenchCmd creates the "bench" subcommand: benchmark the generation tool
// over a matrix of engine modes, patient counts, and writer modes.
func newBenchCmd() *cobra.Command {
	var params BenchParams

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the generation tool",
		Long: `Run the generation tool over a matrix of engine modes, patient counts,
and output-writer modes, with warm-up repetitions excluded from measurement.
Timings are checkpointed periodically and written as JSON and CSV reports.`,
		Example: `  # Default matrix: st/mt/gpu engines, doubling patient counts
  vcfbatch bench -f chr1.vcf -r reference.fasta --work-dir tmp/ --report-dir bench/

  # Quick session: one engine, two patient counts, three runs each
  vcfbatch bench -f chr1.vcf -r reference.fasta --work-dir tmp/ --report-dir bench/ \
    --engines st --patients 16,256 --runs 3 --warmup 1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeBench(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.SourceVCF, "file", "f", "", "uncompressed VCF holding the benchmark cohort")
	cmd.Flags().StringVarP(&params.Reference, "ref", "r", "", "reference FASTA file")
	cmd.Flags().StringVar(&params.WorkDir, "work-dir", ".", "directory for per-trial truncated inputs")
	cmd.Flags().StringVar(&params.ResultsDir, "results-dir", "", "scratch directory for generated sequences (default: work dir)")
	cmd.Flags().StringVar(&params.ReportDir, "report-dir", ".", "directory for timing reports")
	cmd.Flags().StringSliceVar(&params.Engines, "engines", []string{"st", "mt", "gpu"}, "engine modes to benchmark")
	cmd.Flags().IntSliceVar(&params.PatientCounts, "patients",
		[]int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384},
		"patient counts to benchmark")
	cmd.Flags().StringSliceVar(&params.WriterModes, "writer-modes", []string{"single", "parallel"},
		"output writer modes to benchmark (single, parallel)")
	cmd.Flags().IntVar(&params.Runs, "runs", 10, "measured repetitions per matrix cell")
	cmd.Flags().IntVar(&params.Warmup, "warmup", 2, "unmeasured disk warm-up repetitions per cell")
	cmd.Flags().IntVar(&params.CheckpointEvery, "checkpoint-every", 100, "persist intermediate results every N measured runs (0 disables)")
	cmd.Flags().StringVar(&params.GeneratorPath, "generator", "", "path to the generation tool executable")

	return cmd
}

func executeBench(cmd *cobra.Command, params BenchParams) error {
	ctx := cmd.Context()

	defaultsPath, _ := cmd.Flags().GetString("config")
	defaults, err := config.LoadDefaults(defaultsPath)
	if err != nil {
		return err
	}

	cfg := config.BenchConfig{
		SourceVCF:       params.SourceVCF,
		ReferencePath:   params.Reference,
		WorkDir:         params.WorkDir,
		ResultsDir:      params.ResultsDir,
		ReportDir:       params.ReportDir,
		Engines:         params.Engines,
		PatientCounts:   params.PatientCounts,
		Runs:            params.Runs,
		Warmup:          params.Warmup,
		CheckpointEvery: params.CheckpointEvery,
		GeneratorPath:   params.GeneratorPath,
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = cfg.WorkDir
	}
	if cfg.GeneratorPath == "" {
		cfg.GeneratorPath = defaults.GeneratorPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	engines := make([]tools.Engine, 0, len(cfg.Engines))
	for _, e := range cfg.Engines {
		engine, err := tools.ParseEngine(e)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
		}
		engines = append(engines, engine)
	}
	writerModes, err := parseWriterModes(params.WriterModes)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
	}

	for _, dir := range []string{cfg.WorkDir, cfg.ResultsDir, cfg.ReportDir} {
		state, err := config.EnsureDir(dir)
		if err != nil {
			return err
		}
		logger.Debug().Str("dir", dir).Str("state", state.String()).Msg("directory ready")
	}

	opts := bench.Options{
		SourceVCF:       cfg.SourceVCF,
		Reference:       cfg.ReferencePath,
		WorkDir:         cfg.WorkDir,
		ResultsDir:      cfg.ResultsDir,
		ReportDir:       cfg.ReportDir,
		Engines:         engines,
		PatientCounts:   cfg.PatientCounts,
		WriterModes:     writerModes,
		Runs:            cfg.Runs,
		Warmup:          cfg.Warmup,
		CheckpointEvery: cfg.CheckpointEvery,
	}
	cmd.Printf("Benchmark session: %d tool invocations\n", opts.TotalRuns())

	h := bench.New(tools.NewGenerator(cfg.GeneratorPath, nil))
	results, runErr := h.Run(ctx, opts)

	// Persist whatever was measured even when the session aborted mid-matrix.
	if len(results.Measurements) > 0 {
		jsonPath := filepath.Join(cfg.ReportDir, "benchmark_results.json")
		csvPath := filepath.Join(cfg.ReportDir, "benchmark_results.csv")
		if err := results.WriteJSON(jsonPath); err != nil {
			return err
		}
		if err := results.WriteCSV(csvPath); err != nil {
			return err
		}
		cmd.Printf("Results written to %s and %s\n", jsonPath, csvPath)
	}
	if runErr != nil {
		return runErr
	}

	cmd.Printf("Completed %d measured runs\n", len(results.Measurements))
	return nil
}

func parseWriterModes(modes []string) ([]bool, error) {
	out := make([]bool, 0, len(modes))
	for _, m := range modes {
		switch m {
		case "single":
			out = append(out, true)
		case "parallel":
			out = append(out, false)
		default:
			return nil, fmt.Errorf("unknown writer mode %q (want single or parallel)", m)
		}
	}
	return out, nil
}
