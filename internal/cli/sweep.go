package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proteogen/vcfbatch/internal/config"
	"github.com/proteogen/vcfbatch/internal/sweep"
	"github.com/proteogen/vcfbatch/internal/tools"
)

// SweepParams holds the flag values of the sweep command. Exported for
// testing.
type SweepParams struct {
	InputDir         string
	OutputDir        string
	Reference        string
	SampleSheet      string
	TranscriptList   string
	Threads          int
	Engine           string
	KeepIntermediate bool
	Strict           bool
	BCFToolsPath     string
	GeneratorPath    string
}

// newSweepCmd creates the "sweep" subcommand: sequentially convert every
// compressed variant file in a directory and generate proteomes for each.
func newSweepCmd() *cobra.Command {
	var params SweepParams

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Generate proteomes for every variant file in a directory",
		Long: `Enumerate the *.bcf.gz files of a directory (index files are skipped),
convert each to an uncompressed VCF, optionally restrict it to a sample sheet
and a transcript allow-list, and run the generation tool per file into its own
output directory. Files are processed sequentially; a failed file is logged
and counted but never stops the sweep.`,
		Example: `  # Sweep a directory with the multi-thread engine
  vcfbatch sweep -i csq/ -o fasta/ -r reference.fasta -g mt

  # Restrict to a sample sheet and a transcript allow-list
  vcfbatch sweep -i csq/ -o fasta/ -r reference.fasta \
    --sample-sheet samples.txt --transcripts ENST_filtered.csv --threads 16`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeSweep(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.InputDir, "input-dir", "i", "", "directory of compressed variant files")
	cmd.Flags().StringVarP(&params.OutputDir, "output-dir", "o", ".", "base directory for results")
	cmd.Flags().StringVarP(&params.Reference, "ref", "r", "", "reference FASTA file")
	cmd.Flags().StringVar(&params.SampleSheet, "sample-sheet", "", "restrict extraction to the samples in this file")
	cmd.Flags().StringVar(&params.TranscriptList, "transcripts", "", "keep only records mentioning a transcript from this file")
	cmd.Flags().IntVar(&params.Threads, "threads", 0, "threads for the filter tool")
	cmd.Flags().StringVarP(&params.Engine, "engine", "g", "", "generation engine mode: st, mt or gpu")
	cmd.Flags().BoolVar(&params.KeepIntermediate, "keep-intermediate", false, "keep per-input uncompressed VCFs")
	cmd.Flags().BoolVar(&params.Strict, "strict", false, "exit non-zero when any input failed")
	cmd.Flags().StringVar(&params.BCFToolsPath, "bcftools", "", "path to the filter tool executable")
	cmd.Flags().StringVar(&params.GeneratorPath, "generator", "", "path to the generation tool executable")

	return cmd
}

func executeSweep(cmd *cobra.Command, params SweepParams) error {
	ctx := cmd.Context()

	defaultsPath, _ := cmd.Flags().GetString("config")
	defaults, err := config.LoadDefaults(defaultsPath)
	if err != nil {
		return err
	}

	cfg := config.SweepConfig{
		InputDir:         params.InputDir,
		OutputDir:        params.OutputDir,
		ReferencePath:    params.Reference,
		SampleSheet:      params.SampleSheet,
		TranscriptList:   params.TranscriptList,
		Threads:          params.Threads,
		Engine:           params.Engine,
		KeepIntermediate: params.KeepIntermediate,
		Strict:           params.Strict,
		BCFToolsPath:     params.BCFToolsPath,
		GeneratorPath:    params.GeneratorPath,
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

	if err := cfg.Validate(); err != nil {
		return err
	}
	engine, err := tools.ParseEngine(cfg.Engine)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
	}

	state, err := config.EnsureDir(cfg.OutputDir)
	if err != nil {
		return err
	}
	logger.Debug().Str("dir", cfg.OutputDir).Str("state", state.String()).Msg("directory ready")

	s := sweep.New(
		tools.NewBCFTools(cfg.BCFToolsPath, nil),
		tools.NewGenerator(cfg.GeneratorPath, nil),
	)
	summary, err := s.Run(ctx, sweep.Options{
		InputDir:         cfg.InputDir,
		OutputDir:        cfg.OutputDir,
		Reference:        cfg.ReferencePath,
		SampleSheet:      cfg.SampleSheet,
		TranscriptList:   cfg.TranscriptList,
		Threads:          cfg.Threads,
		Engine:           engine,
		KeepIntermediate: cfg.KeepIntermediate,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Processed %d inputs: %d succeeded, %d failed\n",
		summary.Inputs, summary.Succeeded, summary.Failed)

	if cfg.Strict && summary.Failed > 0 {
		return &FailureTallyError{Failed: summary.Failed, Total: summary.Inputs}
	}
	return nil
}
