// Package cli wires the vcfbatch subcommands: run (parallel batch dispatch),
// sweep (directory automation), and bench (generation-tool benchmarking).
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/proteogen/vcfbatch/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// FailureTallyError is returned by strict-mode commands when the final tally
// contains failures. main maps it to a dedicated exit code so schedulers can
// distinguish "some batches failed" from configuration errors.
type FailureTallyError struct {
	Failed int
	Total  int
}

func (e *FailureTallyError) Error() string {
	return fmt.Sprintf("%d of %d units failed", e.Failed, e.Total)
}

// NewRootCmd creates the root Cobra command for the vcfbatch CLI. It wires up
// logging and the run, sweep, and bench subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logClose func() error

	cmd := &cobra.Command{
		Use:   "vcfbatch",
		Short: "Batch driver for bcftools and the proteome generation tool",
		Long: "vcfbatch drives an external variant-file filter tool (bcftools) and a\n" +
			"proteome-generation tool over collections of compressed variant files:\n" +
			"batch-parallel dispatch of one file's patients, sequential sweeps over\n" +
			"whole directories, and benchmarking of the generation tool itself.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			closeFn, err := setupLogging(cmd)
			if err != nil {
				return err
			}
			logClose = closeFn
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logClose != nil {
				return logClose()
			}
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("log-file", "", "append JSON logs to this file")
	cmd.PersistentFlags().String("config", "", "path to a YAML defaults file")
	cmd.AddCommand(newRunCmd(), newSweepCmd(), newBenchCmd())

	return cmd
}

// setupLogging builds the root logger from persistent flags, tags every line
// of this invocation with a run id, and attaches the logger to the command
// context. It returns a close function for the optional log file.
func setupLogging(cmd *cobra.Command) (func() error, error) {
	level := "info"
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = "debug"
	}
	logFile, _ := cmd.Flags().GetString("log-file")

	root, closeFn, err := logging.Setup(logging.Config{Level: level, File: logFile})
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	root = root.With().Str("run_id", logging.NewRunID()).Logger()
	logger = logging.ComponentLogger(root, "cli")
	cmd.SetContext(root.WithContext(cmd.Context()))

	logger.Debug().Str("command", cmd.Name()).Msg("command started")
	return closeFn, nil
}

const rootCmdExample = `  # Generate proteomes for all patients of one BCF, 100 per batch, 8 at a time
  vcfbatch run -f cohort.bcf.gz -r reference.fasta -o fasta/ -t tmp/ -b 100 -w 8

  # Sweep a directory of BCFs, restricted to a sample sheet
  vcfbatch sweep -i csq/ -o fasta/ -r reference.fasta --sample-sheet samples.txt

  # Benchmark the generation tool over all engines
  vcfbatch bench -f chr1.vcf -r reference.fasta --work-dir tmp/ --report-dir bench/`
