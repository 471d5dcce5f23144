// Package config holds the explicit configuration structs for each vcfbatch
// command. Configuration is assembled once at startup from an optional YAML
// defaults file plus CLI flags, validated eagerly, and passed by value into
// the packages that need it. Nothing reads ambient global state.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration is the class of all pre-flight validation failures.
// Callers match it with errors.Is; these are fatal and abort before dispatch.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Defaults are optional site-wide settings loaded from a YAML file, typically
// shared by everyone on one cluster. CLI flags override every field.
type Defaults struct {
	BCFToolsPath  string `yaml:"bcftools_path"`
	GeneratorPath string `yaml:"generator_path"`
	Engine        string `yaml:"engine"`
	BatchSize     int    `yaml:"batch_size"`
	Workers       int    `yaml:"workers"`
	KeepArtifacts bool   `yaml:"keep_artifacts"`
}

// BuiltinDefaults returns the defaults used when no file is present.
func BuiltinDefaults() Defaults {
	return Defaults{
		BCFToolsPath:  "bcftools",
		GeneratorPath: "ppgg",
		Engine:        "st",
		BatchSize:     100,
	}
}

// LoadDefaults reads a YAML defaults file, overlaying it on the builtin
// defaults. A missing file is not an error — the builtins are returned.
func LoadDefaults(path string) (Defaults, error) {
	d := BuiltinDefaults()
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, fmt.Errorf("reading defaults file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parsing defaults file %s: %w", path, err)
	}
	return d, nil
}

// RunConfig configures the parallel batch dispatcher.
type RunConfig struct {
	// SourceFile is the compressed variant file holding all patients.
	SourceFile string

	// ReferencePath is the reference FASTA passed to the generation tool.
	ReferencePath string

	// OutputDir receives the generated proteome files.
	OutputDir string

	// TempDir receives per-batch sample lists and extracted artifacts.
	TempDir string

	// BatchSize is the number of patients per batch. Must be positive.
	BatchSize int

	// Workers bounds the number of concurrently running batches.
	// Zero means one worker per available CPU core.
	Workers int

	// Engine selects the generation tool execution strategy (st, mt, gpu).
	Engine string

	// KeepArtifacts disables removal of per-batch temp files after each
	// batch finishes, for debugging failed extractions.
	KeepArtifacts bool

	// UseInputNameAsBase nests temp and output files in a subdirectory named
	// after the input file, so several inputs can share the same roots.
	UseInputNameAsBase bool

	// Strict makes the process exit non-zero when any batch failed.
	Strict bool

	BCFToolsPath  string
	GeneratorPath string
}

// Validate checks RunConfig before any work is dispatched.
func (c RunConfig) Validate() error {
	if c.SourceFile == "" {
		return fmt.Errorf("%w: source file not provided", ErrInvalidConfiguration)
	}
	if err := requireFile(c.SourceFile, "source file"); err != nil {
		return err
	}
	if c.ReferencePath == "" {
		return fmt.Errorf("%w: reference FASTA not provided", ErrInvalidConfiguration)
	}
	if err := requireFile(c.ReferencePath, "reference FASTA"); err != nil {
		return err
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfiguration, c.BatchSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfiguration, c.Workers)
	}
	return nil
}

// SweepConfig configures the directory automation command.
type SweepConfig struct {
	// InputDir is scanned for *.bcf.gz inputs (index files are skipped).
	InputDir string

	// OutputDir is the base directory; one subdirectory per input is created.
	OutputDir string

	ReferencePath string

	// SampleSheet, when non-empty, restricts extraction to the listed samples.
	SampleSheet string

	// TranscriptList, when non-empty, names a file of transcript identifiers;
	// intermediate VCFs are reduced to records mentioning one of them.
	TranscriptList string

	// Threads is passed to the filter tool's --threads flag when positive.
	Threads int

	Engine string

	// KeepIntermediate retains the per-input uncompressed VCF after the
	// generation step instead of removing it.
	KeepIntermediate bool

	Strict bool

	BCFToolsPath  string
	GeneratorPath string
}

// Validate checks SweepConfig before the sweep starts.
func (c SweepConfig) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input directory not provided", ErrInvalidConfiguration)
	}
	info, err := os.Stat(c.InputDir)
	if err != nil {
		return fmt.Errorf("%w: input directory %s: %v", ErrInvalidConfiguration, c.InputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: input path %s is not a directory", ErrInvalidConfiguration, c.InputDir)
	}
	if c.ReferencePath == "" {
		return fmt.Errorf("%w: reference FASTA not provided", ErrInvalidConfiguration)
	}
	if err := requireFile(c.ReferencePath, "reference FASTA"); err != nil {
		return err
	}
	if c.SampleSheet != "" {
		if err := requireFile(c.SampleSheet, "sample sheet"); err != nil {
			return err
		}
	}
	if c.TranscriptList != "" {
		if err := requireFile(c.TranscriptList, "transcript list"); err != nil {
			return err
		}
	}
	return nil
}

// BenchConfig configures the benchmark harness.
type BenchConfig struct {
	// SourceVCF is the uncompressed variant file trials are cut from.
	SourceVCF string

	ReferencePath string

	// WorkDir holds the per-trial truncated input files.
	WorkDir string

	// ResultsDir receives generated sequences (treated as scratch output).
	ResultsDir string

	// ReportDir receives checkpoint and final timing reports.
	ReportDir string

	// Engines lists the engine modes to benchmark.
	Engines []string

	// PatientCounts lists the per-trial patient column counts.
	PatientCounts []int

	// Runs is the number of measured repetitions per matrix cell.
	Runs int

	// Warmup is the number of unmeasured disk warm-up repetitions per cell.
	Warmup int

	// CheckpointEvery persists intermediate results after this many measured
	// runs. Zero disables checkpointing.
	CheckpointEvery int

	GeneratorPath string
}

// Validate checks BenchConfig before the benchmark loop starts.
func (c BenchConfig) Validate() error {
	if c.SourceVCF == "" {
		return fmt.Errorf("%w: source VCF not provided", ErrInvalidConfiguration)
	}
	if err := requireFile(c.SourceVCF, "source VCF"); err != nil {
		return err
	}
	if c.ReferencePath == "" {
		return fmt.Errorf("%w: reference FASTA not provided", ErrInvalidConfiguration)
	}
	if err := requireFile(c.ReferencePath, "reference FASTA"); err != nil {
		return err
	}
	if len(c.Engines) == 0 {
		return fmt.Errorf("%w: no engine modes selected", ErrInvalidConfiguration)
	}
	if len(c.PatientCounts) == 0 {
		return fmt.Errorf("%w: no patient counts selected", ErrInvalidConfiguration)
	}
	for _, n := range c.PatientCounts {
		if n <= 0 {
			return fmt.Errorf("%w: patient counts must be positive, got %d", ErrInvalidConfiguration, n)
		}
	}
	if c.Runs <= 0 {
		return fmt.Errorf("%w: runs must be positive, got %d", ErrInvalidConfiguration, c.Runs)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("%w: warmup must be >= 0, got %d", ErrInvalidConfiguration, c.Warmup)
	}
	return nil
}

func requireFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidConfiguration, what, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s %s is a directory", ErrInvalidConfiguration, what, path)
	}
	return nil
}
