package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// BCFTools drives the variant-file filter tool. The zero Path falls back to
// resolving "bcftools" on PATH.
type BCFTools struct {
	Path   string
	Runner Runner
}

// NewBCFTools returns a BCFTools bound to the given executable path, using
// the real ExecRunner when runner is nil.
func NewBCFTools(path string, runner Runner) *BCFTools {
	if path == "" {
		path = "bcftools"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &BCFTools{Path: path, Runner: runner}
}

// ListSamples returns the sample (patient) identifiers of a variant file, in
// the order the file declares them. That order is what batch slicing uses.
func (b *BCFTools) ListSamples(ctx context.Context, source string) ([]string, error) {
	out, err := b.Runner.Output(ctx, b.Path, "query", "-l", source)
	if err != nil {
		return nil, fmt.Errorf("listing samples of %s: %w", source, err)
	}

	var ids []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

// ExtractSamples writes the records of the samples named in listFile to an
// uncompressed VCF at outFile, keeping only sites with at least one allele
// called in the retained samples (-c1).
func (b *BCFTools) ExtractSamples(ctx context.Context, source, listFile, outFile string) error {
	args := []string{"view", "-c1", "-O", "v", "-S", listFile, "-o", outFile, source}
	if err := b.Runner.Run(ctx, b.Path, args...); err != nil {
		return fmt.Errorf("extracting samples from %s: %w", source, err)
	}
	return nil
}

// ViewOptions tune the plain decompression used by the directory sweep.
type ViewOptions struct {
	// SampleSheet restricts output to the listed samples when non-empty.
	SampleSheet string

	// Threads is passed to --threads when positive.
	Threads int
}

// View converts a compressed variant file to an uncompressed VCF at outFile.
func (b *BCFTools) View(ctx context.Context, source, outFile string, opts ViewOptions) error {
	args := []string{"view"}
	if opts.SampleSheet != "" {
		args = append(args, "-S", opts.SampleSheet)
	}
	if opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(opts.Threads))
	}
	args = append(args, "-O", "v", "-o", outFile, source)
	if err := b.Runner.Run(ctx, b.Path, args...); err != nil {
		return fmt.Errorf("converting %s: %w", source, err)
	}
	return nil
}
