package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proteogen/vcfbatch/internal/tools"
)

// fakeRunner simulates the filter and generation tools. The filter fake
// writes the -o target like bcftools would; failure is injected per batch by
// naming a patient whose presence in the sample list breaks extraction.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	// failPatient breaks extraction of batches whose sample list contains it.
	failPatient string

	// failGeneration breaks every generation-tool call.
	failGeneration bool

	// skipArtifact makes extraction exit zero without writing the output.
	skipArtifact bool
}

func (f *fakeRunner) record(name string, args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
}

func (f *fakeRunner) callsFor(name string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] == name {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.record(name, args)

	if name == "bcftools" {
		listFile := argAfter(args, "-S")
		outFile := argAfter(args, "-o")
		if f.failPatient != "" && listFile != "" {
			data, err := os.ReadFile(listFile)
			if err != nil {
				return err
			}
			if strings.Contains(string(data), f.failPatient) {
				return &tools.CommandError{Name: name, Args: args, Stderr: "no matching samples", Err: errors.New("exit status 1")}
			}
		}
		if f.skipArtifact {
			return nil
		}
		return os.WriteFile(outFile, []byte("##fileformat=VCFv4.2\n"), 0o644)
	}

	if f.failGeneration {
		return &tools.CommandError{Name: name, Args: args, Stderr: "panicked", Err: errors.New("exit status 101")}
	}
	return nil
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.record(name, args)
	return nil, nil
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestDispatcher(f *fakeRunner) *Dispatcher {
	return New(tools.NewBCFTools("bcftools", f), tools.NewGenerator("ppgg", f))
}

func testOptions(t *testing.T, f func(*Options)) Options {
	t.Helper()
	opts := Options{
		Source:    "cohort.bcf.gz",
		Reference: "reference.fasta",
		TempDir:   t.TempDir(),
		OutputDir: t.TempDir(),
		BatchSize: 3,
		Workers:   2,
		Engine:    tools.EngineSingleThread,
	}
	if f != nil {
		f(&opts)
	}
	return opts
}

func TestRunAll(t *testing.T) {
	t.Run("AllBatchesSucceed", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := testOptions(t, nil)

		summary, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(10))
		require.NoError(t, err)
		assert.Equal(t, Summary{Batches: 4, Succeeded: 4, Failed: 0}, summary)

		// One filter call and one generation call per batch.
		assert.Len(t, runner.callsFor("bcftools"), 4)
		assert.Len(t, runner.callsFor("ppgg"), 4)
	})

	t.Run("BatchSizesAreThreeThreeThreeOne", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := testOptions(t, func(o *Options) { o.KeepArtifacts = true })

		_, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(10))
		require.NoError(t, err)

		var sizes []int
		for _, call := range runner.callsFor("bcftools") {
			data, readErr := os.ReadFile(argAfter(call[1:], "-S"))
			require.NoError(t, readErr)
			sizes = append(sizes, len(strings.Fields(string(data))))
		}
		assert.ElementsMatch(t, []int{3, 3, 3, 1}, sizes)
	})

	t.Run("ExtractionFailureIsIsolated", func(t *testing.T) {
		// patient_009 is alone in the final batch of 10/3.
		runner := &fakeRunner{failPatient: "patient_009"}
		opts := testOptions(t, nil)

		summary, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(10))
		require.NoError(t, err)
		assert.Equal(t, Summary{Batches: 4, Succeeded: 3, Failed: 1}, summary)

		// The failed batch never reaches the generation tool.
		assert.Len(t, runner.callsFor("ppgg"), 3)
	})

	t.Run("GenerationFailureIsIsolated", func(t *testing.T) {
		runner := &fakeRunner{failGeneration: true}
		opts := testOptions(t, nil)

		summary, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(10))
		require.NoError(t, err)
		assert.Equal(t, Summary{Batches: 4, Succeeded: 0, Failed: 4}, summary)
	})

	t.Run("TallyConservation", func(t *testing.T) {
		for _, n := range []int{1, 5, 10, 17} {
			runner := &fakeRunner{failPatient: "patient_000"}
			opts := testOptions(t, func(o *Options) { o.BatchSize = 4 })

			summary, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(n))
			require.NoError(t, err)
			assert.Equal(t, summary.Batches, summary.Succeeded+summary.Failed, "n=%d", n)
		}
	})

	t.Run("InvalidBatchSizeIsFatal", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := testOptions(t, func(o *Options) { o.BatchSize = 0 })

		_, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(10))
		require.Error(t, err)
		assert.Empty(t, runner.calls)
	})

	t.Run("ArtifactsRemovedByDefault", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := testOptions(t, nil)

		_, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(10))
		require.NoError(t, err)

		entries, err := os.ReadDir(opts.TempDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("KeepArtifactsRetainsTempFiles", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := testOptions(t, func(o *Options) { o.KeepArtifacts = true })

		_, err := newTestDispatcher(runner).RunAll(context.Background(), opts, makeIDs(10))
		require.NoError(t, err)

		entries, err := os.ReadDir(opts.TempDir)
		require.NoError(t, err)
		// One sample list and one artifact per batch.
		assert.Len(t, entries, 8)
	})
}

func TestExtractBatch(t *testing.T) {
	t.Run("WritesSampleListAndArtifact", func(t *testing.T) {
		runner := &fakeRunner{}
		d := newTestDispatcher(runner)
		tempDir := t.TempDir()
		ids := []string{"alpha", "beta", "gamma"}

		artifact, err := d.ExtractBatch(context.Background(), "cohort.bcf.gz", ids, tempDir)
		require.NoError(t, err)

		data, err := os.ReadFile(artifact.ListPath)
		require.NoError(t, err)
		assert.Equal(t, "alpha\nbeta\ngamma\n", string(data))

		assert.Contains(t, filepath.Base(artifact.Path), artifact.Token)
		assert.FileExists(t, artifact.Path)
	})

	t.Run("FilterFailureYieldsExtractionError", func(t *testing.T) {
		runner := &fakeRunner{failPatient: "beta"}
		d := newTestDispatcher(runner)

		_, err := d.ExtractBatch(context.Background(), "cohort.bcf.gz", []string{"beta"}, t.TempDir())
		var extractErr *ExtractionError
		require.ErrorAs(t, err, &extractErr)
		assert.NotEmpty(t, extractErr.Token)
	})

	t.Run("MissingArtifactYieldsExtractionError", func(t *testing.T) {
		runner := &fakeRunner{skipArtifact: true}
		d := newTestDispatcher(runner)

		_, err := d.ExtractBatch(context.Background(), "cohort.bcf.gz", []string{"alpha"}, t.TempDir())
		var extractErr *ExtractionError
		require.ErrorAs(t, err, &extractErr)
	})

	t.Run("TokensNeverCollide", func(t *testing.T) {
		runner := &fakeRunner{}
		d := newTestDispatcher(runner)
		tempDir := t.TempDir()

		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			artifact, err := d.ExtractBatch(context.Background(), "cohort.bcf.gz", []string{"alpha"}, tempDir)
			require.NoError(t, err)
			assert.False(t, seen[artifact.Token], "token %s repeated", artifact.Token)
			seen[artifact.Token] = true
		}
	})
}

func TestGenerateForBatch(t *testing.T) {
	t.Run("BuildsGeneratorInvocation", func(t *testing.T) {
		runner := &fakeRunner{}
		d := newTestDispatcher(runner)

		err := d.GenerateForBatch(context.Background(), "/tmp/batch.vcf", "ref.fasta", "out/", tools.EngineMultiThread)
		require.NoError(t, err)

		calls := runner.callsFor("ppgg")
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"ppgg", "-f", "/tmp/batch.vcf", "-r", "ref.fasta", "-o", "out/", "-g", "mt"}, calls[0])
	})

	t.Run("NonZeroExitYieldsGenerationError", func(t *testing.T) {
		runner := &fakeRunner{failGeneration: true}
		d := newTestDispatcher(runner)

		err := d.GenerateForBatch(context.Background(), "/tmp/batch.vcf", "ref.fasta", "out/", tools.EngineSingleThread)
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "/tmp/batch.vcf", genErr.Artifact)
	})
}

func TestArtifactRemove(t *testing.T) {
	tempDir := t.TempDir()
	a := &Artifact{
		Token:    "token",
		ListPath: filepath.Join(tempDir, "list.txt"),
		Path:     filepath.Join(tempDir, "batch.vcf"),
	}
	require.NoError(t, os.WriteFile(a.ListPath, []byte("alpha\n"), 0o644))
	require.NoError(t, os.WriteFile(a.Path, []byte("##\n"), 0o644))

	require.NoError(t, a.Remove())
	assert.NoFileExists(t, a.ListPath)
	assert.NoFileExists(t, a.Path)

	// Removing again is a no-op.
	assert.NoError(t, a.Remove())
}

func TestFakeRunnerFailureInjection(t *testing.T) {
	// Sanity-check the fake's failure plumbing so the RunAll tests above mean
	// what they claim.
	runner := &fakeRunner{failPatient: "patient_000"}
	err := runner.Run(context.Background(), "bcftools",
		"view", "-S", writeTempList(t, "patient_000\n"), "-o", filepath.Join(t.TempDir(), "out.vcf"))
	var cmdErr *tools.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Error(), "no matching samples")
}

func writeTempList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
