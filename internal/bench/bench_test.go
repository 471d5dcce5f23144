package bench

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proteogen/vcfbatch/internal/tools"
)

// fakeRunner counts generation-tool invocations and can fail after a given
// number of calls.
type fakeRunner struct {
	calls     [][]string
	failAfter int // fail on call number failAfter (1-based); 0 never fails
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.failAfter > 0 && len(f.calls) >= f.failAfter {
		return errors.New("exit status 101")
	}
	return nil
}

func (f *fakeRunner) Output(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return nil, nil
}

const benchVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tP1\tP2\tP3\tP4\n" +
	"1\t100\t.\tA\tT\t.\tPASS\t.\tGT\t0|1\t0|0\t1|1\t0|1\n"

func writeBenchVCF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.vcf")
	require.NoError(t, os.WriteFile(path, []byte(benchVCF), 0o644))
	return path
}

func TestTruncateVCF(t *testing.T) {
	src := writeBenchVCF(t)
	dst := filepath.Join(t.TempDir(), "trial.vcf")

	require.NoError(t, TruncateVCF(src, dst, 2))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)

	// Meta lines are copied whole.
	assert.Equal(t, "##fileformat=VCFv4.2", lines[0])

	// Header and records keep 9 fixed columns plus 2 patients.
	header := strings.Split(lines[1], "\t")
	require.Len(t, header, 11)
	assert.Equal(t, "P2", header[10])

	record := strings.Split(lines[2], "\t")
	require.Len(t, record, 11)
	assert.Equal(t, "0|0", record[10])
}

func TestTruncateVCFMorePatientsThanColumns(t *testing.T) {
	src := writeBenchVCF(t)
	dst := filepath.Join(t.TempDir(), "trial.vcf")

	// Asking for more patients than the file holds keeps every column.
	require.NoError(t, TruncateVCF(src, dst, 100))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, strings.Split(lines[1], "\t"), 13)
}

func TestOptionsTotalRuns(t *testing.T) {
	opts := Options{
		Engines:       []tools.Engine{tools.EngineSingleThread, tools.EngineMultiThread, tools.EngineGPU},
		PatientCounts: []int{1, 16, 256},
		Runs:          10,
		Warmup:        2,
	}
	// Empty WriterModes means both modes.
	assert.Equal(t, (10+2)*3*3*2, opts.TotalRuns())

	opts.WriterModes = []bool{true}
	assert.Equal(t, (10+2)*3*3, opts.TotalRuns())
}

func benchOptions(t *testing.T, f func(*Options)) Options {
	t.Helper()
	opts := Options{
		SourceVCF:     writeBenchVCF(t),
		Reference:     "reference.fasta",
		WorkDir:       t.TempDir(),
		ResultsDir:    t.TempDir(),
		ReportDir:     t.TempDir(),
		Engines:       []tools.Engine{tools.EngineSingleThread, tools.EngineMultiThread},
		PatientCounts: []int{1, 2},
		WriterModes:   []bool{true},
		Runs:          3,
		Warmup:        1,
	}
	if f != nil {
		f(&opts)
	}
	return opts
}

func TestHarnessRun(t *testing.T) {
	t.Run("MeasuresEveryCell", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := benchOptions(t, nil)

		results, err := New(tools.NewGenerator("ppgg", runner)).Run(context.Background(), opts)
		require.NoError(t, err)

		// 2 engines x 2 patient counts x 1 writer mode x 3 measured runs.
		assert.Len(t, results.Measurements, 12)
		// Warm-ups invoke the tool but are not measured.
		assert.Len(t, runner.calls, 16)
		assert.False(t, results.FinishedAt.IsZero())

		for _, m := range results.Measurements {
			assert.Less(t, m.Run, opts.Runs)
			assert.GreaterOrEqual(t, m.Duration, time.Duration(0))
		}
	})

	t.Run("PreparesOneTrialInputPerPatientCount", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := benchOptions(t, nil)

		_, err := New(tools.NewGenerator("ppgg", runner)).Run(context.Background(), opts)
		require.NoError(t, err)

		assert.FileExists(t, filepath.Join(opts.WorkDir, "run_file_with_1_patients.vcf"))
		assert.FileExists(t, filepath.Join(opts.WorkDir, "run_file_with_2_patients.vcf"))
	})

	t.Run("CheckpointsPeriodically", func(t *testing.T) {
		runner := &fakeRunner{}
		opts := benchOptions(t, func(o *Options) { o.CheckpointEvery = 5 })

		_, err := New(tools.NewGenerator("ppgg", runner)).Run(context.Background(), opts)
		require.NoError(t, err)

		// 12 measured runs with a checkpoint every 5.
		assert.FileExists(t, filepath.Join(opts.ReportDir, "results_at_5_runs.json"))
		assert.FileExists(t, filepath.Join(opts.ReportDir, "results_at_10_runs.json"))
		assert.NoFileExists(t, filepath.Join(opts.ReportDir, "results_at_15_runs.json"))
	})

	t.Run("ToolFailureAbortsButKeepsMeasurements", func(t *testing.T) {
		runner := &fakeRunner{failAfter: 6}
		opts := benchOptions(t, nil)

		results, err := New(tools.NewGenerator("ppgg", runner)).Run(context.Background(), opts)
		require.Error(t, err)
		// The first cell completed (1 warm-up + 3 measured runs); the second
		// cell's warm-up succeeded and its first measured run failed.
		assert.Len(t, results.Measurements, 3)
	})
}

func TestResultsPersistence(t *testing.T) {
	results := &Results{StartedAt: time.Now()}
	results.Add(Measurement{Patients: 16, Engine: "st", SingleWriter: true, Run: 0, Duration: 42 * time.Millisecond})
	results.Add(Measurement{Patients: 16, Engine: "gpu", SingleWriter: false, Run: 1, Duration: 7 * time.Millisecond})

	dir := t.TempDir()

	t.Run("JSONRoundTrips", func(t *testing.T) {
		path := filepath.Join(dir, "results.json")
		require.NoError(t, results.WriteJSON(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"engine": "gpu"`)
		assert.Contains(t, string(data), `"patients": 16`)
	})

	t.Run("CSVHasHeaderAndRows", func(t *testing.T) {
		path := filepath.Join(dir, "results.csv")
		require.NoError(t, results.WriteCSV(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "patients,engine,single_writer,run,seconds", lines[0])
		assert.Equal(t, "16,st,true,0,0.042000", lines[1])
	})
}
