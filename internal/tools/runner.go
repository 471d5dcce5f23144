// Package tools wraps the external binaries vcfbatch drives: the variant-file
// filter tool (bcftools) and the proteome generation tool. Both are invoked
// with explicit argument vectors — never through a shell — so file names with
// spaces or metacharacters cannot alter the command.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// stderrTailLimit bounds how much captured stderr is carried in an error.
const stderrTailLimit = 2048

// Runner executes an external command. The production implementation shells
// out via os/exec; tests substitute fakes.
type Runner interface {
	// Run executes name with args and returns an error on non-zero exit.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes name with args and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError reports a failed external command together with the tail of
// its stderr, which for bcftools and the generation tool carries the actual
// diagnostic.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %s", e.Name, strings.Join(e.Args, " "), e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run implements Runner. Stdout is discarded; stderr is captured for the
// error message on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &CommandError{Name: name, Args: args, Stderr: tail(stderr.String()), Err: err}
	}
	return nil
}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &CommandError{Name: name, Args: args, Stderr: tail(stderr.String()), Err: err}
	}
	return stdout.Bytes(), nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}
