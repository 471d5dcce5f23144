package tools

import (
	"context"
	"fmt"
)

// Engine selects the generation tool's execution strategy.
type Engine string

const (
	// EngineSingleThread runs the generator on one CPU thread.
	EngineSingleThread Engine = "st"
	// EngineMultiThread runs the generator across all CPU threads.
	EngineMultiThread Engine = "mt"
	// EngineGPU offloads sequence generation to the GPU.
	EngineGPU Engine = "gpu"
)

// ParseEngine validates an engine mode name.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineSingleThread, EngineMultiThread, EngineGPU:
		return Engine(s), nil
	default:
		return "", fmt.Errorf("unknown engine mode %q (want st, mt or gpu)", s)
	}
}

// Generator drives the proteome generation tool.
type Generator struct {
	Path   string
	Runner Runner
}

// NewGenerator returns a Generator bound to the given executable path, using
// the real ExecRunner when runner is nil.
func NewGenerator(path string, runner Runner) *Generator {
	if path == "" {
		path = "ppgg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Generator{Path: path, Runner: runner}
}

// GenerateRequest names the inputs of one generation run.
type GenerateRequest struct {
	// Artifact is the uncompressed variant file to generate from.
	Artifact string

	// Reference is the reference FASTA.
	Reference string

	// OutputDir receives the generated sequences.
	OutputDir string

	// Engine is the execution strategy.
	Engine Engine

	// SingleWriter forces the tool's single-threaded output writer.
	SingleWriter bool
}

// Generate invokes the generation tool and returns an error on non-zero exit.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) error {
	args := []string{
		"-f", req.Artifact,
		"-r", req.Reference,
		"-o", req.OutputDir,
		"-g", string(req.Engine),
	}
	if req.SingleWriter {
		args = append(args, "-wv")
	}
	if err := g.Runner.Run(ctx, g.Path, args...); err != nil {
		return fmt.Errorf("generating proteomes from %s: %w", req.Artifact, err)
	}
	return nil
}
