package dispatch

import "fmt"

// ExtractionError reports a failed batch extraction. Token identifies the
// batch's temp files so the failed inputs can be inspected on disk.
type ExtractionError struct {
	Token string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting batch %s: %v", e.Token, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed generation-tool run for one batch artifact.
type GenerationError struct {
	Artifact string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating from %s: %v", e.Artifact, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
