// Package pipelineerr defines the small, stage-tagged error taxonomy shared
// by every pipeline adapter and usecase. Grounded on
// original_source/backend/app/pipeline/interfaces.py's PipelineError
// hierarchy (ParserError/ChunkerError/RetrieverError/AnalyzerError/
// ValidatorError), translated to Go's wrapped-error idiom: each stage has a
// constructor that wraps the cause in a StageError tagged with the stage's
// name, and StageError implements Unwrap so callers can use
// errors.Is/errors.As instead of exception subclass checks.
package pipelineerr

import "fmt"

// StageError is a pipeline failure attributed to one named stage, wrapping
// the underlying cause.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ParserError wraps a failure extracting text from a PDF.
func ParserError(err error) error {
	return &StageError{Stage: "parse", Err: err}
}

// ChunkerError wraps a failure splitting a document into chunks.
func ChunkerError(err error) error {
	return &StageError{Stage: "chunk", Err: err}
}

// RetrieverError wraps a failure scoring or ranking evidence.
func RetrieverError(err error) error {
	return &StageError{Stage: "retrieve", Err: err}
}

// AnalyzerError wraps a failure producing or parsing a compliance judgment.
func AnalyzerError(err error) error {
	return &StageError{Stage: "analyze", Err: err}
}

// GrounderError wraps a failure validating quotes against evidence.
func GrounderError(err error) error {
	return &StageError{Stage: "ground", Err: err}
}

// LLMError wraps a failure reaching or completing a call to the underlying
// language model, surfaced after the transient-retry budget is exhausted.
func LLMError(err error) error {
	return &StageError{Stage: "llm", Err: err}
}

// IsStage reports whether err is a StageError for the given stage name.
func IsStage(err error, stage string) bool {
	se, ok := err.(*StageError)
	if !ok {
		return false
	}
	return se.Stage == stage
}
