package engine

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage a failure surfaced in.
type Stage string

const (
	StageQuerySearch Stage = "query_and_search"
	StagePlan        Stage = "plan_generation"
	StageWrite       Stage = "section_writer"
	StageAdapt       Stage = "output_adaptation"
)

// Fatal run failure kinds.
const (
	FailSearch    = "no_search_results"
	FailProvider  = "provider_exhausted"
	FailStalled   = "writer_stalled"
	FailCancelled = "cancelled"
	FailInvalid   = "invalid_request"
)

// RunError is the structured failure surfaced to callers: kind, message and
// the stage the run last reached.
type RunError struct {
	Stage Stage
	Kind  string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed at %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// FallbackExhaustedError reports that both the primary and the fallback
// provider failed. Both errors stay attached for diagnostics.
type FallbackExhaustedError struct {
	Primary  error
	Fallback error
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("primary provider failed (%v); fallback provider failed (%v)", e.Primary, e.Fallback)
}

func (e *FallbackExhaustedError) Unwrap() error { return errors.Join(e.Primary, e.Fallback) }

// ErrStalled signals a writer pass that made no forward progress.
var ErrStalled = errors.New("section writer made no progress")

// ErrEmptyTopic rejects runs with a blank topic.
var ErrEmptyTopic = errors.New("topic must not be empty")
