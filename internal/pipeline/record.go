package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/Cdogma/maehrdocs/constants"
	"github.com/Cdogma/maehrdocs/internal/dupdetect"
	"github.com/Cdogma/maehrdocs/internal/llm"
)

// Record tracks one document's journey through the pipeline. It is owned
// exclusively by the processor for the duration of the run and handed to the
// caller (CLI, GUI adapter) afterwards.
type Record struct {
	ID         uuid.UUID
	SourcePath string // immutable once created

	RawText  string
	Metadata map[string]string

	// Fields is nil until classification succeeds; absent, not defaulted.
	Fields *llm.DocumentFields

	// SimilarityMatches is empty when no match was found; whether the check
	// ran at all is visible from the outcome (extraction/classification
	// failures never reach it).
	SimilarityMatches []dupdetect.Match

	GeneratedFilename string
	FiledPath         string // set only when Outcome == FILED and not a dry run

	Outcome       constants.Outcome
	FailureStage  string
	FailureReason string

	DryRun   bool
	Duration time.Duration
}

func NewRecord(path string) *Record {
	return &Record{
		ID:         uuid.New(),
		SourcePath: path,
		Outcome:    constants.OutcomePending,
	}
}

// finish sets the terminal outcome exactly once; later transitions are
// ignored so an outcome can never be revisited.
func (r *Record) finish(o constants.Outcome) {
	if r.Outcome != constants.OutcomePending {
		return
	}
	r.Outcome = o
}

func (r *Record) fail(stage, reason string, o constants.Outcome) {
	if r.Outcome != constants.OutcomePending {
		return
	}
	r.FailureStage = stage
	r.FailureReason = reason
	r.Outcome = o
}
