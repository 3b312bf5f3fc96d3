package constants

// Outcome is the terminal state of one document's pipeline run.
type Outcome string

// Stable values (logged and stored as these exact strings).
const (
	OutcomePending              Outcome = "PENDING"               // not yet decided
	OutcomeFiled                Outcome = "FILED"                 // moved into the output directory
	OutcomeDuplicateSkipped     Outcome = "DUPLICATE_SKIPPED"     // near-duplicate found, left in place
	OutcomeExtractionFailed     Outcome = "EXTRACTION_FAILED"     // stage 1 failure
	OutcomeClassificationFailed Outcome = "CLASSIFICATION_FAILED" // stage 2 failure
	OutcomeWriteFailed          Outcome = "WRITE_FAILED"          // filesystem commit failure
)

// Terminal reports whether o is a final state.
func (o Outcome) Terminal() bool {
	return o != "" && o != OutcomePending
}
