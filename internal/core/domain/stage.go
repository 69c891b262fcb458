package domain

// Stage is the position of a chat request in its lifecycle.
type Stage string

// Request stages in the order they are entered.
const (
	StageIdle              Stage = "idle"
	StageRetrievingContext Stage = "retrieving_context"
	StageGenerating        Stage = "generating"
	StagePersisting        Stage = "persisting"
	StageExtracting        Stage = "extracting"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// IsTerminal returns true once the request can make no further progress.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}
