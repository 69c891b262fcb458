package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or normaliser type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Request pipeline errors.

	// ErrSetup indicates a component could not be constructed because a
	// required artifact or credential is missing. It is never retried.
	ErrSetup = errors.New("setup failed")

	// ErrIndexNotFound indicates the on-disk index artifacts of a corpus are missing.
	ErrIndexNotFound = errors.New("index not found")

	// ErrRetrieval indicates a lexical, vector or memory lookup failed.
	// The current request is aborted rather than answered without grounding.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the model call failed. Nothing is persisted.
	ErrGeneration = errors.New("generation failed")

	// ErrPersistence indicates the reply was produced but could not be stored.
	ErrPersistence = errors.New("persistence failed")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Streaming errors.

	// ErrStreamIncomplete indicates Finalize was called before the reply was drained.
	ErrStreamIncomplete = errors.New("stream not drained")

	// ErrStreamClosed indicates the stream was closed or already finalised.
	ErrStreamClosed = errors.New("stream closed")
)

// PersistenceError reports that a reply was generated successfully but the
// session log could not be updated. The reply is still available to the caller.
type PersistenceError struct {
	// Reply is the full reply text that was delivered.
	Reply string

	// Err is the underlying storage error.
	Err error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("reply succeeded, storage failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPersistence) hold for every PersistenceError.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IndexNotFoundError returns the setup error raised when a corpus index is missing.
func IndexNotFoundError(corpusID string, missing []string) error {
	return fmt.Errorf("%w: %w: %v; rebuild with \"papersoul index build --corpus %s\"",
		ErrSetup, ErrIndexNotFound, missing, corpusID)
}
