// Package messages defines Bubbletea message types for the chat TUI.
package messages

import (
	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

// HistoryLoaded carries the persisted turns of the session.
type HistoryLoaded struct {
	Turns []domain.Turn
	Err   error
}

// StreamStarted is sent once the orchestrator has assembled context and
// generation has begun.
// Seq identifies the send that started it so late arrivals can be dropped.
type StreamStarted struct {
	Seq    int
	Stream driving.ReplyStream
	Err    error
}

// FragmentReceived carries one piece of the reply being streamed.
type FragmentReceived struct {
	Stream driving.ReplyStream
	Text   string
}

// ReplyCompleted is sent after the stream was drained and finalised.
// Err may wrap domain.ErrPersistence, in which case Reply is still valid.
type ReplyCompleted struct {
	Stream driving.ReplyStream
	Reply  string
	Err    error
}

// ReplyFailed is sent when the stream broke before completion.
type ReplyFailed struct {
	Stream driving.ReplyStream
	Err    error
}
