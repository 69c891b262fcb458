package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Ensure ReplyStream implements the interface.
var _ driving.ReplyStream = (*ReplyStream)(nil)

// ReplyStream is a single-consumer streamed reply with deferred persistence.
//
// Fragments are pulled with Next until io.EOF. Only then may Finalize persist
// the exchange. A stream that is closed, cancelled or fails before io.EOF
// persists nothing. Streams cannot be replayed.
type ReplyStream struct {
	svc      *ChatService
	plan     *turnPlan
	upstream driven.ChatStream
	track    func(domain.Stage)

	// next serialises Next calls; mu guards the fields below.
	next      sync.Mutex
	mu        sync.Mutex
	reply     strings.Builder
	stage     domain.Stage
	drained   bool
	closed    bool
	finalized bool
	err       error
}

// Next returns the next non-empty fragment, or io.EOF once the reply is complete.
func (s *ReplyStream) Next() (string, error) {
	s.next.Lock()
	defer s.next.Unlock()

	for {
		s.mu.Lock()
		switch {
		case s.closed || s.finalized:
			s.mu.Unlock()
			return "", domain.ErrStreamClosed
		case s.err != nil:
			err := s.err
			s.mu.Unlock()
			return "", err
		case s.drained:
			s.mu.Unlock()
			return "", io.EOF
		}
		s.mu.Unlock()

		piece, err := s.upstream.Recv()

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return "", domain.ErrStreamClosed
		}
		if errors.Is(err, io.EOF) {
			s.drained = true
			s.mu.Unlock()
			return "", io.EOF
		}
		if err != nil {
			s.err = fmt.Errorf("%w: %w", domain.ErrGeneration, err)
			s.mu.Unlock()
			s.track(domain.StageFailed)
			logger.Warn("Stream failed: %v", err)
			return "", s.err
		}
		if piece == "" {
			s.mu.Unlock()
			continue
		}
		s.reply.WriteString(piece)
		s.mu.Unlock()
		return piece, nil
	}
}

// Finalize persists the exchange with the full reply and returns the reply.
// It fails with domain.ErrStreamIncomplete until Next has returned io.EOF,
// and with domain.ErrStreamClosed after Close or a previous Finalize.
func (s *ReplyStream) Finalize(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch {
	case s.closed || s.finalized:
		s.mu.Unlock()
		return "", domain.ErrStreamClosed
	case s.err != nil:
		err := s.err
		s.mu.Unlock()
		return "", err
	case !s.drained:
		s.mu.Unlock()
		return "", domain.ErrStreamIncomplete
	}
	s.finalized = true
	reply := s.reply.String()
	s.mu.Unlock()

	if err := s.upstream.Close(); err != nil {
		logger.Debug("Close upstream stream: %v", err)
	}

	if err := s.svc.finish(ctx, s.plan, reply, s.track); err != nil {
		return reply, err
	}
	return reply, nil
}

// Close abandons the stream. If the reply was not finalised, nothing is persisted.
func (s *ReplyStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	abandoned := !s.finalized
	s.mu.Unlock()

	if !abandoned {
		// Finalize already closed the upstream.
		return nil
	}
	logger.Debug("Stream for session %s closed before finalize, nothing persisted", s.plan.session.ID)
	s.track(domain.StageFailed)
	return s.upstream.Close()
}

// Stage reports the request stage.
func (s *ReplyStream) Stage() domain.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Partial returns the fragments received so far.
func (s *ReplyStream) Partial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply.String()
}

func (s *ReplyStream) setStage(stage domain.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}
