package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// SSE event names.
const (
	eventFragment = "fragment"
	eventDone     = "done"
	eventError    = "error"
)

// chatStream relays reply fragments as server-sent events. The exchange is
// persisted only after the last fragment was written; a client that goes
// away earlier closes the stream and nothing is saved.
func (s *Server) chatStream(c *gin.Context) {
	req, ok := s.bindChat(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stream, err := s.ports.Chat.RespondStream(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	defer stream.Close() //nolint:errcheck

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		piece, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("Client left session %s mid-reply", req.SessionID)
				return
			}
			emit(c, eventError, gin.H{"error": err.Error()})
			return
		}
		emit(c, eventFragment, gin.H{"text": piece})
		if ctx.Err() != nil {
			logger.Debug("Client left session %s mid-reply", req.SessionID)
			return
		}
	}

	// The reply reached the client in full, so persistence outlives the request.
	reply, err := stream.Finalize(context.WithoutCancel(ctx))
	var perr *domain.PersistenceError
	switch {
	case errors.As(err, &perr):
		emit(c, eventDone, ChatResponse{Reply: perr.Reply, Warning: perr.Error()})
	case err != nil:
		emit(c, eventError, gin.H{"error": err.Error()})
	default:
		emit(c, eventDone, ChatResponse{Reply: reply})
	}
}

func emit(c *gin.Context, event string, data any) {
	c.SSEvent(event, data)
	c.Writer.Flush()
}
