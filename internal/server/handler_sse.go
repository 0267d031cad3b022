package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/me/shopfloor/internal/hub"
)

// handleSSETasks streams state messages as Server-Sent Events. The first
// event carries the current table.
func (s *Server) handleSSETasks(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Read-only observers never get replies.
	peer := hub.NewPeer("sse_"+uuid.New().String()[:8], 1)
	defer peer.Close()
	if err := s.hub.Add(peer); err != nil {
		s.logger.Debug("sse attach failed", "error", err)
		return
	}
	defer s.hub.Remove(peer.ID())
	s.logger.Debug("sse client connected", "observer_id", peer.ID())

	ctx := r.Context()
	for {
		waitCtx, cancel := context.WithTimeout(ctx, s.config.HeartbeatInterval)
		msg, err := peer.Next(waitCtx)
		cancel()

		switch {
		case err == nil:
			if err := sendSSEEvent(w, flusher, "state", msg); err != nil {
				s.logger.Debug("sse client disconnected", "observer_id", peer.ID(), "error", err)
				return
			}
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		default:
			s.logger.Debug("sse client disconnected", "observer_id", peer.ID())
			return
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
