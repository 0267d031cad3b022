package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/me/shopfloor/internal/hub"
	"github.com/me/shopfloor/pkg/model"
)

const maxMessageBytes = 64 << 10

// handleWebSocket attaches a connection as an observer. The reader applies
// commands and queues their replies; a separate writer drains the
// connection's mailbox so a slow peer never holds up the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	peer := hub.NewPeer("ws_"+uuid.New().String()[:8], hub.DefaultReplyLimit)
	log := s.logger.With("observer_id", peer.ID(), "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(conn, peer)
	}()

	if err := s.hub.Add(peer); err != nil {
		log.Warn("websocket attach failed", "error", err)
		peer.Close()
		<-writerDone
		return
	}
	log.Info("observer connected", "observers", s.hub.Len())

	s.readPump(conn, peer)

	s.hub.Remove(peer.ID())
	peer.Close()
	<-writerDone
	log.Info("observer disconnected", "observers", s.hub.Len())
}

func (s *Server) readPump(conn *websocket.Conn, peer *hub.Peer) {
	conn.SetReadLimit(maxMessageBytes)
	// Commands are not tied to the connection: a command already read
	// completes even if the peer goes away.
	ctx := context.Background()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read", "observer_id", peer.ID(), "error", err)
			}
			return
		}

		reply := s.handler.HandleMessage(ctx, data)
		out, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error("encode reply", "observer_id", peer.ID(), "error", err)
			continue
		}
		if err := peer.PutReply(out); err != nil {
			terr := model.NewTransportError(peer.ID(), err)
			s.logger.Warn("dropping observer", "observer_id", peer.ID(), "code", terr.Code, "error", err)
			return
		}
	}
}

// writePump sends mailbox messages until the mailbox closes or a write
// fails. A failed write closes the mailbox, so the hub drops the peer on
// its next broadcast.
func (s *Server) writePump(conn *websocket.Conn, peer *hub.Peer) {
	defer conn.Close()
	for {
		msg, err := peer.Next(context.Background())
		if err != nil {
			deadline := time.Now().Add(time.Second)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}

		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			terr := model.NewTransportError(peer.ID(), err)
			s.logger.Warn("websocket write failed", "observer_id", peer.ID(), "code", terr.Code, "error", err)
			peer.Close()
			return
		}
	}
}
