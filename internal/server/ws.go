package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = maxRequestBytes
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket serves the message channel. Each request envelope gets
// exactly one reply carrying the same id; messages on one connection are
// handled in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)
	hdr := headersFromRequest(r)

	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("ws read: %v", err)
			}
			return
		}
		out := s.dispatch(r, msg, hdr)
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(out); err != nil {
			s.logger.Printf("ws write: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(r *http.Request, msg envelope, hdr http.Header) reply {
	ctx := r.Context()
	fail := func(err error) reply {
		return reply{Type: MsgError, ID: msg.ID, Payload: errorResult{Error: err.Error()}}
	}
	switch msg.Type {
	case MsgGetIssues:
		var req scanRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return fail(err)
		}
		res, err := s.scan(ctx, req, hdr)
		if err != nil {
			return fail(err)
		}
		return reply{Type: MsgIssuesResult, ID: msg.ID, Payload: res}
	case MsgFixIssues:
		var req fixRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return fail(err)
		}
		res, err := s.fix(ctx, req)
		if err != nil && !errors.Is(err, errNoIssues) {
			return fail(err)
		}
		return reply{Type: MsgFixResult, ID: msg.ID, Payload: res}
	case MsgCloseSession:
		var req closeRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return fail(err)
		}
		res, err := s.closeSession(ctx, req)
		if err != nil {
			return fail(err)
		}
		return reply{Type: MsgSessionClosed, ID: msg.ID, Payload: res}
	}
	return fail(fmt.Errorf("unknown message type %q", msg.Type))
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
