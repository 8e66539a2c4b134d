package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"chatgate/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled at the middleware layer; the upgrade accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// handleWS runs a chat conversation over a single WebSocket connection.
// Each inbound frame is one user message; each outbound frame is either
// the assistant reply or an error envelope. Rate limits apply per frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ip := clientIP(r)
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}

		decision := s.limiter.CheckAndRecord(clientKey(r, msg.SessionID), "chat")
		if !decision.Allowed {
			s.writeWS(conn, errorResponse{
				Error:             decision.Reason,
				Kind:              "rate_limited",
				RetryAfterSeconds: decision.RetryAfterSeconds,
			})
			continue
		}

		out, err := s.orchestrator.Handle(r.Context(), chat.Input{
			SessionID: msg.SessionID,
			Message:   msg.Message,
			OwnerRef:  ip,
		})
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrEmptyMessage):
				s.writeWS(conn, errorResponse{Error: "message is required", Kind: "validation"})
			case errors.Is(err, chat.ErrMessageTooLong):
				s.writeWS(conn, errorResponse{Error: "message exceeds maximum length", Kind: "validation"})
			default:
				s.writeWS(conn, errorResponse{Error: "internal server error", Kind: "internal"})
			}
			continue
		}

		s.writeWS(conn, out)
	}
}

func (s *Server) writeWS(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		slog.Warn("websocket write failed", "error", err)
	}
}
