package chat

import (
	"context"
	"time"
)

// Turn is one completed user/assistant exchange. Turns are append-only
// and belong to exactly one session; a session's visible context is the
// suffix of its turns.
type Turn struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	Model            string    `json:"model"`
	ResponseTimeMs   int64     `json:"response_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// TurnStore persists conversation turns.
type TurnStore interface {
	// Append stores a new turn. Turns are never mutated afterwards.
	Append(ctx context.Context, turn *Turn) error

	// BySession returns a session's turns in creation order. A positive
	// limit returns only the most recent turns.
	BySession(ctx context.Context, sessionID string, limit int) ([]*Turn, error)
}
