package chat

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// MemoryTurnStore keeps turns in a mutex-guarded map, keyed by session.
// Used by tests and the memory session backend.
type MemoryTurnStore struct {
	mu    sync.RWMutex
	turns map[string][]*Turn
}

func NewMemoryTurnStore() *MemoryTurnStore {
	return &MemoryTurnStore{
		turns: make(map[string][]*Turn),
	}
}

func (s *MemoryTurnStore) Append(ctx context.Context, turn *Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *MemoryTurnStore) BySession(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]*Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// SQLTurnStore appends turns to the sqlite turn log.
type SQLTurnStore struct {
	db *sql.DB
}

func NewSQLTurnStore(db *sql.DB) *SQLTurnStore {
	return &SQLTurnStore{db: db}
}

func (s *SQLTurnStore) Append(ctx context.Context, turn *Turn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, user_message, assistant_message, model, response_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.UserMessage, turn.AssistantMessage,
		turn.Model, turn.ResponseTimeMs, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (s *SQLTurnStore) BySession(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	query := `SELECT id, session_id, user_message, assistant_message, model, response_time_ms, created_at
		 FROM turns WHERE session_id = ? ORDER BY created_at`
	args := []any{sessionID}
	if limit > 0 {
		// Most recent N, back in creation order.
		query = `SELECT id, session_id, user_message, assistant_message, model, response_time_ms, created_at
			 FROM (
				SELECT id, session_id, user_message, assistant_message, model, response_time_ms, created_at
				FROM turns WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
			 ) ORDER BY created_at`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.UserMessage,
			&turn.AssistantMessage, &turn.Model, &turn.ResponseTimeMs, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}
