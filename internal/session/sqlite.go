package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// sqliteStore keeps the session table in memory and writes every mutation
// through to sqlite. The full table is reloaded at construction, so a
// restart loses nothing but in-flight writes. This is a write-through
// cache, not a transaction log; the single mutex serializes writers.
type sqliteStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	db       *sql.DB
	cfg      *storeConfig
}

func newSQLiteStore(cfg *storeConfig) (*sqliteStore, error) {
	s := &sqliteStore{
		sessions: make(map[string]*Session),
		db:       cfg.db,
		cfg:      cfg,
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) load() error {
	rows, err := s.db.Query(
		`SELECT id, namespace, created_at, expires_at, last_activity_at, turn_count, COALESCE(owner_ref, '')
		 FROM sessions`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sess Session
		var ns string
		if err := rows.Scan(&sess.ID, &ns, &sess.CreatedAt, &sess.ExpiresAt,
			&sess.LastActivityAt, &sess.TurnCount, &sess.OwnerRef); err != nil {
			return err
		}
		sess.Namespace = Namespace(ns)
		s.sessions[sess.ID] = &sess
	}
	return rows.Err()
}

func (s *sqliteStore) Create(ctx context.Context, ns Namespace, ownerRef string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.now()
	sess := &Session{
		ID:             uuid.NewString(),
		Namespace:      ns,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.cfg.ttl(ns)),
		LastActivityAt: now,
		OwnerRef:       ownerRef,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, namespace, created_at, expires_at, last_activity_at, turn_count, owner_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Namespace), sess.CreatedAt, sess.ExpiresAt,
		sess.LastActivityAt, sess.TurnCount, sess.OwnerRef)
	if err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.sessions[sess.ID] = sess
	return sess.clone(), nil
}

func (s *sqliteStore) Validate(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.ExpiredAt(s.cfg.now()) {
		delete(s.sessions, id)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			slog.Warn("failed to evict expired session", "session_id", id, "error", err)
		}
		return nil, ErrExpired
	}
	return sess.clone(), nil
}

func (s *sqliteStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	sess.LastActivityAt = s.cfg.now()
	sess.TurnCount++

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ?, turn_count = ? WHERE id = ?`,
		sess.LastActivityAt, sess.TurnCount, id)
	if err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *sqliteStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.now()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.ExpiredAt(now) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now); err != nil {
			return evicted, fmt.Errorf("failed to sweep sessions: %w", err)
		}
	}
	return evicted, nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	return nil
}
