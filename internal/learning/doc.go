package learning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DocStore persists one named JSON document. The learning engine uses it
// to survive restarts; loads and saves are whole-document.
type DocStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// ErrDocNotFound reports a key with no stored document.
var ErrDocNotFound = errors.New("document not found")

// SQLDocStore keeps documents in the documents table.
type SQLDocStore struct {
	db *sql.DB
}

func NewSQLDocStore(db *sql.DB) *SQLDocStore {
	return &SQLDocStore{db: db}
}

func (s *SQLDocStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM documents WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLDocStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save document %q: %w", key, err)
	}
	return nil
}

// MemoryDocStore is an in-process DocStore for tests and the memory backend.
type MemoryDocStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryDocStore() *MemoryDocStore {
	return &MemoryDocStore{docs: make(map[string][]byte)}
}

func (s *MemoryDocStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.docs[key]
	if !ok {
		return nil, ErrDocNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemoryDocStore) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(value))
	copy(out, value)
	s.docs[key] = out
	return nil
}
