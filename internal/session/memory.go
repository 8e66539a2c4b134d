package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// memoryStore holds the session table in a mutex-guarded map. It is the
// default for tests and development and the base the sqlite driver layers
// write-through persistence on.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      *storeConfig
}

func newMemoryStore(cfg *storeConfig) *memoryStore {
	return &memoryStore{
		sessions: make(map[string]*Session),
		cfg:      cfg,
	}
}

func (s *memoryStore) Create(ctx context.Context, ns Namespace, ownerRef string) (*Session, error) {
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
	s.sessions[sess.ID] = sess
	return sess.clone(), nil
}

func (s *memoryStore) Validate(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.ExpiredAt(s.cfg.now()) {
		delete(s.sessions, id)
		return nil, ErrExpired
	}
	return sess.clone(), nil
}

func (s *memoryStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	sess.LastActivityAt = s.cfg.now()
	sess.TurnCount++
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *memoryStore) Sweep(ctx context.Context) (int, error) {
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
	return evicted, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	return nil
}
