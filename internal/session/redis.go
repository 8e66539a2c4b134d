package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisStore persists each session as a JSON value whose Redis TTL matches
// the namespace TTL, so Redis performs eviction on its own. Sweep is a
// no-op for the same reason. The logical expiry check stays in place: a
// key can outlive the session when clocks are injected in tests.
type redisStore struct {
	client *redis.Client
	cfg    *storeConfig
}

func newRedisStore(cfg *storeConfig) *redisStore {
	return &redisStore{
		client: cfg.redisClient,
		cfg:    cfg,
	}
}

func redisKey(id string) string {
	return "session:" + id
}

func (s *redisStore) Create(ctx context.Context, ns Namespace, ownerRef string) (*Session, error) {
	now := s.cfg.now()
	sess := &Session{
		ID:             uuid.NewString(),
		Namespace:      ns,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.cfg.ttl(ns)),
		LastActivityAt: now,
		OwnerRef:       ownerRef,
	}

	val, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, redisKey(sess.ID), val, s.cfg.ttl(ns)).Err(); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return sess, nil
}

func (s *redisStore) get(ctx context.Context, id string) (*Session, error) {
	val, err := s.client.Get(ctx, redisKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *redisStore) Validate(ctx context.Context, id string) (*Session, error) {
	sess, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ExpiredAt(s.cfg.now()) {
		_ = s.client.Del(ctx, redisKey(id)).Err()
		return nil, ErrExpired
	}
	return sess, nil
}

func (s *redisStore) Touch(ctx context.Context, id string) error {
	sess, err := s.get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	sess.LastActivityAt = s.cfg.now()
	sess.TurnCount++

	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	// KeepTTL preserves the fixed expiry set at creation.
	return s.client.Set(ctx, redisKey(id), val, redis.KeepTTL).Err()
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKey(id)).Err()
}

func (s *redisStore) Sweep(ctx context.Context) (int, error) {
	// Redis evicts by key TTL.
	return 0, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
