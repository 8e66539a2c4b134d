package session

import (
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	ttls        map[Namespace]time.Duration
	now         func() time.Time
	db          *sql.DB
	redisClient *redis.Client
}

func defaultStoreConfig() *storeConfig {
	return &storeConfig{
		ttls: map[Namespace]time.Duration{
			NamespaceChat:  24 * time.Hour,
			NamespaceAdmin: 2 * time.Hour,
		},
		now: time.Now,
	}
}

// WithTTL sets the time-to-live for sessions created in a namespace.
func WithTTL(ns Namespace, ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttls[ns] = ttl
	}
}

// WithClock overrides the store's time source. Used by tests.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

// WithDB sets the database handle for the sqlite store.
func WithDB(db *sql.DB) StoreOption {
	return func(c *storeConfig) {
		c.db = db
	}
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

func (c *storeConfig) ttl(ns Namespace) time.Duration {
	if ttl, ok := c.ttls[ns]; ok {
		return ttl
	}
	return c.ttls[NamespaceChat]
}
