package session

// StoreType represents the type of session store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

// NewStore creates a Store for the given driver type.
// The sqlite driver requires WithDB; the Redis driver requires
// WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := defaultStoreConfig()
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(config), nil

	case StoreTypeSQLite:
		if config.db == nil {
			return nil, ErrInvalidConfig
		}
		return newSQLiteStore(config)

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return newRedisStore(config), nil

	default:
		return nil, ErrInvalidStoreType
	}
}
