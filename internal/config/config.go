package config

import (
	"os"
	"strconv"
	"time"
)

// Session store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// AI providers
const (
	ProviderOpenAI = "openai"
	ProviderNone   = "none" // fallback responder only
)

// Config holds application configuration. Defaults mirror the production
// deployment; every field can be overridden by flag or environment.
type Config struct {
	ListenAddr string
	Debug      bool

	// Durable storage
	DBPath       string // sqlite database for sessions, turns and learning data
	SessionStore string // memory|sqlite|redis
	RedisAddr    string
	RedisDB      int

	// Session lifecycle
	ChatSessionTTL  time.Duration
	AdminSessionTTL time.Duration
	SweepInterval   time.Duration

	// Rate limiting (per client identity, per endpoint)
	RateLimitEnabled     bool
	MaxRequestsPerMinute int
	MaxRequestsPerHour   int
	MaxRequestsPerDay    int

	// Message constraints
	MessageMinLength int
	MessageMaxLength int
	MaxHistory       int // context turns passed to the provider

	// AI provider
	Provider        string
	OpenAIAPIKey    string
	Model           string
	MaxTokens       int
	Temperature     float64
	RequestDeadline time.Duration

	// Services catalog consumed for prompt context
	ServicesPath string

	// Learning / analytics capacities
	PopularQuestionCap int
	RatedResponseCap   int
	InsightCap         int

	// Escalation
	ContactURL string

	// Admin credentials, verified before an admin session is issued
	AdminUser     string
	AdminPassword string
}

// Default returns the configuration with documented defaults applied.
// Environment variables override defaults; flags override both.
func Default() Config {
	return Config{
		ListenAddr: getEnv("CHATGATE_ADDR", ":8080"),
		Debug:      getBoolEnv("CHATGATE_DEBUG", false),

		DBPath:       getEnv("CHATGATE_DB", "chatgate.db"),
		SessionStore: getEnv("CHATGATE_SESSION_STORE", StoreSQLite),
		RedisAddr:    getEnv("CHATGATE_REDIS_ADDR", "localhost:6379"),
		RedisDB:      getIntEnv("CHATGATE_REDIS_DB", 0),

		ChatSessionTTL:  getDurationEnv("CHATGATE_CHAT_TTL", 24*time.Hour),
		AdminSessionTTL: getDurationEnv("CHATGATE_ADMIN_TTL", 2*time.Hour),
		SweepInterval:   getDurationEnv("CHATGATE_SWEEP_INTERVAL", time.Hour),

		RateLimitEnabled:     getBoolEnv("CHATGATE_RATE_LIMIT", true),
		MaxRequestsPerMinute: getIntEnv("CHATGATE_MAX_PER_MINUTE", 10),
		MaxRequestsPerHour:   getIntEnv("CHATGATE_MAX_PER_HOUR", 100),
		MaxRequestsPerDay:    getIntEnv("CHATGATE_MAX_PER_DAY", 500),

		MessageMinLength: 1,
		MessageMaxLength: getIntEnv("CHATGATE_MAX_MESSAGE_LENGTH", 1000),
		MaxHistory:       getIntEnv("CHATGATE_MAX_HISTORY", 10),

		Provider:        getEnv("CHATGATE_PROVIDER", ProviderOpenAI),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		Model:           getEnv("CHATGATE_MODEL", "gpt-4o-mini"),
		MaxTokens:       getIntEnv("CHATGATE_MAX_TOKENS", 500),
		Temperature:     0.7,
		RequestDeadline: getDurationEnv("CHATGATE_DEADLINE", 30*time.Second),

		ServicesPath: getEnv("CHATGATE_SERVICES", "data/services.json"),

		PopularQuestionCap: 100,
		RatedResponseCap:   50,
		InsightCap:         100,

		ContactURL: getEnv("CHATGATE_CONTACT_URL", "/pages/contact.html"),

		AdminUser:     getEnv("CHATGATE_ADMIN_USER", "admin"),
		AdminPassword: getEnv("CHATGATE_ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
