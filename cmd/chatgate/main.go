package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chatgate/internal/catalog"
	"chatgate/internal/chat"
	"chatgate/internal/config"
	"chatgate/internal/httpapi"
	"chatgate/internal/learning"
	"chatgate/internal/provider"
	"chatgate/internal/ratelimit"
	"chatgate/internal/session"
	"chatgate/internal/telemetry"
)

func main() {
	cfg := config.Default()

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.StringVar(&cfg.SessionStore, "session-store", cfg.SessionStore, "Session store (memory|sqlite|redis)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "LLM provider (openai|none)")
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	db, err := telemetry.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	sessions, err := buildSessionStore(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to build session store: %w", err)
	}
	defer sessions.Close()

	sweeper := session.NewSweeper(sessions, cfg.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	services := catalog.NewFileReader(cfg.ServicesPath)

	primary := buildProvider(cfg, services, tracer, meter, logger)
	fallback := provider.NewResponder(services)

	var turns chat.TurnStore
	var docs learning.DocStore
	if cfg.SessionStore == config.StoreMemory {
		turns = chat.NewMemoryTurnStore()
		docs = learning.NewMemoryDocStore()
	} else {
		turns = chat.NewSQLTurnStore(db)
		docs = learning.NewSQLDocStore(db)
	}

	engine := learning.NewEngine(docs, learning.Caps{
		PopularQuestions: cfg.PopularQuestionCap,
		RatedResponses:   cfg.RatedResponseCap,
		Insights:         cfg.InsightCap,
	})

	orchestrator := chat.NewOrchestrator(sessions, turns, primary, fallback, engine, chat.Options{
		MaxHistory:       cfg.MaxHistory,
		MessageMinLength: cfg.MessageMinLength,
		MessageMaxLength: cfg.MessageMaxLength,
	})

	limiter := ratelimit.New(cfg.MaxRequestsPerMinute, cfg.MaxRequestsPerHour, cfg.MaxRequestsPerDay)
	limiter.SetEnabled(cfg.RateLimitEnabled)

	auth := httpapi.NewAuthenticator(cfg.AdminUser, cfg.AdminPassword, sessions)
	handler := httpapi.NewServer(orchestrator, limiter, engine, auth, cfg.ContactURL)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "provider", cfg.Provider,
			"session_store", cfg.SessionStore)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func buildSessionStore(cfg config.Config, db *sql.DB) (session.Store, error) {
	ttls := []session.StoreOption{
		session.WithTTL(session.NamespaceChat, cfg.ChatSessionTTL),
		session.WithTTL(session.NamespaceAdmin, cfg.AdminSessionTTL),
	}

	switch cfg.SessionStore {
	case config.StoreMemory:
		return session.NewStore(session.StoreTypeMemory, ttls...)
	case config.StoreSQLite:
		return session.NewStore(session.StoreTypeSQLite,
			append(ttls, session.WithDB(db))...)
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return session.NewStore(session.StoreTypeRedis,
			append(ttls, session.WithRedisClient(client))...)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// buildProvider returns nil when no provider is configured; the
// orchestrator then answers from the fallback knowledge base alone.
func buildProvider(cfg config.Config, services catalog.Reader,
	tracer trace.Tracer, meter metric.Meter, logger *slog.Logger) provider.Adapter {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("openai provider selected but no API key set, using fallback only")
			return nil
		}
		return provider.NewOpenAIAdapter(provider.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Deadline:    cfg.RequestDeadline,
		}, services, tracer, meter)
	default:
		return nil
	}
}
