package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chatgate/internal/provider"
	"chatgate/internal/session"
)

// Tracker receives usage signals from handled turns. Implementations must
// tolerate concurrent calls; the orchestrator notifies from a goroutine.
type Tracker interface {
	TrackQuestion(message string)
	RecordMessage(responseTimeMs int64)
}

// Options bound message validation and history replay.
type Options struct {
	MaxHistory       int
	MessageMinLength int
	MessageMaxLength int
}

// Input is one inbound user message, with the session the client claims.
type Input struct {
	SessionID string
	Message   string
	OwnerRef  string
}

// Output is the assistant reply plus the session the client should keep.
type Output struct {
	Message        string `json:"message"`
	SessionID      string `json:"sessionId"`
	Model          string `json:"model"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

// Orchestrator runs the turn pipeline: validate, resolve session, replay
// history, call the provider, fall back on failure, persist the turn.
type Orchestrator struct {
	sessions session.Store
	turns    TurnStore
	primary  provider.Adapter // nil when no provider is configured
	fallback *provider.Responder
	tracker  Tracker
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	msgCount metric.Int64Counter

	now func() time.Time
}

func NewOrchestrator(sessions session.Store, turns TurnStore, primary provider.Adapter,
	fallback *provider.Responder, tracker Tracker, opts Options) *Orchestrator {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}
	if opts.MessageMinLength <= 0 {
		opts.MessageMinLength = 1
	}
	if opts.MessageMaxLength <= 0 {
		opts.MessageMaxLength = 1000
	}
	meter := otel.Meter("chatgate/chat")
	msgCount, _ := meter.Int64Counter("chat.messages.total")
	return &Orchestrator{
		sessions: sessions,
		turns:    turns,
		primary:  primary,
		fallback: fallback,
		tracker:  tracker,
		opts:     opts,
		logger:   slog.Default(),
		tracer:   otel.Tracer("chatgate/chat"),
		msgCount: msgCount,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Handle processes one user message and returns the assistant reply.
// Provider failures never surface to the caller; the fallback responder
// always produces an answer.
func (o *Orchestrator) Handle(ctx context.Context, in Input) (*Output, error) {
	ctx, span := o.tracer.Start(ctx, "chat_handle")
	defer span.End()

	message := strings.TrimSpace(in.Message)
	// Length limits are in characters, not bytes.
	length := utf8.RuneCountInString(message)
	if length < o.opts.MessageMinLength {
		return nil, ErrEmptyMessage
	}
	if length > o.opts.MessageMaxLength {
		return nil, ErrMessageTooLong
	}
	message = html.EscapeString(message)

	sess, err := o.resolveSession(ctx, in.SessionID, in.OwnerRef)
	if err != nil {
		return nil, err
	}

	history, err := o.history(ctx, sess.ID)
	if err != nil {
		o.logger.Warn("failed to load history, continuing without it",
			"session_id", sess.ID, "error", err)
		history = nil
	}

	start := o.now()
	result := o.generate(ctx, message, history)
	elapsed := o.now().Sub(start).Milliseconds()

	turn := &Turn{
		ID:               uuid.NewString(),
		SessionID:        sess.ID,
		UserMessage:      message,
		AssistantMessage: result.Message,
		Model:            result.Model,
		ResponseTimeMs:   elapsed,
		CreatedAt:        o.now(),
	}
	if err := o.turns.Append(ctx, turn); err != nil {
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}
	if err := o.sessions.Touch(ctx, sess.ID); err != nil {
		o.logger.Warn("failed to touch session", "session_id", sess.ID, "error", err)
	}

	o.msgCount.Add(ctx, 1, metric.WithAttributes(attribute.String("model", result.Model)))
	if o.tracker != nil {
		go func(msg string, ms int64) {
			o.tracker.TrackQuestion(msg)
			o.tracker.RecordMessage(ms)
		}(message, elapsed)
	}

	return &Output{
		Message:        result.Message,
		SessionID:      sess.ID,
		Model:          result.Model,
		ResponseTimeMs: elapsed,
	}, nil
}

// History returns the recorded turns for a valid session.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]*Turn, error) {
	if _, err := o.sessions.Validate(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.turns.BySession(ctx, sessionID, 0)
}

// RecentContext returns the last n turns of a session for handoff to a
// human. Best effort: an invalid or unknown session yields no context.
func (o *Orchestrator) RecentContext(ctx context.Context, sessionID string, n int) []*Turn {
	if sessionID == "" {
		return nil
	}
	if _, err := o.sessions.Validate(ctx, sessionID); err != nil {
		return nil
	}
	turns, err := o.turns.BySession(ctx, sessionID, n)
	if err != nil {
		o.logger.Warn("failed to load escalation context", "session_id", sessionID, "error", err)
		return nil
	}
	return turns
}

// EnsureSession validates the id or issues a fresh chat session when it
// is missing or expired. The bool reports whether the original id was
// still valid.
func (o *Orchestrator) EnsureSession(ctx context.Context, id, ownerRef string) (*session.Session, bool, error) {
	if id != "" {
		sess, err := o.sessions.Validate(ctx, id)
		if err == nil {
			return sess, true, nil
		}
		if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrExpired) {
			return nil, false, err
		}
	}
	sess, err := o.sessions.Create(ctx, session.NamespaceChat, ownerRef)
	if err != nil {
		return nil, false, err
	}
	return sess, false, nil
}

func (o *Orchestrator) resolveSession(ctx context.Context, id, ownerRef string) (*session.Session, error) {
	sess, _, err := o.EnsureSession(ctx, id, ownerRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return sess, nil
}

func (o *Orchestrator) history(ctx context.Context, sessionID string) ([]provider.Turn, error) {
	turns, err := o.turns.BySession(ctx, sessionID, o.opts.MaxHistory)
	if err != nil {
		return nil, err
	}
	out := make([]provider.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, provider.Turn{
			UserMessage:      t.UserMessage,
			AssistantMessage: t.AssistantMessage,
		})
	}
	return out, nil
}

func (o *Orchestrator) generate(ctx context.Context, message string, history []provider.Turn) *provider.Result {
	if o.primary != nil {
		result, err := o.primary.Generate(ctx, message, history)
		if err == nil {
			return result
		}
		var failure *provider.Failure
		if errors.As(err, &failure) {
			o.logger.Warn("provider call failed, using fallback",
				"kind", failure.Kind, "error", failure.Err)
		} else {
			o.logger.Warn("provider call failed, using fallback", "error", err)
		}
	}
	return o.fallback.Respond(message)
}
