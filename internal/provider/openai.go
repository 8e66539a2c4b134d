package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chatgate/internal/catalog"
)

// OpenAIConfig configures the primary provider.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Deadline    time.Duration
}

// OpenAIAdapter wraps the OpenAI chat completion API. The system prompt is
// rebuilt from the services catalog on every request so CMS edits reach
// the assistant without a restart.
type OpenAIAdapter struct {
	client  *openai.Client
	catalog catalog.Reader
	cfg     OpenAIConfig
	tracer  trace.Tracer
	meter   metric.Meter
}

// NewOpenAIAdapter creates the primary provider. It does not validate the
// key against the API; an invalid key surfaces as an auth_invalid failure
// on first use.
func NewOpenAIAdapter(cfg OpenAIConfig, cat catalog.Reader, tracer trace.Tracer, meter metric.Meter) *OpenAIAdapter {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Deadline == 0 {
		cfg.Deadline = 30 * time.Second
	}

	return &OpenAIAdapter{
		client:  openai.NewClient(cfg.APIKey),
		catalog: cat,
		cfg:     cfg,
		tracer:  tracer,
		meter:   meter,
	}
}

func (a *OpenAIAdapter) Generate(ctx context.Context, message string, history []Turn) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "openai_api_call")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Deadline)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: BuildSystemPrompt(a.catalog.Services())},
	}
	for _, turn := range history {
		if turn.UserMessage != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.UserMessage,
			})
		}
		if turn.AssistantMessage != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.AssistantMessage,
			})
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	start := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: float32(a.cfg.Temperature),
	})

	duration := time.Since(start)
	a.recordLatency(ctx, duration)

	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Failure{Kind: KindUnknown, Err: errors.New("empty response from OpenAI")}
	}

	a.recordUsage(ctx, resp.Usage)

	return &Result{
		Message:      resp.Choices[0].Message.Content,
		Model:        a.cfg.Model,
		Tokens:       resp.Usage.TotalTokens,
		ResponseTime: duration,
	}, nil
}

func (a *OpenAIAdapter) recordLatency(ctx context.Context, d time.Duration) {
	histogram, err := a.meter.Float64Histogram(
		"llm.request.duration",
		metric.WithDescription("LLM request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(d.Milliseconds()))
	}
}

func (a *OpenAIAdapter) recordUsage(ctx context.Context, usage openai.Usage) {
	counter, err := a.meter.Int64Counter(
		"llm.usage.total_tokens",
		metric.WithDescription("LLM usage metric: total tokens"),
	)
	if err == nil {
		counter.Add(ctx, int64(usage.TotalTokens))
	}
}

// classify maps API errors into the failure taxonomy exactly once, at
// this boundary.
func classify(err error) *Failure {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Failure{Kind: KindAuthInvalid, Err: err}
		case http.StatusTooManyRequests:
			if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
				return &Failure{Kind: KindQuotaExceeded, Err: err}
			}
			return &Failure{Kind: KindRateLimited, Err: err}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return &Failure{Kind: KindTransient, Err: err}
		default:
			return &Failure{Kind: KindUnknown, Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Failure{Kind: KindTransient, Err: fmt.Errorf("provider deadline exceeded: %w", err)}
	}

	return &Failure{Kind: KindUnknown, Err: err}
}
