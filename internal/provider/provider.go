// Package provider defines the uniform interface to AI completion
// backends, the typed failure taxonomy, and the deterministic fallback
// responder used whenever the primary backend cannot answer.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Turn is one prior user/assistant exchange passed as context.
type Turn struct {
	UserMessage      string
	AssistantMessage string
}

// Result is a completed generation.
type Result struct {
	Message      string
	Model        string
	Tokens       int
	ResponseTime time.Duration
}

// FailureKind classifies why a provider call failed. Classification
// happens once, at the integration edge; nothing downstream inspects
// error strings.
type FailureKind string

const (
	KindAuthInvalid   FailureKind = "auth_invalid"
	KindQuotaExceeded FailureKind = "quota_exceeded"
	KindRateLimited   FailureKind = "rate_limited"
	KindTransient     FailureKind = "transient"
	KindUnknown       FailureKind = "unknown"
)

// Failure is a classified provider error.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("provider failure (%s): %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Adapter generates an assistant reply for a user message given bounded
// conversation context. Implementations return *Failure on error.
// Truncating context to the backend's token budget is the adapter's
// responsibility; callers only bound by turn count.
type Adapter interface {
	Generate(ctx context.Context, message string, history []Turn) (*Result, error)
}
