package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/catalog"
	"chatgate/internal/provider"
	"chatgate/internal/session"
)

type recordingTracker struct {
	mu        sync.Mutex
	questions []string
	times     []int64
}

func (t *recordingTracker) TrackQuestion(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.questions = append(t.questions, message)
}

func (t *recordingTracker) RecordMessage(responseTimeMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = append(t.times, responseTimeMs)
}

func newTestOrchestrator(t *testing.T, primary provider.Adapter) (*Orchestrator, session.Store) {
	t.Helper()

	sessions, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	fallback := provider.NewResponder(catalog.StaticReader{})
	o := NewOrchestrator(sessions, NewMemoryTurnStore(), primary, fallback, nil, Options{
		MaxHistory:       3,
		MessageMinLength: 1,
		MessageMaxLength: 50,
	})
	return o, sessions
}

func TestHandleCreatesSessionWhenNoneGiven(t *testing.T) {
	mock := provider.NewMockAdapter()
	o, _ := newTestOrchestrator(t, mock)

	out, err := o.Handle(context.Background(), Input{Message: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, mock.Reply, out.Message)
}

func TestHandleReusesValidSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, provider.NewMockAdapter())
	ctx := context.Background()

	first, err := o.Handle(ctx, Input{Message: "hello"})
	require.NoError(t, err)

	second, err := o.Handle(ctx, Input{Message: "again", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestHandleReplacesUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, provider.NewMockAdapter())

	out, err := o.Handle(context.Background(), Input{
		Message:   "hello",
		SessionID: "stale-or-forged-id",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "stale-or-forged-id", out.SessionID)
}

func TestHandleRejectsEmptyMessage(t *testing.T) {
	o, _ := newTestOrchestrator(t, provider.NewMockAdapter())

	_, err := o.Handle(context.Background(), Input{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandleRejectsOverlongMessage(t *testing.T) {
	o, _ := newTestOrchestrator(t, provider.NewMockAdapter())

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	_, err := o.Handle(context.Background(), Input{Message: string(long)})
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestHandleCountsLengthInRunes(t *testing.T) {
	o, _ := newTestOrchestrator(t, provider.NewMockAdapter())
	ctx := context.Background()

	// 40 runes but 80 bytes; limit is 50 characters.
	_, err := o.Handle(ctx, Input{Message: strings.Repeat("é", 40)})
	assert.NoError(t, err)

	_, err = o.Handle(ctx, Input{Message: strings.Repeat("é", 51)})
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestHandleEscapesMarkup(t *testing.T) {
	mock := provider.NewMockAdapter()
	o, _ := newTestOrchestrator(t, mock)

	_, err := o.Handle(context.Background(), Input{Message: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", mock.LastMessage)
}

func TestHandleCapsHistory(t *testing.T) {
	mock := provider.NewMockAdapter()
	o, _ := newTestOrchestrator(t, mock)
	ctx := context.Background()

	out, err := o.Handle(ctx, Input{Message: "turn 0"})
	require.NoError(t, err)
	for i := 1; i < 6; i++ {
		_, err := o.Handle(ctx, Input{
			Message:   fmt.Sprintf("turn %d", i),
			SessionID: out.SessionID,
		})
		require.NoError(t, err)
	}

	// MaxHistory is 3, so the last call must replay exactly the three
	// turns before it.
	require.Len(t, mock.LastHistory, 3)
	assert.Equal(t, "turn 2", mock.LastHistory[0].UserMessage)
	assert.Equal(t, "turn 4", mock.LastHistory[2].UserMessage)
}

func TestHandleFallsBackOnProviderFailure(t *testing.T) {
	mock := provider.NewMockAdapter()
	mock.Err = &provider.Failure{Kind: provider.KindRateLimited, Err: errors.New("429")}
	o, _ := newTestOrchestrator(t, mock)

	out, err := o.Handle(context.Background(), Input{Message: "what do you offer"})
	require.NoError(t, err)
	assert.Equal(t, provider.FallbackModel, out.Model)
	assert.NotEmpty(t, out.Message)
}

func TestHandleWithoutPrimaryUsesFallback(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	out, err := o.Handle(context.Background(), Input{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, provider.FallbackModel, out.Model)
}

func TestHandleRecordsTurn(t *testing.T) {
	o, _ := newTestOrchestrator(t, provider.NewMockAdapter())
	ctx := context.Background()

	out, err := o.Handle(ctx, Input{Message: "hello"})
	require.NoError(t, err)

	turns, err := o.History(ctx, out.SessionID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].UserMessage)
	assert.Equal(t, out.Message, turns[0].AssistantMessage)
}

func TestHandleNotifiesTracker(t *testing.T) {
	tracker := &recordingTracker{}
	sessions, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	o := NewOrchestrator(sessions, NewMemoryTurnStore(), provider.NewMockAdapter(),
		provider.NewResponder(catalog.StaticReader{}), tracker, Options{})

	_, err = o.Handle(context.Background(), Input{Message: "hello"})
	require.NoError(t, err)

	// Tracker notification is asynchronous.
	assert.Eventually(t, func() bool {
		tracker.mu.Lock()
		defer tracker.mu.Unlock()
		return len(tracker.questions) == 1 && len(tracker.times) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHistoryRequiresValidSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, provider.NewMockAdapter())

	_, err := o.History(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
