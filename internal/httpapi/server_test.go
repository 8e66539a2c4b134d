package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/catalog"
	"chatgate/internal/chat"
	"chatgate/internal/httpapi"
	"chatgate/internal/learning"
	"chatgate/internal/provider"
	"chatgate/internal/ratelimit"
	"chatgate/internal/session"
)

type testEnv struct {
	handler http.Handler
	engine  *learning.Engine
}

func newTestServer(t *testing.T, perMinute int) *testEnv {
	t.Helper()

	sessions, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	engine := learning.NewEngine(nil, learning.Caps{})
	fallback := provider.NewResponder(catalog.StaticReader{})
	orchestrator := chat.NewOrchestrator(sessions, chat.NewMemoryTurnStore(),
		provider.NewMockAdapter(), fallback, engine, chat.Options{MessageMaxLength: 100})

	limiter := ratelimit.New(perMinute, 100, 500)
	auth := httpapi.NewAuthenticator("admin", "secret", sessions)

	return &testEnv{
		handler: httpapi.NewServer(orchestrator, limiter, engine, auth, "/pages/contact.html"),
		engine:  engine,
	}
}

func (e *testEnv) post(t *testing.T, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.get(t, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSendCreatesSessionAndReplies(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/chat/send", map[string]string{"message": "hello"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode[chat.Output](t, w)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "mock reply", out.Message)
	assert.Equal(t, "mock", out.Model)
}

func TestSendContinuesSession(t *testing.T) {
	env := newTestServer(t, 10)

	first := decode[chat.Output](t, env.post(t, "/api/chat/send",
		map[string]string{"message": "hello"}, nil))

	w := env.post(t, "/api/chat/send", map[string]string{
		"message":   "again",
		"sessionId": first.SessionID,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[chat.Output](t, w)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/chat/send", map[string]string{"message": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[map[string]any](t, w)["kind"])
}

func TestUnknownAPIPathReturnsJSONError(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.get(t, "/api/chat/bogus", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[map[string]any](t, w)["kind"])
}

func TestSendRateLimitedWithRetryAfter(t *testing.T) {
	env := newTestServer(t, 2)

	headers := map[string]string{"X-Session-Id": "client-a"}
	for i := 0; i < 2; i++ {
		w := env.post(t, "/api/chat/send", map[string]string{"message": "hi"}, headers)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.post(t, "/api/chat/send", map[string]string{"message": "hi"}, headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	body := decode[map[string]any](t, w)
	assert.Equal(t, "rate_limited", body["kind"])
	assert.EqualValues(t, 60, body["retry_after_seconds"])
}

func TestEscalateIsRateLimited(t *testing.T) {
	env := newTestServer(t, 1)

	headers := map[string]string{"X-Session-Id": "client-a"}
	w := env.post(t, "/api/chat/escalate", map[string]string{"reason": "human"}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	escalations := env.engine.Snapshot().TotalEscalations
	for i := 0; i < 25; i++ {
		w = env.post(t, "/api/chat/escalate", map[string]string{"reason": "human"}, headers)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	}
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	// Denied escalations must not touch the learning record.
	assert.Equal(t, escalations, env.engine.Snapshot().TotalEscalations)
}

func TestSessionEndpointIsRateLimited(t *testing.T) {
	env := newTestServer(t, 1)

	w := env.get(t, "/api/chat/session", nil)
	require.Equal(t, http.StatusOK, w.Code)

	for i := 0; i < 25; i++ {
		w = env.get(t, "/api/chat/session", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	}
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestInvalidMessageStillConsumesRateLimitSlot(t *testing.T) {
	env := newTestServer(t, 2)

	headers := map[string]string{"X-Session-Id": "client-a"}
	for i := 0; i < 2; i++ {
		w := env.post(t, "/api/chat/send", map[string]string{"message": ""}, headers)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	// Both rejected messages counted against the limit.
	w := env.post(t, "/api/chat/send", map[string]string{"message": "hello"}, headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHistoryRoundTrip(t *testing.T) {
	env := newTestServer(t, 10)

	out := decode[chat.Output](t, env.post(t, "/api/chat/send",
		map[string]string{"message": "hello"}, nil))

	w := env.get(t, "/api/chat/history?sessionId="+out.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		SessionID string       `json:"sessionId"`
		Turns     []*chat.Turn `json:"turns"`
	}](t, w)
	require.Len(t, body.Turns, 1)
	assert.Equal(t, "hello", body.Turns[0].UserMessage)
}

func TestHistoryUnknownSession(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.get(t, "/api/chat/history?sessionId=no-such-session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionEndpointIssuesFreshSession(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.get(t, "/api/chat/session?sessionId=no-such-session", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, false, body["valid"])
	assert.NotEqual(t, "no-such-session", body["sessionId"])
	assert.NotEmpty(t, body["sessionId"])
}

func TestSessionEndpointValidatesLiveSession(t *testing.T) {
	env := newTestServer(t, 10)

	out := decode[chat.Output](t, env.post(t, "/api/chat/send",
		map[string]string{"message": "hello"}, nil))

	w := env.get(t, "/api/chat/session?sessionId="+out.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, out.SessionID, body["sessionId"])
}

func TestFeedbackReturnsRunningAverage(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/chat/feedback", map[string]any{"rating": 5}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 5.0, decode[map[string]float64](t, w)["averageRating"], 0.001)

	w = env.post(t, "/api/chat/feedback", map[string]any{"rating": 1, "comment": "slow"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 3.0, decode[map[string]float64](t, w)["averageRating"], 0.001)
}

func TestFeedbackRejectsOverlongComment(t *testing.T) {
	env := newTestServer(t, 10)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	w := env.post(t, "/api/chat/feedback",
		map[string]any{"rating": 5, "comment": string(long)}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackRejectsBadRating(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/chat/feedback", map[string]any{"rating": 9}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscalateReturnsContactURL(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/chat/escalate", map[string]string{"reason": "need a human"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "/pages/contact.html", body["contactUrl"])
	assert.Empty(t, body["recentContext"])
	assert.Equal(t, int64(1), env.engine.Snapshot().TotalEscalations)
}

func TestEscalateIncludesRecentContext(t *testing.T) {
	env := newTestServer(t, 10)

	out := decode[chat.Output](t, env.post(t, "/api/chat/send",
		map[string]string{"message": "hello"}, nil))

	w := env.post(t, "/api/chat/escalate",
		map[string]string{"sessionId": out.SessionID, "reason": "need a human"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		ContactURL    string       `json:"contactUrl"`
		RecentContext []*chat.Turn `json:"recentContext"`
	}](t, w)
	require.Len(t, body.RecentContext, 1)
	assert.Equal(t, "hello", body.RecentContext[0].UserMessage)
}

func TestLearningRequiresAdmin(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.get(t, "/api/chat/learning", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminLoginAndLearningAccess(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/admin/login",
		map[string]string{"username": "admin", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]string](t, w)["token"]
	require.NotEmpty(t, token)

	w = env.get(t, "/api/chat/learning", map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.post(t, "/api/chat/learning/analyze", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/admin/login",
		map[string]string{"username": "admin", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminLogoutInvalidatesToken(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.post(t, "/api/admin/login",
		map[string]string{"username": "admin", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]string](t, w)["token"]

	headers := map[string]string{"Authorization": "Bearer " + token}
	w = env.post(t, "/api/admin/logout", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.get(t, "/api/chat/learning", headers)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestServer(t, 10)

	w := env.get(t, "/api/chat/send", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/send", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
