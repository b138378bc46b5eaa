package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/live/pkg/api"
)

func doRequest(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	s := New(Config{})
	w := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, serviceName, body["service"])
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := New(Config{})

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodGet, "/api/v1/presence/roster"},
		{http.MethodGet, "/api/v1/users/u2/follow"},
		{http.MethodPost, "/api/v1/users/u2/follow"},
		{http.MethodDelete, "/api/v1/users/u2/follow"},
	} {
		w := doRequest(t, s, route.method, route.path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)

		var body api.ErrorResponse
		decode(t, w, &body)
		assert.Equal(t, "unauthorized", body.Code)
	}
}

func TestMe(t *testing.T) {
	s := New(Config{})
	w := doRequest(t, s, http.MethodGet, "/api/v1/auth/me", "u1:alice")
	require.Equal(t, http.StatusOK, w.Code)

	var user api.User
	decode(t, w, &user)
	assert.Equal(t, api.User{UserID: "u1", Username: "alice"}, user)
}

func TestFollowLifecycle(t *testing.T) {
	s := New(Config{})

	status := func() bool {
		w := doRequest(t, s, http.MethodGet, "/api/v1/users/u2/follow", "u1")
		require.Equal(t, http.StatusOK, w.Code)
		var resp api.FollowStatusResponse
		decode(t, w, &resp)
		return resp.IsFollowing
	}

	assert.False(t, status())

	w := doRequest(t, s, http.MethodPost, "/api/v1/users/u2/follow", "u1")
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.FollowResponse
	decode(t, w, &resp)
	assert.True(t, resp.IsFollowing)
	assert.True(t, status())

	w = doRequest(t, s, http.MethodDelete, "/api/v1/users/u2/follow", "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, status())

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.FollowOperations.WithLabelValues("follow", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.FollowOperations.WithLabelValues("unfollow", "ok")))
}

func TestSelfFollowRejected(t *testing.T) {
	s := New(Config{})
	w := doRequest(t, s, http.MethodPost, "/api/v1/users/u1/follow", "u1")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body api.ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, "invalid_request", body.Code)
	assert.Equal(t, "You cannot follow yourself", body.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.FollowOperations.WithLabelValues("follow", "rejected")))
}

type failingFollows struct{ MemoryFollows }

func (*failingFollows) Follow(context.Context, string, string) error {
	return assert.AnError
}

func TestFollowStoreFailure(t *testing.T) {
	s := New(Config{Follows: &failingFollows{}})
	w := doRequest(t, s, http.MethodPost, "/api/v1/users/u2/follow", "u1")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body api.ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, "follow_failed", body.Code)
}

func TestRosterEndpoint(t *testing.T) {
	roster := NewMemoryRoster(0)
	ctx := context.Background()
	require.NoError(t, roster.Upsert(ctx, api.PresenceRecord{UserID: "u1", Username: "alice", Status: "online", Room: "studio"}))
	require.NoError(t, roster.Upsert(ctx, api.PresenceRecord{UserID: "u2", Username: "bob", Status: "away"}))
	s := New(Config{Roster: roster})

	w := doRequest(t, s, http.MethodGet, "/api/v1/presence/roster", "u9")
	require.Equal(t, http.StatusOK, w.Code)
	var all api.RosterResponse
	decode(t, w, &all)
	assert.Equal(t, 2, all.Count)
	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.RosterSize))

	w = doRequest(t, s, http.MethodGet, "/api/v1/presence/roster?room=studio", "u9")
	require.Equal(t, http.StatusOK, w.Code)
	var studio api.RosterResponse
	decode(t, w, &studio)
	require.Len(t, studio.Users, 1)
	assert.Equal(t, "alice", studio.Users[0].Username)
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(Config{})
	doRequest(t, s, http.MethodGet, "/health", "")

	w := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "relay_http_requests_total"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLogLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLogLevel("warning").String())
	assert.Equal(t, "info", parseLogLevel("verbose").String())

	log := NewLogger("error", "")
	assert.NotNil(t, log)
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), serviceName, "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
