package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/efficiencynow/efficiencynow/internal/infra/config"
)

func replayConfig() config.RetryConfig {
	return config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond, Paths: []string{"/users/login"}}
}

func TestLoginReplay_ReplaysListedPathsOnly(t *testing.T) {
	var calls int
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, `{"k":"v"}`, string(body))
		if calls < 3 {
			w.Header().Set("X-Attempt", "failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := withLoginReplay(inner, replayConfig(), newTestLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", bytes.NewBufferString(`{"k":"v"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, calls)
	require.Empty(t, rec.Header().Get("X-Attempt"))

	calls = 0
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/register", bytes.NewBufferString(`{"k":"v"}`)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 1, calls)
}

func TestLoginReplay_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"auth_error"}}`))
	})
	handler := withLoginReplay(inner, replayConfig(), newTestLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 3, calls)
	require.JSONEq(t, `{"error":{"code":"auth_error"}}`, rec.Body.String())
}

func TestLoginReplay_ClientErrorsAreNotReplayed(t *testing.T) {
	var calls int
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	handler := withLoginReplay(inner, replayConfig(), newTestLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 1, calls)
}

func TestLoginReplay_StopsWhenClientLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		cancel()
		w.WriteHeader(http.StatusBadGateway)
	})
	cfg := replayConfig()
	cfg.BaseBackoff = time.Hour
	handler := withLoginReplay(inner, cfg, newTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(`{}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, 1, calls)
	require.Zero(t, rec.Body.Len())
}

func TestLoginReplay_RejectsOversizedBody(t *testing.T) {
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})
	handler := withLoginReplay(inner, replayConfig(), newTestLogger())

	body := strings.Repeat("x", maxReplayBody+1)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(body)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, rec.Body.String(), "request_too_large")
}

func TestLoginReplay_DisabledPassesThrough(t *testing.T) {
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	cfg := replayConfig()
	cfg.Enabled = false
	_, wrapped := withLoginReplay(inner, cfg, newTestLogger()).(*loginReplayer)
	require.False(t, wrapped)

	_, wrapped = withLoginReplay(inner, replayConfig(), newTestLogger()).(*loginReplayer)
	require.True(t, wrapped)
}
