package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/efficiencynow/efficiencynow/internal/infra/config"
)

// maxReplayBody caps what is buffered for a replay. Credentials are tiny.
const maxReplayBody = 64 << 10

// withLoginReplay re-runs a login that failed with a 5xx, so a session store
// that blinks during a failover does not bounce users back to the form.
//
// A failed login never reaches the client with a token: the token is written
// only after the session store accepted it. Running it again only mints a
// fresh session. Register and logout must not be listed in cfg.Paths because
// a lost reply there can hide a write that already happened.
func withLoginReplay(next http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 || len(cfg.Paths) == 0 {
		return next
	}
	r := &loginReplayer{
		next:     next,
		paths:    make(map[string]bool, len(cfg.Paths)),
		attempts: cfg.MaxAttempts,
		backoff:  cfg.BaseBackoff,
		logger:   logger.With("component", "http.login_replay"),
	}
	for _, p := range cfg.Paths {
		r.paths[p] = true
	}
	return r
}

type loginReplayer struct {
	next     http.Handler
	paths    map[string]bool
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

func (l *loginReplayer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !l.paths[r.URL.Path] {
		l.next.ServeHTTP(w, r)
		return
	}

	credentials, err := readCredentials(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeReplayError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return
		}
		writeReplayError(w, http.StatusBadRequest, "invalid_request", "unreadable request body")
		return
	}

	var last *bufferedResponse
	for attempt := 1; ; attempt++ {
		attemptReq := r.Clone(r.Context())
		attemptReq.Body = io.NopCloser(bytes.NewReader(credentials))
		attemptReq.ContentLength = int64(len(credentials))

		last = newBufferedResponse()
		l.next.ServeHTTP(last, attemptReq)
		if last.code() < http.StatusInternalServerError || attempt >= l.attempts {
			break
		}

		l.logger.Warn("login failed with server error, replaying", "path", r.URL.Path, "status", last.code(), "attempt", attempt, "maxAttempts", l.attempts)
		if !pause(r.Context(), l.backoff<<(attempt-1)) {
			return
		}
	}
	last.flushTo(w)
}

func readCredentials(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxReplayBody))
}

// pause waits for d and reports false when the client went away first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func writeReplayError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// bufferedResponse holds one attempt's response until it is known to be the
// one the client gets.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// Flush is a no-op; nothing leaves the buffer before flushTo.
func (b *bufferedResponse) Flush() {}

func (b *bufferedResponse) code() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	maps.Copy(w.Header(), b.header)
	w.WriteHeader(b.code())
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}
