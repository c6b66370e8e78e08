package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
	"github.com/efficiencynow/efficiencynow/internal/infra/config"
	"github.com/efficiencynow/efficiencynow/internal/infra/credential"
	"github.com/efficiencynow/efficiencynow/internal/infra/sessionstore"
	"github.com/efficiencynow/efficiencynow/internal/infra/userrepo"
	"github.com/efficiencynow/efficiencynow/pkg/metrics"
)

const registerBody = `{"name":"Una User","email":"u@x.com","password":"Secret1!"}`

func TestRouter_RegisterAndDuplicate(t *testing.T) {
	server := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodPost, "/users/register", registerBody, "")
	require.Equal(t, http.StatusCreated, recorder.Code)
	var view auth.UserView
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &view))
	require.Equal(t, "u@x.com", view.Email)
	require.NotContains(t, recorder.Body.String(), "password")

	recorder = performRequest(server, http.MethodPost, "/users/register", registerBody, "")
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, auth.CodeEmailExists, decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_RegisterValidation(t *testing.T) {
	server := newRouterUnderTest(t, nil)

	recorder := performRequest(server, http.MethodPost, "/users/register", `{"name":"Al","email":"a@x.com","password":"Secret1!"}`, "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	recorder = performRequest(server, http.MethodPost, "/users/register", `{"name":"Alice","email":"a@x.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, auth.CodeInvalidInput, decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_LoginProfileLogout(t *testing.T) {
	server := newRouterUnderTest(t, nil)
	require.Equal(t, http.StatusCreated, performRequest(server, http.MethodPost, "/users/register", registerBody, "").Code)

	recorder := performRequest(server, http.MethodPost, "/users/login", `{"email":"u@x.com","password":"Secret1!"}`, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	cookie := sessionCookie(t, recorder)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, 7*24*60*60, cookie.MaxAge)

	var login auth.LoginResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &login))
	require.Equal(t, cookie.Value, login.Token)

	recorder = performRequest(server, http.MethodGet, "/users/profile", "", cookie.Value)
	require.Equal(t, http.StatusOK, recorder.Code)
	var profile auth.UserView
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &profile))
	require.Equal(t, "Una User", profile.Name)

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	recorder = performRequest(server, http.MethodPost, "/users/logout", "", cookie.Value)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, -1, sessionCookie(t, recorder).MaxAge)

	recorder = performRequest(server, http.MethodPost, "/users/logout", "", cookie.Value)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, auth.CodeInvalidSession, decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	recorder = performRequest(server, http.MethodGet, "/users/profile", "", cookie.Value)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.NotEmpty(t, recorder.Header().Get("WWW-Authenticate"))
}

func TestRouter_LogoutWithoutToken(t *testing.T) {
	server := newRouterUnderTest(t, nil)
	recorder := performRequest(server, http.MethodPost, "/users/logout", "", "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_LoginFailuresAreUniform(t *testing.T) {
	server := newRouterUnderTest(t, nil)
	require.Equal(t, http.StatusCreated, performRequest(server, http.MethodPost, "/users/register", registerBody, "").Code)

	unknown := performRequest(server, http.MethodPost, "/users/login", `{"email":"nobody@x.com","password":"anything"}`, "")
	wrong := performRequest(server, http.MethodPost, "/users/login", `{"email":"u@x.com","password":"wrongpass"}`, "")

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.JSONEq(t, unknown.Body.String(), wrong.Body.String())
	require.Empty(t, unknown.Result().Cookies())
}

func TestRouter_RemoveUser(t *testing.T) {
	server := newRouterUnderTest(t, nil)
	require.Equal(t, http.StatusCreated, performRequest(server, http.MethodPost, "/users/register", registerBody, "").Code)
	require.Equal(t, http.StatusCreated, performRequest(server, http.MethodPost, "/users/register", `{"name":"Other","email":"o@x.com","password":"Secret1!"}`, "").Code)

	token := sessionCookie(t, performRequest(server, http.MethodPost, "/users/login", `{"email":"u@x.com","password":"Secret1!"}`, "")).Value

	recorder := performRequest(server, http.MethodDelete, "/users/o@x.com", "", token)
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = performRequest(server, http.MethodDelete, "/users/U@x.com", "", token)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(server, http.MethodPost, "/users/login", `{"email":"u@x.com","password":"Secret1!"}`, "")
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, auth.CodeInvalidCredentials, decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	recorder = performRequest(server, http.MethodGet, "/users/profile", "", token)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRouter_Stats(t *testing.T) {
	server := newRouterUnderTest(t, nil)
	require.Equal(t, http.StatusCreated, performRequest(server, http.MethodPost, "/users/register", registerBody, "").Code)
	token := sessionCookie(t, performRequest(server, http.MethodPost, "/users/login", `{"email":"u@x.com","password":"Secret1!"}`, "")).Value

	require.Equal(t, http.StatusUnauthorized, performRequest(server, http.MethodGet, "/internal/stats", "", "").Code)

	recorder := performRequest(server, http.MethodGet, "/internal/stats", "", token)
	require.Equal(t, http.StatusOK, recorder.Code)
	var stats metrics.IndexStats
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &stats))
	require.Equal(t, metrics.IndexStats{Users: 1, TreeHeight: 1, LiveSessions: 1}, stats)
}

func TestRouter_RateLimit(t *testing.T) {
	server := newRouterUnderTest(t, func(cfg *config.Config) {
		cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	})
	for range 2 {
		require.Equal(t, http.StatusOK, performRequest(server, http.MethodGet, "/healthz", "", "").Code)
	}
	recorder := performRequest(server, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.NotEmpty(t, recorder.Header().Get("Retry-After"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/users/login", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func performRequest(server *http.Server, method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "SESSION", Value: token})
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, mutate func(*config.Config)) *http.Server {
	t.Helper()
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:        ":0",
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			AllowedOrigins: []string{"https://app.example"},
		},
		Auth: config.AuthConfig{
			SessionCookieName:   "SESSION",
			SessionCookieMaxAge: 7 * 24 * time.Hour,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger := newTestLogger()
	svc := auth.NewService(
		userrepo.NewMemoryRepository(),
		auth.NewUserIndex(),
		sessionstore.NewMemoryStore(4, 0),
		credential.NewBcryptHasher(bcrypt.MinCost),
		logger,
	)
	return NewRouter(cfg, NewHandler(cfg, svc, logger))
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "SESSION" {
			return c
		}
	}
	require.FailNow(t, "session cookie not set")
	return nil
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
