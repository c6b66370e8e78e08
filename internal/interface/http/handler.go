package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
	"github.com/efficiencynow/efficiencynow/internal/infra/config"
)

// Handler wires the HTTP transport to the auth service.
type Handler struct {
	authSvc auth.Service
	cookie  cookieSettings
	logger  *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, authSvc auth.Service, logger *slog.Logger) *Handler {
	return &Handler{
		authSvc: authSvc,
		cookie: cookieSettings{
			name:   cfg.Auth.SessionCookieName,
			maxAge: cfg.Auth.SessionCookieMaxAge,
			secure: cfg.Auth.SecureCookie,
		},
		logger: logger.With("component", "http.handler"),
	}
}

// Register creates an account and mirrors it into the user index.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	user, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login authenticates the caller and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Authenticate(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	h.cookie.set(c, resp.Token)
	c.JSON(http.StatusOK, resp)
}

// Profile returns the identity bound to the session.
func (h *Handler) Profile(c *gin.Context) {
	user, ok := getIdentity(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout revokes the session and clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	token, ok := sessionToken(c, h.cookie.name)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "no session token provided", nil))
		return
	}
	err := h.authSvc.Logout(c.Request.Context(), token)
	h.cookie.clear(c)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// RemoveUser deletes the caller's own account.
func (h *Handler) RemoveUser(c *gin.Context) {
	user, ok := getIdentity(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		return
	}
	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	if email != user.Email {
		abortWithError(c, NewHTTPError(http.StatusForbidden, "forbidden", "cannot remove another user", nil))
		return
	}
	if err := h.authSvc.RemoveUser(c.Request.Context(), email); err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	h.cookie.clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "user removed"})
}

// Stats reports the user index and session table sizes.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.authSvc.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health is a liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
