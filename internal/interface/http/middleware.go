package http

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/efficiencynow/efficiencynow/internal/infra/config"
)

func errorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		httpErr := asHTTPError(c.Errors.Last().Err)
		message := httpErr.Message
		if message == "" {
			message = httpErr.Error()
		}

		if httpErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		} else {
			logger.Warn("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path)
		}
		if httpErr.Status == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", `Bearer realm="efficiencynow"`)
		}

		c.JSON(httpErr.Status, gin.H{
			"error": gin.H{
				"code":    httpErr.Code,
				"message": message,
			},
		})
	}
}

func rateLimitMiddleware(cfg config.RateLimitConfig, logger *slog.Logger) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPRateLimiter(cfg, time.Now)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		wait, ok := limiter.allow(ip)
		if ok {
			c.Next()
			return
		}
		logger.Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		abortWithError(c, NewHTTPError(http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests", nil))
	}
}

// ipRateLimiter is a token bucket per client IP. Login and register share the
// bucket so password guessing is throttled along with everything else.
type ipRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	perSecond   float64
	burst       float64
	idleTTL     time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

func newIPRateLimiter(cfg config.RateLimitConfig, now func() time.Time) *ipRateLimiter {
	return &ipRateLimiter{
		visitors:  make(map[string]*visitor),
		perSecond: float64(cfg.RequestsPerMinute) / 60,
		burst:     float64(cfg.Burst),
		idleTTL:   5 * time.Minute,
		now:       now,
	}
}

// allow consumes a token for ip. When none is left it returns how long until
// the next one is available.
func (l *ipRateLimiter) allow(ip string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: l.burst, lastSeen: now}
		l.visitors[ip] = v
	} else if elapsed := now.Sub(v.lastSeen).Seconds(); elapsed > 0 {
		v.tokens = math.Min(l.burst, v.tokens+elapsed*l.perSecond)
		v.lastSeen = now
	}
	if now.Sub(l.lastCleanup) > l.idleTTL {
		l.cleanupLocked(now)
	}
	if v.tokens < 1 {
		missing := 1 - v.tokens
		return time.Duration(missing / l.perSecond * float64(time.Second)), false
	}
	v.tokens--
	return 0, true
}

func (l *ipRateLimiter) cleanupLocked(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, ip)
		}
	}
	l.lastCleanup = now
}
