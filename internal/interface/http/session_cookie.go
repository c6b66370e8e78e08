package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type cookieSettings struct {
	name   string
	maxAge time.Duration
	secure bool
}

func (s cookieSettings) set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, token, int(s.maxAge/time.Second), "/", "", s.secure || c.Request.TLS != nil, true)
}

func (s cookieSettings) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, "", -1, "/", "", s.secure || c.Request.TLS != nil, true)
}
