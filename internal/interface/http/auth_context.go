package http

import (
	"github.com/gin-gonic/gin"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
)

const identityKey = "auth_identity"

func setIdentity(c *gin.Context, user auth.UserView) {
	c.Set(identityKey, user)
}

func getIdentity(c *gin.Context) (auth.UserView, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return auth.UserView{}, false
	}
	user, ok := value.(auth.UserView)
	return user, ok
}
