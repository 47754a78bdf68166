package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"tillsync/internal/core/apperror"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/session"
)

// SessionKey is the gin context key of the authenticated *session.Session.
const SessionKey = "session"

// Authenticator resolves a bearer token to the live till session.
type Authenticator interface {
	Authenticate(token string) (*session.Session, error)
}

// Auth requires a bearer token naming the active session and puts the
// session actor on the request context. EventSource clients cannot set
// headers, so the token may also come as ?access_token=.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		sess, err := auth.Authenticate(token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		actor := sess.Actor
		c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), &actor))
		c.Set(SessionKey, sess)
		c.Set("user_id", actor.UserID)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		t := c.Query("access_token")
		return t, t != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
