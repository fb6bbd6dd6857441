package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/polyglot-chat/polyglot-server/internal/auth"
	"github.com/polyglot-chat/polyglot-server/internal/common"
)

const UserIDKey = "user_id"

// AuthRequired rejects requests without a valid bearer token and stores the
// caller's user id on the context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing authorization header")
			c.Abort()
			return
		}

		tokenString := header
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			tokenString = header[7:]
		}

		uid, err := auth.ParseJWT(tokenString, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, uid)
		c.Next()
	}
}
