package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"go_ticketbot/internal/auth"
	"go_ticketbot/internal/httpx"
)

// AuthRequired validates the JWT bearer token and checks that its session
// has not been revoked.
func AuthRequired(sessions *auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httpx.FailErr(c, httpx.ErrUnauthorized("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				httpx.FailErr(c, httpx.ErrInvalidToken("token expired"))
			} else {
				httpx.FailErr(c, httpx.ErrInvalidToken("invalid token"))
			}
			c.Abort()
			return
		}

		valid, err := sessions.Valid(c.Request.Context(), claims.SessionID)
		if err != nil {
			httpx.FailErr(c, httpx.ErrInternalError("failed to validate session", err))
			c.Abort()
			return
		}
		if !valid {
			httpx.FailErr(c, httpx.ErrInvalidToken("session revoked"))
			c.Abort()
			return
		}

		c.Set("session_id", claims.SessionID)
		c.Next()
	}
}
