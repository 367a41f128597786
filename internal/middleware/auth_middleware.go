package middleware

import (
	"context"
	"net/http"

	"chat-sync/internal/auth"
	"chat-sync/internal/transport/httpdto"
	"chat-sync/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware admits only bearer tokens minted for userID, the user the
// engine syncs for.
func AuthMiddleware(issuer *auth.Issuer, userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken("", c.GetHeader("Authorization"))
		claims, err := issuer.Parse(token)
		if err != nil || claims.UserID != userID {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), logger.UserIdKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
