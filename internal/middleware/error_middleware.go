package middleware

import (
	"errors"
	"net/http"

	"chat-sync/internal/transport/httpdto"
	chat_errors "chat-sync/pkg/errors"
	"chat-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, code := StatusFor(err)
		if status >= http.StatusInternalServerError && l != nil {
			l.WithContext(c.Request.Context()).Error("request error", zap.Error(err))
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
	}
}

// StatusFor maps engine errors onto HTTP statuses and response codes.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chat_errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, chat_errors.ErrNotFound), errors.Is(err, chat_errors.ErrUnknownReference):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, chat_errors.ErrNotPending):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, chat_errors.ErrPartialFailure):
		return http.StatusMultiStatus, "PARTIAL_FAILURE"
	case errors.Is(err, chat_errors.ErrEngineStopped), errors.Is(err, chat_errors.ErrTransportUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
