// Package handler exposes the sync engine to a local UI over HTTP.
package handler

import (
	"context"
	"net/http"

	"chat-sync/internal/commands"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/engine"
	"chat-sync/internal/middleware"
	"chat-sync/internal/optimistic"
	"chat-sync/internal/reconciler"
	"chat-sync/internal/store"
	"chat-sync/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// Engine is the part of *engine.Engine the HTTP surface drives.
type Engine interface {
	Conversations(ctx context.Context) (engine.Snapshot, error)
	Messages(ctx context.Context, conversationID string) ([]*message.Message, error)
	Notices(ctx context.Context) ([]reconciler.Notice, error)
	Outstanding(ctx context.Context) (int, error)
	Subscribe(ctx context.Context, fn func(store.Change)) (func(), error)

	Open(ctx context.Context, conversationID string) error
	Close(ctx context.Context) error
	Submit(ctx context.Context, action optimistic.Action) (commands.Command, error)
	Retry(ctx context.Context, requestID string) error
	Typing(ctx context.Context, conversationID string) error
	StopTyping(ctx context.Context) error
	SendMedia(ctx context.Context, conversationID, caption string, files []message.File) (engine.MediaResult, error)
}

var _ Engine = (*engine.Engine)(nil)

func fail(c *gin.Context, err error) {
	status, code := middleware.StatusFor(err)
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
}

// submit runs action and answers with the issued command.
func submit(c *gin.Context, eng Engine, action optimistic.Action) {
	cmd, err := eng.Submit(c.Request.Context(), action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(httpdto.FromCommand(cmd)))
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
