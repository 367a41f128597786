package handler

import (
	"net/http"

	"chat-sync/internal/store"
	"chat-sync/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// SyncHandler reports engine state that is not tied to one conversation.
type SyncHandler struct {
	engine Engine
}

func NewSyncHandler(engine Engine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

func (h *SyncHandler) Notices(c *gin.Context) {
	notices, err := h.engine.Notices(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"notices": notices}))
}

func (h *SyncHandler) Status(c *gin.Context) {
	n, err := h.engine.Outstanding(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.StatusResponse{Outstanding: n}))
}

func (h *SyncHandler) Retry(c *gin.Context) {
	if err := h.engine.Retry(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse[any](nil))
}

// Changes streams store changes as server-sent events until the client
// goes away. A client that falls behind misses changes and should refetch.
func (h *SyncHandler) Changes(c *gin.Context) {
	ctx := c.Request.Context()
	changes := make(chan store.Change, 64)
	cancel, err := h.engine.Subscribe(ctx, func(ch store.Change) {
		select {
		case changes <- ch:
		default:
		}
	})
	if err != nil {
		fail(c, err)
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-changes:
			c.SSEvent("change", ch)
			c.Writer.Flush()
		}
	}
}
