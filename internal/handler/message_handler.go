package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"chat-sync/internal/domain/message"
	"chat-sync/internal/optimistic"
	"chat-sync/internal/transport/httpdto"
	chat_errors "chat-sync/pkg/errors"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	engine Engine
}

func NewMessageHandler(engine Engine) *MessageHandler {
	return &MessageHandler{engine: engine}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	conversationID := c.Param("id")
	if req.ReplyToMessageID != "" {
		submit(c, h.engine, optimistic.Reply{ConversationID: conversationID, Content: req.Content, ReplyToMessageID: req.ReplyToMessageID})
		return
	}
	submit(c, h.engine, optimistic.Send{ConversationID: conversationID, Content: req.Content})
}

// SendMedia accepts a multipart form with one or more "files" parts and an
// optional "caption".
func (h *MessageHandler) SendMedia(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		badRequest(c)
		return
	}

	headers := form.File["files"]
	files := make([]message.File, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			fail(c, fmt.Errorf("open %s: %w", fh.Filename, chat_errors.ErrInvalidInput))
			return
		}
		opened = append(opened, f)
		files = append(files, message.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	res, err := h.engine.SendMedia(c.Request.Context(), c.Param("id"), c.PostForm("caption"), files)
	if err != nil {
		fail(c, err)
		return
	}

	out := httpdto.MediaResponse{Failed: res.Failed}
	for _, cmd := range res.Commands {
		out.Commands = append(out.Commands, httpdto.FromCommand(cmd))
	}
	status := http.StatusAccepted
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, httpdto.NewSuccessResponse(out))
}

func (h *MessageHandler) React(c *gin.Context) {
	var req httpdto.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.React{MessageID: c.Param("id"), Emoji: req.Emoji})
}

func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	submit(c, h.engine, optimistic.RemoveReaction{MessageID: c.Param("id"), Emoji: c.Param("emoji")})
}

func (h *MessageHandler) Recall(c *gin.Context) {
	var req httpdto.RecallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if req.Scope == message.RecallNone {
		req.Scope = message.RecallEveryone
	}
	submit(c, h.engine, optimistic.Recall{MessageID: c.Param("id"), Scope: req.Scope})
}

func (h *MessageHandler) Pin(c *gin.Context) {
	var req httpdto.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.Pin{MessageID: c.Param("id"), Pinned: *req.Pinned})
}

func (h *MessageHandler) Edit(c *gin.Context) {
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.Edit{MessageID: c.Param("id"), Content: req.Content})
}

func (h *MessageHandler) Forward(c *gin.Context) {
	var req httpdto.ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.Forward{MessageID: c.Param("id"), Targets: req.TargetConversationIDs})
}
