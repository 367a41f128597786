package handler

import (
	"net/http"

	"chat-sync/internal/optimistic"
	"chat-sync/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	engine Engine
}

func NewConversationHandler(engine Engine) *ConversationHandler {
	return &ConversationHandler{engine: engine}
}

func (h *ConversationHandler) List(c *gin.Context) {
	snap, err := h.engine.Conversations(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConversationListResponse{
		OpenConversationID: snap.OpenID,
		Conversations:      snap.Conversations,
	}))
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.engine.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": msgs}))
}

func (h *ConversationHandler) Open(c *gin.Context) {
	if err := h.engine.Open(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

func (h *ConversationHandler) Close(c *gin.Context) {
	if err := h.engine.Close(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

func (h *ConversationHandler) Typing(c *gin.Context) {
	if err := h.engine.Typing(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

func (h *ConversationHandler) StopTyping(c *gin.Context) {
	if err := h.engine.StopTyping(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.CreateGroup{DisplayName: req.DisplayName, Participants: req.Participants})
}

func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	var req httpdto.ParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.AddParticipants{ConversationID: c.Param("id"), UserIDs: req.UserIDs})
}

func (h *ConversationHandler) RemoveParticipants(c *gin.Context) {
	var req httpdto.ParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.RemoveParticipants{ConversationID: c.Param("id"), UserIDs: req.UserIDs})
}

func (h *ConversationHandler) Leave(c *gin.Context) {
	submit(c, h.engine, optimistic.LeaveGroup{ConversationID: c.Param("id")})
}

func (h *ConversationHandler) EditInfo(c *gin.Context) {
	var req httpdto.EditGroupInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	submit(c, h.engine, optimistic.EditGroupInfo{ConversationID: c.Param("id"), DisplayName: req.DisplayName})
}
