package httpdto

import (
	"chat-sync/internal/domain/conversation"
)

type ConversationListResponse struct {
	OpenConversationID string                       `json:"open_conversation_id,omitempty"`
	Conversations      []*conversation.Conversation `json:"conversations"`
}

type CreateGroupRequest struct {
	DisplayName  string   `json:"display_name" binding:"required"`
	Participants []string `json:"participants" binding:"required,min=1"`
}

type ParticipantsRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1"`
}

type EditGroupInfoRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}
