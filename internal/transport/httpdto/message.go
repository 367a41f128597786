package httpdto

import (
	"chat-sync/internal/commands"
	"chat-sync/internal/domain/message"
)

type SendMessageRequest struct {
	Content          string `json:"content" binding:"required"`
	ReplyToMessageID string `json:"reply_to_message_id"`
}

type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type RecallRequest struct {
	Scope message.RecallScope `json:"scope"`
}

type PinRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ForwardRequest struct {
	TargetConversationIDs []string `json:"target_conversation_ids" binding:"required,min=1"`
}

// CommandResponse reports the command an accepted action issued.
type CommandResponse struct {
	CommandType string `json:"command_type"`
	RequestID   string `json:"request_id"`
}

func FromCommand(cmd commands.Command) CommandResponse {
	return CommandResponse{CommandType: cmd.CommandType(), RequestID: cmd.IdempotencyKey()}
}

type MediaResponse struct {
	Commands []CommandResponse `json:"commands"`
	Failed   []string          `json:"failed,omitempty"`
}

type StatusResponse struct {
	Outstanding int `json:"outstanding"`
}
