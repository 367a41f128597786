package optimistic

import "chat-sync/internal/domain/message"

// Action is a user intent the buffer turns into a local change plus a command.
type Action interface {
	isAction()
}

type Send struct {
	ConversationID string
	Content        string
}

type Reply struct {
	ConversationID   string
	Content          string
	ReplyToMessageID string
}

// SendMedia sends one already uploaded file. Caption defaults to the file name.
type SendMedia struct {
	ConversationID string
	Media          message.Media
	Caption        string
}

type React struct {
	MessageID string
	Emoji     string
}

type RemoveReaction struct {
	MessageID string
	Emoji     string
}

type Recall struct {
	MessageID string
	Scope     message.RecallScope
}

type Pin struct {
	MessageID string
	Pinned    bool
}

type Edit struct {
	MessageID string
	Content   string
}

type Forward struct {
	MessageID string
	Targets   []string
}

type CreateGroup struct {
	DisplayName  string
	Participants []string
}

type AddParticipants struct {
	ConversationID string
	UserIDs        []string
}

type RemoveParticipants struct {
	ConversationID string
	UserIDs        []string
}

type LeaveGroup struct {
	ConversationID string
}

type EditGroupInfo struct {
	ConversationID string
	DisplayName    string
}

func (Send) isAction()               {}
func (Reply) isAction()              {}
func (SendMedia) isAction()          {}
func (React) isAction()              {}
func (RemoveReaction) isAction()     {}
func (Recall) isAction()             {}
func (Pin) isAction()                {}
func (Edit) isAction()               {}
func (Forward) isAction()            {}
func (CreateGroup) isAction()        {}
func (AddParticipants) isAction()    {}
func (RemoveParticipants) isAction() {}
func (LeaveGroup) isAction()         {}
func (EditGroupInfo) isAction()      {}
