package message

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeText             Type = "TEXT"
	TypeMedia            Type = "MEDIA"
	TypeReply            Type = "REPLY"
	TypeSystem           Type = "SYSTEM"
	TypeSystemReaction   Type = "SYSTEM_REACTION"
	TypeSystemMembership Type = "SYSTEM_MEMBERSHIP"
)

// IsSystem reports whether t is one of the SYSTEM kinds.
func (t Type) IsSystem() bool {
	return t == TypeSystem || t == TypeSystemReaction || t == TypeSystemMembership
}

type RecallScope string

const (
	RecallNone     RecallScope = ""
	RecallSelf     RecallScope = "self"
	RecallEveryone RecallScope = "everyone"
)

func (s RecallScope) Valid() bool {
	return s == RecallSelf || s == RecallEveryone
}

// Media describes an uploaded attachment as returned by the upload collaborator.
type Media struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// Message is the local view of a chat message, pending or authoritative.
type Message struct {
	ID               string      `json:"id"`
	ClientMessageID  string      `json:"client_message_id,omitempty"`
	ConversationID   string      `json:"conversation_id"`
	SenderID         string      `json:"sender_id"`
	Content          string      `json:"content"`
	CreatedAt        time.Time   `json:"created_at"`
	Type             Type        `json:"type"`
	Status           Status      `json:"status"`
	Reactions        Reactions   `json:"reactions,omitempty"`
	Pinned           bool        `json:"pinned"`
	Recalled         RecallScope `json:"recalled,omitempty"`
	ReplyToMessageID string      `json:"reply_to_message_id,omitempty"`
	Edited           bool        `json:"edited"`
	Forwarded        bool        `json:"forwarded"`
	Media            *Media      `json:"media,omitempty"`
	Retryable        bool        `json:"retryable,omitempty"`
}

// IsPending reports whether the message is still a local placeholder.
func (m *Message) IsPending() bool {
	return m.Status == StatusPending && IsProvisional(m.ID)
}

// Clone returns a deep copy so callers can't alias store internals.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Reactions = m.Reactions.Clone()
	if m.Media != nil {
		media := *m.Media
		out.Media = &media
	}
	return &out
}

const provisionalPrefix = "local-"

// NewProvisionalID returns an id that can never collide with a server id.
func NewProvisionalID() string {
	return provisionalPrefix + uuid.NewString()
}

func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

// File is a local attachment waiting to be uploaded.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
