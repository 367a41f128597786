package events

// Event type constants follow the format: domain.action

// Message events
const (
	EventTypeMessageCreated   = "message.created"
	EventTypeReplyCreated     = "message.reply_created"
	EventTypeStatusUpdated    = "message.status_updated"
	EventTypeMessageRecalled  = "message.recalled"
	EventTypeMessagePinned    = "message.pinned"
	EventTypeMessageUnpinned  = "message.unpinned"
	EventTypeMessageEdited    = "message.edited"
	EventTypeMessageForwarded = "message.forwarded"
)

// Reaction events
const (
	EventTypeReactionUpdated = "reaction.updated"
)

// Conversation and participant events
const (
	EventTypeGroupCreated        = "conversation.group_created"
	EventTypeGroupInfoEdited     = "conversation.info_edited"
	EventTypeParticipantsAdded   = "participant.added"
	EventTypeParticipantsRemoved = "participant.removed"
	EventTypeGroupLeft           = "participant.left"
)

// ErrorSuffix is appended to a command type to form its rejection event,
// e.g. "message.send.error".
const ErrorSuffix = ".error"

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeReaction     = "reaction"
	AggregateTypeConversation = "conversation"
	AggregateTypeParticipant  = "participant"
	AggregateTypeCommand      = "command"
)

// Pub/sub channel prefixes
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixUser         = "channel:user:"
	ChannelSystemCommands     = "channel:system:commands"
)
