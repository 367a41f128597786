package commands

type CreateGroupCommand struct {
	RequestID    string   `json:"-"`
	DisplayName  string   `json:"display_name"`
	Participants []string `json:"participants"`
}

func (CreateGroupCommand) CommandType() string { return TypeCreateGroup }

func (c CreateGroupCommand) Validate() error {
	if c.DisplayName == "" {
		return invalid("display_name")
	}
	if len(c.Participants) == 0 {
		return invalid("participants")
	}
	return nil
}

func (c CreateGroupCommand) IdempotencyKey() string { return c.RequestID }

// ParticipantsCommand covers participant.add and participant.remove.
type ParticipantsCommand struct {
	RequestID      string   `json:"-"`
	ConversationID string   `json:"conversation_id"`
	UserIDs        []string `json:"user_ids"`
	Remove         bool     `json:"-"`
}

func (c ParticipantsCommand) CommandType() string {
	if c.Remove {
		return TypeRemoveParticipants
	}
	return TypeAddParticipants
}

func (c ParticipantsCommand) Validate() error {
	if c.ConversationID == "" {
		return invalid("conversation_id")
	}
	if len(c.UserIDs) == 0 {
		return invalid("user_ids")
	}
	return nil
}

func (c ParticipantsCommand) IdempotencyKey() string { return c.RequestID }

type LeaveGroupCommand struct {
	RequestID      string `json:"-"`
	ConversationID string `json:"conversation_id"`
}

func (LeaveGroupCommand) CommandType() string { return TypeLeaveGroup }

func (c LeaveGroupCommand) Validate() error {
	if c.ConversationID == "" {
		return invalid("conversation_id")
	}
	return nil
}

func (c LeaveGroupCommand) IdempotencyKey() string { return c.RequestID }

type EditGroupInfoCommand struct {
	RequestID      string `json:"-"`
	ConversationID string `json:"conversation_id"`
	DisplayName    string `json:"display_name"`
}

func (EditGroupInfoCommand) CommandType() string { return TypeEditGroupInfo }

func (c EditGroupInfoCommand) Validate() error {
	if c.ConversationID == "" {
		return invalid("conversation_id")
	}
	if c.DisplayName == "" {
		return invalid("display_name")
	}
	return nil
}

func (c EditGroupInfoCommand) IdempotencyKey() string { return c.RequestID }

// TypingCommand covers typing.start and typing.stop. Typing signals are
// fire-and-forget and carry no request id.
type TypingCommand struct {
	ConversationID string `json:"conversation_id"`
	Started        bool   `json:"-"`
}

func (c TypingCommand) CommandType() string {
	if c.Started {
		return TypeTypingStart
	}
	return TypeTypingStop
}

func (c TypingCommand) Validate() error {
	if c.ConversationID == "" {
		return invalid("conversation_id")
	}
	return nil
}

func (TypingCommand) IdempotencyKey() string { return "" }
