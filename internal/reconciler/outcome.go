package reconciler

type NoticeKind string

const (
	NoticeRejected       NoticeKind = "rejected"
	NoticePartialFailure NoticeKind = "partial_failure"
	NoticeRemoved        NoticeKind = "removed_from_conversation"
)

// Notice is a user-facing message produced while reconciling.
type Notice struct {
	Kind           NoticeKind `json:"kind"`
	CommandType    string     `json:"command_type,omitempty"`
	RequestID      string     `json:"request_id,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	FailedItems    []string   `json:"failed_items,omitempty"`
}

// Outcome tells the engine what an applied event requires beyond the store
// update itself.
type Outcome struct {
	Changed        bool
	Refresh        bool
	ClearSelection bool
	Dropped        bool
	Notices        []Notice
}
