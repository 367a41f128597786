package message

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusSeen      Status = "SEEN"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Advance returns the status after observing next. Status never moves backwards.
func (s Status) Advance(next Status) (Status, bool) {
	if next.rank() > s.rank() {
		return next, true
	}
	return s, false
}
