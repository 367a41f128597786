package chat_errors

import "errors"

// Common errors
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrCommandRejected      = errors.New("command rejected")
	ErrUnknownReference     = errors.New("unknown reference")
	ErrPartialFailure       = errors.New("partial failure")
	ErrUnknownEvent         = errors.New("unknown event type")
	ErrEngineStopped        = errors.New("engine stopped")
	ErrNotPending           = errors.New("message is not pending")
)

// IsRetryable reports whether err leaves optimistic state in place for a later retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransportUnavailable)
}
