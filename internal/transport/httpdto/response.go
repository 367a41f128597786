package httpdto

// Response is the envelope every local API endpoint answers with. Code is a
// stable machine-readable reason set only on failures.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse builds a failed envelope; code is one of the values
// middleware.StatusFor returns, or a handler-specific one like "UNAUTHORIZED".
func NewErrorResponse(message string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   message,
		Code:    code,
	}
}
