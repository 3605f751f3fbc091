package httpapi

// Result 统一响应包装
// - code: 2000 success
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultValidation input rejected before any store access (shown as a warning)
	ResultValidation = 40001
	// ResultUnauthorized missing staff identity headers (HTTP 401)
	ResultUnauthorized = 40101
	// ResultConflict decided by someone else, or already in flight
	ResultConflict = 40901
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

// OkMessage is Ok with a user-facing success message.
func OkMessage[T any](message string, result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: message, Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func Warn(message string) Result[any] {
	return Result[any]{Code: ResultValidation, Type: "warning", Message: message, Result: nil}
}

func Conflict(message string) Result[any] {
	return Result[any]{Code: ResultConflict, Type: "error", Message: message, Result: nil}
}

func Unauthorized(message string) Result[any] {
	return Result[any]{Code: ResultUnauthorized, Type: "error", Message: message, Result: nil}
}
