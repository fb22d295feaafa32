package guard

import "errors"

// ValidationError 用户输入不合法，拒绝并原样返回给调用方，不改动任何状态。
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError 构造输入校验错误。
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

// IsValidation 判断是否为输入校验错误。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrNotRegistered 用户尚未注册。
var ErrNotRegistered = errors.New("user not registered")
