package service

import (
	"errors"
	"time"
)

// Kind 表示业务错误类别，HTTP 层据此选择状态码。
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindTooManyRequests
)

// Error 是服务层返回的业务错误。
type Error struct {
	Kind       Kind
	Message    string        // 对外展示的信息
	Err        error         // 内部原因，仅用于日志
	RetryAfter time.Duration // 仅 KindTooManyRequests 使用
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is 按类别与信息匹配哨兵错误。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// wrap 返回带内部原因的哨兵副本。
func wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// TooManyRequests 返回带重试间隔的限流错误。
func TooManyRequests(wait time.Duration) *Error {
	return &Error{Kind: KindTooManyRequests, Message: ErrTooManyRequests.Message, RetryAfter: wait}
}

// KindOf 返回错误类别，非 *Error 视为内部错误。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrEmailTaken          = newError(KindConflict, "email already registered")
	ErrUserNotFound        = newError(KindNotFound, "user not found")
	ErrInvalidCredentials  = newError(KindUnauthorized, "invalid email or password")
	ErrOTPAbsent           = newError(KindValidation, "no otp on file, request a new code")
	ErrOTPMismatch         = newError(KindValidation, "invalid otp code")
	ErrOTPExpired          = newError(KindValidation, "otp code expired, request a new code")
	ErrAlreadyVerified     = newError(KindValidation, "email already verified")
	ErrUnauthenticated     = newError(KindUnauthorized, "authentication required")
	ErrForbidden           = newError(KindForbidden, "insufficient permissions")
	ErrInvalidToken        = newError(KindUnauthorized, "invalid or expired token")
	ErrTooManyRequests     = newError(KindTooManyRequests, "too many requests")
	ErrRegisterFailed      = newError(KindInternal, "registration failed")
	ErrSendOTPFailed       = newError(KindInternal, "failed to send otp email")
	ErrInternal            = newError(KindInternal, "internal error")
	ErrInvalidProductID    = newError(KindValidation, "invalid product id")
	ErrProductNotFound     = newError(KindNotFound, "product not found")
	ErrNotOwner            = newError(KindUnauthorized, "only the owner can modify this product")
	ErrProductImmutable    = newError(KindValidation, "product can no longer be modified in its current status")
	ErrNotPending          = newError(KindValidation, "only pending products can be reviewed")
	ErrInvalidDecision     = newError(KindValidation, "status must be APPROVED or REJECTED")
	ErrInvalidDateRange    = newError(KindValidation, "endDate must be after startDate")
	ErrNegativePrice       = newError(KindValidation, "initialPrice must not be negative")
	ErrInvalidSort         = newError(KindValidation, "invalid sortBy field")
	ErrInvalidStatusFilter = newError(KindValidation, "invalid status filter")
)
