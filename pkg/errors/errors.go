package errors

import (
	"errors"
	"fmt"
	"time"
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess   = 200
	CodeNoContent = 204
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam    = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeServerError     = 500
)

// Kind 错误分类
type Kind string

const (
	KindUnauthenticated       Kind = "unauthenticated"
	KindUnauthorized          Kind = "unauthorized"
	KindTenantContextMissing  Kind = "tenant_context_missing"
	KindNotFound              Kind = "not_found"
	KindValidationFailed      Kind = "validation_failed"
	KindRateLimited           Kind = "rate_limited"
	KindQuotaExceeded         Kind = "quota_exceeded"
	KindBotDetected           Kind = "bot_detected"
	KindInvalidTransition     Kind = "invalid_transition"
	KindDownstreamUnavailable Kind = "downstream_unavailable"
)

// AppError 业务错误，携带分类以及限流元数据
type AppError struct {
	Kind       Kind
	Message    string
	Field      string
	RetryAfter time.Duration
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	Err        error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按分类匹配，使 errors.Is(err, ErrNotFound) 对任意 NotFound 生效
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// 哨兵错误
var (
	ErrUnauthenticated       = &AppError{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrUnauthorized          = &AppError{Kind: KindUnauthorized, Message: "permission denied"}
	ErrTenantContextMissing  = &AppError{Kind: KindTenantContextMissing, Message: "no organization selected"}
	ErrNotFound              = &AppError{Kind: KindNotFound, Message: "not found"}
	ErrValidationFailed      = &AppError{Kind: KindValidationFailed, Message: "validation failed"}
	ErrRateLimited           = &AppError{Kind: KindRateLimited, Message: "too many requests"}
	ErrQuotaExceeded         = &AppError{Kind: KindQuotaExceeded, Message: "monthly lead limit reached, upgrade your plan"}
	ErrBotDetected           = &AppError{Kind: KindBotDetected, Message: "access denied"}
	ErrInvalidTransition     = &AppError{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrDownstreamUnavailable = &AppError{Kind: KindDownstreamUnavailable, Message: "downstream unavailable"}
)

// NotFound 某类实体不存在；跨租户访问同样返回该错误
func NotFound(entity string) *AppError {
	return &AppError{Kind: KindNotFound, Message: entity + " not found"}
}

// Validation 指定字段的校验失败
func Validation(field, reason string) *AppError {
	return &AppError{Kind: KindValidationFailed, Field: field, Message: reason}
}

// Unauthorized 缺少指定权限
func Unauthorized(permission string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: "missing permission " + permission}
}

// InvalidTransition 状态流转非法
func InvalidTransition(from, to string) *AppError {
	return &AppError{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot move from %s to %s", from, to)}
}

// RateLimited 限流拒绝
func RateLimited(limit, remaining int64, resetAt time.Time, retryAfter time.Duration) *AppError {
	return &AppError{
		Kind:       KindRateLimited,
		Message:    "too many requests",
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}
}

// QuotaExceeded 租户本月配额用尽
func QuotaExceeded(limit int64, resetAt time.Time) *AppError {
	return &AppError{
		Kind:       KindQuotaExceeded,
		Message:    "monthly lead limit reached, upgrade your plan",
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: time.Until(resetAt),
	}
}

// Downstream 包装外部协作方的失败
func Downstream(what string, err error) *AppError {
	return &AppError{Kind: KindDownstreamUnavailable, Message: what, Err: err}
}

// As 取出 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus 将错误分类映射为 HTTP 状态码
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return CodeServerError
	}
	switch appErr.Kind {
	case KindUnauthenticated:
		return CodeUnauthorized
	case KindUnauthorized, KindBotDetected:
		return CodeForbidden
	case KindTenantContextMissing, KindValidationFailed:
		return CodeInvalidParam
	case KindNotFound:
		return CodeNotFound
	case KindInvalidTransition:
		return CodeConflict
	case KindRateLimited, KindQuotaExceeded:
		return CodeTooManyRequests
	default:
		return CodeServerError
	}
}
