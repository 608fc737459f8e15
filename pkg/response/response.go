package response

import (
	"math"
	"net/http"
	"strconv"

	"leadflow/pkg/errors"
	"leadflow/pkg/pagination"

	"github.com/gin-gonic/gin"
)

// Response 统一返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ========== 基础返回方法 ==========

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 成功返回（自定义消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessWithPage 分页成功返回
func SuccessWithPage(c *gin.Context, data interface{}, pageInfo *pagination.PageInfo) {
	c.JSON(http.StatusOK, gin.H{
		"code":      errors.CodeSuccess,
		"message":   "success",
		"data":      data,
		"page_info": pageInfo,
	})
}

// NoContent 204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error 通用错误返回，code 同时作为 HTTP 状态码
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// FromError 根据错误分类写出响应，限流类错误附带 Retry-After 与 X-RateLimit-* 头
func FromError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	appErr, ok := errors.As(err)
	if !ok {
		ServerError(c, "internal server error")
		return
	}

	if appErr.Kind == errors.KindRateLimited || appErr.Kind == errors.KindQuotaExceeded {
		SetRateLimitHeaders(c, appErr.Limit, appErr.Remaining, appErr.ResetAt.Unix())
		retry := int64(math.Ceil(appErr.RetryAfter.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retry, 10))
		c.JSON(status, gin.H{
			"code":        status,
			"message":     appErr.Message,
			"retry_after": retry,
			"remaining":   appErr.Remaining,
		})
		return
	}

	message := appErr.Message
	if appErr.Field != "" {
		c.JSON(status, gin.H{
			"code":    status,
			"message": message,
			"field":   appErr.Field,
		})
		return
	}
	if status == errors.CodeServerError {
		message = "internal server error"
	}
	Error(c, status, message)
}

// SetRateLimitHeaders 写出 X-RateLimit-* 头
func SetRateLimitHeaders(c *gin.Context, limit, remaining, resetUnix int64) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetUnix, 10))
}

// ========== HTTP错误快捷方法 ==========

func BadRequest(c *gin.Context, message string) {
	Error(c, errors.CodeInvalidParam, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, errors.CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, errors.CodeForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, errors.CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, errors.CodeServerError, message)
}
