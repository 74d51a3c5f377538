package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"auctionhouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// 校验错误使用 JSON 字段名，便于前端定位。
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// Status 返回业务错误类别对应的 HTTP 状态码。
func Status(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindConflict:
		// 重复注册按 400 返回，与其它参数错误一致。
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error 把服务层错误写成 {"error": "..."} 并终止后续处理。
//
// 内部原因只进日志，不会出现在响应中。
func Error(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": service.ErrInternal.Message})
		return
	}
	if e.Kind == service.KindTooManyRequests {
		TooManyRequests(c, e.RetryAfter, e.Message)
		return
	}
	c.AbortWithStatusJSON(Status(e.Kind), gin.H{"error": e.Message})
}

// TooManyRequests 返回 429，并通过 Retry-After 头与 retry_after 字段告知等待秒数（至少 1 秒）。
func TooManyRequests(c *gin.Context, wait time.Duration, msg string) {
	if msg == "" {
		msg = service.ErrTooManyRequests.Message
	}
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       msg,
		"retry_after": seconds,
	})
}

// BadRequest 返回 400 与给定信息。
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// NumberError 表示请求体中的金额字段无法解析为十进制数。
type NumberError struct {
	Err error
}

func (e *NumberError) Error() string {
	return "invalid number: " + e.Err.Error()
}

func (e *NumberError) Unwrap() error { return e.Err }

// BindError 把请求绑定/校验失败转换为可读的 400 响应。
func BindError(c *gin.Context, err error) {
	BadRequest(c, BindMessage(err))
}

// BindMessage 返回绑定错误的可读描述。
func BindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return strings.Join(msgs, "; ")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var timeErr *time.ParseError
	var numErr *NumberError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is required"
	case errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &syntaxErr):
		return "malformed JSON body"
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("%s has an invalid type", typeErr.Field)
		}
		return "request body has an invalid type"
	case errors.As(err, &timeErr):
		return "dates must be RFC 3339 timestamps"
	case errors.As(err, &numErr):
		return "prices must be numbers"
	}
	return "invalid request body"
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "numeric":
		return field + " must contain only digits"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	}
	return field + " is invalid"
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
