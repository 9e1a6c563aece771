package apierr

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ===== エラーモデル（attendance / justification / report 共通） =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeWindowClosed    Code = "WINDOW_CLOSED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeDependency      Code = "DEPENDENCY"
	CodePartialFailure  Code = "PARTIAL_FAILURE"
	CodeInternal        Code = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is: Code で比較する。メッセージが何でも errors.Is(err, apierr.ErrNotFound) が通る
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code && t.Message == ""
	}
	return false
}

// 比較用の番兵。メッセージを持たないので Code だけで一致する
var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrWindowClosed    = &Error{Code: CodeWindowClosed}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrConflict        = &Error{Code: CodeConflict}
	ErrDependency      = &Error{Code: CodeDependency}
	ErrPartialFailure  = &Error{Code: CodePartialFailure}
)

func Invalid(msg string) *Error      { return &Error{Code: CodeInvalidArgument, Message: msg} }
func WindowClosed(msg string) *Error { return &Error{Code: CodeWindowClosed, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Code: CodeNotFound, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Code: CodeConflict, Message: msg} }
func Internal(msg string) *Error     { return &Error{Code: CodeInternal, Message: msg} }

// Dependency: DB / 証拠ストアの失敗を包む。クライアントには中身を見せない
func Dependency(cause error) *Error {
	return &Error{Code: CodeDependency, Message: "storage unavailable", cause: cause}
}

func PartialFailure(msg string, cause error) *Error {
	return &Error{Code: CodePartialFailure, Message: msg, cause: cause}
}

// Wrap: *Error はそのまま、それ以外は Dependency にする
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Dependency(err)
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument, CodeWindowClosed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func Body(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

// Respond: err を JSON で返す。原因はログにだけ残す
func Respond(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, Body(CodeInternal, "internal error"))
		return
	}
	if e.cause != nil {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), e)
	}
	c.JSON(ToHTTPStatus(e), Body(e.Code, e.Message))
}
