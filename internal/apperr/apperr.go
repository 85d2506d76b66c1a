// Package apperr 定义跨包共享的错误分类，并把它们映射到 HTTP 状态码。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误分类。
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalid
)

// Error 带分类的哨兵错误，包内用 errors.Is 比较。
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// NotFound 构造 NotFound 类哨兵错误。
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }

// Conflict 构造 Conflict 类哨兵错误。
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Msg: msg} }

// Invalid 构造 ValidationError 类哨兵错误。
func Invalid(msg string) *Error { return &Error{Kind: KindInvalid, Msg: msg} }

// ValidationError 描述单个字段的输入错误。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Field 构造字段级校验错误。
func Field(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// KindOf 沿错误链查找分类，找不到时为 KindInternal。
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindInvalid
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus 将错误映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
