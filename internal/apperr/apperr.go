// Package apperr 定义接口层统一的错误分类，以及分类到 HTTP 状态码的映射。
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Msg: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Msg: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }

// Internal 包装存储/文件系统错误，msg 是对外展示的通用文案。
func Internal(msg string, err error) *Error { return &Error{Kind: KindInternal, Msg: msg, Err: err} }

// KindOf 非 *Error 的错误一律视为内部错误。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Status(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage 内部错误不向客户端暴露细节。
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}
