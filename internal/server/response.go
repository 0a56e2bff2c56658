package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"aimlib/internal/apperr"
	"aimlib/internal/auth"
)

type ApiResponse[T any] struct {
	Msg  string `json:"msg"`
	Data T      `json:"data"`
	Code int    `json:"code"`
}

func Ok[T any](data T, msg string) ApiResponse[T] {
	return ApiResponse[T]{Msg: msg, Data: data, Code: 200}
}

func Fail[T any](msg string, code int) ApiResponse[T] {
	return ApiResponse[T]{Msg: msg, Data: *new(T), Code: code}
}

// respondError 按错误分类写响应；内部错误只返回 fallback 文案并记录原因。
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)
	msg := fallback
	if kind == apperr.KindInternal {
		logger.Error(fallback, "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
	} else {
		msg = apperr.PublicMessage(err, fallback)
	}
	c.AbortWithStatusJSON(status, Fail[any](msg, status))
}

type authedHandler func(c *gin.Context, ac *auth.Context)

// withAuth 取出中间件解析好的身份上下文，显式传给 handler。
func withAuth(h authedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		h(c, auth.FromGin(c))
	}
}
