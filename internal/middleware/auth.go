package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aimlib/internal/apperr"
	"aimlib/internal/auth"
	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
	"aimlib/internal/server"
)

// AuthOptional 解析会话并写入 auth.Context；无会话或会话失效时按匿名处理。
func AuthOptional(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c, cfg.SessionCookie)
		if token == "" {
			c.Next()
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 3*time.Second)
		user, err := store.Session.GetUserByToken(ctx, token)
		cancel()
		if err != nil {
			store.Logger.Warn("解析会话失败", "err", err)
		}
		if user != nil {
			auth.Set(c, auth.FromUser(user))
		}
		c.Next()
	}
}

func AuthRequired() gin.HandlerFunc {
	return requireRole(model.RoleUser)
}

func AdminRequired() gin.HandlerFunc {
	return requireRole(model.RoleAdmin)
}

func requireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Require(auth.FromGin(c), role); err != nil {
			status := apperr.Status(apperr.KindOf(err))
			c.AbortWithStatusJSON(status, server.Fail[any](apperr.PublicMessage(err, http.StatusText(status)), status))
			return
		}
		c.Next()
	}
}
