package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aimlib/internal/auth"
	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
)

type mePayload struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func setSessionCookie(c *gin.Context, cfg config.Config, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.SessionCookie, token, int(cfg.SessionTTL.Seconds()), "/", "", cfg.CookieSecure, true)
}

func clearSessionCookie(c *gin.Context, cfg config.Config) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.SessionCookie, "", -1, "/", "", cfg.CookieSecure, true)
}

func MeHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleUser); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		c.JSON(http.StatusOK, Ok(mePayload{ID: ac.UserID, Name: ac.Name, Email: ac.Email, Role: ac.Role}, "ok"))
	})
}

// RefreshHandler 轮换会话 token，旧 token 立即失效。
func RefreshHandler(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleUser); err != nil {
			clearSessionCookie(c, cfg)
			respondError(c, store.Logger, err, "")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		token, err := store.Session.Issue(ctx, ac.UserID, cfg.SessionTTL)
		if err != nil {
			respondError(c, store.Logger, err, "刷新失败")
			return
		}
		if old := auth.TokenFromRequest(c, cfg.SessionCookie); old != "" {
			if err := store.Session.Revoke(ctx, old); err != nil {
				store.Logger.Warn("吊销旧会话失败", "user", ac.UserID, "err", err)
			}
		}
		setSessionCookie(c, cfg, token)
		store.Logger.Debug("刷新会话", "user", ac.UserID)
		c.JSON(http.StatusOK, Ok(gin.H{"token": token, "refreshed": true}, "刷新成功"))
	})
}

func LogoutHandler(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if token := auth.TokenFromRequest(c, cfg.SessionCookie); token != "" {
			ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			if err := store.Session.Revoke(ctx, token); err != nil {
				respondError(c, store.Logger, err, "退出失败")
				return
			}
		}
		clearSessionCookie(c, cfg)
		c.JSON(http.StatusOK, Ok(gin.H{"success": true}, "已退出"))
	})
}
