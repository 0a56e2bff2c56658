package server

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aimlib/internal/apperr"
	"aimlib/internal/auth"
	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
)

type adminConfigItem struct {
	Key    string  `json:"key"`
	Value  string  `json:"value"` // 运行中的值
	Source string  `json:"source"` // db/env/default
	DB     *string `json:"dbValue,omitempty"`
	// 已保存但尚未生效，需重启
	RestartRequired bool `json:"restartRequired"`
}

type adminUpsertConfigPayload struct {
	AppConfig map[string]*string `json:"appConfig"`
}

type adminDashboardStats struct {
	Resources  []db.TypeCount `json:"resources"`
	TotalLikes int64          `json:"totalLikes"`
	TotalUsers int64          `json:"totalUsers"`
}

// 配置里含 S3 密钥，回显时打码。
func maskSecret(key, value string) string {
	if value == "" || !strings.Contains(key, "SECRET") {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

// AdminGetConfigHandler cfg 是启动时 Sync 后的快照，与 DB 不一致的项标记为待重启。
func AdminGetConfigHandler(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbItems, err := store.AppConfig.GetConfigs(ctx)
		if err != nil {
			respondError(c, store.Logger, err, "读取配置失败")
			return
		}

		keys := config.AppConfigKeys()
		items := make([]adminConfigItem, 0, len(keys))
		for _, key := range keys {
			val, _ := cfg.GetAppConfigValue(key)

			item := adminConfigItem{Key: key, Value: maskSecret(key, val), Source: "default"}
			if dbv, ok := dbItems[key]; ok {
				masked := maskSecret(key, dbv)
				item.Source = "db"
				item.DB = &masked
				item.RestartRequired = !sameConfigValue(cfg, key, dbv, val)
			} else if os.Getenv(key) != "" {
				item.Source = "env"
			}
			items = append(items, item)
		}

		c.JSON(http.StatusOK, Ok(gin.H{"items": items}, "ok"))
	})
}

// sameConfigValue 按字段类型比较，"TRUE" 与 "true" 视为相同。
func sameConfigValue(cfg config.Config, key, stored, running string) bool {
	if !cfg.SetAppConfigValue(key, stored) {
		return false
	}
	parsed, _ := cfg.GetAppConfigValue(key)
	return parsed == running
}

// AdminUpsertConfigHandler 只写数据库，新配置在服务重启后生效。
func AdminUpsertConfigHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		var req adminUpsertConfigPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, store.Logger, apperr.Validation("参数错误"), "")
			return
		}
		if len(req.AppConfig) == 0 {
			respondError(c, store.Logger, apperr.Validation("缺少配置项"), "")
			return
		}
		for key := range req.AppConfig {
			if !config.IsAppConfigKey(key) {
				respondError(c, store.Logger, apperr.Validation("配置项不在白名单中"), "")
				return
			}
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 8*time.Second)
		defer cancel()

		for key, value := range req.AppConfig {
			if value == nil {
				continue
			}
			key = strings.ToUpper(strings.TrimSpace(key))
			if err := store.AppConfig.SetConfig(ctx, key, *value); err != nil {
				respondError(c, store.Logger, err, "保存配置失败")
				return
			}
		}
		store.Logger.Info("配置已更新", "keys", len(req.AppConfig), "by", ac.UserID)
		c.JSON(http.StatusOK, Ok(gin.H{"success": true, "restartRequired": true}, "保存成功，重启后生效"))
	})
}

func AdminDashboardStatsHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		byType, err := store.Resource.CountByType(ctx)
		if err != nil {
			respondError(c, store.Logger, err, "读取统计失败")
			return
		}
		likes, err := store.Like.Count(ctx)
		if err != nil {
			respondError(c, store.Logger, err, "读取统计失败")
			return
		}
		users, err := store.User.Count(ctx)
		if err != nil {
			respondError(c, store.Logger, err, "读取统计失败")
			return
		}

		c.JSON(http.StatusOK, Ok(adminDashboardStats{
			Resources:  byType,
			TotalLikes: likes,
			TotalUsers: users,
		}, "ok"))
	})
}
