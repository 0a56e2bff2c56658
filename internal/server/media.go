package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aimlib/internal/apperr"
	"aimlib/internal/auth"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
	"aimlib/internal/media"
	"aimlib/internal/storage"
)

type deleteMediaRequest struct {
	ID string `json:"id"`
}

// MediaListHandler 先把目录中的新文件同步入库，再返回聚合列表。
func MediaListHandler(store *db.DB, syncer *media.Syncer, kind media.Kind) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		sortMode := strings.ToLower(strings.TrimSpace(c.DefaultQuery("sort", media.SortName)))
		if !media.ValidSort(sortMode) {
			respondError(c, store.Logger, apperr.Validation("排序方式无效"), "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		if _, err := syncer.Sync(ctx, kind); err != nil {
			respondError(c, store.Logger, err, "同步媒体文件失败")
			return
		}
		items, err := store.Resource.ListAggregated(ctx, db.ListFilter{Type: kind.Type, ViewerID: ac.ViewerID()})
		if err != nil {
			respondError(c, store.Logger, err, "读取资源失败")
			return
		}
		media.SortResources(items, sortMode)
		c.JSON(http.StatusOK, Ok(items, "ok"))
	})
}

// MediaDeleteHandler 先软删除并清理点赞，提交后再删除文件。
func MediaDeleteHandler(store *db.DB, files storage.Storage, kind media.Kind) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		var req deleteMediaRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ID) == "" {
			respondError(c, store.Logger, apperr.Validation("缺少资源 ID"), "")
			return
		}
		id := strings.TrimSpace(req.ID)

		ctx, cancel := store.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		res, err := store.Resource.FindLive(ctx, id)
		if err != nil {
			respondError(c, store.Logger, err, "删除失败")
			return
		}
		if res == nil || res.Type != kind.Type {
			respondError(c, store.Logger, apperr.NotFound("资源不存在"), "")
			return
		}

		deleted, err := store.Resource.SoftDeleteMedia(ctx, id, kind.Type)
		if err != nil {
			respondError(c, store.Logger, err, "删除失败")
			return
		}
		if !deleted {
			respondError(c, store.Logger, apperr.NotFound("资源不存在"), "")
			return
		}

		// 记录已提交，文件清理失败只留日志，残留文件不会再被同步回来
		key, err := storage.ObjectKeyFromFilePath(res.FilePath)
		if err == nil {
			err = files.Delete(ctx, key)
		}
		if err != nil {
			store.Logger.Warn("媒体文件清理失败", "id", id, "path", res.FilePath, "err", err)
		}
		store.Logger.Info("媒体资源已删除", "id", id, "type", kind.Type, "path", res.FilePath, "by", ac.UserID)
		c.JSON(http.StatusOK, Ok(gin.H{"id": id, "deleted": true}, "删除成功"))
	})
}
