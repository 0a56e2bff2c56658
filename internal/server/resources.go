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
)

type resourceDetail struct {
	Resource         model.ResourceWithLikes `json:"resource"`
	LikedResourceIDs []string                `json:"likedResourceIds"`
}

type updateResourceRequest struct {
	Name string `json:"name"`
	Type string `json:"type" binding:"required,resourcetype"`
}

// parseListQuery 解析 ?type= 与 ?sort=，两者都可省略。
func parseListQuery(c *gin.Context, defaultSort string) (model.ResourceType, string, error) {
	var typ model.ResourceType
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		parsed, ok := model.ParseResourceType(raw)
		if !ok {
			return "", "", apperr.Validation("资源类型无效")
		}
		typ = parsed
	}
	sortMode := strings.ToLower(strings.TrimSpace(c.DefaultQuery("sort", defaultSort)))
	if sortMode != "" && !media.ValidSort(sortMode) {
		return "", "", apperr.Validation("排序方式无效")
	}
	return typ, sortMode, nil
}

func ListResourcesHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		typ, sortMode, err := parseListQuery(c, "")
		if err != nil {
			respondError(c, store.Logger, err, "参数错误")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		items, err := store.Resource.ListAggregated(ctx, db.ListFilter{Type: typ, ViewerID: ac.ViewerID()})
		if err != nil {
			respondError(c, store.Logger, err, "读取资源失败")
			return
		}
		if sortMode != "" {
			media.SortResources(items, sortMode)
		}
		c.JSON(http.StatusOK, Ok(items, "ok"))
	})
}

func GetResourceHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleUser); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		item, err := store.Resource.GetAggregated(ctx, c.Param("id"), ac.UserID)
		if err != nil {
			respondError(c, store.Logger, err, "读取资源失败")
			return
		}
		if item == nil {
			respondError(c, store.Logger, apperr.NotFound("资源不存在"), "")
			return
		}
		liked, err := store.Like.ListByUser(ctx, ac.UserID, "")
		if err != nil {
			respondError(c, store.Logger, err, "读取点赞失败")
			return
		}
		c.JSON(http.StatusOK, Ok(resourceDetail{Resource: *item, LikedResourceIDs: liked}, "ok"))
	})
}

func UpdateResourceHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		var req updateResourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, store.Logger, apperr.Validation("参数错误"), "")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondError(c, store.Logger, apperr.Validation("名称不能为空"), "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 8*time.Second)
		defer cancel()

		updated, err := store.Resource.Update(ctx, c.Param("id"), name, model.ResourceType(req.Type))
		if err != nil {
			respondError(c, store.Logger, err, "更新资源失败")
			return
		}
		store.Logger.Info("资源已更新", "id", updated.ID, "name", updated.Name, "type", updated.Type, "by", ac.UserID)
		c.JSON(http.StatusOK, Ok(updated, "更新成功"))
	})
}

// DeleteResourceHandler 通用删除路径：物理删除。
func DeleteResourceHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		id := c.Param("id")

		ctx, cancel := store.WithTimeout(c.Request.Context(), 8*time.Second)
		defer cancel()

		existing, err := store.Resource.FindByID(ctx, id)
		if err != nil {
			respondError(c, store.Logger, err, "删除资源失败")
			return
		}
		if existing == nil {
			respondError(c, store.Logger, apperr.NotFound("资源不存在"), "")
			return
		}
		if existing.IsMedia() {
			// TODO: 媒体文件仍留在存储中，下次同步会以新 ID 重新入库；需确认是否改走软删除路径。
			store.Logger.Warn("通用路径删除了媒体资源，文件未移除", "id", id, "filePath", existing.FilePath)
		}
		deleted, err := store.Resource.HardDelete(ctx, id)
		if err != nil {
			respondError(c, store.Logger, err, "删除资源失败")
			return
		}
		if !deleted {
			respondError(c, store.Logger, apperr.NotFound("资源不存在"), "")
			return
		}
		c.JSON(http.StatusOK, Ok(gin.H{"id": id, "deleted": true}, "删除成功"))
	})
}
