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
)

type toggleLikeRequest struct {
	ResourceID string `json:"resourceId"`
}

type typedLikeRequest struct {
	ResourceType string `json:"resourceType" binding:"required,resourcetype"`
	ResourceID   string `json:"resourceId" binding:"required"`
}

func ToggleLikeHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleUser); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		var req toggleLikeRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ResourceID) == "" {
			respondError(c, store.Logger, apperr.Validation("缺少资源 ID"), "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		liked, err := store.Like.Toggle(ctx, ac.UserID, strings.TrimSpace(req.ResourceID))
		if err != nil {
			respondError(c, store.Logger, err, "点赞失败")
			return
		}
		c.JSON(http.StatusOK, Ok(gin.H{"liked": liked}, "ok"))
	})
}

func ListLikesHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleUser); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		var typ model.ResourceType
		if raw := strings.TrimSpace(c.Query("resourceType")); raw != "" {
			parsed, ok := model.ParseResourceType(raw)
			if !ok {
				respondError(c, store.Logger, apperr.Validation("资源类型无效"), "")
				return
			}
			typ = parsed
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		ids, err := store.Like.ListByUser(ctx, ac.UserID, typ)
		if err != nil {
			respondError(c, store.Logger, err, "读取点赞失败")
			return
		}
		c.JSON(http.StatusOK, Ok(gin.H{"resourceIds": ids}, "ok"))
	})
}

func bindTypedLike(c *gin.Context) (typedLikeRequest, error) {
	var req typedLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, apperr.Validation("参数错误")
	}
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.ResourceID == "" {
		return req, apperr.Validation("缺少资源 ID")
	}
	return req, nil
}

func AddLikeHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleUser); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		req, err := bindTypedLike(c)
		if err != nil {
			respondError(c, store.Logger, err, "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		created, err := store.Like.Add(ctx, ac.UserID, req.ResourceID, model.ResourceType(req.ResourceType))
		if err != nil {
			respondError(c, store.Logger, err, "点赞失败")
			return
		}
		c.JSON(http.StatusOK, Ok(gin.H{"liked": true, "created": created}, "ok"))
	})
}

func RemoveLikeHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleUser); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		req, err := bindTypedLike(c)
		if err != nil {
			respondError(c, store.Logger, err, "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		removed, err := store.Like.Remove(ctx, ac.UserID, req.ResourceID, model.ResourceType(req.ResourceType))
		if err != nil {
			respondError(c, store.Logger, err, "取消点赞失败")
			return
		}
		c.JSON(http.StatusOK, Ok(gin.H{"liked": false, "removed": removed}, "ok"))
	})
}
