package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"aimlib/internal/apperr"
	"aimlib/internal/auth"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
)

type updateRoleRequest struct {
	Role string `json:"role" binding:"required,role"`
}

func ListUsersHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		users, err := store.User.List(ctx)
		if err != nil {
			respondError(c, store.Logger, err, "读取用户失败")
			return
		}
		c.JSON(http.StatusOK, Ok(users, "ok"))
	})
}

func GetUserHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := store.User.FindByID(ctx, c.Param("id"))
		if err != nil {
			respondError(c, store.Logger, err, "读取用户失败")
			return
		}
		if user == nil {
			respondError(c, store.Logger, apperr.NotFound("用户不存在"), "")
			return
		}
		c.JSON(http.StatusOK, Ok(user, "ok"))
	})
}

// UpdateUserRoleHandler 管理员不能降低自己的角色。
func UpdateUserRoleHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		var req updateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, store.Logger, apperr.Validation("角色无效"), "")
			return
		}
		role := model.Role(req.Role)
		id := c.Param("id")
		if id == model.SystemUserID {
			respondError(c, store.Logger, apperr.Validation("系统账户不可修改"), "")
			return
		}
		if id == ac.UserID && role.Rank() < ac.Role.Rank() {
			respondError(c, store.Logger, apperr.Validation("不能降低自己的角色"), "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := store.User.FindByID(ctx, id)
		if err != nil {
			respondError(c, store.Logger, err, "更新角色失败")
			return
		}
		if user == nil {
			respondError(c, store.Logger, apperr.NotFound("用户不存在"), "")
			return
		}
		if err := store.User.UpdateRole(ctx, id, role); err != nil {
			respondError(c, store.Logger, err, "更新角色失败")
			return
		}
		user.Role = role
		store.Logger.Info("用户角色已更新", "id", id, "role", role, "by", ac.UserID)
		c.JSON(http.StatusOK, Ok(user, "更新成功"))
	})
}

// DeleteUserHandler 删除自己需要 ?override=true。
func DeleteUserHandler(store *db.DB) gin.HandlerFunc {
	return withAuth(func(c *gin.Context, ac *auth.Context) {
		if err := auth.Require(ac, model.RoleAdmin); err != nil {
			respondError(c, store.Logger, err, "")
			return
		}
		id := c.Param("id")
		if id == model.SystemUserID {
			respondError(c, store.Logger, apperr.Validation("系统账户不可删除"), "")
			return
		}
		override, _ := strconv.ParseBool(c.Query("override"))
		if id == ac.UserID && !override {
			respondError(c, store.Logger, apperr.Validation("不能删除自己的账户"), "")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 8*time.Second)
		defer cancel()

		deleted, err := store.User.Delete(ctx, id)
		if err != nil {
			respondError(c, store.Logger, err, "删除用户失败")
			return
		}
		if !deleted {
			respondError(c, store.Logger, apperr.NotFound("用户不存在"), "")
			return
		}
		store.Logger.Info("用户已删除", "id", id, "by", ac.UserID)
		c.JSON(http.StatusOK, Ok(gin.H{"id": id, "deleted": true}, "删除成功"))
	})
}
