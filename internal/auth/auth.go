// Package auth 承载单次请求的身份上下文，以及统一的角色校验。
package auth

import (
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/blake2b"

	"aimlib/internal/apperr"
	"aimlib/internal/db/model"
)

const contextKey = "auth"

// Context 由中间件根据会话解析，显式传入每个 handler；未登录时为 nil。
type Context struct {
	UserID string
	Role   model.Role
	Name   string
	Email  string
}

func FromUser(u *model.User) *Context {
	if u == nil {
		return nil
	}
	return &Context{UserID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

// ViewerID 未登录返回空串，聚合查询据此不匹配任何点赞。
func (a *Context) ViewerID() string {
	if a == nil {
		return ""
	}
	return a.UserID
}

func (a *Context) IsAdmin() bool {
	return a != nil && a.Role == model.RoleAdmin
}

// Require 所有需要登录或特定角色的入口都经过这里。
func Require(a *Context, role model.Role) error {
	if a == nil || a.UserID == "" {
		return apperr.Unauthorized("未登录")
	}
	if a.Role.Rank() < role.Rank() {
		return apperr.Forbidden("无权限")
	}
	return nil
}

func Set(c *gin.Context, a *Context) {
	c.Set(contextKey, a)
}

func FromGin(c *gin.Context) *Context {
	if v, ok := c.Get(contextKey); ok {
		if a, ok := v.(*Context); ok {
			return a
		}
	}
	return nil
}

// HashToken 会话 token 只以摘要形式落库。
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenFromRequest 优先取 Authorization: Bearer，其次取会话 cookie。
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	token, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return token
}
