package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"staffdesk/internal/service"
	"staffdesk/pkg/response"
)

// 上下文键，由 middleware 写入
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxCaller   = "caller"
	CtxTokenJTI = "token_jti"
	CtxTokenExp = "token_exp"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(CtxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetCaller 提取已解析的调用者身份（含员工档案与管理部门）
func MustGetCaller(c *gin.Context) (*service.Caller, bool) {
	v, exists := c.Get(CtxCaller)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	caller, ok := v.(*service.Caller)
	if !ok || caller == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return caller, true
}

// tokenMeta 当前 Access Token 的 jti 与过期时间，用于登出写黑名单
func tokenMeta(c *gin.Context) (string, time.Time) {
	jti := c.GetString(CtxTokenJTI)
	exp, _ := c.Get(CtxTokenExp)
	t, _ := exp.(time.Time)
	return jti, t
}
