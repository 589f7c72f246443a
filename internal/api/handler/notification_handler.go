package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staffdesk/internal/dto"
	"staffdesk/internal/service"
	"staffdesk/pkg/realtime"
	"staffdesk/pkg/response"
)

// NotificationHandler 通知模块 HTTP 处理器（含 SSE 推送通道）
type NotificationHandler struct {
	notifSvc  service.NotificationService
	hub       *realtime.Hub
	heartbeat time.Duration
}

// NewNotificationHandler 创建 NotificationHandler；hub 为 nil 时不提供推送通道
func NewNotificationHandler(notifSvc service.NotificationService, hub *realtime.Hub, heartbeat time.Duration) *NotificationHandler {
	return &NotificationHandler{notifSvc: notifSvc, hub: hub, heartbeat: heartbeat}
}

// List 当前用户的通知
// GET /api/v1/notifications?status=unread|read|all
func (h *NotificationHandler) List(c *gin.Context) {
	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.notifSvc.List(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}

	response.OK(c, result)
}

// MarkRead 标记单条已读
// PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.notifSvc.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleNotificationError(c, err)
		return
	}

	response.OK(c, nil)
}

// MarkAllRead 全部标记已读
// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.notifSvc.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}

	response.OK(c, result)
}

// Delete 删除通知
// DELETE /api/v1/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.notifSvc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleNotificationError(c, err)
		return
	}

	response.OK(c, nil)
}

// Stream SSE 推送通道
// GET /api/v1/notifications/stream
//
// 同一用户的新连接取代旧连接接收定向推送；管理员与经理加入 managers 组。
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, http.StatusServiceUnavailable, 18002, "实时推送未启用")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var groups []string
	if caller.IsApprover() {
		groups = append(groups, realtime.GroupManagers)
	}
	conn := h.hub.Register(caller.UserID, groups...)
	defer h.hub.Unregister(conn)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"connection_id": conn.ID()})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, open := <-conn.Events():
			if !open {
				return false
			}
			c.SSEvent(ev.Name, ev.Payload)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

func (h *NotificationHandler) handleNotificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotificationNotFound):
		response.NotFound(c, 18001, "通知不存在")
	default:
		response.InternalError(c)
	}
}
