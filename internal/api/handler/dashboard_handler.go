package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"staffdesk/internal/service"
	"staffdesk/pkg/response"
)

// DashboardHandler 仪表盘 HTTP 处理器
type DashboardHandler struct {
	dashboardSvc service.DashboardService
}

// NewDashboardHandler 创建 DashboardHandler
func NewDashboardHandler(dashboardSvc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// Get 按角色返回员工视图或管理视图
// GET /api/v1/dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.dashboardSvc.Get(c.Request.Context(), caller)
	if err != nil {
		if errors.Is(err, service.ErrEmployeeRecordMissing) {
			response.BadRequest(c, 19001, "当前用户没有员工档案")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}
