package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"staffdesk/internal/dto"
	"staffdesk/internal/service"
	"staffdesk/pkg/response"
)

// BalanceHandler 假期余额 HTTP 处理器
type BalanceHandler struct {
	balanceSvc service.BalanceService
}

// NewBalanceHandler 创建 BalanceHandler
func NewBalanceHandler(balanceSvc service.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceSvc: balanceSvc}
}

// Get 查询假期余额
// GET /api/v1/balances?employee_id=&year=
func (h *BalanceHandler) Get(c *gin.Context) {
	var req dto.BalanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	balance, err := h.balanceSvc.Get(c.Request.Context(), caller, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmployeeRecordMissing):
			response.BadRequest(c, 16001, "当前用户没有员工档案")
		case errors.Is(err, service.ErrBalanceForbidden):
			response.Forbidden(c, 16002, "无权查看该员工的假期余额")
		case errors.Is(err, service.ErrEmployeeNotFound):
			response.NotFound(c, 16003, "员工不存在")
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, balance)
}
