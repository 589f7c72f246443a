package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"staffdesk/internal/dto"
	"staffdesk/internal/service"
	"staffdesk/pkg/response"
)

// LeaveHandler 请假模块 HTTP 处理器
type LeaveHandler struct {
	leaveSvc  service.LeaveService
	exportSvc service.ExportService
}

// NewLeaveHandler 创建 LeaveHandler
func NewLeaveHandler(leaveSvc service.LeaveService, exportSvc service.ExportService) *LeaveHandler {
	return &LeaveHandler{leaveSvc: leaveSvc, exportSvc: exportSvc}
}

// Submit 提交请假申请
// POST /api/v1/leaves
func (h *LeaveHandler) Submit(c *gin.Context) {
	var req dto.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	leave, err := h.leaveSvc.Submit(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.Created(c, leave)
}

// List 请假列表（按角色过滤）
// GET /api/v1/leaves
func (h *LeaveHandler) List(c *gin.Context) {
	var req dto.LeaveListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, total, err := h.leaveSvc.List(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get 请假详情
// GET /api/v1/leaves/:id
func (h *LeaveHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	leave, err := h.leaveSvc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, leave)
}

// Update 修改待审批申请
// PUT /api/v1/leaves/:id
func (h *LeaveHandler) Update(c *gin.Context) {
	var req dto.UpdateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	leave, err := h.leaveSvc.Update(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, leave)
}

// Delete 撤回待审批申请
// DELETE /api/v1/leaves/:id
func (h *LeaveHandler) Delete(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.leaveSvc.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, nil)
}

// Decide 审批（批准 / 驳回）
// PUT /api/v1/leaves/:id/decision
func (h *LeaveHandler) Decide(c *gin.Context) {
	var req dto.DecideLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	leave, err := h.leaveSvc.Decide(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, leave)
}

// Calendar 某月已批准的请假
// GET /api/v1/leaves/calendar?year=&month=
func (h *LeaveHandler) Calendar(c *gin.Context) {
	var req dto.LeaveCalendarRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, err := h.leaveSvc.Calendar(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CalendarICS 某月已批准的请假导出为 iCalendar
// GET /api/v1/leaves/calendar.ics?year=&month=
func (h *LeaveHandler) CalendarICS(c *gin.Context) {
	var req dto.LeaveCalendarRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportLeaveCalendar(c.Request.Context(), caller, &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// handleLeaveError 统一处理请假模块业务错误
// 余额不足与时间重叠在 data 中返回机器可读的详情
func (h *LeaveHandler) handleLeaveError(c *gin.Context, err error) {
	var balanceErr *service.InsufficientBalanceError
	var overlapErr *service.OverlapConflictError

	switch {
	case errors.As(err, &balanceErr):
		response.ErrorWithData(c, http.StatusBadRequest, 14006, "假期余额不足", gin.H{
			"leave_type": balanceErr.LeaveType,
			"available":  balanceErr.Available,
			"requested":  balanceErr.Requested,
		})
	case errors.As(err, &overlapErr):
		response.ErrorWithData(c, http.StatusConflict, 14007, "与已有请假申请时间重叠", gin.H{
			"conflicts": overlapErr.Conflicts,
		})
	case errors.Is(err, service.ErrLeaveNotFound):
		response.NotFound(c, 14001, "请假申请不存在")
	case errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, 14002, "请假日期范围内没有工作日")
	case errors.Is(err, service.ErrInvalidLeaveType):
		response.BadRequest(c, 14003, "未知的假期类型")
	case errors.Is(err, service.ErrIncompleteDateRange):
		response.BadRequest(c, 14004, "开始日期与结束日期需同时提供")
	case errors.Is(err, service.ErrNoFieldsToUpdate):
		response.BadRequest(c, 14005, "没有需要更新的字段")
	case errors.Is(err, service.ErrAlreadyDecided):
		response.Conflict(c, 14008, "请假申请已被处理")
	case errors.Is(err, service.ErrNotOwner):
		response.Forbidden(c, 14009, "只能操作自己的请假申请")
	case errors.Is(err, service.ErrNotPending):
		response.Conflict(c, 14010, "只能修改或删除待审批的请假申请")
	case errors.Is(err, service.ErrDecisionForbidden):
		response.Forbidden(c, 14011, "经理的请假申请只能由管理员审批")
	case errors.Is(err, service.ErrInvalidDecision):
		response.BadRequest(c, 14012, "审批结果只能是 approved 或 rejected")
	case errors.Is(err, service.ErrLeaveForbidden), errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 14013, "无权操作该请假申请")
	case errors.Is(err, service.ErrEmployeeRecordMissing):
		response.BadRequest(c, 14014, "当前用户没有员工档案")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 14015, "日期范围无效")
	default:
		response.InternalError(c)
	}
}
