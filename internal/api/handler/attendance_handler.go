package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"staffdesk/internal/dto"
	"staffdesk/internal/service"
	"staffdesk/pkg/response"
)

// AttendanceHandler 考勤模块 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// CheckIn 签到
// POST /api/v1/attendance/check-in
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	// 请求体可为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.attendanceSvc.CheckIn(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, rec)
}

// CheckOut 签退
// POST /api/v1/attendance/check-out
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	var req dto.CheckInRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.attendanceSvc.CheckOut(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, rec)
}

// GetDay 某天的考勤记录（缺省为本人今天）
// GET /api/v1/attendance/day?employee_id=&date=
func (h *AttendanceHandler) GetDay(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.attendanceSvc.GetDay(c.Request.Context(), caller, c.Query("employee_id"), c.Query("date"))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, rec)
}

// List 考勤列表（按角色过滤）
// GET /api/v1/attendance
func (h *AttendanceHandler) List(c *gin.Context) {
	var req dto.AttendanceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, total, err := h.attendanceSvc.List(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Upsert 手工修正某天考勤
// PUT /api/v1/attendance
func (h *AttendanceHandler) Upsert(c *gin.Context) {
	var req dto.UpsertAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.attendanceSvc.Upsert(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, rec)
}

// Report 月度考勤报表
// GET /api/v1/attendance/report?year=&month=
func (h *AttendanceHandler) Report(c *gin.Context) {
	var req dto.AttendanceMonthRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	report, err := h.attendanceSvc.Report(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, report)
}

// Stats 考勤状态统计
// GET /api/v1/attendance/stats?from=&to=
func (h *AttendanceHandler) Stats(c *gin.Context) {
	var req dto.AttendanceStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	stats, err := h.attendanceSvc.Stats(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, stats)
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyCheckedIn):
		response.Conflict(c, 15001, "今日已签到")
	case errors.Is(err, service.ErrNotCheckedIn):
		response.BadRequest(c, 15002, "今日尚未签到")
	case errors.Is(err, service.ErrAlreadyCheckedOut):
		response.Conflict(c, 15003, "今日已签退")
	case errors.Is(err, service.ErrAttendanceNotFound):
		response.NotFound(c, 15004, "考勤记录不存在")
	case errors.Is(err, service.ErrAttendanceForbidden):
		response.Forbidden(c, 15005, "无权操作该员工的考勤")
	case errors.Is(err, service.ErrInvalidClockTime):
		response.BadRequest(c, 15006, "签退时间不能早于签到时间")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 15007, "日期范围无效")
	case errors.Is(err, service.ErrEmployeeRecordMissing):
		response.BadRequest(c, 15008, "当前用户没有员工档案")
	case errors.Is(err, service.ErrEmployeeNotFound):
		response.NotFound(c, 15009, "员工不存在")
	default:
		response.InternalError(c)
	}
}
