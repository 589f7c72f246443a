package dto

// ── 考勤模块 DTO ──

// CheckInRequest 签到/签退请求
type CheckInRequest struct {
	Notes string `json:"notes" binding:"omitempty,max=500"`
}

// UpsertAttendanceRequest 管理员/经理手工修正某天考勤
type UpsertAttendanceRequest struct {
	EmployeeID string  `json:"employee_id" binding:"required,uuid"`
	Date       string  `json:"date"        binding:"required,datetime=2006-01-02"`
	CheckIn    *string `json:"check_in"    binding:"omitempty,datetime=15:04"`
	CheckOut   *string `json:"check_out"   binding:"omitempty,datetime=15:04"`
	Status     string  `json:"status"      binding:"required,oneof=present late half_day absent"`
	Notes      string  `json:"notes"       binding:"omitempty,max=500"`
}

// AttendanceListRequest 考勤列表查询参数
type AttendanceListRequest struct {
	PaginationRequest
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	From       string `form:"from"        binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to"          binding:"omitempty,datetime=2006-01-02"`
	Status     string `form:"status"      binding:"omitempty,oneof=present late half_day absent"`
}

// AttendanceMonthRequest 按月查询参数（报表、导出）
type AttendanceMonthRequest struct {
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	Year       int    `form:"year"        binding:"required,min=2000,max=2100"`
	Month      int    `form:"month"       binding:"required,min=1,max=12"`
}

// AttendanceStatsRequest 统计查询参数，缺省为当月
type AttendanceStatsRequest struct {
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	From       string `form:"from"        binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to"          binding:"omitempty,datetime=2006-01-02"`
}

// AttendanceResponse 考勤记录响应
type AttendanceResponse struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	Date         string `json:"date"`
	CheckIn      string `json:"check_in,omitempty"`
	CheckOut     string `json:"check_out,omitempty"`
	HoursWorked  string `json:"hours_worked,omitempty"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
}

// AttendanceStatsResponse 考勤状态统计
type AttendanceStatsResponse struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Present int64  `json:"present"`
	Late    int64  `json:"late"`
	HalfDay int64  `json:"half_day"`
	Absent  int64  `json:"absent"`
	Total   int64  `json:"total"`
}

// AttendanceReportResponse 月度考勤报表
type AttendanceReportResponse struct {
	Year    int                     `json:"year"`
	Month   int                     `json:"month"`
	Records []AttendanceResponse    `json:"records"`
	Stats   AttendanceStatsResponse `json:"stats"`
}
