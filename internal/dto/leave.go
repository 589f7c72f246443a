package dto

// ── 请假模块 DTO ──

// SubmitLeaveRequest 提交请假申请
type SubmitLeaveRequest struct {
	LeaveType string `json:"leave_type" binding:"required,oneof=sick vacation personal emergency"`
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   binding:"required,datetime=2006-01-02"`
	Reason    string `json:"reason"     binding:"omitempty,max=500"`
}

// UpdateLeaveRequest 修改待审批申请，字段均可选；日期需成对提供
type UpdateLeaveRequest struct {
	LeaveType *string `json:"leave_type" binding:"omitempty,oneof=sick vacation personal emergency"`
	StartDate *string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date"   binding:"omitempty,datetime=2006-01-02"`
	Reason    *string `json:"reason"     binding:"omitempty,max=500"`
}

// DecideLeaveRequest 审批请假申请
type DecideLeaveRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// LeaveListRequest 请假列表查询参数
type LeaveListRequest struct {
	PaginationRequest
	Status     string `form:"status"      binding:"omitempty,oneof=pending approved rejected"`
	LeaveType  string `form:"leave_type"  binding:"omitempty,oneof=sick vacation personal emergency"`
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
}

// LeaveCalendarRequest 请假日历查询参数
type LeaveCalendarRequest struct {
	Year  int `form:"year"  binding:"required,min=2000,max=2100"`
	Month int `form:"month" binding:"required,min=1,max=12"`
}

// LeaveResponse 请假申请响应
type LeaveResponse struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	EmployeeName  string `json:"employee_name,omitempty"`
	RequesterRole string `json:"requester_role,omitempty"`
	LeaveType     string `json:"leave_type"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Days          int    `json:"days"`
	Reason        string `json:"reason,omitempty"`
	Status        string `json:"status"`
	ApprovedBy    string `json:"approved_by,omitempty"`
	ApproverName  string `json:"approver_name,omitempty"`
	ApprovedAt    string `json:"approved_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// LeaveConflict 与新申请冲突的已有申请
type LeaveConflict struct {
	ID        string `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

// ── 假期余额 DTO ──

// BalanceRequest 余额查询参数；employee_id 仅管理员与经理可指定
type BalanceRequest struct {
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	Year       int    `form:"year"        binding:"omitempty,min=2000,max=2100"`
}

// BalanceResponse 余额快照
type BalanceResponse struct {
	EmployeeID     string `json:"employee_id"`
	Year           int    `json:"year"`
	SickLeave      int    `json:"sick_leave"`
	VacationLeave  int    `json:"vacation_leave"`
	PersonalLeave  int    `json:"personal_leave"`
	EmergencyLeave int    `json:"emergency_leave"`
}
