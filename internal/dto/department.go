package dto

// ── 部门模块 DTO ──

// CreateDepartmentRequest 创建部门请求
type CreateDepartmentRequest struct {
	Name        string  `json:"name"        binding:"required,min=2,max=50"`
	Description string  `json:"description" binding:"omitempty,max=200"`
	ManagerID   *string `json:"manager_id"  binding:"omitempty,uuid"`
}

// UpdateDepartmentRequest 更新部门请求
// ManagerID 传空字符串表示解除部门经理
type UpdateDepartmentRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=2,max=50"`
	Description *string `json:"description" binding:"omitempty,max=200"`
	ManagerID   *string `json:"manager_id"  binding:"omitempty,max=36"`
	IsActive    *bool   `json:"is_active"`
}

// DepartmentListRequest 部门列表查询参数
type DepartmentListRequest struct {
	IncludeInactive bool `form:"include_inactive"`
}

// DepartmentDetailResponse 部门详细信息响应
type DepartmentDetailResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ManagerID   string `json:"manager_id,omitempty"`
	ManagerName string `json:"manager_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	MemberCount int64  `json:"member_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// DepartmentStatsResponse 部门统计
type DepartmentStatsResponse struct {
	DepartmentID      string                  `json:"department_id"`
	Name              string                  `json:"name"`
	TotalEmployees    int64                   `json:"total_employees"`
	EmployeesByStatus map[string]int64        `json:"employees_by_status"`
	LeavesByStatus    map[string]int64        `json:"leaves_by_status"`
	TodayAttendance   AttendanceStatsResponse `json:"today_attendance"`
}
