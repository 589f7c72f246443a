package dto

// ── 仪表盘 DTO ──

// EmployeeDashboard 员工视角
type EmployeeDashboard struct {
	PendingLeaves    int64                   `json:"pending_leaves"`
	RecentAttendance []AttendanceResponse    `json:"recent_attendance"`
	Balance          BalanceResponse         `json:"balance"`
	MonthStats       AttendanceStatsResponse `json:"month_stats"`
}

// ManagerDashboard 管理员/经理视角
type ManagerDashboard struct {
	TotalEmployees    int64                   `json:"total_employees"`
	EmployeesByStatus map[string]int64        `json:"employees_by_status"`
	Departments       []DepartmentHeadcount   `json:"departments"`
	LeavesByStatus    map[string]int64        `json:"leaves_by_status"`
	PendingLeaves     []LeaveResponse         `json:"pending_leaves"`
	TodayAttendance   AttendanceStatsResponse `json:"today_attendance"`
}

// DepartmentHeadcount 部门人数
type DepartmentHeadcount struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name"`
	Count          int64  `json:"count"`
}

// DashboardResponse 仪表盘响应，按角色填充其一
type DashboardResponse struct {
	Role     string             `json:"role"`
	Employee *EmployeeDashboard `json:"employee,omitempty"`
	Manager  *ManagerDashboard  `json:"manager,omitempty"`
}
