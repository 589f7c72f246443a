package dto

// ── 员工模块 DTO ──

// CreateEmployeeRequest 创建员工（同时创建登录账号）
type CreateEmployeeRequest struct {
	Name         string  `json:"name"          binding:"required,min=2,max=100"`
	Email        string  `json:"email"         binding:"required,email"`
	Password     string  `json:"password"      binding:"required,min=8,max=64"`
	Role         string  `json:"role"          binding:"omitempty,oneof=employee manager"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
	Position     string  `json:"position"      binding:"omitempty,max=100"`
	Phone        string  `json:"phone"         binding:"omitempty,max=30"`
	JoinDate     string  `json:"join_date"     binding:"omitempty,datetime=2006-01-02"`
}

// UpdateEmployeeRequest 更新员工档案（乐观锁）
// DepartmentID 传空字符串表示移出部门
type UpdateEmployeeRequest struct {
	DepartmentID *string `json:"department_id" binding:"omitempty,max=36"`
	Position     *string `json:"position"      binding:"omitempty,max=100"`
	Phone        *string `json:"phone"         binding:"omitempty,max=30"`
	Status       *string `json:"status"        binding:"omitempty,oneof=active on_leave terminated"`
	JoinDate     *string `json:"join_date"     binding:"omitempty,datetime=2006-01-02"`
	Version      int     `json:"version"       binding:"required,min=1"`
}

// EmployeeListRequest 员工列表查询参数
type EmployeeListRequest struct {
	PaginationRequest
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
	Status       string `form:"status"        binding:"omitempty,oneof=active on_leave terminated"`
	Search       string `form:"search"        binding:"omitempty,max=100"`
}

// EmployeeResponse 员工信息响应
type EmployeeResponse struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Role       string              `json:"role"`
	Department *DepartmentResponse `json:"department,omitempty"`
	Position   string              `json:"position,omitempty"`
	Phone      string              `json:"phone,omitempty"`
	Status     string              `json:"status"`
	JoinDate   string              `json:"join_date"`
	Version    int                 `json:"version"`
	CreatedAt  string              `json:"created_at"`
}

// AssignRoleRequest 分配角色请求
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=employee manager admin"`
}

// ResetPasswordResponse 重置密码响应，临时密码只返回这一次
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}
