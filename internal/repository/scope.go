package repository

import (
	"fmt"

	"gorm.io/gorm"
)

// Scope 按角色推导出的可见范围
//
//   - Unrestricted：管理员，不加限制
//   - EmployeeID：本人员工记录
//   - DepartmentID：经理所管理的部门
//
// 非 Unrestricted 且两者皆空时结果为空集。
// FilterEmployeeID 为调用方显式指定的员工，与上述范围取交集。
type Scope struct {
	Unrestricted     bool
	EmployeeID       string
	DepartmentID     string
	FilterEmployeeID string
}

// IsEmpty 范围是否必然为空集
func (s Scope) IsEmpty() bool {
	return !s.Unrestricted && s.EmployeeID == "" && s.DepartmentID == ""
}

// Apply 将范围条件追加到查询；column 为结果集中的员工 ID 列
func (s Scope) Apply(db *gorm.DB, column string) *gorm.DB {
	if !s.Unrestricted {
		deptClause := fmt.Sprintf("%s IN (SELECT employee_id FROM employees WHERE department_id = ? AND deleted_at IS NULL)", column)
		switch {
		case s.DepartmentID != "" && s.EmployeeID != "":
			db = db.Where("("+deptClause+" OR "+column+" = ?)", s.DepartmentID, s.EmployeeID)
		case s.DepartmentID != "":
			db = db.Where(deptClause, s.DepartmentID)
		case s.EmployeeID != "":
			db = db.Where(column+" = ?", s.EmployeeID)
		default:
			db = db.Where("1 = 0")
		}
	}
	if s.FilterEmployeeID != "" {
		db = db.Where(column+" = ?", s.FilterEmployeeID)
	}
	return db
}

// Allows 判断单条记录是否在范围内
func (s Scope) Allows(employeeID string, departmentID *string) bool {
	if s.FilterEmployeeID != "" && s.FilterEmployeeID != employeeID {
		return false
	}
	if s.Unrestricted {
		return true
	}
	if s.EmployeeID != "" && s.EmployeeID == employeeID {
		return true
	}
	return s.DepartmentID != "" && departmentID != nil && *departmentID == s.DepartmentID
}
