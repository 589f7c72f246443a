package model

import "gorm.io/gorm"

// 员工状态，仅由管理员手动变更
const (
	EmployeeActive     = "active"
	EmployeeOnLeave    = "on_leave"
	EmployeeTerminated = "terminated"
)

// Employee 员工档案表 — 对应 employees（与 users 1:1）
type Employee struct {
	EmployeeID   string  `gorm:"type:uuid;primaryKey"                       json:"employee_id"`
	UserID       string  `gorm:"type:uuid;not null;uniqueIndex"             json:"user_id"`
	DepartmentID *string `gorm:"type:uuid;index"                            json:"department_id,omitempty"`
	Position     string  `gorm:"type:varchar(100)"                          json:"position,omitempty"`
	Phone        string  `gorm:"type:varchar(30)"                           json:"phone,omitempty"`
	Status       string  `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	JoinDate     Date    `gorm:"type:date;not null"                         json:"join_date"`
	VersionedModel

	// 关联
	User       *User       `gorm:"foreignKey:UserID;references:UserID"             json:"user,omitempty"`
	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

// TableName 指定表名
func (Employee) TableName() string { return "employees" }

// BeforeCreate 生成主键
func (e *Employee) BeforeCreate(*gorm.DB) error {
	newID(&e.EmployeeID)
	return nil
}
