package model

import "gorm.io/gorm"

// Department 部门表 — 对应 departments
type Department struct {
	DepartmentID string  `gorm:"type:uuid;primaryKey"                  json:"department_id"`
	Name         string  `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description  string  `gorm:"type:text"                             json:"description,omitempty"`
	ManagerID    *string `gorm:"type:uuid;index"                       json:"manager_id,omitempty"` // users.user_id
	IsActive     bool    `gorm:"not null;default:true"                 json:"is_active"`
	VersionedModel

	// 关联
	Manager *User `gorm:"foreignKey:ManagerID;references:UserID" json:"manager,omitempty"`
}

// TableName 指定表名
func (Department) TableName() string { return "departments" }

// BeforeCreate 生成主键
func (d *Department) BeforeCreate(*gorm.DB) error {
	newID(&d.DepartmentID)
	return nil
}
