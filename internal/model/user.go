package model

import "gorm.io/gorm"

// 角色
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// User 用户表 — 对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey"                         json:"user_id"`
	Name         string `gorm:"type:varchar(100);not null"                   json:"name"`
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex"       json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                   json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'employee'" json:"role"`
	SoftDeleteModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// BeforeCreate 生成主键
func (u *User) BeforeCreate(*gorm.DB) error {
	newID(&u.UserID)
	return nil
}

// IsApprover 是否具有审批权限
func (u *User) IsApprover() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}
