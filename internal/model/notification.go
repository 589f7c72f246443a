package model

import (
	"time"

	"gorm.io/gorm"
)

// 通知类型
const (
	NotificationLeaveRequest = "leave_request" // 新请假申请（发给全部管理者）
	NotificationLeaveStatus  = "leave_status"  // 审批结果（发给申请人）
)

// 通知状态
const (
	NotificationUnread = "unread"
	NotificationRead   = "read"
)

// Notification 通知消息表 — 对应 notifications
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey"                       json:"notification_id"`
	UserID         string     `gorm:"type:uuid;not null;index"                   json:"user_id"`
	Type           string     `gorm:"type:varchar(50);not null"                  json:"type"`
	Title          string     `gorm:"type:varchar(200);not null"                 json:"title"`
	Message        string     `gorm:"type:text;not null"                         json:"message"`
	Data           JSONMap    `gorm:"type:jsonb"                                 json:"data,omitempty"`
	RelatedID      *string    `gorm:"type:uuid;index"                            json:"related_id,omitempty"` // leave_requests.leave_request_id
	Status         string     `gorm:"type:varchar(20);not null;default:'unread'" json:"status"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// BeforeCreate 生成主键
func (n *Notification) BeforeCreate(*gorm.DB) error {
	newID(&n.NotificationID)
	return nil
}
