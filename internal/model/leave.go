package model

import (
	"time"

	"gorm.io/gorm"
)

// LeaveType 假期类型，封闭枚举
type LeaveType string

const (
	LeaveSick      LeaveType = "sick"
	LeaveVacation  LeaveType = "vacation"
	LeavePersonal  LeaveType = "personal"
	LeaveEmergency LeaveType = "emergency"
)

// LeaveTypes 全部假期类型（固定顺序）
var LeaveTypes = []LeaveType{LeaveSick, LeaveVacation, LeavePersonal, LeaveEmergency}

// Valid 是否为已知类型
func (t LeaveType) Valid() bool {
	switch t {
	case LeaveSick, LeaveVacation, LeavePersonal, LeaveEmergency:
		return true
	}
	return false
}

// 请假状态：pending → approved | rejected，两个终态不可逆
const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)

// 每年默认额度
const (
	DefaultSickLeave      = 10
	DefaultVacationLeave  = 20
	DefaultPersonalLeave  = 5
	DefaultEmergencyLeave = 3
)

// LeaveBalance 假期余额表 — 对应 leave_balances，(employee_id, year) 唯一
type LeaveBalance struct {
	BalanceID      string `gorm:"type:uuid;primaryKey"                                   json:"balance_id"`
	EmployeeID     string `gorm:"type:uuid;not null;uniqueIndex:idx_balance_employee_year" json:"employee_id"`
	Year           int    `gorm:"not null;uniqueIndex:idx_balance_employee_year"         json:"year"`
	SickLeave      int    `gorm:"not null;default:10"                                    json:"sick_leave"`
	VacationLeave  int    `gorm:"not null;default:20"                                    json:"vacation_leave"`
	PersonalLeave  int    `gorm:"not null;default:5"                                     json:"personal_leave"`
	EmergencyLeave int    `gorm:"not null;default:3"                                     json:"emergency_leave"`
	BaseModel
}

// TableName 指定表名
func (LeaveBalance) TableName() string { return "leave_balances" }

// BeforeCreate 生成主键
func (b *LeaveBalance) BeforeCreate(*gorm.DB) error {
	newID(&b.BalanceID)
	return nil
}

// DefaultLeaveBalance 返回带默认额度的余额（未落库）
func DefaultLeaveBalance(employeeID string, year int) *LeaveBalance {
	return &LeaveBalance{
		EmployeeID:     employeeID,
		Year:           year,
		SickLeave:      DefaultSickLeave,
		VacationLeave:  DefaultVacationLeave,
		PersonalLeave:  DefaultPersonalLeave,
		EmergencyLeave: DefaultEmergencyLeave,
	}
}

// Get 读取指定类型的剩余天数
func (b *LeaveBalance) Get(t LeaveType) int {
	switch t {
	case LeaveSick:
		return b.SickLeave
	case LeaveVacation:
		return b.VacationLeave
	case LeavePersonal:
		return b.PersonalLeave
	case LeaveEmergency:
		return b.EmergencyLeave
	}
	return 0
}

// Deduct 扣减指定类型天数，下限为 0；返回是否发生截断
func (b *LeaveBalance) Deduct(t LeaveType, days int) (clamped bool) {
	next := b.Get(t) - days
	if next < 0 {
		next = 0
		clamped = true
	}
	switch t {
	case LeaveSick:
		b.SickLeave = next
	case LeaveVacation:
		b.VacationLeave = next
	case LeavePersonal:
		b.PersonalLeave = next
	case LeaveEmergency:
		b.EmergencyLeave = next
	}
	return clamped
}

// LeaveRequest 请假申请表 — 对应 leave_requests
type LeaveRequest struct {
	LeaveRequestID string     `gorm:"type:uuid;primaryKey"                        json:"leave_request_id"`
	EmployeeID     string     `gorm:"type:uuid;not null;index"                    json:"employee_id"`
	LeaveType      LeaveType  `gorm:"type:varchar(20);not null"                   json:"leave_type"`
	StartDate      Date       `gorm:"type:date;not null"                          json:"start_date"`
	EndDate        Date       `gorm:"type:date;not null"                          json:"end_date"`
	Days           int        `gorm:"not null"                                    json:"days"`
	Reason         string     `gorm:"type:text"                                   json:"reason,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ApprovedBy     *string    `gorm:"type:uuid"                                   json:"approved_by,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	BaseModel

	// 关联
	Employee *Employee `gorm:"foreignKey:EmployeeID;references:EmployeeID" json:"employee,omitempty"`
	Approver *User     `gorm:"foreignKey:ApprovedBy;references:UserID"    json:"approver,omitempty"`
}

// TableName 指定表名
func (LeaveRequest) TableName() string { return "leave_requests" }

// BeforeCreate 生成主键
func (l *LeaveRequest) BeforeCreate(*gorm.DB) error {
	newID(&l.LeaveRequestID)
	return nil
}
