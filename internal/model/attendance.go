package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 考勤状态；签到时确定，签退不再变更
const (
	AttendancePresent = "present"
	AttendanceLate    = "late"
	AttendanceHalfDay = "half_day"
	AttendanceAbsent  = "absent"
)

// Attendance 考勤记录表 — 对应 attendance，(employee_id, date) 唯一
type Attendance struct {
	AttendanceID string           `gorm:"type:uuid;primaryKey"                                     json:"attendance_id"`
	EmployeeID   string           `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_employee_date" json:"employee_id"`
	Date         Date             `gorm:"type:date;not null;uniqueIndex:idx_attendance_employee_date" json:"date"`
	CheckIn      *string          `gorm:"type:varchar(5)"                                          json:"check_in,omitempty"`  // HH:MM
	CheckOut     *string          `gorm:"type:varchar(5)"                                          json:"check_out,omitempty"` // HH:MM
	HoursWorked  *decimal.Decimal `gorm:"type:decimal(5,2)"                                        json:"hours_worked,omitempty"`
	Status       string           `gorm:"type:varchar(20);not null;default:'present'"              json:"status"`
	Notes        string           `gorm:"type:text"                                                json:"notes,omitempty"`
	BaseModel

	// 关联
	Employee *Employee `gorm:"foreignKey:EmployeeID;references:EmployeeID" json:"employee,omitempty"`
}

// TableName 指定表名
func (Attendance) TableName() string { return "attendance" }

// BeforeCreate 生成主键
func (a *Attendance) BeforeCreate(*gorm.DB) error {
	newID(&a.AttendanceID)
	return nil
}
