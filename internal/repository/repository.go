package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User         UserRepository
	Department   DepartmentRepository
	Employee     EmployeeRepository
	LeaveBalance LeaveBalanceRepository
	LeaveRequest LeaveRequestRepository
	Attendance   AttendanceRepository
	Notification NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		User:         NewUserRepo(db),
		Department:   NewDepartmentRepo(db),
		Employee:     NewEmployeeRepo(db),
		LeaveBalance: NewLeaveBalanceRepo(db),
		LeaveRequest: NewLeaveRequestRepo(db),
		Attendance:   NewAttendanceRepo(db),
		Notification: NewNotificationRepo(db),
	}
}

// WithTx 返回绑定到事务连接的 Repository
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在事务中执行 fn；在已有事务的 Repository 上调用时使用 SAVEPOINT。
// 未绑定数据库连接（单测中手工组装的聚合）时直接执行 fn。
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
