package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staffdesk/internal/model"
)

// LeaveBalanceRepository 假期余额数据访问接口
// 余额的所有扣减都必须经过 service 层账本，不直接写字段
type LeaveBalanceRepository interface {
	// Get 查询余额，不存在时返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, employeeID string, year int) (*model.LeaveBalance, error)
	// EnsureExists 幂等插入默认额度
	EnsureExists(ctx context.Context, employeeID string, year int) error
	// GetForUpdate 加行锁读取（需在事务中调用；SQLite 下退化为普通读取）
	GetForUpdate(ctx context.Context, employeeID string, year int) (*model.LeaveBalance, error)
	// SaveCounters 写回四个计数器
	SaveCounters(ctx context.Context, balance *model.LeaveBalance) error
}

// leaveBalanceRepo LeaveBalanceRepository 的 GORM 实现
type leaveBalanceRepo struct {
	db *gorm.DB
}

// NewLeaveBalanceRepo 创建 LeaveBalanceRepository 实例
func NewLeaveBalanceRepo(db *gorm.DB) LeaveBalanceRepository {
	return &leaveBalanceRepo{db: db}
}

func (r *leaveBalanceRepo) Get(ctx context.Context, employeeID string, year int) (*model.LeaveBalance, error) {
	var b model.LeaveBalance
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND year = ?", employeeID, year).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *leaveBalanceRepo) EnsureExists(ctx context.Context, employeeID string, year int) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "year"}},
			DoNothing: true,
		}).
		Create(model.DefaultLeaveBalance(employeeID, year)).Error
}

func (r *leaveBalanceRepo) GetForUpdate(ctx context.Context, employeeID string, year int) (*model.LeaveBalance, error) {
	var b model.LeaveBalance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("employee_id = ? AND year = ?", employeeID, year).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *leaveBalanceRepo) SaveCounters(ctx context.Context, balance *model.LeaveBalance) error {
	return r.db.WithContext(ctx).
		Model(&model.LeaveBalance{}).
		Where("balance_id = ?", balance.BalanceID).
		Updates(map[string]interface{}{
			"sick_leave":      balance.SickLeave,
			"vacation_leave":  balance.VacationLeave,
			"personal_leave":  balance.PersonalLeave,
			"emergency_leave": balance.EmergencyLeave,
		}).Error
}
