package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

// ── 假期余额模块业务错误 ──

var (
	ErrEmployeeRecordMissing = errors.New("当前用户没有员工档案")
	ErrBalanceForbidden      = errors.New("无权查看该员工的假期余额")
)

// ════════════════════════════════════════════════════════════
// balanceLedger 假期余额账本
// ════════════════════════════════════════════════════════════
//
// 余额行的全部读写都经过这里：
//   - get：读取，不存在时返回默认额度（不落库）
//   - ensureExists：幂等插入默认额度
//   - lock：确保存在后加行锁读取，同一 (员工, 年) 的扣减由此串行化
//   - decrement：下限为 0 的扣减
//
// 方法接收 repo 参数，以便在调用方的事务中执行。

type balanceLedger struct {
	logger *zap.Logger
}

func newBalanceLedger(logger *zap.Logger) *balanceLedger {
	return &balanceLedger{logger: logger}
}

func (l *balanceLedger) get(ctx context.Context, repo *repository.Repository, employeeID string, year int) (*model.LeaveBalance, error) {
	b, err := repo.LeaveBalance.Get(ctx, employeeID, year)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.DefaultLeaveBalance(employeeID, year), nil
		}
		return nil, err
	}
	return b, nil
}

func (l *balanceLedger) ensureExists(ctx context.Context, repo *repository.Repository, employeeID string, year int) error {
	return repo.LeaveBalance.EnsureExists(ctx, employeeID, year)
}

func (l *balanceLedger) lock(ctx context.Context, repo *repository.Repository, employeeID string, year int) (*model.LeaveBalance, error) {
	if err := repo.LeaveBalance.EnsureExists(ctx, employeeID, year); err != nil {
		return nil, err
	}
	return repo.LeaveBalance.GetForUpdate(ctx, employeeID, year)
}

// lockSpan 按年份升序锁住 [start, end] 覆盖的全部余额行，返回开始年份的余额。
// 跨年申请与任一年份内的申请都会争用同一行，重叠检查因此串行。
func (l *balanceLedger) lockSpan(ctx context.Context, repo *repository.Repository, employeeID string, start, end model.Date) (*model.LeaveBalance, error) {
	var first *model.LeaveBalance
	for year := start.Year(); year <= end.Year(); year++ {
		b, err := l.lock(ctx, repo, employeeID, year)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = b
		}
	}
	return first, nil
}

func (l *balanceLedger) decrement(ctx context.Context, repo *repository.Repository, employeeID string, year int, leaveType model.LeaveType, days int) (*model.LeaveBalance, error) {
	b, err := l.lock(ctx, repo, employeeID, year)
	if err != nil {
		return nil, err
	}
	before := b.Get(leaveType)
	if clamped := b.Deduct(leaveType, days); clamped {
		l.logger.Warn("假期余额扣减触底，已截断为 0",
			zap.String("employee_id", employeeID),
			zap.Int("year", year),
			zap.String("leave_type", string(leaveType)),
			zap.Int("before", before),
			zap.Int("days", days),
		)
	}
	if err := repo.LeaveBalance.SaveCounters(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ── BalanceService ──

// BalanceService 假期余额查询接口
type BalanceService interface {
	// Get 查询余额快照；员工只能查自己，经理可查可见范围内的员工，管理员不限
	Get(ctx context.Context, caller *Caller, req *dto.BalanceRequest) (*dto.BalanceResponse, error)
}

type balanceService struct {
	repo   *repository.Repository
	ledger *balanceLedger
	clock  Clock
	logger *zap.Logger
}

// NewBalanceService 创建 BalanceService 实例
func NewBalanceService(repo *repository.Repository, ledger *balanceLedger, clock Clock, logger *zap.Logger) BalanceService {
	return &balanceService{repo: repo, ledger: ledger, clock: clock, logger: logger}
}

func (s *balanceService) Get(ctx context.Context, caller *Caller, req *dto.BalanceRequest) (*dto.BalanceResponse, error) {
	employeeID := req.EmployeeID
	if employeeID == "" {
		employeeID = caller.EmployeeID
	}
	if employeeID == "" {
		return nil, ErrEmployeeRecordMissing
	}

	if employeeID != caller.EmployeeID {
		if !caller.IsApprover() {
			return nil, ErrBalanceForbidden
		}
		emp, err := s.repo.Employee.GetByID(ctx, employeeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrEmployeeNotFound
			}
			s.logger.Error("查询员工失败", zap.String("employee_id", employeeID), zap.Error(err))
			return nil, err
		}
		if !canSeeEmployee(caller, emp) {
			return nil, ErrBalanceForbidden
		}
	}

	year := req.Year
	if year == 0 {
		year = s.clock.today().Year()
	}

	if err := s.ledger.ensureExists(ctx, s.repo, employeeID, year); err != nil {
		s.logger.Error("初始化假期余额失败", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, err
	}
	b, err := s.ledger.get(ctx, s.repo, employeeID, year)
	if err != nil {
		s.logger.Error("查询假期余额失败", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, err
	}
	return toBalanceResponse(b), nil
}

func toBalanceResponse(b *model.LeaveBalance) *dto.BalanceResponse {
	return &dto.BalanceResponse{
		EmployeeID:     b.EmployeeID,
		Year:           b.Year,
		SickLeave:      b.SickLeave,
		VacationLeave:  b.VacationLeave,
		PersonalLeave:  b.PersonalLeave,
		EmergencyLeave: b.EmergencyLeave,
	}
}
