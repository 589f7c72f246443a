package service

import (
	"go.uber.org/zap"

	"staffdesk/config"
	"staffdesk/internal/repository"
	"staffdesk/pkg/jwt"
	"staffdesk/pkg/realtime"
	"staffdesk/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Identity     IdentityService
	Auth         AuthService
	Department   DepartmentService
	Employee     EmployeeService
	Leave        LeaveService
	Balance      BalanceService
	Notification NotificationService
	Attendance   AttendanceService
	Dashboard    DashboardService
	Export       ExportService
}

// NewService 创建 Service 聚合
// rdb 为 nil 时登出不写黑名单；pub 为 nil 时不做实时推送
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	pub realtime.Publisher,
	logger *zap.Logger,
) *Service {
	if pub == nil {
		pub = realtime.Nop{}
	}
	clk := NewClock(cfg.App.Location())
	ledger := newBalanceLedger(logger)
	notifier := NewNotifier(pub, clk, logger)

	return &Service{
		Identity:     NewIdentityService(repo, logger),
		Auth:         NewAuthService(repo, jwtMgr, rdb, logger),
		Department:   NewDepartmentService(repo, clk, logger),
		Employee:     NewEmployeeService(repo, clk, logger),
		Leave:        NewLeaveService(repo, notifier, clk, logger),
		Balance:      NewBalanceService(repo, ledger, clk, logger),
		Notification: NewNotificationService(repo, pub, clk, logger),
		Attendance:   NewAttendanceService(repo, clk, cfg.App.CheckInCutoff, logger),
		Dashboard:    NewDashboardService(repo, ledger, clk, logger),
		Export:       NewExportService(repo, clk, logger),
	}
}
