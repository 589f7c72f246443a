package service

import (
	"context"

	"go.uber.org/zap"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

const (
	dashboardRecentDays   = 7
	dashboardPendingLimit = 10
)

// DashboardService 仪表盘接口，按角色返回不同视图
type DashboardService interface {
	Get(ctx context.Context, caller *Caller) (*dto.DashboardResponse, error)
}

type dashboardService struct {
	repo   *repository.Repository
	ledger *balanceLedger
	clock  Clock
	logger *zap.Logger
}

// NewDashboardService 创建 DashboardService 实例
func NewDashboardService(repo *repository.Repository, ledger *balanceLedger, clock Clock, logger *zap.Logger) DashboardService {
	return &dashboardService{repo: repo, ledger: ledger, clock: clock, logger: logger}
}

func (s *dashboardService) Get(ctx context.Context, caller *Caller) (*dto.DashboardResponse, error) {
	resp := &dto.DashboardResponse{Role: caller.Role}
	var err error
	if caller.IsApprover() {
		resp.Manager, err = s.managerView(ctx, caller)
	} else {
		resp.Employee, err = s.employeeView(ctx, caller)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// employeeView 待审批数、近 7 天考勤、当年余额、当月考勤统计
func (s *dashboardService) employeeView(ctx context.Context, caller *Caller) (*dto.EmployeeDashboard, error) {
	if caller.EmployeeID == "" {
		return nil, ErrEmployeeRecordMissing
	}
	scope := ScopeFor(caller, "")
	today := s.clock.today()

	leaveCounts, err := s.repo.LeaveRequest.CountByStatus(ctx, scope)
	if err != nil {
		s.logger.Error("统计请假状态失败", zap.Error(err))
		return nil, err
	}

	recent, err := s.repo.Attendance.ListRange(ctx, today.AddDays(-(dashboardRecentDays - 1)), today, scope)
	if err != nil {
		s.logger.Error("查询近期考勤失败", zap.Error(err))
		return nil, err
	}
	recentResp := make([]dto.AttendanceResponse, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		recentResp = append(recentResp, *toAttendanceResponse(&recent[i]))
	}

	balance, err := s.ledger.get(ctx, s.repo, caller.EmployeeID, today.Year())
	if err != nil {
		s.logger.Error("查询假期余额失败", zap.Error(err))
		return nil, err
	}

	from, to := monthRange(today.Year(), int(today.Month()))
	counts, err := s.repo.Attendance.CountByStatus(ctx, from, to, scope)
	if err != nil {
		s.logger.Error("统计当月考勤失败", zap.Error(err))
		return nil, err
	}

	return &dto.EmployeeDashboard{
		PendingLeaves:    leaveCounts[model.LeavePending],
		RecentAttendance: recentResp,
		Balance:          *toBalanceResponse(balance),
		MonthStats:       *buildAttendanceStats(from, to, counts),
	}, nil
}

// managerView 员工总数与分布、请假状态、待审批列表、今日考勤
func (s *dashboardService) managerView(ctx context.Context, caller *Caller) (*dto.ManagerDashboard, error) {
	scope := ScopeFor(caller, "")
	today := s.clock.today()

	byStatus, err := s.repo.Employee.CountByStatus(ctx, "")
	if err != nil {
		s.logger.Error("统计员工状态失败", zap.Error(err))
		return nil, err
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}

	headcounts, err := s.repo.Employee.CountByDepartment(ctx)
	if err != nil {
		s.logger.Error("统计部门人数失败", zap.Error(err))
		return nil, err
	}
	departments := make([]dto.DepartmentHeadcount, 0, len(headcounts))
	for _, h := range headcounts {
		departments = append(departments, dto.DepartmentHeadcount{
			DepartmentID:   h.DepartmentID,
			DepartmentName: h.DepartmentName,
			Count:          h.Count,
		})
	}

	leaveCounts, err := s.repo.LeaveRequest.CountByStatus(ctx, scope)
	if err != nil {
		s.logger.Error("统计请假状态失败", zap.Error(err))
		return nil, err
	}

	pending, _, err := s.repo.LeaveRequest.List(ctx, &repository.LeaveListFilters{Status: model.LeavePending}, scope, 0, dashboardPendingLimit)
	if err != nil {
		s.logger.Error("查询待审批请假失败", zap.Error(err))
		return nil, err
	}
	pendingResp := make([]dto.LeaveResponse, 0, len(pending))
	for i := range pending {
		pendingResp = append(pendingResp, *toLeaveResponse(&pending[i]))
	}

	todayCounts, err := s.repo.Attendance.CountByStatus(ctx, today, today, scope)
	if err != nil {
		s.logger.Error("统计今日考勤失败", zap.Error(err))
		return nil, err
	}

	return &dto.ManagerDashboard{
		TotalEmployees:    total,
		EmployeesByStatus: byStatus,
		Departments:       departments,
		LeavesByStatus:    leaveCounts,
		PendingLeaves:     pendingResp,
		TodayAttendance:   *buildAttendanceStats(today, today, todayCounts),
	}, nil
}
