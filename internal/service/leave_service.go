package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
	pkgerrors "staffdesk/pkg/errors"
	"staffdesk/pkg/workday"
)

// ── 请假模块业务错误 ──

var (
	ErrLeaveNotFound       = errors.New("请假申请不存在")
	ErrInvalidRange        = errors.New("请假日期范围无效")
	ErrInvalidLeaveType    = errors.New("未知的假期类型")
	ErrIncompleteDateRange = errors.New("开始日期与结束日期需同时提供")
	ErrNoFieldsToUpdate    = errors.New("没有需要更新的字段")
	ErrInsufficientBalance = errors.New("假期余额不足")
	ErrOverlapConflict     = errors.New("与已有请假申请时间重叠")
	ErrAlreadyDecided      = errors.New("请假申请已被处理")
	ErrNotOwner            = errors.New("只能操作自己的请假申请")
	ErrNotPending          = errors.New("只能修改或删除待审批的请假申请")
	ErrDecisionForbidden   = errors.New("经理的请假申请只能由管理员审批")
	ErrInvalidDecision     = errors.New("审批结果只能是 approved 或 rejected")
	ErrLeaveForbidden      = errors.New("无权查看该请假申请")
)

// InsufficientBalanceError 余额不足，携带可用与申请天数
type InsufficientBalanceError struct {
	LeaveType model.LeaveType
	Available int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("假期余额不足：可用 %d 天，申请 %d 天", e.Available, e.Requested)
}

// Is 使 errors.Is(err, ErrInsufficientBalance) 成立
func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// OverlapConflictError 时间重叠，携带全部冲突申请
type OverlapConflictError struct {
	Conflicts []dto.LeaveConflict
}

func (e *OverlapConflictError) Error() string {
	return fmt.Sprintf("与 %d 个已有请假申请时间重叠", len(e.Conflicts))
}

// Is 使 errors.Is(err, ErrOverlapConflict) 成立
func (e *OverlapConflictError) Is(target error) bool { return target == ErrOverlapConflict }

func newOverlapConflictError(rows []model.LeaveRequest) *OverlapConflictError {
	conflicts := make([]dto.LeaveConflict, 0, len(rows))
	for _, r := range rows {
		conflicts = append(conflicts, dto.LeaveConflict{
			ID:        r.LeaveRequestID,
			StartDate: r.StartDate.String(),
			EndDate:   r.EndDate.String(),
			Status:    r.Status,
		})
	}
	return &OverlapConflictError{Conflicts: conflicts}
}

// LeaveService 请假业务接口
//
// 状态机：pending → approved | rejected，两个终态均不可逆；
// 只有 pending 状态的申请可以被修改、删除或审批。
type LeaveService interface {
	Submit(ctx context.Context, caller *Caller, req *dto.SubmitLeaveRequest) (*dto.LeaveResponse, error)
	Get(ctx context.Context, caller *Caller, id string) (*dto.LeaveResponse, error)
	List(ctx context.Context, caller *Caller, req *dto.LeaveListRequest) ([]dto.LeaveResponse, int64, error)
	Update(ctx context.Context, caller *Caller, id string, req *dto.UpdateLeaveRequest) (*dto.LeaveResponse, error)
	Delete(ctx context.Context, caller *Caller, id string) error
	Decide(ctx context.Context, caller *Caller, id string, req *dto.DecideLeaveRequest) (*dto.LeaveResponse, error)
	// Calendar 返回开始日期落在指定月份的已批准申请
	Calendar(ctx context.Context, caller *Caller, req *dto.LeaveCalendarRequest) ([]dto.LeaveResponse, error)
}

type leaveService struct {
	repo     *repository.Repository
	ledger   *balanceLedger
	notifier *Notifier
	clock    Clock
	logger   *zap.Logger
}

// NewLeaveService 创建 LeaveService 实例
func NewLeaveService(repo *repository.Repository, notifier *Notifier, clock Clock, logger *zap.Logger) LeaveService {
	return &leaveService{
		repo:     repo,
		ledger:   newBalanceLedger(logger),
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// ────────────────────── Submit ──────────────────────

func (s *leaveService) Submit(ctx context.Context, caller *Caller, req *dto.SubmitLeaveRequest) (*dto.LeaveResponse, error) {
	if caller.EmployeeID == "" {
		return nil, ErrEmployeeRecordMissing
	}
	leaveType := model.LeaveType(req.LeaveType)
	if !leaveType.Valid() {
		return nil, ErrInvalidLeaveType
	}
	start, end, days, err := parseLeaveRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	year := start.Year()
	today := s.clock.today()

	// 余额行在事务外惰性创建，业务校验失败回滚时保留
	if err := s.ledger.ensureExists(ctx, s.repo, caller.EmployeeID, year); err != nil {
		s.logger.Error("初始化假期余额失败", zap.String("employee_id", caller.EmployeeID), zap.Error(err))
		return nil, err
	}

	leave := &model.LeaveRequest{
		EmployeeID: caller.EmployeeID,
		LeaveType:  leaveType,
		StartDate:  start,
		EndDate:    end,
		Days:       days,
		Reason:     req.Reason,
		Status:     model.LeavePending,
	}
	leave.CreatedBy = &caller.UserID
	leave.UpdatedBy = &caller.UserID

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		// 锁住申请覆盖年份的余额行，同一员工同一年的提交与审批串行执行
		balance, err := s.ledger.lockSpan(ctx, txRepo, caller.EmployeeID, start, end)
		if err != nil {
			return err
		}
		if available := balance.Get(leaveType); available < days {
			return &InsufficientBalanceError{LeaveType: leaveType, Available: available, Requested: days}
		}

		conflicts, err := txRepo.LeaveRequest.FindOverlapping(ctx, caller.EmployeeID, start, end, today, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return newOverlapConflictError(conflicts)
		}

		return txRepo.LeaveRequest.Create(ctx, leave)
	})
	if err != nil {
		if isLeaveRuleError(err) {
			return nil, err
		}
		s.logger.Error("提交请假申请失败", zap.String("employee_id", caller.EmployeeID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("请假申请已提交",
		zap.String("leave_request_id", leave.LeaveRequestID),
		zap.String("employee_id", caller.EmployeeID),
		zap.Int("days", days))

	s.notifier.OnSubmit(ctx, s.repo, leave, caller.Name)

	resp := toLeaveResponse(leave)
	resp.EmployeeName = caller.Name
	resp.RequesterRole = caller.Role
	return resp, nil
}

// ────────────────────── Get ──────────────────────

func (s *leaveService) Get(ctx context.Context, caller *Caller, id string) (*dto.LeaveResponse, error) {
	leave, err := s.getLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.Employee == nil || !canSeeEmployee(caller, leave.Employee) {
		return nil, ErrLeaveForbidden
	}
	return toLeaveResponse(leave), nil
}

// ────────────────────── List ──────────────────────

func (s *leaveService) List(ctx context.Context, caller *Caller, req *dto.LeaveListRequest) ([]dto.LeaveResponse, int64, error) {
	scope := ScopeFor(caller, req.EmployeeID)
	filters := &repository.LeaveListFilters{
		Status:    req.Status,
		LeaveType: req.LeaveType,
	}

	leaves, total, err := s.repo.LeaveRequest.List(ctx, filters, scope, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询请假列表失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.LeaveResponse, 0, len(leaves))
	for i := range leaves {
		result = append(result, *toLeaveResponse(&leaves[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *leaveService) Update(ctx context.Context, caller *Caller, id string, req *dto.UpdateLeaveRequest) (*dto.LeaveResponse, error) {
	leave, err := s.getLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.EmployeeID == "" || leave.EmployeeID != caller.EmployeeID {
		return nil, ErrNotOwner
	}
	if leave.Status != model.LeavePending {
		return nil, ErrNotPending
	}
	if req.LeaveType == nil && req.StartDate == nil && req.EndDate == nil && req.Reason == nil {
		return nil, ErrNoFieldsToUpdate
	}
	if (req.StartDate == nil) != (req.EndDate == nil) {
		return nil, ErrIncompleteDateRange
	}

	typeChanged := req.LeaveType != nil
	datesChanged := req.StartDate != nil

	if typeChanged {
		leaveType := model.LeaveType(*req.LeaveType)
		if !leaveType.Valid() {
			return nil, ErrInvalidLeaveType
		}
		leave.LeaveType = leaveType
	}
	if datesChanged {
		start, end, days, err := parseLeaveRange(*req.StartDate, *req.EndDate)
		if err != nil {
			return nil, err
		}
		leave.StartDate, leave.EndDate, leave.Days = start, end, days
	}
	if req.Reason != nil {
		leave.Reason = *req.Reason
	}
	leave.UpdatedBy = &caller.UserID

	today := s.clock.today()

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if typeChanged || datesChanged {
			balance, err := s.ledger.lockSpan(ctx, txRepo, leave.EmployeeID, leave.StartDate, leave.EndDate)
			if err != nil {
				return err
			}
			// 可用额度 = 当前余额 − 该类型其他已批准申请的天数（近似值，不含待审批占用）
			used, err := txRepo.LeaveRequest.SumApprovedDays(ctx, leave.EmployeeID, leave.LeaveType, leave.LeaveRequestID)
			if err != nil {
				return err
			}
			if available := balance.Get(leave.LeaveType) - used; available < leave.Days {
				return &InsufficientBalanceError{LeaveType: leave.LeaveType, Available: available, Requested: leave.Days}
			}
		}

		if datesChanged {
			conflicts, err := txRepo.LeaveRequest.FindOverlapping(ctx, leave.EmployeeID, leave.StartDate, leave.EndDate, today, leave.LeaveRequestID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return newOverlapConflictError(conflicts)
			}
		}

		if err := txRepo.LeaveRequest.UpdatePending(ctx, leave); err != nil {
			if errors.Is(err, pkgerrors.ErrStaleState) {
				return ErrNotPending
			}
			return err
		}
		return nil
	})
	if err != nil {
		if isLeaveRuleError(err) {
			return nil, err
		}
		s.logger.Error("更新请假申请失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toLeaveResponse(leave), nil
}

// ────────────────────── Delete ──────────────────────

func (s *leaveService) Delete(ctx context.Context, caller *Caller, id string) error {
	leave, err := s.getLeave(ctx, id)
	if err != nil {
		return err
	}
	if caller.EmployeeID == "" || leave.EmployeeID != caller.EmployeeID {
		return ErrNotOwner
	}
	if leave.Status != model.LeavePending {
		return ErrNotPending
	}

	if err := s.repo.LeaveRequest.DeletePending(ctx, id); err != nil {
		if errors.Is(err, pkgerrors.ErrStaleState) {
			return ErrNotPending
		}
		s.logger.Error("删除请假申请失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Decide ──────────────────────

// Decide 审批：状态变更与余额扣减在同一事务内完成，
// 条件更新保证同一申请只会被成功审批一次；通知写入失败不影响审批结果。
func (s *leaveService) Decide(ctx context.Context, caller *Caller, id string, req *dto.DecideLeaveRequest) (*dto.LeaveResponse, error) {
	if req.Status != model.LeaveApproved && req.Status != model.LeaveRejected {
		return nil, ErrInvalidDecision
	}
	if !caller.IsApprover() {
		return nil, ErrNoPermission
	}

	leave, err := s.getLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.Status != model.LeavePending {
		return nil, ErrAlreadyDecided
	}

	var requesterUserID, requesterRole string
	if leave.Employee != nil {
		requesterUserID = leave.Employee.UserID
		if leave.Employee.User != nil {
			requesterRole = leave.Employee.User.Role
		}
	}
	if requesterRole == model.RoleManager && !caller.IsAdmin() {
		return nil, ErrDecisionForbidden
	}

	now := s.clock.now()
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.LeaveRequest.Decide(ctx, id, req.Status, caller.UserID, now); err != nil {
			if errors.Is(err, pkgerrors.ErrStaleState) {
				return ErrAlreadyDecided
			}
			return err
		}

		if req.Status == model.LeaveApproved {
			if _, err := s.ledger.decrement(ctx, txRepo, leave.EmployeeID, leave.StartDate.Year(), leave.LeaveType, leave.Days); err != nil {
				return err
			}
		}

		leave.Status = req.Status
		leave.ApprovedBy = &caller.UserID
		leave.ApprovedAt = &now
		leave.Approver = &model.User{UserID: caller.UserID, Name: caller.Name, Role: caller.Role}

		s.notifier.OnDecide(ctx, txRepo, leave, requesterUserID, caller.Name)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			return nil, err
		}
		s.logger.Error("审批请假申请失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("请假申请已审批",
		zap.String("leave_request_id", id),
		zap.String("status", req.Status),
		zap.String("approver_id", caller.UserID))

	s.notifier.PushDecision(leave, requesterUserID)

	return toLeaveResponse(leave), nil
}

// ────────────────────── Calendar ──────────────────────

func (s *leaveService) Calendar(ctx context.Context, caller *Caller, req *dto.LeaveCalendarRequest) ([]dto.LeaveResponse, error) {
	from, to := monthRange(req.Year, req.Month)
	leaves, err := s.repo.LeaveRequest.ListApproved(ctx, from, to, ScopeFor(caller, ""))
	if err != nil {
		s.logger.Error("查询请假日历失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.LeaveResponse, 0, len(leaves))
	for i := range leaves {
		result = append(result, *toLeaveResponse(&leaves[i]))
	}
	return result, nil
}

// ── 辅助函数 ──

func (s *leaveService) getLeave(ctx context.Context, id string) (*model.LeaveRequest, error) {
	leave, err := s.repo.LeaveRequest.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeaveNotFound
		}
		s.logger.Error("查询请假申请失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return leave, nil
}

// parseLeaveRange 解析日期并计算工作日天数，天数 ≤ 0 视为无效范围
func parseLeaveRange(startStr, endStr string) (model.Date, model.Date, int, error) {
	start, err := model.ParseDate(startStr)
	if err != nil {
		return model.Date{}, model.Date{}, 0, ErrInvalidRange
	}
	end, err := model.ParseDate(endStr)
	if err != nil {
		return model.Date{}, model.Date{}, 0, ErrInvalidRange
	}
	days := workday.Count(start.Time, end.Time)
	if days <= 0 {
		return model.Date{}, model.Date{}, 0, ErrInvalidRange
	}
	return start, end, days, nil
}

func isLeaveRuleError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOverlapConflict) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrAlreadyDecided)
}

func toLeaveResponse(l *model.LeaveRequest) *dto.LeaveResponse {
	resp := &dto.LeaveResponse{
		ID:         l.LeaveRequestID,
		EmployeeID: l.EmployeeID,
		LeaveType:  string(l.LeaveType),
		StartDate:  l.StartDate.String(),
		EndDate:    l.EndDate.String(),
		Days:       l.Days,
		Reason:     l.Reason,
		Status:     l.Status,
		CreatedAt:  l.CreatedAt.Format(time.RFC3339),
	}
	if l.Employee != nil && l.Employee.User != nil {
		resp.EmployeeName = l.Employee.User.Name
		resp.RequesterRole = l.Employee.User.Role
	}
	if l.ApprovedBy != nil {
		resp.ApprovedBy = *l.ApprovedBy
	}
	if l.Approver != nil {
		resp.ApproverName = l.Approver.Name
	}
	if l.ApprovedAt != nil {
		resp.ApprovedAt = l.ApprovedAt.Format(time.RFC3339)
	}
	return resp
}
