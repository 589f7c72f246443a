package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

// ── 部门模块业务错误 ──

var (
	ErrDepartmentNotFound   = errors.New("部门不存在")
	ErrDepartmentNameExists = errors.New("部门名称已存在")
	ErrDepartmentHasMembers = errors.New("部门下存在员工，无法删除")
	ErrInvalidManager       = errors.New("部门经理必须是经理或管理员账号")
	ErrDepartmentForbidden  = errors.New("无权查看该部门")
)

// DepartmentService 部门业务接口
type DepartmentService interface {
	Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error)
	GetByID(ctx context.Context, id string) (*dto.DepartmentDetailResponse, error)
	List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	// GetMembers 获取部门员工列表（按调用者可见范围过滤）
	GetMembers(ctx context.Context, caller *Caller, departmentID string) ([]dto.EmployeeResponse, error)
	// Stats 部门人数、请假状态与今日考勤；经理只能查看自己管理的部门
	Stats(ctx context.Context, caller *Caller, departmentID string) (*dto.DepartmentStatsResponse, error)
}

type departmentService struct {
	repo   *repository.Repository
	clock  Clock
	logger *zap.Logger
}

// NewDepartmentService 创建 DepartmentService 实例
func NewDepartmentService(repo *repository.Repository, clock Clock, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, clock: clock, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error) {
	// 检查名称唯一性
	existing, err := s.repo.Department.GetByName(ctx, req.Name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询部门失败", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		return nil, ErrDepartmentNameExists
	}

	dept := &model.Department{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if req.ManagerID != nil && *req.ManagerID != "" {
		manager, err := s.validateManager(ctx, *req.ManagerID)
		if err != nil {
			return nil, err
		}
		dept.ManagerID = &manager.UserID
	}
	dept.CreatedBy = &callerID
	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Create(ctx, dept); err != nil {
		s.logger.Error("创建部门失败", zap.Error(err))
		return nil, err
	}
	if dept.ManagerID != nil {
		dept.Manager, _ = s.repo.User.GetByID(ctx, *dept.ManagerID)
	}

	return s.toDepartmentDetailResponse(ctx, dept), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *departmentService) GetByID(ctx context.Context, id string) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toDepartmentDetailResponse(ctx, dept), nil
}

// ────────────────────── List ──────────────────────

func (s *departmentService) List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error) {
	var depts []model.Department
	var err error

	if req.IncludeInactive {
		depts, err = s.repo.Department.ListAll(ctx)
	} else {
		depts, err = s.repo.Department.List(ctx)
	}
	if err != nil {
		s.logger.Error("列出部门失败", zap.Error(err))
		return nil, err
	}

	// 批量查询成员数，避免 N+1 查询问题
	deptIDs := make([]string, 0, len(depts))
	for _, d := range depts {
		deptIDs = append(deptIDs, d.DepartmentID)
	}
	countMap, err := s.repo.Department.BatchCountMembers(ctx, deptIDs)
	if err != nil {
		s.logger.Warn("批量查询成员数失败，回退为0", zap.Error(err))
		countMap = make(map[string]int64)
	}

	result := make([]dto.DepartmentDetailResponse, 0, len(depts))
	for i := range depts {
		resp := toDepartmentDetail(&depts[i])
		resp.MemberCount = countMap[depts[i].DepartmentID]
		result = append(result, *resp)
	}

	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *departmentService) Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	// 如果更新名称，检查唯一性
	if req.Name != nil && *req.Name != dept.Name {
		existing, err := s.repo.Department.GetByName(ctx, *req.Name)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, ErrDepartmentNameExists
		}
		dept.Name = *req.Name
	}

	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}
	if req.ManagerID != nil {
		if *req.ManagerID == "" {
			dept.ManagerID = nil
			dept.Manager = nil
		} else {
			manager, err := s.validateManager(ctx, *req.ManagerID)
			if err != nil {
				return nil, err
			}
			dept.ManagerID = &manager.UserID
			dept.Manager = manager
		}
	}

	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Update(ctx, dept); err != nil {
		s.logger.Error("更新部门失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return s.toDepartmentDetailResponse(ctx, dept), nil
}

// ────────────────────── Delete ──────────────────────

func (s *departmentService) Delete(ctx context.Context, id string, callerID string) error {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return err
	}

	// 检查部门下是否有员工
	count, err := s.repo.Department.CountMembers(ctx, dept.DepartmentID)
	if err != nil {
		s.logger.Error("查询部门成员数失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if count > 0 {
		return ErrDepartmentHasMembers
	}

	if err := s.repo.Department.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除部门失败", zap.String("id", id), zap.Error(err))
		return err
	}

	return nil
}

// ────────────────────── GetMembers ──────────────────────

func (s *departmentService) GetMembers(ctx context.Context, caller *Caller, departmentID string) ([]dto.EmployeeResponse, error) {
	if _, err := s.getDepartment(ctx, departmentID); err != nil {
		return nil, err
	}

	filters := &repository.EmployeeListFilters{DepartmentID: departmentID}
	emps, _, err := s.repo.Employee.List(ctx, filters, ScopeFor(caller, ""), 0, 1000)
	if err != nil {
		s.logger.Error("查询部门成员失败", zap.String("department_id", departmentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.EmployeeResponse, 0, len(emps))
	for i := range emps {
		result = append(result, *toEmployeeResponse(&emps[i]))
	}
	return result, nil
}

// ────────────────────── Stats ──────────────────────

func (s *departmentService) Stats(ctx context.Context, caller *Caller, departmentID string) (*dto.DepartmentStatsResponse, error) {
	dept, err := s.getDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && caller.ManagedDepartmentID != dept.DepartmentID {
		return nil, ErrDepartmentForbidden
	}

	byStatus, err := s.repo.Employee.CountByStatus(ctx, dept.DepartmentID)
	if err != nil {
		s.logger.Error("统计部门员工失败", zap.String("department_id", departmentID), zap.Error(err))
		return nil, err
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}

	scope := repository.Scope{DepartmentID: dept.DepartmentID}
	leaveCounts, err := s.repo.LeaveRequest.CountByStatus(ctx, scope)
	if err != nil {
		s.logger.Error("统计部门请假失败", zap.String("department_id", departmentID), zap.Error(err))
		return nil, err
	}

	today := s.clock.today()
	todayCounts, err := s.repo.Attendance.CountByStatus(ctx, today, today, scope)
	if err != nil {
		s.logger.Error("统计部门考勤失败", zap.String("department_id", departmentID), zap.Error(err))
		return nil, err
	}

	return &dto.DepartmentStatsResponse{
		DepartmentID:      dept.DepartmentID,
		Name:              dept.Name,
		TotalEmployees:    total,
		EmployeesByStatus: byStatus,
		LeavesByStatus:    leaveCounts,
		TodayAttendance:   *buildAttendanceStats(today, today, todayCounts),
	}, nil
}

// ── 辅助函数 ──

func (s *departmentService) getDepartment(ctx context.Context, id string) (*model.Department, error) {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		s.logger.Error("查询部门失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return dept, nil
}

// validateManager 部门经理必须是 manager 或 admin
func (s *departmentService) validateManager(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidManager
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if !user.IsApprover() {
		return nil, ErrInvalidManager
	}
	return user, nil
}

func (s *departmentService) toDepartmentDetailResponse(ctx context.Context, dept *model.Department) *dto.DepartmentDetailResponse {
	resp := toDepartmentDetail(dept)
	resp.MemberCount, _ = s.repo.Department.CountMembers(ctx, dept.DepartmentID)
	return resp
}

func toDepartmentDetail(dept *model.Department) *dto.DepartmentDetailResponse {
	resp := &dto.DepartmentDetailResponse{
		ID:          dept.DepartmentID,
		Name:        dept.Name,
		Description: dept.Description,
		IsActive:    dept.IsActive,
		CreatedAt:   dept.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   dept.UpdatedAt.Format(time.RFC3339),
	}
	if dept.ManagerID != nil {
		resp.ManagerID = *dept.ManagerID
	}
	if dept.Manager != nil {
		resp.ManagerName = dept.Manager.Name
	}
	return resp
}
