package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

var (
	ErrUserNotFound = errors.New("用户不存在")
	ErrNoPermission = errors.New("无权操作")
)

// Caller 已认证调用者的身份视图
// EmployeeID 为空表示没有员工档案；ManagedDepartmentID 仅经理/管理员可能非空
type Caller struct {
	UserID              string
	Role                string
	Name                string
	EmployeeID          string
	DepartmentID        string
	ManagedDepartmentID string
}

// IsAdmin 是否管理员
func (c *Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// IsApprover 是否具有审批权限
func (c *Caller) IsApprover() bool {
	return c.Role == model.RoleAdmin || c.Role == model.RoleManager
}

// IdentityService 身份解析接口
type IdentityService interface {
	// Resolve 将 Token 中的用户解析为 Caller，角色以数据库为准
	Resolve(ctx context.Context, userID string) (*Caller, error)
}

type identityService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewIdentityService 创建 IdentityService 实例
func NewIdentityService(repo *repository.Repository, logger *zap.Logger) IdentityService {
	return &identityService{repo: repo, logger: logger}
}

func (s *identityService) Resolve(ctx context.Context, userID string) (*Caller, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	caller := &Caller{UserID: user.UserID, Role: user.Role, Name: user.Name}

	emp, err := s.repo.Employee.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		caller.EmployeeID = emp.EmployeeID
		if emp.DepartmentID != nil {
			caller.DepartmentID = *emp.DepartmentID
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询员工档案失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	if caller.IsApprover() {
		dept, err := s.repo.Department.GetByManager(ctx, userID)
		switch {
		case err == nil:
			caller.ManagedDepartmentID = dept.DepartmentID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Error("查询管理部门失败", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
	}

	return caller, nil
}

// ── 可见范围 ──

// ScopeFor 按角色推导请假/考勤查询的可见范围。
// 员工只见本人；经理见所管部门与本人，两者皆无时为空集；管理员不受限。
// requestedEmployeeID 与角色范围取交集，管理员则直接作为筛选条件。
func ScopeFor(caller *Caller, requestedEmployeeID string) repository.Scope {
	switch caller.Role {
	case model.RoleAdmin:
		return repository.Scope{Unrestricted: true, FilterEmployeeID: requestedEmployeeID}
	case model.RoleManager:
		return repository.Scope{
			EmployeeID:       caller.EmployeeID,
			DepartmentID:     caller.ManagedDepartmentID,
			FilterEmployeeID: requestedEmployeeID,
		}
	default:
		return repository.Scope{EmployeeID: caller.EmployeeID, FilterEmployeeID: requestedEmployeeID}
	}
}

// canSeeEmployee 判断调用者能否查看某员工的数据
func canSeeEmployee(caller *Caller, emp *model.Employee) bool {
	return ScopeFor(caller, "").Allows(emp.EmployeeID, emp.DepartmentID)
}
