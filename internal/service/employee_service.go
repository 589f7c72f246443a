package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
	pkgerrors "staffdesk/pkg/errors"
)

// ── 员工模块业务错误 ──

var (
	ErrEmployeeNotFound  = errors.New("员工不存在")
	ErrEmployeeForbidden = errors.New("无权查看该员工")
	ErrEmailExists       = errors.New("邮箱已被使用")
	ErrSelfRoleChange    = errors.New("不能修改自己的角色")
)

// EmployeeService 员工档案业务接口
//
// 员工状态（active/on_leave/terminated）只由管理员手动维护，
// 请假审批与考勤不会自动改变它。
type EmployeeService interface {
	// Create 同时创建登录账号、员工档案与当年假期余额
	Create(ctx context.Context, req *dto.CreateEmployeeRequest, callerID string) (*dto.EmployeeResponse, error)
	GetByID(ctx context.Context, caller *Caller, id string) (*dto.EmployeeResponse, error)
	List(ctx context.Context, caller *Caller, req *dto.EmployeeListRequest) ([]dto.EmployeeResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateEmployeeRequest, callerID string) (*dto.EmployeeResponse, error)
	// Delete 软删除员工档案及其账号
	Delete(ctx context.Context, id string, callerID string) error
	AssignRole(ctx context.Context, id string, req *dto.AssignRoleRequest, callerID string) error
	// ResetPassword 生成临时密码并返回明文，由管理员线下转交
	ResetPassword(ctx context.Context, id string, callerID string) (*dto.ResetPasswordResponse, error)
}

type employeeService struct {
	repo   *repository.Repository
	ledger *balanceLedger
	clock  Clock
	logger *zap.Logger
}

// NewEmployeeService 创建 EmployeeService 实例
func NewEmployeeService(repo *repository.Repository, clock Clock, logger *zap.Logger) EmployeeService {
	return &employeeService{
		repo:   repo,
		ledger: newBalanceLedger(logger),
		clock:  clock,
		logger: logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *employeeService) Create(ctx context.Context, req *dto.CreateEmployeeRequest, callerID string) (*dto.EmployeeResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 1. 邮箱唯一
	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 部门存在
	var dept *model.Department
	if req.DepartmentID != nil && *req.DepartmentID != "" {
		d, err := s.repo.Department.GetByID(ctx, *req.DepartmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			s.logger.Error("查询部门失败", zap.Error(err))
			return nil, err
		}
		dept = d
	}

	joinDate := s.clock.today()
	if req.JoinDate != "" {
		parsed, err := model.ParseDate(req.JoinDate)
		if err != nil {
			return nil, ErrInvalidDateRange
		}
		joinDate = parsed
	}

	role := req.Role
	if role == "" {
		role = model.RoleEmployee
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	user.CreatedBy = &callerID
	user.UpdatedBy = &callerID

	emp := &model.Employee{
		Position: req.Position,
		Phone:    req.Phone,
		Status:   model.EmployeeActive,
		JoinDate: joinDate,
	}
	if dept != nil {
		emp.DepartmentID = &dept.DepartmentID
	}
	emp.Version = 1
	emp.CreatedBy = &callerID
	emp.UpdatedBy = &callerID

	// 3. 账号 + 档案 + 当年余额，同一事务
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.User.Create(ctx, user); err != nil {
			return err
		}
		emp.UserID = user.UserID
		if err := txRepo.Employee.Create(ctx, emp); err != nil {
			return err
		}
		return s.ledger.ensureExists(ctx, txRepo, emp.EmployeeID, s.clock.today().Year())
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailExists
		}
		s.logger.Error("创建员工失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	s.logger.Info("员工已创建",
		zap.String("employee_id", emp.EmployeeID),
		zap.String("user_id", user.UserID),
		zap.String("role", role))

	emp.User = user
	emp.Department = dept
	return toEmployeeResponse(emp), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *employeeService) GetByID(ctx context.Context, caller *Caller, id string) (*dto.EmployeeResponse, error) {
	emp, err := s.getEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeEmployee(caller, emp) {
		return nil, ErrEmployeeForbidden
	}
	return toEmployeeResponse(emp), nil
}

// ────────────────────── List ──────────────────────

func (s *employeeService) List(ctx context.Context, caller *Caller, req *dto.EmployeeListRequest) ([]dto.EmployeeResponse, int64, error) {
	filters := &repository.EmployeeListFilters{
		DepartmentID: req.DepartmentID,
		Status:       req.Status,
		Keyword:      strings.TrimSpace(req.Search),
	}

	emps, total, err := s.repo.Employee.List(ctx, filters, ScopeFor(caller, ""), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询员工列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.EmployeeResponse, 0, len(emps))
	for i := range emps {
		result = append(result, *toEmployeeResponse(&emps[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *employeeService) Update(ctx context.Context, id string, req *dto.UpdateEmployeeRequest, callerID string) (*dto.EmployeeResponse, error) {
	emp, err := s.getEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.DepartmentID != nil {
		if *req.DepartmentID == "" {
			emp.DepartmentID = nil
			emp.Department = nil
		} else {
			dept, err := s.repo.Department.GetByID(ctx, *req.DepartmentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, ErrDepartmentNotFound
				}
				s.logger.Error("查询部门失败", zap.Error(err))
				return nil, err
			}
			emp.DepartmentID = &dept.DepartmentID
			emp.Department = dept
		}
	}
	if req.Position != nil {
		emp.Position = *req.Position
	}
	if req.Phone != nil {
		emp.Phone = *req.Phone
	}
	if req.Status != nil {
		emp.Status = *req.Status
	}
	if req.JoinDate != nil {
		parsed, err := model.ParseDate(*req.JoinDate)
		if err != nil {
			return nil, ErrInvalidDateRange
		}
		emp.JoinDate = parsed
	}
	emp.UpdatedBy = &callerID

	if err := s.repo.Employee.Update(ctx, emp); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("更新员工失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toEmployeeResponse(emp), nil
}

// ────────────────────── Delete ──────────────────────

func (s *employeeService) Delete(ctx context.Context, id string, callerID string) error {
	emp, err := s.getEmployee(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Employee.Delete(ctx, emp.EmployeeID, callerID); err != nil {
			return err
		}
		return txRepo.User.Delete(ctx, emp.UserID, callerID)
	})
	if err != nil {
		s.logger.Error("删除员工失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── AssignRole ──────────────────────

func (s *employeeService) AssignRole(ctx context.Context, id string, req *dto.AssignRoleRequest, callerID string) error {
	emp, err := s.getEmployee(ctx, id)
	if err != nil {
		return err
	}
	if emp.UserID == callerID {
		return ErrSelfRoleChange
	}

	user, err := s.repo.User.GetByID(ctx, emp.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmployeeNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", emp.UserID), zap.Error(err))
		return err
	}
	if user.Role == req.Role {
		return nil
	}

	previous := user.Role
	user.Role = req.Role
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("分配角色失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("员工角色已变更",
		zap.String("employee_id", id),
		zap.String("from", previous),
		zap.String("to", req.Role))
	return nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *employeeService) ResetPassword(ctx context.Context, id string, callerID string) (*dto.ResetPasswordResponse, error) {
	emp, err := s.getEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetByID(ctx, emp.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", emp.UserID), zap.Error(err))
		return nil, err
	}

	tempPassword, err := generateTempPassword(tempPasswordLen)
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	user.PasswordHash = string(hash)
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("重置密码失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("员工密码已重置", zap.String("employee_id", id), zap.String("operator", callerID))
	return &dto.ResetPasswordResponse{TempPassword: tempPassword}, nil
}

// ── 辅助函数 ──

const tempPasswordLen = 12

// generateTempPassword 生成临时密码，至少含一个字母和一个数字
func generateTempPassword(length int) (string, error) {
	const letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	const digits = "23456789"
	const all = letters + digits

	if length < minPasswordLen {
		length = minPasswordLen
	}

	result := make([]byte, length)
	for i := range result {
		set := all
		switch i {
		case 0:
			set = letters
		case 1:
			set = digits
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
		if err != nil {
			return "", err
		}
		result[i] = set[n.Int64()]
	}

	// Fisher-Yates 洗牌
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		result[i], result[j.Int64()] = result[j.Int64()], result[i]
	}

	return string(result), nil
}

func (s *employeeService) getEmployee(ctx context.Context, id string) (*model.Employee, error) {
	emp, err := s.repo.Employee.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		s.logger.Error("查询员工失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return emp, nil
}

func toEmployeeResponse(emp *model.Employee) *dto.EmployeeResponse {
	resp := &dto.EmployeeResponse{
		ID:        emp.EmployeeID,
		UserID:    emp.UserID,
		Position:  emp.Position,
		Phone:     emp.Phone,
		Status:    emp.Status,
		JoinDate:  emp.JoinDate.String(),
		Version:   emp.Version,
		CreatedAt: emp.CreatedAt.Format(time.RFC3339),
	}
	if emp.User != nil {
		resp.Name = emp.User.Name
		resp.Email = emp.User.Email
		resp.Role = emp.User.Role
	}
	if emp.Department != nil {
		resp.Department = &dto.DepartmentResponse{
			ID:   emp.Department.DepartmentID,
			Name: emp.Department.Name,
		}
	}
	return resp
}
