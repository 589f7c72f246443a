package repository

import (
	"context"

	"gorm.io/gorm"

	"staffdesk/internal/model"
	pkgerrors "staffdesk/pkg/errors"
)

// EmployeeListFilters 员工列表筛选条件
type EmployeeListFilters struct {
	DepartmentID string
	Status       string
	Keyword      string // 按姓名或邮箱模糊匹配
}

// DepartmentHeadcount 部门人数统计
type DepartmentHeadcount struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name"`
	Count          int64  `json:"count"`
}

// EmployeeRepository 员工数据访问接口
type EmployeeRepository interface {
	Create(ctx context.Context, emp *model.Employee) error
	GetByID(ctx context.Context, id string) (*model.Employee, error)
	GetByUserID(ctx context.Context, userID string) (*model.Employee, error)
	// Update 乐观锁更新，版本不一致时返回 ErrOptimisticLock
	Update(ctx context.Context, emp *model.Employee) error
	Delete(ctx context.Context, id string, deletedBy string) error
	List(ctx context.Context, filters *EmployeeListFilters, scope Scope, offset, limit int) ([]model.Employee, int64, error)
	// CountByStatus departmentID 为空时统计全部员工
	CountByStatus(ctx context.Context, departmentID string) (map[string]int64, error)
	CountByDepartment(ctx context.Context) ([]DepartmentHeadcount, error)
}

// employeeRepo EmployeeRepository 的 GORM 实现
type employeeRepo struct {
	db *gorm.DB
}

// NewEmployeeRepo 创建 EmployeeRepository 实例
func NewEmployeeRepo(db *gorm.DB) EmployeeRepository {
	return &employeeRepo{db: db}
}

func (r *employeeRepo) Create(ctx context.Context, emp *model.Employee) error {
	return r.db.WithContext(ctx).Omit("User", "Department").Create(emp).Error
}

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*model.Employee, error) {
	var emp model.Employee
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Department").
		Where("employee_id = ?", id).
		First(&emp).Error
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepo) GetByUserID(ctx context.Context, userID string) (*model.Employee, error) {
	var emp model.Employee
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Department").
		Where("user_id = ?", userID).
		First(&emp).Error
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepo) Update(ctx context.Context, emp *model.Employee) error {
	oldVersion := emp.Version
	result := r.db.WithContext(ctx).
		Model(&model.Employee{}).
		Where("employee_id = ? AND version = ?", emp.EmployeeID, oldVersion).
		Updates(map[string]interface{}{
			"department_id": emp.DepartmentID,
			"position":      emp.Position,
			"phone":         emp.Phone,
			"status":        emp.Status,
			"join_date":     emp.JoinDate,
			"updated_by":    emp.UpdatedBy,
			"version":       oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	emp.Version = oldVersion + 1
	return nil
}

func (r *employeeRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Employee{}).
			Where("employee_id = ?", id).
			Update("deleted_by", deletedBy).Error; err != nil {
			return err
		}
		return tx.Where("employee_id = ?", id).Delete(&model.Employee{}).Error
	})
}

func (r *employeeRepo) List(ctx context.Context, filters *EmployeeListFilters, scope Scope, offset, limit int) ([]model.Employee, int64, error) {
	var emps []model.Employee
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Employee{})
	db = scope.Apply(db, "employees.employee_id")

	if filters != nil {
		if filters.DepartmentID != "" {
			db = db.Where("employees.department_id = ?", filters.DepartmentID)
		}
		if filters.Status != "" {
			db = db.Where("employees.status = ?", filters.Status)
		}
		if filters.Keyword != "" {
			like := "%" + filters.Keyword + "%"
			db = db.Where("employees.user_id IN (SELECT user_id FROM users WHERE name LIKE ? OR email LIKE ?)", like, like)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("User").Preload("Department").
		Offset(offset).Limit(limit).
		Order("employees.created_at DESC").
		Find(&emps).Error; err != nil {
		return nil, 0, err
	}

	return emps, total, nil
}

func (r *employeeRepo) CountByStatus(ctx context.Context, departmentID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	db := r.db.WithContext(ctx).Model(&model.Employee{})
	if departmentID != "" {
		db = db.Where("department_id = ?", departmentID)
	}
	err := db.
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

func (r *employeeRepo) CountByDepartment(ctx context.Context) ([]DepartmentHeadcount, error) {
	var rows []DepartmentHeadcount
	err := r.db.WithContext(ctx).
		Table("departments").
		Select("departments.department_id, departments.name AS department_name, COUNT(employees.employee_id) AS count").
		Joins("LEFT JOIN employees ON employees.department_id = departments.department_id AND employees.deleted_at IS NULL").
		Where("departments.deleted_at IS NULL").
		Group("departments.department_id, departments.name").
		Order("departments.name ASC").
		Scan(&rows).Error
	return rows, err
}
