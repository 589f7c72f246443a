package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"staffdesk/internal/model"
	pkgerrors "staffdesk/pkg/errors"
)

// LeaveListFilters 请假列表筛选条件
type LeaveListFilters struct {
	Status    string
	LeaveType string
	From      *model.Date // 与 [From, To] 有交集
	To        *model.Date
}

// LeaveRequestRepository 请假申请数据访问接口
type LeaveRequestRepository interface {
	Create(ctx context.Context, req *model.LeaveRequest) error
	GetByID(ctx context.Context, id string) (*model.LeaveRequest, error)
	// UpdatePending 仅当仍为 pending 时更新可编辑字段，否则返回 ErrStaleState
	UpdatePending(ctx context.Context, req *model.LeaveRequest) error
	// DeletePending 仅当仍为 pending 时物理删除，否则返回 ErrStaleState
	DeletePending(ctx context.Context, id string) error
	// Decide 仅当仍为 pending 时写入审批结果，否则返回 ErrStaleState
	Decide(ctx context.Context, id, status, approverID string, at time.Time) error
	// FindOverlapping 查询与 [start, end] 冲突的申请：pending，或 end_date >= today 的 approved
	FindOverlapping(ctx context.Context, employeeID string, start, end, today model.Date, excludeID string) ([]model.LeaveRequest, error)
	// SumApprovedDays 汇总员工某类型已批准天数（不限年份）
	SumApprovedDays(ctx context.Context, employeeID string, leaveType model.LeaveType, excludeID string) (int, error)
	List(ctx context.Context, filters *LeaveListFilters, scope Scope, offset, limit int) ([]model.LeaveRequest, int64, error)
	// ListApproved 查询开始日期落在 [from, to] 内的已批准申请
	ListApproved(ctx context.Context, from, to model.Date, scope Scope) ([]model.LeaveRequest, error)
	CountByStatus(ctx context.Context, scope Scope) (map[string]int64, error)
}

// leaveRequestRepo LeaveRequestRepository 的 GORM 实现
type leaveRequestRepo struct {
	db *gorm.DB
}

// NewLeaveRequestRepo 创建 LeaveRequestRepository 实例
func NewLeaveRequestRepo(db *gorm.DB) LeaveRequestRepository {
	return &leaveRequestRepo{db: db}
}

func (r *leaveRequestRepo) Create(ctx context.Context, req *model.LeaveRequest) error {
	return r.db.WithContext(ctx).Omit("Employee", "Approver").Create(req).Error
}

func (r *leaveRequestRepo) GetByID(ctx context.Context, id string) (*model.LeaveRequest, error) {
	var req model.LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Employee").
		Preload("Employee.User").
		Preload("Approver").
		Where("leave_request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *leaveRequestRepo) UpdatePending(ctx context.Context, req *model.LeaveRequest) error {
	result := r.db.WithContext(ctx).
		Model(&model.LeaveRequest{}).
		Where("leave_request_id = ? AND status = ?", req.LeaveRequestID, model.LeavePending).
		Updates(map[string]interface{}{
			"leave_type": req.LeaveType,
			"start_date": req.StartDate,
			"end_date":   req.EndDate,
			"days":       req.Days,
			"reason":     req.Reason,
			"updated_by": req.UpdatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrStaleState
	}
	return nil
}

func (r *leaveRequestRepo) DeletePending(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("leave_request_id = ? AND status = ?", id, model.LeavePending).
		Delete(&model.LeaveRequest{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrStaleState
	}
	return nil
}

func (r *leaveRequestRepo) Decide(ctx context.Context, id, status, approverID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.LeaveRequest{}).
		Where("leave_request_id = ? AND status = ?", id, model.LeavePending).
		Updates(map[string]interface{}{
			"status":      status,
			"approved_by": approverID,
			"approved_at": at,
			"updated_by":  approverID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrStaleState
	}
	return nil
}

func (r *leaveRequestRepo) FindOverlapping(ctx context.Context, employeeID string, start, end, today model.Date, excludeID string) ([]model.LeaveRequest, error) {
	var rows []model.LeaveRequest
	db := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Where("(status = ? OR (status = ? AND end_date >= ?))", model.LeavePending, model.LeaveApproved, today).
		Where("((start_date <= ? AND end_date >= ?) OR (start_date <= ? AND end_date >= ?) OR (start_date >= ? AND end_date <= ?))",
			start, start, end, end, start, end)
	if excludeID != "" {
		db = db.Where("leave_request_id <> ?", excludeID)
	}
	err := db.Order("start_date ASC").Find(&rows).Error
	return rows, err
}

func (r *leaveRequestRepo) SumApprovedDays(ctx context.Context, employeeID string, leaveType model.LeaveType, excludeID string) (int, error) {
	var total int64
	db := r.db.WithContext(ctx).
		Model(&model.LeaveRequest{}).
		Select("COALESCE(SUM(days), 0)").
		Where("employee_id = ? AND leave_type = ? AND status = ?", employeeID, leaveType, model.LeaveApproved)
	if excludeID != "" {
		db = db.Where("leave_request_id <> ?", excludeID)
	}
	if err := db.Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *leaveRequestRepo) List(ctx context.Context, filters *LeaveListFilters, scope Scope, offset, limit int) ([]model.LeaveRequest, int64, error) {
	var rows []model.LeaveRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.LeaveRequest{})
	db = scope.Apply(db, "leave_requests.employee_id")

	if filters != nil {
		if filters.Status != "" {
			db = db.Where("status = ?", filters.Status)
		}
		if filters.LeaveType != "" {
			db = db.Where("leave_type = ?", filters.LeaveType)
		}
		if filters.From != nil {
			db = db.Where("end_date >= ?", *filters.From)
		}
		if filters.To != nil {
			db = db.Where("start_date <= ?", *filters.To)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Employee").Preload("Employee.User").Preload("Approver").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *leaveRequestRepo) ListApproved(ctx context.Context, from, to model.Date, scope Scope) ([]model.LeaveRequest, error) {
	var rows []model.LeaveRequest
	db := r.db.WithContext(ctx).Model(&model.LeaveRequest{})
	db = scope.Apply(db, "leave_requests.employee_id")
	err := db.
		Preload("Employee").Preload("Employee.User").
		Where("status = ? AND start_date >= ? AND start_date <= ?", model.LeaveApproved, from, to).
		Order("start_date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *leaveRequestRepo) CountByStatus(ctx context.Context, scope Scope) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	db := r.db.WithContext(ctx).Model(&model.LeaveRequest{})
	db = scope.Apply(db, "leave_requests.employee_id")
	if err := db.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := map[string]int64{
		model.LeavePending:  0,
		model.LeaveApproved: 0,
		model.LeaveRejected: 0,
	}
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
