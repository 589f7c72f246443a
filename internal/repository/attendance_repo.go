package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staffdesk/internal/model"
	pkgerrors "staffdesk/pkg/errors"
)

// AttendanceListFilters 考勤列表筛选条件
type AttendanceListFilters struct {
	From   *model.Date
	To     *model.Date
	Status string
}

// AttendanceRepository 考勤数据访问接口
type AttendanceRepository interface {
	// GetByEmployeeDate 不存在时返回 gorm.ErrRecordNotFound
	GetByEmployeeDate(ctx context.Context, employeeID string, date model.Date) (*model.Attendance, error)
	GetByID(ctx context.Context, id string) (*model.Attendance, error)
	Create(ctx context.Context, rec *model.Attendance) error
	Update(ctx context.Context, rec *model.Attendance) error
	// SetCheckIn 仅当记录尚未签到时写入签到时间，否则返回 ErrStaleState
	SetCheckIn(ctx context.Context, rec *model.Attendance) error
	// Upsert 按 (employee_id, date) 插入或覆盖
	Upsert(ctx context.Context, rec *model.Attendance) error
	List(ctx context.Context, filters *AttendanceListFilters, scope Scope, offset, limit int) ([]model.Attendance, int64, error)
	// ListRange 查询 [from, to] 内的全部记录（报表、导出）
	ListRange(ctx context.Context, from, to model.Date, scope Scope) ([]model.Attendance, error)
	CountByStatus(ctx context.Context, from, to model.Date, scope Scope) (map[string]int64, error)
}

// attendanceRepo AttendanceRepository 的 GORM 实现
type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) GetByEmployeeDate(ctx context.Context, employeeID string, date model.Date) (*model.Attendance, error) {
	var rec model.Attendance
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND date = ?", employeeID, date).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepo) GetByID(ctx context.Context, id string) (*model.Attendance, error) {
	var rec model.Attendance
	err := r.db.WithContext(ctx).
		Preload("Employee").
		Preload("Employee.User").
		Where("attendance_id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepo) Create(ctx context.Context, rec *model.Attendance) error {
	return r.db.WithContext(ctx).Omit("Employee").Create(rec).Error
}

func (r *attendanceRepo) Update(ctx context.Context, rec *model.Attendance) error {
	return r.db.WithContext(ctx).
		Model(&model.Attendance{}).
		Where("attendance_id = ?", rec.AttendanceID).
		Updates(map[string]interface{}{
			"check_in":     rec.CheckIn,
			"check_out":    rec.CheckOut,
			"hours_worked": rec.HoursWorked,
			"status":       rec.Status,
			"notes":        rec.Notes,
			"updated_by":   rec.UpdatedBy,
		}).Error
}

func (r *attendanceRepo) SetCheckIn(ctx context.Context, rec *model.Attendance) error {
	result := r.db.WithContext(ctx).
		Model(&model.Attendance{}).
		Where("attendance_id = ? AND check_in IS NULL", rec.AttendanceID).
		Updates(map[string]interface{}{
			"check_in":   rec.CheckIn,
			"status":     rec.Status,
			"notes":      rec.Notes,
			"updated_by": rec.UpdatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrStaleState
	}
	return nil
}

func (r *attendanceRepo) Upsert(ctx context.Context, rec *model.Attendance) error {
	return r.db.WithContext(ctx).
		Omit("Employee").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"check_in", "check_out", "hours_worked", "status", "notes", "updated_by", "updated_at"}),
		}).
		Create(rec).Error
}

func (r *attendanceRepo) List(ctx context.Context, filters *AttendanceListFilters, scope Scope, offset, limit int) ([]model.Attendance, int64, error) {
	var recs []model.Attendance
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Attendance{})
	db = scope.Apply(db, "attendance.employee_id")

	if filters != nil {
		if filters.From != nil {
			db = db.Where("date >= ?", *filters.From)
		}
		if filters.To != nil {
			db = db.Where("date <= ?", *filters.To)
		}
		if filters.Status != "" {
			db = db.Where("status = ?", filters.Status)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Employee").Preload("Employee.User").
		Offset(offset).Limit(limit).
		Order("date DESC").
		Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}

func (r *attendanceRepo) ListRange(ctx context.Context, from, to model.Date, scope Scope) ([]model.Attendance, error) {
	var recs []model.Attendance
	db := r.db.WithContext(ctx).Model(&model.Attendance{})
	db = scope.Apply(db, "attendance.employee_id")
	err := db.
		Preload("Employee").Preload("Employee.User").
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").
		Find(&recs).Error
	return recs, err
}

func (r *attendanceRepo) CountByStatus(ctx context.Context, from, to model.Date, scope Scope) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	db := r.db.WithContext(ctx).Model(&model.Attendance{})
	db = scope.Apply(db, "attendance.employee_id")
	err := db.
		Select("status, COUNT(*) AS count").
		Where("date >= ? AND date <= ?", from, to).
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
