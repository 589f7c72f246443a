package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
	pkgerrors "staffdesk/pkg/errors"
)

// ── 考勤模块业务错误 ──

var (
	ErrAlreadyCheckedIn    = errors.New("今日已签到")
	ErrNotCheckedIn        = errors.New("今日尚未签到")
	ErrAlreadyCheckedOut   = errors.New("今日已签退")
	ErrAttendanceNotFound  = errors.New("考勤记录不存在")
	ErrAttendanceForbidden = errors.New("无权操作该员工的考勤")
	ErrInvalidClockTime    = errors.New("签退时间不能早于签到时间")
	ErrInvalidDateRange    = errors.New("日期范围无效")
)

const clockLayout = "15:04"

// AttendanceService 考勤业务接口
//
// 每个员工每天一条记录：首次签到创建，签退更新一次。
// 状态在签到时按截止时间确定（晚于截止时间为 late），签退不再重算。
type AttendanceService interface {
	CheckIn(ctx context.Context, caller *Caller, req *dto.CheckInRequest) (*dto.AttendanceResponse, error)
	CheckOut(ctx context.Context, caller *Caller, req *dto.CheckInRequest) (*dto.AttendanceResponse, error)
	// GetDay 查询某员工某天的记录；employeeID 为空表示本人，date 为空表示今天
	GetDay(ctx context.Context, caller *Caller, employeeID, date string) (*dto.AttendanceResponse, error)
	List(ctx context.Context, caller *Caller, req *dto.AttendanceListRequest) ([]dto.AttendanceResponse, int64, error)
	// Upsert 管理员/经理手工修正某天考勤
	Upsert(ctx context.Context, caller *Caller, req *dto.UpsertAttendanceRequest) (*dto.AttendanceResponse, error)
	Report(ctx context.Context, caller *Caller, req *dto.AttendanceMonthRequest) (*dto.AttendanceReportResponse, error)
	Stats(ctx context.Context, caller *Caller, req *dto.AttendanceStatsRequest) (*dto.AttendanceStatsResponse, error)
}

type attendanceService struct {
	repo   *repository.Repository
	clock  Clock
	cutoff string // HH:MM
	logger *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, clock Clock, cutoff string, logger *zap.Logger) AttendanceService {
	if cutoff == "" {
		cutoff = "09:00"
	}
	return &attendanceService{repo: repo, clock: clock, cutoff: cutoff, logger: logger}
}

// ────────────────────── CheckIn ──────────────────────

func (s *attendanceService) CheckIn(ctx context.Context, caller *Caller, req *dto.CheckInRequest) (*dto.AttendanceResponse, error) {
	if caller.EmployeeID == "" {
		return nil, ErrEmployeeRecordMissing
	}

	now := s.clock.now()
	date := model.DateOf(now)
	checkIn := now.Format(clockLayout)
	status := StatusForCheckIn(checkIn, s.cutoff)

	rec, err := s.repo.Attendance.GetByEmployeeDate(ctx, caller.EmployeeID, date)
	switch {
	case err == nil:
		if rec.CheckIn != nil {
			return nil, ErrAlreadyCheckedIn
		}
		rec.CheckIn = &checkIn
		rec.Status = status
		if req.Notes != "" {
			rec.Notes = req.Notes
		}
		rec.UpdatedBy = &caller.UserID
		// 手工录入的无签到记录：并发签到只有一个能写入
		if err := s.repo.Attendance.SetCheckIn(ctx, rec); err != nil {
			if errors.Is(err, pkgerrors.ErrStaleState) {
				return nil, ErrAlreadyCheckedIn
			}
			s.logger.Error("更新签到记录失败", zap.String("employee_id", caller.EmployeeID), zap.Error(err))
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = &model.Attendance{
			EmployeeID: caller.EmployeeID,
			Date:       date,
			CheckIn:    &checkIn,
			Status:     status,
			Notes:      req.Notes,
		}
		rec.CreatedBy = &caller.UserID
		rec.UpdatedBy = &caller.UserID
		if err := s.repo.Attendance.Create(ctx, rec); err != nil {
			// 并发签到：唯一约束 (employee_id, date) 冲突
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrAlreadyCheckedIn
			}
			s.logger.Error("创建签到记录失败", zap.String("employee_id", caller.EmployeeID), zap.Error(err))
			return nil, err
		}
	default:
		s.logger.Error("查询考勤记录失败", zap.String("employee_id", caller.EmployeeID), zap.Error(err))
		return nil, err
	}

	return toAttendanceResponse(rec), nil
}

// ────────────────────── CheckOut ──────────────────────

func (s *attendanceService) CheckOut(ctx context.Context, caller *Caller, req *dto.CheckInRequest) (*dto.AttendanceResponse, error) {
	if caller.EmployeeID == "" {
		return nil, ErrEmployeeRecordMissing
	}

	now := s.clock.now()
	date := model.DateOf(now)

	rec, err := s.repo.Attendance.GetByEmployeeDate(ctx, caller.EmployeeID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotCheckedIn
		}
		s.logger.Error("查询考勤记录失败", zap.String("employee_id", caller.EmployeeID), zap.Error(err))
		return nil, err
	}
	if rec.CheckIn == nil {
		return nil, ErrNotCheckedIn
	}
	if rec.CheckOut != nil {
		return nil, ErrAlreadyCheckedOut
	}

	checkOut := now.Format(clockLayout)
	hours, err := ComputeHoursWorked(*rec.CheckIn, checkOut)
	if err != nil {
		s.logger.Error("计算工时失败", zap.String("attendance_id", rec.AttendanceID), zap.Error(err))
		return nil, err
	}
	rec.CheckOut = &checkOut
	rec.HoursWorked = &hours
	if req.Notes != "" {
		rec.Notes = req.Notes
	}
	rec.UpdatedBy = &caller.UserID

	if err := s.repo.Attendance.Update(ctx, rec); err != nil {
		s.logger.Error("更新签退记录失败", zap.String("employee_id", caller.EmployeeID), zap.Error(err))
		return nil, err
	}
	return toAttendanceResponse(rec), nil
}

// ────────────────────── GetDay ──────────────────────

func (s *attendanceService) GetDay(ctx context.Context, caller *Caller, employeeID, date string) (*dto.AttendanceResponse, error) {
	day := s.clock.today()
	if date != "" {
		parsed, err := model.ParseDate(date)
		if err != nil {
			return nil, ErrInvalidDateRange
		}
		day = parsed
	}

	if employeeID == "" {
		employeeID = caller.EmployeeID
	}
	if employeeID == "" {
		return nil, ErrEmployeeRecordMissing
	}
	if employeeID != caller.EmployeeID {
		if _, err := s.visibleEmployee(ctx, caller, employeeID); err != nil {
			return nil, err
		}
	}

	rec, err := s.repo.Attendance.GetByEmployeeDate(ctx, employeeID, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttendanceNotFound
		}
		s.logger.Error("查询考勤记录失败", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, err
	}
	return toAttendanceResponse(rec), nil
}

// ────────────────────── List ──────────────────────

func (s *attendanceService) List(ctx context.Context, caller *Caller, req *dto.AttendanceListRequest) ([]dto.AttendanceResponse, int64, error) {
	filters := &repository.AttendanceListFilters{Status: req.Status}
	if req.From != "" {
		from, err := model.ParseDate(req.From)
		if err != nil {
			return nil, 0, ErrInvalidDateRange
		}
		filters.From = &from
	}
	if req.To != "" {
		to, err := model.ParseDate(req.To)
		if err != nil {
			return nil, 0, ErrInvalidDateRange
		}
		filters.To = &to
	}
	if filters.From != nil && filters.To != nil && filters.To.Before(filters.From.Time) {
		return nil, 0, ErrInvalidDateRange
	}

	recs, total, err := s.repo.Attendance.List(ctx, filters, ScopeFor(caller, req.EmployeeID), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询考勤列表失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AttendanceResponse, 0, len(recs))
	for i := range recs {
		result = append(result, *toAttendanceResponse(&recs[i]))
	}
	return result, total, nil
}

// ────────────────────── Upsert ──────────────────────

func (s *attendanceService) Upsert(ctx context.Context, caller *Caller, req *dto.UpsertAttendanceRequest) (*dto.AttendanceResponse, error) {
	if !caller.IsApprover() {
		return nil, ErrAttendanceForbidden
	}
	if _, err := s.visibleEmployee(ctx, caller, req.EmployeeID); err != nil {
		return nil, err
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDateRange
	}

	rec := &model.Attendance{
		EmployeeID: req.EmployeeID,
		Date:       date,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Status:     req.Status,
		Notes:      req.Notes,
	}
	if req.CheckIn != nil && req.CheckOut != nil {
		hours, err := ComputeHoursWorked(*req.CheckIn, *req.CheckOut)
		if err != nil {
			return nil, err
		}
		rec.HoursWorked = &hours
	}
	rec.CreatedBy = &caller.UserID
	rec.UpdatedBy = &caller.UserID

	if err := s.repo.Attendance.Upsert(ctx, rec); err != nil {
		s.logger.Error("保存考勤记录失败", zap.String("employee_id", req.EmployeeID), zap.Error(err))
		return nil, err
	}

	saved, err := s.repo.Attendance.GetByEmployeeDate(ctx, req.EmployeeID, date)
	if err != nil {
		s.logger.Error("回读考勤记录失败", zap.String("employee_id", req.EmployeeID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("考勤记录已修正",
		zap.String("employee_id", req.EmployeeID),
		zap.String("date", req.Date),
		zap.String("operator", caller.UserID))
	return toAttendanceResponse(saved), nil
}

// ────────────────────── Report ──────────────────────

func (s *attendanceService) Report(ctx context.Context, caller *Caller, req *dto.AttendanceMonthRequest) (*dto.AttendanceReportResponse, error) {
	from, to := monthRange(req.Year, req.Month)
	scope := ScopeFor(caller, req.EmployeeID)

	recs, err := s.repo.Attendance.ListRange(ctx, from, to, scope)
	if err != nil {
		s.logger.Error("查询月度考勤失败", zap.Error(err))
		return nil, err
	}
	stats, err := s.stats(ctx, from, to, scope)
	if err != nil {
		return nil, err
	}

	records := make([]dto.AttendanceResponse, 0, len(recs))
	for i := range recs {
		records = append(records, *toAttendanceResponse(&recs[i]))
	}
	return &dto.AttendanceReportResponse{
		Year:    req.Year,
		Month:   req.Month,
		Records: records,
		Stats:   *stats,
	}, nil
}

// ────────────────────── Stats ──────────────────────

func (s *attendanceService) Stats(ctx context.Context, caller *Caller, req *dto.AttendanceStatsRequest) (*dto.AttendanceStatsResponse, error) {
	today := s.clock.today()
	from, to := monthRange(today.Year(), int(today.Month()))
	if req.From != "" {
		parsed, err := model.ParseDate(req.From)
		if err != nil {
			return nil, ErrInvalidDateRange
		}
		from = parsed
	}
	if req.To != "" {
		parsed, err := model.ParseDate(req.To)
		if err != nil {
			return nil, ErrInvalidDateRange
		}
		to = parsed
	}
	if to.Before(from.Time) {
		return nil, ErrInvalidDateRange
	}
	return s.stats(ctx, from, to, ScopeFor(caller, req.EmployeeID))
}

func (s *attendanceService) stats(ctx context.Context, from, to model.Date, scope repository.Scope) (*dto.AttendanceStatsResponse, error) {
	counts, err := s.repo.Attendance.CountByStatus(ctx, from, to, scope)
	if err != nil {
		s.logger.Error("统计考勤状态失败", zap.Error(err))
		return nil, err
	}
	return buildAttendanceStats(from, to, counts), nil
}

// ── 辅助函数 ──

// visibleEmployee 加载员工并校验是否在调用者可见范围内
func (s *attendanceService) visibleEmployee(ctx context.Context, caller *Caller, employeeID string) (*model.Employee, error) {
	emp, err := s.repo.Employee.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		s.logger.Error("查询员工失败", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, err
	}
	if !canSeeEmployee(caller, emp) {
		return nil, ErrAttendanceForbidden
	}
	return emp, nil
}

// StatusForCheckIn 晚于截止时间签到记为 late，否则 present；两者均为 HH:MM
func StatusForCheckIn(checkIn, cutoff string) string {
	if checkIn > cutoff {
		return model.AttendanceLate
	}
	return model.AttendancePresent
}

// ComputeHoursWorked 工时 = (签退分钟 − 签到分钟) / 60，保留两位小数
func ComputeHoursWorked(checkIn, checkOut string) (decimal.Decimal, error) {
	in, err := minutesOfDay(checkIn)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := minutesOfDay(checkOut)
	if err != nil {
		return decimal.Zero, err
	}
	if out < in {
		return decimal.Zero, ErrInvalidClockTime
	}
	return decimal.NewFromInt(int64(out - in)).Div(decimal.NewFromInt(60)).Round(2), nil
}

func minutesOfDay(hhmm string) (int, error) {
	t, err := time.Parse(clockLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("无效的时间 %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func buildAttendanceStats(from, to model.Date, counts map[string]int64) *dto.AttendanceStatsResponse {
	stats := &dto.AttendanceStatsResponse{
		From:    from.String(),
		To:      to.String(),
		Present: counts[model.AttendancePresent],
		Late:    counts[model.AttendanceLate],
		HalfDay: counts[model.AttendanceHalfDay],
		Absent:  counts[model.AttendanceAbsent],
	}
	stats.Total = stats.Present + stats.Late + stats.HalfDay + stats.Absent
	return stats
}

func toAttendanceResponse(a *model.Attendance) *dto.AttendanceResponse {
	resp := &dto.AttendanceResponse{
		ID:         a.AttendanceID,
		EmployeeID: a.EmployeeID,
		Date:       a.Date.String(),
		Status:     a.Status,
		Notes:      a.Notes,
	}
	if a.Employee != nil && a.Employee.User != nil {
		resp.EmployeeName = a.Employee.User.Name
	}
	if a.CheckIn != nil {
		resp.CheckIn = *a.CheckIn
	}
	if a.CheckOut != nil {
		resp.CheckOut = *a.CheckOut
	}
	if a.HoursWorked != nil {
		resp.HoursWorked = a.HoursWorked.StringFixed(2)
	}
	return resp
}
