package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成导出文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
// 数据范围与列表接口一致，按调用者角色过滤。
type ExportService interface {
	// ExportAttendance 导出月度考勤为 Excel（明细 + 按员工汇总两个 Sheet）
	ExportAttendance(ctx context.Context, caller *Caller, req *dto.AttendanceMonthRequest) (*bytes.Buffer, string, error)
	// ExportLeaveCalendar 导出某月已批准请假为 iCalendar
	ExportLeaveCalendar(ctx context.Context, caller *Caller, req *dto.LeaveCalendarRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	clock  Clock
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, clock Clock, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, clock: clock, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportAttendance 导出月度考勤为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "考勤明细"：日期 | 员工 | 签到 | 签退 | 工时 | 状态 | 备注
//   - Sheet "汇总"：员工 | 出勤 | 迟到 | 半天 | 缺勤 | 总工时

func (s *exportService) ExportAttendance(ctx context.Context, caller *Caller, req *dto.AttendanceMonthRequest) (*bytes.Buffer, string, error) {
	from, to := monthRange(req.Year, req.Month)
	recs, err := s.repo.Attendance.ListRange(ctx, from, to, ScopeFor(caller, req.EmployeeID))
	if err != nil {
		s.logger.Error("查询月度考勤失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	detail := "考勤明细"
	idx, _ := f.NewSheet(detail)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"日期", "员工", "签到", "签退", "工时", "状态", "备注"}
	for i, h := range headers {
		f.SetCellValue(detail, cell(colName(i), 1), h)
	}
	f.SetCellStyle(detail, "A1", cell(colName(len(headers)-1), 1), headerStyle)
	f.SetColWidth(detail, "A", "A", 12)
	f.SetColWidth(detail, "B", "B", 16)
	f.SetColWidth(detail, "G", "G", 30)

	type summary struct {
		name   string
		counts map[string]int
		hours  float64
	}
	summaries := make(map[string]*summary)

	row := 2
	for i := range recs {
		r := toAttendanceResponse(&recs[i])
		name := r.EmployeeName
		if name == "" {
			name = r.EmployeeID
		}
		f.SetCellValue(detail, cell("A", row), r.Date)
		f.SetCellValue(detail, cell("B", row), name)
		f.SetCellValue(detail, cell("C", row), dashIfEmpty(r.CheckIn))
		f.SetCellValue(detail, cell("D", row), dashIfEmpty(r.CheckOut))
		if recs[i].HoursWorked != nil {
			hours, _ := recs[i].HoursWorked.Float64()
			f.SetCellValue(detail, cell("E", row), hours)
		} else {
			f.SetCellValue(detail, cell("E", row), "-")
		}
		f.SetCellValue(detail, cell("F", row), attendanceStatusLabel(r.Status))
		f.SetCellValue(detail, cell("G", row), r.Notes)
		row++

		sm, ok := summaries[r.EmployeeID]
		if !ok {
			sm = &summary{name: name, counts: make(map[string]int)}
			summaries[r.EmployeeID] = sm
		}
		sm.counts[r.Status]++
		if recs[i].HoursWorked != nil {
			hours, _ := recs[i].HoursWorked.Float64()
			sm.hours += hours
		}
	}

	// 汇总 Sheet，按员工姓名排序
	total := "汇总"
	f.NewSheet(total)
	sumHeaders := []string{"员工", "出勤", "迟到", "半天", "缺勤", "总工时"}
	for i, h := range sumHeaders {
		f.SetCellValue(total, cell(colName(i), 1), h)
	}
	f.SetCellStyle(total, "A1", cell(colName(len(sumHeaders)-1), 1), headerStyle)
	f.SetColWidth(total, "A", "A", 16)

	ids := make([]string, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return summaries[ids[i]].name < summaries[ids[j]].name })

	row = 2
	for _, id := range ids {
		sm := summaries[id]
		f.SetCellValue(total, cell("A", row), sm.name)
		f.SetCellValue(total, cell("B", row), sm.counts[model.AttendancePresent])
		f.SetCellValue(total, cell("C", row), sm.counts[model.AttendanceLate])
		f.SetCellValue(total, cell("D", row), sm.counts[model.AttendanceHalfDay])
		f.SetCellValue(total, cell("E", row), sm.counts[model.AttendanceAbsent])
		f.SetCellValue(total, cell("F", row), fmt.Sprintf("%.2f", sm.hours))
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("考勤_%04d-%02d.xlsx", req.Year, req.Month)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportLeaveCalendar 导出已批准请假为 iCalendar
// ═══════════════════════════════════════════════════════════
//
// 每个申请一个全天 VEVENT；DTEND 为结束日期次日（iCalendar 全天事件的结束日不包含在内）。

func (s *exportService) ExportLeaveCalendar(ctx context.Context, caller *Caller, req *dto.LeaveCalendarRequest) (*bytes.Buffer, string, error) {
	from, to := monthRange(req.Year, req.Month)
	leaves, err := s.repo.LeaveRequest.ListApproved(ctx, from, to, ScopeFor(caller, ""))
	if err != nil {
		s.logger.Error("查询已批准请假失败", zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//staffdesk//leave calendar//ZH")
	cal.SetName(fmt.Sprintf("请假日历 %04d-%02d", req.Year, req.Month))

	stamp := s.clock.now()
	for i := range leaves {
		l := &leaves[i]
		name := l.EmployeeID
		if l.Employee != nil && l.Employee.User != nil {
			name = l.Employee.User.Name
		}

		event := cal.AddEvent(l.LeaveRequestID + "@staffdesk")
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(l.StartDate.Time)
		event.SetAllDayEndAt(l.EndDate.AddDays(1).Time)
		event.SetSummary(fmt.Sprintf("%s · %s", name, leaveTypeLabel(l.LeaveType)))
		desc := fmt.Sprintf("%d 个工作日", l.Days)
		if l.Reason != "" {
			desc += "\n" + l.Reason
		}
		event.SetDescription(desc)
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("leave_%04d-%02d.ics", req.Year, req.Month)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func attendanceStatusLabel(status string) string {
	switch status {
	case model.AttendancePresent:
		return "出勤"
	case model.AttendanceLate:
		return "迟到"
	case model.AttendanceHalfDay:
		return "半天"
	case model.AttendanceAbsent:
		return "缺勤"
	}
	return status
}
