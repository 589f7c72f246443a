package handler

import (
	"time"

	"staffdesk/internal/service"
	"staffdesk/pkg/realtime"
)

// sseHeartbeat SSE 心跳间隔，防止代理断开空闲连接
const sseHeartbeat = 25 * time.Second

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	Department   *DepartmentHandler
	Employee     *EmployeeHandler
	Leave        *LeaveHandler
	Balance      *BalanceHandler
	Attendance   *AttendanceHandler
	Notification *NotificationHandler
	Dashboard    *DashboardHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合；hub 为本进程的实时连接注册表
func NewHandler(svc *service.Service, hub *realtime.Hub) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		Department:   NewDepartmentHandler(svc.Department),
		Employee:     NewEmployeeHandler(svc.Employee),
		Leave:        NewLeaveHandler(svc.Leave, svc.Export),
		Balance:      NewBalanceHandler(svc.Balance),
		Attendance:   NewAttendanceHandler(svc.Attendance),
		Notification: NewNotificationHandler(svc.Notification, hub, sseHeartbeat),
		Dashboard:    NewDashboardHandler(svc.Dashboard),
		Export:       NewExportHandler(svc.Export),
	}
}
