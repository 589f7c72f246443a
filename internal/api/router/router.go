package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"staffdesk/config"
	"staffdesk/internal/api/handler"
	"staffdesk/internal/api/middleware"
	"staffdesk/internal/model"
	"staffdesk/internal/service"
	"staffdesk/pkg/jwt"
	"staffdesk/pkg/redis"
)

// Deps 路由依赖
type Deps struct {
	Config   *config.Config
	Handler  *handler.Handler
	Identity service.IdentityService
	JWT      *jwt.Manager
	Redis    *redis.Client // 可为 nil
	Logger   *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	h := d.Handler

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(d.Config.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	approvers := middleware.RoleAuth(model.RoleAdmin, model.RoleManager)
	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(d.Redis, 10, time.Minute, d.Logger), h.Auth.Login)
			auth.POST("/refresh", middleware.RateLimit(d.Redis, 30, time.Minute, d.Logger), h.Auth.Refresh)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(d.JWT, d.Redis, d.Logger))
		authorized.Use(middleware.LoadCaller(d.Identity))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.PUT("/auth/change-password", h.Auth.ChangePassword)

			// 部门模块
			departments := authorized.Group("/departments")
			{
				departments.GET("", h.Department.ListDepartments)
				departments.GET("/:id", h.Department.GetDepartment)
				departments.GET("/:id/members", approvers, h.Department.GetMembers)
				departments.GET("/:id/stats", approvers, h.Department.GetStats)
				departments.POST("", adminOnly, h.Department.CreateDepartment)
				departments.PUT("/:id", adminOnly, h.Department.UpdateDepartment)
				departments.DELETE("/:id", adminOnly, h.Department.DeleteDepartment)
			}

			// 员工模块（Service 层按角色过滤）
			employees := authorized.Group("/employees")
			{
				employees.GET("", h.Employee.ListEmployees)
				employees.GET("/:id", h.Employee.GetEmployee)
				employees.POST("", adminOnly, h.Employee.CreateEmployee)
				employees.PUT("/:id", adminOnly, h.Employee.UpdateEmployee)
				employees.DELETE("/:id", adminOnly, h.Employee.DeleteEmployee)
				employees.PUT("/:id/role", adminOnly, h.Employee.AssignRole)
				employees.POST("/:id/reset-password", adminOnly, h.Employee.ResetPassword)
			}

			// 请假模块
			leaves := authorized.Group("/leaves")
			{
				leaves.POST("", h.Leave.Submit)
				leaves.GET("", h.Leave.List)
				leaves.GET("/calendar", h.Leave.Calendar)
				leaves.GET("/calendar.ics", h.Leave.CalendarICS)
				leaves.GET("/:id", h.Leave.Get)
				leaves.PUT("/:id", h.Leave.Update)
				leaves.DELETE("/:id", h.Leave.Delete)
				leaves.PUT("/:id/decision", approvers, h.Leave.Decide)
			}

			authorized.GET("/balances", h.Balance.Get)

			// 考勤模块
			attendance := authorized.Group("/attendance")
			{
				attendance.POST("/check-in", h.Attendance.CheckIn)
				attendance.POST("/check-out", h.Attendance.CheckOut)
				attendance.GET("/day", h.Attendance.GetDay)
				attendance.GET("", h.Attendance.List)
				attendance.PUT("", approvers, h.Attendance.Upsert)
				attendance.GET("/report", h.Attendance.Report)
				attendance.GET("/stats", h.Attendance.Stats)
			}

			// 通知模块
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.GET("/stream", h.Notification.Stream)
				notifications.PUT("/read-all", h.Notification.MarkAllRead)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
				notifications.DELETE("/:id", h.Notification.Delete)
			}

			authorized.GET("/dashboard", h.Dashboard.Get)

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/attendance", approvers, h.Export.ExportAttendance)
			}
		}
	}

	return r
}
