package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

// ── SQLite 场景测试夹具 ──
//
// 每个测试独占一个内存库；时钟固定在 2026-03-04（周三）10:00 UTC。

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	repo  *repository.Repository
	pub   *recordingPublisher
	now   time.Time
	clock Clock

	leave        LeaveService
	balance      BalanceService
	notification NotificationService
	attendance   AttendanceService
	identity     IdentityService
	department   DepartmentService
	dashboard    DashboardService
	employee     EmployeeService
	export       ExportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}

	f := &fixture{
		t:   t,
		ctx: context.Background(),
		db:  db,
		pub: &recordingPublisher{},
		now: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	f.clock = Clock{Now: func() time.Time { return f.now }, Location: time.UTC}
	f.repo = repository.NewRepository(db)

	logger := zap.NewNop()
	ledger := newBalanceLedger(logger)
	notifier := NewNotifier(f.pub, f.clock, logger)

	f.identity = NewIdentityService(f.repo, logger)
	f.department = NewDepartmentService(f.repo, f.clock, logger)
	f.leave = NewLeaveService(f.repo, notifier, f.clock, logger)
	f.balance = NewBalanceService(f.repo, ledger, f.clock, logger)
	f.notification = NewNotificationService(f.repo, f.pub, f.clock, logger)
	f.attendance = NewAttendanceService(f.repo, f.clock, "09:00", logger)
	f.dashboard = NewDashboardService(f.repo, ledger, f.clock, logger)
	f.employee = NewEmployeeService(f.repo, f.clock, logger)
	f.export = NewExportService(f.repo, f.clock, logger)
	return f
}

// setClock 调整当前时间（同一天内的时分）
func (f *fixture) setClock(hour, minute int) {
	f.now = time.Date(f.now.Year(), f.now.Month(), f.now.Day(), hour, minute, 0, 0, time.UTC)
}

func (f *fixture) createUser(name, role string) *model.User {
	f.t.Helper()
	user := &model.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	if err := f.repo.User.Create(f.ctx, user); err != nil {
		f.t.Fatalf("创建用户 %s 失败: %v", name, err)
	}
	return user
}

func (f *fixture) createDepartment(name string, managerID *string) *model.Department {
	f.t.Helper()
	dept := &model.Department{Name: name, ManagerID: managerID, IsActive: true}
	dept.Version = 1
	if err := f.repo.Department.Create(f.ctx, dept); err != nil {
		f.t.Fatalf("创建部门 %s 失败: %v", name, err)
	}
	return dept
}

func (f *fixture) createEmployee(user *model.User, deptID *string) *model.Employee {
	f.t.Helper()
	emp := &model.Employee{
		UserID:       user.UserID,
		DepartmentID: deptID,
		Status:       model.EmployeeActive,
		JoinDate:     model.NewDate(2024, 1, 15),
	}
	emp.Version = 1
	if err := f.repo.Employee.Create(f.ctx, emp); err != nil {
		f.t.Fatalf("创建员工档案失败: %v", err)
	}
	return emp
}

// caller 通过 IdentityService 解析调用者，与 HTTP 层一致
func (f *fixture) caller(user *model.User) *Caller {
	f.t.Helper()
	c, err := f.identity.Resolve(f.ctx, user.UserID)
	if err != nil {
		f.t.Fatalf("解析调用者失败: %v", err)
	}
	return c
}

// setBalance 直接设置某类型余额（绕过 Create 时零值被默认值覆盖的问题）
func (f *fixture) setBalance(employeeID string, year int, t model.LeaveType, days int) {
	f.t.Helper()
	if err := f.repo.LeaveBalance.EnsureExists(f.ctx, employeeID, year); err != nil {
		f.t.Fatalf("初始化余额失败: %v", err)
	}
	b, err := f.repo.LeaveBalance.Get(f.ctx, employeeID, year)
	if err != nil {
		f.t.Fatalf("读取余额失败: %v", err)
	}
	b.Deduct(t, b.Get(t))
	b.Deduct(t, -days)
	if err := f.repo.LeaveBalance.SaveCounters(f.ctx, b); err != nil {
		f.t.Fatalf("写入余额失败: %v", err)
	}
}

func (f *fixture) balanceOf(employeeID string, year int) *model.LeaveBalance {
	f.t.Helper()
	b, err := f.repo.LeaveBalance.Get(f.ctx, employeeID, year)
	if err != nil {
		f.t.Fatalf("读取余额失败: %v", err)
	}
	return b
}

// org 常用组织结构：管理员、研发部经理（有员工档案）、研发部员工、市场部员工
type org struct {
	admin, manager, alice, bob   *model.User
	managerEmp, aliceEmp, bobEmp *model.Employee
	engineering, marketing       *model.Department
}

func (f *fixture) seedOrg() *org {
	f.t.Helper()
	o := &org{}
	o.admin = f.createUser("Admin", model.RoleAdmin)
	o.manager = f.createUser("Manager", model.RoleManager)
	o.alice = f.createUser("Alice", model.RoleEmployee)
	o.bob = f.createUser("Bob", model.RoleEmployee)

	o.engineering = f.createDepartment("研发部", &o.manager.UserID)
	o.marketing = f.createDepartment("市场部", nil)

	o.managerEmp = f.createEmployee(o.manager, &o.engineering.DepartmentID)
	o.aliceEmp = f.createEmployee(o.alice, &o.engineering.DepartmentID)
	o.bobEmp = f.createEmployee(o.bob, &o.marketing.DepartmentID)
	return o
}
