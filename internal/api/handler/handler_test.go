package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/service"
	"staffdesk/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult   *dto.TokenResponse
	loginErr      error
	refreshResult *dto.TokenResponse
	refreshErr    error
	logoutErr     error
	meResult      *dto.UserResponse
	meErr         error
	changePassErr error

	gotJTI    string
	gotExp    time.Time
	gotUserID string
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Refresh(_ context.Context, _ *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	return m.refreshResult, m.refreshErr
}
func (m *mockAuthService) Logout(_ context.Context, jti string, exp time.Time) error {
	m.gotJTI, m.gotExp = jti, exp
	return m.logoutErr
}
func (m *mockAuthService) Me(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.meResult, m.meErr
}
func (m *mockAuthService) ChangePassword(_ context.Context, userID, jti string, exp time.Time, _ *dto.ChangePasswordRequest) error {
	m.gotUserID, m.gotJTI, m.gotExp = userID, jti, exp
	return m.changePassErr
}

// ── Mock EmployeeService ──

type mockEmployeeService struct {
	resetResult *dto.ResetPasswordResponse
	err         error
	gotRole     string
	gotCallerID string
}

func (m *mockEmployeeService) Create(_ context.Context, _ *dto.CreateEmployeeRequest, _ string) (*dto.EmployeeResponse, error) {
	return nil, m.err
}
func (m *mockEmployeeService) GetByID(_ context.Context, _ *service.Caller, _ string) (*dto.EmployeeResponse, error) {
	return nil, m.err
}
func (m *mockEmployeeService) List(_ context.Context, _ *service.Caller, _ *dto.EmployeeListRequest) ([]dto.EmployeeResponse, int64, error) {
	return nil, 0, m.err
}
func (m *mockEmployeeService) Update(_ context.Context, _ string, _ *dto.UpdateEmployeeRequest, _ string) (*dto.EmployeeResponse, error) {
	return nil, m.err
}
func (m *mockEmployeeService) Delete(_ context.Context, _ string, _ string) error {
	return m.err
}
func (m *mockEmployeeService) AssignRole(_ context.Context, _ string, req *dto.AssignRoleRequest, callerID string) error {
	m.gotRole, m.gotCallerID = req.Role, callerID
	return m.err
}
func (m *mockEmployeeService) ResetPassword(_ context.Context, _ string, callerID string) (*dto.ResetPasswordResponse, error) {
	m.gotCallerID = callerID
	return m.resetResult, m.err
}

// ── Mock DepartmentService ──

type mockDepartmentService struct {
	stats *dto.DepartmentStatsResponse
	err   error
}

func (m *mockDepartmentService) Create(_ context.Context, _ *dto.CreateDepartmentRequest, _ string) (*dto.DepartmentDetailResponse, error) {
	return nil, m.err
}
func (m *mockDepartmentService) GetByID(_ context.Context, _ string) (*dto.DepartmentDetailResponse, error) {
	return nil, m.err
}
func (m *mockDepartmentService) List(_ context.Context, _ *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error) {
	return nil, m.err
}
func (m *mockDepartmentService) Update(_ context.Context, _ string, _ *dto.UpdateDepartmentRequest, _ string) (*dto.DepartmentDetailResponse, error) {
	return nil, m.err
}
func (m *mockDepartmentService) Delete(_ context.Context, _ string, _ string) error {
	return m.err
}
func (m *mockDepartmentService) GetMembers(_ context.Context, _ *service.Caller, _ string) ([]dto.EmployeeResponse, error) {
	return nil, m.err
}
func (m *mockDepartmentService) Stats(_ context.Context, _ *service.Caller, _ string) (*dto.DepartmentStatsResponse, error) {
	return m.stats, m.err
}

// ── Mock LeaveService ──

type mockLeaveService struct {
	result    *dto.LeaveResponse
	list      []dto.LeaveResponse
	total     int64
	err       error
	gotCaller *service.Caller
}

func (m *mockLeaveService) Submit(_ context.Context, caller *service.Caller, _ *dto.SubmitLeaveRequest) (*dto.LeaveResponse, error) {
	m.gotCaller = caller
	return m.result, m.err
}
func (m *mockLeaveService) Get(_ context.Context, _ *service.Caller, _ string) (*dto.LeaveResponse, error) {
	return m.result, m.err
}
func (m *mockLeaveService) List(_ context.Context, _ *service.Caller, _ *dto.LeaveListRequest) ([]dto.LeaveResponse, int64, error) {
	return m.list, m.total, m.err
}
func (m *mockLeaveService) Update(_ context.Context, _ *service.Caller, _ string, _ *dto.UpdateLeaveRequest) (*dto.LeaveResponse, error) {
	return m.result, m.err
}
func (m *mockLeaveService) Delete(_ context.Context, _ *service.Caller, _ string) error {
	return m.err
}
func (m *mockLeaveService) Decide(_ context.Context, _ *service.Caller, _ string, _ *dto.DecideLeaveRequest) (*dto.LeaveResponse, error) {
	return m.result, m.err
}
func (m *mockLeaveService) Calendar(_ context.Context, _ *service.Caller, _ *dto.LeaveCalendarRequest) ([]dto.LeaveResponse, error) {
	return m.list, m.err
}

// ── Mock AttendanceService ──

type mockAttendanceService struct {
	result *dto.AttendanceResponse
	err    error
}

func (m *mockAttendanceService) CheckIn(_ context.Context, _ *service.Caller, _ *dto.CheckInRequest) (*dto.AttendanceResponse, error) {
	return m.result, m.err
}
func (m *mockAttendanceService) CheckOut(_ context.Context, _ *service.Caller, _ *dto.CheckInRequest) (*dto.AttendanceResponse, error) {
	return m.result, m.err
}
func (m *mockAttendanceService) GetDay(_ context.Context, _ *service.Caller, _, _ string) (*dto.AttendanceResponse, error) {
	return m.result, m.err
}
func (m *mockAttendanceService) List(_ context.Context, _ *service.Caller, _ *dto.AttendanceListRequest) ([]dto.AttendanceResponse, int64, error) {
	return nil, 0, m.err
}
func (m *mockAttendanceService) Upsert(_ context.Context, _ *service.Caller, _ *dto.UpsertAttendanceRequest) (*dto.AttendanceResponse, error) {
	return m.result, m.err
}
func (m *mockAttendanceService) Report(_ context.Context, _ *service.Caller, _ *dto.AttendanceMonthRequest) (*dto.AttendanceReportResponse, error) {
	return nil, m.err
}
func (m *mockAttendanceService) Stats(_ context.Context, _ *service.Caller, _ *dto.AttendanceStatsRequest) (*dto.AttendanceStatsResponse, error) {
	return nil, m.err
}

// ── Mock NotificationService ──

type mockNotificationService struct {
	listResult *dto.NotificationListResponse
	markAll    *dto.MarkAllReadResponse
	err        error
	gotUserID  string
	gotID      string
}

func (m *mockNotificationService) List(_ context.Context, userID string, _ *dto.NotificationListRequest) (*dto.NotificationListResponse, error) {
	m.gotUserID = userID
	return m.listResult, m.err
}
func (m *mockNotificationService) MarkRead(_ context.Context, userID, id string) error {
	m.gotUserID, m.gotID = userID, id
	return m.err
}
func (m *mockNotificationService) MarkAllRead(_ context.Context, userID string) (*dto.MarkAllReadResponse, error) {
	m.gotUserID = userID
	return m.markAll, m.err
}
func (m *mockNotificationService) Delete(_ context.Context, userID, id string) error {
	m.gotUserID, m.gotID = userID, id
	return m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportAttendance(_ context.Context, _ *service.Caller, _ *dto.AttendanceMonthRequest) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportLeaveCalendar(_ context.Context, _ *service.Caller, _ *dto.LeaveCalendarRequest) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

var (
	employeeCaller = &service.Caller{UserID: "u-emp", Role: model.RoleEmployee, Name: "Alice", EmployeeID: "e-emp", DepartmentID: "d-1"}
	managerCaller  = &service.Caller{UserID: "u-mgr", Role: model.RoleManager, Name: "Bob", EmployeeID: "e-mgr", DepartmentID: "d-1", ManagedDepartmentID: "d-1"}
)

// setAuth 模拟 JWTAuth + LoadCaller 写入的上下文
func setAuth(c *gin.Context, caller *service.Caller) {
	c.Set(CtxUserID, caller.UserID)
	c.Set(CtxRole, caller.Role)
	c.Set(CtxCaller, caller)
	c.Set(CtxTokenJTI, "test-jti")
	c.Set(CtxTokenExp, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
}

func withAuth(caller *service.Caller, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAuth(c, caller)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func doRequest(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("期望 data 为对象，实际: %#v", resp.Data)
	}
	return m
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{
		loginResult: &dto.TokenResponse{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			ExpiresIn:    900,
		},
	}
	h := NewAuthHandler(mock)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := doRequest(r, "POST", "/auth/login", jsonBody(dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "Test1234",
	}))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
	if dataMap(t, resp)["access_token"] != "test-access-token" {
		t.Errorf("access_token 不符: %v", resp.Data)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := doRequest(r, "POST", "/auth/login", bytes.NewReader([]byte("invalid json")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 10001 {
		t.Errorf("expected error code 10001, got %d", resp.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{loginErr: service.ErrInvalidCredentials})

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := doRequest(r, "POST", "/auth/login", jsonBody(dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 11001 {
		t.Errorf("expected error code 11001, got %d", resp.Code)
	}
}

func TestAuthHandler_Refresh_MissingToken(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	r := gin.New()
	r.POST("/auth/refresh", h.Refresh)
	w := doRequest(r, "POST", "/auth/refresh", jsonBody(map[string]string{}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthHandler_Refresh_Invalid(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{refreshErr: service.ErrInvalidRefreshToken})

	r := gin.New()
	r.POST("/auth/refresh", h.Refresh)
	w := doRequest(r, "POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "revoked"}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 11002 {
		t.Errorf("expected error code 11002, got %d", resp.Code)
	}
}

func TestAuthHandler_Logout_PassesTokenMeta(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)

	r := gin.New()
	r.POST("/auth/logout", withAuth(employeeCaller, h.Logout))
	w := doRequest(r, "POST", "/auth/logout", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.gotJTI != "test-jti" {
		t.Errorf("期望 jti=test-jti，实际=%q", mock.gotJTI)
	}
	if mock.gotExp.IsZero() {
		t.Error("期望传入 Token 过期时间")
	}
}

func TestAuthHandler_Me_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	r := gin.New()
	r.GET("/auth/me", h.Me)
	w := doRequest(r, "GET", "/auth/me", nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthHandler_ChangePassword_Success(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)

	r := gin.New()
	r.PUT("/auth/change-password", withAuth(employeeCaller, h.ChangePassword))
	w := doRequest(r, "PUT", "/auth/change-password", jsonBody(dto.ChangePasswordRequest{
		OldPassword: "Old12345",
		NewPassword: "New12345",
	}))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.gotUserID != employeeCaller.UserID || mock.gotJTI != "test-jti" {
		t.Errorf("期望传入当前用户与 jti，实际 user=%q jti=%q", mock.gotUserID, mock.gotJTI)
	}
}

func TestAuthHandler_ChangePassword_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		err      error
		wantHTTP int
		wantCode int
	}{
		{"新密码过短", dto.ChangePasswordRequest{OldPassword: "Old12345", NewPassword: "weak"}, nil, http.StatusBadRequest, 10001},
		{"原密码错误", dto.ChangePasswordRequest{OldPassword: "Old12345", NewPassword: "New12345"}, service.ErrWrongPassword, http.StatusBadRequest, 11004},
		{"新旧相同", dto.ChangePasswordRequest{OldPassword: "Same1234", NewPassword: "Same1234"}, service.ErrSamePassword, http.StatusBadRequest, 11006},
		{"用户不存在", dto.ChangePasswordRequest{OldPassword: "Old12345", NewPassword: "New12345"}, service.ErrUserNotFound, http.StatusNotFound, 11003},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{changePassErr: tt.err})
			r := gin.New()
			r.PUT("/auth/change-password", withAuth(employeeCaller, h.ChangePassword))
			w := doRequest(r, "PUT", "/auth/change-password", jsonBody(tt.body))

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// EmployeeHandler / DepartmentHandler Tests
// ═══════════════════════════════════════════════════════════

var adminCaller = &service.Caller{UserID: "u-admin", Role: model.RoleAdmin, Name: "Admin"}

func TestEmployeeHandler_AssignRole(t *testing.T) {
	mock := &mockEmployeeService{}
	h := NewEmployeeHandler(mock)

	r := gin.New()
	r.PUT("/employees/:id/role", withAuth(adminCaller, h.AssignRole))

	w := doRequest(r, "PUT", "/employees/e-1/role", jsonBody(dto.AssignRoleRequest{Role: model.RoleManager}))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.gotRole != model.RoleManager || mock.gotCallerID != adminCaller.UserID {
		t.Errorf("期望 role=manager operator=%s，实际 role=%q operator=%q", adminCaller.UserID, mock.gotRole, mock.gotCallerID)
	}

	w = doRequest(r, "PUT", "/employees/e-1/role", jsonBody(map[string]string{"role": "owner"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法角色 expected 400, got %d", w.Code)
	}
}

func TestEmployeeHandler_AssignRole_Self(t *testing.T) {
	h := NewEmployeeHandler(&mockEmployeeService{err: service.ErrSelfRoleChange})

	r := gin.New()
	r.PUT("/employees/:id/role", withAuth(adminCaller, h.AssignRole))
	w := doRequest(r, "PUT", "/employees/e-1/role", jsonBody(dto.AssignRoleRequest{Role: model.RoleEmployee}))

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 12007 {
		t.Errorf("expected error code 12007, got %d", resp.Code)
	}
}

func TestEmployeeHandler_ResetPassword(t *testing.T) {
	mock := &mockEmployeeService{resetResult: &dto.ResetPasswordResponse{TempPassword: "a2bcdefgh3jk"}}
	h := NewEmployeeHandler(mock)

	r := gin.New()
	r.POST("/employees/:id/reset-password", withAuth(adminCaller, h.ResetPassword))
	w := doRequest(r, "POST", "/employees/e-1/reset-password", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if dataMap(t, parseResponse(w))["temp_password"] != "a2bcdefgh3jk" {
		t.Errorf("响应应返回临时密码: %s", w.Body.String())
	}

	h = NewEmployeeHandler(&mockEmployeeService{err: service.ErrEmployeeNotFound})
	r = gin.New()
	r.POST("/employees/:id/reset-password", withAuth(adminCaller, h.ResetPassword))
	if w := doRequest(r, "POST", "/employees/missing/reset-password", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDepartmentHandler_GetStats(t *testing.T) {
	stats := &dto.DepartmentStatsResponse{DepartmentID: "d-1", Name: "研发部", TotalEmployees: 3}
	h := NewDepartmentHandler(&mockDepartmentService{stats: stats})

	r := gin.New()
	r.GET("/departments/:id/stats", withAuth(managerCaller, h.GetStats))
	w := doRequest(r, "GET", "/departments/d-1/stats", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if dataMap(t, parseResponse(w))["total_employees"] != float64(3) {
		t.Errorf("total_employees 不符: %s", w.Body.String())
	}

	h = NewDepartmentHandler(&mockDepartmentService{err: service.ErrDepartmentForbidden})
	r = gin.New()
	r.GET("/departments/:id/stats", withAuth(managerCaller, h.GetStats))
	w = doRequest(r, "GET", "/departments/d-2/stats", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 13005 {
		t.Errorf("expected error code 13005, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// LeaveHandler Tests
// ═══════════════════════════════════════════════════════════

func validSubmit() dto.SubmitLeaveRequest {
	return dto.SubmitLeaveRequest{
		LeaveType: "vacation",
		StartDate: "2026-03-09",
		EndDate:   "2026-03-13",
		Reason:    "family trip",
	}
}

func TestLeaveHandler_Submit_Created(t *testing.T) {
	mock := &mockLeaveService{result: &dto.LeaveResponse{ID: "l-1", Status: "pending", Days: 5}}
	h := NewLeaveHandler(mock, &mockExportService{})

	r := gin.New()
	r.POST("/leaves", withAuth(employeeCaller, h.Submit))
	w := doRequest(r, "POST", "/leaves", jsonBody(validSubmit()))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.gotCaller != employeeCaller {
		t.Error("期望 Service 收到上下文中的调用者")
	}
	if dataMap(t, parseResponse(w))["status"] != "pending" {
		t.Error("期望返回 pending 状态")
	}
}

func TestLeaveHandler_Submit_Validation(t *testing.T) {
	cases := map[string]func(*dto.SubmitLeaveRequest){
		"unknown type":  func(r *dto.SubmitLeaveRequest) { r.LeaveType = "sabbatical" },
		"bad date":      func(r *dto.SubmitLeaveRequest) { r.StartDate = "03/09/2026" },
		"missing end":   func(r *dto.SubmitLeaveRequest) { r.EndDate = "" },
		"reason length": func(r *dto.SubmitLeaveRequest) { r.Reason = strings.Repeat("x", 501) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewLeaveHandler(&mockLeaveService{}, &mockExportService{})
			body := validSubmit()
			mutate(&body)

			r := gin.New()
			r.POST("/leaves", withAuth(employeeCaller, h.Submit))
			w := doRequest(r, "POST", "/leaves", jsonBody(body))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if resp := parseResponse(w); resp.Code != 10001 {
				t.Errorf("expected error code 10001, got %d", resp.Code)
			}
		})
	}
}

func TestLeaveHandler_Submit_InsufficientBalance(t *testing.T) {
	mock := &mockLeaveService{err: &service.InsufficientBalanceError{
		LeaveType: model.LeaveVacation,
		Available: 2,
		Requested: 5,
	}}
	h := NewLeaveHandler(mock, &mockExportService{})

	r := gin.New()
	r.POST("/leaves", withAuth(employeeCaller, h.Submit))
	w := doRequest(r, "POST", "/leaves", jsonBody(validSubmit()))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 14006 {
		t.Errorf("expected error code 14006, got %d", resp.Code)
	}
	data := dataMap(t, resp)
	if data["available"] != float64(2) || data["requested"] != float64(5) {
		t.Errorf("余额详情不符: %v", data)
	}
	if data["leave_type"] != "vacation" {
		t.Errorf("期望 leave_type=vacation，实际=%v", data["leave_type"])
	}
}

func TestLeaveHandler_Submit_OverlapConflict(t *testing.T) {
	mock := &mockLeaveService{err: &service.OverlapConflictError{Conflicts: []dto.LeaveConflict{
		{ID: "l-9", StartDate: "2026-03-10", EndDate: "2026-03-11", Status: "pending"},
		{ID: "l-8", StartDate: "2026-03-12", EndDate: "2026-03-20", Status: "approved"},
	}}}
	h := NewLeaveHandler(mock, &mockExportService{})

	r := gin.New()
	r.POST("/leaves", withAuth(employeeCaller, h.Submit))
	w := doRequest(r, "POST", "/leaves", jsonBody(validSubmit()))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 14007 {
		t.Errorf("expected error code 14007, got %d", resp.Code)
	}
	conflicts, ok := dataMap(t, resp)["conflicts"].([]interface{})
	if !ok || len(conflicts) != 2 {
		t.Fatalf("期望返回全部 2 条冲突，实际: %v", resp.Data)
	}
}

func TestLeaveHandler_Submit_NoCaller(t *testing.T) {
	h := NewLeaveHandler(&mockLeaveService{}, &mockExportService{})

	r := gin.New()
	r.POST("/leaves", h.Submit)
	w := doRequest(r, "POST", "/leaves", jsonBody(validSubmit()))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestLeaveHandler_List_Paginated(t *testing.T) {
	mock := &mockLeaveService{
		list:  []dto.LeaveResponse{{ID: "l-1"}, {ID: "l-2"}},
		total: 45,
	}
	h := NewLeaveHandler(mock, &mockExportService{})

	r := gin.New()
	r.GET("/leaves", withAuth(managerCaller, h.List))
	w := doRequest(r, "GET", "/leaves?status=pending&page=2&page_size=20", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	pagination, _ := dataMap(t, parseResponse(w))["pagination"].(map[string]interface{})
	if pagination["total"] != float64(45) || pagination["total_pages"] != float64(3) {
		t.Errorf("分页信息不符: %v", pagination)
	}
}

func TestLeaveHandler_List_BadStatus(t *testing.T) {
	h := NewLeaveHandler(&mockLeaveService{}, &mockExportService{})

	r := gin.New()
	r.GET("/leaves", withAuth(managerCaller, h.List))
	w := doRequest(r, "GET", "/leaves?status=archived", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLeaveHandler_Decide_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"not found", service.ErrLeaveNotFound, http.StatusNotFound, 14001},
		{"already decided", service.ErrAlreadyDecided, http.StatusConflict, 14008},
		{"manager request needs admin", service.ErrDecisionForbidden, http.StatusForbidden, 14011},
		{"outside scope", service.ErrNoPermission, http.StatusForbidden, 14013},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLeaveHandler(&mockLeaveService{err: tt.err}, &mockExportService{})

			r := gin.New()
			r.PUT("/leaves/:id/decision", withAuth(managerCaller, h.Decide))
			w := doRequest(r, "PUT", "/leaves/l-1/decision", jsonBody(dto.DecideLeaveRequest{Status: "approved"}))

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestLeaveHandler_Decide_InvalidStatus(t *testing.T) {
	h := NewLeaveHandler(&mockLeaveService{}, &mockExportService{})

	r := gin.New()
	r.PUT("/leaves/:id/decision", withAuth(managerCaller, h.Decide))
	w := doRequest(r, "PUT", "/leaves/l-1/decision", jsonBody(dto.DecideLeaveRequest{Status: "pending"}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLeaveHandler_UpdateDelete_NotPending(t *testing.T) {
	h := NewLeaveHandler(&mockLeaveService{err: service.ErrNotPending}, &mockExportService{})

	r := gin.New()
	r.PUT("/leaves/:id", withAuth(employeeCaller, h.Update))
	r.DELETE("/leaves/:id", withAuth(employeeCaller, h.Delete))

	reason := "changed plans"
	w := doRequest(r, "PUT", "/leaves/l-1", jsonBody(dto.UpdateLeaveRequest{Reason: &reason}))
	if w.Code != http.StatusConflict || parseResponse(w).Code != 14010 {
		t.Errorf("update: expected 409/14010, got %d/%d", w.Code, parseResponse(w).Code)
	}

	w = doRequest(r, "DELETE", "/leaves/l-1", nil)
	if w.Code != http.StatusConflict || parseResponse(w).Code != 14010 {
		t.Errorf("delete: expected 409/14010, got %d/%d", w.Code, parseResponse(w).Code)
	}
}

func TestLeaveHandler_CalendarICS(t *testing.T) {
	export := &mockExportService{
		buf:      bytes.NewBufferString("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"),
		filename: "leave-2026-03.ics",
	}
	h := NewLeaveHandler(&mockLeaveService{}, export)

	r := gin.New()
	r.GET("/leaves/calendar.ics", withAuth(managerCaller, h.CalendarICS))
	w := doRequest(r, "GET", "/leaves/calendar.ics?year=2026&month=3", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("expected text/calendar, got %s", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "leave-2026-03.ics") {
		t.Errorf("Content-Disposition 缺少文件名: %s", w.Header().Get("Content-Disposition"))
	}
}

// ═══════════════════════════════════════════════════════════
// AttendanceHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAttendanceHandler_CheckIn_EmptyBody(t *testing.T) {
	mock := &mockAttendanceService{result: &dto.AttendanceResponse{ID: "a-1", Status: "late", CheckIn: "09:12"}}
	h := NewAttendanceHandler(mock)

	r := gin.New()
	r.POST("/attendance/check-in", withAuth(employeeCaller, h.CheckIn))
	w := doRequest(r, "POST", "/attendance/check-in", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if dataMap(t, parseResponse(w))["status"] != "late" {
		t.Error("期望返回 late")
	}
}

func TestAttendanceHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"check in twice", "/attendance/check-in", service.ErrAlreadyCheckedIn, http.StatusConflict, 15001},
		{"check out without check in", "/attendance/check-out", service.ErrNotCheckedIn, http.StatusBadRequest, 15002},
		{"check out twice", "/attendance/check-out", service.ErrAlreadyCheckedOut, http.StatusConflict, 15003},
		{"no employee record", "/attendance/check-in", service.ErrEmployeeRecordMissing, http.StatusBadRequest, 15008},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAttendanceHandler(&mockAttendanceService{err: tt.err})

			r := gin.New()
			r.POST("/attendance/check-in", withAuth(employeeCaller, h.CheckIn))
			r.POST("/attendance/check-out", withAuth(employeeCaller, h.CheckOut))
			w := doRequest(r, "POST", tt.path, jsonBody(dto.CheckInRequest{Notes: "office"}))

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// NotificationHandler Tests
// ═══════════════════════════════════════════════════════════

func TestNotificationHandler_List_UsesCurrentUser(t *testing.T) {
	mock := &mockNotificationService{listResult: &dto.NotificationListResponse{UnreadCount: 3}}
	h := NewNotificationHandler(mock, nil, time.Second)

	r := gin.New()
	r.GET("/notifications", withAuth(managerCaller, h.List))
	w := doRequest(r, "GET", "/notifications?status=unread", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.gotUserID != managerCaller.UserID {
		t.Errorf("期望按当前用户查询，实际=%q", mock.gotUserID)
	}
	if dataMap(t, parseResponse(w))["unread_count"] != float64(3) {
		t.Error("期望返回 unread_count=3")
	}
}

func TestNotificationHandler_MarkRead_NotFound(t *testing.T) {
	mock := &mockNotificationService{err: service.ErrNotificationNotFound}
	h := NewNotificationHandler(mock, nil, time.Second)

	r := gin.New()
	r.PUT("/notifications/:id/read", withAuth(employeeCaller, h.MarkRead))
	w := doRequest(r, "PUT", "/notifications/n-404/read", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 18001 {
		t.Errorf("expected error code 18001, got %d", resp.Code)
	}
	if mock.gotID != "n-404" {
		t.Errorf("期望传入路径参数 id，实际=%q", mock.gotID)
	}
}

func TestNotificationHandler_MarkAllRead(t *testing.T) {
	mock := &mockNotificationService{markAll: &dto.MarkAllReadResponse{Updated: 4}}
	h := NewNotificationHandler(mock, nil, time.Second)

	r := gin.New()
	r.PUT("/notifications/read-all", withAuth(employeeCaller, h.MarkAllRead))
	w := doRequest(r, "PUT", "/notifications/read-all", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if dataMap(t, parseResponse(w))["updated"] != float64(4) {
		t.Error("期望 updated=4")
	}
}

func TestNotificationHandler_Stream_Disabled(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationService{}, nil, time.Second)

	r := gin.New()
	r.GET("/notifications/stream", withAuth(employeeCaller, h.Stream))
	w := doRequest(r, "GET", "/notifications/stream", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 18002 {
		t.Errorf("expected error code 18002, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportAttendance_Success(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("fake-excel-content"),
		filename: "attendance-2026-03.xlsx",
	}
	h := NewExportHandler(mock)

	r := gin.New()
	r.GET("/export/attendance", withAuth(managerCaller, h.ExportAttendance))
	w := doRequest(r, "GET", "/export/attendance?year=2026&month=3", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("expected xlsx content type, got %s", ct)
	}
	if w.Body.String() != "fake-excel-content" {
		t.Error("响应体应为导出文件内容")
	}
}

func TestExportHandler_ExportAttendance_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"forbidden", service.ErrAttendanceForbidden, http.StatusForbidden, 17002},
		{"generate failed", service.ErrExportGenerateFail, http.StatusInternalServerError, 17001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewExportHandler(&mockExportService{err: tt.err})

			r := gin.New()
			r.GET("/export/attendance", withAuth(managerCaller, h.ExportAttendance))
			w := doRequest(r, "GET", "/export/attendance?year=2026&month=3", nil)

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}
