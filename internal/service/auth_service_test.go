package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"staffdesk/config"
	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
	"staffdesk/pkg/jwt"
)

func setupTestAuthService() (AuthService, *mockUserRepo, *mockEmployeeRepo) {
	authCfg := &config.AuthConfig{
		JWTSecret:       "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}

	userRepo := newMockUserRepo()
	empRepo := newMockEmployeeRepo()
	repo := &repository.Repository{
		User:       userRepo,
		Department: newMockDeptRepo(),
		Employee:   empRepo,
	}

	svc := NewAuthService(repo, jwt.NewManager(authCfg), nil, zap.NewNop())
	return svc, userRepo, empRepo
}

func createTestUser(userRepo *mockUserRepo, email, password, role string) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &model.User{
		UserID:       "user-" + email,
		Name:         "测试用户",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	userRepo.users[user.UserID] = user
	return user
}

// ── 登录测试 ──

func TestLogin_Success(t *testing.T) {
	svc, userRepo, empRepo := setupTestAuthService()
	user := createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)
	empRepo.employees["emp-1"] = &model.Employee{
		EmployeeID:   "emp-1",
		UserID:       user.UserID,
		DepartmentID: strPtr("valid-dept-id"),
		Department:   &model.Department{DepartmentID: "valid-dept-id", Name: "测试部门"},
	}

	result, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@test.com",
		Password: "password123",
	})

	if err != nil {
		t.Fatalf("Login 应成功，但返回错误: %v", err)
	}
	if result.AccessToken == "" {
		t.Error("AccessToken 不应为空")
	}
	if result.RefreshToken == "" {
		t.Error("RefreshToken 不应为空")
	}
	if result.ExpiresIn != 900 {
		t.Errorf("期望 ExpiresIn=900，实际=%d", result.ExpiresIn)
	}
	if result.User.EmployeeID != "emp-1" {
		t.Errorf("期望 EmployeeID=emp-1，实际=%s", result.User.EmployeeID)
	}
	if result.User.Department == nil || result.User.Department.Name != "测试部门" {
		t.Errorf("期望返回所属部门，实际=%+v", result.User.Department)
	}
}

func TestLogin_AdminWithoutEmployeeRecord(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	createTestUser(userRepo, "root@test.com", "password123", model.RoleAdmin)

	result, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "root@test.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if result.User.Role != model.RoleAdmin {
		t.Errorf("期望 Role=admin，实际=%s", result.User.Role)
	}
	if result.User.EmployeeID != "" {
		t.Errorf("无员工档案时 EmployeeID 应为空，实际=%s", result.User.EmployeeID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@test.com",
		Password: "wrong_password",
	})

	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	svc, _, _ := setupTestAuthService()

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "nobody@test.com",
		Password: "password123",
	})

	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

// ── Refresh 测试 ──

func TestRefresh_Success(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	user := createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)

	loginResult, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@test.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 失败: %v", err)
	}

	result, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: loginResult.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if result.AccessToken == "" {
		t.Error("新 AccessToken 不应为空")
	}
	if result.User.ID != user.UserID {
		t.Errorf("期望 UserID=%s，实际=%s", user.UserID, result.User.ID)
	}
}

func TestRefresh_RoleFollowsDatabase(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	user := createTestUser(userRepo, "bob@test.com", "password123", model.RoleEmployee)

	loginResult, _ := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "bob@test.com",
		Password: "password123",
	})

	// 登录后被提升为经理
	user.Role = model.RoleManager

	result, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: loginResult.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if result.User.Role != model.RoleManager {
		t.Errorf("期望刷新后 Role=manager，实际=%s", result.User.Role)
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	svc, _, _ := setupTestAuthService()

	_, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: "invalid.token.string"})
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("期望 ErrInvalidRefreshToken，实际: %v", err)
	}
}

func TestRefresh_AccessTokenNotAllowed(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)

	loginResult, _ := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@test.com",
		Password: "password123",
	})

	// 使用 access token 尝试刷新（应拒绝）
	_, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: loginResult.AccessToken})
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("期望 ErrInvalidRefreshToken（access token 不能用于刷新），实际: %v", err)
	}
}

func TestRefresh_DeletedUser(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	user := createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)

	loginResult, _ := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@test.com",
		Password: "password123",
	})
	delete(userRepo.users, user.UserID)

	_, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: loginResult.RefreshToken})
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("期望 ErrInvalidRefreshToken，实际: %v", err)
	}
}

// ── Logout / Me ──

func TestLogout_WithoutRedisIsNoop(t *testing.T) {
	svc, _, _ := setupTestAuthService()

	if err := svc.Logout(context.Background(), "some-jti", time.Now().Add(time.Minute)); err != nil {
		t.Errorf("未启用 Redis 时 Logout 应直接成功，实际: %v", err)
	}
}

func TestMe_UserNotFound(t *testing.T) {
	svc, _, _ := setupTestAuthService()

	_, err := svc.Me(context.Background(), "missing")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// ── ChangePassword ──

// memoryBlacklist 内存版 Token 黑名单
type memoryBlacklist struct {
	revoked map[string]time.Duration
	err     error
}

func (m *memoryBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.revoked[jti] = ttl
	return nil
}

func (m *memoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, nil
}

func withBlacklist(svc AuthService) *memoryBlacklist {
	bl := &memoryBlacklist{revoked: make(map[string]time.Duration)}
	svc.(*authService).tokens = bl
	return bl
}

func TestChangePassword_Success(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	bl := withBlacklist(svc)
	user := createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.UserID, "jti-current", time.Now().Add(10*time.Minute), &dto.ChangePasswordRequest{
		OldPassword: "password123",
		NewPassword: "newpassword456",
	})
	if err != nil {
		t.Fatalf("ChangePassword 应成功: %v", err)
	}

	if _, err := svc.Login(ctx, &dto.LoginRequest{Email: "alice@test.com", Password: "password123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("旧密码应失效，实际: %v", err)
	}
	if _, err := svc.Login(ctx, &dto.LoginRequest{Email: "alice@test.com", Password: "newpassword456"}); err != nil {
		t.Errorf("新密码应可登录，实际: %v", err)
	}
	if ttl, ok := bl.revoked["jti-current"]; !ok || ttl <= 0 {
		t.Errorf("当前 Token 应加入黑名单，实际 ttl=%v ok=%v", ttl, ok)
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	bl := withBlacklist(svc)
	user := createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)
	before := user.PasswordHash

	err := svc.ChangePassword(context.Background(), user.UserID, "jti-current", time.Now().Add(time.Minute), &dto.ChangePasswordRequest{
		OldPassword: "not-my-password",
		NewPassword: "newpassword456",
	})
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("期望 ErrWrongPassword，实际: %v", err)
	}
	if userRepo.users[user.UserID].PasswordHash != before {
		t.Error("原密码错误时不应修改哈希")
	}
	if len(bl.revoked) != 0 {
		t.Error("失败时不应作废 Token")
	}
}

func TestChangePassword_Validation(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	user := createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)

	tests := []struct {
		name    string
		userID  string
		newPass string
		wantErr error
	}{
		{"新密码过短", user.UserID, "short", ErrWeakPassword},
		{"新旧相同", user.UserID, "password123", ErrSamePassword},
		{"用户不存在", "missing", "newpassword456", ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ChangePassword(context.Background(), tt.userID, "", time.Time{}, &dto.ChangePasswordRequest{
				OldPassword: "password123",
				NewPassword: tt.newPass,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}
}

func TestChangePassword_BlacklistFailureStillSucceeds(t *testing.T) {
	svc, userRepo, _ := setupTestAuthService()
	bl := withBlacklist(svc)
	bl.err = errors.New("redis down")
	user := createTestUser(userRepo, "alice@test.com", "password123", model.RoleEmployee)

	err := svc.ChangePassword(context.Background(), user.UserID, "jti-current", time.Now().Add(time.Minute), &dto.ChangePasswordRequest{
		OldPassword: "password123",
		NewPassword: "newpassword456",
	})
	if err != nil {
		t.Fatalf("密码已更新时黑名单失败不应报错，实际: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(userRepo.users[user.UserID].PasswordHash), []byte("newpassword456")) != nil {
		t.Error("新密码哈希应已写入")
	}
}
