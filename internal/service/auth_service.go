package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"staffdesk/internal/dto"
	"staffdesk/internal/repository"
	"staffdesk/pkg/jwt"
	"staffdesk/pkg/redis"
)

var (
	ErrInvalidCredentials  = errors.New("邮箱或密码错误")
	ErrInvalidRefreshToken = errors.New("刷新令牌无效或已失效")
	ErrWrongPassword       = errors.New("原密码错误")
	ErrSamePassword        = errors.New("新密码不能与原密码相同")
)

// tokenBlacklist Token 黑名单存储，由 *redis.Client 实现
type tokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	// Logout 将 Access Token 的 jti 加入黑名单（Redis 不可用时仅由客户端丢弃）
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	// ChangePassword 校验原密码后更新，并作废当前 Access Token
	ChangePassword(ctx context.Context, userID, jti string, expiresAt time.Time, req *dto.ChangePasswordRequest) error
}

type authService struct {
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	tokens tokenBlacklist // Redis 不可用时为 nil
	logger *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) AuthService {
	s := &authService{
		repo:   repo,
		jwtMgr: jwtMgr,
		logger: logger,
	}
	if rdb != nil {
		s.tokens = rdb
	}
	return s
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token 对
	return s.issueTokens(ctx, user.UserID, user.Role)
}

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("查询 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrInvalidRefreshToken
		}
	}

	// 角色以数据库为准，避免沿用旧 Token 中的角色
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 旧 Refresh Token 轮换后作废
	if s.tokens != nil && claims.ExpiresAt != nil {
		if err := s.tokens.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("作废旧 RefreshToken 失败", zap.Error(err))
		}
	}

	return s.issueTokens(ctx, user.UserID, user.Role)
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	return s.revoke(ctx, jti, expiresAt)
}

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	return s.userResponse(ctx, userID)
}

func (s *authService) ChangePassword(ctx context.Context, userID, jti string, expiresAt time.Time, req *dto.ChangePasswordRequest) error {
	if len(req.NewPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	if req.NewPassword == req.OldPassword {
		return ErrSamePassword
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return err
	}
	user.PasswordHash = string(hash)
	user.UpdatedBy = &userID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("修改密码失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	s.logger.Info("用户已修改密码", zap.String("user_id", userID))

	// 密码已落库，作废 Token 失败只记录
	if err := s.revoke(ctx, jti, expiresAt); err != nil {
		s.logger.Warn("作废当前 Token 失败", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// ── 辅助函数 ──

// revoke 将 jti 加入黑名单（Redis 不可用时仅由客户端丢弃）
func (s *authService) revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.tokens == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.tokens.BlacklistToken(ctx, jti, ttl); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) issueTokens(ctx context.Context, userID, role string) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(userID, role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(userID, role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	user, err := s.userResponse(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         *user,
	}, nil
}

func (s *authService) userResponse(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.UserResponse{
		ID:    user.UserID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}

	emp, err := s.repo.Employee.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		resp.EmployeeID = emp.EmployeeID
		if emp.Department != nil {
			resp.Department = &dto.DepartmentResponse{
				ID:   emp.Department.DepartmentID,
				Name: emp.Department.Name,
			}
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询员工档案失败", zap.Error(err))
		return nil, err
	}

	return resp, nil
}
