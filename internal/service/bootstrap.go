package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

const minPasswordLen = 8

var ErrWeakPassword = fmt.Errorf("密码长度至少 %d 位", minPasswordLen)

// EnsureAdmin 创建初始管理员账号；邮箱已存在时不做修改并返回 created=false。
// 管理员只有用户账号，没有员工档案。
func EnsureAdmin(ctx context.Context, repo *repository.Repository, name, email, password string, logger *zap.Logger) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < minPasswordLen {
		return false, ErrWeakPassword
	}

	existing, err := repo.User.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("管理员账号已存在，跳过创建", zap.String("email", email), zap.String("role", existing.Role))
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("生成密码哈希失败: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}
	if err := repo.User.Create(ctx, user); err != nil {
		return false, err
	}

	logger.Info("管理员账号已创建", zap.String("user_id", user.UserID), zap.String("email", email))
	return true, nil
}
