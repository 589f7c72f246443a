// createadmin 创建初始管理员账号。
//
//	go run ./cmd/createadmin -email admin@example.com -name "Admin User"
//
// 密码取自 -password，未提供时读取环境变量 STAFF_ADMIN_PASSWORD。
// 数据库需已由服务端启动时完成迁移。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"staffdesk/config"
	"staffdesk/internal/repository"
	"staffdesk/internal/service"
	"staffdesk/pkg/database"
	applogger "staffdesk/pkg/logger"
)

func main() {
	email := flag.String("email", "admin@example.com", "管理员邮箱")
	name := flag.String("name", "Admin User", "管理员姓名")
	password := flag.String("password", "", "管理员密码（缺省读取 STAFF_ADMIN_PASSWORD）")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("STAFF_ADMIN_PASSWORD")
	}
	if *password == "" {
		fmt.Fprintln(os.Stderr, "未提供管理员密码：使用 -password 或设置 STAFF_ADMIN_PASSWORD")
		os.Exit(2)
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := service.EnsureAdmin(ctx, repository.NewRepository(db), *name, *email, *password, logger)
	if err != nil {
		logger.Fatal("创建管理员失败", zap.Error(err))
	}
	if created {
		fmt.Printf("管理员账号已创建: %s\n", *email)
	} else {
		fmt.Printf("管理员账号已存在: %s\n", *email)
	}
}
