package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "sqlite"},
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef-secret"},
		App:      AppConfig{Timezone: "UTC", CheckInCutoff: "09:00", Realtime: "memory"},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("期望校验通过，实际: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := map[string]func(c *Config){
		"jwt_secret": func(c *Config) { c.Auth.JWTSecret = "" },
		"16 字符":      func(c *Config) { c.Auth.JWTSecret = "short" },
		"server.port":  func(c *Config) { c.Server.Port = 70000 },
		"db.driver":    func(c *Config) { c.Database.Driver = "mysql" },
		"check_in":     func(c *Config) { c.App.CheckInCutoff = "9am" },
		"app.realtime": func(c *Config) { c.App.Realtime = "kafka" },
	}
	for want, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: 期望校验失败", want)
			continue
		}
		if !strings.Contains(err.Error(), want) {
			t.Errorf("期望错误包含 %q，实际: %v", want, err)
		}
	}
}

func TestAppConfig_LocationFallback(t *testing.T) {
	c := &AppConfig{Timezone: "Not/AZone"}
	if c.Location() == nil {
		t.Fatal("Location 不应返回 nil")
	}
}
