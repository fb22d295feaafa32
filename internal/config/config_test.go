package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults 无配置文件时使用默认值
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3600, cfg.CheckInterval)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "qq.com", cfg.EmailDomain)
	assert.Empty(t, cfg.Bots)
}

// TestLoadFile YAML 字段覆盖默认值
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
check_interval: 600
data_dir: /tmp/safeguard
email_domain: example.com
admins:
  - "10001"
default_warn_message: "{uid} 请冒泡"
smtp:
  host: smtp.example.com
  port: 587
  user: bot@example.com
history:
  driver: sqlite
  dsn: data/history.db
bots:
  - id: main
    base_url: http://127.0.0.1:5700
    access_token: secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.CheckInterval)
	assert.Equal(t, "/tmp/safeguard", cfg.DataDir)
	assert.Equal(t, "example.com", cfg.EmailDomain)
	assert.True(t, cfg.IsAdmin("10001"))
	assert.False(t, cfg.IsAdmin("10002"))
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	require.Len(t, cfg.Bots, 1)
	assert.Equal(t, "main", cfg.Bots[0].ID)
}

// TestEnvOverride 环境变量优先于文件
func TestEnvOverride(t *testing.T) {
	t.Setenv("SAFEGUARD_CHECK_INTERVAL", "120")
	t.Setenv("SAFEGUARD_SMTP_PASSWORD", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.CheckInterval)
	assert.Equal(t, "env-secret", cfg.SMTP.Password)
}

// TestValidate 非法配置在启动时报错
func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.CheckInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.History.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.History.Driver = "mysql"
	assert.Error(t, cfg.Validate(), "mysql 需要 dsn")

	cfg = Default()
	cfg.Bots = []BotConfig{{ID: "main"}}
	assert.Error(t, cfg.Validate(), "缺 base_url 应报错")
}

// TestBuildBots 配置列表转换为注册表
func TestBuildBots(t *testing.T) {
	cfg := Default()
	cfg.Bots = []BotConfig{{ID: "main", BaseURL: "http://127.0.0.1:5700"}}
	reg, err := cfg.BuildBots()
	require.NoError(t, err)
	assert.NotNil(t, reg.Resolve("main"))
}
