package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"safeguard/internal/notify"
	"safeguard/internal/platform"
)

// BotConfig 一个 OneBot 接入实例。
type BotConfig struct {
	ID          string `yaml:"id"`
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token,omitempty"`
}

// HistoryConfig 通知历史存储配置。Driver 为空时不记录历史。
type HistoryConfig struct {
	Driver string `yaml:"driver"` // sqlite | mysql
	DSN    string `yaml:"dsn"`
}

// Config 守护进程的全部配置。零值即可运行（除机器人列表外均可选）。
type Config struct {
	// CheckInterval 扫描周期，单位秒。
	CheckInterval int `yaml:"check_interval"`

	// DataDir 用户表 / 打卡 / 节假日文档的存放目录。
	DataDir string `yaml:"data_dir"`

	// ListenAddr 入站事件回调监听地址。
	ListenAddr string `yaml:"listen_addr"`

	// DefaultWarnMessage / DefaultEmergMessage 全局默认文案，
	// 支持 {uid} 与 {time} 占位符；为空使用内置文案。
	DefaultWarnMessage  string `yaml:"default_warn_message"`
	DefaultEmergMessage string `yaml:"default_emerg_message"`

	// EmailDomain 由紧急联系人 ID 推导邮箱时使用的域名。
	EmailDomain string `yaml:"email_domain"`

	// Admins 管理员用户 ID 列表。
	Admins []string `yaml:"admins"`

	SMTP    notify.SMTPConfig `yaml:"smtp"`
	History HistoryConfig     `yaml:"history"`
	Bots    []BotConfig       `yaml:"bots"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		CheckInterval: 3600,
		DataDir:       "data",
		ListenAddr:    ":8466",
		EmailDomain:   "qq.com",
	}
}

// Load 从 YAML 文件加载配置并应用环境变量覆盖。
// path 为空时只使用默认值与环境变量。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖文件配置，便于容器化部署时注入密钥。
func (c *Config) applyEnv() {
	if v := os.Getenv("SAFEGUARD_CHECK_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.CheckInterval = n
		}
	}
	c.DataDir = getenvDefault("SAFEGUARD_DATA_DIR", c.DataDir)
	c.ListenAddr = getenvDefault("SAFEGUARD_LISTEN_ADDR", c.ListenAddr)
	c.EmailDomain = getenvDefault("SAFEGUARD_EMAIL_DOMAIN", c.EmailDomain)
	c.SMTP.Host = getenvDefault("SAFEGUARD_SMTP_HOST", c.SMTP.Host)
	c.SMTP.User = getenvDefault("SAFEGUARD_SMTP_USER", c.SMTP.User)
	c.SMTP.Password = getenvDefault("SAFEGUARD_SMTP_PASSWORD", c.SMTP.Password)
	if v := os.Getenv("SAFEGUARD_SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SMTP.Port = n
		}
	}
	c.History.DSN = getenvDefault("SAFEGUARD_HISTORY_DSN", c.History.DSN)
}

// Validate 启动时校验配置。
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %d", c.CheckInterval)
	}
	switch c.History.Driver {
	case "", "sqlite", "mysql":
	default:
		return fmt.Errorf("invalid history driver: %q (must be 'sqlite' or 'mysql')", c.History.Driver)
	}
	if c.History.Driver == "mysql" && c.History.DSN == "" {
		return fmt.Errorf("history dsn required for mysql driver")
	}
	for i, b := range c.Bots {
		if b.ID == "" || b.BaseURL == "" {
			return fmt.Errorf("bots[%d]: id and base_url are required", i)
		}
	}
	return nil
}

// IsAdmin 判断用户是否在管理员列表中。
func (c *Config) IsAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

// BuildBots 根据配置构建机器人注册表。
func (c *Config) BuildBots() (*platform.Registry, error) {
	reg := platform.NewRegistry()
	for _, b := range c.Bots {
		bot, err := platform.NewOneBot(platform.OneBotConfig{
			BaseURL:     b.BaseURL,
			AccessToken: b.AccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", b.ID, err)
		}
		reg.Register(b.ID, bot)
	}
	return reg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
