package notify

import (
	"errors"
	"strings"

	"gopkg.in/gomail.v2"

	"safeguard/internal/store"
)

// SMTPConfig 邮件外发配置。
type SMTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
}

// EmailSender 抽象"把一封邮件发到某个地址"的能力，便于测试替换。
type EmailSender interface {
	Send(to, subject, body string) error
}

type smtpSender struct {
	dialer     *gomail.Dialer
	senderAddr string
	senderName string
}

// NewSMTPSender 基于 gomail 创建 SMTP 发送器。
func NewSMTPSender(cfg SMTPConfig) (EmailSender, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, errors.New("smtp host and user required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	name := cfg.SenderName
	if name == "" {
		name = "防失联卫士"
	}
	return &smtpSender{
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		senderAddr: cfg.User,
		senderName: name,
	}, nil
}

func (s *smtpSender) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.senderAddr, s.senderName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return s.dialer.DialAndSend(msg)
}

// ResolveAddress 解析用户的通知邮箱：显式绑定优先，
// 否则按平台约定由紧急联系人 ID 推导（<contact>@<domain>），都没有则返回空串。
func ResolveAddress(rec *store.UserRecord, domain string) string {
	if rec == nil {
		return ""
	}
	if addr := strings.TrimSpace(rec.Email); addr != "" {
		return addr
	}
	if rec.EmergencyContact != "" && domain != "" {
		return rec.EmergencyContact + "@" + domain
	}
	return ""
}
