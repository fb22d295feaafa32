package store

import (
	"errors"
	"time"
)

const (
	defaultTimeout = 5 * time.Second

	dialectMySQL  = "mysql"
	dialectSQLite = "sqlite"
)

// ErrNotFound 查询对象不存在。
var ErrNotFound = errors.New("store: not found")

// UserRecord 一个被监控用户的完整状态，持久化在用户表 JSON 文档中。
type UserRecord struct {
	UserID           string    `json:"user_id"`
	BotID            string    `json:"bot_id"`
	GroupID          string    `json:"group_id,omitempty"`
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	Email            string    `json:"email,omitempty"`
	MaxMissingDays   float64   `json:"max_missing_days"`
	LastActive       time.Time `json:"last_active"`
	AlertLevel       int       `json:"alert_level"`
	CustomWarnMsg    string    `json:"custom_warn_message,omitempty"`
	CustomEmergMsg   string    `json:"custom_emerg_message,omitempty"`
}

// Clone 返回记录的独立副本，供扫描快照使用。
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// UserTable 用户表，键为用户 ID。
type UserTable map[string]*UserRecord

// HistoryRecord 一条通知投递历史。
type HistoryRecord struct {
	ID        string
	UserID    string
	Channel   string
	Stage     int
	Title     string
	Content   string
	Status    string
	Error     string
	SentAt    *time.Time
	CreatedAt time.Time
}

// 历史记录状态。
const (
	HistoryStatusSent   = "sent"
	HistoryStatusFailed = "failed"
)
