package notify

import (
	"time"

	"safeguard/internal/store"
)

// 事件类型常量。
const (
	EventUserWarned    = "user.warned"
	EventUserEscalated = "user.escalated"
	EventManualTest    = "user.manual_test"
)

// Event 表示一条待投递的邮件通知事件。
// User 为注册表快照中的记录副本，管理器据此解析收件地址。
type Event struct {
	User       *store.UserRecord
	EventType  string
	Stage      int
	Subject    string
	Body       string
	OccurredAt time.Time
}

// ManagerConfig 控制通知管理器的运行参数。
type ManagerConfig struct {
	QueueSize   int
	WorkerCount int
	SendTimeout time.Duration
	Logger      Logger
}

// Logger 抽象日志接口，兼容标准 log.Logger。
type Logger interface {
	Printf(format string, v ...interface{})
}
