package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"safeguard/internal/store"
)

// Manager 负责异步派发邮件通知：扫描循环只投递事件，
// 发送在后台 worker 中完成，慢邮件服务器永远不会拖住扫描。
type Manager struct {
	sender   EmailSender
	history  *store.Store
	domain   string
	cfg      ManagerConfig
	queue    chan Event
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option 自定义管理器配置。
type Option func(*ManagerConfig)

// WithQueueSize 设置队列长度。
func WithQueueSize(n int) Option {
	return func(c *ManagerConfig) {
		if n > 0 {
			c.QueueSize = n
		}
	}
}

// WithWorkerCount 设置并发消费者数量。
func WithWorkerCount(n int) Option {
	return func(c *ManagerConfig) {
		if n > 0 {
			c.WorkerCount = n
		}
	}
}

// WithSendTimeout 设置单次投递（含历史写入）的超时时间。
func WithSendTimeout(d time.Duration) Option {
	return func(c *ManagerConfig) {
		if d > 0 {
			c.SendTimeout = d
		}
	}
}

// WithLogger 设置自定义日志。
func WithLogger(l Logger) Option {
	return func(c *ManagerConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// NewManager 创建并启动通知管理器。
// sender 为 nil 表示未配置邮件通道，事件入队后直接丢弃并记录日志。
// history 为 nil 时不记录投递历史。
func NewManager(sender EmailSender, history *store.Store, domain string, opts ...Option) *Manager {
	cfg := ManagerConfig{
		QueueSize:   128,
		WorkerCount: 2,
		SendTimeout: 8 * time.Second,
		Logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Manager{
		sender:  sender,
		history: history,
		domain:  domain,
		cfg:     cfg,
		queue:   make(chan Event, cfg.QueueSize),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Publish 将事件放入队列，若队列满则丢弃并记录日志。
func (m *Manager) Publish(evt Event) {
	if m == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	select {
	case m.queue <- evt:
	default:
		m.logf("[notify] queue full, drop event %s for user %s", evt.EventType, userID(evt))
	}
}

// Stop 停止后台 worker 并等待在途事件处理完毕。
func (m *Manager) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.queue)
		m.wg.Wait()
	})
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for evt := range m.queue {
		m.handleEvent(evt)
	}
}

// handleEvent 解析地址并尝试发送。任何失败只记日志，不向上传播。
func (m *Manager) handleEvent(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logf("[notify] panic while handling %s: %v", evt.EventType, r)
		}
	}()

	addr := ResolveAddress(evt.User, m.domain)
	if addr == "" {
		return
	}
	if m.sender == nil {
		m.logf("[notify] no mail sender configured, skip %s for %s", evt.EventType, userID(evt))
		return
	}

	sendErr := m.sender.Send(addr, evt.Subject, evt.Body)
	status := store.HistoryStatusSent
	errText := ""
	var sentAt *time.Time
	if sendErr != nil {
		status = store.HistoryStatusFailed
		errText = sendErr.Error()
		m.logf("[notify] send mail to %s failed: %v", addr, sendErr)
	} else {
		now := time.Now()
		sentAt = &now
	}
	m.recordHistory(evt, status, errText, sentAt)
}

func (m *Manager) recordHistory(evt Event, status, errText string, sentAt *time.Time) {
	if m.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SendTimeout)
	defer cancel()
	if err := m.history.InsertHistory(ctx, store.HistoryRecord{
		ID:        randomID(),
		UserID:    userID(evt),
		Channel:   "email",
		Stage:     evt.Stage,
		Title:     evt.Subject,
		Content:   evt.Body,
		Status:    status,
		Error:     errText,
		SentAt:    sentAt,
		CreatedAt: time.Now(),
	}); err != nil {
		m.logf("[notify] insert history failed: %v", err)
	}
}

func (m *Manager) logf(format string, v ...interface{}) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Printf(format, v...)
	}
}

func userID(evt Event) string {
	if evt.User == nil {
		return ""
	}
	return evt.User.UserID
}

func randomID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}
