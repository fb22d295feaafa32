package guard

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"safeguard/internal/store"
)

// Binding 用户最近一次出现的渠道上下文（机器人实例 + 可选群）。
type Binding struct {
	BotID   string
	GroupID string
}

// Registry 独占持有内存用户表：入站消息与扫描循环都通过它访问，
// 扫描只在快照上迭代，注册/打卡不会造成漏评或重复评估。
type Registry struct {
	mu    sync.RWMutex
	path  string
	users store.UserTable
	dirty bool
}

// NewRegistry 从 path 加载用户表并创建注册表。
// 文档损坏时由存储层备份并以空表启动。
func NewRegistry(path string) *Registry {
	return &Registry{
		path:  path,
		users: store.LoadUsers(path),
	}
}

// RegisterOrCheckin 注册新用户或手动打卡。
// 新用户按默认阈值创建；老用户重置活跃时间与告警等级并刷新渠道绑定。
// 返回是否为新注册。
func (r *Registry) RegisterOrCheckin(userID string, b Binding) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[userID]
	if !ok {
		r.users[userID] = &store.UserRecord{
			UserID:         userID,
			BotID:          b.BotID,
			GroupID:        b.GroupID,
			MaxMissingDays: DefaultMaxMissingDays,
			LastActive:     now,
			AlertLevel:     LevelNormal,
		}
		r.dirty = true
		return true
	}
	rec.LastActive = now
	rec.AlertLevel = LevelNormal
	if b.BotID != "" {
		rec.BotID = b.BotID
	}
	if b.GroupID != "" {
		rec.GroupID = b.GroupID
	}
	r.dirty = true
	return false
}

// RecordActivity 被动活跃更新：任何消息都算报平安。
// 未注册用户静默忽略，不算错误。
func (r *Registry) RecordActivity(userID string, b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return
	}
	rec.LastActive = time.Now()
	rec.AlertLevel = LevelNormal
	if b.BotID != "" {
		rec.BotID = b.BotID
	}
	if b.GroupID != "" {
		rec.GroupID = b.GroupID
	}
	r.dirty = true
}

// SetContact 配置紧急联系人，必须是纯数字平台 ID。
func (r *Registry) SetContact(userID, contact string) error {
	if !isDigits(contact) {
		return NewValidationError("联系人必须是纯数字平台 ID")
	}
	return r.update(userID, func(rec *store.UserRecord) {
		rec.EmergencyContact = contact
	})
}

// ParseDays 解析天数输入，拒绝非数字与非正数，支持小数（0.5 = 12 小时）。
func ParseDays(s string) (float64, error) {
	days, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(days) || math.IsInf(days, 0) {
		return 0, NewValidationError("输入无效。请输入数字，例如 3 或 0.5")
	}
	if days <= 0 {
		return 0, NewValidationError("输入无效。请输入数字，例如 3 或 0.5")
	}
	return days, nil
}

// SetThreshold 设置最大失联天数。
func (r *Registry) SetThreshold(userID string, days float64) error {
	if days <= 0 || math.IsNaN(days) || math.IsInf(days, 0) {
		return NewValidationError("输入无效。请输入数字，例如 3 或 0.5")
	}
	return r.update(userID, func(rec *store.UserRecord) {
		rec.MaxMissingDays = days
	})
}

// BindEmail 绑定通知邮箱，要求包含 @ 且域名带点。
func (r *Registry) BindEmail(userID, addr string) error {
	addr = strings.TrimSpace(addr)
	at := strings.Index(addr, "@")
	if at <= 0 || !strings.Contains(addr[at+1:], ".") {
		return NewValidationError("邮箱格式不正确，例如 someone@example.com")
	}
	return r.update(userID, func(rec *store.UserRecord) {
		rec.Email = addr
	})
}

// SetCustomMessage 设置某阶段的自定义文案，空文本表示清除回退默认。
func (r *Registry) SetCustomMessage(userID, stage, text string) error {
	switch stage {
	case StageWarn:
		return r.update(userID, func(rec *store.UserRecord) {
			rec.CustomWarnMsg = text
		})
	case StageEmerg:
		return r.update(userID, func(rec *store.UserRecord) {
			rec.CustomEmergMsg = text
		})
	default:
		return NewValidationError("未知的文案阶段：" + stage)
	}
}

// Get 返回指定用户记录的副本。
func (r *Registry) Get(userID string) (*store.UserRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Snapshot 返回扫描开始时刻全部记录的副本。
func (r *Registry) Snapshot() []*store.UserRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*store.UserRecord, 0, len(r.users))
	for _, rec := range r.users {
		out = append(out, rec.Clone())
	}
	return out
}

// Len 当前监控用户数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// UpdateLevel 推进用户告警等级。仅当记录的活跃时间仍与快照一致且
// 等级确实前进时才应用：扫描期间用户冒泡会把等级重置为 0，
// 这种情况下本次推进作废。
func (r *Registry) UpdateLevel(userID string, level int, seenLastActive time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return false
	}
	if !rec.LastActive.Equal(seenLastActive) || rec.AlertLevel >= level {
		return false
	}
	rec.AlertLevel = level
	r.dirty = true
	return true
}

// Flush 将脏状态写回磁盘；force 为 true 时无条件写。
// 序列化在锁外完成的副本上进行，磁盘 I/O 不会阻塞其他操作。
// 写盘失败时恢复脏标记，下次 Flush 会重试。
func (r *Registry) Flush(force bool) error {
	r.mu.Lock()
	if !r.dirty && !force {
		r.mu.Unlock()
		return nil
	}
	snapshot := make(store.UserTable, len(r.users))
	for id, rec := range r.users {
		snapshot[id] = rec.Clone()
	}
	r.dirty = false
	r.mu.Unlock()

	if err := store.SaveUsers(r.path, snapshot); err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return err
	}
	return nil
}

// Reload 丢弃内存状态并从磁盘重新加载。
func (r *Registry) Reload() int {
	table := store.LoadUsers(r.path)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = table
	r.dirty = false
	return len(table)
}

// update 对已注册用户应用修改并置脏。
func (r *Registry) update(userID string, fn func(*store.UserRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return ErrNotRegistered
	}
	fn(rec)
	r.dirty = true
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
