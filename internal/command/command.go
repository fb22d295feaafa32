package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"safeguard/internal/checkin"
	"safeguard/internal/config"
	"safeguard/internal/guard"
	"safeguard/internal/store"
	"safeguard/internal/timeutil"
)

// Message 一条入站聊天消息。
type Message struct {
	UserID  string
	GroupID string
	BotID   string // 收到消息的机器人实例 ID
	Text    string
}

// Reply 命令处理结果。Text 与 ImagePNG 至多一个非空。
type Reply struct {
	Text     string
	ImagePNG []byte
}

// Handler 把用户文本分发到对应操作。每条消息无论是否命中命令，
// 都会作为活跃证明喂给注册表。
type Handler struct {
	cfg      *config.Config
	registry *guard.Registry
	engine   *guard.Engine
	checkin  *checkin.System
	history  *store.Store
	logger   *log.Logger
}

// NewHandler 创建命令分发器。history 可为 nil。
func NewHandler(cfg *config.Config, registry *guard.Registry, engine *guard.Engine, ck *checkin.System, history *store.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		cfg:      cfg,
		registry: registry,
		engine:   engine,
		checkin:  ck,
		history:  history,
		logger:   logger,
	}
}

// Handle 处理一条入站消息，未命中命令时返回 nil。
func (h *Handler) Handle(ctx context.Context, msg Message) *Reply {
	// 任何消息都算报平安
	h.registry.RecordActivity(msg.UserID, guard.Binding{BotID: msg.BotID, GroupID: msg.GroupID})

	text := strings.TrimSpace(msg.Text)
	text = strings.TrimPrefix(text, "/")
	cmd, arg := splitCommand(text)

	switch cmd {
	case "注册又活一天":
		return h.register(msg)
	case "配置紧急联系人":
		return h.setContact(msg, arg)
	case "设置失联时间":
		return h.setThreshold(msg, arg)
	case "绑定邮箱":
		return h.bindEmail(msg, arg)
	case "自定义警告":
		return h.setCustom(msg, guard.StageWarn, arg)
	case "自定义紧急":
		return h.setCustom(msg, guard.StageEmerg, arg)
	case "打卡":
		return h.signIn(msg)
	case "打卡日历":
		return h.calendar(ctx, msg)
	case "安全监控列表":
		return h.adminOnly(msg, h.adminList)
	case "测试通知":
		return h.adminOnly(msg, func(m Message) *Reply { return h.adminTest(ctx, m) })
	case "重载数据":
		return h.adminOnly(msg, h.adminReload)
	case "通知历史":
		return h.adminOnly(msg, func(m Message) *Reply { return h.adminHistory(ctx, m) })
	}
	return nil
}

func (h *Handler) register(msg Message) *Reply {
	created := h.registry.RegisterOrCheckin(msg.UserID, guard.Binding{BotID: msg.BotID, GroupID: msg.GroupID})
	if created {
		return textReply("✅ 注册成功！监控已启动。\n请尽快发送 /配置紧急联系人 [QQ号] 完善安全设置。")
	}
	return textReply("✅ 打卡成功！计时器已重置。")
}

func (h *Handler) setContact(msg Message, arg string) *Reply {
	if err := h.registry.SetContact(msg.UserID, arg); err != nil {
		return errorReply(err)
	}
	return textReply("✅ 紧急联系人已设置为: " + arg)
}

func (h *Handler) setThreshold(msg Message, arg string) *Reply {
	days, err := guard.ParseDays(arg)
	if err != nil {
		return errorReply(err)
	}
	if err := h.registry.SetThreshold(msg.UserID, days); err != nil {
		return errorReply(err)
	}
	return textReply(fmt.Sprintf("✅ 设置成功。若 %s 无消息，将联系紧急联系人。", timeutil.DescribeDays(days)))
}

func (h *Handler) bindEmail(msg Message, arg string) *Reply {
	if err := h.registry.BindEmail(msg.UserID, arg); err != nil {
		return errorReply(err)
	}
	return textReply("✅ 通知邮箱已绑定: " + arg)
}

func (h *Handler) setCustom(msg Message, stage, text string) *Reply {
	if err := h.registry.SetCustomMessage(msg.UserID, stage, text); err != nil {
		return errorReply(err)
	}
	if text == "" {
		return textReply("✅ 已恢复默认文案。")
	}
	return textReply("✅ 自定义文案已设置。")
}

func (h *Handler) signIn(msg Message) *Reply {
	ok, result := h.checkin.SignIn(msg.UserID)
	if !ok {
		return textReply(result)
	}
	if streak := h.checkin.Streak(msg.UserID); streak > 1 {
		return textReply(fmt.Sprintf("✅ %s已连续打卡 %d 天。", result, streak))
	}
	return textReply("✅ " + result)
}

func (h *Handler) calendar(ctx context.Context, msg Message) *Reply {
	data, err := h.checkin.RenderCalendarPNG(ctx, msg.UserID)
	if err != nil {
		h.logger.Printf("[command] render calendar for %s failed: %v", msg.UserID, err)
		return textReply("❌ 日历生成失败，请稍后再试。")
	}
	return &Reply{ImagePNG: data}
}

// adminOnly 管理员命令的权限闸。
func (h *Handler) adminOnly(msg Message, fn func(Message) *Reply) *Reply {
	if !h.cfg.IsAdmin(msg.UserID) {
		return textReply("❌ 权限不足，仅管理员可用。")
	}
	return fn(msg)
}

// adminList 全员监控状态报表。
func (h *Handler) adminList(Message) *Reply {
	records := h.registry.Snapshot()
	if len(records) == 0 {
		return textReply("📂 当前没有正在监控的用户。")
	}

	lines := []string{"📋 [管理员] 全员安全监控报表", "----------------"}
	now := time.Now()
	for _, rec := range records {
		status := "🟢 正常"
		switch rec.AlertLevel {
		case guard.LevelWarned:
			status = "🟡 警告中"
		case guard.LevelEscalated:
			status = "🔴 已失联"
		}
		contact := rec.EmergencyContact
		if contact == "" {
			contact = "未设置"
		}
		lines = append(lines, fmt.Sprintf(
			"%s 用户: %s\n   ├ 失联时长: %s\n   ├ 设定阈值: %v天\n   └ 紧急联系: %s",
			status, rec.UserID, timeutil.FormatDuration(now.Sub(rec.LastActive)), rec.MaxMissingDays, contact))
	}
	return textReply(strings.Join(lines, "\n"))
}

func (h *Handler) adminTest(ctx context.Context, msg Message) *Reply {
	if err := h.engine.SendTest(ctx, msg.UserID); err != nil {
		return errorReply(err)
	}
	return textReply("✅ 测试通知已发送，请检查私聊与邮箱。")
}

func (h *Handler) adminReload(Message) *Reply {
	n := h.registry.Reload()
	return textReply(fmt.Sprintf("✅ 已重新加载 %d 位用户。", n))
}

// adminHistory 最近的通知投递记录。
func (h *Handler) adminHistory(ctx context.Context, _ Message) *Reply {
	if h.history == nil {
		return textReply("📂 未启用通知历史存储。")
	}
	recs, err := h.history.ListHistory(ctx, "", 5)
	if err != nil {
		h.logger.Printf("[command] list history failed: %v", err)
		return textReply("❌ 查询通知历史失败。")
	}
	if len(recs) == 0 {
		return textReply("📂 暂无通知投递记录。")
	}
	lines := []string{"📨 最近通知投递记录", "----------------"}
	for _, r := range recs {
		mark := "✅"
		if r.Status == store.HistoryStatusFailed {
			mark = "❌"
		}
		lines = append(lines, fmt.Sprintf("%s [%s] 用户 %s 阶段%d %s",
			mark, r.Channel, r.UserID, r.Stage, timeutil.FormatBeijingTime(r.CreatedAt)))
	}
	return textReply(strings.Join(lines, "\n"))
}

func textReply(s string) *Reply {
	return &Reply{Text: s}
}

// errorReply 把校验 / 未注册错误转成用户可读的拒绝文案。
func errorReply(err error) *Reply {
	if errors.Is(err, guard.ErrNotRegistered) {
		return textReply("❌ 请先发送 /注册又活一天 开启功能。")
	}
	if guard.IsValidation(err) {
		return textReply("❌ " + err.Error())
	}
	return textReply("❌ 操作失败，请稍后再试。")
}

// splitCommand 把文本拆成命令词与参数串。
func splitCommand(text string) (string, string) {
	parts := strings.SplitN(text, " ", 2)
	cmd := parts[0]
	if len(parts) == 1 {
		return cmd, ""
	}
	return cmd, strings.TrimSpace(parts[1])
}
