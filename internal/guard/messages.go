package guard

import (
	"strings"
	"time"

	"safeguard/internal/timeutil"
)

// 告警阶段。
const (
	LevelNormal    = 0
	LevelWarned    = 1
	LevelEscalated = 2
)

// StageWarn / StageEmerg 自定义消息的阶段名。
const (
	StageWarn  = "warn"
	StageEmerg = "emerg"
)

// 阶段 1 的固定预警窗口：24 小时。
const WarnThreshold = 24 * time.Hour

// DefaultMaxMissingDays 注册时的默认失联阈值（天）。
const DefaultMaxMissingDays = 3.0

// 默认文案，与 {uid} / {time} 占位符配合使用。
const (
	DefaultWarnPrivate = "⚠️ [安全提醒] 你已经一天没说话了，请回复任意消息报平安。"
	DefaultWarnGroup   = "⚠️ 你已经24小时没说话了，还活着吗？请冒个泡！"

	DefaultEmergContact = "🚨 [紧急求助] 用户 {uid} 已失联 {time} (超过设定阈值)！"
	DefaultEmergGroup   = "警告：用户 {uid} 已失联，请尝试联系！"
	DefaultEmergUser    = "🚨 [紧急提醒] 已达到失联阈值，正在通知你的紧急联系人，请尽快回复消息报平安。"
	DefaultEmergAlone   = "🚨 [最终警告] 已达到失联阈值，但未设置紧急联系人。"

	suffixSyncedInGroup = " (已在群内同步提醒)"
	suffixTryPhone      = " (请尝试通过电话联系他)"
)

// RenderMessage 渲染文案模板，替换 {uid} 与 {time}（已失联时长）。
func RenderMessage(tpl, uid string, elapsed time.Duration) string {
	out := strings.ReplaceAll(tpl, "{uid}", uid)
	return strings.ReplaceAll(out, "{time}", timeutil.FormatDuration(elapsed))
}

// firstNonEmpty 返回第一个非空文案。
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
