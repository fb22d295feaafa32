package guard

import (
	"context"
	"log"
	"sync"
	"time"

	"safeguard/internal/notify"
	"safeguard/internal/platform"
	"safeguard/internal/store"
	"safeguard/internal/timeutil"
)

const defaultCheckInterval = time.Hour

// EngineConfig 升级引擎的运行参数。
type EngineConfig struct {
	// Interval 扫描周期，默认 1 小时。
	Interval time.Duration
	// WarnMessage / EmergMessage 全局默认文案模板，支持 {uid} 与 {time}，
	// 为空时使用内置文案；用户的自定义文案优先于两者。
	WarnMessage  string
	EmergMessage string
	Logger       *log.Logger
}

// Engine 周期性扫描所有用户，按两阶段状态机推进告警等级并触发通知扇出。
type Engine struct {
	registry *Registry
	bots     *platform.Registry
	mailer   *notify.Manager
	cfg      EngineConfig

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// now 可注入，测试用。
	now func() time.Time
}

// NewEngine 创建升级引擎。
func NewEngine(registry *Registry, bots *platform.Registry, mailer *notify.Manager, cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultCheckInterval
	}
	return &Engine{
		registry: registry,
		bots:     bots,
		mailer:   mailer,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start 启动后台扫描循环。
func (e *Engine) Start() {
	if e == nil {
		return
	}
	e.cfg.Logger.Printf("[engine] start sweeps every %v", e.cfg.Interval)
	e.wg.Add(1)
	go e.loop()
}

// Stop 发出停止信号并等待循环退出，最多等待 30 秒。
func (e *Engine) Stop() {
	if e == nil {
		return
	}
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		e.cfg.Logger.Printf("[engine] stop timeout, exiting forcefully")
	}
}

// loop 以固定间隔执行扫描。
func (e *Engine) loop() {
	defer e.wg.Done()
	defer e.recoverPanic("sweep loop")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			// 先落盘入站活动积累的脏状态，再评估。
			if err := e.registry.Flush(false); err != nil {
				e.cfg.Logger.Printf("[engine] flush before sweep failed: %v", err)
			}
			e.Sweep(context.Background())
		}
	}
}

// Sweep 对扫描开始时刻的快照逐用户独立评估。
// 单个用户的任何失败都不会中断其余用户的处理；
// 若有等级变更，整次扫描只落盘一次。
func (e *Engine) Sweep(ctx context.Context) {
	start := e.now()
	records := e.registry.Snapshot()
	changed := 0

	for _, rec := range records {
		if e.evaluate(ctx, rec, start) {
			changed++
		}
	}

	if changed > 0 {
		if err := e.registry.Flush(false); err != nil {
			e.cfg.Logger.Printf("[engine] flush after sweep failed: %v", err)
		}
	}
	e.cfg.Logger.Printf("[engine] sweep finished in %v (users=%d, escalations=%d)",
		time.Since(start), len(records), changed)
}

// evaluate 对单个用户应用状态机。每个 tick 至多推进一次：
// 达到硬阈值直接升到 2（无需先经过 1），否则再看预警窗口。
func (e *Engine) evaluate(ctx context.Context, rec *store.UserRecord, now time.Time) (changed bool) {
	defer func() {
		if r := recover(); r != nil {
			e.cfg.Logger.Printf("[engine] panic evaluating user %s: %v", rec.UserID, r)
		}
	}()

	elapsed := now.Sub(rec.LastActive)
	hard := time.Duration(rec.MaxMissingDays * float64(24*time.Hour))

	switch {
	case elapsed > hard && rec.AlertLevel < LevelEscalated:
		e.fireStage2(ctx, rec, elapsed)
		return e.registry.UpdateLevel(rec.UserID, LevelEscalated, rec.LastActive)

	// 用户把阈值设得比标准预警窗口还短时，跳过通用预警，
	// 避免在其自定义期限前发出多余提醒。
	case hard > WarnThreshold && elapsed > WarnThreshold && rec.AlertLevel < LevelWarned:
		e.fireStage1(ctx, rec, elapsed)
		return e.registry.UpdateLevel(rec.UserID, LevelWarned, rec.LastActive)
	}
	return false
}

// fireStage1 阶段 1 预警：群内 @（若有群绑定）+ 私聊 + 邮件。
func (e *Engine) fireStage1(ctx context.Context, rec *store.UserRecord, elapsed time.Duration) {
	privateText := RenderMessage(firstNonEmpty(rec.CustomWarnMsg, e.cfg.WarnMessage, DefaultWarnPrivate), rec.UserID, elapsed)
	groupText := RenderMessage(firstNonEmpty(rec.CustomWarnMsg, e.cfg.WarnMessage, DefaultWarnGroup), rec.UserID, elapsed)

	if bot := e.bots.Resolve(rec.BotID); bot != nil {
		if rec.GroupID != "" {
			if err := bot.SendGroupMention(ctx, rec.GroupID, rec.UserID, groupText); err != nil {
				e.cfg.Logger.Printf("[engine] stage1 group mention for %s failed: %v", rec.UserID, err)
			}
		}
		if err := bot.SendPrivate(ctx, rec.UserID, privateText); err != nil {
			e.cfg.Logger.Printf("[engine] stage1 private for %s failed: %v", rec.UserID, err)
		}
	} else {
		e.cfg.Logger.Printf("[engine] no bot %q for user %s, skip chat warn", rec.BotID, rec.UserID)
	}

	e.mailer.Publish(notify.Event{
		User:      rec,
		EventType: notify.EventUserWarned,
		Stage:     LevelWarned,
		Subject:   "[安全提醒] 请尽快报平安",
		Body:      privateText,
	})
}

// fireStage2 阶段 2 紧急：先通知用户本人，再通知紧急联系人；
// 无论聊天通道结果如何都尝试邮件。
func (e *Engine) fireStage2(ctx context.Context, rec *store.UserRecord, elapsed time.Duration) {
	contactText := RenderMessage(firstNonEmpty(rec.CustomEmergMsg, e.cfg.EmergMessage, DefaultEmergContact), rec.UserID, elapsed)

	bot := e.bots.Resolve(rec.BotID)
	if bot == nil {
		e.cfg.Logger.Printf("[engine] no bot %q for user %s, skip chat escalation", rec.BotID, rec.UserID)
	} else if rec.EmergencyContact != "" {
		// 约定顺序：先用户本人，后联系人。
		if err := bot.SendPrivate(ctx, rec.UserID, DefaultEmergUser); err != nil {
			e.cfg.Logger.Printf("[engine] stage2 private to user %s failed: %v", rec.UserID, err)
		}

		inGroup := false
		if rec.GroupID != "" {
			var err error
			inGroup, err = bot.IsGroupMember(ctx, rec.GroupID, rec.EmergencyContact)
			if err != nil {
				e.cfg.Logger.Printf("[engine] membership probe for contact %s failed: %v", rec.EmergencyContact, err)
			}
		}
		if inGroup {
			groupText := RenderMessage(DefaultEmergGroup, rec.UserID, elapsed)
			if err := bot.SendGroupMention(ctx, rec.GroupID, rec.EmergencyContact, groupText); err != nil {
				e.cfg.Logger.Printf("[engine] stage2 group mention for contact %s failed: %v", rec.EmergencyContact, err)
			}
			if err := bot.SendPrivate(ctx, rec.EmergencyContact, contactText+suffixSyncedInGroup); err != nil {
				e.cfg.Logger.Printf("[engine] stage2 private to contact %s failed: %v", rec.EmergencyContact, err)
			}
		} else {
			if err := bot.SendPrivate(ctx, rec.EmergencyContact, contactText+suffixTryPhone); err != nil {
				e.cfg.Logger.Printf("[engine] stage2 private to contact %s failed: %v", rec.EmergencyContact, err)
			}
		}
	} else {
		// 没有第三方可通知，给用户本人最终警告。
		if err := bot.SendPrivate(ctx, rec.UserID, DefaultEmergAlone); err != nil {
			e.cfg.Logger.Printf("[engine] stage2 final warning to %s failed: %v", rec.UserID, err)
		}
	}

	e.mailer.Publish(notify.Event{
		User:      rec,
		EventType: notify.EventUserEscalated,
		Stage:     LevelEscalated,
		Subject:   "[紧急求助] 用户 " + rec.UserID + " 已失联",
		Body:      contactText,
	})
}

// SendTest 管理员手动触发一次测试扇出：私聊 + 邮件，不改动告警等级。
func (e *Engine) SendTest(ctx context.Context, userID string) error {
	rec, ok := e.registry.Get(userID)
	if !ok {
		return ErrNotRegistered
	}
	text := "🔔 [测试] 这是一条通知链路测试消息，发送时间 " + timeutil.FormatBeijingTime(e.now()) + "。"
	if bot := e.bots.Resolve(rec.BotID); bot != nil {
		if err := bot.SendPrivate(ctx, rec.UserID, text); err != nil {
			e.cfg.Logger.Printf("[engine] test private for %s failed: %v", rec.UserID, err)
		}
	} else {
		e.cfg.Logger.Printf("[engine] no bot %q for user %s, skip chat test", rec.BotID, rec.UserID)
	}
	e.mailer.Publish(notify.Event{
		User:      rec,
		EventType: notify.EventManualTest,
		Subject:   "[测试] 通知链路测试",
		Body:      text,
	})
	return nil
}

func (e *Engine) recoverPanic(where string) {
	if r := recover(); r != nil {
		e.cfg.Logger.Printf("[engine] panic recovered in %s: %v", where, r)
	}
}
