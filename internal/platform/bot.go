package platform

import (
	"context"
	"log"
	"sync"
)

// Bot 聊天平台适配器：私聊、群内 @ 提醒、群成员查询。
// 所有调用都可能失败，由调用方记录并自行降级。
type Bot interface {
	SendPrivate(ctx context.Context, userID, text string) error
	SendGroupMention(ctx context.Context, groupID, userID, text string) error
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Registry 按 bot_id 解析已接入的机器人实例。
type Registry struct {
	mu   sync.RWMutex
	bots map[string]Bot
}

// NewRegistry 创建空的机器人注册表。
func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]Bot)}
}

// Register 登记一个机器人实例，重复 ID 以后者为准。
func (r *Registry) Register(botID string, bot Bot) {
	if botID == "" || bot == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bots[botID]; ok {
		log.Printf("[platform] bot %s re-registered, overwriting", botID)
	}
	r.bots[botID] = bot
}

// Resolve 返回指定 ID 的机器人，未登记时返回 nil。
func (r *Registry) Resolve(botID string) Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bots[botID]
}

// IDs 返回所有已登记的 bot_id。
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.bots))
	for id := range r.bots {
		ids = append(ids, id)
	}
	return ids
}
