package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OneBotConfig OneBot v11 HTTP 接入配置。
type OneBotConfig struct {
	BaseURL     string `json:"base_url" yaml:"base_url"`
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
}

// oneBot 通过 OneBot v11 HTTP API 发送消息的机器人实现。
type oneBot struct {
	cfg    OneBotConfig
	client *http.Client
}

// NewOneBot 创建 OneBot HTTP 机器人。
func NewOneBot(cfg OneBotConfig) (Bot, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("onebot base_url required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &oneBot{
		cfg: cfg,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}, nil
}

type textSegment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

func (b *oneBot) SendPrivate(ctx context.Context, userID, text string) error {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	body := map[string]any{
		"user_id": uid,
		"message": []textSegment{
			{Type: "text", Data: map[string]string{"text": text}},
		},
	}
	return b.call(ctx, "send_private_msg", body, nil)
}

func (b *oneBot) SendGroupMention(ctx context.Context, groupID, userID, text string) error {
	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	body := map[string]any{
		"group_id": gid,
		"message": []textSegment{
			{Type: "at", Data: map[string]string{"qq": userID}},
			{Type: "text", Data: map[string]string{"text": " " + text}},
		},
	}
	return b.call(ctx, "send_group_msg", body, nil)
}

func (b *oneBot) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	if groupID == "" {
		return false, nil
	}
	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	body := map[string]any{"group_id": gid, "user_id": uid, "no_cache": true}
	var data json.RawMessage
	if err := b.call(ctx, "get_group_member_info", body, &data); err != nil {
		// 平台对非群成员返回错误码，这里统一视为“不在群内”。
		return false, nil
	}
	return len(data) > 0 && string(data) != "null", nil
}

// call 调用一个 OneBot HTTP action 并校验 retcode。
func (b *oneBot) call(ctx context.Context, action string, body map[string]any, out *json.RawMessage) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/"+action, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.AccessToken)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("onebot %s status %d", action, resp.StatusCode)
	}
	var res struct {
		Status  string          `json:"status"`
		Retcode int             `json:"retcode"`
		Msg     string          `json:"msg"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("onebot %s decode: %w", action, err)
	}
	if res.Retcode != 0 {
		return fmt.Errorf("onebot %s retcode %d: %s", action, res.Retcode, res.Msg)
	}
	if out != nil {
		*out = res.Data
	}
	return nil
}
