package guard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(filepath.Join(t.TempDir(), store.UsersFile))
}

// TestRegisterOrCheckin 首次注册与重复打卡返回不同结果
func TestRegisterOrCheckin(t *testing.T) {
	r := newTestRegistry(t)

	created := r.RegisterOrCheckin("10001", Binding{BotID: "bot-1", GroupID: "20002"})
	assert.True(t, created, "首次应为新注册")

	rec, ok := r.Get("10001")
	require.True(t, ok)
	assert.Equal(t, DefaultMaxMissingDays, rec.MaxMissingDays)
	assert.Equal(t, LevelNormal, rec.AlertLevel)
	assert.Equal(t, "bot-1", rec.BotID)

	created = r.RegisterOrCheckin("10001", Binding{BotID: "bot-2"})
	assert.False(t, created, "再次应为打卡")
	rec, _ = r.Get("10001")
	assert.Equal(t, "bot-2", rec.BotID, "渠道绑定以最近一次为准")
	assert.Equal(t, "20002", rec.GroupID, "空群绑定不覆盖旧值")
}

// TestRecordActivity 任何消息都重置等级与活跃时间；未注册静默忽略
func TestRecordActivity(t *testing.T) {
	r := newTestRegistry(t)

	// 未注册：不报错、不创建
	r.RecordActivity("999", Binding{})
	_, ok := r.Get("999")
	assert.False(t, ok)

	r.RegisterOrCheckin("10001", Binding{BotID: "bot-1"})
	require.NoError(t, r.SetThreshold("10001", 3))

	// 人为推进等级后，活动应重置为 0
	rec, _ := r.Get("10001")
	require.True(t, r.UpdateLevel("10001", LevelEscalated, rec.LastActive))

	before := time.Now()
	r.RecordActivity("10001", Binding{GroupID: "30003"})
	rec, _ = r.Get("10001")
	assert.Equal(t, LevelNormal, rec.AlertLevel)
	assert.False(t, rec.LastActive.Before(before))
	assert.Equal(t, "30003", rec.GroupID)
}

// TestSetContactValidation 联系人必须是纯数字
func TestSetContactValidation(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrCheckin("10001", Binding{})

	tests := []struct {
		name    string
		contact string
		ok      bool
	}{
		{"纯数字", "10086", true},
		{"带字母", "10086a", false},
		{"空串", "", false},
		{"带符号", "+8610086", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SetContact("10001", tt.contact)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsValidation(err), "应为校验错误，得到 %v", err)
			}
		})
	}

	err := r.SetContact("unknown", "10086")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// TestParseDaysAndThreshold 阈值拒绝 0、负数、非数字，接受小数
func TestParseDaysAndThreshold(t *testing.T) {
	for _, bad := range []string{"0", "-1", "abc", "", "NaN", "+Inf"} {
		_, err := ParseDays(bad)
		assert.True(t, IsValidation(err), "输入 %q 应被拒绝", bad)
	}

	days, err := ParseDays("0.5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, days)

	r := newTestRegistry(t)
	r.RegisterOrCheckin("10001", Binding{})
	require.NoError(t, r.SetThreshold("10001", 0.5))
	rec, _ := r.Get("10001")
	assert.Equal(t, 0.5, rec.MaxMissingDays)

	assert.True(t, IsValidation(r.SetThreshold("10001", 0)))
	assert.True(t, IsValidation(r.SetThreshold("10001", -2)))
}

// TestBindEmailValidation 邮箱需要 @ 与域名分隔点
func TestBindEmailValidation(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrCheckin("10001", Binding{})

	assert.NoError(t, r.BindEmail("10001", "a@b.com"))
	for _, bad := range []string{"ab.com", "a@bcom", "@b.com", ""} {
		assert.True(t, IsValidation(r.BindEmail("10001", bad)), "输入 %q 应被拒绝", bad)
	}
}

// TestSetCustomMessage 空文本清除自定义文案
func TestSetCustomMessage(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrCheckin("10001", Binding{})

	require.NoError(t, r.SetCustomMessage("10001", StageWarn, "冒个泡"))
	rec, _ := r.Get("10001")
	assert.Equal(t, "冒个泡", rec.CustomWarnMsg)

	require.NoError(t, r.SetCustomMessage("10001", StageWarn, ""))
	rec, _ = r.Get("10001")
	assert.Empty(t, rec.CustomWarnMsg)

	assert.True(t, IsValidation(r.SetCustomMessage("10001", "other", "x")))
}

// TestUpdateLevelGuard 扫描期间的活动重置令等级推进作废
func TestUpdateLevelGuard(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrCheckin("10001", Binding{})
	snap, _ := r.Get("10001")

	// 快照之后用户冒泡
	time.Sleep(time.Millisecond)
	r.RecordActivity("10001", Binding{})

	assert.False(t, r.UpdateLevel("10001", LevelWarned, snap.LastActive))
	rec, _ := r.Get("10001")
	assert.Equal(t, LevelNormal, rec.AlertLevel)
}

// TestFlushAndReload 落盘后可整表重载
func TestFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), store.UsersFile)
	r := NewRegistry(path)
	r.RegisterOrCheckin("10001", Binding{BotID: "bot-1"})
	require.NoError(t, r.Flush(false))

	// 无脏状态时 Flush 不报错
	require.NoError(t, r.Flush(false))

	r2 := NewRegistry(path)
	assert.Equal(t, 1, r2.Len())

	n := r.Reload()
	assert.Equal(t, 1, n)
}

// TestFlushFailureKeepsDirty 写盘失败时保留脏标记，下次 Flush 仍会重试
func TestFlushFailureKeepsDirty(t *testing.T) {
	// 父路径是普通文件，MkdirAll 必然失败
	blocker := filepath.Join(t.TempDir(), "block")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	r := NewRegistry(filepath.Join(blocker, store.UsersFile))
	r.RegisterOrCheckin("10001", Binding{BotID: "bot-1"})

	require.Error(t, r.Flush(false))
	// 若脏标记被误清，这里会直接返回 nil
	require.Error(t, r.Flush(false))
}
