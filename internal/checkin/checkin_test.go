package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard/internal/store"
	"safeguard/internal/timeutil"
)

// TestSignInOncePerDay 同一天重复打卡被拒绝，且数据已落盘
func TestSignInOncePerDay(t *testing.T) {
	dir := t.TempDir()
	s := NewSystem(dir)

	ok, msg := s.SignIn("10001")
	assert.True(t, ok)
	assert.Equal(t, "打卡成功！", msg)

	ok, msg = s.SignIn("10001")
	assert.False(t, ok)
	assert.Contains(t, msg, "已经打过卡")

	// 重新加载后记录仍在
	s2 := NewSystem(dir)
	assert.Len(t, s2.Dates("10001"), 1)
}

// TestStreak 连续打卡天数统计
func TestStreak(t *testing.T) {
	dir := t.TempDir()
	now := timeutil.NowBeijing()
	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format(dateLayout)
	}

	data := map[string][]string{
		// 今天、昨天、前天连续；更早断档
		"10001": {day(0), day(-1), day(-2), day(-5)},
		// 今天未打卡，从昨天起连续两天
		"10002": {day(-1), day(-2)},
		// 断档两天
		"10003": {day(-3)},
	}
	require.NoError(t, store.SaveDocument(filepath.Join(dir, dataFile), data))

	s := NewSystem(dir)
	assert.Equal(t, 3, s.Streak("10001"))
	assert.Equal(t, 2, s.Streak("10002"))
	assert.Equal(t, 0, s.Streak("10003"))
	assert.Equal(t, 0, s.Streak("nobody"))
}

// TestHolidaysFetchAndCache 首次请求 API，之后命中缓存不再访问网络。
// handler 刻意不设置 Content-Type，验证响应头缺失时仍能解析出节假日表。
func TestHolidaysFetchAndCache(t *testing.T) {
	year := timeutil.NowBeijing().Year()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, fmt.Sprintf("/v1/holidays/%d", year), r.URL.Path)
		json.NewEncoder(w).Encode(map[string]Holiday{
			fmt.Sprintf("%d-01-01", year): {Name: "元旦", IsOffDay: true},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewSystem(dir, WithHolidayAPI(srv.URL))

	h := s.Holidays(context.Background(), year)
	require.Len(t, h, 1)
	assert.Equal(t, 1, calls)

	// 缓存命中
	s.Holidays(context.Background(), year)
	assert.Equal(t, 1, calls)

	// 缓存已持久化，新实例也不访问网络
	s2 := NewSystem(dir, WithHolidayAPI(srv.URL))
	h2 := s2.Holidays(context.Background(), year)
	assert.Len(t, h2, 1)
	assert.Equal(t, 1, calls)
}

// TestHolidaysFetchFailure API 不可用时返回空表，不报错
func TestHolidaysFetchFailure(t *testing.T) {
	s := NewSystem(t.TempDir(), WithHolidayAPI("http://127.0.0.1:1"))
	h := s.Holidays(context.Background(), 2026)
	assert.Empty(t, h)
}

// TestDrawCalendar 字体缺失时仍能渲染出预期尺寸的图片
func TestDrawCalendar(t *testing.T) {
	s := NewSystem(t.TempDir(), WithHolidayAPI("http://127.0.0.1:1"))
	s.SignIn("10001")

	img, err := s.DrawCalendar(context.Background(), "10001")
	require.NoError(t, err)

	w, h := CalendarSize()
	bounds := img.Bounds()
	assert.Equal(t, w, bounds.Dx())
	assert.Equal(t, h, bounds.Dy())

	data, err := s.RenderCalendarPNG(context.Background(), "10001")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
