package checkin

import (
	"log"
	"path/filepath"
	"sync"

	"safeguard/internal/store"
	"safeguard/internal/timeutil"
)

const (
	dataFile    = "checkins.json"
	holidayFile = "holidays.json"
	dateLayout  = "2006-01-02"
)

// System 日历打卡系统：按用户记录 ISO 日期列表，支持连续打卡统计与日历图渲染。
type System struct {
	mu          sync.Mutex
	dataPath    string
	holidayPath string
	fontPath    string
	apiBase     string

	data     map[string][]string           // user_id -> ISO 日期列表
	holidays map[string]map[string]Holiday // 年份 -> 日期 -> 节假日信息
}

// Option 自定义打卡系统。
type Option func(*System)

// WithHolidayAPI 覆盖节假日 API 地址（测试用）。
func WithHolidayAPI(base string) Option {
	return func(s *System) {
		if base != "" {
			s.apiBase = base
		}
	}
}

// WithFontPath 指定日历渲染字体文件。
func WithFontPath(path string) Option {
	return func(s *System) { s.fontPath = path }
}

// NewSystem 创建打卡系统并加载数据文档，损坏文件由存储层备份后以空状态继续。
func NewSystem(dataDir string, opts ...Option) *System {
	s := &System{
		dataPath:    filepath.Join(dataDir, dataFile),
		holidayPath: filepath.Join(dataDir, holidayFile),
		fontPath:    filepath.Join(dataDir, "fonts", "text.ttf"),
		apiBase:     defaultHolidayAPI,
		data:        map[string][]string{},
		holidays:    map[string]map[string]Holiday{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if !store.LoadDocument(s.dataPath, &s.data) {
		s.data = map[string][]string{}
	}
	if !store.LoadDocument(s.holidayPath, &s.holidays) {
		s.holidays = map[string]map[string]Holiday{}
	}
	return s
}

// SignIn 记录今日打卡。重复打卡返回 false 与提示文案。
func (s *System) SignIn(userID string) (bool, string) {
	today := timeutil.NowBeijing().Format(dateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.data[userID] {
		if d == today {
			return false, "今天已经打过卡了哦~"
		}
	}
	s.data[userID] = append(s.data[userID], today)
	if err := store.SaveDocument(s.dataPath, s.data); err != nil {
		log.Printf("[checkin] save data failed: %v", err)
	}
	return true, "打卡成功！"
}

// Streak 计算截至今天（或昨天）的连续打卡天数。
func (s *System) Streak(userID string) int {
	s.mu.Lock()
	dates := make(map[string]bool, len(s.data[userID]))
	for _, d := range s.data[userID] {
		dates[d] = true
	}
	s.mu.Unlock()

	if len(dates) == 0 {
		return 0
	}
	day := timeutil.NowBeijing()
	if !dates[day.Format(dateLayout)] {
		// 今天还没打卡，从昨天往回数
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for dates[day.Format(dateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// Dates 返回某用户的全部打卡日期副本。
func (s *System) Dates(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data[userID]...)
}
