package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 北京时间时区（UTC+8）
var BeijingLocation *time.Location

func init() {
	var err error
	BeijingLocation, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		// 如果加载失败，使用 FixedZone 创建 +8 时区
		BeijingLocation = time.FixedZone("CST", 8*3600)
	}
}

// FormatBeijingTime 将时间转换为北京时间并格式化为中文格式
// 格式：2006年01月02日 15时04分05秒
func FormatBeijingTime(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	bjTime := t.In(BeijingLocation)
	return bjTime.Format("2006年01月02日 15时04分05秒")
}

// ToBeijingTime 转换为北京时间
func ToBeijingTime(t time.Time) time.Time {
	return t.In(BeijingLocation)
}

// NowBeijing 返回当前北京时间
func NowBeijing() time.Time {
	return time.Now().In(BeijingLocation)
}

// FormatDuration 将时长转换为 天/小时/分钟 描述，例如 "1天3小时5分"。
// 不足一分钟时返回 "少于1分钟"。
func FormatDuration(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%d天", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%d小时", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%d分", minutes)
	}
	if b.Len() == 0 {
		return "少于1分钟"
	}
	return b.String()
}

// DescribeDays 把 0.5 天这样的浮点天数转为中文描述，如 "0.5天 (12小时0分钟)"。
func DescribeDays(days float64) string {
	totalMinutes := int(days * 24 * 60)
	d := totalMinutes / 1440
	h := (totalMinutes % 1440) / 60
	m := totalMinutes % 60

	var b strings.Builder
	b.WriteString(strconv.FormatFloat(days, 'f', -1, 64))
	b.WriteString("天 (")
	if d > 0 {
		fmt.Fprintf(&b, "%d天", d)
	}
	if h > 0 {
		fmt.Fprintf(&b, "%d小时", h)
	}
	fmt.Fprintf(&b, "%d分钟)", m)
	return b.String()
}
