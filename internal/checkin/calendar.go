package checkin

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/fogleman/gg"

	"safeguard/internal/timeutil"
)

// 日历渲染尺寸与配色。
const (
	cellSize         = 100
	cellPadding      = 10
	headerHeight     = 80
	daysHeaderHeight = 60
	calendarCols     = 7
	calendarRows     = 6

	colorBackground = "#FFCC66"
	colorCell       = "#FFFFF0"
	colorText       = "#8B4513"
	colorCircle     = "#2EB82E"
	colorOffDay     = "#CD5C5C"
)

var weekdayNames = []string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

// CalendarSize 返回渲染图片的像素尺寸。
func CalendarSize() (int, int) {
	w := (cellSize+cellPadding)*calendarCols + cellPadding
	h := headerHeight + daysHeaderHeight + (cellSize+cellPadding)*calendarRows + cellPadding
	return w, h
}

// DrawCalendar 渲染当月打卡日历：周日列在前的 7x6 网格，
// 节假日标红并标注名称，已打卡的日期画绿圈。
func (s *System) DrawCalendar(ctx context.Context, userID string) (image.Image, error) {
	now := timeutil.NowBeijing()
	year, month := now.Year(), now.Month()

	holidays := s.Holidays(ctx, year)

	signed := map[string]bool{}
	for _, d := range s.Dates(userID) {
		signed[d] = true
	}

	width, height := CalendarSize()
	dc := gg.NewContext(width, height)
	dc.SetHexColor(colorBackground)
	dc.Clear()

	// 标题：202x年x月
	s.setFont(dc, 60)
	dc.SetHexColor(colorText)
	title := fmt.Sprintf("%d年%d月", year, int(month))
	dc.DrawStringAnchored(title, float64(width)/2, float64(headerHeight)/2, 0.5, 0.5)

	// 星期表头
	s.setFont(dc, 40)
	for i, name := range weekdayNames {
		x := float64(cellPadding + i*(cellSize+cellPadding) + cellSize/2)
		dc.DrawStringAnchored(name, x, float64(headerHeight)+float64(daysHeaderHeight)/2, 0.5, 0.5)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, timeutil.BeijingLocation)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	offset := int(first.Weekday()) // 周日=0，正好对应第一列

	startY := float64(headerHeight + daysHeaderHeight)
	for day := 1; day <= daysInMonth; day++ {
		idx := offset + day - 1
		row, col := idx/calendarCols, idx%calendarCols
		x := float64(cellPadding + col*(cellSize+cellPadding))
		y := startY + float64(row*(cellSize+cellPadding))

		dc.SetHexColor(colorCell)
		dc.DrawRoundedRectangle(x, y, cellSize, cellSize, 10)
		dc.Fill()

		dateStr := fmt.Sprintf("%d-%02d-%02d", year, int(month), day)

		offDay := false
		holidayName := ""
		if info, ok := holidays[dateStr]; ok {
			offDay = info.IsOffDay
			holidayName = info.Name
		} else {
			// 无节假日数据时按周末回退
			wd := time.Date(year, month, day, 0, 0, 0, 0, timeutil.BeijingLocation).Weekday()
			offDay = wd == time.Saturday || wd == time.Sunday
		}

		numColor := colorText
		if offDay {
			numColor = colorOffDay
		}

		numY := y + cellSize/2
		if holidayName != "" {
			numY -= 10
		}
		s.setFont(dc, 60)
		dc.SetHexColor(numColor)
		dc.DrawStringAnchored(fmt.Sprintf("%d", day), x+cellSize/2, numY, 0.5, 0.5)

		if holidayName != "" {
			s.setFont(dc, 20)
			dc.SetHexColor(colorOffDay)
			dc.DrawStringAnchored(holidayName, x+cellSize/2, y+cellSize-15, 0.5, 0.5)
		}

		if signed[dateStr] {
			dc.SetHexColor(colorCircle)
			dc.SetLineWidth(3)
			dc.DrawCircle(x+cellSize/2, y+cellSize/2, cellSize/2-5)
			dc.Stroke()
		}
	}

	return dc.Image(), nil
}

// RenderCalendarPNG 渲染并编码为 PNG 字节。
func (s *System) RenderCalendarPNG(ctx context.Context, userID string) ([]byte, error) {
	img, err := s.DrawCalendar(ctx, userID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setFont 加载指定字号的字体，文件缺失时退回 gg 的内置字体。
func (s *System) setFont(dc *gg.Context, points float64) {
	if s.fontPath == "" {
		return
	}
	if err := dc.LoadFontFace(s.fontPath, points); err != nil {
		// 内置字体兜底，图片仍可生成
		return
	}
}
