package checkin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"

	"safeguard/internal/store"
)

const defaultHolidayAPI = "https://api.jiejiariapi.com"

// Holiday 节假日 API 返回的单日信息。
type Holiday struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	IsOffDay bool   `json:"isOffDay"`
}

// Holidays 返回指定年份的节假日表。缓存命中直接返回；
// 否则请求外部 API 并永久缓存；请求失败时返回空表，调用方按周末回退。
func (s *System) Holidays(ctx context.Context, year int) map[string]Holiday {
	key := fmt.Sprintf("%d", year)

	s.mu.Lock()
	if cached, ok := s.holidays[key]; ok && len(cached) > 0 {
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	fetched, err := s.fetchHolidays(ctx, year)
	if err != nil {
		log.Printf("[checkin] fetch holidays for %d failed: %v", year, err)
		return map[string]Holiday{}
	}

	s.mu.Lock()
	s.holidays[key] = fetched
	if err := store.SaveDocument(s.holidayPath, s.holidays); err != nil {
		log.Printf("[checkin] save holiday cache failed: %v", err)
	}
	s.mu.Unlock()
	return fetched
}

func (s *System) fetchHolidays(ctx context.Context, year int) (map[string]Holiday, error) {
	client := resty.New().
		SetBaseURL(s.apiBase).
		SetTimeout(10 * time.Second)

	var data map[string]Holiday
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&data).
		// 节假日 API 不保证返回 Content-Type，强制按 JSON 解析
		ForceContentType("application/json").
		Get(fmt.Sprintf("/v1/holidays/%d", year))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("holiday api status %d", resp.StatusCode())
	}
	return data, nil
}
