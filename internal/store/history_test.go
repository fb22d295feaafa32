package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestInsertAndListHistory 写入并按用户查询投递历史
func TestInsertAndListHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.InsertHistory(ctx, HistoryRecord{
		ID: "h1", UserID: "10001", Channel: "email", Stage: 2,
		Title: "紧急求助", Status: HistoryStatusSent, SentAt: &now,
	}))
	require.NoError(t, s.InsertHistory(ctx, HistoryRecord{
		ID: "h2", UserID: "10001", Channel: "private", Stage: 1,
		Status: HistoryStatusFailed, Error: "retcode 100",
	}))
	require.NoError(t, s.InsertHistory(ctx, HistoryRecord{
		ID: "h3", UserID: "10002", Channel: "email", Stage: 1,
		Status: HistoryStatusSent, SentAt: &now,
	}))

	recs, err := s.ListHistory(ctx, "10001", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "10001", r.UserID)
	}

	all, err := s.ListHistory(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sent, err := s.CountHistoryByStatus(ctx, HistoryStatusSent)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sent)
	failed, err := s.CountHistoryByStatus(ctx, HistoryStatusFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)
}

// TestInsertHistoryValidation 缺少必填字段时拒绝写入
func TestInsertHistoryValidation(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertHistory(context.Background(), HistoryRecord{ID: "x"})
	assert.Error(t, err)
}
