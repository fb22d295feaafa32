package store

import (
	"context"
	"errors"
	"time"
)

func (s *Store) ensureHistoryTable(ctx context.Context) error {
	var ddl string
	if s.IsSQLite() {
		ddl = `CREATE TABLE IF NOT EXISTS notification_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			stage INTEGER NOT NULL DEFAULT 0,
			title TEXT,
			content TEXT,
			status TEXT NOT NULL,
			error TEXT,
			sent_at TIMESTAMP NULL,
			created_at TIMESTAMP NOT NULL
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS notification_history (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			channel VARCHAR(32) NOT NULL,
			stage INT NOT NULL DEFAULT 0,
			title VARCHAR(255),
			content TEXT,
			status VARCHAR(16) NOT NULL,
			error TEXT,
			sent_at DATETIME NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_history_user (user_id, created_at)
		)`
	}
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// InsertHistory 写入一条通知投递历史。
func (s *Store) InsertHistory(ctx context.Context, rec HistoryRecord) error {
	if rec.ID == "" || rec.UserID == "" || rec.Channel == "" {
		return errors.New("id, user_id, channel are required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO notification_history
		(id, user_id, channel, stage, title, content, status, error, sent_at, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.UserID, rec.Channel, rec.Stage, rec.Title, rec.Content,
		rec.Status, nullOrString(rec.Error), rec.SentAt, rec.CreatedAt)
	return err
}

// ListHistory 返回某用户最近的投递历史，userID 为空时返回全部用户。
func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	query := `SELECT id, user_id, channel, stage, title, content, status, error, sent_at, created_at
		FROM notification_history`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var errText *string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Channel, &rec.Stage, &rec.Title,
			&rec.Content, &rec.Status, &errText, &rec.SentAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if errText != nil {
			rec.Error = *errText
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountHistoryByStatus 按状态统计投递历史条数。
func (s *Store) CountHistoryByStatus(ctx context.Context, status string) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_history WHERE status=?`, status).Scan(&n)
	return n, err
}
