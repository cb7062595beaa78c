package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound 表示记录不存在
var ErrNotFound = errors.New("not found")

// Session 用户会话实体，消息计数与 token 计数由写入方维护
type Session struct {
	ID           int64           `json:"id"`
	SessionKey   string          `json:"session_key"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastActiveAt time.Time       `json:"last_active_at"`
	MessageCount int             `json:"message_count"`
	TotalTokens  int             `json:"total_tokens"`
	Metadata     json.RawMessage `json:"metadata"`
}

// CreateSession 创建新会话，session_key 自动生成
func (db *DB) CreateSession(metadata json.RawMessage) (*Session, error) {
	return db.CreateSessionWithKey(uuid.New().String(), metadata)
}

// CreateSessionWithKey 使用指定 session_key 创建新会话
func (db *DB) CreateSessionWithKey(key string, metadata json.RawMessage) (*Session, error) {
	now := time.Now()

	if metadata == nil {
		metadata = json.RawMessage("{}")
	}

	result, err := db.Exec(
		"INSERT INTO user_sessions (session_key, created_at, updated_at, last_active_at, metadata) VALUES (?, ?, ?, ?, ?)",
		key, now, now, now, string(metadata),
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:           id,
		SessionKey:   key,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
		Metadata:     metadata,
	}, nil
}

const sessionColumns = "id, session_key, created_at, updated_at, last_active_at, message_count, total_tokens, COALESCE(metadata, '{}')"

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	var metadataStr string

	err := row.Scan(&s.ID, &s.SessionKey, &s.CreatedAt, &s.UpdatedAt, &s.LastActiveAt,
		&s.MessageCount, &s.TotalTokens, &metadataStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Metadata = json.RawMessage(metadataStr)
	return &s, nil
}

// GetSession 按 session_key 获取会话
func (db *DB) GetSession(key string) (*Session, error) {
	row := db.QueryRow("SELECT "+sessionColumns+" FROM user_sessions WHERE session_key = ?", key)
	return scanSession(row)
}

// GetSessionByID 按自增 ID 获取会话
func (db *DB) GetSessionByID(id int64) (*Session, error) {
	row := db.QueryRow("SELECT "+sessionColumns+" FROM user_sessions WHERE id = ?", id)
	return scanSession(row)
}

// UpdateSessionMetadata 更新会话元数据
func (db *DB) UpdateSessionMetadata(key string, metadata json.RawMessage) error {
	result, err := db.Exec(
		"UPDATE user_sessions SET metadata = ?, updated_at = ? WHERE session_key = ?",
		string(metadata), time.Now(), key,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// TouchSession 刷新会话活跃时间
func (db *DB) TouchSession(id int64) error {
	now := time.Now()
	result, err := db.Exec(
		"UPDATE user_sessions SET last_active_at = ?, updated_at = ? WHERE id = ?",
		now, now, id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteSession 删除会话，消息随外键级联删除
func (db *DB) DeleteSession(key string) error {
	result, err := db.Exec("DELETE FROM user_sessions WHERE session_key = ?", key)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteSessionsBefore 删除 last_active_at 早于 cutoff 的会话，返回删除数量
func (db *DB) DeleteSessionsBefore(cutoff time.Time) (int64, error) {
	result, err := db.Exec("DELETE FROM user_sessions WHERE last_active_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListSessions 按活跃时间倒序列出会话
func (db *DB) ListSessions(limit, offset int) ([]*Session, error) {
	query := "SELECT " + sessionColumns + " FROM user_sessions ORDER BY last_active_at DESC"
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}
