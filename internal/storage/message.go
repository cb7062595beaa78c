package storage

import (
	"time"
)

// 消息类型
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
	MessageTypeSystem    = "system"
	MessageTypeTool      = "tool"
	MessageTypeSummary   = "summary"
)

// SessionMessage 会话消息实体，has_image 标记内容是否携带截图
type SessionMessage struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	Type       string    `json:"message_type"`
	Content    string    `json:"content"`
	HasImage   bool      `json:"has_image"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func insertMessage(tx *Tx, m *SessionMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	hasImage := 0
	if m.HasImage {
		hasImage = 1
	}

	result, err := tx.Exec(
		"INSERT INTO session_messages (session_id, message_type, content, has_image, token_count, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.SessionID, m.Type, m.Content, hasImage, m.TokenCount, m.CreatedAt,
	)
	if err != nil {
		return err
	}

	m.ID, err = result.LastInsertId()
	return err
}

// refreshSessionCounters 按消息表重新计算会话的计数字段
func refreshSessionCounters(tx *Tx, sessionID int64) error {
	now := time.Now()
	_, err := tx.Exec(`
		UPDATE user_sessions SET
			message_count = (SELECT COUNT(*) FROM session_messages WHERE session_id = ?),
			total_tokens = (SELECT COALESCE(SUM(token_count), 0) FROM session_messages WHERE session_id = ?),
			last_active_at = ?,
			updated_at = ?
		WHERE id = ?
	`, sessionID, sessionID, now, now, sessionID)
	return err
}

// AppendMessage 添加消息并同步会话计数
func (db *DB) AppendMessage(sessionID int64, msgType, content string, hasImage bool, tokenCount int) (*SessionMessage, error) {
	m := &SessionMessage{
		SessionID:  sessionID,
		Type:       msgType,
		Content:    content,
		HasImage:   hasImage,
		TokenCount: tokenCount,
	}

	err := db.WithTx(func(tx *Tx) error {
		if err := insertMessage(tx, m); err != nil {
			return err
		}
		return refreshSessionCounters(tx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// GetMessages 按写入顺序获取会话消息，limit <= 0 表示全部
func (db *DB) GetMessages(sessionID int64, limit int) ([]*SessionMessage, error) {
	query := "SELECT id, session_id, message_type, content, has_image, token_count, created_at FROM session_messages WHERE session_id = ? ORDER BY id ASC"
	args := []any{sessionID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*SessionMessage
	for rows.Next() {
		var m SessionMessage
		var hasImage int

		if err := rows.Scan(&m.ID, &m.SessionID, &m.Type, &m.Content, &hasImage, &m.TokenCount, &m.CreatedAt); err != nil {
			return nil, err
		}

		m.HasImage = hasImage != 0
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}

// CountMessages 统计会话消息数
func (db *DB) CountMessages(sessionID int64) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM session_messages WHERE session_id = ?", sessionID).Scan(&count)
	return count, err
}

// CountImageMessages 统计会话中带截图的消息数
func (db *DB) CountImageMessages(sessionID int64) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM session_messages WHERE session_id = ? AND has_image = 1", sessionID).Scan(&count)
	return count, err
}

// CleanupOldImages 删除会话中较早的截图消息，只保留最近 keepLastN 条，
// 不带截图的消息不受影响。返回删除数量。
func (db *DB) CleanupOldImages(sessionID int64, keepLastN int) (int64, error) {
	if keepLastN < 0 {
		keepLastN = 0
	}

	var deleted int64
	err := db.WithTx(func(tx *Tx) error {
		result, err := tx.Exec(`
			DELETE FROM session_messages
			WHERE session_id = ? AND has_image = 1 AND id NOT IN (
				SELECT id FROM session_messages
				WHERE session_id = ? AND has_image = 1
				ORDER BY id DESC LIMIT ?
			)
		`, sessionID, sessionID, keepLastN)
		if err != nil {
			return err
		}

		deleted, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}

		return refreshSessionCounters(tx, sessionID)
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// ReplaceMessages 原子地用新消息集替换会话的全部消息，
// 用于压缩结果落盘：旧消息删除、压缩后的消息写入同一事务。
func (db *DB) ReplaceMessages(sessionID int64, messages []*SessionMessage) error {
	return db.WithTx(func(tx *Tx) error {
		if _, err := tx.Exec("DELETE FROM session_messages WHERE session_id = ?", sessionID); err != nil {
			return err
		}

		for _, m := range messages {
			m.ID = 0
			m.SessionID = sessionID
			if err := insertMessage(tx, m); err != nil {
				return err
			}
		}

		return refreshSessionCounters(tx, sessionID)
	})
}
