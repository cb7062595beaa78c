package storage

import (
	"errors"
	"sync"
	"time"
)

// currentSessionKV 当前会话指针在 kv_store 中的键名
const currentSessionKV = "session.current"

// Store 在 DB 之上维护"当前会话"指针。进程重启后通过 kv_store
// 恢复同一会话，Reset 则切换到全新会话（旧会话保留，等保留期清理）。
type Store struct {
	db *DB

	mu      sync.Mutex
	current *Session
}

// NewStore 创建会话存储
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// DB 返回底层数据库
func (s *Store) DB() *DB {
	return s.db
}

// Close 关闭底层数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Current 返回当前会话，必要时恢复或创建
func (s *Store) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Store) currentLocked() (*Session, error) {
	if s.current != nil {
		return s.current, nil
	}

	// 先尝试恢复上次的会话
	key, err := s.db.KVGet(currentSessionKV)
	if err == nil {
		sess, err := s.db.GetSession(key)
		if err == nil {
			s.current = sess
			return sess, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// 指针指向的会话已被清理，走新建
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s.createLocked()
}

func (s *Store) createLocked() (*Session, error) {
	sess, err := s.db.CreateSession(nil)
	if err != nil {
		return nil, err
	}
	if err := s.db.KVSet(currentSessionKV, sess.SessionKey, 0); err != nil {
		return nil, err
	}

	s.current = sess
	return sess, nil
}

// Reset 放弃当前会话并切换到新会话，返回新会话
func (s *Store) Reset() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

// SaveMessage 向当前会话追加消息
func (s *Store) SaveMessage(msgType, content string, hasImage bool, tokenCount int) (*SessionMessage, error) {
	sess, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.db.AppendMessage(sess.ID, msgType, content, hasImage, tokenCount)
}

// Messages 返回当前会话的消息，limit <= 0 表示全部
func (s *Store) Messages(limit int) ([]*SessionMessage, error) {
	sess, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.db.GetMessages(sess.ID, limit)
}

// Stats 重新读取当前会话的计数字段
func (s *Store) Stats() (*Session, error) {
	sess, err := s.Current()
	if err != nil {
		return nil, err
	}
	fresh, err := s.db.GetSessionByID(sess.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = fresh
	s.mu.Unlock()
	return fresh, nil
}

// MaintenanceResult 定期清理的结果
type MaintenanceResult struct {
	SessionsDeleted int64
	ExpiredKVKeys   int64
}

// Maintenance 删除超过保留期的会话并清理过期键值。
// 当前会话即使过期也不会被删除。
func (s *Store) Maintenance(retention time.Duration) (*MaintenanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)

	// 当前会话先续期，避免被自己的清理删掉
	if s.current != nil {
		if err := s.db.TouchSession(s.current.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	deleted, err := s.db.DeleteSessionsBefore(cutoff)
	if err != nil {
		return nil, err
	}

	expired, err := s.db.KVCleanExpired()
	if err != nil {
		return nil, err
	}

	return &MaintenanceResult{SessionsDeleted: deleted, ExpiredKVKeys: expired}, nil
}
