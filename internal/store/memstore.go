package store

import (
	"context"
	"sync"
)

// MemStore 进程内键值存储
// Redis 未配置时充当本地缓存层的兜底后端（服务端各外部依赖均为可选），
// 同时也是单元测试的替身。进程重启后数据即丢失。
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // scope → key → value
}

// NewMemStore 创建进程内存储
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string][]byte)}
}

// Get 读取键值
func (s *MemStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[scope][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set 写入键值（后写胜出）
func (s *MemStore) Set(ctx context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[scope] == nil {
		s.data[scope] = make(map[string][]byte)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[scope][key] = stored
	return nil
}

// List 列出某作用域的全部键值
func (s *MemStore) List(ctx context.Context, scope string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(s.data[scope]))
	for k, v := range s.data[scope] {
		out := make([]byte, len(v))
		copy(out, v)
		result[k] = out
	}
	return result, nil
}

// Delete 删除单个键
func (s *MemStore) Delete(ctx context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[scope], key)
	return nil
}

// DeleteAll 清空某作用域
func (s *MemStore) DeleteAll(ctx context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, scope)
	return nil
}
