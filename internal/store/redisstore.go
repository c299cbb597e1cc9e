package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fable/internal/config"
)

// RedisStore 本地持久缓存后端
// 访客模式下它是唯一存储；登录用户下它是远端写入的离线/备份镜像。
// 键空间为固定的命名空间前缀（含历史前缀兼容读），与用户身份无关，
// 多个写入方竞争同一键时后写胜出，不做协调。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 缓存后端
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Get 读取键值
// 依次尝试规范前缀与历史前缀；命中但内容不是合法 JSON 时
// 视为 ErrNotFound 而不是解码失败（历史数据可能被其他写入方截断）。
func (s *RedisStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	for _, prefix := range readPrefixes(scope) {
		data, err := s.client.Get(ctx, prefix+":"+key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !json.Valid(data) {
			continue
		}
		return data, nil
	}
	return nil, ErrNotFound
}

// Set 写入键值（仅规范前缀，无过期）
func (s *RedisStore) Set(ctx context.Context, scope, key string, value []byte) error {
	return s.client.Set(ctx, writePrefix(scope)+":"+key, value, 0).Err()
}

// List 列出某作用域的全部键值
// 规范前缀与历史前缀都会扫描，同名键以规范前缀数据优先。
func (s *RedisStore) List(ctx context.Context, scope string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	for _, prefix := range readPrefixes(scope) {
		iter := s.client.Scan(ctx, 0, prefix+":*", 0).Iterator()
		for iter.Next(ctx) {
			full := iter.Val()
			key := strings.TrimPrefix(full, prefix+":")
			if _, seen := result[key]; seen {
				continue
			}
			data, err := s.client.Get(ctx, full).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !json.Valid(data) {
				continue
			}
			result[key] = data
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Delete 删除单个键（所有前缀下的同名键一并删除）
func (s *RedisStore) Delete(ctx context.Context, scope, key string) error {
	keys := make([]string, 0, len(readPrefixes(scope)))
	for _, prefix := range readPrefixes(scope) {
		keys = append(keys, prefix+":"+key)
	}
	return s.client.Del(ctx, keys...).Err()
}

// DeleteAll 清空某作用域（含历史前缀）
func (s *RedisStore) DeleteAll(ctx context.Context, scope string) error {
	for _, prefix := range readPrefixes(scope) {
		iter := s.client.Scan(ctx, 0, prefix+":*", 0).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}
