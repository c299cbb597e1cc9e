package store

import (
	"context"
	"errors"
)

// 双后端键值存储：远端权威存储（MongoDB，按用户身份分隔）与
// 本地持久缓存（Redis，固定命名空间）。上层仓库只依赖 Store 接口，
// 后端选择与镜像写入由 DualStore 统一处理。

// ErrNotFound 键不存在
// 缓存中的损坏 JSON 同样映射为 ErrNotFound 而不是解码错误，
// 上层永远不需要区分"没写过"和"写坏了"。
var ErrNotFound = errors.New("store: key not found")

// 规范作用域名。读取时会额外尝试历史命名空间（见 keys.go），
// 写入只使用规范名。
const (
	ScopeStoryBible    = "story_bibles"
	ScopeEpisode       = "episodes"
	ScopePreProduction = "preproduction"
	ScopeChoice        = "choices"
	ScopeJob           = "generation_jobs"
)

// Store 键值存储后端
// 值为原始 JSON 字节，写入什么读出什么（逐字节一致）。
type Store interface {
	// Get 读取键值，不存在返回 ErrNotFound
	Get(ctx context.Context, scope, key string) ([]byte, error)

	// Set 写入键值（覆盖语义，后写胜出）
	Set(ctx context.Context, scope, key string, value []byte) error

	// List 列出某作用域下的全部键值
	List(ctx context.Context, scope string) (map[string][]byte, error)

	// Delete 删除单个键（键不存在不算错误）
	Delete(ctx context.Context, scope, key string) error

	// DeleteAll 清空某作用域（显式批量清除）
	DeleteAll(ctx context.Context, scope string) error
}
