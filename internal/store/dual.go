package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"fable/internal/pkg/ctxutil"
)

// DualStore 双后端仓库门面
//
// 后端选择：context 中存在认证身份且远端可用时选远端，否则选本地缓存。
// 写入：远端写成功后仍然镜像写本地（离线备份），镜像失败不致命；
// 两次写是顺序执行的独立操作，中间崩溃留下的分歧由恢复扫描修复。
// 读取：剧集与前期制作状态只按后端选择读（不合并）；
// 故事圣经先读远端，远端未命中或出错时回落本地。
// 远端不可达一律降级为本地 + 日志，除非本地也为空，否则不升级为用户可见错误。
type DualStore struct {
	remote Store // 可能为 nil（Mongo 未配置）
	local  Store // 永不为 nil（Redis 或进程内兜底）
}

// NewDualStore 创建双后端仓库
// remote 可为 nil；local 为 nil 时自动使用进程内存储兜底。
func NewDualStore(remote, local Store) *DualStore {
	if local == nil {
		local = NewMemStore()
	}
	return &DualStore{remote: remote, local: local}
}

// Remote 远端后端（恢复扫描需要直接对比两端，可能为 nil）
func (d *DualStore) Remote() Store { return d.remote }

// Local 本地后端
func (d *DualStore) Local() Store { return d.local }

// useRemote 判断本次操作是否路由到远端
func (d *DualStore) useRemote(ctx context.Context) bool {
	if d.remote == nil {
		return false
	}
	_, ok := ctxutil.GetUserID(ctx)
	return ok
}

// Get 读取键值（后端选择，不合并）
// 远端出错时降级本地；远端 ErrNotFound 不回落（见 GetWithFallback）。
func (d *DualStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	if !d.useRemote(ctx) {
		return d.local.Get(ctx, scope, key)
	}

	data, err := d.remote.Get(ctx, scope, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("scope", scope).Str("key", key).
			Msg("remote store unavailable, falling back to local cache")
		return d.local.Get(ctx, scope, key)
	}
	return data, err
}

// GetWithFallback 读取键值，远端未命中或出错时都回落本地
// 故事圣经走这条路径：它可能只存在于某一端（访客期创建后登录等）。
func (d *DualStore) GetWithFallback(ctx context.Context, scope, key string) ([]byte, error) {
	if !d.useRemote(ctx) {
		return d.local.Get(ctx, scope, key)
	}

	data, err := d.remote.Get(ctx, scope, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("scope", scope).Str("key", key).
			Msg("remote store unavailable, falling back to local cache")
	}
	return d.local.Get(ctx, scope, key)
}

// Set 写入键值
// 登录用户：远端必须成功，随后尽力镜像到本地（镜像失败仅告警）。
// 访客：只写本地。
func (d *DualStore) Set(ctx context.Context, scope, key string, value []byte) error {
	if !d.useRemote(ctx) {
		return d.local.Set(ctx, scope, key, value)
	}

	if err := d.remote.Set(ctx, scope, key, value); err != nil {
		return err
	}
	if err := d.local.Set(ctx, scope, key, value); err != nil {
		log.Warn().Err(err).Str("scope", scope).Str("key", key).
			Msg("local mirror write failed (non-fatal)")
	}
	return nil
}

// List 列出某作用域的全部键值（后端选择，不合并）
func (d *DualStore) List(ctx context.Context, scope string) (map[string][]byte, error) {
	if !d.useRemote(ctx) {
		return d.local.List(ctx, scope)
	}

	result, err := d.remote.List(ctx, scope)
	if err != nil {
		log.Warn().Err(err).Str("scope", scope).
			Msg("remote store unavailable, falling back to local cache")
		return d.local.List(ctx, scope)
	}
	return result, nil
}

// Delete 删除单个键（选中后端为准，本地镜像一并清理）
func (d *DualStore) Delete(ctx context.Context, scope, key string) error {
	if !d.useRemote(ctx) {
		return d.local.Delete(ctx, scope, key)
	}

	if err := d.remote.Delete(ctx, scope, key); err != nil {
		return err
	}
	if err := d.local.Delete(ctx, scope, key); err != nil {
		log.Warn().Err(err).Str("scope", scope).Str("key", key).
			Msg("local mirror delete failed (non-fatal)")
	}
	return nil
}

// DeleteAll 清空某作用域（批量清除同时作用于两端）
func (d *DualStore) DeleteAll(ctx context.Context, scope string) error {
	if !d.useRemote(ctx) {
		return d.local.DeleteAll(ctx, scope)
	}

	if err := d.remote.DeleteAll(ctx, scope); err != nil {
		return err
	}
	if err := d.local.DeleteAll(ctx, scope); err != nil {
		log.Warn().Err(err).Str("scope", scope).
			Msg("local mirror clear failed (non-fatal)")
	}
	return nil
}
