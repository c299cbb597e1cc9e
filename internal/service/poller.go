package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"fable/internal/pkg/apperr"
	"fable/internal/store"
)

// 生成在独立的请求生命周期（serverless 函数）中执行，无法向调用方推送，
// 结果只能靠轮询仓库发现。完成判定是可插拔谓词：中间步骤会写入草稿，
// 只有携带完成标记的值才能作为最终结果返回。

// CompletionPredicate 完成判定谓词
// 返回 true 表示该值是最终结果；草稿/部分写入返回 false。
type CompletionPredicate func(raw []byte) bool

// Poller 生成任务轮询器
type Poller struct {
	kv       *store.DualStore
	interval time.Duration
}

// NewPoller 创建轮询器
func NewPoller(kv *store.DualStore, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{kv: kv, interval: interval}
}

// Await 轮询等待某键出现携带完成标记的值
//
// 行为：先立即检查一次（挂载时的并行存在性检查），之后每个间隔采样一次；
// 谓词不通过的值被忽略，轮询继续。超时触发后会再采样最后一次，
// 容忍"计时器触发"与"写入刚落地"之间的竞争；仍无结果则返回
// apperr.ErrGenerationTimeout。context 取消立即终止轮询
// （已派发的生成请求本身不会被取消，放弃的只是观察）。
func (p *Poller) Await(ctx context.Context, scope, key string, timeout time.Duration, complete CompletionPredicate) ([]byte, error) {
	if raw, ok := p.sample(ctx, scope, key, complete); ok {
		return raw, nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if raw, ok := p.sample(ctx, scope, key, complete); ok {
				return raw, nil
			}
		case <-deadline.C:
			// 超时后的最终复查
			if raw, ok := p.sample(ctx, scope, key, complete); ok {
				return raw, nil
			}
			log.Warn().Str("scope", scope).Str("key", key).Dur("timeout", timeout).
				Msg("polling timed out without a completion-marked result")
			return nil, apperr.ErrGenerationTimeout
		}
	}
}

// sample 采样一次仓库
// 存储层错误不终止轮询（下一个 tick 重试），未命中与草稿同样继续等待。
func (p *Poller) sample(ctx context.Context, scope, key string, complete CompletionPredicate) ([]byte, bool) {
	raw, err := p.kv.Get(ctx, scope, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Debug().Err(err).Str("scope", scope).Str("key", key).Msg("poll sample failed, will retry")
		}
		return nil, false
	}
	if !complete(raw) {
		return nil, false
	}
	return raw, true
}
