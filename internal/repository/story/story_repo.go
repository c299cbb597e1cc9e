package story

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"fable/internal/model/story"
	"fable/internal/store"
)

// Repository 故事数据仓库（供 service 层依赖）
// 所有读写都经过 DualStore 门面，后端选择与镜像策略对上层透明。
// 值以 JSON 编码存取，写入什么读出什么。
type Repository struct {
	kv *store.DualStore
}

// NewRepository 创建故事数据仓库
func NewRepository(kv *store.DualStore) *Repository {
	return &Repository{kv: kv}
}

// Store 底层双后端门面（恢复扫描等需要直接访问两端）
func (r *Repository) Store() *store.DualStore { return r.kv }

// decode 解码存储值
// 损坏的 JSON 视为 ErrNotFound：缓存数据可能被其他写入方写坏，
// 这不应成为崩溃或用户可见错误。
func decode(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn().Err(err).Msg("malformed stored value, treating as not found")
		return store.ErrNotFound
	}
	return nil
}

// --- 故事圣经 ---

// SaveStoryBible 保存故事圣经
func (r *Repository) SaveStoryBible(ctx context.Context, b *story.StoryBible) error {
	b.UpdatedAt = time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.UpdatedAt
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, store.ScopeStoryBible, b.ID, data)
}

// GetStoryBible 读取故事圣经（远端优先，未命中或出错回落本地）
func (r *Repository) GetStoryBible(ctx context.Context, id string) (*story.StoryBible, error) {
	data, err := r.kv.GetWithFallback(ctx, store.ScopeStoryBible, id)
	if err != nil {
		return nil, err
	}
	var b story.StoryBible
	if err := decode(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListStoryBibles 列出全部故事圣经
func (r *Repository) ListStoryBibles(ctx context.Context) ([]*story.StoryBible, error) {
	raw, err := r.kv.List(ctx, store.ScopeStoryBible)
	if err != nil {
		return nil, err
	}
	bibles := make([]*story.StoryBible, 0, len(raw))
	for _, data := range raw {
		var b story.StoryBible
		if err := decode(data, &b); err != nil {
			continue // 跳过坏数据
		}
		bibles = append(bibles, &b)
	}
	sort.Slice(bibles, func(i, j int) bool { return bibles[i].CreatedAt.Before(bibles[j].CreatedAt) })
	return bibles, nil
}

// DeleteStoryBible 删除故事圣经及其全部派生内容（显式批量清除）
func (r *Repository) DeleteStoryBible(ctx context.Context, id string) error {
	if err := r.kv.Delete(ctx, store.ScopeStoryBible, id); err != nil {
		return err
	}
	// 剧集、前期制作、选择与任务标记按圣经前缀清理
	for _, scope := range []string{store.ScopeEpisode, store.ScopePreProduction, store.ScopeChoice, store.ScopeJob} {
		raw, err := r.kv.List(ctx, scope)
		if err != nil {
			return err
		}
		for key := range raw {
			if !strings.HasPrefix(key, id+":") {
				continue
			}
			if err := r.kv.Delete(ctx, scope, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- 剧集 ---

// SaveEpisode 保存剧集（生成结果写入，后写胜出）
func (r *Repository) SaveEpisode(ctx context.Context, e *story.Episode) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, store.ScopeEpisode, store.EpisodeKey(e.StoryBibleID, e.Number), data)
}

// GetEpisode 读取剧集
func (r *Repository) GetEpisode(ctx context.Context, bibleID string, number int) (*story.Episode, error) {
	data, err := r.kv.Get(ctx, store.ScopeEpisode, store.EpisodeKey(bibleID, number))
	if err != nil {
		return nil, err
	}
	var e story.Episode
	if err := decode(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// EpisodeExists 检查剧集是否存在（时序校验用，不要求完成标记）
func (r *Repository) EpisodeExists(ctx context.Context, bibleID string, number int) (bool, error) {
	_, err := r.GetEpisode(ctx, bibleID, number)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// ListEpisodes 列出某故事圣经的全部剧集（按序号升序）
func (r *Repository) ListEpisodes(ctx context.Context, bibleID string) ([]*story.Episode, error) {
	raw, err := r.kv.List(ctx, store.ScopeEpisode)
	if err != nil {
		return nil, err
	}
	var episodes []*story.Episode
	for key, data := range raw {
		id, _, ok := store.ParseEpisodeKey(key)
		if !ok || id != bibleID {
			continue
		}
		var e story.Episode
		if err := decode(data, &e); err != nil {
			continue
		}
		episodes = append(episodes, &e)
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Number < episodes[j].Number })
	return episodes, nil
}

// EpisodeMap 已加载剧集数据的序号索引（弧级聚合的输入）
func (r *Repository) EpisodeMap(ctx context.Context, bibleID string) (map[int]*story.Episode, error) {
	episodes, err := r.ListEpisodes(ctx, bibleID)
	if err != nil {
		return nil, err
	}
	m := make(map[int]*story.Episode, len(episodes))
	for _, e := range episodes {
		m[e.Number] = e
	}
	return m, nil
}

// --- 前期制作 ---

// SavePreProduction 保存前期制作产物
func (r *Repository) SavePreProduction(ctx context.Context, p *story.PreProduction) error {
	p.LastUpdated = time.Now()
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, store.ScopePreProduction, preProdKey(p), data)
}

func preProdKey(p *story.PreProduction) string {
	if p.IsArcLevel() {
		return store.ArcPreProductionKey(p.StoryBibleID, *p.ArcIndex)
	}
	return store.PreProductionKey(p.StoryBibleID, p.EpisodeNumber)
}

// GetEpisodePreProduction 读取集级前期制作产物
func (r *Repository) GetEpisodePreProduction(ctx context.Context, bibleID string, number int) (*story.PreProduction, error) {
	data, err := r.kv.Get(ctx, store.ScopePreProduction, store.PreProductionKey(bibleID, number))
	if err != nil {
		return nil, err
	}
	var p story.PreProduction
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetArcPreProduction 读取弧级前期制作产物
func (r *Repository) GetArcPreProduction(ctx context.Context, bibleID string, arcIndex int) (*story.PreProduction, error) {
	data, err := r.kv.Get(ctx, store.ScopePreProduction, store.ArcPreProductionKey(bibleID, arcIndex))
	if err != nil {
		return nil, err
	}
	var p story.PreProduction
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- 用户选择 ---

// SaveChoice 保存用户选择（每集一条，覆盖写）
func (r *Repository) SaveChoice(ctx context.Context, c *story.UserChoice) error {
	c.ChosenAt = time.Now()
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, store.ScopeChoice, store.ChoiceKey(c.StoryBibleID, c.EpisodeNumber), data)
}

// GetChoice 读取某集的用户选择，未选择过返回 ErrNotFound
func (r *Repository) GetChoice(ctx context.Context, bibleID string, number int) (*story.UserChoice, error) {
	data, err := r.kv.Get(ctx, store.ScopeChoice, store.ChoiceKey(bibleID, number))
	if err != nil {
		return nil, err
	}
	var c story.UserChoice
	if err := decode(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
