package service

import (
	"context"
	"errors"

	"fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
	"fable/internal/store"
)

// ArcAggregator 弧级完成度聚合器
// 为每个叙事弧计算解锁状态：区间内每一集都要有完成的剧集
// 和完成的集级前期制作产物，弧级工作流才解锁。各弧相互独立。
type ArcAggregator struct {
	repo *storyrepo.Repository
}

// NewArcAggregator 创建聚合器
func NewArcAggregator(repo *storyrepo.Repository) *ArcAggregator {
	return &ArcAggregator{repo: repo}
}

// CanUnlockArc 计算弧 arcIndex 的解锁状态
//
// episodes 为已加载的剧集序号索引（剧集图或前期制作状态图变更时重算）。
// MissingEpisodes 列出区间内缺失剧集的序号；
// MissingEpisodePreProd 列出剧集存在但集级前期制作缺失/未完成的序号；
// 两者皆空时 CanUnlock 为真。
func (a *ArcAggregator) CanUnlockArc(ctx context.Context, bible *story.StoryBible, arcIndex int, episodes map[int]*story.Episode) (*story.ArcUnlockStatus, error) {
	start, end, err := bible.ArcRange(arcIndex)
	if err != nil {
		return nil, err
	}

	status := &story.ArcUnlockStatus{
		MissingEpisodes:       []int{},
		MissingEpisodePreProd: []int{},
	}

	for n := start; n <= end; n++ {
		ep, ok := episodes[n]
		if !ok || !ep.IsComplete() {
			status.MissingEpisodes = append(status.MissingEpisodes, n)
			continue
		}

		pp, err := a.repo.GetEpisodePreProduction(ctx, bible.ID, n)
		if errors.Is(err, store.ErrNotFound) {
			status.MissingEpisodePreProd = append(status.MissingEpisodePreProd, n)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !pp.Complete {
			status.MissingEpisodePreProd = append(status.MissingEpisodePreProd, n)
		}
	}

	status.CanUnlock = len(status.MissingEpisodes) == 0 && len(status.MissingEpisodePreProd) == 0
	return status, nil
}
