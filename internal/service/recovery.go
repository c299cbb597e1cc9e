package service

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	storyrepo "fable/internal/repository/story"
	"fable/internal/store"
)

// RecoveryScanner 分歧恢复扫描器
// 远端写与本地镜像写之间崩溃、或访客期离线生成的内容，会让两端分歧。
// 扫描器在加载时对比本地缓存与远端权威存储，报告本地有而远端没有的剧集。
// 只报告，从不自动合并——恢复需要用户在独立流程中显式确认。
// 每会话每故事圣经只跑一次（由调用方控制）。
type RecoveryScanner struct {
	repo *storyrepo.Repository
}

// NewRecoveryScanner 创建恢复扫描器
func NewRecoveryScanner(repo *storyrepo.Repository) *RecoveryScanner {
	return &RecoveryScanner{repo: repo}
}

// FindRecoverable 返回可恢复的剧集序号（升序）
// 仅对登录用户有意义：访客模式没有第二个存储可分歧，恒返回空。
func (s *RecoveryScanner) FindRecoverable(ctx context.Context, userID, bibleID string) ([]int, error) {
	remote := s.repo.Store().Remote()
	if userID == "" || remote == nil {
		return []int{}, nil
	}

	// 本地缓存中该圣经已有的剧集序号
	local, err := s.repo.Store().Local().List(ctx, store.ScopeEpisode)
	if err != nil {
		return nil, err
	}

	var recoverable []int
	for key := range local {
		id, number, ok := store.ParseEpisodeKey(key)
		if !ok || id != bibleID {
			continue
		}

		_, err := remote.Get(ctx, store.ScopeEpisode, key)
		if errors.Is(err, store.ErrNotFound) {
			recoverable = append(recoverable, number)
			continue
		}
		if err != nil {
			// 远端不可达时无法判定分歧，放弃本次扫描而不是误报
			log.Warn().Err(err).Str("story_bible_id", bibleID).
				Msg("recovery scan aborted: remote store unavailable")
			return []int{}, nil
		}
	}

	sort.Ints(recoverable)
	if recoverable == nil {
		recoverable = []int{}
	}
	return recoverable, nil
}
