package service

import (
	"context"
	"fmt"

	"fable/internal/model/story"
	"fable/internal/pkg/id"
	storyrepo "fable/internal/repository/story"
)

// StoryService 故事圣经服务
type StoryService struct {
	repo *storyrepo.Repository
}

// NewStoryService 创建故事圣经服务
func NewStoryService(repo *storyrepo.Repository) *StoryService {
	return &StoryService{repo: repo}
}

// CreateStoryBibleInput 创建故事圣经请求
type CreateStoryBibleInput struct {
	Title         string               `json:"title"`
	Characters    []story.Character    `json:"characters"`
	NarrativeArcs []story.NarrativeArc `json:"narrative_arcs"`
}

// CreateStoryBible 创建故事圣经
// 访客模式下 userID 为空，数据只进本地缓存。
func (s *StoryService) CreateStoryBible(ctx context.Context, userID string, input CreateStoryBibleInput) (*story.StoryBible, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if len(input.NarrativeArcs) == 0 {
		return nil, fmt.Errorf("at least one narrative arc is required")
	}

	b := &story.StoryBible{
		ID:            id.New(),
		UserID:        userID,
		Title:         input.Title,
		Characters:    input.Characters,
		NarrativeArcs: input.NarrativeArcs,
	}
	if total := b.TotalEpisodes(); total > story.MaxEpisodes {
		return nil, fmt.Errorf("story bible implies %d episodes, maximum is %d", total, story.MaxEpisodes)
	}

	if err := s.repo.SaveStoryBible(ctx, b); err != nil {
		return nil, fmt.Errorf("save story bible: %w", err)
	}
	return b, nil
}

// GetStoryBible 读取故事圣经
func (s *StoryService) GetStoryBible(ctx context.Context, bibleID string) (*story.StoryBible, error) {
	return s.repo.GetStoryBible(ctx, bibleID)
}

// ListStoryBibles 列出故事圣经
func (s *StoryService) ListStoryBibles(ctx context.Context) ([]*story.StoryBible, error) {
	return s.repo.ListStoryBibles(ctx)
}

// UpdateTitle 修改标题（圣经少数允许的变更之一，弧结构保持不变）
func (s *StoryService) UpdateTitle(ctx context.Context, bibleID, title string) (*story.StoryBible, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	b, err := s.repo.GetStoryBible(ctx, bibleID)
	if err != nil {
		return nil, err
	}
	b.Title = title
	if err := s.repo.SaveStoryBible(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListEpisodes 列出某故事圣经已生成的全部剧集（按序号升序）
func (s *StoryService) ListEpisodes(ctx context.Context, bibleID string) ([]*story.Episode, error) {
	return s.repo.ListEpisodes(ctx, bibleID)
}

// EpisodeMap 已生成剧集的序号索引（弧级聚合的输入）
func (s *StoryService) EpisodeMap(ctx context.Context, bibleID string) (map[int]*story.Episode, error) {
	return s.repo.EpisodeMap(ctx, bibleID)
}

// DeleteStoryBible 删除故事圣经及其全部剧集与前期制作产物（批量清除）
func (s *StoryService) DeleteStoryBible(ctx context.Context, bibleID string) error {
	return s.repo.DeleteStoryBible(ctx, bibleID)
}
