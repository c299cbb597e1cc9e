package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fable/internal/ai"
	"fable/internal/config"
	"fable/internal/model/story"
	"fable/internal/pkg/apperr"
	storyrepo "fable/internal/repository/story"
	"fable/internal/store"
)

// EpisodeGenerator 剧集生成端点
// 生产实现是 ai.Client；按接口注入，端点未配置时为 nil。
type EpisodeGenerator interface {
	GenerateEpisode(ctx context.Context, req *ai.EpisodeRequest) (*ai.EpisodeResult, error)
}

// GenerationService 剧集生成编排服务
// 流程：时序门禁 → 任务标记落库 → 异步调用生成接口 → 结果写入双后端。
// 触发调用立即返回任务键，调用方用 AwaitEpisode 轮询等待结果。
type GenerationService struct {
	repo     *storyrepo.Repository
	ai       EpisodeGenerator
	seq      *SequenceValidator
	poller   *Poller
	progress *ProgressService
	cfg      config.GenerationConfig
}

// NewGenerationService 创建生成编排服务
func NewGenerationService(
	repo *storyrepo.Repository,
	aiClient EpisodeGenerator,
	seq *SequenceValidator,
	poller *Poller,
	progress *ProgressService,
	cfg config.GenerationConfig,
) *GenerationService {
	return &GenerationService{
		repo:     repo,
		ai:       aiClient,
		seq:      seq,
		poller:   poller,
		progress: progress,
		cfg:      cfg,
	}
}

func (s *GenerationService) maxEpisodes() int {
	if s.cfg.MaxEpisodes > 0 {
		return s.cfg.MaxEpisodes
	}
	return story.MaxEpisodes
}

// GenerateEpisode 触发第 number 集生成，立即返回任务键
//
// 前置条件：序号在圣经范围内，且第 number-1 集已存在（时序门禁）。
// 重复生成同一集是允许的，结果覆盖写（后写胜出）。
func (s *GenerationService) GenerateEpisode(ctx context.Context, bibleID string, number int, genType story.GenerationType) (string, error) {
	if s.ai == nil {
		return "", fmt.Errorf("generation endpoint is not configured")
	}
	bible, err := s.repo.GetStoryBible(ctx, bibleID)
	if err != nil {
		return "", err
	}
	if number < 1 || number > s.maxEpisodes() || number > bible.TotalEpisodes() {
		return "", fmt.Errorf("episode number %d out of range (1..%d)", number, bible.TotalEpisodes())
	}
	if err := s.seq.Accessible(ctx, bibleID, number); err != nil {
		return "", err
	}

	if !genType.IsValid() {
		genType = story.GenerationTypeStandard
		if number > 1 {
			if _, err := s.repo.GetChoice(ctx, bibleID, number-1); err == nil {
				genType = story.GenerationTypeChoiceDriven
			}
		}
	}

	jobKey := store.JobKey(bibleID, "episode", number)
	if err := s.writeJobMarker(ctx, jobKey, story.JobStatusStarted, nil); err != nil {
		return "", err
	}
	s.progress.Start(jobKey)

	// WithoutCancel：请求返回后生成继续跑，身份值保留给存储层选端
	go s.runEpisode(context.WithoutCancel(ctx), jobKey, bible, number, genType)
	return jobKey, nil
}

func (s *GenerationService) runEpisode(ctx context.Context, jobKey string, bible *story.StoryBible, number int, genType story.GenerationType) {
	s.step(jobKey, 10, "收集生成上下文")

	req := &ai.EpisodeRequest{
		Bible:          bible,
		Number:         number,
		Stub:           bible.StubFor(number),
		GenerationType: genType,
	}
	if number > 1 {
		if choice, err := s.repo.GetChoice(ctx, bible.ID, number-1); err == nil {
			req.PriorChoice = choice
		}
		if prev, err := s.repo.GetEpisode(ctx, bible.ID, number-1); err == nil {
			req.PriorScenes = prev.Scenes
		}
	}

	s.step(jobKey, 40, "调用生成接口")
	result, err := s.ai.GenerateEpisode(ctx, req)
	if err != nil && !errors.Is(err, apperr.ErrMalformedResult) {
		log.Error().Err(err).Str("job", jobKey).Msg("episode generation failed")
		s.failJob(ctx, jobKey, err)
		return
	}
	if errors.Is(err, apperr.ErrMalformedResult) {
		// 占位结果照常落库，界面可渲染
		log.Warn().Str("job", jobKey).Msg("generation response missing expected structure, storing placeholder")
	}

	s.step(jobKey, 80, "写入生成结果")
	ep := &story.Episode{
		StoryBibleID:       bible.ID,
		Number:             number,
		Title:              result.Title,
		Scenes:             result.Scenes,
		GenerationType:     genType,
		GenerationComplete: true,
		GeneratedAt:        time.Now(),
	}
	if err := s.repo.SaveEpisode(ctx, ep); err != nil {
		log.Error().Err(err).Str("job", jobKey).Msg("failed to persist generated episode")
		s.failJob(ctx, jobKey, err)
		return
	}

	if err := s.writeJobMarker(ctx, jobKey, story.JobStatusCompleted, nil); err != nil {
		log.Warn().Err(err).Str("job", jobKey).Msg("failed to mark generation job completed")
	}
	s.step(jobKey, 100, "生成完成")
	s.progress.Stop(jobKey)
}

func (s *GenerationService) step(jobKey string, progress int, msg string) {
	s.progress.Update(jobKey, ProgressUpdate{Progress: &progress, Step: &msg, Log: msg})
}

func (s *GenerationService) failJob(ctx context.Context, jobKey string, cause error) {
	if err := s.writeJobMarker(ctx, jobKey, story.JobStatusFailed, cause); err != nil {
		log.Warn().Err(err).Str("job", jobKey).Msg("failed to mark generation job failed")
	}
	s.progress.Update(jobKey, ProgressUpdate{Log: "生成失败：" + cause.Error()})
	s.progress.Stop(jobKey)
}

func (s *GenerationService) writeJobMarker(ctx context.Context, jobKey string, status story.JobStatus, cause error) error {
	return putJobMarker(ctx, s.repo.Store(), jobKey, status, cause)
}

// JobStatus 读取任务标记，未触发过返回 store.ErrNotFound
func (s *GenerationService) JobStatus(ctx context.Context, jobKey string) (*JobMarker, error) {
	return getJobMarker(ctx, s.repo.Store(), jobKey)
}

// AwaitEpisode 轮询等待第 number 集出现携带完成标记的结果
// 这是强制重载读取路径：timeout<=0 时取配置的 reload_timeout。
// 读取同样受时序门禁保护，前一集不存在时直接拒绝而不是空等。
func (s *GenerationService) AwaitEpisode(ctx context.Context, bibleID string, number int, timeout time.Duration) (*story.Episode, error) {
	if err := s.seq.Accessible(ctx, bibleID, number); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.cfg.ReloadTimeout
	}
	if timeout <= 0 {
		timeout = s.cfg.PollTimeout
	}
	raw, err := s.poller.Await(ctx, store.ScopeEpisode, store.EpisodeKey(bibleID, number), timeout, EpisodeComplete)
	if err != nil {
		return nil, err
	}
	var e story.Episode
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

// EpisodeComplete 剧集完成谓词：草稿（无完成标记）不算结果
func EpisodeComplete(raw []byte) bool {
	var e story.Episode
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}
	return e.IsComplete()
}

// GetEpisode 读取剧集（带时序门禁：前一集不存在则拒绝访问）
func (s *GenerationService) GetEpisode(ctx context.Context, bibleID string, number int) (*story.Episode, error) {
	if err := s.seq.Accessible(ctx, bibleID, number); err != nil {
		return nil, err
	}
	return s.repo.GetEpisode(ctx, bibleID, number)
}

// SubmitChoice 记录用户在第 number 集的分支选择（每集一条，覆盖写）
// 选择必须针对已存在的剧集。
func (s *GenerationService) SubmitChoice(ctx context.Context, bibleID string, number int, choiceID, choiceText string) (*story.UserChoice, error) {
	if _, err := s.repo.GetEpisode(ctx, bibleID, number); err != nil {
		return nil, err
	}
	c := &story.UserChoice{
		StoryBibleID:  bibleID,
		EpisodeNumber: number,
		ChoiceID:      choiceID,
		ChoiceText:    choiceText,
	}
	if err := s.repo.SaveChoice(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EditScene 用户显式编辑某场景内容
// 编辑设置 edited 标志供下游生成作为上下文，不会重新锁定剧集。
func (s *GenerationService) EditScene(ctx context.Context, bibleID string, number, sceneNumber int, content string) (*story.Episode, error) {
	ep, err := s.repo.GetEpisode(ctx, bibleID, number)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range ep.Scenes {
		if ep.Scenes[i].Number == sceneNumber {
			ep.Scenes[i].Content = content
			ep.Scenes[i].Edited = true
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("scene %d not found in episode %d", sceneNumber, number)
	}
	if err := s.repo.SaveEpisode(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}
