package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"fable/internal/ai"
	"fable/internal/config"
	"fable/internal/model/story"
	"fable/internal/pkg/apperr"
	"fable/internal/pkg/ark"
	"fable/internal/pkg/ctxutil"
	storagepkg "fable/internal/pkg/storage"
	storyrepo "fable/internal/repository/story"
	"fable/internal/store"
)

// PreProductionGenerator 前期制作生成端点
// 生产实现是 ai.Client；按接口注入，端点未配置时为 nil。
type PreProductionGenerator interface {
	GeneratePreProduction(ctx context.Context, req *ai.PreProductionRequest) (*ai.PreProductionResult, error)
}

// PreProductionService 前期制作编排服务
// 产物以 (故事圣经, 剧集或弧, 阶段) 为键，生成流程与剧集相同：
// 任务标记 → 异步生成 → 结果落库 → 轮询观察。
// 分镜帧图片的渲染与上传是独立步骤，产物增量补写 image_url。
type PreProductionService struct {
	repo     *storyrepo.Repository
	ai       PreProductionGenerator
	frames   *ark.FrameClient   // 可选：未配置时帧渲染不可用
	files    storagepkg.Storage // 可选：未配置时帧图片上传不可用
	poller   *Poller
	progress *ProgressService
	cfg      config.GenerationConfig
}

// NewPreProductionService 创建前期制作编排服务
func NewPreProductionService(
	repo *storyrepo.Repository,
	aiClient PreProductionGenerator,
	frames *ark.FrameClient,
	files storagepkg.Storage,
	poller *Poller,
	progress *ProgressService,
	cfg config.GenerationConfig,
) *PreProductionService {
	return &PreProductionService{
		repo:     repo,
		ai:       aiClient,
		frames:   frames,
		files:    files,
		poller:   poller,
		progress: progress,
		cfg:      cfg,
	}
}

// GenerateForEpisode 触发第 number 集的前期制作生成，立即返回任务键
// 源剧集必须已存在且携带完成标记。
func (s *PreProductionService) GenerateForEpisode(ctx context.Context, bibleID string, number int, stage story.PreProductionStage) (string, error) {
	if stage == "" {
		stage = story.StageScript
	}
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid pre-production stage: %s", stage)
	}
	if s.ai == nil {
		return "", fmt.Errorf("generation endpoint is not configured")
	}

	bible, err := s.repo.GetStoryBible(ctx, bibleID)
	if err != nil {
		return "", err
	}
	ep, err := s.repo.GetEpisode(ctx, bibleID, number)
	if err != nil {
		return "", err
	}
	if !ep.IsComplete() {
		return "", fmt.Errorf("episode %d has no completed generation result", number)
	}

	jobKey := store.JobKey(bibleID, "preprod_ep", number)
	if err := putJobMarker(ctx, s.repo.Store(), jobKey, story.JobStatusStarted, nil); err != nil {
		return "", err
	}
	s.progress.Start(jobKey)

	req := &ai.PreProductionRequest{Bible: bible, Episode: ep, Stage: stage}
	target := &story.PreProduction{StoryBibleID: bibleID, EpisodeNumber: number, Stage: stage}
	go s.run(context.WithoutCancel(ctx), jobKey, req, target)
	return jobKey, nil
}

// GenerateForEpisodeAndWait 触发集级生成并等待结果落库
// 生成路径的等待预算是 poll_timeout（强制重载路径才用 reload_timeout）。
func (s *PreProductionService) GenerateForEpisodeAndWait(ctx context.Context, bibleID string, number int, stage story.PreProductionStage) (*story.PreProduction, error) {
	if _, err := s.GenerateForEpisode(ctx, bibleID, number, stage); err != nil {
		return nil, err
	}
	return s.AwaitEpisodePreProduction(ctx, bibleID, number, s.cfg.PollTimeout)
}

// GenerateForArc 触发弧级前期制作生成（弧索引 0 基）
// 弧级产物不是必需品：解锁判定只看集级产物。
func (s *PreProductionService) GenerateForArc(ctx context.Context, bibleID string, arcIndex int, stage story.PreProductionStage) (string, error) {
	if stage == "" {
		stage = story.StageScript
	}
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid pre-production stage: %s", stage)
	}
	if s.ai == nil {
		return "", fmt.Errorf("generation endpoint is not configured")
	}

	bible, err := s.repo.GetStoryBible(ctx, bibleID)
	if err != nil {
		return "", err
	}
	if _, _, err := bible.ArcRange(arcIndex); err != nil {
		return "", err
	}

	jobKey := store.JobKey(bibleID, "preprod_arc", arcIndex)
	if err := putJobMarker(ctx, s.repo.Store(), jobKey, story.JobStatusStarted, nil); err != nil {
		return "", err
	}
	s.progress.Start(jobKey)

	idx := arcIndex
	req := &ai.PreProductionRequest{Bible: bible, ArcIndex: &idx, Stage: stage}
	target := &story.PreProduction{StoryBibleID: bibleID, ArcIndex: &idx, Stage: stage}
	go s.run(context.WithoutCancel(ctx), jobKey, req, target)
	return jobKey, nil
}

func (s *PreProductionService) run(ctx context.Context, jobKey string, req *ai.PreProductionRequest, target *story.PreProduction) {
	step := func(p int, msg string) {
		s.progress.Update(jobKey, ProgressUpdate{Progress: &p, Step: &msg, Log: msg})
	}

	step(30, "调用前期制作生成接口")
	result, err := s.ai.GeneratePreProduction(ctx, req)
	if err != nil && !errors.Is(err, apperr.ErrMalformedResult) {
		log.Error().Err(err).Str("job", jobKey).Msg("pre-production generation failed")
		s.failJob(ctx, jobKey, err)
		return
	}
	if errors.Is(err, apperr.ErrMalformedResult) {
		log.Warn().Str("job", jobKey).Msg("pre-production response missing expected structure, storing placeholder")
	}

	step(80, "写入前期制作产物")
	target.Script = result.Script
	target.Frames = result.Frames
	target.Complete = true
	if userID, ok := ctxutil.GetUserID(ctx); ok {
		target.UpdatedBy = userID
	}
	if err := s.repo.SavePreProduction(ctx, target); err != nil {
		log.Error().Err(err).Str("job", jobKey).Msg("failed to persist pre-production artifact")
		s.failJob(ctx, jobKey, err)
		return
	}

	if err := putJobMarker(ctx, s.repo.Store(), jobKey, story.JobStatusCompleted, nil); err != nil {
		log.Warn().Err(err).Str("job", jobKey).Msg("failed to mark pre-production job completed")
	}
	step(100, "前期制作完成")
	s.progress.Stop(jobKey)
}

func (s *PreProductionService) failJob(ctx context.Context, jobKey string, cause error) {
	if err := putJobMarker(ctx, s.repo.Store(), jobKey, story.JobStatusFailed, cause); err != nil {
		log.Warn().Err(err).Str("job", jobKey).Msg("failed to mark pre-production job failed")
	}
	s.progress.Update(jobKey, ProgressUpdate{Log: "生成失败：" + cause.Error()})
	s.progress.Stop(jobKey)
}

// AwaitEpisodePreProduction 轮询等待集级产物出现完成标记
// timeout<=0 时取强制重载路径的 reload_timeout。
func (s *PreProductionService) AwaitEpisodePreProduction(ctx context.Context, bibleID string, number int, timeout time.Duration) (*story.PreProduction, error) {
	if timeout <= 0 {
		timeout = s.cfg.ReloadTimeout
	}
	if timeout <= 0 {
		timeout = s.cfg.PollTimeout
	}
	raw, err := s.poller.Await(ctx, store.ScopePreProduction, store.PreProductionKey(bibleID, number), timeout, PreProductionComplete)
	if err != nil {
		return nil, err
	}
	var p story.PreProduction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// GetArtifact 读取集级前期制作产物，不存在返回 store.ErrNotFound
func (s *PreProductionService) GetArtifact(ctx context.Context, bibleID string, number int) (*story.PreProduction, error) {
	return s.repo.GetEpisodePreProduction(ctx, bibleID, number)
}

// PreProductionComplete 前期制作完成谓词
func PreProductionComplete(raw []byte) bool {
	var p story.PreProduction
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	return p.Complete
}

// StatusMap 返回某故事圣经各集的集级产物完成状态（弧解锁界面的输入）
func (s *PreProductionService) StatusMap(ctx context.Context, bibleID string) (map[int]bool, error) {
	episodes, err := s.repo.ListEpisodes(ctx, bibleID)
	if err != nil {
		return nil, err
	}
	status := make(map[int]bool, len(episodes))
	for _, ep := range episodes {
		p, err := s.repo.GetEpisodePreProduction(ctx, bibleID, ep.Number)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				status[ep.Number] = false
				continue
			}
			return nil, err
		}
		status[ep.Number] = p.Complete
	}
	return status, nil
}

// UploadFrameImage 上传某分镜帧的图片并回填产物中的 image_url
func (s *PreProductionService) UploadFrameImage(ctx context.Context, bibleID string, number, frameNumber int, data io.Reader, contentType string) (string, error) {
	if s.files == nil {
		return "", fmt.Errorf("file storage is not configured")
	}

	p, err := s.repo.GetEpisodePreProduction(ctx, bibleID, number)
	if err != nil {
		return "", err
	}
	frame := findFrame(p, frameNumber)
	if frame == nil {
		return "", fmt.Errorf("frame %d not found in episode %d pre-production", frameNumber, number)
	}

	ext := frameExt(contentType)
	key := frameObjectKey(bibleID, number, frameNumber, ext)
	url, err := s.files.Upload(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload frame image: %w", err)
	}
	// 换了图片类型会换对象键，清掉旧扩展名的残留对象
	s.removeStaleFrameObjects(ctx, bibleID, number, frameNumber, ext)

	frame.ImageURL = url
	if userID, ok := ctxutil.GetUserID(ctx); ok {
		p.UpdatedBy = userID
	}
	if err := s.repo.SavePreProduction(ctx, p); err != nil {
		return "", err
	}
	return url, nil
}

// FrameImage 读取某分镜帧的图片内容
// 对象扩展名由上传时的类型决定，按已知扩展名逐一探测。
func (s *PreProductionService) FrameImage(ctx context.Context, bibleID string, number, frameNumber int) (io.ReadCloser, string, error) {
	if s.files == nil {
		return nil, "", fmt.Errorf("file storage is not configured")
	}

	for _, ext := range frameExtensions {
		key := frameObjectKey(bibleID, number, frameNumber, ext)
		exists, err := s.files.Exists(ctx, key)
		if err != nil || !exists {
			continue
		}
		rc, err := s.files.Download(ctx, key)
		if err != nil {
			return nil, "", fmt.Errorf("download frame image: %w", err)
		}
		return rc, frameContentType(ext), nil
	}
	return nil, "", store.ErrNotFound
}

// removeStaleFrameObjects 删除同一帧其他扩展名下的旧对象，尽力而为
func (s *PreProductionService) removeStaleFrameObjects(ctx context.Context, bibleID string, number, frameNumber int, keepExt string) {
	for _, ext := range frameExtensions {
		if ext == keepExt {
			continue
		}
		key := frameObjectKey(bibleID, number, frameNumber, ext)
		exists, err := s.files.Exists(ctx, key)
		if err != nil || !exists {
			continue
		}
		if err := s.files.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to remove stale frame object")
		}
	}
}

// RenderFrame 用画面描述渲染某分镜帧图片并上传，回填 image_url
// 需要同时配置帧渲染客户端与对象存储。
func (s *PreProductionService) RenderFrame(ctx context.Context, bibleID string, number, frameNumber int) (string, error) {
	if s.frames == nil {
		return "", fmt.Errorf("frame render client is not configured")
	}
	if s.files == nil {
		return "", fmt.Errorf("file storage is not configured")
	}

	p, err := s.repo.GetEpisodePreProduction(ctx, bibleID, number)
	if err != nil {
		return "", err
	}
	frame := findFrame(p, frameNumber)
	if frame == nil {
		return "", fmt.Errorf("frame %d not found in episode %d pre-production", frameNumber, number)
	}
	if frame.Description == "" {
		return "", fmt.Errorf("frame %d has no description to render", frameNumber)
	}

	img, err := s.frames.RenderFrame(ctx, frame.Description, "")
	if err != nil {
		return "", err
	}

	key := frameObjectKey(bibleID, number, frameNumber, ".png")
	url, err := s.files.Upload(ctx, key, bytes.NewReader(img), "image/png")
	if err != nil {
		return "", fmt.Errorf("upload rendered frame: %w", err)
	}
	s.removeStaleFrameObjects(ctx, bibleID, number, frameNumber, ".png")

	frame.ImageURL = url
	if userID, ok := ctxutil.GetUserID(ctx); ok {
		p.UpdatedBy = userID
	}
	if err := s.repo.SavePreProduction(ctx, p); err != nil {
		return "", err
	}
	return url, nil
}

func findFrame(p *story.PreProduction, frameNumber int) *story.StoryboardFrame {
	for i := range p.Frames {
		if p.Frames[i].Number == frameNumber {
			return &p.Frames[i]
		}
	}
	return nil
}

// frameExtensions 帧图片对象的已知扩展名，读取探测按此顺序
var frameExtensions = []string{".png", ".jpg", ".webp", ".bin"}

func frameExt(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}

func frameContentType(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".jpg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

func frameObjectKey(bibleID string, number, frameNumber int, ext string) string {
	return fmt.Sprintf("frames/%s/ep%d/frame%d%s", bibleID, number, frameNumber, ext)
}
