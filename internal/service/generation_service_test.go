package service

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/ai"
	"fable/internal/config"
	"fable/internal/model/story"
	"fable/internal/pkg/apperr"
	storyrepo "fable/internal/repository/story"
	"fable/internal/store"
)

func newTestGenerationService(repo *storyrepo.Repository) *GenerationService {
	cfg := config.GenerationConfig{
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
		MaxEpisodes:  story.MaxEpisodes,
	}
	return NewGenerationService(
		repo,
		nil, // 生成接口未配置，只测编排层自身的行为
		NewSequenceValidator(repo),
		NewPoller(repo.Store(), cfg.PollInterval),
		NewProgressService(),
		cfg,
	)
}

func TestGenerationServiceEpisodeAccess(t *testing.T) {
	Convey("剧集访问编排", t, func() {
		repo := newTestRepo()
		svc := newTestGenerationService(repo)
		ctx := context.Background()

		So(repo.SaveEpisode(ctx, &story.Episode{
			StoryBibleID: "bible-1", Number: 1, GenerationComplete: true,
			Scenes: []story.Scene{{Number: 1, Content: "开场"}, {Number: 2, Content: "高潮"}},
		}), ShouldBeNil)

		Convey("读取受时序门禁保护", func() {
			_, err := svc.GetEpisode(ctx, "bible-1", 3)
			sv, ok := apperr.AsSequenceViolation(err)
			So(ok, ShouldBeTrue)
			So(sv.Required, ShouldEqual, 2)

			ep, err := svc.GetEpisode(ctx, "bible-1", 1)
			So(err, ShouldBeNil)
			So(ep.Number, ShouldEqual, 1)
		})

		Convey("场景编辑设置 edited 标志且不解除完成标记", func() {
			ep, err := svc.EditScene(ctx, "bible-1", 1, 2, "改写后的高潮")
			So(err, ShouldBeNil)
			So(ep.Scenes[1].Content, ShouldEqual, "改写后的高潮")
			So(ep.Scenes[1].Edited, ShouldBeTrue)
			So(ep.Scenes[0].Edited, ShouldBeFalse)
			So(ep.IsComplete(), ShouldBeTrue)
		})

		Convey("编辑不存在的场景返回错误", func() {
			_, err := svc.EditScene(ctx, "bible-1", 1, 99, "无处安放")
			So(err, ShouldNotBeNil)
		})

		Convey("分支选择要求剧集已存在，重复选择覆盖", func() {
			_, err := svc.SubmitChoice(ctx, "bible-1", 2, "a", "向左")
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)

			first, err := svc.SubmitChoice(ctx, "bible-1", 1, "a", "向左")
			So(err, ShouldBeNil)
			So(first.ChoiceID, ShouldEqual, "a")

			_, err = svc.SubmitChoice(ctx, "bible-1", 1, "b", "向右")
			So(err, ShouldBeNil)

			choice, err := repo.GetChoice(ctx, "bible-1", 1)
			So(err, ShouldBeNil)
			So(choice.ChoiceID, ShouldEqual, "b")
		})

		Convey("AwaitEpisode 捞到携带完成标记的结果", func() {
			ep, err := svc.AwaitEpisode(ctx, "bible-1", 1, time.Second)
			So(err, ShouldBeNil)
			So(ep.IsComplete(), ShouldBeTrue)
		})

		Convey("AwaitEpisode 同样受时序门禁保护，前置缺失直接拒绝而不是空等", func() {
			start := time.Now()
			_, err := svc.AwaitEpisode(ctx, "bible-1", 3, time.Second)
			sv, ok := apperr.AsSequenceViolation(err)
			So(ok, ShouldBeTrue)
			So(sv.Required, ShouldEqual, 2)
			So(time.Since(start), ShouldBeLessThan, 500*time.Millisecond)
		})

		Convey("AwaitEpisode 未指定超时取配置的 reload_timeout", func() {
			cfg := config.GenerationConfig{
				PollInterval:  10 * time.Millisecond,
				PollTimeout:   time.Hour,
				ReloadTimeout: 60 * time.Millisecond,
				MaxEpisodes:   story.MaxEpisodes,
			}
			short := NewGenerationService(
				repo, nil,
				NewSequenceValidator(repo),
				NewPoller(repo.Store(), cfg.PollInterval),
				NewProgressService(),
				cfg,
			)

			start := time.Now()
			_, err := short.AwaitEpisode(ctx, "bible-1", 2, 0)
			So(errors.Is(err, apperr.ErrGenerationTimeout), ShouldBeTrue)
			So(time.Since(start), ShouldBeLessThan, time.Second)
		})

		Convey("生成接口未配置时触发生成报错", func() {
			So(repo.SaveStoryBible(ctx, &story.StoryBible{
				ID: "bible-1", Title: "测试",
				NarrativeArcs: []story.NarrativeArc{{Title: "弧", EpisodeCount: 5}},
			}), ShouldBeNil)

			_, err := svc.GenerateEpisode(ctx, "bible-1", 2, story.GenerationTypeStandard)
			So(err, ShouldNotBeNil)
		})
	})
}

// fakeEpisodeGenerator 测试用生成端点，gate 非 nil 时阻塞直到放行
type fakeEpisodeGenerator struct {
	gate   chan struct{}
	result *ai.EpisodeResult
	err    error
}

func (f *fakeEpisodeGenerator) GenerateEpisode(ctx context.Context, req *ai.EpisodeRequest) (*ai.EpisodeResult, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func awaitJobStatus(ctx context.Context, svc *GenerationService, jobKey string, want story.JobStatus) *JobMarker {
	for i := 0; i < 100; i++ {
		if marker, err := svc.JobStatus(ctx, jobKey); err == nil && marker.Status == want {
			return marker
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func TestGenerateEpisodePipeline(t *testing.T) {
	Convey("剧集生成全流程", t, func() {
		repo := newTestRepo()
		ctx := context.Background()

		So(repo.SaveStoryBible(ctx, &story.StoryBible{
			ID: "bible-1", Title: "测试",
			NarrativeArcs: []story.NarrativeArc{{Title: "第一弧", EpisodeCount: 5}},
		}), ShouldBeNil)

		cfg := config.GenerationConfig{
			PollInterval: 10 * time.Millisecond,
			PollTimeout:  time.Second,
			MaxEpisodes:  story.MaxEpisodes,
		}
		newService := func(gen EpisodeGenerator) *GenerationService {
			return NewGenerationService(
				repo, gen,
				NewSequenceValidator(repo),
				NewPoller(repo.Store(), cfg.PollInterval),
				NewProgressService(),
				cfg,
			)
		}

		Convey("触发后标记先落库，结果落库后标记翻转为完成", func() {
			gate := make(chan struct{})
			svc := newService(&fakeEpisodeGenerator{
				gate: gate,
				result: &ai.EpisodeResult{
					Title:  "第一集",
					Scenes: []story.Scene{{Number: 1, Content: "开场"}},
				},
			})

			jobKey, err := svc.GenerateEpisode(ctx, "bible-1", 1, story.GenerationTypeStandard)
			So(err, ShouldBeNil)
			So(jobKey, ShouldEqual, store.JobKey("bible-1", "episode", 1))

			// 生成还卡在接口调用上，标记已经可见
			marker, err := svc.JobStatus(ctx, jobKey)
			So(err, ShouldBeNil)
			So(marker.Status, ShouldEqual, story.JobStatusStarted)

			close(gate)
			ep, err := svc.AwaitEpisode(ctx, "bible-1", 1, time.Second)
			So(err, ShouldBeNil)
			So(ep.Title, ShouldEqual, "第一集")
			So(ep.IsComplete(), ShouldBeTrue)

			done := awaitJobStatus(ctx, svc, jobKey, story.JobStatusCompleted)
			So(done, ShouldNotBeNil)
			So(done.StartedAt.Equal(marker.StartedAt), ShouldBeTrue)
		})

		Convey("生成接口报错时标记翻转为失败并携带原因", func() {
			svc := newService(&fakeEpisodeGenerator{err: errors.New("接口超时")})

			jobKey, err := svc.GenerateEpisode(ctx, "bible-1", 1, story.GenerationTypeStandard)
			So(err, ShouldBeNil)

			failed := awaitJobStatus(ctx, svc, jobKey, story.JobStatusFailed)
			So(failed, ShouldNotBeNil)
			So(failed.Error, ShouldEqual, "接口超时")
		})
	})
}

func TestJobMarker(t *testing.T) {
	Convey("生成任务标记", t, func() {
		repo := newTestRepo()
		svc := newTestGenerationService(repo)
		ctx := context.Background()

		Convey("未触发过的任务返回 ErrNotFound", func() {
			_, err := svc.JobStatus(ctx, store.JobKey("bible-1", "episode", 1))
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
		})

		Convey("标记落库后可读回且带时间戳", func() {
			jobKey := store.JobKey("bible-1", "episode", 1)
			So(svc.writeJobMarker(ctx, jobKey, story.JobStatusStarted, nil), ShouldBeNil)

			marker, err := svc.JobStatus(ctx, jobKey)
			So(err, ShouldBeNil)
			So(marker.Status, ShouldEqual, story.JobStatusStarted)
			So(marker.StartedAt.IsZero(), ShouldBeFalse)

			Convey("状态翻转保留开始时间", func() {
				started := marker.StartedAt
				time.Sleep(5 * time.Millisecond)
				So(svc.writeJobMarker(ctx, jobKey, story.JobStatusCompleted, nil), ShouldBeNil)

				marker, err := svc.JobStatus(ctx, jobKey)
				So(err, ShouldBeNil)
				So(marker.Status, ShouldEqual, story.JobStatusCompleted)
				So(marker.StartedAt.Equal(started), ShouldBeTrue)
			})
		})

		Convey("失败标记携带错误信息", func() {
			jobKey := store.JobKey("bible-1", "episode", 2)
			So(svc.writeJobMarker(ctx, jobKey, story.JobStatusFailed, errors.New("接口超时")), ShouldBeNil)

			marker, err := svc.JobStatus(ctx, jobKey)
			So(err, ShouldBeNil)
			So(marker.Status, ShouldEqual, story.JobStatusFailed)
			So(marker.Error, ShouldEqual, "接口超时")
		})
	})
}
