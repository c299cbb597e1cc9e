package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/ai"
	"fable/internal/config"
	"fable/internal/model/story"
	storagepkg "fable/internal/pkg/storage"
	storyrepo "fable/internal/repository/story"
	"fable/internal/store"
)

// fakePreProductionGenerator 测试用生成端点，gate 非 nil 时阻塞直到放行
type fakePreProductionGenerator struct {
	gate   chan struct{}
	result *ai.PreProductionResult
	err    error
}

func (f *fakePreProductionGenerator) GeneratePreProduction(ctx context.Context, req *ai.PreProductionRequest) (*ai.PreProductionResult, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeFrameStore 内存对象存储，覆盖上传/下载/探测/删除
type fakeFrameStore struct {
	objects map[string][]byte
}

func newFakeFrameStore() *fakeFrameStore {
	return &fakeFrameStore{objects: map[string][]byte{}}
}

func (f *fakeFrameStore) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.objects[key] = b
	return "http://files.test/" + key, nil
}

func (f *fakeFrameStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeFrameStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeFrameStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeFrameStore) Type() string { return "memory" }

func newTestPreProductionService(repo *storyrepo.Repository, gen PreProductionGenerator, files storagepkg.Storage) *PreProductionService {
	cfg := config.GenerationConfig{
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
		MaxEpisodes:  story.MaxEpisodes,
	}
	return NewPreProductionService(
		repo, gen, nil, files,
		NewPoller(repo.Store(), cfg.PollInterval),
		NewProgressService(),
		cfg,
	)
}

func seedCompletedEpisode(ctx context.Context, repo *storyrepo.Repository) {
	So(repo.SaveStoryBible(ctx, &story.StoryBible{
		ID: "bible-1", Title: "测试",
		NarrativeArcs: []story.NarrativeArc{{Title: "第一弧", EpisodeCount: 5}},
	}), ShouldBeNil)
	So(repo.SaveEpisode(ctx, &story.Episode{
		StoryBibleID: "bible-1", Number: 1, Title: "第一集", GenerationComplete: true,
		Scenes: []story.Scene{{Number: 1, Content: "开场"}},
	}), ShouldBeNil)
}

func awaitPreProdJobStatus(ctx context.Context, repo *storyrepo.Repository, jobKey string, want story.JobStatus) *JobMarker {
	for i := 0; i < 100; i++ {
		if marker, err := getJobMarker(ctx, repo.Store(), jobKey); err == nil && marker.Status == want {
			return marker
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func TestPreProductionGenerationLifecycle(t *testing.T) {
	Convey("前期制作生成全流程", t, func() {
		repo := newTestRepo()
		ctx := context.Background()
		seedCompletedEpisode(ctx, repo)

		Convey("触发后标记先落库，产物落库后标记翻转为完成", func() {
			gate := make(chan struct{})
			svc := newTestPreProductionService(repo, &fakePreProductionGenerator{
				gate: gate,
				result: &ai.PreProductionResult{
					Script: "分场剧本",
					Frames: []story.StoryboardFrame{{Number: 1, Description: "远景"}},
				},
			}, nil)

			jobKey, err := svc.GenerateForEpisode(ctx, "bible-1", 1, story.StageScript)
			So(err, ShouldBeNil)
			So(jobKey, ShouldEqual, store.JobKey("bible-1", "preprod_ep", 1))

			// 生成还卡在接口调用上，标记已经可见
			marker, err := getJobMarker(ctx, repo.Store(), jobKey)
			So(err, ShouldBeNil)
			So(marker.Status, ShouldEqual, story.JobStatusStarted)

			close(gate)
			artifact, err := svc.AwaitEpisodePreProduction(ctx, "bible-1", 1, time.Second)
			So(err, ShouldBeNil)
			So(artifact.Complete, ShouldBeTrue)
			So(artifact.Script, ShouldEqual, "分场剧本")

			done := awaitPreProdJobStatus(ctx, repo, jobKey, story.JobStatusCompleted)
			So(done, ShouldNotBeNil)
			So(done.StartedAt.Equal(marker.StartedAt), ShouldBeTrue)
		})

		Convey("生成接口报错时标记翻转为失败并携带原因", func() {
			svc := newTestPreProductionService(repo, &fakePreProductionGenerator{err: errors.New("接口超时")}, nil)

			jobKey, err := svc.GenerateForEpisode(ctx, "bible-1", 1, story.StageScript)
			So(err, ShouldBeNil)

			failed := awaitPreProdJobStatus(ctx, repo, jobKey, story.JobStatusFailed)
			So(failed, ShouldNotBeNil)
			So(failed.Error, ShouldEqual, "接口超时")
		})

		Convey("源剧集未完成时拒绝触发且不落标记", func() {
			So(repo.SaveEpisode(ctx, &story.Episode{
				StoryBibleID: "bible-1", Number: 2,
			}), ShouldBeNil)
			svc := newTestPreProductionService(repo, &fakePreProductionGenerator{}, nil)

			_, err := svc.GenerateForEpisode(ctx, "bible-1", 2, story.StageScript)
			So(err, ShouldNotBeNil)

			_, err = getJobMarker(ctx, repo.Store(), store.JobKey("bible-1", "preprod_ep", 2))
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
		})

		Convey("触发并等待直接返回落库后的产物", func() {
			svc := newTestPreProductionService(repo, &fakePreProductionGenerator{
				result: &ai.PreProductionResult{Script: "分场剧本"},
			}, nil)

			artifact, err := svc.GenerateForEpisodeAndWait(ctx, "bible-1", 1, story.StageScript)
			So(err, ShouldBeNil)
			So(artifact.Complete, ShouldBeTrue)
		})
	})
}

func TestFrameImageStorage(t *testing.T) {
	Convey("分镜帧图片存取", t, func() {
		repo := newTestRepo()
		ctx := context.Background()
		seedCompletedEpisode(ctx, repo)

		So(repo.SavePreProduction(ctx, &story.PreProduction{
			StoryBibleID: "bible-1", EpisodeNumber: 1, Stage: story.StageStoryboard, Complete: true,
			Frames: []story.StoryboardFrame{{Number: 1, Description: "远景"}},
		}), ShouldBeNil)

		fs := newFakeFrameStore()
		svc := newTestPreProductionService(repo, nil, fs)

		Convey("上传回填 image_url，读取按上传类型返回内容", func() {
			url, err := svc.UploadFrameImage(ctx, "bible-1", 1, 1, bytes.NewReader([]byte("png-bytes")), "image/png")
			So(err, ShouldBeNil)
			So(url, ShouldNotBeEmpty)

			p, err := svc.GetArtifact(ctx, "bible-1", 1)
			So(err, ShouldBeNil)
			So(p.Frames[0].ImageURL, ShouldEqual, url)

			rc, contentType, err := svc.FrameImage(ctx, "bible-1", 1, 1)
			So(err, ShouldBeNil)
			defer rc.Close()
			So(contentType, ShouldEqual, "image/png")
			data, err := io.ReadAll(rc)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "png-bytes")

			Convey("换类型重传后旧扩展名对象被清掉", func() {
				_, err := svc.UploadFrameImage(ctx, "bible-1", 1, 1, bytes.NewReader([]byte("jpeg-bytes")), "image/jpeg")
				So(err, ShouldBeNil)
				So(len(fs.objects), ShouldEqual, 1)

				rc, contentType, err := svc.FrameImage(ctx, "bible-1", 1, 1)
				So(err, ShouldBeNil)
				defer rc.Close()
				So(contentType, ShouldEqual, "image/jpeg")
				data, err := io.ReadAll(rc)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "jpeg-bytes")
			})
		})

		Convey("从未上传过的帧读取返回 ErrNotFound", func() {
			_, _, err := svc.FrameImage(ctx, "bible-1", 1, 1)
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
		})

		Convey("上传到产物中不存在的帧报错", func() {
			_, err := svc.UploadFrameImage(ctx, "bible-1", 1, 9, bytes.NewReader([]byte("x")), "image/png")
			So(err, ShouldNotBeNil)
		})

		Convey("对象存储未配置时上传与读取都报错", func() {
			bare := newTestPreProductionService(repo, nil, nil)

			_, err := bare.UploadFrameImage(ctx, "bible-1", 1, 1, bytes.NewReader([]byte("x")), "image/png")
			So(err, ShouldNotBeNil)

			_, _, err = bare.FrameImage(ctx, "bible-1", 1, 1)
			So(err, ShouldNotBeNil)
		})
	})
}
