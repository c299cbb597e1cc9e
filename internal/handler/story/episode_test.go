package story

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/config"
	"fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
	"fable/internal/service"
	"fable/internal/store"
)

func newTestRouter() (*gin.Engine, *storyrepo.Repository) {
	gin.SetMode(gin.TestMode)

	repo := storyrepo.NewRepository(store.NewDualStore(nil, store.NewMemStore()))
	cfg := config.GenerationConfig{
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
		MaxEpisodes:  story.MaxEpisodes,
	}
	poller := service.NewPoller(repo.Store(), cfg.PollInterval)
	progress := service.NewProgressService()

	h := NewHandler(
		service.NewStoryService(repo),
		service.NewGenerationService(repo, nil, service.NewSequenceValidator(repo), poller, progress, cfg),
		service.NewPreProductionService(repo, nil, nil, nil, poller, progress, cfg),
		service.NewArcAggregator(repo),
		service.NewRecoveryScanner(repo),
	)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	v1.GET("/episodes", h.ListEpisodes)
	v1.GET("/episodes/:number", h.GetEpisode)
	v1.GET("/arcs/:index/unlock", h.ArcUnlock)
	v1.GET("/recovery", h.Recovery)
	return engine, repo
}

func TestGetEpisodeEndpoint(t *testing.T) {
	Convey("剧集读取接口", t, func() {
		router, repo := newTestRouter()
		ctx := context.Background()

		So(repo.SaveEpisode(ctx, &story.Episode{
			StoryBibleID: "bible-1", Number: 1, Title: "第一集", GenerationComplete: true,
		}), ShouldBeNil)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, path, nil)
			router.ServeHTTP(w, req)
			return w
		}

		Convey("存在且可访问的剧集返回200", func() {
			w := get("/api/v1/episodes/1?id=bible-1")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("历史查询参数名仍被接受", func() {
			So(get("/api/v1/episodes/1?storyBibleId=bible-1").Code, ShouldEqual, http.StatusOK)
			So(get("/api/v1/episodes/1?projectId=bible-1").Code, ShouldEqual, http.StatusOK)
		})

		Convey("缺少圣经ID返回400", func() {
			So(get("/api/v1/episodes/1").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("时序违例返回409并指明缺失的前置剧集", func() {
			w := get("/api/v1/episodes/3?id=bible-1")
			So(w.Code, ShouldEqual, http.StatusConflict)

			var resp struct {
				Data struct {
					Required int `json:"required"`
				} `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Data.Required, ShouldEqual, 2)
		})

		Convey("可访问但未生成的剧集返回404", func() {
			So(get("/api/v1/episodes/2?id=bible-1").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("wait=true 长轮询等到完成标记落地", func() {
			go func() {
				time.Sleep(30 * time.Millisecond)
				_ = repo.SaveEpisode(ctx, &story.Episode{
					StoryBibleID: "bible-1", Number: 2, GenerationComplete: true,
				})
			}()

			w := get("/api/v1/episodes/2?id=bible-1&wait=true&timeout=1")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("wait=true 超时返回504", func() {
			w := get("/api/v1/episodes/2?id=bible-1&wait=true&timeout=1")
			So(w.Code, ShouldEqual, http.StatusGatewayTimeout)
		})

		Convey("wait=true 长轮询同样受时序门禁保护", func() {
			w := get("/api/v1/episodes/3?id=bible-1&wait=true&timeout=1")
			So(w.Code, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestArcUnlockEndpoint(t *testing.T) {
	Convey("弧解锁接口", t, func() {
		router, repo := newTestRouter()
		ctx := context.Background()

		So(repo.SaveStoryBible(ctx, &story.StoryBible{
			ID: "bible-1", Title: "测试",
			NarrativeArcs: []story.NarrativeArc{{Title: "第一弧", EpisodeCount: 2}},
		}), ShouldBeNil)
		for n := 1; n <= 2; n++ {
			So(repo.SaveEpisode(ctx, &story.Episode{
				StoryBibleID: "bible-1", Number: n, GenerationComplete: true,
			}), ShouldBeNil)
			So(repo.SavePreProduction(ctx, &story.PreProduction{
				StoryBibleID: "bible-1", EpisodeNumber: n, Complete: true,
			}), ShouldBeNil)
		}

		Convey("全部就绪的弧返回可解锁", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/arcs/0/unlock?id=bible-1", nil)
			router.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)

			var resp struct {
				Data story.ArcUnlockStatus `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Data.CanUnlock, ShouldBeTrue)
		})

		Convey("越界弧索引返回500级错误而不是panic", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/arcs/5/unlock?id=bible-1", nil)
			router.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestRecoveryEndpoint(t *testing.T) {
	Convey("恢复扫描接口", t, func() {
		router, _ := newTestRouter()

		Convey("访客请求返回空列表", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/recovery?id=bible-1", nil)
			router.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)

			var resp struct {
				Data struct {
					RecoverableEpisodes []int `json:"recoverableEpisodes"`
				} `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Data.RecoverableEpisodes, ShouldResemble, []int{})
		})
	})
}
