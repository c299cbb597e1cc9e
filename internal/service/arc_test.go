package service

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
)

func seedCompleteEpisodes(ctx context.Context, repo *storyrepo.Repository, bibleID string, from, to int) map[int]*story.Episode {
	episodes := make(map[int]*story.Episode)
	for n := from; n <= to; n++ {
		e := &story.Episode{StoryBibleID: bibleID, Number: n, GenerationComplete: true}
		_ = repo.SaveEpisode(ctx, e)
		episodes[n] = e
	}
	return episodes
}

func TestCanUnlockArc(t *testing.T) {
	Convey("弧级解锁聚合", t, func() {
		repo := newTestRepo()
		agg := NewArcAggregator(repo)
		ctx := context.Background()

		bible := &story.StoryBible{
			ID: "bible-1",
			NarrativeArcs: []story.NarrativeArc{
				{Title: "第一弧"}, // 缺省 10 集
			},
		}

		Convey("10集全完成但第10集缺前期制作", func() {
			episodes := seedCompleteEpisodes(ctx, repo, "bible-1", 1, 10)
			for n := 1; n <= 9; n++ {
				So(repo.SavePreProduction(ctx, &story.PreProduction{
					StoryBibleID: "bible-1", EpisodeNumber: n, Complete: true,
				}), ShouldBeNil)
			}

			status, err := agg.CanUnlockArc(ctx, bible, 0, episodes)
			So(err, ShouldBeNil)
			So(status.CanUnlock, ShouldBeFalse)
			So(status.MissingEpisodes, ShouldResemble, []int{})
			So(status.MissingEpisodePreProd, ShouldResemble, []int{10})
		})

		Convey("缺失剧集列入 MissingEpisodes，其前期制作不再检查", func() {
			episodes := seedCompleteEpisodes(ctx, repo, "bible-1", 1, 8)

			status, err := agg.CanUnlockArc(ctx, bible, 0, episodes)
			So(err, ShouldBeNil)
			So(status.CanUnlock, ShouldBeFalse)
			So(status.MissingEpisodes, ShouldResemble, []int{9, 10})
		})

		Convey("草稿剧集按缺失处理", func() {
			episodes := seedCompleteEpisodes(ctx, repo, "bible-1", 1, 9)
			episodes[10] = &story.Episode{StoryBibleID: "bible-1", Number: 10} // 无完成标记

			status, err := agg.CanUnlockArc(ctx, bible, 0, episodes)
			So(err, ShouldBeNil)
			So(status.MissingEpisodes, ShouldResemble, []int{10})
		})

		Convey("未完成的前期制作产物按缺失处理", func() {
			episodes := seedCompleteEpisodes(ctx, repo, "bible-1", 1, 10)
			for n := 1; n <= 10; n++ {
				So(repo.SavePreProduction(ctx, &story.PreProduction{
					StoryBibleID: "bible-1", EpisodeNumber: n, Complete: n != 5,
				}), ShouldBeNil)
			}

			status, err := agg.CanUnlockArc(ctx, bible, 0, episodes)
			So(err, ShouldBeNil)
			So(status.CanUnlock, ShouldBeFalse)
			So(status.MissingEpisodePreProd, ShouldResemble, []int{5})
		})

		Convey("全部就绪时可解锁", func() {
			episodes := seedCompleteEpisodes(ctx, repo, "bible-1", 1, 10)
			for n := 1; n <= 10; n++ {
				So(repo.SavePreProduction(ctx, &story.PreProduction{
					StoryBibleID: "bible-1", EpisodeNumber: n, Complete: true,
				}), ShouldBeNil)
			}

			status, err := agg.CanUnlockArc(ctx, bible, 0, episodes)
			So(err, ShouldBeNil)
			So(status.CanUnlock, ShouldBeTrue)
			So(status.MissingEpisodes, ShouldResemble, []int{})
			So(status.MissingEpisodePreProd, ShouldResemble, []int{})
		})

		Convey("各弧相互独立", func() {
			multi := &story.StoryBible{
				ID: "bible-1",
				NarrativeArcs: []story.NarrativeArc{
					{Title: "第一弧", EpisodeCount: 2},
					{Title: "第二弧", EpisodeCount: 2},
				},
			}
			episodes := seedCompleteEpisodes(ctx, repo, "bible-1", 1, 2)
			for n := 1; n <= 2; n++ {
				So(repo.SavePreProduction(ctx, &story.PreProduction{
					StoryBibleID: "bible-1", EpisodeNumber: n, Complete: true,
				}), ShouldBeNil)
			}

			first, err := agg.CanUnlockArc(ctx, multi, 0, episodes)
			So(err, ShouldBeNil)
			So(first.CanUnlock, ShouldBeTrue)

			second, err := agg.CanUnlockArc(ctx, multi, 1, episodes)
			So(err, ShouldBeNil)
			So(second.CanUnlock, ShouldBeFalse)
			So(second.MissingEpisodes, ShouldResemble, []int{3, 4})
		})
	})
}
