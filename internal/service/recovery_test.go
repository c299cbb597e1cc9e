package service

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
	"fable/internal/store"
)

// unreachableStore 模拟不可达的远端后端
type unreachableStore struct{ err error }

func (u *unreachableStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	return nil, u.err
}
func (u *unreachableStore) Set(ctx context.Context, scope, key string, value []byte) error {
	return u.err
}
func (u *unreachableStore) List(ctx context.Context, scope string) (map[string][]byte, error) {
	return nil, u.err
}
func (u *unreachableStore) Delete(ctx context.Context, scope, key string) error { return u.err }
func (u *unreachableStore) DeleteAll(ctx context.Context, scope string) error   { return u.err }

func TestRecoveryScanner(t *testing.T) {
	Convey("分歧恢复扫描", t, func() {
		ctx := context.Background()

		Convey("访客恒返回空（没有第二个存储可分歧）", func() {
			repo := newTestRepo()
			scanner := NewRecoveryScanner(repo)

			recoverable, err := scanner.FindRecoverable(ctx, "", "bible-1")
			So(err, ShouldBeNil)
			So(recoverable, ShouldResemble, []int{})
		})

		Convey("本地有而远端没有的剧集被报告（升序）", func() {
			remote := store.NewMemStore()
			local := store.NewMemStore()
			repo := storyrepo.NewRepository(store.NewDualStore(remote, local))
			scanner := NewRecoveryScanner(repo)

			// 访客期生成的剧集只在本地
			for _, n := range []int{3, 1, 2} {
				So(repo.SaveEpisode(ctx, &story.Episode{
					StoryBibleID: "bible-1", Number: n, GenerationComplete: true,
				}), ShouldBeNil)
			}
			// 第2集已在远端（此前登录时同步过）
			So(remote.Set(ctx, store.ScopeEpisode, store.EpisodeKey("bible-1", 2), []byte(`{}`)), ShouldBeNil)
			// 其他圣经的本地剧集不应被报告
			So(repo.SaveEpisode(ctx, &story.Episode{StoryBibleID: "other", Number: 1}), ShouldBeNil)

			recoverable, err := scanner.FindRecoverable(ctx, "user-1", "bible-1")
			So(err, ShouldBeNil)
			So(recoverable, ShouldResemble, []int{1, 3})
		})

		Convey("两端一致时返回空", func() {
			remote := store.NewMemStore()
			local := store.NewMemStore()
			repo := storyrepo.NewRepository(store.NewDualStore(remote, local))
			scanner := NewRecoveryScanner(repo)

			key := store.EpisodeKey("bible-1", 1)
			So(local.Set(ctx, store.ScopeEpisode, key, []byte(`{}`)), ShouldBeNil)
			So(remote.Set(ctx, store.ScopeEpisode, key, []byte(`{}`)), ShouldBeNil)

			recoverable, err := scanner.FindRecoverable(ctx, "user-1", "bible-1")
			So(err, ShouldBeNil)
			So(recoverable, ShouldResemble, []int{})
		})

		Convey("远端不可达时放弃扫描而不是误报", func() {
			local := store.NewMemStore()
			broken := storyrepo.NewRepository(store.NewDualStore(
				&unreachableStore{err: context.DeadlineExceeded}, local))
			scanner := NewRecoveryScanner(broken)

			So(local.Set(ctx, store.ScopeEpisode, store.EpisodeKey("bible-1", 1), []byte(`{}`)), ShouldBeNil)

			recoverable, err := scanner.FindRecoverable(ctx, "user-1", "bible-1")
			So(err, ShouldBeNil)
			So(recoverable, ShouldResemble, []int{})
		})
	})
}
