package store

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEpisodeKey(t *testing.T) {
	Convey("剧集键编解码", t, func() {
		Convey("键可以往返解析", func() {
			key := EpisodeKey("bible-123", 7)
			id, number, ok := ParseEpisodeKey(key)
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "bible-123")
			So(number, ShouldEqual, 7)
		})

		Convey("圣经ID本身含冒号时按最后一个冒号切分", func() {
			id, number, ok := ParseEpisodeKey("a:b:12")
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "a:b")
			So(number, ShouldEqual, 12)
		})

		Convey("格式不符返回false", func() {
			_, _, ok := ParseEpisodeKey("no-separator")
			So(ok, ShouldBeFalse)

			_, _, ok = ParseEpisodeKey("bible:abc")
			So(ok, ShouldBeFalse)

			_, _, ok = ParseEpisodeKey("bible:0")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestNamespacePrefixes(t *testing.T) {
	Convey("命名空间前缀", t, func() {
		Convey("写入只用规范前缀", func() {
			So(writePrefix(ScopeEpisode), ShouldEqual, "fable:episodes")
			So(writePrefix(ScopeStoryBible), ShouldEqual, "fable:story_bibles")
		})

		Convey("未登记的作用域退化为 fable: 前缀", func() {
			So(writePrefix("misc"), ShouldEqual, "fable:misc")
		})

		Convey("读取按规范前缀优先、历史前缀兜底的顺序尝试", func() {
			prefixes := readPrefixes(ScopeEpisode)
			So(len(prefixes), ShouldEqual, 3)
			So(prefixes[0], ShouldEqual, "fable:episodes")
			So(prefixes[1], ShouldEqual, "generatedEpisodes")
			So(prefixes[2], ShouldEqual, "episodes_v2")
		})

		Convey("任务作用域没有历史前缀", func() {
			prefixes := readPrefixes(ScopeJob)
			So(len(prefixes), ShouldEqual, 1)
		})
	})
}
