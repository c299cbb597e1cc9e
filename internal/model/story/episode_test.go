package story

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEpisodeIsComplete(t *testing.T) {
	Convey("剧集完成标记判定", t, func() {
		Convey("无任何标记的草稿不算完成", func() {
			e := &Episode{Number: 1, Title: "草稿"}
			So(e.IsComplete(), ShouldBeFalse)
		})

		Convey("generation_complete 为真即完成", func() {
			e := &Episode{Number: 1, GenerationComplete: true}
			So(e.IsComplete(), ShouldBeTrue)
		})

		Convey("可识别的生成类型视同完成标记", func() {
			e := &Episode{Number: 1, GenerationType: GenerationTypeChoiceDriven}
			So(e.IsComplete(), ShouldBeTrue)
		})

		Convey("不可识别的生成类型不算完成", func() {
			e := &Episode{Number: 1, GenerationType: GenerationType("partial")}
			So(e.IsComplete(), ShouldBeFalse)
		})
	})
}

func TestGenerationType(t *testing.T) {
	Convey("生成类型识别", t, func() {
		So(GenerationTypeStandard.IsValid(), ShouldBeTrue)
		So(GenerationTypeChoiceDriven.IsValid(), ShouldBeTrue)
		So(GenerationTypeRegenerated.IsValid(), ShouldBeTrue)
		So(GenerationType("").IsValid(), ShouldBeFalse)
		So(GenerationType("draft").IsValid(), ShouldBeFalse)
	})
}
