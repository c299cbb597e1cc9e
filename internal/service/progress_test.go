package service

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestProgressService(t *testing.T) {
	Convey("生成进度通道", t, func() {
		p := NewProgressService()

		Convey("Start 重置为零值记录并打开始时间戳", func() {
			p.Start("job-1")
			p.Update("job-1", ProgressUpdate{Progress: intPtr(50)})
			p.Start("job-1") // 重新开始

			state := p.Snapshot("job-1")
			So(state, ShouldNotBeNil)
			So(state.Progress, ShouldEqual, 0)
			So(state.IsActive, ShouldBeTrue)
			So(state.StartTime.IsZero(), ShouldBeFalse)
			So(state.Logs, ShouldResemble, []string{})
		})

		Convey("Update 浅合并：缺省字段保持原值，日志追加", func() {
			p.Start("job-1")
			p.Update("job-1", ProgressUpdate{Progress: intPtr(30), Step: strPtr("生成中"), Log: "第一步"})
			p.Update("job-1", ProgressUpdate{Log: "第二步"}) // 不带 progress/step

			state := p.Snapshot("job-1")
			So(state.Progress, ShouldEqual, 30)
			So(state.Step, ShouldEqual, "生成中")
			So(state.Logs, ShouldResemble, []string{"第一步", "第二步"})
		})

		Convey("Stop 只翻转 IsActive，进度与日志保留", func() {
			p.Start("job-1")
			p.Update("job-1", ProgressUpdate{Progress: intPtr(100), Log: "完成"})
			p.Stop("job-1")

			state := p.Snapshot("job-1")
			So(state.IsActive, ShouldBeFalse)
			So(state.Progress, ShouldEqual, 100)
			So(state.Logs, ShouldResemble, []string{"完成"})
		})

		Convey("并发任务互不碰撞，Current 指向最近启动者", func() {
			p.Start("job-1")
			p.Start("job-2")
			p.Update("job-1", ProgressUpdate{Progress: intPtr(10)})
			p.Update("job-2", ProgressUpdate{Progress: intPtr(90)})

			So(p.Snapshot("job-1").Progress, ShouldEqual, 10)
			So(p.Snapshot("job-2").Progress, ShouldEqual, 90)
			So(p.Current().JobID, ShouldEqual, "job-2")
		})

		Convey("不存在的任务：Snapshot 返回 nil，Update 静默忽略", func() {
			So(p.Snapshot("missing"), ShouldBeNil)
			So(p.Current(), ShouldBeNil)
			p.Update("missing", ProgressUpdate{Progress: intPtr(10)}) // 不应panic
			p.Stop("missing")
		})

		Convey("快照是副本，调用方修改不污染内部状态", func() {
			p.Start("job-1")
			p.Update("job-1", ProgressUpdate{Log: "原始"})

			state := p.Snapshot("job-1")
			state.Logs[0] = "被篡改"

			So(p.Snapshot("job-1").Logs, ShouldResemble, []string{"原始"})
		})
	})
}
