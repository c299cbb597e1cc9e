package story

// DefaultEpisodesPerArc 叙事弧缺省剧集数
// 历史数据按每弧 10 集计算全局序号区间，该默认值必须精确保留，
// 否则区间数学会与已生成内容错位。
const DefaultEpisodesPerArc = 10

// MaxEpisodes 单个故事圣经的剧集上限
const MaxEpisodes = 60

// GenerationType 生成类型（同时充当完成标记的一部分）
type GenerationType string

const (
	GenerationTypeStandard     GenerationType = "standard"      // 常规顺序生成
	GenerationTypeChoiceDriven GenerationType = "choice_driven" // 由用户选择分支驱动
	GenerationTypeRegenerated  GenerationType = "regenerated"   // 重新生成覆盖
)

// IsValid 检查是否为可识别的生成类型
// 可识别的生成类型视同完成标记：中间步骤写入的草稿不会携带它。
func (t GenerationType) IsValid() bool {
	switch t {
	case GenerationTypeStandard, GenerationTypeChoiceDriven, GenerationTypeRegenerated:
		return true
	}
	return false
}

// String 返回类型的字符串表示
func (t GenerationType) String() string {
	return string(t)
}

// PreProductionStage 前期制作阶段
type PreProductionStage string

const (
	StageScript     PreProductionStage = "script"     // 剧本
	StageStoryboard PreProductionStage = "storyboard" // 分镜
	StageAsset      PreProductionStage = "asset"      // 美术资产
)

// IsValid 检查阶段是否有效
func (s PreProductionStage) IsValid() bool {
	switch s {
	case StageScript, StageStoryboard, StageAsset:
		return true
	}
	return false
}

// String 返回阶段的字符串表示
func (s PreProductionStage) String() string {
	return string(s)
}

// JobStatus 生成任务状态
type JobStatus string

const (
	JobStatusStarted   JobStatus = "started"   // 已触发，等待结果落库
	JobStatusCompleted JobStatus = "completed" // 结果已写入
	JobStatusFailed    JobStatus = "failed"    // 生成接口报错
)
