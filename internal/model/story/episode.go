package story

import "time"

// Episode 剧集实体
// 序号为 1 基、跨所有叙事弧全局连续。由生成任务创建；
// 标记完成后不可变，仅允许用户对场景内容的显式编辑
// （编辑只设置 edited 标志供下游 AI 上下文消费，不会重新锁定剧集）。
// 只有显式的批量清除会销毁剧集。
type Episode struct {
	StoryBibleID string `bson:"story_bible_id" json:"story_bible_id"`

	Number int     `bson:"number" json:"number"`
	Title  string  `bson:"title" json:"title"`
	Scenes []Scene `bson:"scenes" json:"scenes"`

	// 生成元数据（完成标记，见 IsComplete）
	GenerationType     GenerationType `bson:"generation_type,omitempty" json:"generationType,omitempty"`
	GenerationComplete bool           `bson:"generation_complete" json:"generationComplete"`
	GeneratedAt        time.Time      `bson:"generated_at,omitempty" json:"generated_at,omitempty"`
}

// Scene 场景（剧集内有序内容单元）
type Scene struct {
	Number  int    `bson:"number" json:"number"`
	Content string `bson:"content" json:"content"`
	Edited  bool   `bson:"edited,omitempty" json:"edited,omitempty"` // 用户编辑过，仅作为下游生成上下文
}

// IsComplete 判断剧集是否携带完成标记
// 中间步骤会写入不带标记的草稿，草稿永远不能作为最终结果展示；
// generation_complete 为真、或生成类型为可识别值，均视为完成。
func (e *Episode) IsComplete() bool {
	return e.GenerationComplete || e.GenerationType.IsValid()
}

// UserChoice 用户在某剧集做出的分支选择
// 每集一条，重新生成/重新选择时整体覆盖；
// 作为下一集生成的分支上下文。
type UserChoice struct {
	StoryBibleID  string    `bson:"story_bible_id" json:"story_bible_id"`
	EpisodeNumber int       `bson:"episode_number" json:"episodeNumber"`
	ChoiceID      string    `bson:"choice_id" json:"choiceId"`
	ChoiceText    string    `bson:"choice_text" json:"choiceText"`
	ChosenAt      time.Time `bson:"chosen_at" json:"chosen_at"`
}

// ArcUnlockStatus 弧级解锁状态（派生数据，从不落库）
// 当区间内每一集都有完成的剧集与完成的集级前期制作产物时才可解锁。
type ArcUnlockStatus struct {
	CanUnlock             bool  `json:"canUnlock"`
	MissingEpisodes       []int `json:"missingEpisodes"`
	MissingEpisodePreProd []int `json:"missingEpisodePreProd"`
}
