package story

import "time"

// PreProduction 前期制作产物
// 以 (用户, 故事圣经, 剧集序号或弧索引, 阶段) 为键；
// 由生成任务创建，后续阶段增量更新（如分镜帧图片在独立上传步骤后补写 image_url）。
type PreProduction struct {
	StoryBibleID string `bson:"story_bible_id" json:"story_bible_id"`

	// 二选一：集级产物带剧集序号，弧级产物带弧索引
	EpisodeNumber int  `bson:"episode_number,omitempty" json:"episodeNumber,omitempty"`
	ArcIndex      *int `bson:"arc_index,omitempty" json:"arcIndex,omitempty"`

	Stage  PreProductionStage `bson:"stage" json:"stage"`
	Script string             `bson:"script,omitempty" json:"script,omitempty"`
	Frames []StoryboardFrame  `bson:"frames,omitempty" json:"frames,omitempty"`

	Complete    bool      `bson:"complete" json:"complete"`
	LastUpdated time.Time `bson:"last_updated" json:"lastUpdated"`
	UpdatedBy   string    `bson:"updated_by,omitempty" json:"updatedBy,omitempty"`
}

// StoryboardFrame 分镜帧
// ImageURL 在帧图片渲染并上传到对象存储后由独立步骤补写。
type StoryboardFrame struct {
	Number      int    `bson:"number" json:"number"`
	Description string `bson:"description" json:"description"`
	ImageURL    string `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
}

// IsArcLevel 是否为弧级产物
func (p *PreProduction) IsArcLevel() bool {
	return p.ArcIndex != nil
}
