package story

import (
	"fmt"
	"time"
)

// StoryBible 故事圣经（顶层系列定义）
// 每个系列创建一次，之后很少变更（标题编辑）；
// 每弧剧集数在创建后视为不可变，供区间数学使用。
type StoryBible struct {
	ID     string `bson:"id" json:"id"` // 故事圣经ID（UUID）
	UserID string `bson:"user_id,omitempty" json:"user_id,omitempty"`

	Title      string      `bson:"title" json:"title"`
	Characters []Character `bson:"characters,omitempty" json:"characters,omitempty"`

	// 有序叙事弧，每弧包含一段连续的剧集梗概
	NarrativeArcs []NarrativeArc `bson:"narrative_arcs" json:"narrativeArcs"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Character 登场角色
type Character struct {
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
}

// NarrativeArc 叙事弧：一段共享叙事主线的连续剧集
type NarrativeArc struct {
	Title        string        `bson:"title" json:"title"`
	EpisodeCount int           `bson:"episode_count,omitempty" json:"episodeCount,omitempty"` // 缺省按 DefaultEpisodesPerArc 计
	Episodes     []EpisodeStub `bson:"episodes,omitempty" json:"episodes,omitempty"`
}

// EpisodeStub 剧集梗概（生成前的占位结构）
type EpisodeStub struct {
	Number     int      `bson:"number" json:"number"` // 全局序号，跨弧连续
	Title      string   `bson:"title" json:"title"`
	Summary    string   `bson:"summary,omitempty" json:"summary,omitempty"`
	Characters []string `bson:"characters,omitempty" json:"characters,omitempty"`
}

// arcLength 返回某弧的剧集数，元数据缺失时取默认值
func (a *NarrativeArc) arcLength() int {
	if a.EpisodeCount > 0 {
		return a.EpisodeCount
	}
	return DefaultEpisodesPerArc
}

// ArcRange 计算弧 arcIndex（0 基）覆盖的全局剧集序号区间 [start, end]
// 区间由之前各弧长度的累计和推出：start = sum(prior) + 1, end = start + count - 1。
func (b *StoryBible) ArcRange(arcIndex int) (start, end int, err error) {
	if arcIndex < 0 || arcIndex >= len(b.NarrativeArcs) {
		return 0, 0, fmt.Errorf("arc index %d out of range (0..%d)", arcIndex, len(b.NarrativeArcs)-1)
	}

	start = 1
	for i := 0; i < arcIndex; i++ {
		start += b.NarrativeArcs[i].arcLength()
	}
	end = start + b.NarrativeArcs[arcIndex].arcLength() - 1
	return start, end, nil
}

// TotalEpisodes 返回圣经结构暗示的剧集总数
func (b *StoryBible) TotalEpisodes() int {
	total := 0
	for i := range b.NarrativeArcs {
		total += b.NarrativeArcs[i].arcLength()
	}
	return total
}

// StubFor 查找某全局序号对应的剧集梗概，不存在返回 nil
func (b *StoryBible) StubFor(number int) *EpisodeStub {
	for ai := range b.NarrativeArcs {
		for si := range b.NarrativeArcs[ai].Episodes {
			if b.NarrativeArcs[ai].Episodes[si].Number == number {
				return &b.NarrativeArcs[ai].Episodes[si]
			}
		}
	}
	return nil
}
