package store

import (
	"fmt"
	"strconv"
	"strings"
)

// 本地缓存经历过多套命名方案，老数据仍躺在历史前缀下。
// 读取按 readPrefixes 顺序逐个尝试（规范前缀最先），写入只用规范前缀，
// 内部逻辑因此只见到规范名。

// canonicalPrefix 各作用域的规范命名空间前缀
var canonicalPrefix = map[string]string{
	ScopeStoryBible:    "fable:story_bibles",
	ScopeEpisode:       "fable:episodes",
	ScopePreProduction: "fable:preproduction",
	ScopeChoice:        "fable:choices",
	ScopeJob:           "fable:generation_jobs",
}

// legacyPrefixes 仍需兼容读取的历史命名空间前缀（按尝试顺序）
var legacyPrefixes = map[string][]string{
	ScopeStoryBible:    {"storyBible", "story_bible_v2"},
	ScopeEpisode:       {"generatedEpisodes", "episodes_v2"},
	ScopePreProduction: {"preProductionStatus"},
	ScopeChoice:        {"userChoices"},
}

// writePrefix 返回写入用的规范前缀
func writePrefix(scope string) string {
	if p, ok := canonicalPrefix[scope]; ok {
		return p
	}
	return "fable:" + scope
}

// readPrefixes 返回读取时依次尝试的前缀，规范前缀在最前
func readPrefixes(scope string) []string {
	prefixes := []string{writePrefix(scope)}
	return append(prefixes, legacyPrefixes[scope]...)
}

// EpisodeKey 剧集键：按故事圣经分组，序号定位
func EpisodeKey(bibleID string, number int) string {
	return fmt.Sprintf("%s:%d", bibleID, number)
}

// ParseEpisodeKey 从剧集键中解析 (故事圣经ID, 序号)，格式不符返回 false
func ParseEpisodeKey(key string) (bibleID string, number int, ok bool) {
	i := strings.LastIndex(key, ":")
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return key[:i], n, true
}

// PreProductionKey 集级前期制作产物键
func PreProductionKey(bibleID string, episodeNumber int) string {
	return fmt.Sprintf("%s:ep:%d", bibleID, episodeNumber)
}

// ArcPreProductionKey 弧级前期制作产物键
func ArcPreProductionKey(bibleID string, arcIndex int) string {
	return fmt.Sprintf("%s:arc:%d", bibleID, arcIndex)
}

// ChoiceKey 用户选择键：每集一条，覆盖写
func ChoiceKey(bibleID string, episodeNumber int) string {
	return fmt.Sprintf("%s:%d", bibleID, episodeNumber)
}

// JobKey 生成任务标记键
func JobKey(bibleID, kind string, number int) string {
	return fmt.Sprintf("%s:%s:%d", bibleID, kind, number)
}
