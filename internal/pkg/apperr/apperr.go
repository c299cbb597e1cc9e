package apperr

import (
	"errors"
	"fmt"
)

// 错误分级策略：存储层错误在有后备后端时被吸收降级，
// 只有时序校验错误与生成接口错误会作为用户可见错误向上传播。
var (
	// ErrGenerationTimeout 轮询超出等待预算，可通过刷新或重试恢复
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrStoreUnavailable 远端后端不可达，静默降级到本地缓存
	ErrStoreUnavailable = errors.New("remote store unavailable")

	// ErrMalformedResult 生成结果缺少必需结构，已用占位内容兜底
	ErrMalformedResult = errors.New("malformed generation result")

	// ErrInvalidGenerationResponse 生成接口返回显式错误，需用户重试
	ErrInvalidGenerationResponse = errors.New("invalid generation response")
)

// SequenceViolation 剧集顺序违例
// 剧集必须按全局序号依次生成，第 N 集依赖第 N-1 集已存在。
type SequenceViolation struct {
	Episode  int // 被请求的剧集序号
	Required int // 缺失的前置剧集序号
}

func (e *SequenceViolation) Error() string {
	return fmt.Sprintf("episode %d is locked: episode %d has not been generated", e.Episode, e.Required)
}

// NewSequenceViolation 创建顺序违例错误
func NewSequenceViolation(episode int) *SequenceViolation {
	return &SequenceViolation{Episode: episode, Required: episode - 1}
}

// AsSequenceViolation 判断并提取顺序违例错误
func AsSequenceViolation(err error) (*SequenceViolation, bool) {
	var sv *SequenceViolation
	if errors.As(err, &sv) {
		return sv, true
	}
	return nil, false
}
