package service

import (
	"context"

	storyrepo "fable/internal/repository/story"
	"fable/internal/pkg/apperr"
)

// SequenceValidator 剧集时序校验器
// 强制剧集只能顺序生成/访问：第 N 集要求第 N-1 集已存在（N=1 恒可访问）。
// 该检查在进入生成流程与渲染剧集内容之前执行。
type SequenceValidator struct {
	repo *storyrepo.Repository
}

// NewSequenceValidator 创建时序校验器
func NewSequenceValidator(repo *storyrepo.Repository) *SequenceValidator {
	return &SequenceValidator{repo: repo}
}

// Accessible 校验第 number 集是否可访问
// 不可访问时返回 *apperr.SequenceViolation，指明缺失的前置剧集。
func (v *SequenceValidator) Accessible(ctx context.Context, bibleID string, number int) error {
	if number <= 1 {
		return nil
	}

	exists, err := v.repo.EpisodeExists(ctx, bibleID, number-1)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NewSequenceViolation(number)
	}
	return nil
}
