package service

import (
	"context"
	"encoding/json"
	"time"

	"fable/internal/model/story"
	"fable/internal/store"
)

// JobMarker 生成任务标记
// 触发生成时先落库"已启动"标记，结果写入后翻转为完成/失败。
// 标记本身就是可检测的进行中状态：观察方轮询时能区分
// "从未触发"与"已触发未完成"，恢复扫描也靠它判断任务归属。
// 剧集生成与前期制作生成共用同一套标记，以任务键的种类段区分。
type JobMarker struct {
	Key       string          `json:"key"`
	Status    story.JobStatus `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Error     string          `json:"error,omitempty"`
}

// putJobMarker 写入任务标记，状态翻转时保留首次启动时间
func putJobMarker(ctx context.Context, st store.Store, jobKey string, status story.JobStatus, cause error) error {
	marker := JobMarker{
		Key:       jobKey,
		Status:    status,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if existing, err := getJobMarker(ctx, st, jobKey); err == nil {
		marker.StartedAt = existing.StartedAt
	}
	if cause != nil {
		marker.Error = cause.Error()
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return st.Set(ctx, store.ScopeJob, jobKey, data)
}

// getJobMarker 读取任务标记，未触发过返回 store.ErrNotFound
func getJobMarker(ctx context.Context, st store.Store, jobKey string) (*JobMarker, error) {
	data, err := st.Get(ctx, store.ScopeJob, jobKey)
	if err != nil {
		return nil, err
	}
	var marker JobMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, store.ErrNotFound
	}
	return &marker, nil
}
