package service

import (
	"sync"
	"time"
)

// ProgressService 生成进度状态通道
// 生成任务更新、观察方轮询读取（没有推送通道）。按任务ID分隔，
// 多个并发任务互不碰撞；同时维护"当前任务"指针供不带任务ID的
// 历史接口读取最近启动的任务。更新之间不保证送达：观察方轮询
// 间隔大于更新频率时中间值会被跳过，只有最新值存活。
type ProgressService struct {
	mu      sync.RWMutex
	jobs    map[string]*ProgressState
	current string // 最近一次 Start 的任务ID
}

// ProgressState 进度状态记录
type ProgressState struct {
	JobID     string    `json:"job_id"`
	Progress  int       `json:"progress"` // 0-100
	Step      string    `json:"step"`     // 当前步骤描述
	Logs      []string  `json:"logs"`
	IsActive  bool      `json:"isActive"`
	StartTime time.Time `json:"startTime"`
}

// ProgressUpdate 浅合并更新：nil 字段保持原值，Log 追加
type ProgressUpdate struct {
	Progress *int    `json:"progress,omitempty"`
	Step     *string `json:"step,omitempty"`
	Log      string  `json:"log,omitempty"`
}

// NewProgressService 创建进度服务
func NewProgressService() *ProgressService {
	return &ProgressService{jobs: make(map[string]*ProgressState)}
}

// Start 启动任务进度：重置为零值记录并打上开始时间戳
func (s *ProgressService) Start(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[jobID] = &ProgressState{
		JobID:     jobID,
		IsActive:  true,
		StartTime: time.Now(),
		Logs:      []string{},
	}
	s.current = jobID
}

// Update 浅合并更新任务进度，任务不存在时静默忽略
func (s *ProgressService) Update(jobID string, update ProgressUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if update.Progress != nil {
		state.Progress = *update.Progress
	}
	if update.Step != nil {
		state.Step = *update.Step
	}
	if update.Log != "" {
		state.Logs = append(state.Logs, update.Log)
	}
}

// Stop 停止任务：只翻转 IsActive，日志与进度保留
func (s *ProgressService) Stop(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.jobs[jobID]; ok {
		state.IsActive = false
	}
}

// Snapshot 读取某任务的进度快照，不存在返回 nil
func (s *ProgressService) Snapshot(jobID string) *ProgressState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	return cloneState(state)
}

// Current 读取最近启动任务的进度快照（历史单全局接口兼容）
func (s *ProgressService) Current() *ProgressState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.jobs[s.current]
	if !ok {
		return nil
	}
	return cloneState(state)
}

func cloneState(state *ProgressState) *ProgressState {
	out := *state
	out.Logs = append([]string{}, state.Logs...)
	return &out
}
