package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fable/internal/service"
)

// ProgressHandler 生成进度处理器
// 观察方轮询 GET 读取状态；POST 承载 start/update/stop 三种动作
// （生成任务在独立请求生命周期中执行时通过它回报进度）。
type ProgressHandler struct {
	progress *service.ProgressService
}

// NewProgressHandler 创建进度处理器
func NewProgressHandler(progress *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Get 读取任务进度
// @Summary      读取任务进度
// @Description  带 jobKey 读指定任务；不带则返回最近启动的任务（历史接口兼容）
// @Tags         进度
// @Produce      json
// @Param        jobKey  query     string  false  "任务键"
// @Success      200    {object}  map[string]interface{}
// @Failure      404    {object}  map[string]interface{}
// @Router       /api/v1/progress [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	var state *service.ProgressState
	if jobKey := c.Query("jobKey"); jobKey != "" {
		state = h.progress.Snapshot(jobKey)
	} else {
		state = h.progress.Current()
	}

	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 40401, "message": "no progress recorded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": state})
}

// ProgressActionRequest 进度动作请求
type ProgressActionRequest struct {
	Action string `json:"action" binding:"required"` // 动作：start/update/stop
	JobKey string `json:"jobKey" binding:"required"` // 任务键

	// update 动作的载荷（浅合并：缺省字段保持原值）
	Progress *int    `json:"progress,omitempty"`
	Step     *string `json:"step,omitempty"`
	Log      string  `json:"log,omitempty"`
}

// Post 上报进度动作
// @Summary      上报进度动作
// @Tags         进度
// @Accept       json
// @Produce      json
// @Param        request  body      ProgressActionRequest  true  "进度动作"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  map[string]interface{}
// @Router       /api/v1/progress [post]
func (h *ProgressHandler) Post(c *gin.Context) {
	var req ProgressActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 40001, "message": "Invalid request body", "detail": err.Error()})
		return
	}

	switch req.Action {
	case "start":
		h.progress.Start(req.JobKey)
	case "update":
		h.progress.Update(req.JobKey, service.ProgressUpdate{
			Progress: req.Progress,
			Step:     req.Step,
			Log:      req.Log,
		})
	case "stop":
		h.progress.Stop(req.JobKey)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": 40002, "message": "unknown action: " + req.Action})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok"})
}
