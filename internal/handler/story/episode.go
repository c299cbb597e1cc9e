package story

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fable/internal/model/story"
)

// GenerateEpisodeRequest 剧集生成请求
type GenerateEpisodeRequest struct {
	StoryBibleID  string `json:"storyBibleId" binding:"required"` // 故事圣经ID（必填）
	EpisodeNumber int    `json:"episodeNumber" binding:"required"` // 剧集序号（必填，1基）
	Mode          string `json:"mode,omitempty"`                  // 生成模式：standard/choice_driven/regenerated
}

// GenerateEpisode 触发剧集生成
// @Summary      触发剧集生成
// @Description  时序门禁通过后写入任务标记并异步生成，立即返回任务键；结果用轮询等待
// @Tags         剧集
// @Accept       json
// @Produce      json
// @Param        request  body      GenerateEpisodeRequest  true  "生成请求"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Failure      409     {object}  ErrorResponse
// @Router       /api/v1/episodes/generate [post]
func (h *Handler) GenerateEpisode(c *gin.Context) {
	var req GenerateEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	jobKey, err := h.gen.GenerateEpisode(c.Request.Context(), req.StoryBibleID, req.EpisodeNumber, story.GenerationType(req.Mode))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "生成已触发", "data": gin.H{"jobKey": jobKey}})
}

// ListEpisodes 列出某故事圣经已生成的剧集
// @Summary      列出剧集
// @Tags         剧集
// @Produce      json
// @Param        id   query     string  true  "故事圣经ID（兼容 storyBibleId/projectId）"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/episodes [get]
func (h *Handler) ListEpisodes(c *gin.Context) {
	bibleID := bibleIDFromQuery(c)
	if bibleID == "" {
		badRequest(c, "story bible id is required", nil)
		return
	}

	episodes, err := h.stories.ListEpisodes(c.Request.Context(), bibleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": episodes})
}

// GetEpisode 读取剧集
// @Summary      读取剧集
// @Description  时序门禁：前一集不存在则返回409。wait=true 时长轮询等待完成标记出现
// @Tags         剧集
// @Produce      json
// @Param        number   path      int     true   "剧集序号"
// @Param        id       query     string  true   "故事圣经ID"
// @Param        wait     query     bool    false  "是否等待生成完成"
// @Param        timeout  query     int     false  "等待超时（秒）"
// @Success      200     {object}  map[string]interface{}
// @Failure      404     {object}  ErrorResponse
// @Failure      409     {object}  ErrorResponse
// @Failure      504     {object}  ErrorResponse
// @Router       /api/v1/episodes/{number} [get]
func (h *Handler) GetEpisode(c *gin.Context) {
	bibleID := bibleIDFromQuery(c)
	if bibleID == "" {
		badRequest(c, "story bible id is required", nil)
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		badRequest(c, "invalid episode number", err)
		return
	}

	if c.Query("wait") == "true" {
		var timeout time.Duration
		if secs, err := strconv.Atoi(c.Query("timeout")); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
		ep, err := h.gen.AwaitEpisode(c.Request.Context(), bibleID, number, timeout)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": ep})
		return
	}

	ep, err := h.gen.GetEpisode(c.Request.Context(), bibleID, number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": ep})
}

// EditSceneRequest 场景编辑请求
type EditSceneRequest struct {
	StoryBibleID string `json:"storyBibleId" binding:"required"` // 故事圣经ID（必填）
	Content      string `json:"content" binding:"required"`      // 新场景内容（必填）
}

// EditScene 编辑剧集场景内容
// @Summary      编辑场景
// @Description  显式用户编辑：设置 edited 标志供下游生成作为上下文，不会重新锁定剧集
// @Tags         剧集
// @Accept       json
// @Produce      json
// @Param        number   path      int               true  "剧集序号"
// @Param        scene    path      int               true  "场景序号"
// @Param        request  body      EditSceneRequest  true  "编辑内容"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /api/v1/episodes/{number}/scenes/{scene} [put]
func (h *Handler) EditScene(c *gin.Context) {
	var req EditSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		badRequest(c, "invalid episode number", err)
		return
	}
	sceneNumber, err := strconv.Atoi(c.Param("scene"))
	if err != nil || sceneNumber < 1 {
		badRequest(c, "invalid scene number", err)
		return
	}

	ep, err := h.gen.EditScene(c.Request.Context(), req.StoryBibleID, number, sceneNumber, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "编辑成功", "data": ep})
}

// SubmitChoiceRequest 分支选择请求
type SubmitChoiceRequest struct {
	StoryBibleID string `json:"storyBibleId" binding:"required"` // 故事圣经ID（必填）
	ChoiceID     string `json:"choiceId" binding:"required"`     // 选项ID（必填）
	ChoiceText   string `json:"choiceText"`                      // 选项文本
}

// SubmitChoice 记录剧集分支选择
// @Summary      提交分支选择
// @Description  每集一条，重新选择覆盖；作为下一集生成的分支上下文
// @Tags         剧集
// @Accept       json
// @Produce      json
// @Param        number   path      int                  true  "剧集序号"
// @Param        request  body      SubmitChoiceRequest  true  "选择"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /api/v1/episodes/{number}/choice [post]
func (h *Handler) SubmitChoice(c *gin.Context) {
	var req SubmitChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		badRequest(c, "invalid episode number", err)
		return
	}

	choice, err := h.gen.SubmitChoice(c.Request.Context(), req.StoryBibleID, number, req.ChoiceID, req.ChoiceText)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "选择已记录", "data": choice})
}
