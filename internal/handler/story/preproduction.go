package story

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fable/internal/model/story"
)

// GeneratePreProductionRequest 前期制作生成请求
// EpisodeNumber 与 ArcIndex 二选一：集级产物带剧集序号，弧级产物带弧索引。
type GeneratePreProductionRequest struct {
	StoryBibleID  string `json:"storyBibleId" binding:"required"` // 故事圣经ID（必填）
	EpisodeNumber *int   `json:"episodeNumber,omitempty"`         // 剧集序号（集级）
	ArcIndex      *int   `json:"arcIndex,omitempty"`              // 弧索引（弧级，0基）
	Stage         string `json:"stage,omitempty"`                 // 阶段：script/storyboard/asset
	Wait          bool   `json:"wait,omitempty"`                  // 是否等待生成完成（仅集级）
}

// GeneratePreProduction 触发前期制作生成
// @Summary      触发前期制作生成
// @Description  集级产物要求源剧集已完成；弧级产物独立生成。立即返回任务键
// @Tags         前期制作
// @Accept       json
// @Produce      json
// @Param        request  body      GeneratePreProductionRequest  true  "生成请求"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /api/v1/preproduction/generate [post]
func (h *Handler) GeneratePreProduction(c *gin.Context) {
	var req GeneratePreProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if (req.EpisodeNumber == nil) == (req.ArcIndex == nil) {
		badRequest(c, "exactly one of episodeNumber or arcIndex is required", nil)
		return
	}

	ctx := c.Request.Context()
	stage := story.PreProductionStage(req.Stage)

	if req.ArcIndex != nil {
		jobKey, err := h.preprod.GenerateForArc(ctx, req.StoryBibleID, *req.ArcIndex, stage)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "生成已触发", "data": gin.H{"jobKey": jobKey}})
		return
	}

	if req.Wait {
		artifact, err := h.preprod.GenerateForEpisodeAndWait(ctx, req.StoryBibleID, *req.EpisodeNumber, stage)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "生成完成", "data": artifact})
		return
	}

	jobKey, err := h.preprod.GenerateForEpisode(ctx, req.StoryBibleID, *req.EpisodeNumber, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "生成已触发", "data": gin.H{"jobKey": jobKey}})
}

// PreProductionStatus 前期制作完成状态图
// @Summary      前期制作状态图
// @Description  返回各集集级产物的完成状态（弧解锁界面的输入）
// @Tags         前期制作
// @Produce      json
// @Param        id   query     string  true  "故事圣经ID（兼容 storyBibleId/projectId）"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/preproduction [get]
func (h *Handler) PreProductionStatus(c *gin.Context) {
	bibleID := bibleIDFromQuery(c)
	if bibleID == "" {
		badRequest(c, "story bible id is required", nil)
		return
	}

	status, err := h.preprod.StatusMap(c.Request.Context(), bibleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": status})
}

// GetEpisodePreProduction 读取集级前期制作产物
// @Summary      读取集级前期制作产物
// @Tags         前期制作
// @Produce      json
// @Param        number   path      int     true   "剧集序号"
// @Param        id       query     string  true   "故事圣经ID"
// @Param        wait     query     bool    false  "是否等待生成完成"
// @Success      200     {object}  map[string]interface{}
// @Failure      404     {object}  ErrorResponse
// @Router       /api/v1/preproduction/episodes/{number} [get]
func (h *Handler) GetEpisodePreProduction(c *gin.Context) {
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
		artifact, err := h.preprod.AwaitEpisodePreProduction(c.Request.Context(), bibleID, number, timeout)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": artifact})
		return
	}

	artifact, err := h.preprod.GetArtifact(c.Request.Context(), bibleID, number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": artifact})
}

// UploadFrameImage 上传分镜帧图片
// @Summary      上传分镜帧图片
// @Description  图片上传到对象存储后回填产物中的 image_url
// @Tags         前期制作
// @Accept       multipart/form-data
// @Produce      json
// @Param        number  path      int     true  "分镜帧序号"
// @Param        id      formData  string  true  "故事圣经ID"
// @Param        episode formData  int     true  "剧集序号"
// @Param        file    formData  file    true  "图片文件"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /api/v1/preproduction/frames/{number}/image [post]
func (h *Handler) UploadFrameImage(c *gin.Context) {
	frameNumber, err := strconv.Atoi(c.Param("number"))
	if err != nil || frameNumber < 1 {
		badRequest(c, "invalid frame number", err)
		return
	}
	bibleID := c.PostForm("id")
	if bibleID == "" {
		bibleID = c.PostForm("storyBibleId")
	}
	if bibleID == "" {
		badRequest(c, "story bible id is required", nil)
		return
	}
	episodeNumber, err := strconv.Atoi(c.PostForm("episode"))
	if err != nil || episodeNumber < 1 {
		badRequest(c, "invalid episode number", err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "image file is required", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.preprod.UploadFrameImage(c.Request.Context(), bibleID, episodeNumber, frameNumber, file, contentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "上传成功", "data": gin.H{"imageUrl": url}})
}

// GetFrameImage 读取分镜帧图片内容
// @Summary      读取分镜帧图片
// @Description  从对象存储取回已上传/已渲染的帧图片，按上传时的类型返回
// @Tags         前期制作
// @Produce      image/png
// @Param        number  path      int     true  "分镜帧序号"
// @Param        id      query     string  true  "故事圣经ID"
// @Param        episode query     int     true  "剧集序号"
// @Success      200    {file}    binary
// @Failure      404    {object}  ErrorResponse
// @Router       /api/v1/preproduction/frames/{number}/image [get]
func (h *Handler) GetFrameImage(c *gin.Context) {
	frameNumber, err := strconv.Atoi(c.Param("number"))
	if err != nil || frameNumber < 1 {
		badRequest(c, "invalid frame number", err)
		return
	}
	bibleID := bibleIDFromQuery(c)
	if bibleID == "" {
		badRequest(c, "story bible id is required", nil)
		return
	}
	episodeNumber, err := strconv.Atoi(c.Query("episode"))
	if err != nil || episodeNumber < 1 {
		badRequest(c, "invalid episode number", err)
		return
	}

	rc, contentType, err := h.preprod.FrameImage(c.Request.Context(), bibleID, episodeNumber, frameNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

// RenderFrameRequest 分镜帧渲染请求
type RenderFrameRequest struct {
	StoryBibleID  string `json:"storyBibleId" binding:"required"`  // 故事圣经ID（必填）
	EpisodeNumber int    `json:"episodeNumber" binding:"required"` // 剧集序号（必填）
}

// RenderFrame 渲染分镜帧图片
// @Summary      渲染分镜帧图片
// @Description  用帧的画面描述调用图片生成接口渲染并上传，回填 image_url
// @Tags         前期制作
// @Accept       json
// @Produce      json
// @Param        number   path      int                 true  "分镜帧序号"
// @Param        request  body      RenderFrameRequest  true  "渲染请求"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /api/v1/preproduction/frames/{number}/render [post]
func (h *Handler) RenderFrame(c *gin.Context) {
	frameNumber, err := strconv.Atoi(c.Param("number"))
	if err != nil || frameNumber < 1 {
		badRequest(c, "invalid frame number", err)
		return
	}
	var req RenderFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	url, err := h.preprod.RenderFrame(c.Request.Context(), req.StoryBibleID, req.EpisodeNumber, frameNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "渲染完成", "data": gin.H{"imageUrl": url}})
}
