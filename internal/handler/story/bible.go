package story

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fable/internal/pkg/ctxutil"
	"fable/internal/service"
)

// CreateBible 创建故事圣经
// @Summary      创建故事圣经
// @Description  创建系列的顶层定义：标题、角色与有序叙事弧
// @Tags         故事圣经
// @Accept       json
// @Produce      json
// @Param        request  body      service.CreateStoryBibleInput  true  "故事圣经定义"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Router       /api/v1/story-bibles [post]
func (h *Handler) CreateBible(c *gin.Context) {
	var input service.CreateStoryBibleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	userID, _ := ctxutil.GetUserID(c.Request.Context())
	bible, err := h.stories.CreateStoryBible(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "创建成功", "data": bible})
}

// ListBibles 列出故事圣经
// @Summary      列出故事圣经
// @Tags         故事圣经
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/story-bibles [get]
func (h *Handler) ListBibles(c *gin.Context) {
	bibles, err := h.stories.ListStoryBibles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": bibles})
}

// GetBible 读取故事圣经
// @Summary      读取故事圣经
// @Tags         故事圣经
// @Produce      json
// @Param        id   path      string  true  "故事圣经ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/story-bibles/{id} [get]
func (h *Handler) GetBible(c *gin.Context) {
	bible, err := h.stories.GetStoryBible(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": bible})
}

// UpdateTitleRequest 标题更新请求
type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required"` // 新标题（必填）
}

// UpdateBibleTitle 修改故事圣经标题
// @Summary      修改故事圣经标题
// @Tags         故事圣经
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "故事圣经ID"
// @Param        request  body      UpdateTitleRequest  true  "标题"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /api/v1/story-bibles/{id}/title [put]
func (h *Handler) UpdateBibleTitle(c *gin.Context) {
	var req UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	bible, err := h.stories.UpdateTitle(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "更新成功", "data": bible})
}

// DeleteBible 删除故事圣经（批量清除全部派生内容）
// @Summary      删除故事圣经
// @Description  删除圣经及其全部剧集、前期制作产物、用户选择与任务标记
// @Tags         故事圣经
// @Produce      json
// @Param        id   path      string  true  "故事圣经ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/story-bibles/{id} [delete]
func (h *Handler) DeleteBible(c *gin.Context) {
	if err := h.stories.DeleteStoryBible(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "删除成功"})
}
