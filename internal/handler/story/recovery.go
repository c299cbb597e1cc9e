package story

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fable/internal/pkg/ctxutil"
)

// Recovery 分歧恢复扫描
// @Summary      分歧恢复扫描
// @Description  报告本地缓存有而远端权威存储没有的剧集序号；只报告，从不自动合并
// @Tags         恢复
// @Produce      json
// @Param        id   query     string  true  "故事圣经ID（兼容 storyBibleId/projectId）"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/recovery [get]
func (h *Handler) Recovery(c *gin.Context) {
	bibleID := bibleIDFromQuery(c)
	if bibleID == "" {
		badRequest(c, "story bible id is required", nil)
		return
	}

	userID, _ := ctxutil.GetUserID(c.Request.Context())
	recoverable, err := h.recovery.FindRecoverable(c.Request.Context(), userID, bibleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": gin.H{"recoverableEpisodes": recoverable}})
}
