package story

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ArcUnlock 弧级解锁状态
// @Summary      弧级解锁状态
// @Description  区间内每一集都有完成的剧集与完成的集级前期制作产物时才可解锁
// @Tags         叙事弧
// @Produce      json
// @Param        index  path      int     true  "弧索引（0基）"
// @Param        id     query     string  true  "故事圣经ID（兼容 storyBibleId/projectId）"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /api/v1/arcs/{index}/unlock [get]
func (h *Handler) ArcUnlock(c *gin.Context) {
	bibleID := bibleIDFromQuery(c)
	if bibleID == "" {
		badRequest(c, "story bible id is required", nil)
		return
	}
	arcIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil || arcIndex < 0 {
		badRequest(c, "invalid arc index", err)
		return
	}

	ctx := c.Request.Context()
	bible, err := h.stories.GetStoryBible(ctx, bibleID)
	if err != nil {
		respondError(c, err)
		return
	}
	episodes, err := h.stories.EpisodeMap(ctx, bibleID)
	if err != nil {
		respondError(c, err)
		return
	}

	status, err := h.arcs.CanUnlockArc(ctx, bible, arcIndex, episodes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok", "data": status})
}
