package story

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fable/internal/pkg/apperr"
	httppkg "fable/internal/pkg/http"
	"fable/internal/service"
	"fable/internal/store"
)

// Handler 故事处理器
// 故事圣经、剧集、前期制作、弧解锁与恢复扫描的HTTP入口。
type Handler struct {
	stories  *service.StoryService
	gen      *service.GenerationService
	preprod  *service.PreProductionService
	arcs     *service.ArcAggregator
	recovery *service.RecoveryScanner
}

// NewHandler 创建故事处理器
func NewHandler(
	stories *service.StoryService,
	gen *service.GenerationService,
	preprod *service.PreProductionService,
	arcs *service.ArcAggregator,
	recovery *service.RecoveryScanner,
) *Handler {
	return &Handler{
		stories:  stories,
		gen:      gen,
		preprod:  preprod,
		arcs:     arcs,
		recovery: recovery,
	}
}

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse = httppkg.ErrorResponse

// respondError 把服务层错误映射为HTTP响应
// 时序违例→409，未找到→404，轮询超时→504，远端不可达→503，
// 生成接口错误→502，其余一律500。
func respondError(c *gin.Context, err error) {
	if sv, ok := apperr.AsSequenceViolation(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"code":    40901,
			"message": sv.Error(),
			"data": gin.H{
				"episode":  sv.Episode,
				"required": sv.Required,
			},
		})
		return
	}

	status, code := http.StatusInternalServerError, 50001
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, 40401
	case errors.Is(err, apperr.ErrGenerationTimeout):
		status, code = http.StatusGatewayTimeout, 50401
	case errors.Is(err, apperr.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, 50301
	case errors.Is(err, apperr.ErrInvalidGenerationResponse):
		status, code = http.StatusBadGateway, 50201
	}

	c.JSON(status, httppkg.NewErrorResponse(code, err.Error()))
}

// badRequest 参数错误响应
func badRequest(c *gin.Context, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	c.JSON(http.StatusBadRequest, httppkg.NewErrorResponse(40001, message, detail))
}

// bibleIDFromQuery 从查询参数提取故事圣经ID
// 前端经历过多轮改名，老页面仍带历史参数名，按顺序兼容读取。
func bibleIDFromQuery(c *gin.Context) string {
	for _, name := range []string{"id", "storyBibleId", "projectId"} {
		if v := c.Query(name); v != "" {
			return v
		}
	}
	return ""
}
