package ark

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
)

// FrameClientConfig 分镜帧渲染配置
type FrameClientConfig struct {
	APIKey  string // API Key（必需）
	BaseURL string // API 基础 URL（可选，默认: https://ark.cn-beijing.volces.com/api/v3）
	Model   string // 模型名称（可选，默认: doubao-seedream-3-0-t2i-250415）
}

// FrameClient 分镜帧渲染客户端
// 把分镜帧的画面描述渲染为图片；图片随后由独立步骤上传到对象存储，
// 回填产物中的 image_url。
type FrameClient struct {
	client *arkruntime.Client
	model  string
}

// NewFrameClient 创建分镜帧渲染客户端
func NewFrameClient(cfg *FrameClientConfig) (*FrameClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "doubao-seedream-3-0-t2i-250415"
	}

	client := arkruntime.NewClientWithApiKey(cfg.APIKey, arkruntime.WithBaseUrl(baseURL))
	return &FrameClient{client: client, model: modelName}, nil
}

// RenderFrame 渲染一帧分镜图片，返回图片字节
func (c *FrameClient) RenderFrame(ctx context.Context, description string, size string) ([]byte, error) {
	if size == "" {
		size = "1280x720" // 分镜默认横幅
	}

	responseFormat := "b64_json"
	watermark := false

	input := model.GenerateImagesRequest{
		Model:          c.model,
		Prompt:         description,
		Size:           &size,
		ResponseFormat: &responseFormat,
		Watermark:      &watermark,
	}

	output, err := c.client.GenerateImages(ctx, input)
	if err != nil {
		log.Error().Err(err).Msg("storyboard frame render failed")
		return nil, fmt.Errorf("frame render API call failed: %w", err)
	}

	if len(output.Data) == 0 || output.Data[0].B64Json == nil {
		return nil, fmt.Errorf("no image data in render response")
	}

	imageData, err := base64.StdEncoding.DecodeString(*output.Data[0].B64Json)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame image data: %w", err)
	}
	return imageData, nil
}
