package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"fable/internal/ai/component"
	"fable/internal/config"
	"fable/internal/model/story"
	"fable/internal/pkg/apperr"
)

// Client AI 生成客户端
// 职责：封装剧集与前期制作的生成调用。生成端点本身是不透明的
// 请求/响应服务，重试与完成检测由仓库+轮询器负责，不在这里做。
type Client struct {
	cfg  *config.AIConfig
	chat model.ChatModel
}

// NewClient 创建 AI 客户端
func NewClient(ctx context.Context, cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("AI API key not configured, generation calls will fail")
	}

	chat, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &Client{cfg: cfg, chat: chat}, nil
}

// EpisodeRequest 剧集生成请求
// 携带故事圣经、剧集序号、上一集的用户选择与模式标记。
type EpisodeRequest struct {
	Bible          *story.StoryBible
	Number         int
	Stub           *story.EpisodeStub // 圣经中的剧集梗概，可为 nil
	PriorChoice    *story.UserChoice  // 上一集的分支选择，可为 nil
	PriorScenes    []story.Scene      // 上一集场景（含用户编辑，作为上下文）
	GenerationType story.GenerationType
}

// EpisodeResult 剧集生成结果
type EpisodeResult struct {
	Title  string        `json:"title"`
	Scenes []story.Scene `json:"scenes"`
}

// GenerateEpisode 生成一集剧情
//
// 生成接口的显式错误包装为 apperr.ErrInvalidGenerationResponse（用户可重试）。
// 响应缺少必需结构时不让整个流程失败：返回占位场景内容并附带
// apperr.ErrMalformedResult，调用方记录后照常落库，保证界面可渲染。
func (c *Client) GenerateEpisode(ctx context.Context, req *EpisodeRequest) (*EpisodeResult, error) {
	messages := []*schema.Message{
		schema.SystemMessage("你是连载剧集编剧。根据故事圣经与上一集的分支选择续写下一集，" +
			`输出 JSON：{"title": "...", "scenes": [{"number": 1, "content": "..."}]}`),
		schema.UserMessage(c.episodePrompt(req)),
	}

	resp, err := c.chat.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidGenerationResponse, err)
	}

	var result EpisodeResult
	if err := decodeJSON(resp.Content, &result); err != nil || len(result.Scenes) == 0 {
		// 占位兜底：原始文本作为单场景内容
		placeholder := &EpisodeResult{
			Title:  fmt.Sprintf("第 %d 集", req.Number),
			Scenes: []story.Scene{{Number: 1, Content: strings.TrimSpace(resp.Content)}},
		}
		return placeholder, apperr.ErrMalformedResult
	}
	return &result, nil
}

// episodePrompt 组装剧集生成提示词
func (c *Client) episodePrompt(req *EpisodeRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "故事圣经《%s》，共 %d 集。\n", req.Bible.Title, req.Bible.TotalEpisodes())
	for _, ch := range req.Bible.Characters {
		fmt.Fprintf(&sb, "角色：%s——%s\n", ch.Name, ch.Description)
	}
	fmt.Fprintf(&sb, "现在生成第 %d 集。\n", req.Number)
	if req.Stub != nil {
		fmt.Fprintf(&sb, "本集梗概：%s（%s）\n", req.Stub.Title, req.Stub.Summary)
	}
	if req.PriorChoice != nil {
		fmt.Fprintf(&sb, "上一集（第 %d 集）用户选择了分支：%s\n", req.PriorChoice.EpisodeNumber, req.PriorChoice.ChoiceText)
	}
	for _, sc := range req.PriorScenes {
		if sc.Edited {
			fmt.Fprintf(&sb, "上一集第 %d 场（用户已改写）：%s\n", sc.Number, sc.Content)
		}
	}
	return sb.String()
}

// PreProductionRequest 前期制作生成请求
type PreProductionRequest struct {
	Bible    *story.StoryBible
	Episode  *story.Episode // 集级产物的源剧集；弧级时为 nil
	ArcIndex *int
	Stage    story.PreProductionStage
}

// PreProductionResult 前期制作生成结果
type PreProductionResult struct {
	Script string                  `json:"script"`
	Frames []story.StoryboardFrame `json:"frames"`
}

// GeneratePreProduction 生成前期制作产物（剧本/分镜描述等）
// 错误语义与 GenerateEpisode 一致。
func (c *Client) GeneratePreProduction(ctx context.Context, req *PreProductionRequest) (*PreProductionResult, error) {
	messages := []*schema.Message{
		schema.SystemMessage("你是影视前期制作设计师。根据剧集内容产出指定阶段的前期制作材料，" +
			`输出 JSON：{"script": "...", "frames": [{"number": 1, "description": "..."}]}`),
		schema.UserMessage(c.preProductionPrompt(req)),
	}

	resp, err := c.chat.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidGenerationResponse, err)
	}

	var result PreProductionResult
	if err := decodeJSON(resp.Content, &result); err != nil || (result.Script == "" && len(result.Frames) == 0) {
		placeholder := &PreProductionResult{Script: strings.TrimSpace(resp.Content)}
		return placeholder, apperr.ErrMalformedResult
	}
	return &result, nil
}

// preProductionPrompt 组装前期制作提示词
func (c *Client) preProductionPrompt(req *PreProductionRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "故事圣经《%s》，阶段：%s。\n", req.Bible.Title, req.Stage)
	if req.Episode != nil {
		fmt.Fprintf(&sb, "目标：第 %d 集《%s》。\n", req.Episode.Number, req.Episode.Title)
		for _, sc := range req.Episode.Scenes {
			fmt.Fprintf(&sb, "第 %d 场：%s\n", sc.Number, sc.Content)
		}
	}
	if req.ArcIndex != nil {
		fmt.Fprintf(&sb, "目标：第 %d 弧的整体前期制作。\n", *req.ArcIndex+1)
	}
	return sb.String()
}

// decodeJSON 从模型输出中提取并解析 JSON
// 模型常把 JSON 包在代码围栏或说明文字里，取首个 '{' 到末个 '}' 之间的片段。
func decodeJSON(content string, dest any) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in model output")
	}
	return json.Unmarshal([]byte(content[start:end+1]), dest)
}
