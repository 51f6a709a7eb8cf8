package vision

import (
	"context"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/observability"
)

const defaultAnthropicVisionModel = string(anthropic.ModelClaude3_7SonnetLatest)
const visionMaxTokens int64 = 1024

// AnthropicDescriber describes images via the Anthropic messages API.
type AnthropicDescriber struct {
	sdk   anthropic.Client
	model string
}

// NewAnthropicDescriber builds a Describer around cfg's Anthropic credentials.
func NewAnthropicDescriber(cfg config.VisionConfig, httpClient *http.Client) *AnthropicDescriber {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicVisionModel
	}

	return &AnthropicDescriber{sdk: anthropic.NewClient(opts...), model: model}
}

func (c *AnthropicDescriber) Describe(ctx context.Context, imageBytes []byte, mimeType string, enableOCR bool) (Result, error) {
	ctx, span := observability.Tracer("vision").Start(ctx, "Anthropic Describe")
	defer span.End()
	log := observability.LoggerWithTrace(ctx)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: visionMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encodeBase64(imageBytes)),
				anthropic.NewTextBlock(descriptionPrompt(enableOCR)),
			),
		},
	}

	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Str("error", redactedErrorString(err)).Str("model", c.model).Dur("duration", dur).Msg("vision_describe_anthropic_error")
		return Result{}, err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	log.Debug().Str("model", c.model).Dur("duration", dur).Msg("vision_describe_anthropic_ok")
	return parseResponse(sb.String()), nil
}
