package vision

import (
	"context"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/observability"
)

const defaultOpenAIVisionModel = "gpt-4o-mini"

// OpenAIDescriber describes images via the OpenAI chat completions API,
// attaching the image as a base64 data-URL content part.
type OpenAIDescriber struct {
	sdk   sdk.Client
	model string
}

// NewOpenAIDescriber builds a Describer around cfg's OpenAI credentials.
func NewOpenAIDescriber(cfg config.VisionConfig, httpClient *http.Client) *OpenAIDescriber {
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
		model = defaultOpenAIVisionModel
	}

	return &OpenAIDescriber{sdk: sdk.NewClient(opts...), model: model}
}

func (c *OpenAIDescriber) Describe(ctx context.Context, imageBytes []byte, mimeType string, enableOCR bool) (Result, error) {
	ctx, span := observability.Tracer("vision").Start(ctx, "OpenAI Describe")
	defer span.End()
	log := observability.LoggerWithTrace(ctx)

	contentParts := []sdk.ChatCompletionContentPartUnionParam{
		{OfText: &sdk.ChatCompletionContentPartTextParam{Text: descriptionPrompt(enableOCR)}},
		{OfImageURL: &sdk.ChatCompletionContentPartImageParam{
			ImageURL: sdk.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(mimeType, encodeBase64(imageBytes)),
			},
		}},
	}

	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			{OfUser: &sdk.ChatCompletionUserMessageParam{
				Content: sdk.ChatCompletionUserMessageParamContentUnion{OfArrayOfContentParts: contentParts},
			}},
		},
	}

	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Str("error", redactedErrorString(err)).Str("model", c.model).Dur("duration", dur).Msg("vision_describe_openai_error")
		return Result{}, err
	}
	if len(comp.Choices) == 0 {
		log.Debug().Str("model", c.model).Dur("duration", dur).Msg("vision_describe_openai_empty")
		return Result{}, nil
	}

	log.Debug().Str("model", c.model).Dur("duration", dur).Msg("vision_describe_openai_ok")
	return parseResponse(comp.Choices[0].Message.Content), nil
}
