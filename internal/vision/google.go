package vision

import (
	"context"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/observability"
)

const defaultGoogleVisionModel = "gemini-1.5-flash"

// GoogleDescriber describes images via genai's multimodal GenerateContent,
// passing the image as an inline-data part alongside the prompt text.
type GoogleDescriber struct {
	client *genai.Client
	model  string
}

// NewGoogleDescriber builds a Describer around cfg's Google credentials.
func NewGoogleDescriber(cfg config.VisionConfig, httpClient *http.Client) (*GoogleDescriber, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGoogleVisionModel
	}

	return &GoogleDescriber{client: client, model: model}, nil
}

func (c *GoogleDescriber) Describe(ctx context.Context, imageBytes []byte, mimeType string, enableOCR bool) (Result, error) {
	ctx, span := observability.Tracer("vision").Start(ctx, "Google Describe")
	defer span.End()
	log := observability.LoggerWithTrace(ctx)

	parts := []*genai.Part{
		genai.NewPartFromBytes(imageBytes, mimeType),
		{Text: descriptionPrompt(enableOCR)},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Str("error", redactedErrorString(err)).Str("model", c.model).Dur("duration", dur).Msg("vision_describe_google_error")
		return Result{}, err
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}

	log.Debug().Str("model", c.model).Dur("duration", dur).Msg("vision_describe_google_ok")
	return parseResponse(sb.String()), nil
}
