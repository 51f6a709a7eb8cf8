// Package vision implements the image-captioning stage's provider-agnostic
// vision client (spec.md §4.4, SPEC_FULL.md §6.4): given an extracted
// image's bytes it asks a first-party multimodal SDK to describe what the
// image shows and, when OCR is enabled, to transcribe any visible text.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kunzeritter/docpipeline/internal/observability"
)

// Result is the vision stage's output for one image.
type Result struct {
	Description string
	Confidence  float64
	OCRText     string
}

// Describer describes the contents of a single image.
type Describer interface {
	Describe(ctx context.Context, imageBytes []byte, mimeType string, enableOCR bool) (Result, error)
}

// descriptionPrompt asks the model for a single JSON object so the three
// providers can share one response parser despite differing content-block
// shapes.
func descriptionPrompt(enableOCR bool) string {
	var sb strings.Builder
	sb.WriteString("You are analyzing an image extracted from a printer or multifunction-device service manual. ")
	sb.WriteString("Describe what the image shows (diagram, photo, schematic, or part) in one or two sentences, ")
	sb.WriteString("focused on the mechanical or electrical detail a field technician would need. ")
	if enableOCR {
		sb.WriteString("Also transcribe any legible text, labels, or callouts visible in the image verbatim. ")
	}
	sb.WriteString("Respond with a single JSON object, no surrounding prose, of the form ")
	if enableOCR {
		sb.WriteString(`{"description": "...", "ocr_text": "..."}`)
	} else {
		sb.WriteString(`{"description": "..."}`)
	}
	return sb.String()
}

type visionResponse struct {
	Description string `json:"description"`
	OCRText     string `json:"ocr_text"`
}

// parseResponse extracts the description/OCR text from a model's raw text
// reply. Models occasionally wrap the JSON in a code fence or add leading
// prose despite instructions, so this degrades to treating the whole reply
// as the description rather than failing the stage outright.
func parseResponse(raw string) Result {
	raw = strings.TrimSpace(raw)
	if fenced := strings.TrimPrefix(raw, "```json"); fenced != raw {
		raw = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
		raw = strings.TrimSpace(raw)
	} else if fenced := strings.TrimPrefix(raw, "```"); fenced != raw {
		raw = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Result{Description: raw, Confidence: confidenceFor(raw)}
	}

	var parsed visionResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return Result{Description: raw, Confidence: confidenceFor(raw)}
	}
	return Result{
		Description: strings.TrimSpace(parsed.Description),
		OCRText:     strings.TrimSpace(parsed.OCRText),
		Confidence:  confidenceFor(parsed.Description),
	}
}

// confidenceFor is a heuristic score, not a model-reported probability:
// none of the three SDKs expose one for a plain chat completion, so a
// non-empty description is scored higher than a degraded/empty one.
func confidenceFor(description string) float64 {
	if strings.TrimSpace(description) == "" {
		return 0.2
	}
	return 0.75
}

// redactedErrorString is what the three providers log instead of err
// directly: provider SDK errors often carry the raw API response body
// verbatim in Error(), so it goes through the same redaction pass as any
// other response body before it reaches a log line.
func redactedErrorString(err error) string {
	return string(observability.RedactJSON(json.RawMessage(err.Error())))
}

func dataURL(mimeType, base64Data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data)
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
