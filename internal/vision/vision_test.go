package vision

import (
	"net/http"
	"strings"
	"testing"

	"github.com/kunzeritter/docpipeline/internal/config"
)

func TestParseResponse_PlainJSON(t *testing.T) {
	r := parseResponse(`{"description": "A fuser unit diagram.", "ocr_text": "P/N RM2-5415"}`)
	if r.Description != "A fuser unit diagram." {
		t.Fatalf("description = %q", r.Description)
	}
	if r.OCRText != "P/N RM2-5415" {
		t.Fatalf("ocr_text = %q", r.OCRText)
	}
	if r.Confidence != 0.75 {
		t.Fatalf("confidence = %v", r.Confidence)
	}
}

func TestParseResponse_FencedJSON(t *testing.T) {
	r := parseResponse("```json\n{\"description\": \"A toner cartridge photo.\"}\n```")
	if r.Description != "A toner cartridge photo." {
		t.Fatalf("description = %q", r.Description)
	}
}

func TestParseResponse_NonJSONFallsBackToRawText(t *testing.T) {
	r := parseResponse("This image shows a paper tray.")
	if r.Description != "This image shows a paper tray." {
		t.Fatalf("description = %q", r.Description)
	}
	if r.Confidence != 0.75 {
		t.Fatalf("confidence = %v", r.Confidence)
	}
}

func TestParseResponse_EmptyScoresLowConfidence(t *testing.T) {
	r := parseResponse("")
	if r.Confidence != 0.2 {
		t.Fatalf("confidence = %v", r.Confidence)
	}
}

func TestDescriptionPrompt_MentionsOCROnlyWhenEnabled(t *testing.T) {
	withOCR := descriptionPrompt(true)
	withoutOCR := descriptionPrompt(false)
	if !strings.Contains(withOCR, "ocr_text") {
		t.Fatalf("expected ocr_text in prompt: %q", withOCR)
	}
	if strings.Contains(withoutOCR, "ocr_text") {
		t.Fatalf("did not expect ocr_text in prompt: %q", withoutOCR)
	}
}

func TestBuild_UnsupportedProviderErrors(t *testing.T) {
	_, err := Build(config.VisionConfig{Provider: "bogus"}, http.DefaultClient)
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestBuild_DefaultsToAnthropic(t *testing.T) {
	d, err := Build(config.VisionConfig{}, http.DefaultClient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.(*AnthropicDescriber); !ok {
		t.Fatalf("expected *AnthropicDescriber, got %T", d)
	}
}

func TestBuild_OpenAIProvider(t *testing.T) {
	d, err := Build(config.VisionConfig{Provider: "openai"}, http.DefaultClient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.(*OpenAIDescriber); !ok {
		t.Fatalf("expected *OpenAIDescriber, got %T", d)
	}
}
