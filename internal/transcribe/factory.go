package transcribe

import (
	"fmt"
	"net/http"

	"github.com/kunzeritter/docpipeline/internal/config"
)

// Build returns a Transcriber when video transcription is enabled and a
// model path is configured, or (nil, nil) when the feature is off —
// callers skip transcription rather than failing the classification
// stage over a disabled optional enrichment.
func Build(cfg config.Config, httpClient *http.Client) (Transcriber, error) {
	if !cfg.Features.VideoTranscription {
		return nil, nil
	}
	if cfg.Transcribe.ModelPath == "" {
		return nil, fmt.Errorf("transcribe: ENABLE_VIDEO_TRANSCRIPTION is set but WHISPER_MODEL_PATH is empty")
	}
	return NewWhisperTranscriber(cfg.Transcribe.ModelPath, httpClient)
}
