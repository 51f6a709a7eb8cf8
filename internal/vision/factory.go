package vision

import (
	"fmt"
	"net/http"

	"github.com/kunzeritter/docpipeline/internal/config"
)

// Build constructs a Describer from cfg's Provider, mirroring the
// provider-switch shape the teacher's LLM client factory uses to pick
// between Anthropic, OpenAI, and Google backends.
func Build(cfg config.VisionConfig, httpClient *http.Client) (Describer, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return NewAnthropicDescriber(cfg, httpClient), nil
	case "openai":
		return NewOpenAIDescriber(cfg, httpClient), nil
	case "google":
		return NewGoogleDescriber(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", cfg.Provider)
	}
}
