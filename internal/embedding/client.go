package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/observability"
)

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedText calls the configured embedding endpoint and returns one embedding
// per input string, in the same order. An empty input slice is an error: the
// caller should not pay a round trip for nothing. httpClient may be nil, in
// which case http.DefaultClient is used (CheckReachability's convenience
// path); Client threads its own instrumented client through instead.
func EmbedText(ctx context.Context, httpClient *http.Client, cfg config.EmbeddingConfig, inputs []string) ([][]float32, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("embedding: no inputs")
	}
	reqBody, err := json.Marshal(embedReq{Model: cfg.Model, Input: inputs})
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := cfg.BaseURL + cfg.Path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// Legacy single-header auth applied first so an explicit entry in Headers
	// can still override it.
	if cfg.APIHeader != "" && cfg.APIKey != "" {
		if cfg.APIHeader == "Authorization" {
			req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		} else {
			req.Header.Set(cfg.APIHeader, cfg.APIKey)
		}
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: failed to read response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		// Redact before the body ever reaches ServiceError.Error(), since
		// that string is what downstream callers log or wrap further.
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(observability.RedactJSON(bodyBytes))}
	}

	var er embedResp
	if err := json.Unmarshal(bodyBytes, &er); err != nil {
		return nil, fmt.Errorf("embedding: failed to parse response (inputs=%d): %w", len(inputs), err)
	}
	if len(er.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding: unexpected vector count: got %d, want %d", len(er.Data), len(inputs))
	}
	if cfg.Dimension > 0 {
		for i, d := range er.Data {
			if len(d.Embedding) != cfg.Dimension {
				return nil, fmt.Errorf("embedding: dimension mismatch at index %d: got %d, want %d", i, len(d.Embedding), cfg.Dimension)
			}
		}
	}

	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// ServiceError carries the HTTP status from a failed embedding call so
// callers can classify it as transient (5xx/429) or permanent (other 4xx).
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("embedding: service returned %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying.
func (e *ServiceError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

// CheckReachability verifies the embedding endpoint responds to a minimal
// request; used at startup so a misconfigured endpoint fails fast.
func CheckReachability(ctx context.Context, cfg config.EmbeddingConfig) error {
	if _, err := EmbedText(ctx, nil, cfg, []string{"ping"}); err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}

// Client adapts EmbedText to the searchindex.Embedder interface (EmbedBatch
// + Name) so the embedding_and_search stage doesn't need to import this
// package's concrete config type.
type Client struct {
	cfg        config.EmbeddingConfig
	httpClient *http.Client
}

// NewClient returns a Client bound to cfg, issuing requests through
// httpClient (nil falls back to http.DefaultClient). Callers should pass an
// observability.NewHTTPClient-wrapped client so embedding round trips carry
// the same otelhttp span/metric instrumentation as the rest of the pipeline.
func NewClient(cfg config.EmbeddingConfig, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return EmbedText(ctx, c.httpClient, c.cfg, texts)
}

func (c *Client) Name() string {
	if c.cfg.Model != "" {
		return c.cfg.Model
	}
	return "embedding-client"
}
