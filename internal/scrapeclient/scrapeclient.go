// Package scrapeclient implements the Scrape Client (spec.md §4/§6): a
// two-backend link enrichment client that fetches a URL's content as
// Markdown, preferring a rich, JS-rendered backend and automatically
// failing over to a lightweight HTML-only backend on defined error
// classes, matching spec.md §6's `{success, backend, content, metadata}`
// result shape.
package scrapeclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/model"
)

// Result mirrors spec.md §6's scrape result shape.
type Result struct {
	Success  bool
	Backend  string
	Content  string
	Metadata model.ScrapedMetadata
}

// FailoverClass names the three error classes spec.md §6 requires the
// client to fail over on.
type FailoverClass string

const (
	FailoverRateLimit   FailoverClass = "rate-limit"
	FailoverTimeout     FailoverClass = "timeout"
	FailoverUnavailable FailoverClass = "unavailable"
)

// backend is implemented by each concrete scraper (spec.md §9.369's
// "Strategy: Scraper with two concrete implementations").
type backend interface {
	name() string
	scrape(ctx context.Context, url string) (string, error)
}

// Client selects the primary backend by default and retries on the
// fallback backend when the primary raises one of the three defined
// failover classes.
type Client struct {
	primary  backend
	fallback backend
}

// New builds the dual-backend client: chromedp (rich, JS-rendered) as
// primary and the readability/html-to-markdown pipeline ("beautifulsoup"
// in spec.md's scenario 5 naming) as fallback.
func New(cfg config.ScrapeConfig) *Client {
	return &Client{
		primary:  newChromedpBackend(cfg),
		fallback: newReadabilityBackend(cfg),
	}
}

// Scrape fetches url, trying the primary backend first. If the primary
// raises a failover-classified error, the fallback backend is tried and
// its outcome — success or failure — is returned instead.
func (c *Client) Scrape(ctx context.Context, url string) (Result, error) {
	content, err := c.primary.scrape(ctx, url)
	if err == nil {
		return Result{
			Success: true,
			Backend: c.primary.name(),
			Content: content,
			Metadata: model.ScrapedMetadata{
				Backend:   c.primary.name(),
				FetchedAt: time.Now(),
			},
		}, nil
	}
	if classify(err) == "" {
		return Result{}, err
	}

	content, ferr := c.fallback.scrape(ctx, url)
	if ferr != nil {
		return Result{
			Success: false,
			Backend: c.fallback.name(),
			Metadata: model.ScrapedMetadata{
				Backend:    c.fallback.name(),
				RetryCount: 1,
				FetchedAt:  time.Now(),
			},
		}, ferr
	}
	return Result{
		Success: true,
		Backend: c.fallback.name(),
		Content: content,
		Metadata: model.ScrapedMetadata{
			Backend:    c.fallback.name(),
			RetryCount: 1,
			FetchedAt:  time.Now(),
		},
	}, nil
}

// classify maps err to one of the three failover classes, or "" if err
// does not warrant trying the fallback backend.
func classify(err error) FailoverClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailoverTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailoverTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate-limit"):
		return FailoverRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return FailoverTimeout
	case strings.Contains(msg, "503") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return FailoverUnavailable
	default:
		return ""
	}
}

// statusClass classifies an HTTP response status into a failover class,
// used by the readability backend which sees status codes directly.
func statusClass(status int) FailoverClass {
	switch {
	case status == http.StatusTooManyRequests:
		return FailoverRateLimit
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		return FailoverUnavailable
	case status == http.StatusRequestTimeout:
		return FailoverTimeout
	default:
		return ""
	}
}
