package scrapeclient

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/kunzeritter/docpipeline/internal/config"
)

// chromedpBackend is the primary, rich backend: it renders the page in a
// real headless Chrome, then reads back the
// rendered DOM's text content so JS-rendered pages (which the
// readability-only fallback cannot see) are captured.
type chromedpBackend struct {
	timeout   time.Duration
	userAgent string
}

func newChromedpBackend(cfg config.ScrapeConfig) *chromedpBackend {
	timeout := 20 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &chromedpBackend{timeout: timeout, userAgent: cfg.UserAgent}
}

func (b *chromedpBackend) name() string { return "chromedp" }

func (b *chromedpBackend) scrape(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, b.timeout)
	defer cancelRun()

	var title, body string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Text("body", &body, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return "", fmt.Errorf("chromedp: %w", err)
	}

	if title != "" {
		return "# " + title + "\n\n" + body, nil
	}
	return body, nil
}
