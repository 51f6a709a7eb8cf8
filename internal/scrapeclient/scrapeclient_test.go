package scrapeclient

import (
	"context"
	"errors"
	"testing"
)

type fakeBackend struct {
	backendName string
	content     string
	err         error
}

func (f fakeBackend) name() string { return f.backendName }
func (f fakeBackend) scrape(ctx context.Context, url string) (string, error) {
	return f.content, f.err
}

func TestClient_Scrape_PrimarySuccess(t *testing.T) {
	c := &Client{
		primary:  fakeBackend{backendName: "chromedp", content: "hello"},
		fallback: fakeBackend{backendName: "beautifulsoup", err: errors.New("should not be called")},
	}
	res, err := c.Scrape(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Backend != "chromedp" || res.Content != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClient_Scrape_FailsOverOnRateLimit(t *testing.T) {
	c := &Client{
		primary:  fakeBackend{backendName: "chromedp", err: errors.New("status 429 rate limit exceeded")},
		fallback: fakeBackend{backendName: "beautifulsoup", content: "fallback content"},
	}
	res, err := c.Scrape(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Backend != "beautifulsoup" || res.Metadata.RetryCount != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClient_Scrape_DoesNotFailOverOnUnclassifiedError(t *testing.T) {
	c := &Client{
		primary:  fakeBackend{backendName: "chromedp", err: errors.New("invalid url")},
		fallback: fakeBackend{backendName: "beautifulsoup", err: errors.New("should not be called")},
	}
	_, err := c.Scrape(context.Background(), "https://example.com")
	if err == nil || err.Error() != "invalid url" {
		t.Fatalf("expected primary's unclassified error to propagate, got %v", err)
	}
}

func TestClient_Scrape_ReturnsFallbackFailure(t *testing.T) {
	c := &Client{
		primary:  fakeBackend{backendName: "chromedp", err: errors.New("timeout waiting for page load")},
		fallback: fakeBackend{backendName: "beautifulsoup", err: errors.New("fallback also failed")},
	}
	res, err := c.Scrape(context.Background(), "https://example.com")
	if err == nil {
		t.Fatal("expected error when both backends fail")
	}
	if res.Success || res.Backend != "beautifulsoup" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]FailoverClass{
		"status 429 rate limit exceeded": FailoverRateLimit,
		"request timeout":                FailoverTimeout,
		"503 service unavailable":        FailoverUnavailable,
		"connection refused":             FailoverUnavailable,
		"invalid url":                    "",
	}
	for msg, want := range cases {
		got := classify(errors.New(msg))
		if got != want {
			t.Errorf("classify(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	if statusClass(429) != FailoverRateLimit {
		t.Fatal("429 should classify as rate-limit")
	}
	if statusClass(503) != FailoverUnavailable {
		t.Fatal("503 should classify as unavailable")
	}
	if statusClass(200) != "" {
		t.Fatal("200 should not classify")
	}
}
