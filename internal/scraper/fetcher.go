package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// userAgent identifies the sync crawler to partner sites so they can
// whitelist or throttle it deliberately.
const userAgent = "AtlasVoyages-AvailabilityBot/1.0 (+https://www.atlasvoyages.com/partners/sync)"

// defaultFetchTimeout bounds the outbound request so a stuck partner
// page cannot block a reconciliation indefinitely.
const defaultFetchTimeout = 15 * time.Second

// Fetcher wraps the outbound HTTP client used to download source
// pages.  A single client is shared across reconciliations; resty
// reuses connections under the hood.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher builds a fetcher with the given timeout; zero or negative
// falls back to the default.  No retry policy is attached: a failed
// fetch is reported once per attempt and the scheduler decides whether
// to come back.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")
	return &Fetcher{client: client}
}

// FetchPage downloads a source page and returns its body.  A non-2xx
// response is an error carrying the HTTP status so operators can see
// it verbatim in the source's last_sync_error column.
func (f *Fetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}
