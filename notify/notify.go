// Package notify announces published changes to search engines: per-URL
// IndexNow submissions and a sitemap ping. Outbound requests share a rate
// limiter so a large batch never bursts.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 15 * time.Second

// throttledClient wraps an http.Client behind a rate limiter.
type throttledClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newThrottledClient(client *http.Client) *throttledClient {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &throttledClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
}

func (t *throttledClient) get(ctx context.Context, rawURL string) (int, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// joinQuery appends query parameters to a base URL.
func joinQuery(base string, params url.Values) string {
	return base + "?" + params.Encode()
}

func statusLine(what, target string, code int) string {
	return fmt.Sprintf("%s: %s -> %d", what, target, code)
}
