package notify

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const defaultPingEndpoint = "https://www.google.com/ping"

// SitemapPing notifies a search engine that the sitemap changed.
type SitemapPing struct {
	endpoint string
	client   *throttledClient
	log      *slog.Logger
}

// NewSitemapPing builds a pinger against the default endpoint.
func NewSitemapPing(logger *slog.Logger) *SitemapPing {
	return &SitemapPing{
		endpoint: defaultPingEndpoint,
		client:   newThrottledClient(nil),
		log:      logger,
	}
}

// WithEndpoint overrides the ping endpoint. Used by tests.
func (s *SitemapPing) WithEndpoint(endpoint string, client *http.Client) *SitemapPing {
	s.endpoint = endpoint
	s.client = newThrottledClient(client)
	return s
}

// PingSitemap issues the ping and returns a status line for the publish log.
func (s *SitemapPing) PingSitemap(ctx context.Context, sitemapURL string) (string, error) {
	params := url.Values{}
	params.Set("sitemap", strings.TrimSpace(sitemapURL))

	code, err := s.client.get(ctx, joinQuery(s.endpoint, params))
	if err != nil {
		s.log.Warn("sitemap ping failed", "sitemap", sitemapURL, "error", err)
		return "", err
	}
	return statusLine("sitemap ping", sitemapURL, code), nil
}
