package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vidsite/internal/progress"
)

const (
	defaultIndexNowEndpoint = "https://www.bing.com/indexnow"
	keyFileName             = "indexnow_key.txt"
)

// IndexNow submits changed URLs to the IndexNow endpoint one at a time,
// authenticated by a site-hosted key file.
type IndexNow struct {
	siteURL  string
	siteDir  string
	endpoint string
	client   *throttledClient
	log      *slog.Logger
}

// NewIndexNow builds a submitter for siteURL whose key file lives under
// siteDir (the published tree root).
func NewIndexNow(siteURL, siteDir string, logger *slog.Logger) *IndexNow {
	return &IndexNow{
		siteURL:  strings.TrimRight(siteURL, "/"),
		siteDir:  siteDir,
		endpoint: defaultIndexNowEndpoint,
		client:   newThrottledClient(nil),
		log:      logger,
	}
}

// WithEndpoint overrides the submission endpoint. Used by tests.
func (n *IndexNow) WithEndpoint(endpoint string, client *http.Client) *IndexNow {
	n.endpoint = endpoint
	n.client = newThrottledClient(client)
	return n
}

// EnsureKey loads the IndexNow key, generating and persisting a fresh one on
// first use. The key is written twice: once to the stable key file and once
// to <key>.txt, the name the endpoint fetches for verification.
func (n *IndexNow) EnsureKey() (string, error) {
	keyPath := filepath.Join(n.siteDir, keyFileName)
	if data, err := os.ReadFile(keyPath); err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}

	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := os.MkdirAll(n.siteDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(keyPath, []byte(key+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(n.siteDir, key+".txt"), []byte(key+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write key verification file: %w", err)
	}
	n.log.Info("generated new indexnow key", "path", keyPath)
	return key, nil
}

// SubmitURLs announces each URL individually, returning one status line per
// submission. A failing URL does not stop the batch.
func (n *IndexNow) SubmitURLs(ctx context.Context, urls []string, observe progress.Func) ([]string, error) {
	key, err := n.EnsureKey()
	if err != nil {
		return nil, err
	}

	host := n.siteURL
	if u, err := url.Parse(n.siteURL); err == nil && u.Host != "" {
		host = u.Host
	}
	keyLocation := n.siteURL + "/" + key + ".txt"

	prog := progress.NewTracker(observe)
	var lines []string
	var firstErr error
	for i, target := range urls {
		prog.Report(float64(i)/float64(max(len(urls), 1)), fmt.Sprintf("submitting %d/%d", i+1, len(urls)))

		params := url.Values{}
		params.Set("url", target)
		params.Set("key", key)
		params.Set("keyLocation", keyLocation)
		params.Set("host", host)

		code, err := n.client.get(ctx, joinQuery(n.endpoint, params))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			lines = append(lines, fmt.Sprintf("indexnow: %s -> error: %v", target, err))
			n.log.Warn("indexnow submission failed", "url", target, "error", err)
			continue
		}
		lines = append(lines, statusLine("indexnow", target, code))
	}
	prog.Report(1, fmt.Sprintf("submitted %d urls", len(urls)))
	return lines, firstErr
}
