package notify

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestEnsureKeyGeneratesOnce(t *testing.T) {
	dir := t.TempDir()
	n := NewIndexNow("https://example.com", dir, testLogger())

	key, err := n.EnsureKey()
	require.NoError(t, err)
	assert.Len(t, key, 32, "uuid without hyphens")

	// Key file and verification file carry the same key.
	data, err := os.ReadFile(filepath.Join(dir, "indexnow_key.txt"))
	require.NoError(t, err)
	assert.Equal(t, key, strings.TrimSpace(string(data)))

	verification, err := os.ReadFile(filepath.Join(dir, key+".txt"))
	require.NoError(t, err)
	assert.Equal(t, key, strings.TrimSpace(string(verification)))

	// Subsequent calls reuse the stored key.
	again, err := n.EnsureKey()
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestSubmitURLs(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	dir := t.TempDir()
	n := NewIndexNow("https://example.com", dir, testLogger()).
		WithEndpoint(srv.URL, srv.Client())

	lines, err := n.SubmitURLs(context.Background(), []string{
		"https://example.com/videos/a.html",
		"https://example.com/videos/b.html",
	}, nil)
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, "indexnow: https://example.com/videos/a.html -> 202", lines[0])
	assert.Equal(t, "indexnow: https://example.com/videos/b.html -> 202", lines[1])

	require.Len(t, requests, 2)
	key, err := n.EnsureKey()
	require.NoError(t, err)
	assert.Contains(t, requests[0], "key="+key)
	assert.Contains(t, requests[0], "host=example.com")
	assert.Contains(t, requests[0], "url=https%3A%2F%2Fexample.com%2Fvideos%2Fa.html")
	assert.Contains(t, requests[0], "keyLocation=")
}

func TestSubmitURLsContinuesPastFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close() // every request to srv.URL now fails

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	n := NewIndexNow("https://example.com", t.TempDir(), testLogger()).
		WithEndpoint(srv.URL, ok.Client())

	lines, err := n.SubmitURLs(context.Background(), []string{
		"https://example.com/videos/a.html",
		"https://example.com/videos/b.html",
	}, nil)

	require.Error(t, err)
	assert.Len(t, lines, 2, "failure recorded per url, batch not aborted")
}

func TestPingSitemap(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewSitemapPing(testLogger()).WithEndpoint(srv.URL, srv.Client())

	line, err := p.PingSitemap(context.Background(), "https://example.com/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, "sitemap ping: https://example.com/sitemap.xml -> 200", line)
	assert.Equal(t, "sitemap=https%3A%2F%2Fexample.com%2Fsitemap.xml", query)
}

func TestPingSitemapConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewSitemapPing(testLogger()).WithEndpoint(srv.URL, &http.Client{})

	_, err := p.PingSitemap(context.Background(), "https://example.com/sitemap.xml")
	assert.Error(t, err)
}
