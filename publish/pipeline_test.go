package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsite/internal/progress"
	"vidsite/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStore struct {
	records    []storage.MetadataRecord
	tombstones map[string]bool
}

func (f *fakeStore) Load() ([]storage.MetadataRecord, error) { return f.records, nil }

func (f *fakeStore) LoadTombstones() (map[string]bool, error) {
	if f.tombstones == nil {
		return map[string]bool{}, nil
	}
	return f.tombstones, nil
}

// fakeRenderer emits deterministic content keyed by record id and a
// per-renderer generation counter, so tests can force content changes.
type fakeRenderer struct {
	generation int
}

func (f *fakeRenderer) RenderItem(rec storage.MetadataRecord, related []storage.MetadataRecord) ([]byte, error) {
	return []byte(fmt.Sprintf("item %s gen %d related %d\n", rec.ID, f.generation, len(related))), nil
}

func (f *fakeRenderer) RenderIndex(records []storage.MetadataRecord) ([]byte, error) {
	return []byte(fmt.Sprintf("index of %d gen %d\n", len(records), f.generation)), nil
}

type fakeRepo struct {
	staged    bool
	committed []string
	pushed    bool
	pending   bool
	commitErr error
	pushErr   error
}

func (f *fakeRepo) StageAll(context.Context) error { f.staged = true; return nil }
func (f *fakeRepo) HasPendingChanges(context.Context) (bool, error) {
	return f.pending, nil
}
func (f *fakeRepo) Commit(_ context.Context, msg string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, msg)
	return nil
}
func (f *fakeRepo) PullThenPush(context.Context) ([]string, error) {
	if f.pushErr != nil {
		return []string{"pull: ok"}, f.pushErr
	}
	f.pushed = true
	return []string{"push: ok"}, nil
}

type fakeSubmitter struct {
	urls []string
}

func (f *fakeSubmitter) SubmitURLs(_ context.Context, urls []string, observe progress.Func) ([]string, error) {
	f.urls = append(f.urls, urls...)
	if observe != nil {
		observe(1, "submitted")
	}
	return []string{"indexnow: ok"}, nil
}

type fakePinger struct {
	pinged string
}

func (f *fakePinger) PingSitemap(_ context.Context, sitemapURL string) (string, error) {
	f.pinged = sitemapURL
	return "ping: ok", nil
}

func newTestPipeline(t *testing.T, store *fakeStore, renderer *fakeRenderer) (*Pipeline, string, string) {
	t.Helper()
	outDir := t.TempDir()
	previewDir := t.TempDir()
	p := New(store, renderer, "https://example.com", "slug", outDir, previewDir, testLogger())
	return p, outDir, previewDir
}

func allOpts() Options {
	return Options{UpdateItems: true, UpdateIndex: true}
}

func TestExecuteRendersEverythingFirstRun(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha", PublishedAt: "2025-01-02"},
		{ID: "b", Title: "Beta", Slug: "beta", PublishedAt: "2025-01-01"},
	}}
	p, outDir, _ := newTestPipeline(t, store, &fakeRenderer{})

	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "videos", "alpha.html"))
	assert.FileExists(t, filepath.Join(outDir, "videos", "beta.html"))
	assert.FileExists(t, filepath.Join(outDir, "index.html"))
	assert.FileExists(t, filepath.Join(outDir, "sitemap.xml"))
	assert.Len(t, run.ChangedFiles, 4)
	assert.Len(t, run.Diffs, 4, "every new artifact diffs as an addition")
	assert.Contains(t, run.URLs, "https://example.com/videos/alpha.html")
	assert.Contains(t, run.URLs, "https://example.com/")
}

func TestExecuteSecondRunChangesNothing(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	renderer := &fakeRenderer{}
	p, _, _ := newTestPipeline(t, store, renderer)

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)
	assert.Empty(t, run.ChangedFiles)
	assert.Empty(t, run.Diffs)
	assert.Empty(t, run.URLs)
}

func TestExecuteContentChangeProducesDiff(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	renderer := &fakeRenderer{}
	p, _, previewDir := newTestPipeline(t, store, renderer)

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	renderer.generation = 1
	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	require.NotEmpty(t, run.Diffs)
	first := run.Diffs[0]
	assert.Contains(t, first.Text, "-item a gen 0")
	assert.Contains(t, first.Text, "+item a gen 1")
	assert.Contains(t, first.Text, first.Path+":old")

	// First diff of the run is kept for inspection.
	saved, err := os.ReadFile(filepath.Join(previewDir, "__last_first_diff.txt"))
	require.NoError(t, err)
	assert.Equal(t, first.Text, string(saved))
}

func TestExecuteForceRebuildAlwaysWrites(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	p, outDir, _ := newTestPipeline(t, store, &fakeRenderer{})

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	opts := allOpts()
	opts.ForceRebuild = true
	run, err := p.Execute(context.Background(), opts, nil)
	require.NoError(t, err)

	// The marker makes the item and index artifacts differ; the sitemap is
	// untouched by forced rebuilds.
	assert.Len(t, run.ChangedFiles, 2)
	require.NotEmpty(t, run.Diffs)
	assert.Contains(t, run.Diffs[0].Text, "+<!-- build ")

	content, err := os.ReadFile(filepath.Join(outDir, "videos", "alpha.html"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "<!-- build ")
}

func TestExecutePrunesOrphans(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	p, outDir, _ := newTestPipeline(t, store, &fakeRenderer{})

	orphan := filepath.Join(outDir, "videos", "orphan.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphan), 0o755))
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0o644))

	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	assert.NoFileExists(t, orphan)
	assert.Contains(t, run.ChangedFiles, orphan)
	assert.Contains(t, run.PublishLog, "deleted "+orphan)
}

func TestExecuteTombstonedRecordsAreOrphans(t *testing.T) {
	store := &fakeStore{
		records: []storage.MetadataRecord{
			{ID: "a", Title: "Alpha", Slug: "alpha"},
			{ID: "gone", Title: "Gone", Slug: "gone"},
		},
	}
	p, outDir, _ := newTestPipeline(t, store, &fakeRenderer{})

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(outDir, "videos", "gone.html"))

	store.tombstones = map[string]bool{"gone": true}
	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(outDir, "videos", "gone.html"))
	assert.NotEmpty(t, run.ChangedFiles)
}

func TestDryRunLeavesLiveTreeUntouched(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	renderer := &fakeRenderer{}
	p, outDir, previewDir := newTestPipeline(t, store, renderer)

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(outDir, "videos", "alpha.html"))
	require.NoError(t, err)

	orphan := filepath.Join(outDir, "videos", "orphan.html")
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0o644))

	renderer.generation = 1
	opts := allOpts()
	opts.DryRun = true
	run, err := p.Execute(context.Background(), opts, nil)
	require.NoError(t, err)

	// Diff was taken against the live artifact.
	require.NotEmpty(t, run.Diffs)
	assert.Contains(t, run.Diffs[0].Text, "-item a gen 0")

	// Live tree is exactly as before, new bytes landed in the preview dir.
	after, err := os.ReadFile(filepath.Join(outDir, "videos", "alpha.html"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.FileExists(t, orphan)
	assert.FileExists(t, filepath.Join(previewDir, "videos", "alpha.html"))

	// Changed files still name live paths; orphans are only reported.
	assert.Contains(t, run.ChangedFiles, filepath.Join(outDir, "videos", "alpha.html"))
	assert.Contains(t, run.PublishLog, "[would delete] "+orphan)
	assert.True(t, run.DryRun)
}

func TestDeployCommitsAndPushes(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	repo := &fakeRepo{pending: true}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})
	p.WithRepo(repo)

	opts := allOpts()
	opts.CommitMessage = "Publish new videos"
	run, err := p.Execute(context.Background(), opts, nil)
	require.NoError(t, err)

	assert.True(t, repo.staged)
	assert.Equal(t, []string{"Publish new videos"}, repo.committed)
	assert.True(t, repo.pushed)
	assert.Contains(t, run.PublishLog, "push: ok")
}

func TestDeploySkippedWhenNothingChanged(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	repo := &fakeRepo{pending: true}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})
	p.WithRepo(repo)

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)
	repo.staged = false
	repo.pushed = false

	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	assert.False(t, repo.staged)
	assert.False(t, repo.pushed)
	assert.Contains(t, run.PublishLog, "nothing to publish")
}

func TestDeploySkippedOnDryRun(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	repo := &fakeRepo{pending: true}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})
	p.WithRepo(repo)

	opts := allOpts()
	opts.DryRun = true
	run, err := p.Execute(context.Background(), opts, nil)
	require.NoError(t, err)

	assert.False(t, repo.staged)
	assert.Contains(t, run.PublishLog, "dry run: deploy skipped")
}

func TestForceRebuildBackToBackRunsBothChange(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	opts := allOpts()
	opts.ForceRebuild = true

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }
	run1, err := p.Execute(context.Background(), opts, nil)
	require.NoError(t, err)

	// One nanosecond apart the markers must still differ.
	p.now = func() time.Time { return base.Add(time.Nanosecond) }
	run2, err := p.Execute(context.Background(), opts, nil)
	require.NoError(t, err)

	assert.Len(t, run1.ChangedFiles, 2)
	assert.Len(t, run2.ChangedFiles, 2)
}

func TestPruneRunsWithoutUpdateItems(t *testing.T) {
	store := &fakeStore{
		records: []storage.MetadataRecord{
			{ID: "a", Title: "Alpha", Slug: "alpha"},
			{ID: "gone", Title: "Gone", Slug: "gone"},
		},
	}
	p, outDir, _ := newTestPipeline(t, store, &fakeRenderer{})

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(outDir, "videos", "gone.html"))

	store.tombstones = map[string]bool{"gone": true}
	run, err := p.Execute(context.Background(), Options{UpdateIndex: true}, nil)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(outDir, "videos", "gone.html"))
	assert.Contains(t, run.ChangedFiles, filepath.Join(outDir, "videos", "gone.html"))
}

func TestDeployGitFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	repo := &fakeRepo{pending: true, commitErr: errors.New("remote hung up")}
	submitter := &fakeSubmitter{}
	pinger := &fakePinger{}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})
	p.WithRepo(repo).WithNotify(submitter, pinger)

	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	assert.Contains(t, run.PublishLog, "commit failed: remote hung up")
	assert.False(t, repo.pushed)
	// Notification still runs after a failed git sequence.
	assert.NotEmpty(t, submitter.urls)
	assert.Equal(t, "https://example.com/sitemap.xml", pinger.pinged)
}

func TestDeployPushFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	repo := &fakeRepo{pending: true, pushErr: errors.New("no route to host")}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})
	p.WithRepo(repo)

	run, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	assert.Contains(t, run.PublishLog, "pull: ok")
	assert.Contains(t, run.PublishLog, "push failed: no route to host")
}

func TestDeployNotifiesChangedURLs(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	repo := &fakeRepo{pending: true}
	submitter := &fakeSubmitter{}
	pinger := &fakePinger{}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})
	p.WithRepo(repo).WithNotify(submitter, pinger)

	var seen []float64
	run, err := p.Execute(context.Background(), allOpts(), func(frac float64, _ string) {
		seen = append(seen, frac)
	})
	require.NoError(t, err)

	assert.Equal(t, run.URLs, submitter.urls)
	assert.Contains(t, run.PublishLog, "indexnow: ok")
	assert.Contains(t, run.PublishLog, "ping: ok")
	// The submission progress callback feeds the run observer.
	require.NotEmpty(t, seen)
	assert.Equal(t, 1.0, seen[len(seen)-1])
}

func TestDryRunDoesNotSaveDiffPreview(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
	}}
	renderer := &fakeRenderer{}
	p, _, previewDir := newTestPipeline(t, store, renderer)

	_, err := p.Execute(context.Background(), allOpts(), nil)
	require.NoError(t, err)

	renderer.generation = 1
	opts := allOpts()
	opts.DryRun = true
	run, err := p.Execute(context.Background(), opts, nil)
	require.NoError(t, err)

	require.NotEmpty(t, run.Diffs)
	assert.NoFileExists(t, filepath.Join(previewDir, "__last_first_diff.txt"))
}

func TestProgressIsMonotonicAndCompletes(t *testing.T) {
	store := &fakeStore{records: []storage.MetadataRecord{
		{ID: "a", Title: "Alpha", Slug: "alpha"},
		{ID: "b", Title: "Beta", Slug: "beta"},
		{ID: "c", Title: "Gamma", Slug: "gamma"},
	}}
	p, _, _ := newTestPipeline(t, store, &fakeRenderer{})
	p.WithRepo(&fakeRepo{pending: true})

	var seen []float64
	_, err := p.Execute(context.Background(), allOpts(), func(frac float64, _ string) {
		seen = append(seen, frac)
	})
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "progress regressed at step %d", i)
	}
	assert.Equal(t, 1.0, seen[len(seen)-1])
}
