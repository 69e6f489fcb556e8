// Package publish drives the render-diff-publish pipeline: regenerate
// artifacts from the record store, diff them against the live site tree,
// prune orphans, and push the result out through git and search-engine
// notification.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vidsite/internal/progress"
	"vidsite/render"
	"vidsite/storage"
)

const (
	itemsDirName  = "videos"
	indexFileName = "index.html"
	sitemapName   = "sitemap.xml"
	relatedCount  = 5
	firstDiffName = "__last_first_diff.txt"
)

// RecordStore is the read-only persistence surface the pipeline consumes.
type RecordStore interface {
	Load() ([]storage.MetadataRecord, error)
	LoadTombstones() (map[string]bool, error)
}

// Repo is the version-control surface used for deployment. A nil Repo on the
// pipeline disables the deploy stage.
type Repo interface {
	StageAll(ctx context.Context) error
	HasPendingChanges(ctx context.Context) (bool, error)
	Commit(ctx context.Context, message string) error
	PullThenPush(ctx context.Context) ([]string, error)
}

// URLSubmitter announces changed URLs to search engines.
type URLSubmitter interface {
	SubmitURLs(ctx context.Context, urls []string, observe progress.Func) ([]string, error)
}

// SitemapPinger announces a refreshed sitemap.
type SitemapPinger interface {
	PingSitemap(ctx context.Context, sitemapURL string) (string, error)
}

// Options select which artifacts a run regenerates and how it publishes.
type Options struct {
	UpdateItems   bool
	UpdateIndex   bool
	DryRun        bool
	ForceRebuild  bool
	CommitMessage string
}

// Run is the outcome of one pipeline pass. ChangedFiles always names live
// paths, including during a dry run where the bytes were staged elsewhere.
type Run struct {
	ChangedFiles []string
	Diffs        []FileDiff
	URLs         []string
	PublishLog   []string
	DryRun       bool
}

// Pipeline regenerates the site from cached records. The repo, submitter,
// and pinger collaborators are each optional; a nil value switches that
// capability off rather than failing the run.
type Pipeline struct {
	store      RecordStore
	renderer   render.Renderer
	siteURL    string
	naming     string
	outDir     string
	previewDir string
	repo       Repo
	submitter  URLSubmitter
	pinger     SitemapPinger
	log        *slog.Logger
	now        func() time.Time
}

// New builds a pipeline writing artifacts under outDir and staging dry runs
// under previewDir.
func New(store RecordStore, renderer render.Renderer, siteURL, naming, outDir, previewDir string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		renderer:   renderer,
		siteURL:    strings.TrimRight(siteURL, "/"),
		naming:     naming,
		outDir:     outDir,
		previewDir: previewDir,
		log:        logger,
		now:        time.Now,
	}
}

// WithRepo attaches the deploy capability.
func (p *Pipeline) WithRepo(repo Repo) *Pipeline {
	p.repo = repo
	return p
}

// WithNotify attaches the search-engine notification capabilities.
func (p *Pipeline) WithNotify(submitter URLSubmitter, pinger SitemapPinger) *Pipeline {
	p.submitter = submitter
	p.pinger = pinger
	return p
}

// Execute runs one pipeline pass.
//
// Diffs are always computed against the live artifact, dry run or not. In a
// dry run new bytes land under the preview directory and the live tree is
// untouched; orphaned artifacts are reported with a "[would delete]" prefix
// instead of being removed.
func (p *Pipeline) Execute(ctx context.Context, opts Options, observe progress.Func) (*Run, error) {
	prog := progress.NewTracker(observe)
	run := &Run{DryRun: opts.DryRun}

	prog.Report(0.02, "loading records")
	records, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	tombstones, err := p.store.LoadTombstones()
	if err != nil {
		return nil, err
	}

	live := make([]storage.MetadataRecord, 0, len(records))
	for _, r := range records {
		if !tombstones[r.ID] {
			live = append(live, r)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].PublishedAt > live[j].PublishedAt
	})

	// A forced rebuild stamps a marker into each regenerated artifact so its
	// content differs even when nothing logical changed.
	var marker []byte
	if opts.ForceRebuild {
		marker = []byte("<!-- build " + p.now().UTC().Format(time.RFC3339Nano) + " -->\n")
	}

	if opts.UpdateItems {
		if err := p.renderItems(ctx, opts, live, marker, run, prog); err != nil {
			return run, err
		}
	}

	// Tombstoned and orphaned artifacts go away on every pass, not just
	// item-rendering ones.
	prog.Report(0.68, "pruning orphans")
	if err := p.pruneOrphans(opts, live, run); err != nil {
		return run, err
	}

	if opts.UpdateIndex {
		prog.Report(0.72, "rendering index")
		content, err := p.renderer.RenderIndex(live)
		if err != nil {
			return run, fmt.Errorf("render index: %w", err)
		}
		changed, err := p.writeArtifact(opts, indexFileName, append(content, marker...), run)
		if err != nil {
			return run, err
		}
		if changed {
			run.URLs = append(run.URLs, p.siteURL+"/")
		}
	}

	// The sitemap tracks the current record set on every run, whatever
	// subset of artifacts was selected.
	prog.Report(0.82, "rendering sitemap")
	sitemap, err := render.Sitemap(p.siteURL, p.naming, live)
	if err != nil {
		return run, fmt.Errorf("render sitemap: %w", err)
	}
	if _, err := p.writeArtifact(opts, sitemapName, sitemap, run); err != nil {
		return run, err
	}

	if !opts.DryRun {
		p.saveFirstDiff(run)
	}

	prog.Report(0.90, "deploying")
	p.deploy(ctx, opts, run, prog.Stage(0.90, 1.0))

	prog.Report(1, fmt.Sprintf("%d files changed", len(run.ChangedFiles)))
	return run, nil
}

func (p *Pipeline) renderItems(ctx context.Context, opts Options, live []storage.MetadataRecord, marker []byte, run *Run, prog *progress.Tracker) error {
	n := len(live)
	for i, rec := range live {
		if err := ctx.Err(); err != nil {
			return err
		}
		prog.Report(0.08+0.60*float64(i)/float64(max(n, 1)), fmt.Sprintf("rendering %d/%d", i+1, n))

		content, err := p.renderer.RenderItem(rec, render.Related(live, rec, relatedCount))
		if err != nil {
			return fmt.Errorf("render %s: %w", rec.ID, err)
		}
		rel := filepath.Join(itemsDirName, render.OutputBasename(rec, p.naming)+".html")
		changed, err := p.writeArtifact(opts, rel, append(content, marker...), run)
		if err != nil {
			return err
		}
		if changed {
			run.URLs = append(run.URLs, p.siteURL+"/"+itemsDirName+"/"+render.OutputBasename(rec, p.naming)+".html")
		}
	}
	return nil
}

// writeArtifact diffs content against the live artifact at rel and, when it
// differs, writes it to the live tree or to the preview tree for dry runs.
// It reports whether the artifact changed.
func (p *Pipeline) writeArtifact(opts Options, rel string, content []byte, run *Run) (bool, error) {
	livePath := filepath.Join(p.outDir, rel)
	old, err := os.ReadFile(livePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", livePath, err)
	}

	if string(old) == string(content) {
		return false, nil
	}
	text, err := unifiedDiff(rel, old, content)
	if err != nil {
		return false, fmt.Errorf("diff %s: %w", rel, err)
	}
	run.Diffs = append(run.Diffs, FileDiff{Path: rel, Text: text})

	target := livePath
	if opts.DryRun {
		target = filepath.Join(p.previewDir, rel)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", target, err)
	}

	run.ChangedFiles = append(run.ChangedFiles, livePath)
	return true, nil
}

// pruneOrphans removes live item artifacts with no backing record. Dry runs
// only report them.
func (p *Pipeline) pruneOrphans(opts Options, live []storage.MetadataRecord, run *Run) error {
	expected := make(map[string]bool, len(live))
	for _, r := range live {
		expected[render.OutputBasename(r, p.naming)+".html"] = true
	}

	dir := filepath.Join(p.outDir, itemsDirName)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".html") || expected[name] {
			continue
		}
		path := filepath.Join(dir, name)
		if opts.DryRun {
			run.PublishLog = append(run.PublishLog, "[would delete] "+path)
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("prune %s: %w", path, err)
		}
		run.ChangedFiles = append(run.ChangedFiles, path)
		run.PublishLog = append(run.PublishLog, "deleted "+path)
		p.log.Info("pruned orphaned artifact", "path", path)
	}
	return nil
}

// deploy pushes the run out through git and the notification transports.
// Every deploy step failure lands in the publish log and never fails the
// run as a whole.
func (p *Pipeline) deploy(ctx context.Context, opts Options, run *Run, prog *progress.Tracker) {
	if opts.DryRun || p.repo == nil {
		if opts.DryRun {
			run.PublishLog = append(run.PublishLog, "dry run: deploy skipped")
		}
		prog.Report(1, "deploy skipped")
		return
	}
	if len(run.ChangedFiles) == 0 {
		run.PublishLog = append(run.PublishLog, "nothing to publish")
		prog.Report(1, "nothing to publish")
		return
	}

	p.pushChanges(ctx, opts, run, prog)

	if p.submitter != nil && len(run.URLs) > 0 {
		lines, err := p.submitter.SubmitURLs(ctx, run.URLs, prog.Stage(0.82, 0.92).Report)
		run.PublishLog = append(run.PublishLog, lines...)
		if err != nil {
			p.log.Warn("url submission failed", "error", err)
			run.PublishLog = append(run.PublishLog, "indexnow failed: "+err.Error())
		}
	}
	if p.pinger != nil {
		prog.Report(0.92, "pinging sitemap")
		line, err := p.pinger.PingSitemap(ctx, p.siteURL+"/"+sitemapName)
		if line != "" {
			run.PublishLog = append(run.PublishLog, line)
		}
		if err != nil {
			p.log.Warn("sitemap ping failed", "error", err)
			run.PublishLog = append(run.PublishLog, "sitemap ping failed: "+err.Error())
		}
	}

	prog.Report(0.98, "wrapping up")
	prog.Report(1, "deploy complete")
}

// pushChanges runs the git stage/status/commit/push sequence. A failed step
// stops the sequence, logged but not fatal; the notification steps still run.
func (p *Pipeline) pushChanges(ctx context.Context, opts Options, run *Run, prog *progress.Tracker) {
	prog.Report(0.02, "opening repository")
	prog.Report(0.06, "staging changes")
	if err := p.repo.StageAll(ctx); err != nil {
		p.reportDeployFailure(run, "stage", err)
		return
	}

	prog.Report(0.10, "checking status")
	pending, err := p.repo.HasPendingChanges(ctx)
	if err != nil {
		p.reportDeployFailure(run, "status", err)
		return
	}
	if !pending {
		run.PublishLog = append(run.PublishLog, "no staged changes, skipping commit")
		return
	}

	msg := opts.CommitMessage
	if msg == "" {
		msg = fmt.Sprintf("Update site: %d files changed", len(run.ChangedFiles))
	}
	prog.Report(0.18, "committing")
	if err := p.repo.Commit(ctx, msg); err != nil {
		p.reportDeployFailure(run, "commit", err)
		return
	}

	prog.Report(0.30, "pushing")
	lines, err := p.repo.PullThenPush(ctx)
	run.PublishLog = append(run.PublishLog, lines...)
	if err != nil {
		p.reportDeployFailure(run, "push", err)
		return
	}
	prog.Report(0.70, "push complete")
}

func (p *Pipeline) reportDeployFailure(run *Run, step string, err error) {
	p.log.Warn("deploy step failed", "step", step, "error", err)
	run.PublishLog = append(run.PublishLog, step+" failed: "+err.Error())
}

// saveFirstDiff drops the first diff of the run under the preview directory
// for post-run inspection. Failures only log.
func (p *Pipeline) saveFirstDiff(run *Run) {
	if len(run.Diffs) == 0 || p.previewDir == "" {
		return
	}
	if err := os.MkdirAll(p.previewDir, 0o755); err != nil {
		p.log.Warn("preview dir unavailable", "error", err)
		return
	}
	path := filepath.Join(p.previewDir, firstDiffName)
	if err := os.WriteFile(path, []byte(run.Diffs[0].Text), 0o644); err != nil {
		p.log.Warn("could not save diff preview", "error", err)
	}
}
