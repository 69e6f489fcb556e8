// Package scheduler decides which cached records need re-fetching and drives
// quota-aware discovery of new items.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidsite/internal/progress"
	"vidsite/quota"
	"vidsite/render"
	"vidsite/storage"
	"vidsite/youtube"
)

// RecordStore is the persistence surface the scheduler mutates. Mutations go
// through Load/Save as whole-sequence operations; the scheduler persists once
// per pass to bound I/O.
type RecordStore interface {
	Load() ([]storage.MetadataRecord, error)
	Save([]storage.MetadataRecord) error
	LoadTombstones() (map[string]bool, error)
}

// Budget exposes the remaining daily quota for early-stop decisions.
type Budget interface {
	Remaining() int
}

// Scheduler coordinates refresh and discovery passes against the source.
type Scheduler struct {
	source youtube.Source
	store  RecordStore
	budget Budget
	log    *slog.Logger
	now    func() time.Time
}

// New builds a scheduler.
func New(source youtube.Source, store RecordStore, budget Budget, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source: source,
		store:  store,
		budget: budget,
		log:    logger,
		now:    time.Now,
	}
}

// RefreshResult reports a refresh pass: how many records were brought up to
// date and the per-item errors collected along the way.
type RefreshResult struct {
	Updated int
	Errors  []string
}

// DiscoverResult reports a discovery pass.
type DiscoverResult struct {
	Added        int
	Pages        int
	StoppedEarly bool
	Errors       []string
}

// DiscoverOptions bound a discovery pass. Days == 0 means unbounded history;
// MaxPages == 0 means no page limit.
type DiscoverOptions struct {
	Days     int
	MaxPages int
}

// RefreshStale re-fetches records that are past the staleness window.
//
// When explicitIDs is non-empty the pass is restricted to those ids and each
// of them is re-fetched regardless of age. Tombstoned ids are always skipped.
// A rate-limit error stops the pass immediately; the partial result is
// persisted and returned alongside the error. Transient per-item errors are
// collected and the pass continues. The store is saved once, at the end.
func (s *Scheduler) RefreshStale(ctx context.Context, windowDays int, explicitIDs []string, observe progress.Func) (*RefreshResult, error) {
	prog := progress.NewTracker(observe)
	cutoff := s.now().UTC().AddDate(0, 0, -windowDays)

	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	tombstones, err := s.store.LoadTombstones()
	if err != nil {
		return nil, err
	}

	explicit := make(map[string]bool, len(explicitIDs))
	for _, id := range explicitIDs {
		explicit[id] = true
	}

	result := &RefreshResult{}
	var terminal error

	total := len(records)
	for i := range records {
		prog.Report(float64(i)/float64(max(total, 1)), fmt.Sprintf("checking %d/%d", i+1, total))

		if err := ctx.Err(); err != nil {
			terminal = err
			break
		}

		rec := &records[i]
		if tombstones[rec.ID] {
			continue
		}
		if len(explicit) > 0 && !explicit[rec.ID] {
			continue
		}
		if len(explicit) == 0 && !rec.Stale(cutoff) {
			continue
		}

		detail, validator, err := s.source.FetchItem(ctx, rec.ID, rec.Validator)
		switch {
		case err == nil:
			s.merge(rec, detail)
			rec.Validator = validator
			rec.Touch(s.now())
			result.Updated++
		case errors.Is(err, youtube.ErrUnchanged):
			rec.Touch(s.now())
			result.Updated++
		case errors.Is(err, youtube.ErrRateLimited):
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ID, err))
			terminal = err
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ID, err))
			s.log.Warn("detail fetch failed, skipping", "id", rec.ID, "error", err)
		}
		if terminal != nil {
			break
		}
	}

	// Persist-then-return: progress gathered before a rate limit is kept.
	if err := s.store.Save(records); err != nil {
		s.log.Warn("record store save failed, in-memory state kept for this run", "error", err)
	}
	prog.Report(1, fmt.Sprintf("refreshed %d records", result.Updated))
	return result, terminal
}

// DiscoverNew paginates the channel listing, fetching details for ids not
// yet cached and not tombstoned. Before each next page it checks the budget
// against the listing cost and stops early instead of issuing a call that
// would fail. Any rate limit truncates the pass with gathered records saved.
func (s *Scheduler) DiscoverNew(ctx context.Context, opts DiscoverOptions, observe progress.Func) (*DiscoverResult, error) {
	prog := progress.NewTracker(observe)

	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	tombstones, err := s.store.LoadTombstones()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.ID] = true
	}

	var publishedAfter time.Time
	if opts.Days > 0 {
		publishedAfter = s.now().UTC().AddDate(0, 0, -opts.Days)
	}

	result := &DiscoverResult{}
	prog.Report(0.02, "listing channel")

	page, err := s.source.ListItems(ctx, "", publishedAfter)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		if errors.Is(err, youtube.ErrRateLimited) {
			return result, err
		}
		return result, nil
	}

	var terminal error
pages:
	for {
		result.Pages++
		for _, id := range page.IDs {
			if err := ctx.Err(); err != nil {
				terminal = err
				break pages
			}
			if known[id] || tombstones[id] {
				continue
			}

			detail, validator, err := s.source.FetchItem(ctx, id, "")
			switch {
			case err == nil:
				detail.Slug = render.Slugify(detail.Title)
				detail.Validator = validator
				detail.Touch(s.now())
				records = append(records, *detail)
				known[id] = true
				result.Added++
				prog.Report(0.02+0.9*float64(result.Added)/float64(result.Added+5), fmt.Sprintf("added %s", id))
			case errors.Is(err, youtube.ErrRateLimited):
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
				terminal = err
				break pages
			default:
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
				s.log.Warn("detail fetch failed, skipping", "id", id, "error", err)
			}
		}

		if opts.MaxPages > 0 && result.Pages >= opts.MaxPages {
			break
		}
		if page.NextPageToken == "" {
			break
		}
		if s.budget.Remaining() < quota.Cost("search.list") {
			result.StoppedEarly = true
			result.Errors = append(result.Errors, "stopped early to conserve quota")
			s.log.Info("discovery stopped early to conserve quota",
				"remaining", s.budget.Remaining(), "pages", result.Pages)
			break
		}

		page, err = s.source.ListItems(ctx, page.NextPageToken, publishedAfter)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("pagination: %v", err))
			if errors.Is(err, youtube.ErrRateLimited) {
				terminal = err
			}
			break
		}
	}

	if err := s.store.Save(records); err != nil {
		s.log.Warn("record store save failed, in-memory state kept for this run", "error", err)
	}
	prog.Report(1, fmt.Sprintf("discovered %d new records", result.Added))
	return result, terminal
}

// SlugChange records one slug rewrite from a Reslug pass.
type SlugChange struct {
	ID, Old, New string
}

// Reslug rebuilds title-derived slugs. With onlyIDLike set, curated slugs
// are kept and only id-looking ones are replaced.
func (s *Scheduler) Reslug(onlyIDLike bool) ([]SlugChange, error) {
	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	var changes []SlugChange
	for i := range records {
		rec := &records[i]
		next := render.Slugify(rec.Title)
		if next == "" {
			continue
		}
		if onlyIDLike && rec.Slug != "" && !render.IDLikeSlug(rec.Slug, rec.ID) {
			continue
		}
		if rec.Slug != next {
			changes = append(changes, SlugChange{ID: rec.ID, Old: rec.Slug, New: next})
			rec.Slug = next
		}
	}

	if len(changes) > 0 {
		if err := s.store.Save(records); err != nil {
			return changes, err
		}
	}
	return changes, nil
}

// merge overwrites the derived fields of dst with a freshly fetched detail,
// preserving a curated slug when one exists.
func (s *Scheduler) merge(dst *storage.MetadataRecord, src *storage.MetadataRecord) {
	slug := dst.Slug
	if slug == "" {
		slug = render.Slugify(src.Title)
	}
	id := dst.ID
	*dst = *src
	dst.ID = id
	dst.Slug = slug
}
