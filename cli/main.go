// Command vidsite syncs a YouTube channel's metadata into a local store and
// publishes a static site generated from it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"vidsite/config"
	"vidsite/notify"
	"vidsite/publish"
	"vidsite/quota"
	"vidsite/render"
	"vidsite/scheduler"
	"vidsite/storage"
	"vidsite/vcs"
	"vidsite/youtube"
)

func main() {
	app := &cli.App{
		Name:  "vidsite",
		Usage: "sync YouTube channel metadata and publish a static site",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "vidsite.yaml", Usage: "path to configuration file"},
			&cli.BoolFlag{Name: "fetch-all", Usage: "discover the channel's full history"},
			&cli.IntFlag{Name: "fetch-latest", Usage: "discover items published in the last `DAYS`"},
			&cli.IntFlag{Name: "refresh-stale", Usage: "re-fetch records older than `DAYS` (0 = configured window)"},
			&cli.StringFlag{Name: "refresh-ids", Usage: "comma-separated ids to force-refresh"},
			&cli.BoolFlag{Name: "reslug", Usage: "rebuild id-looking slugs from titles"},
			&cli.BoolFlag{Name: "reslug-all", Usage: "rebuild every slug from its title, overwriting curated ones"},
			&cli.BoolFlag{Name: "update-videos", Usage: "regenerate item pages and prune orphans"},
			&cli.BoolFlag{Name: "update-index", Usage: "regenerate the index page and sitemap"},
			&cli.BoolFlag{Name: "dry-run", Usage: "stage artifacts under the preview directory, leave the live tree untouched"},
			&cli.BoolFlag{Name: "force-rebuild", Usage: "rewrite artifacts even when content is unchanged"},
			&cli.StringFlag{Name: "commit-msg", Usage: "commit message for the publish commit"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress progress output"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := quota.Open(cfg.QuotaPath(), cfg.Quota.DailyCap, cfg.Quota.Timezone, logger)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.StoreDir())
	if err != nil {
		return err
	}
	defer store.Close()

	observe := progressPrinter(c.Bool("quiet"))

	syncRequested := c.Bool("fetch-all") || c.IsSet("fetch-latest") ||
		c.IsSet("refresh-stale") || c.IsSet("refresh-ids") ||
		c.Bool("reslug") || c.Bool("reslug-all")
	publishRequested := c.Bool("update-videos") || c.Bool("update-index")

	if !syncRequested && !publishRequested {
		return printStatus(cfg, store, ledger)
	}

	var failures []string

	if syncRequested {
		errs, err := runSync(ctx, c, cfg, store, ledger, logger, observe)
		failures = append(failures, errs...)
		if err != nil {
			reportFailures(failures)
			return err
		}
	}

	if publishRequested {
		errs, err := runPublish(ctx, c, cfg, store, logger, observe)
		failures = append(failures, errs...)
		if err != nil {
			reportFailures(failures)
			return err
		}
	}

	reportFailures(failures)
	fmt.Printf("done, quota remaining: %d units\n", ledger.Remaining())
	return nil
}

func runSync(ctx context.Context, c *cli.Context, cfg *config.Config, store *storage.RecordStore, ledger *quota.Ledger, logger *slog.Logger, observe func(float64, string)) ([]string, error) {
	var failures []string

	if c.Bool("reslug") || c.Bool("reslug-all") {
		sched := scheduler.New(nil, store, ledger, logger)
		changes, err := sched.Reslug(!c.Bool("reslug-all"))
		if err != nil {
			return failures, err
		}
		for _, ch := range changes {
			fmt.Printf("reslug %s: %q -> %q\n", ch.ID, ch.Old, ch.New)
		}
		fmt.Printf("%d slugs rewritten\n", len(changes))
	}

	needsSource := c.Bool("fetch-all") || c.IsSet("fetch-latest") ||
		c.IsSet("refresh-stale") || c.IsSet("refresh-ids")
	if !needsSource {
		return failures, nil
	}

	source, err := youtube.NewClient(ctx, cfg.Channel.APIKey, cfg.Channel.Handle, ledger, logger)
	if err != nil {
		return failures, err
	}
	sched := scheduler.New(source, store, ledger, logger)

	if c.IsSet("refresh-stale") || c.IsSet("refresh-ids") {
		window := cfg.Sync.StalenessDays
		if days := c.Int("refresh-stale"); days > 0 {
			window = days
		}
		result, err := sched.RefreshStale(ctx, window, splitIDs(c.String("refresh-ids")), observe)
		if result != nil {
			fmt.Printf("%d records refreshed\n", result.Updated)
			failures = append(failures, result.Errors...)
		}
		if err != nil {
			return failures, err
		}
	}

	if c.Bool("fetch-all") || c.IsSet("fetch-latest") {
		opts := scheduler.DiscoverOptions{MaxPages: cfg.Sync.MaxPages}
		if !c.Bool("fetch-all") {
			opts.Days = c.Int("fetch-latest")
		}
		result, err := sched.DiscoverNew(ctx, opts, observe)
		if result != nil {
			fmt.Printf("%d new records added (%d pages)\n", result.Added, result.Pages)
			failures = append(failures, result.Errors...)
		}
		if err != nil {
			return failures, err
		}
	}

	return failures, nil
}

func runPublish(ctx context.Context, c *cli.Context, cfg *config.Config, store *storage.RecordStore, logger *slog.Logger, observe func(float64, string)) ([]string, error) {
	renderer, err := render.NewHTMLRenderer(cfg.Site.BaseURL, cfg.Site.Naming, cfg.Publish.TemplateDir)
	if err != nil {
		return nil, err
	}

	pipeline := publish.New(store, renderer, cfg.Site.BaseURL, cfg.Site.Naming,
		cfg.Site.RepoPath, cfg.PreviewDir(), logger)

	git := vcs.NewGit(cfg.Site.RepoPath, logger)
	if git.Available() {
		pipeline.WithRepo(git)
	} else {
		logger.Info("no git repository at site path, deploy disabled", "path", cfg.Site.RepoPath)
	}
	if cfg.Publish.EnableIndexNow && cfg.Site.BaseURL != "" {
		pipeline.WithNotify(
			notify.NewIndexNow(cfg.Site.BaseURL, cfg.Site.RepoPath, logger),
			notify.NewSitemapPing(logger),
		)
	}

	msg := c.String("commit-msg")
	if msg == "" {
		msg = cfg.Publish.DefaultCommitMessage
	}
	result, err := pipeline.Execute(ctx, publish.Options{
		UpdateItems:   c.Bool("update-videos"),
		UpdateIndex:   c.Bool("update-index"),
		DryRun:        c.Bool("dry-run"),
		ForceRebuild:  c.Bool("force-rebuild"),
		CommitMessage: msg,
	}, observe)
	if result != nil {
		for _, line := range result.PublishLog {
			fmt.Println(line)
		}
		if result.DryRun {
			fmt.Printf("dry run: %d files would change\n", len(result.ChangedFiles))
		} else {
			fmt.Printf("%d files changed\n", len(result.ChangedFiles))
		}
	}
	return nil, err
}

func printStatus(cfg *config.Config, store *storage.RecordStore, ledger *quota.Ledger) error {
	records, err := store.Load()
	if err != nil {
		return err
	}
	tombstones, err := store.LoadTombstones()
	if err != nil {
		return err
	}

	git := vcs.NewGit(cfg.Site.RepoPath, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	fmt.Printf("records:         %d (%d tombstoned)\n", len(records), len(tombstones))
	fmt.Printf("quota remaining: %d of %d units\n", ledger.Remaining(), ledger.Cap())
	fmt.Printf("channel:         %s\n", orNone(cfg.Channel.Handle))
	fmt.Printf("site:            %s\n", orNone(cfg.Site.BaseURL))
	fmt.Printf("deploy:          %s\n", capability(git.Available()))
	fmt.Printf("indexnow:        %s\n", capability(cfg.Publish.EnableIndexNow))
	fmt.Println("\nno action flags given, see --help")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// progressPrinter renders a single-line progress indicator on stderr.
func progressPrinter(quiet bool) func(float64, string) {
	if quiet {
		return nil
	}
	return func(frac float64, msg string) {
		fmt.Fprintf(os.Stderr, "\r[%3.0f%%] %-60s", frac*100, msg)
		if frac >= 1 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func reportFailures(failures []string) {
	if len(failures) == 0 {
		return
	}
	fmt.Printf("%d errors:\n", len(failures))
	for _, f := range failures {
		fmt.Println("  -", f)
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func orNone(s string) string {
	if s == "" {
		return "(not configured)"
	}
	return s
}

func capability(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}
