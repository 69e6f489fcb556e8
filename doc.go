// Package vidsite synchronizes a YouTube channel's metadata into a local
// store and publishes a static site generated from it.
//
// Overview
//
// vidsite is built from small sub-packages wired together by the cli binary:
//
//   - scheduler: decides which cached records to refresh and discovers new ones
//   - youtube: the metadata source with conditional fetches and quota accounting
//   - quota: the daily quota ledger with timezone-anchored rollover
//   - storage: JSON document stores with atomic writes and file locking
//   - render: HTML page and sitemap generation from cached records
//   - publish: the render-diff-publish pipeline with orphan pruning
//   - vcs: git deployment of the generated tree
//   - notify: IndexNow submissions and sitemap pings
//   - config: YAML configuration with environment overrides
//
// Quick Start
//
// Refresh stale records and republish the site:
//
//	cfg, err := config.Load("vidsite.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	ledger, _ := quota.Open(cfg.QuotaPath(), cfg.Quota.DailyCap, cfg.Quota.Timezone, logger)
//	store, _ := storage.Open(cfg.StoreDir())
//	source, _ := youtube.NewClient(ctx, cfg.Channel.APIKey, cfg.Channel.Handle, ledger, logger)
//	sched := scheduler.New(source, store, ledger, logger)
//	result, err := sched.RefreshStale(ctx, cfg.Sync.StalenessDays, nil, nil)
//
// Configuration
//
// Settings load from a YAML file with ${VAR} expansion, then VIDSITE_*
// environment variables override individual fields:
//
//   - VIDSITE_API_KEY: YouTube Data API key
//   - VIDSITE_CHANNEL_HANDLE: channel handle, e.g. @example
//   - VIDSITE_SITE_URL: base URL of the published site
//   - VIDSITE_REPO_PATH: git working tree of the published site
//   - VIDSITE_DATA_DIR: directory for the record store and quota ledger
//   - VIDSITE_DAILY_CAP: daily quota cap in units
//   - VIDSITE_LOG_LEVEL: debug, info, warn, or error
//
// Error Handling
//
// All operations return errors supporting the standard patterns:
//
//	if errors.Is(err, vidsite.ErrRateLimited) {
//		fmt.Println("daily quota exhausted, try again after rollover")
//	}
//
//	var storeErr *vidsite.StoreError
//	if errors.As(err, &storeErr) {
//		fmt.Printf("store %s on %s failed: %v\n", storeErr.Op, storeErr.Doc, storeErr.Err)
//	}
package vidsite
