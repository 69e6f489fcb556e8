package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"vidsite/internal/retry"
	"vidsite/storage"
)

// Ledger is the quota accounting surface the client charges against.
type Ledger interface {
	Charge(method string, mult int) int
	ForceExhausted()
}

// Client implements Source using YouTube Data API v3. Channel details are
// resolved once per client and memoized; the listing and detail calls reuse
// the cached channel id.
type Client struct {
	svc    *yt.Service
	handle string
	ledger Ledger
	log    *slog.Logger
	rc     retry.Config

	mu      sync.Mutex
	channel *ChannelDetails
}

// NewClient builds an API-backed source for the given channel handle.
// A missing API key is a configuration failure for fetch operations only.
func NewClient(ctx context.Context, apiKey, handle string, ledger Ledger, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key not set", ErrConfiguration)
	}
	if handle == "" {
		return nil, fmt.Errorf("%w: channel handle not set", ErrConfiguration)
	}

	svc, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Client{
		svc:    svc,
		handle: strings.TrimPrefix(handle, "@"),
		ledger: ledger,
		log:    logger,
		rc:     retry.DefaultConfig(),
	}, nil
}

// ChannelDetails resolves the configured handle, charging channels.list once
// per client lifetime.
func (c *Client) ChannelDetails(ctx context.Context) (*ChannelDetails, error) {
	c.mu.Lock()
	if c.channel != nil {
		defer c.mu.Unlock()
		return c.channel, nil
	}
	c.mu.Unlock()

	var resp *yt.ChannelListResponse
	err := retry.Do(ctx, c.rc, retryable, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.svc.Channels.List([]string{"snippet", "statistics"}).
			ForHandle(c.handle).
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		return nil, c.classify("channels.list", err)
	}
	c.ledger.Charge("channels.list", 1)

	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: @%s", ErrChannelNotFound, c.handle)
	}

	item := resp.Items[0]
	details := &ChannelDetails{ID: item.Id}
	if item.Snippet != nil {
		details.Title = item.Snippet.Title
	}
	if item.Statistics != nil {
		details.Subscribers = int64(item.Statistics.SubscriberCount)
	}

	c.mu.Lock()
	c.channel = details
	c.mu.Unlock()
	return details, nil
}

// FetchItem performs a conditional detail fetch. The 304 path still charges
// videos.list: the provider bills conditional requests like any other.
func (c *Client) FetchItem(ctx context.Context, id, validator string) (*storage.MetadataRecord, string, error) {
	var resp *yt.VideoListResponse
	err := retry.Do(ctx, c.rc, retryable, func(ctx context.Context) error {
		call := c.svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
			Id(id).
			Context(ctx)
		if validator != "" {
			call = call.IfNoneMatch(validator)
		}
		var callErr error
		resp, callErr = call.Do()
		return callErr
	})
	if err != nil {
		if googleapi.IsNotModified(err) {
			c.ledger.Charge("videos.list", 1)
			return nil, validator, ErrUnchanged
		}
		return nil, "", c.classify("videos.list", err)
	}
	c.ledger.Charge("videos.list", 1)

	if len(resp.Items) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	channel, err := c.ChannelDetails(ctx)
	if err != nil {
		return nil, "", err
	}

	record := recordFromVideo(resp.Items[0], channel)
	record.Validator = resp.Etag
	return &record, resp.Etag, nil
}

// ListItems lists channel items newest-first via search.list.
func (c *Client) ListItems(ctx context.Context, pageToken string, publishedAfter time.Time) (*ListPage, error) {
	channel, err := c.ChannelDetails(ctx)
	if err != nil {
		return nil, err
	}

	var resp *yt.SearchListResponse
	err = retry.Do(ctx, c.rc, retryable, func(ctx context.Context) error {
		call := c.svc.Search.List([]string{"id"}).
			ChannelId(channel.ID).
			Order("date").
			Type("video").
			MaxResults(50).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if !publishedAfter.IsZero() {
			call = call.PublishedAfter(publishedAfter.UTC().Format(time.RFC3339))
		}
		var callErr error
		resp, callErr = call.Do()
		return callErr
	})
	if err != nil {
		return nil, c.classify("search.list", err)
	}
	c.ledger.Charge("search.list", 1)

	page := &ListPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.Kind != "youtube#video" {
			continue
		}
		page.IDs = append(page.IDs, item.Id.VideoId)
	}
	return page, nil
}

// classify maps an API failure onto the error taxonomy. Rate limits trip the
// ledger so subsequent scheduling decisions short-circuit offline.
func (c *Client) classify(method string, err error) error {
	if IsRateLimited(err) {
		c.ledger.ForceExhausted()
		c.log.Warn("rate limited by provider", "method", method, "error", err)
		return fmt.Errorf("%s: %w: %v", method, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w", method, err)
}

// recordFromVideo maps an API video resource onto the cache record shape.
func recordFromVideo(v *yt.Video, channel *ChannelDetails) storage.MetadataRecord {
	record := storage.MetadataRecord{ID: v.Id}

	if sn := v.Snippet; sn != nil {
		record.Title = sn.Title
		record.Description = sn.Description
		record.Tags = sn.Tags
		record.Category = CategoryName(sn.CategoryId)
		record.PublishedAt = dateOnly(sn.PublishedAt)
		record.LastEditedAt = dateOnly(sn.PublishedAt)
		record.Channel.ID = sn.ChannelId
	}
	if st := v.Statistics; st != nil {
		record.ViewCount = int64(st.ViewCount)
		record.LikeCount = int64(st.LikeCount)
		record.CommentCount = int64(st.CommentCount)
	}
	if cd := v.ContentDetails; cd != nil {
		record.DurationSeconds = ParseISODuration(cd.Duration)
	}
	if channel != nil {
		record.Channel.Title = channel.Title
		record.Channel.Subscribers = channel.Subscribers
		record.Channel.AsOf = time.Now().UTC().Format("2006-01-02")
	}
	return record
}

// dateOnly trims an RFC3339 timestamp to its date part.
func dateOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
