// Package youtube implements the metadata source against YouTube Data API v3,
// with conditional fetches, outcome classification, and quota accounting.
package youtube

import (
	"context"
	"time"

	"vidsite/storage"
)

// ChannelDetails describes the parent channel behind the configured handle.
type ChannelDetails struct {
	ID          string
	Title       string
	Subscribers int64
}

// ListPage is one page of a channel listing.
type ListPage struct {
	IDs           []string
	NextPageToken string
}

// Source is the metadata source consumed by the refresh scheduler. Every
// successful call charges the quota ledger for its call type before
// returning, so interrupted callers still leave consistent accounting.
type Source interface {
	// ChannelDetails resolves the configured channel handle.
	ChannelDetails(ctx context.Context) (*ChannelDetails, error)

	// FetchItem fetches item details. When validator matches the provider's
	// current state, it returns (nil, validator, ErrUnchanged). On success it
	// returns the mapped record and the new validator.
	FetchItem(ctx context.Context, id, validator string) (*storage.MetadataRecord, string, error)

	// ListItems lists the channel's items newest-first. A zero publishedAfter
	// means unbounded; an empty pageToken requests the first page.
	ListItems(ctx context.Context, pageToken string, publishedAfter time.Time) (*ListPage, error)
}
