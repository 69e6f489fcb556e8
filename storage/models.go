package storage

import "time"

// ChannelInfo carries the parent-channel snapshot embedded in each record.
// AsOf records the date the subscriber count was observed.
type ChannelInfo struct {
	ID          string `json:"channel_id,omitempty"`
	Title       string `json:"channel_title,omitempty"`
	Subscribers int64  `json:"subscribers,omitempty"`
	AsOf        string `json:"subscribers_as_of,omitempty"`
}

// MetadataRecord is one cached item from the video platform.
//
// ID is the stable external identifier and the unique key within the store.
// Slug is a URL-safe derived name; it may be curated by hand and is NOT
// required to be unique. Two records sharing a slug overwrite each other's
// artifact, last write wins.
//
// FetchedAt is nil until the first successful detail fetch. Validator is the
// opaque cache-validation token (ETag) from the last fetch, empty when the
// source returned none.
type MetadataRecord struct {
	ID              string      `json:"video_id"`
	Title           string      `json:"title"`
	Description     string      `json:"desc,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
	Slug            string      `json:"slug,omitempty"`
	Category        string      `json:"category,omitempty"`
	PublishedAt     string      `json:"creation_date,omitempty"`    // YYYY-MM-DD
	LastEditedAt    string      `json:"last_edited_date,omitempty"` // YYYY-MM-DD
	ViewCount       int64       `json:"view_count"`
	LikeCount       int64       `json:"like_count"`
	CommentCount    int64       `json:"comment_count"`
	DurationSeconds int64       `json:"duration_seconds"`
	Channel         ChannelInfo `json:"channel"`
	Validator       string      `json:"etag,omitempty"`
	FetchedAt       *time.Time  `json:"fetched_at,omitempty"`
}

// Touch marks the record as freshly fetched.
func (r *MetadataRecord) Touch(now time.Time) {
	t := now.UTC()
	r.FetchedAt = &t
}

// Stale reports whether the record needs a re-fetch relative to cutoff.
// A record that has never been fetched is always stale.
func (r *MetadataRecord) Stale(cutoff time.Time) bool {
	return r.FetchedAt == nil || r.FetchedAt.Before(cutoff)
}
