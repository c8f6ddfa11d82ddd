// Package youtube wraps the video search and detail lookups used to pick
// study videos.
package youtube

import (
	"context"
	"fmt"
	"time"
)

// SearchParams narrows a video search.
type SearchParams struct {
	Query      string
	ChannelID  string
	MaxResults int
	// Order is "relevance" (provider default) or "date".
	Order string
	// Language is passed as relevanceLanguage; empty means "en".
	Language string
}

// SearchResult is one hit from a search call, in provider order.
type SearchResult struct {
	ID           string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	Thumbnail    string
	PublishedAt  time.Time
}

// Details holds the per-video statistics a search hit does not carry.
type Details struct {
	ID              string
	DurationISO8601 string
	ViewCount       int64
	LikeCount       int64
	// StatsKnown is false when the provider returned no statistics block.
	StatsKnown bool
}

// Provider searches videos and fetches their metadata.
type Provider interface {
	Search(ctx context.Context, params SearchParams) ([]SearchResult, error)
	Details(ctx context.Context, ids []string) ([]Details, error)
}

// ProviderError reports a failed search or detail lookup.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("youtube %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
