package youtube

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	defaultMaxResults = 5
	maxSearchResults  = 50
	defaultCacheTTL   = 6 * time.Hour
)

// Cache stores raw API responses between calls. Implementations must be safe
// for concurrent use.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool)
	SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration)
}

// DataAPI implements Provider on top of the YouTube Data API v3.
type DataAPI struct {
	services     []*yt.Service // primary key first, then fallback keys
	fallbackKeys []string
	endpoint     string
	limiter      *rate.Limiter
	cache        Cache
	cacheTTL     time.Duration
}

// DataAPIOption configures a DataAPI.
type DataAPIOption func(*DataAPI)

// WithFallbackKey adds a secondary API key used when the primary one is out
// of quota or rejected.
func WithFallbackKey(key string) DataAPIOption {
	return func(d *DataAPI) {
		if key != "" {
			d.fallbackKeys = append(d.fallbackKeys, key)
		}
	}
}

// WithRateLimit caps outgoing API calls per second.
func WithRateLimit(perSecond float64, burst int) DataAPIOption {
	return func(d *DataAPI) {
		if perSecond <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCache enables response caching.
func WithCache(c Cache, ttl time.Duration) DataAPIOption {
	return func(d *DataAPI) {
		d.cache = c
		if ttl > 0 {
			d.cacheTTL = ttl
		}
	}
}

// WithEndpoint overrides the API base URL (for testing).
func WithEndpoint(url string) DataAPIOption {
	return func(d *DataAPI) {
		d.endpoint = url
	}
}

// NewDataAPI creates a Data API provider for the given key.
func NewDataAPI(apiKey string, opts ...DataAPIOption) (*DataAPI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube API key is required (RAPID_YOUTUBE_API_KEY)")
	}
	d := &DataAPI{cacheTTL: defaultCacheTTL}
	for _, opt := range opts {
		opt(d)
	}

	for _, key := range append([]string{apiKey}, d.fallbackKeys...) {
		svc, err := newService(key, d.endpoint)
		if err != nil {
			return nil, err
		}
		d.services = append(d.services, svc)
	}
	return d, nil
}

func newService(apiKey, endpoint string) (*yt.Service, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := yt.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating youtube service: %w", err)
	}
	return svc, nil
}

// Search runs a video search.
func (d *DataAPI) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}
	lang := params.Language
	if lang == "" {
		lang = "en"
	}

	key := cacheKey("search", params.Query, params.ChannelID, params.Order, lang, fmt.Sprint(maxResults))
	var out []SearchResult
	if d.cacheGet(ctx, key, &out) {
		return out, nil
	}

	resp, err := withFallback(ctx, d, func(svc *yt.Service) (*yt.SearchListResponse, error) {
		call := svc.Search.List([]string{"id", "snippet"}).
			Q(params.Query).
			Type("video").
			MaxResults(int64(maxResults)).
			RelevanceLanguage(lang).
			VideoEmbeddable("true")
		if params.ChannelID != "" {
			call = call.ChannelId(params.ChannelID)
		}
		if params.Order != "" {
			call = call.Order(params.Order)
		}
		return call.Context(ctx).Do()
	})
	if err != nil {
		return nil, &ProviderError{Op: "search", Err: err}
	}

	out = make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		r := SearchResult{
			ID:           item.Id.VideoId,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.ChannelId,
			ChannelTitle: item.Snippet.ChannelTitle,
			Thumbnail:    thumbnailURL(item.Snippet.Thumbnails),
		}
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			r.PublishedAt = t
		}
		out = append(out, r)
	}

	d.cacheSet(ctx, key, out)
	return out, nil
}

// Details fetches duration and engagement statistics for the given ids.
func (d *DataAPI) Details(ctx context.Context, ids []string) ([]Details, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	key := cacheKey("videos", ids...)
	var out []Details
	if d.cacheGet(ctx, key, &out) {
		return out, nil
	}

	resp, err := withFallback(ctx, d, func(svc *yt.Service) (*yt.VideoListResponse, error) {
		return svc.Videos.List([]string{"contentDetails", "statistics"}).
			Id(ids...).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, &ProviderError{Op: "videos", Err: err}
	}

	out = make([]Details, 0, len(resp.Items))
	for _, item := range resp.Items {
		det := Details{ID: item.Id}
		if item.ContentDetails != nil {
			det.DurationISO8601 = item.ContentDetails.Duration
		}
		if item.Statistics != nil {
			det.StatsKnown = true
			det.ViewCount = int64(item.Statistics.ViewCount)
			det.LikeCount = int64(item.Statistics.LikeCount)
		}
		out = append(out, det)
	}

	d.cacheSet(ctx, key, out)
	return out, nil
}

// withFallback runs call against each configured key until one succeeds.
// Only quota and auth failures move on to the next key.
func withFallback[T any](ctx context.Context, d *DataAPI, call func(*yt.Service) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i, svc := range d.services {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}
		resp, err := call(svc)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isKeyError(err) {
			return zero, err
		}
		slog.Debug("youtube API key rejected, trying fallback", "key_index", i, "error", err)
	}
	return zero, lastErr
}

func isKeyError(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusForbidden || gerr.Code == http.StatusTooManyRequests
}

func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func (d *DataAPI) cacheGet(ctx context.Context, key string, v any) bool {
	if d.cache == nil {
		return false
	}
	data, ok := d.cache.GetBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Debug("youtube cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (d *DataAPI) cacheSet(ctx context.Context, key string, v any) {
	if d.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	d.cache.SetBytes(ctx, key, data, d.cacheTTL)
}

// cacheKey builds a deterministic key from the request parts.
func cacheKey(kind string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("yt:%s:%x", kind, sum[:12])
}
