package youtube

import (
	"context"
	"sync"
)

// FakeProvider is an in-memory Provider for tests. Search returns the results
// registered for the channel when one is given, else for the query text (or
// Default when none match); Details looks ids up in the Videos map.
type FakeProvider struct {
	mu sync.Mutex

	Results  map[string][]SearchResult
	Channels map[string][]SearchResult
	Default  []SearchResult
	Videos   map[string]Details

	SearchErr  error
	DetailsErr error

	Searches []SearchParams
	Lookups  [][]string
}

// NewFakeProvider returns an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Results:  make(map[string][]SearchResult),
		Channels: make(map[string][]SearchResult),
		Videos:   make(map[string]Details),
	}
}

// Add registers a video under a query and records its details.
func (f *FakeProvider) Add(query string, hit SearchResult, det Details) {
	f.mu.Lock()
	defer f.mu.Unlock()
	det.ID = hit.ID
	f.Results[query] = append(f.Results[query], hit)
	f.Videos[hit.ID] = det
}

func (f *FakeProvider) Search(_ context.Context, params SearchParams) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Searches = append(f.Searches, params)
	if f.SearchErr != nil {
		return nil, &ProviderError{Op: "search", Err: f.SearchErr}
	}
	hits, ok := f.Channels[params.ChannelID]
	if params.ChannelID == "" || !ok {
		if hits, ok = f.Results[params.Query]; !ok {
			hits = f.Default
		}
	}
	if params.MaxResults > 0 && len(hits) > params.MaxResults {
		hits = hits[:params.MaxResults]
	}
	return append([]SearchResult(nil), hits...), nil
}

func (f *FakeProvider) Details(_ context.Context, ids []string) ([]Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lookups = append(f.Lookups, append([]string(nil), ids...))
	if f.DetailsErr != nil {
		return nil, &ProviderError{Op: "videos", Err: f.DetailsErr}
	}
	out := make([]Details, 0, len(ids))
	for _, id := range ids {
		if d, ok := f.Videos[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// AddToChannel registers a video returned by channel-scoped searches.
func (f *FakeProvider) AddToChannel(channelID string, hit SearchResult, det Details) {
	f.mu.Lock()
	defer f.mu.Unlock()
	det.ID = hit.ID
	hit.ChannelID = channelID
	f.Channels[channelID] = append(f.Channels[channelID], hit)
	f.Videos[hit.ID] = det
}

// SearchCount returns how many searches were issued.
func (f *FakeProvider) SearchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Searches)
}
