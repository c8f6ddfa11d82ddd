// Package videoselect turns one search query into a short list of ranked,
// filtered study videos that no other topic in the plan has claimed.
package videoselect

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/p-n-ai/rapidrevise/internal/studyplan"
	"github.com/p-n-ai/rapidrevise/internal/textmatch"
	"github.com/p-n-ai/rapidrevise/internal/youtube"
)

const (
	// DefaultLimit is how many videos one query yields.
	DefaultLimit = 3
	// MinDurationMinutes rejects short-form clips.
	MinDurationMinutes = 3

	minSearchResults  = 5
	maxDescriptionLen = 150
)

var shortFormMarkers = []string{"shorts", "reels"}

// lecturePattern matches titles that start a lecture series ("Lec 4", "L3").
var lecturePattern = regexp.MustCompile(`^(?i)(lec|l\d)`)

// Strategy decides how surviving candidates become the query's result.
type Strategy int

const (
	// StrategyRanked takes the highest-ranked unseen candidates.
	StrategyRanked Strategy = iota
	// StrategyLecture takes one lecture-series video and backfills from the
	// same channel, newest first. Without a lecture match it behaves like
	// StrategyRanked.
	StrategyLecture
)

func (s Strategy) String() string {
	if s == StrategyLecture {
		return "lecture"
	}
	return "ranked"
}

// ParseStrategy parses "ranked" (or empty) and "lecture".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ranked":
		return StrategyRanked, nil
	case "lecture":
		return StrategyLecture, nil
	default:
		return StrategyRanked, fmt.Errorf("unknown video strategy %q", s)
	}
}

// Query is one video search.
type Query struct {
	Text    string
	Subject string
	// PriorityTopics feed the relevance score.
	PriorityTopics []string
	// MaxDurationMinutes rejects longer videos when positive.
	MaxDurationMinutes int
	// MinEngagement is the like/view percentage floor.
	MinEngagement float64
	ChannelID     string
	// Limit defaults to DefaultLimit.
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Selector picks videos for queries.
type Selector struct {
	provider youtube.Provider
	strategy Strategy
	logger   *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithStrategy sets the selection strategy.
func WithStrategy(s Strategy) Option {
	return func(sel *Selector) {
		sel.strategy = s
	}
}

// WithLogger sets the logger used for recovered provider failures.
func WithLogger(l *slog.Logger) Option {
	return func(sel *Selector) {
		if l != nil {
			sel.logger = l
		}
	}
}

// New creates a Selector on top of a video provider.
func New(provider youtube.Provider, opts ...Option) *Selector {
	s := &Selector{provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the configured strategy.
func (s *Selector) Strategy() Strategy {
	return s.strategy
}

// Select returns up to q.Limit videos not present in seen, together with
// seen extended by their ids. Provider failures are logged and produce an
// empty result with seen unchanged.
func (s *Selector) Select(ctx context.Context, q Query, seen Seen) ([]studyplan.Video, Seen) {
	ranked, err := s.Candidates(ctx, q)
	if err != nil {
		s.logger.Warn("video search failed", "query", q.Text, "error", err)
		return nil, seen
	}

	var picked []studyplan.Video
	if s.strategy == StrategyLecture {
		picked = s.lectureSeries(ctx, q, ranked, seen)
	}
	if picked == nil {
		picked = takeUnseen(ranked, seen, q.limit())
	}

	ids := make([]string, len(picked))
	for i, v := range picked {
		ids[i] = v.ID
	}
	return picked, seen.With(ids...)
}

// Candidates searches, filters and ranks videos for q without any
// deduplication.
func (s *Selector) Candidates(ctx context.Context, q Query) ([]studyplan.Video, error) {
	return s.search(ctx, q, youtube.SearchParams{
		Query:      q.Text,
		ChannelID:  q.ChannelID,
		MaxResults: max(q.limit()*2, minSearchResults),
	})
}

func (s *Selector) search(ctx context.Context, q Query, params youtube.SearchParams) ([]studyplan.Video, error) {
	hits, err := s.provider.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	details, err := s.provider.Details(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]youtube.Details, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}

	var out []studyplan.Video
	for _, h := range hits {
		d, ok := byID[h.ID]
		if !ok {
			continue
		}
		if v, ok := evaluate(h, d, q); ok {
			out = append(out, v)
		}
	}

	slices.SortStableFunc(out, func(a, b studyplan.Video) int {
		if c := cmp.Compare(b.RelevanceScore, a.RelevanceScore); c != 0 {
			return c
		}
		return cmp.Compare(b.EngagementScore, a.EngagementScore)
	})
	return out, nil
}

// evaluate applies the duration, short-form and engagement filters and
// scores the video.
func evaluate(h youtube.SearchResult, d youtube.Details, q Query) (studyplan.Video, bool) {
	minutes := youtube.ParseDuration(d.DurationISO8601)
	if minutes < MinDurationMinutes {
		return studyplan.Video{}, false
	}
	if q.MaxDurationMinutes > 0 && minutes > q.MaxDurationMinutes {
		return studyplan.Video{}, false
	}
	if IsShortForm(h.Title) {
		return studyplan.Video{}, false
	}

	engagement := Engagement(d.LikeCount, d.ViewCount)
	if engagement < q.MinEngagement {
		return studyplan.Video{}, false
	}

	v := studyplan.Video{
		ID:              h.ID,
		Title:           h.Title,
		Channel:         h.ChannelTitle,
		ChannelID:       h.ChannelID,
		Description:     truncate(h.Description, maxDescriptionLen),
		URL:             youtube.WatchURL(h.ID),
		Thumbnail:       h.Thumbnail,
		DurationMinutes: float64(minutes),
		EngagementScore: math.Round(engagement*100) / 100,
		RelevanceScore:  textmatch.Score(h.Title+" "+h.Description, q.PriorityTopics),
		PublishedAt:     h.PublishedAt,
	}
	if d.StatsKnown {
		v.Views = studyplan.KnownViews(d.ViewCount)
	}
	return v, true
}

// Engagement is likes per hundred views, or 0 without views.
func Engagement(likes, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(likes) / float64(views) * 100
}

// IsShortForm reports whether a title marks a short-form clip.
func IsShortForm(title string) bool {
	folded := textmatch.Fold(title)
	for _, m := range shortFormMarkers {
		if strings.Contains(folded, m) {
			return true
		}
	}
	return false
}

func takeUnseen(ranked []studyplan.Video, seen Seen, limit int) []studyplan.Video {
	var out []studyplan.Video
	for _, v := range ranked {
		if len(out) == limit {
			break
		}
		if seen.Has(v.ID) || containsID(out, v.ID) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// lectureSeries picks the first unseen lecture-titled candidate and fills
// the rest of the limit with the newest videos from its channel. It returns
// nil when no candidate looks like a lecture.
func (s *Selector) lectureSeries(ctx context.Context, q Query, ranked []studyplan.Video, seen Seen) []studyplan.Video {
	var primary *studyplan.Video
	for i := range ranked {
		if !seen.Has(ranked[i].ID) && lecturePattern.MatchString(ranked[i].Title) {
			primary = &ranked[i]
			break
		}
	}
	if primary == nil {
		return nil
	}

	out := []studyplan.Video{*primary}
	if q.limit() == 1 || primary.ChannelID == "" {
		return out
	}

	backfill, err := s.search(ctx, q, youtube.SearchParams{
		Query:      q.Text,
		ChannelID:  primary.ChannelID,
		MaxResults: max(q.limit()*2, minSearchResults),
		Order:      "date",
	})
	if err != nil {
		s.logger.Warn("channel backfill failed", "query", q.Text, "channel", primary.ChannelID, "error", err)
		return out
	}
	// search ranks by relevance; backfill wants newest first.
	slices.SortStableFunc(backfill, func(a, b studyplan.Video) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	for _, v := range backfill {
		if len(out) == q.limit() {
			break
		}
		if seen.Has(v.ID) || containsID(out, v.ID) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func containsID(videos []studyplan.Video, id string) bool {
	return slices.ContainsFunc(videos, func(v studyplan.Video) bool { return v.ID == id })
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
