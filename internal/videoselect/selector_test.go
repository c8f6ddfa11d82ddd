package videoselect_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/rapidrevise/internal/studyplan"
	"github.com/p-n-ai/rapidrevise/internal/videoselect"
	"github.com/p-n-ai/rapidrevise/internal/youtube"
)

func hit(id, title string) youtube.SearchResult {
	return youtube.SearchResult{ID: id, Title: title, ChannelTitle: "Channel " + id}
}

// stats builds details for a video of the given length with a 2% like rate.
func stats(duration string) youtube.Details {
	return youtube.Details{DurationISO8601: duration, ViewCount: 1000, LikeCount: 20, StatsKnown: true}
}

func ids(videos []studyplan.Video) string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.ID
	}
	return strings.Join(out, ",")
}

func TestSelect_Filters(t *testing.T) {
	p := youtube.NewFakeProvider()
	p.Add("optics", hit("ok", "Optics lecture"), stats("PT12M"))
	p.Add("optics", hit("short", "Intro Shorts #shorts"), stats("PT5M"))
	p.Add("optics", hit("reel", "Optics in 60s | Reels"), stats("PT4M"))
	p.Add("optics", hit("tiny", "Optics teaser"), stats("PT2M59S"))
	p.Add("optics", hit("long", "Optics marathon"), stats("PT3H1M"))
	p.Add("optics", hit("bad", "Optics explained"), stats("garbage"))
	p.Add("optics", hit("dull", "Optics recap"), youtube.Details{DurationISO8601: "PT10M", ViewCount: 1000, LikeCount: 1, StatsKnown: true})

	sel := videoselect.New(p)
	got, err := sel.Candidates(context.Background(), videoselect.Query{
		Text:               "optics",
		MaxDurationMinutes: 180,
		MinEngagement:      0.5,
		Limit:              10,
	})
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if ids(got) != "ok" {
		t.Errorf("candidates = %s, want ok", ids(got))
	}
}

func TestSelect_RanksByRelevanceThenEngagement(t *testing.T) {
	p := youtube.NewFakeProvider()
	p.Add("q", hit("plain", "Physics lesson"), youtube.Details{DurationISO8601: "PT10M", ViewCount: 100, LikeCount: 50, StatsKnown: true})
	p.Add("q", hit("weak", "Refraction of light"), youtube.Details{DurationISO8601: "PT10M", ViewCount: 100, LikeCount: 1, StatsKnown: true})
	p.Add("q", hit("strong", "Refraction of light explained"), youtube.Details{DurationISO8601: "PT10M", ViewCount: 100, LikeCount: 9, StatsKnown: true})
	p.Add("q", hit("exact", "Optics: refraction"), youtube.Details{DurationISO8601: "PT10M", ViewCount: 100, LikeCount: 2, StatsKnown: true})

	sel := videoselect.New(p)
	got, seen := sel.Select(context.Background(), videoselect.Query{
		Text:           "q",
		PriorityTopics: []string{"optics", "refraction"},
	}, videoselect.NewSeen())

	if ids(got) != "exact,strong,weak" {
		t.Errorf("selected = %s, want exact,strong,weak", ids(got))
	}
	if seen.Len() != 3 {
		t.Errorf("seen has %d ids, want 3", seen.Len())
	}
	if got[1].EngagementScore != 9 {
		t.Errorf("engagement = %v, want 9", got[1].EngagementScore)
	}
	if got[0].URL != "https://www.youtube.com/watch?v=exact" {
		t.Errorf("url = %q", got[0].URL)
	}
	if s := p.Searches[0]; s.MaxResults != 6 || s.Query != "q" {
		t.Errorf("search params = %+v", s)
	}
}

func TestSelect_DedupAcrossQueries(t *testing.T) {
	p := youtube.NewFakeProvider()
	p.Add("waves basics", hit("abc123", "Waves basics"), stats("PT9M"))
	p.Add("waves applications", hit("abc123", "Waves basics"), stats("PT9M"))
	p.Add("waves applications", hit("def456", "Waves in music"), stats("PT7M"))

	sel := videoselect.New(p)
	ctx := context.Background()
	seen := videoselect.NewSeen()

	first, seen := sel.Select(ctx, videoselect.Query{Text: "waves basics", Limit: 1}, seen)
	second, seen := sel.Select(ctx, videoselect.Query{Text: "waves applications", Limit: 1}, seen)

	if ids(first) != "abc123" {
		t.Errorf("first = %s, want abc123", ids(first))
	}
	if ids(second) != "def456" {
		t.Errorf("second = %s, want def456", ids(second))
	}
	if seen.Len() != 2 {
		t.Errorf("seen = %v, want 2 ids", seen.IDs())
	}
}

func TestSelect_ProviderErrorYieldsEmpty(t *testing.T) {
	tests := []struct {
		name string
		prep func(*youtube.FakeProvider)
	}{
		{"search", func(p *youtube.FakeProvider) { p.SearchErr = errors.New("quota") }},
		{"details", func(p *youtube.FakeProvider) { p.DetailsErr = errors.New("quota") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := youtube.NewFakeProvider()
			p.Add("q", hit("a", "Anything"), stats("PT10M"))
			tt.prep(p)

			seen := videoselect.NewSeen("x")
			got, after := videoselect.New(p).Select(context.Background(), videoselect.Query{Text: "q"}, seen)
			if len(got) != 0 {
				t.Errorf("got %d videos, want 0", len(got))
			}
			if after.Len() != 1 || !after.Has("x") {
				t.Errorf("seen changed: %v", after.IDs())
			}
		})
	}
}

func TestSelect_UnknownViews(t *testing.T) {
	p := youtube.NewFakeProvider()
	p.Add("q", hit("a", "Anything"), youtube.Details{DurationISO8601: "PT10M"})

	got, _ := videoselect.New(p).Select(context.Background(), videoselect.Query{Text: "q"}, videoselect.NewSeen())
	if len(got) != 1 {
		t.Fatalf("got %d videos, want 1", len(got))
	}
	if got[0].Views.Known || got[0].EngagementScore != 0 {
		t.Errorf("video = %+v, want unknown views and zero engagement", got[0])
	}
}

func TestSelect_LectureStrategy(t *testing.T) {
	p := youtube.NewFakeProvider()
	p.Add("calc", hit("r1", "Calculus crash course"), stats("PT20M"))
	lec := hit("lec1", "Lec 5: Limits")
	lec.ChannelID = "UC1"
	p.Add("calc", lec, stats("PT40M"))

	old := hit("old", "Lec 1: Functions")
	newer := hit("new", "Lec 6: Derivatives")
	newer.PublishedAt = newer.PublishedAt.AddDate(20, 0, 0)
	p.AddToChannel("UC1", old, stats("PT30M"))
	p.AddToChannel("UC1", lec, stats("PT40M"))
	p.AddToChannel("UC1", newer, stats("PT35M"))

	sel := videoselect.New(p, videoselect.WithStrategy(videoselect.StrategyLecture))
	got, seen := sel.Select(context.Background(), videoselect.Query{Text: "calc"}, videoselect.NewSeen())

	if ids(got) != "lec1,new,old" {
		t.Errorf("selected = %s, want lec1,new,old", ids(got))
	}
	if seen.Len() != 3 {
		t.Errorf("seen = %v", seen.IDs())
	}
	backfill := p.Searches[len(p.Searches)-1]
	if backfill.ChannelID != "UC1" || backfill.Order != "date" {
		t.Errorf("backfill search = %+v", backfill)
	}
}

func TestSelect_LectureStrategyFallsBackToRanked(t *testing.T) {
	p := youtube.NewFakeProvider()
	p.Add("calc", hit("r1", "Calculus crash course"), stats("PT20M"))
	p.Add("calc", hit("r2", "Limits explained"), stats("PT20M"))

	sel := videoselect.New(p, videoselect.WithStrategy(videoselect.StrategyLecture))
	got, _ := sel.Select(context.Background(), videoselect.Query{Text: "calc", Limit: 1}, videoselect.NewSeen())

	if ids(got) != "r1" {
		t.Errorf("selected = %s, want r1", ids(got))
	}
	if p.SearchCount() != 1 {
		t.Errorf("searches = %d, want 1", p.SearchCount())
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    videoselect.Strategy
		wantErr bool
	}{
		{"", videoselect.StrategyRanked, false},
		{"ranked", videoselect.StrategyRanked, false},
		{"Lecture", videoselect.StrategyLecture, false},
		{"random", videoselect.StrategyRanked, true},
	}
	for _, tt := range tests {
		got, err := videoselect.ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestEngagementAndShortForm(t *testing.T) {
	if got := videoselect.Engagement(1, 1000); got != 0.1 {
		t.Errorf("Engagement(1, 1000) = %v, want 0.1", got)
	}
	if got := videoselect.Engagement(5, 0); got != 0 {
		t.Errorf("Engagement(5, 0) = %v, want 0", got)
	}
	if !videoselect.IsShortForm("Intro Shorts #shorts") {
		t.Error("IsShortForm should match #shorts")
	}
	if videoselect.IsShortForm("Short circuit analysis") {
		t.Error("IsShortForm should not match 'Short circuit'")
	}
}
