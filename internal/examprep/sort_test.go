package examprep_test

import (
	"strings"
	"testing"

	"github.com/p-n-ai/rapidrevise/internal/examprep"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

func TestSortVideos(t *testing.T) {
	base := []studyplan.Video{
		{ID: "a", Title: "beta", DurationMinutes: 20, Views: studyplan.KnownViews(10)},
		{ID: "b", Title: "Alpha", DurationMinutes: 5},
		{ID: "c", Title: "gamma", DurationMinutes: 12, Views: studyplan.KnownViews(500)},
		{ID: "d", Title: "delta", DurationMinutes: 5, Views: studyplan.KnownViews(0)},
	}
	tests := []struct {
		by   examprep.SortBy
		want string
	}{
		{examprep.SortRelevance, "abcd"},
		{examprep.SortDuration, "bdca"},
		{examprep.SortDurationDesc, "acbd"},
		{examprep.SortViews, "cadb"},
		{examprep.SortTitle, "badc"},
	}
	for _, tt := range tests {
		t.Run(string(tt.by), func(t *testing.T) {
			videos := append([]studyplan.Video(nil), base...)
			examprep.SortVideos(videos, tt.by)
			var ids strings.Builder
			for _, v := range videos {
				ids.WriteString(v.ID)
			}
			if ids.String() != tt.want {
				t.Errorf("order = %s, want %s", ids.String(), tt.want)
			}
		})
	}
}
