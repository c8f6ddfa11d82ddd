package examprep

import (
	"cmp"
	"slices"
	"strings"

	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

// SortVideos orders videos in place. Relevance keeps the ranked order;
// unknown view counts sort after every known one.
func SortVideos(videos []studyplan.Video, by SortBy) {
	var compare func(a, b studyplan.Video) int
	switch by {
	case SortDuration:
		compare = func(a, b studyplan.Video) int { return cmp.Compare(a.DurationMinutes, b.DurationMinutes) }
	case SortDurationDesc:
		compare = func(a, b studyplan.Video) int { return cmp.Compare(b.DurationMinutes, a.DurationMinutes) }
	case SortViews:
		compare = func(a, b studyplan.Video) int { return cmp.Compare(viewsKey(b), viewsKey(a)) }
	case SortTitle:
		compare = func(a, b studyplan.Video) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	default:
		return
	}
	slices.SortStableFunc(videos, compare)
}

func viewsKey(v studyplan.Video) int64 {
	if !v.Views.Known {
		return -1
	}
	return v.Views.Count
}
