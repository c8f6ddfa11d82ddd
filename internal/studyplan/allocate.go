package studyplan

import (
	"encoding/json"
	"math"
)

// Band is the study-window size class that drives allocation and sequencing.
type Band int

const (
	BandShort  Band = iota // up to 3 hours
	BandMedium             // up to 8 hours
	BandLong
)

func (b Band) String() string {
	switch b {
	case BandShort:
		return "short"
	case BandMedium:
		return "medium"
	case BandLong:
		return "long"
	default:
		return "unknown"
	}
}

func (b Band) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Band) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "medium":
		*b = BandMedium
	case "long":
		*b = BandLong
	default:
		*b = BandShort
	}
	return nil
}

// BandFor classifies a study window.
func BandFor(hours float64) Band {
	switch {
	case hours <= 3:
		return BandShort
	case hours <= 8:
		return BandMedium
	default:
		return BandLong
	}
}

// Allocation splits the study window into minutes per activity.
type Allocation struct {
	VideoMinutes    int `json:"videoMinutes"`
	PracticeMinutes int `json:"practiceMinutes"`
	ReadingMinutes  int `json:"readingMinutes"`
}

// Percentages per band: video, practice, reading.
var bandShares = map[Band][3]int{
	BandShort:  {60, 30, 10},
	BandMedium: {50, 25, 25},
	BandLong:   {40, 30, 30},
}

// Allocate splits hours into per-activity minutes. Shares are applied in
// integer percent so 2 hours gives exactly {72, 36, 12}.
func Allocate(hours float64) (Band, Allocation) {
	if hours < 0 {
		hours = 0
	}
	band := BandFor(hours)
	total := int(math.Round(hours * 60))
	shares := bandShares[band]
	return band, Allocation{
		VideoMinutes:    total * shares[0] / 100,
		PracticeMinutes: total * shares[1] / 100,
		ReadingMinutes:  total * shares[2] / 100,
	}
}

// SelectWithinBudget takes videos in order while the running total stays
// within budget minutes. It stops at the first video that does not fit;
// later, shorter videos are not considered.
func SelectWithinBudget(videos []Video, budget int) ([]Video, float64) {
	var selected []Video
	total := 0.0
	for _, v := range videos {
		if total+v.DurationMinutes > float64(budget) {
			break
		}
		selected = append(selected, v)
		total += v.DurationMinutes
	}
	return selected, total
}
