// Package studyplan holds the study plan model and turns ranked topics and
// videos into a time-boxed schedule.
package studyplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/p-n-ai/rapidrevise/internal/ai"
)

// Views is a view count that may be unknown. It encodes as a JSON number,
// or as the string "unknown" when the provider returned no statistics.
type Views struct {
	Count int64
	Known bool
}

// KnownViews returns a known view count.
func KnownViews(n int64) Views {
	return Views{Count: n, Known: true}
}

func (v Views) MarshalJSON() ([]byte, error) {
	if !v.Known {
		return []byte(`"unknown"`), nil
	}
	return json.Marshal(v.Count)
}

func (v *Views) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte(`"unknown"`)) || bytes.Equal(data, []byte("null")) {
		*v = Views{}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("views: %w", err)
	}
	*v = KnownViews(n)
	return nil
}

func (v Views) String() string {
	if !v.Known {
		return "unknown"
	}
	return fmt.Sprint(v.Count)
}

// Video is a selected study video.
type Video struct {
	ID              string    `json:"videoId"`
	Title           string    `json:"title"`
	Channel         string    `json:"channel"`
	ChannelID       string    `json:"channelId,omitempty"`
	Description     string    `json:"description,omitempty"`
	URL             string    `json:"url"`
	Thumbnail       string    `json:"thumbnail"`
	DurationMinutes float64   `json:"durationMinutes"`
	Views           Views     `json:"views"`
	EngagementScore float64   `json:"engagementScore"`
	RelevanceScore  float64   `json:"relevanceScore"`
	PublishedAt     time.Time `json:"publishedAt"`
}

// Topic is one exam topic with the videos chosen for it, in rank order.
type Topic struct {
	Name              string  `json:"name"`
	Importance        int     `json:"importance"`
	PrepTimeMinutes   float64 `json:"prepTimeMinutes"`
	Videos            []Video `json:"videos"`
	TotalVideoMinutes float64 `json:"totalVideoMinutes"`
	// Placeholder marks the single stand-in topic used when extraction failed.
	Placeholder bool   `json:"placeholder,omitempty"`
	RawAnalysis string `json:"rawAnalysis,omitempty"`
	// Padded marks filler topics added to reach the fixed topic count.
	Padded bool `json:"padded,omitempty"`
}

// Metadata is the caller's context, passed through untouched.
type Metadata struct {
	Board      string `json:"board"`
	ClassLevel string `json:"classLevel"`
	Department string `json:"department"`
	Subject    string `json:"subject"`
}

// QA is one question/recommendation pair from the structuring stage.
type QA struct {
	Question       string `json:"question"`
	Recommendation string `json:"recommendation"`
}

// StudyPlan is the result of one workflow run.
type StudyPlan struct {
	ID                string                   `json:"id"`
	Topics            []Topic                  `json:"topics"`
	TotalVideoMinutes float64                  `json:"totalVideoMinutes"`
	Metadata          Metadata                 `json:"metadata"`
	StructuredQA      []QA                     `json:"structuredQA"`
	Schedule          Schedule                 `json:"schedule"`
	Resources         []Resource               `json:"resources,omitempty"`
	Usage             map[string]ai.StageUsage `json:"usage,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
}

// VideoIDs lists every video id in the plan, topic by topic.
func (p *StudyPlan) VideoIDs() []string {
	var ids []string
	for _, t := range p.Topics {
		for _, v := range t.Videos {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// Degraded reports whether topic extraction fell back to a placeholder.
func (p *StudyPlan) Degraded() bool {
	return len(p.Topics) == 1 && p.Topics[0].Placeholder
}

// Summary is the listing view of a stored plan.
type Summary struct {
	ID         string    `json:"id"`
	Metadata   Metadata  `json:"metadata"`
	TopicCount int       `json:"topicCount"`
	VideoCount int       `json:"videoCount"`
	StudyHours float64   `json:"studyHours"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Summarize builds the listing view of p.
func (p *StudyPlan) Summarize() Summary {
	return Summary{
		ID:         p.ID,
		Metadata:   p.Metadata,
		TopicCount: len(p.Topics),
		VideoCount: len(p.VideoIDs()),
		StudyHours: p.Schedule.StudyHours,
		CreatedAt:  p.CreatedAt,
	}
}
