package studyplan

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/rapidrevise/internal/textmatch"
)

// Step resource types.
const (
	StepArticle   = "article"
	StepVideo     = "video"
	StepReference = "reference"
	StepPractice  = "practice"
	StepPlanning  = "planning"
	StepReview    = "review"
)

// Step is one entry of the study sequence. Steps are numbered from 1.
type Step struct {
	Step            int     `json:"step"`
	Activity        string  `json:"activity"`
	DurationMinutes float64 `json:"durationMinutes"`
	ResourceType    string  `json:"resourceType"`
	ResourceURL     string  `json:"resourceUrl,omitempty"`
	Description     string  `json:"description,omitempty"`
	Topic           string  `json:"topic,omitempty"`
}

// Schedule is the time-boxed part of a plan.
type Schedule struct {
	StudyHours            float64    `json:"studyHours"`
	Band                  Band       `json:"band"`
	Allocation            Allocation `json:"allocation"`
	SelectedVideoIDs      []string   `json:"selectedVideoIds"`
	SelectedVideoMinutes  float64    `json:"selectedVideoMinutes"`
	RemainingVideoMinutes float64    `json:"remainingVideoMinutes"`
	Steps                 []Step     `json:"steps"`
}

// Input is everything the assembler needs.
type Input struct {
	Subject    string
	StudyHours float64
	// Topics in importance order, each with its videos in rank order.
	Topics   []Topic
	Articles []Resource
	Practice []Resource
}

type topicVideo struct {
	topic string
	video Video
}

// Assemble allocates the study window and sequences the videos that fit the
// video budget together with reading and practice resources.
func Assemble(in Input) Schedule {
	band, alloc := Allocate(in.StudyHours)

	var ranked []Video
	owner := make(map[string]string)
	for _, t := range in.Topics {
		for _, v := range t.Videos {
			ranked = append(ranked, v)
			owner[v.ID] = t.Name
		}
	}
	selected, used := SelectWithinBudget(ranked, alloc.VideoMinutes)

	videos := make([]topicVideo, len(selected))
	ids := make([]string, len(selected))
	for i, v := range selected {
		videos[i] = topicVideo{topic: owner[v.ID], video: v}
		ids[i] = v.ID
	}

	s := &sequencer{}
	switch band {
	case BandShort:
		s.short(videos, in.Articles, in.Practice)
	case BandMedium:
		s.medium(videos, in.Articles, in.Practice)
	default:
		s.long(in.Subject, in.Topics, videos, in.Articles, in.Practice)
	}

	return Schedule{
		StudyHours:            in.StudyHours,
		Band:                  band,
		Allocation:            alloc,
		SelectedVideoIDs:      ids,
		SelectedVideoMinutes:  used,
		RemainingVideoMinutes: float64(alloc.VideoMinutes) - used,
		Steps:                 s.steps,
	}
}

type sequencer struct {
	steps []Step
}

func (s *sequencer) add(st Step) {
	st.Step = len(s.steps) + 1
	s.steps = append(s.steps, st)
}

func (s *sequencer) watch(tv topicVideo) {
	s.add(Step{
		Activity:        "Watch: " + tv.video.Title,
		DurationMinutes: tv.video.DurationMinutes,
		ResourceType:    StepVideo,
		ResourceURL:     tv.video.URL,
		Topic:           tv.topic,
	})
}

func (s *sequencer) read(prefix string, r Resource, fallback int) {
	s.add(Step{
		Activity:        prefix + r.Title,
		DurationMinutes: float64(minutesOr(r.EstimatedMinutes, fallback)),
		ResourceType:    StepArticle,
		ResourceURL:     r.URL,
		Topic:           r.Topic,
	})
}

func (s *sequencer) practice(r Resource, fallback int) {
	s.add(Step{
		Activity:        "Practice: " + r.Title,
		DurationMinutes: float64(minutesOr(r.EstimatedMinutes, fallback)),
		ResourceType:    StepPractice,
		ResourceURL:     r.URL,
		Topic:           r.Topic,
	})
}

// short front-loads the two highest-ranked videos around one quick-reference
// step.
func (s *sequencer) short(videos []topicVideo, articles, practice []Resource) {
	if len(articles) > 0 {
		s.read("Quick Read: ", articles[0], 10)
	}
	head := min(2, len(videos))
	for _, tv := range videos[:head] {
		s.watch(tv)
	}
	if ref, ok := quickReference(practice); ok {
		s.add(Step{
			Activity:        "Review: " + ref.Title,
			DurationMinutes: float64(minutesOr(ref.EstimatedMinutes, 15)),
			ResourceType:    StepReference,
			ResourceURL:     ref.URL,
		})
	}
	for _, tv := range videos[head:] {
		s.watch(tv)
	}
}

// medium opens with an overview read, then interleaves practice after every
// second video and reading after every third.
func (s *sequencer) medium(videos []topicVideo, articles, practice []Resource) {
	if len(articles) > 0 {
		s.read("Read: ", articles[0], 15)
	}
	practiceIdx, articleIdx := 0, 1
	for i, tv := range videos {
		s.watch(tv)
		watched := i + 1
		if watched%2 == 0 && practiceIdx < len(practice) {
			s.practice(practice[practiceIdx], 15)
			practiceIdx++
		}
		if watched%3 == 0 && articleIdx < len(articles) {
			s.read("Read: ", articles[articleIdx], 15)
			articleIdx++
		}
	}
}

// long builds one module per topic, then the leftover videos and a final
// review.
func (s *sequencer) long(subject string, topics []Topic, videos []topicVideo, articles, practice []Resource) {
	s.add(Step{
		Activity:        "Introduction to " + subject,
		DurationMinutes: 15,
		ResourceType:    StepPlanning,
		Description:     fmt.Sprintf("Review your study goals and familiarize yourself with the key topics in %s", subject),
	})
	if len(articles) > 0 {
		s.read("Read: ", articles[0], 20)
	}

	used := make(map[string]bool)
	for i, t := range topics {
		s.add(Step{
			Activity:        fmt.Sprintf("Module %d: %s", i+1, t.Name),
			DurationMinutes: 5,
			ResourceType:    StepPlanning,
			Description:     "Overview of key concepts in " + t.Name,
			Topic:           t.Name,
		})

		taken := 0
		for _, tv := range videos {
			if taken == 2 {
				break
			}
			if used[tv.video.ID] || !belongsTo(tv, t.Name) {
				continue
			}
			s.watch(tv)
			used[tv.video.ID] = true
			taken++
		}

		if r, ok := matching(articles, t.Name); ok {
			s.read("Read: ", r, 15)
		}
		if r, ok := matching(practice, t.Name); ok {
			s.practice(r, 20)
		}
	}

	for _, tv := range videos {
		if !used[tv.video.ID] {
			s.watch(tv)
		}
	}

	s.add(Step{
		Activity:        "Final Review",
		DurationMinutes: 30,
		ResourceType:    StepReview,
		Description:     "Summarize key concepts learned in " + subject,
	})
}

// belongsTo matches a video to a topic by origin, or by the topic name
// appearing in its title or description.
func belongsTo(tv topicVideo, topic string) bool {
	if tv.topic == topic {
		return true
	}
	return mentions(tv.video.Title+" "+tv.video.Description, topic)
}

func matching(resources []Resource, topic string) (Resource, bool) {
	for _, r := range resources {
		if r.Topic == topic || mentions(r.Title+" "+r.Description, topic) {
			return r, true
		}
	}
	return Resource{}, false
}

func quickReference(resources []Resource) (Resource, bool) {
	for _, r := range resources {
		if r.Kind == KindCheatsheet || r.Kind == KindSummary {
			return r, true
		}
	}
	if len(resources) > 0 {
		return resources[0], true
	}
	return Resource{}, false
}

func mentions(text, phrase string) bool {
	phrase = textmatch.Fold(strings.TrimSpace(phrase))
	return phrase != "" && strings.Contains(textmatch.Fold(text), phrase)
}

func minutesOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
