package examprep

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/rapidrevise/internal/llmjson"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

// TopicCount is the number of topics in every non-degraded plan.
const TopicCount = 5

// PlaceholderTopicName names the single topic of a degraded plan.
const PlaceholderTopicName = "Topic extraction failed"

const topicItemSchema = `{
  "type": "object",
  "required": ["topic_name"],
  "properties": {
    "topic_name": {"type": "string", "minLength": 1},
    "importance": {"type": "number"},
    "prep_time_minutes": {"type": "number"}
  }
}`

var topicSchema = mustSchema(topicItemSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return s
}

// validItem reports whether raw satisfies schema, logging why not.
func validItem(schema *gojsonschema.Schema, raw json.RawMessage, what string) bool {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		slog.Debug("skipping undecodable item", "item", what, "error", err)
		return false
	}
	if !res.Valid() {
		var reasons []string
		for _, e := range res.Errors() {
			reasons = append(reasons, e.String())
		}
		slog.Debug("skipping invalid item", "item", what, "reasons", strings.Join(reasons, "; "))
		return false
	}
	return true
}

type topicItem struct {
	Name            string  `json:"topic_name"`
	Importance      float64 `json:"importance"`
	PrepTimeMinutes float64 `json:"prep_time_minutes"`
}

// ParseTopics decodes the topic list from model output. Items failing the
// schema are skipped; the rest are normalised and sorted by importance,
// keeping extraction order on ties. It fails with *llmjson.ParseError when no
// valid item remains.
func ParseTopics(raw string) ([]studyplan.Topic, error) {
	items, err := llmjson.DecodeArray(raw)
	if err != nil {
		return nil, err
	}

	var topics []studyplan.Topic
	for _, it := range items {
		if !validItem(topicSchema, it, "topic") {
			continue
		}
		var ti topicItem
		if err := json.Unmarshal(it, &ti); err != nil {
			continue
		}
		name := strings.TrimSpace(ti.Name)
		if name == "" {
			continue
		}
		topics = append(topics, studyplan.Topic{
			Name:            name,
			Importance:      clampImportance(ti.Importance),
			PrepTimeMinutes: math.Max(ti.PrepTimeMinutes, 0),
		})
	}
	if len(topics) == 0 {
		return nil, &llmjson.ParseError{Reason: "no valid topics", Raw: raw}
	}

	slices.SortStableFunc(topics, func(a, b studyplan.Topic) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	return topics, nil
}

func clampImportance(v float64) int {
	n := int(math.Round(v))
	return min(max(n, 1), 10)
}

var fillerTopics = []string{
	"Core concepts in %s",
	"Key definitions and formulas in %s",
	"Past paper practice for %s",
	"Common mistakes in %s",
	"Exam strategy for %s",
}

// FitTopics truncates or pads topics to exactly TopicCount. Padding entries
// are marked Padded and rank below every extracted topic.
func FitTopics(topics []studyplan.Topic, subject string) []studyplan.Topic {
	if len(topics) >= TopicCount {
		return topics[:TopicCount]
	}
	out := slices.Clone(topics)
	taken := make(map[string]bool, len(out))
	for _, t := range out {
		taken[strings.ToLower(t.Name)] = true
	}
	for i := 0; len(out) < TopicCount; i++ {
		name := fmt.Sprintf(fillerTopics[i%len(fillerTopics)], subject)
		if i >= len(fillerTopics) {
			name = fmt.Sprintf("%s (part %d)", name, i/len(fillerTopics)+1)
		}
		if taken[strings.ToLower(name)] {
			continue
		}
		taken[strings.ToLower(name)] = true
		out = append(out, studyplan.Topic{Name: name, Importance: 1, Padded: true})
	}
	return out
}

// PlaceholderTopics is the degraded topic list used when extraction fails.
func PlaceholderTopics(raw string) []studyplan.Topic {
	return []studyplan.Topic{{
		Name:        PlaceholderTopicName,
		Importance:  1,
		Placeholder: true,
		RawAnalysis: raw,
	}}
}
