package examprep

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/p-n-ai/rapidrevise/internal/ai"
	"github.com/p-n-ai/rapidrevise/internal/llmjson"
	"github.com/p-n-ai/rapidrevise/internal/prompts"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

// RawQAQuestion is the question of the single QA entry used when the
// structured response cannot be decoded.
const RawQAQuestion = "Study plan"

const qaItemSchema = `{
  "type": "object",
  "required": ["question", "recommendation"],
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "recommendation": {"type": "string"}
  }
}`

var qaSchema = mustSchema(qaItemSchema)

// ParseQA decodes question and recommendation pairs. When nothing usable can
// be decoded the whole text becomes one recommendation.
func ParseQA(raw string) []studyplan.QA {
	items, err := llmjson.DecodeArray(raw)
	if err != nil {
		slog.Warn("structured response is not a JSON array", "error", err)
		return rawQA(raw)
	}
	var out []studyplan.QA
	for _, it := range items {
		if !validItem(qaSchema, it, "qa") {
			continue
		}
		var qa studyplan.QA
		if err := json.Unmarshal(it, &qa); err != nil {
			continue
		}
		qa.Question = strings.TrimSpace(qa.Question)
		qa.Recommendation = strings.TrimSpace(qa.Recommendation)
		out = append(out, qa)
	}
	if len(out) == 0 {
		return rawQA(raw)
	}
	return out
}

func rawQA(raw string) []studyplan.QA {
	return []studyplan.QA{{Question: RawQAQuestion, Recommendation: strings.TrimSpace(raw)}}
}

type videoBrief struct {
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	DurationMinutes float64 `json:"duration_minutes"`
	URL             string  `json:"url"`
}

type topicBrief struct {
	Name            string       `json:"topic_name"`
	Importance      int          `json:"importance"`
	PrepTimeMinutes float64      `json:"prep_time_minutes"`
	Videos          []videoBrief `json:"videos"`
}

func topicsJSON(topics []studyplan.Topic) (string, error) {
	briefs := make([]topicBrief, len(topics))
	for i, t := range topics {
		b := topicBrief{Name: t.Name, Importance: t.Importance, PrepTimeMinutes: t.PrepTimeMinutes, Videos: []videoBrief{}}
		for _, v := range t.Videos {
			b.Videos = append(b.Videos, videoBrief{Title: v.Title, Channel: v.Channel, DurationMinutes: v.DurationMinutes, URL: v.URL})
		}
		briefs[i] = b
	}
	data, err := json.MarshalIndent(briefs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *Pipeline) structureResponse(ctx context.Context, r StructureRequest) (StructureResponse, error) {
	brief, err := topicsJSON(r.Topics)
	if err != nil {
		return StructureResponse{}, err
	}
	data := promptData(r.Metadata)
	data.TopicsJSON = brief

	prompt, err := p.prompts.Render(prompts.StructureResponse, data)
	if err != nil {
		return StructureResponse{}, err
	}
	out, err := p.generate(ctx, ai.StageStructureResponse, prompt)
	if err != nil {
		return StructureResponse{}, err
	}
	return StructureResponse{QA: ParseQA(out)}, nil
}
