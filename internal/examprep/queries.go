package examprep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/rapidrevise/internal/ai"
	"github.com/p-n-ai/rapidrevise/internal/llmjson"
	"github.com/p-n-ai/rapidrevise/internal/prompts"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
	"github.com/p-n-ai/rapidrevise/internal/videoselect"
)

// MaxQueriesPerTopic bounds the facet queries issued for one topic.
const MaxQueriesPerTopic = 3

// FallbackQuery is the query used when no query could be generated at all.
func FallbackQuery(topic string, md studyplan.Metadata) string {
	return strings.Join(strings.Fields(fmt.Sprintf("%s %s %s %s explained", topic, md.Subject, md.Board, md.ClassLevel)), " ")
}

// generateQuery asks for one query per facet and takes at most one new video
// from each. When no facet query comes back it falls back to a single generic
// query, which may yield up to videoselect.DefaultLimit videos.
func (p *Pipeline) generateQuery(ctx context.Context, r GenerateQueryRequest) (GenerateQueryResponse, error) {
	data := promptData(r.Metadata)
	data.Topic = r.Topic
	data.Facets = p.facets()

	queries := p.facetQueries(ctx, data)
	perQuery := 1
	if len(queries) == 0 {
		queries = []string{p.genericQuery(ctx, data, r.Metadata)}
		perQuery = videoselect.DefaultLimit
	}

	seen := r.Seen
	var videos []studyplan.Video
	for _, q := range queries {
		found, next := p.selector.Select(ctx, videoselect.Query{
			Text:               q,
			Subject:            r.Metadata.Subject,
			PriorityTopics:     []string{r.Topic, r.Metadata.Subject},
			MaxDurationMinutes: r.MaxDurationMinutes,
			MinEngagement:      p.minEngagement,
			Limit:              perQuery,
		}, seen)
		videos = append(videos, found...)
		seen = next
	}
	return GenerateQueryResponse{Queries: queries, Videos: videos, Seen: seen}, nil
}

func (p *Pipeline) facets() []string {
	f := p.prompts.Facets()
	if len(f) > MaxQueriesPerTopic {
		f = f[:MaxQueriesPerTopic]
	}
	return f
}

func (p *Pipeline) facetQueries(ctx context.Context, data prompts.Data) []string {
	prompt, err := p.prompts.Render(prompts.GenerateQuery, data)
	if err != nil {
		slog.Warn("rendering query prompt failed", "topic", data.Topic, "error", err)
		return nil
	}
	out, err := p.generate(ctx, ai.StageGenerateQuery, prompt)
	if err != nil {
		slog.Warn("query generation failed", "topic", data.Topic, "error", err)
		return nil
	}
	return llmjson.ExtractList(out, len(data.Facets))
}

func (p *Pipeline) genericQuery(ctx context.Context, data prompts.Data, md studyplan.Metadata) string {
	fallback := FallbackQuery(data.Topic, md)

	prompt, err := p.prompts.Render(prompts.GenericQuery, data)
	if err != nil {
		slog.Warn("rendering generic query prompt failed", "topic", data.Topic, "error", err)
		return fallback
	}
	out, err := p.generate(ctx, ai.StageGenerateQuery, prompt)
	if err != nil {
		slog.Warn("generic query generation failed", "topic", data.Topic, "error", err)
		return fallback
	}
	if list := llmjson.ExtractList(out, 1); len(list) > 0 {
		if q := llmjson.CleanLine(list[0]); q != "" {
			return q
		}
	}
	if q := llmjson.CleanLine(out); q != "" {
		return q
	}
	return fallback
}
