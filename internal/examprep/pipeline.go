// Package examprep runs the exam-prep workflow: it describes the relevant
// question papers, extracts the high-value topics, finds videos for each
// topic and assembles a time-boxed study plan.
package examprep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/p-n-ai/rapidrevise/internal/ai"
	"github.com/p-n-ai/rapidrevise/internal/prompts"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
	"github.com/p-n-ai/rapidrevise/internal/videoselect"
)

const defaultStudyHours = 2

// Config holds dependencies for the pipeline.
type Config struct {
	Generator ai.Generator
	Selector  *videoselect.Selector
	Prompts   *prompts.Set // default: embedded prompts
	// Resources collects articles and free resources; nil skips them.
	Resources *studyplan.Collector
	Events    EventSink

	DefaultStudyHours  float64 // default 2
	DefaultMaxDuration int     // minutes, 0 for no ceiling
	MinEngagement      float64 // like/view percentage floor, 0 keeps every video
	// TokenBudget caps tokens per run; 0 is unlimited.
	TokenBudget int64
	Now         func() time.Time
}

// Pipeline runs workflows. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	generator     ai.Generator
	selector      *videoselect.Selector
	prompts       *prompts.Set
	resources     *studyplan.Collector
	events        EventSink
	studyHours    float64
	maxDuration   int
	minEngagement float64
	tokenBudget   int64
	now           func() time.Time
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Selector == nil {
		return nil, fmt.Errorf("video selector is required")
	}
	set := cfg.Prompts
	if set == nil {
		var err error
		if set, err = prompts.Default(); err != nil {
			return nil, err
		}
	}
	events := cfg.Events
	if events == nil {
		events = NopEventSink{}
	}
	hours := cfg.DefaultStudyHours
	if hours <= 0 {
		hours = defaultStudyHours
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		generator:     cfg.Generator,
		selector:      cfg.Selector,
		prompts:       set,
		resources:     cfg.Resources,
		events:        events,
		studyHours:    hours,
		maxDuration:   max(cfg.DefaultMaxDuration, 0),
		minEngagement: max(cfg.MinEngagement, 0),
		tokenBudget:   cfg.TokenBudget,
		now:           now,
	}, nil
}

// Result is either a plan or an error, never both.
type Result struct {
	Plan *studyplan.StudyPlan
	Err  error
}

// MarshalJSON encodes the plan, or {"error": "..."} on failure.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(map[string]string{"error": r.Err.Error()})
	}
	return json.Marshal(r.Plan)
}

// Process runs a single stage request.
func (p *Pipeline) Process(ctx context.Context, req StageRequest) (StageResponse, error) {
	stage := req.Kind().String()
	emit(ctx, EventStageStarted, stage, nil)

	var (
		resp StageResponse
		err  error
	)
	switch r := req.(type) {
	case FetchSourceRequest:
		resp, err = p.fetchSource(ctx, r)
	case AnalyzeRequest:
		resp, err = p.analyze(ctx, r)
	case GenerateQueryRequest:
		resp, err = p.generateQuery(ctx, r)
	case StructureRequest:
		resp, err = p.structureResponse(ctx, r)
	default:
		err = fmt.Errorf("unknown request kind %T", req)
	}

	if err != nil {
		emit(ctx, EventStageFailed, stage, map[string]any{"error": err.Error()})
		return nil, err
	}
	emit(ctx, EventStageCompleted, stage, nil)
	return resp, nil
}

func process[T StageResponse](ctx context.Context, p *Pipeline, req StageRequest) (T, error) {
	var zero T
	resp, err := p.Process(ctx, req)
	if err != nil {
		return zero, err
	}
	out, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T", req.Kind(), resp)
	}
	return out, nil
}

// Run executes the whole workflow. Invalid input yields a *ValidationError;
// a failed fetch, analysis or structuring call yields an *ai.GenerationError.
// Extra sinks receive this run's events in addition to the configured one.
func (p *Pipeline) Run(ctx context.Context, req Request, sinks ...EventSink) Result {
	if err := req.Validate(); err != nil {
		return Result{Err: err}
	}
	sortBy, _ := ParseSortBy(string(req.SortBy))
	if req.StudyHours == 0 {
		req.StudyHours = p.studyHours
	}
	if req.MaxDurationMinutes == 0 {
		req.MaxDurationMinutes = p.maxDuration
	}
	md := req.Metadata()

	r := &run{id: studyplan.NewID(), subject: md.Subject, sinks: append([]EventSink{p.events}, sinks...)}
	ctx = withRun(ctx, r)
	ledger := ai.NewUsageLedger(p.tokenBudget)
	ctx = ai.WithUsage(ctx, ledger)

	started := p.now()
	logger := slog.With("run_id", r.id, "subject", md.Subject)
	logger.Info("exam prep workflow started", "board", md.Board, "class_level", md.ClassLevel, "study_hours", req.StudyHours)
	emit(ctx, EventRunStarted, "", map[string]any{
		"board":       md.Board,
		"class_level": md.ClassLevel,
		"department":  md.Department,
		"study_hours": req.StudyHours,
	})

	fail := func(err error) Result {
		logger.Error("exam prep workflow failed", "error", err)
		emit(ctx, EventRunFailed, "", map[string]any{"error": err.Error()})
		return Result{Err: err}
	}

	fetched, err := process[FetchSourceResponse](ctx, p, FetchSourceRequest{Metadata: md})
	if err != nil {
		return fail(err)
	}
	analyzed, err := process[AnalyzeResponse](ctx, p, AnalyzeRequest{Metadata: md, Source: fetched.Source})
	if err != nil {
		return fail(err)
	}

	topics := analyzed.Topics
	// The schedule budget is filled in ranked order; sort_by only reorders
	// the listing.
	ranked := make([][]studyplan.Video, len(topics))
	seen := videoselect.NewSeen()
	total := 0.0
	for i := range topics {
		t := &topics[i]
		if t.Placeholder {
			continue
		}
		found, err := process[GenerateQueryResponse](ctx, p, GenerateQueryRequest{
			Metadata:           md,
			Topic:              t.Name,
			Seen:               seen,
			MaxDurationMinutes: req.MaxDurationMinutes,
		})
		if err != nil {
			// Video lookup failures are recovered inside the stage; an error
			// here means the request itself was unusable.
			logger.Warn("query generation failed", "topic", t.Name, "error", err)
			continue
		}
		seen = found.Seen
		ranked[i] = found.Videos
		t.Videos = slices.Clone(found.Videos)
		SortVideos(t.Videos, sortBy)
		for _, v := range t.Videos {
			t.TotalVideoMinutes += v.DurationMinutes
		}
		total += t.TotalVideoMinutes
		emit(ctx, EventTopicCompleted, KindGenerateQuery.String(), map[string]any{
			"topic":   t.Name,
			"queries": found.Queries,
			"videos":  len(t.Videos),
		})
	}

	structured, err := process[StructureResponse](ctx, p, StructureRequest{Metadata: md, Topics: topics})
	if err != nil {
		return fail(err)
	}

	var articles, practice []studyplan.Resource
	if p.resources != nil {
		names := topicNames(topics)
		articles = p.resources.Articles(ctx, md.Subject, names)
		practice = p.resources.FreeResources(ctx, md.Subject, names)
	}

	plan := &studyplan.StudyPlan{
		ID:                r.id,
		Topics:            topics,
		TotalVideoMinutes: total,
		Metadata:          md,
		StructuredQA:      structured.QA,
		Schedule: studyplan.Assemble(studyplan.Input{
			Subject:    md.Subject,
			StudyHours: req.StudyHours,
			Topics:     withVideos(topics, ranked),
			Articles:   articles,
			Practice:   practice,
		}),
		Resources: slices.Concat(articles, practice),
		Usage:     ledger.Snapshot(),
		CreatedAt: started.UTC(),
	}

	logger.Info("exam prep workflow completed",
		"topics", len(plan.Topics),
		"videos", seen.Len(),
		"degraded", plan.Degraded(),
		"tokens", ledger.Used(),
		"elapsed", p.now().Sub(started).String(),
	)
	emit(ctx, EventRunCompleted, "", map[string]any{
		"plan_id":  plan.ID,
		"topics":   len(plan.Topics),
		"videos":   seen.Len(),
		"degraded": plan.Degraded(),
	})
	return Result{Plan: plan}
}

// withVideos returns a copy of topics carrying the given per-topic videos.
func withVideos(topics []studyplan.Topic, videos [][]studyplan.Video) []studyplan.Topic {
	out := slices.Clone(topics)
	for i := range out {
		out[i].Videos = videos[i]
	}
	return out
}

func (p *Pipeline) fetchSource(ctx context.Context, r FetchSourceRequest) (FetchSourceResponse, error) {
	prompt, err := p.prompts.Render(prompts.FetchSource, promptData(r.Metadata))
	if err != nil {
		return FetchSourceResponse{}, err
	}
	out, err := p.generate(ctx, ai.StageFetchSource, prompt)
	if err != nil {
		return FetchSourceResponse{}, err
	}
	return FetchSourceResponse{Source: out}, nil
}

// analyze runs the analysis call, which is mandatory, then the topic
// extraction call, whose failures degrade to a placeholder topic.
func (p *Pipeline) analyze(ctx context.Context, r AnalyzeRequest) (AnalyzeResponse, error) {
	data := promptData(r.Metadata)
	data.Source = r.Source
	prompt, err := p.prompts.Render(prompts.Analyze, data)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	analysis, err := p.generate(ctx, ai.StageAnalyze, prompt)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	return AnalyzeResponse{Analysis: analysis, Topics: p.extractTopics(ctx, r.Metadata, analysis)}, nil
}

func (p *Pipeline) extractTopics(ctx context.Context, md studyplan.Metadata, analysis string) []studyplan.Topic {
	data := promptData(md)
	data.Analysis = analysis
	prompt, err := p.prompts.Render(prompts.ExtractTopics, data)
	if err != nil {
		slog.Warn("rendering topic prompt failed", "error", err)
		return PlaceholderTopics(analysis)
	}
	raw, err := p.generate(ctx, ai.StageAnalyze, prompt)
	if err != nil {
		slog.Warn("topic extraction call failed, using placeholder", "error", err)
		return PlaceholderTopics(analysis)
	}
	topics, err := ParseTopics(raw)
	if err != nil {
		slog.Warn("topic extraction unparseable, using placeholder", "error", err)
		return PlaceholderTopics(raw)
	}
	return FitTopics(topics, md.Subject)
}

// generate calls the model with the shared system prompt and makes sure any
// failure is a *ai.GenerationError.
func (p *Pipeline) generate(ctx context.Context, stage ai.Stage, prompt string) (string, error) {
	out, err := p.generator.Generate(ctx, ai.GenerateRequest{
		Stage:  stage,
		System: p.prompts.System(),
		Prompt: prompt,
	})
	if err != nil {
		var gerr *ai.GenerationError
		if !errors.As(err, &gerr) {
			err = &ai.GenerationError{Stage: stage, Err: err}
		}
		return "", err
	}
	return out, nil
}

func promptData(md studyplan.Metadata) prompts.Data {
	return prompts.Data{
		Board:      md.Board,
		ClassLevel: md.ClassLevel,
		Department: md.Department,
		Subject:    md.Subject,
	}
}

func topicNames(topics []studyplan.Topic) []string {
	var names []string
	for _, t := range topics {
		if !t.Placeholder && !t.Padded {
			names = append(names, t.Name)
		}
	}
	return names
}
