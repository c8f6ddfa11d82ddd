package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/rapidrevise/internal/ai"
	"github.com/p-n-ai/rapidrevise/internal/api"
	"github.com/p-n-ai/rapidrevise/internal/examprep"
	"github.com/p-n-ai/rapidrevise/internal/platform/cache"
	"github.com/p-n-ai/rapidrevise/internal/platform/config"
	"github.com/p-n-ai/rapidrevise/internal/platform/database"
	"github.com/p-n-ai/rapidrevise/internal/prompts"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
	"github.com/p-n-ai/rapidrevise/internal/videoselect"
	"github.com/p-n-ai/rapidrevise/internal/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handler, cleanup, err := build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the JSON or text handler at the configured level.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// build wires every dependency and returns the HTTP handler plus a cleanup
// func that releases connections.
func build(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var (
		checks []api.Check
		store  studyplan.Store = studyplan.NewMemoryStore()
		events examprep.EventSink
	)
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fail(err)
		}
		pgStore, err := studyplan.NewPostgresStore(db.Pool)
		if err != nil {
			return fail(err)
		}
		store = pgStore
		events = examprep.NewPostgresEventSink(db.Pool)
		checks = append(checks, api.Check{Name: "database", Probe: db.HealthCheck})
		slog.Info("database connected")
	} else {
		slog.Warn("RAPID_DATABASE_URL not set, study plans are kept in memory")
	}

	ytOpts := []youtube.DataAPIOption{
		youtube.WithFallbackKey(cfg.YouTube.FallbackAPIKey),
		youtube.WithRateLimit(cfg.YouTube.RequestsPerSecond, cfg.YouTube.Burst),
	}
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { c.Close() })
		ytOpts = append(ytOpts, youtube.WithCache(c, time.Duration(cfg.YouTube.CacheTTLMinutes)*time.Minute))
		checks = append(checks, api.Check{Name: "cache", Probe: c.HealthCheck})
		slog.Info("video cache connected")
	}
	videos, err := youtube.NewDataAPI(cfg.YouTube.APIKey, ytOpts...)
	if err != nil {
		return fail(err)
	}

	strategy, err := videoselect.ParseStrategy(cfg.YouTube.Strategy)
	if err != nil {
		return fail(err)
	}
	selector := videoselect.New(videos, videoselect.WithStrategy(strategy))

	promptSet, err := loadPrompts(cfg.PromptsPath)
	if err != nil {
		return fail(err)
	}

	router, err := newRouter(cfg.AI)
	if err != nil {
		return fail(err)
	}

	pipeline, err := examprep.New(examprep.Config{
		Generator: newGenerator(router, cfg.AI),
		Selector:  selector,
		Prompts:   promptSet,
		Resources: studyplan.NewCollector(studyplan.SearchLinks{}, studyplan.ResourceConfig{
			ArticleLimit: cfg.Workflow.ArticleLimit,
			FreeLimit:    cfg.Workflow.FreeResourceLimit,
			Workers:      cfg.Workflow.ResourceWorkers,
		}),
		Events:             events,
		DefaultStudyHours:  cfg.Workflow.DefaultStudyHours,
		DefaultMaxDuration: cfg.Workflow.DefaultMaxDuration,
		MinEngagement:      cfg.Workflow.MinEngagement,
		TokenBudget:        cfg.AI.TokenBudget,
	})
	if err != nil {
		return fail(err)
	}

	srv, err := api.New(api.Config{
		Runner:       pipeline,
		Store:        store,
		AdminKeyHash: cfg.Auth.AdminKeyHash,
		Checks:       checks,
	})
	if err != nil {
		return fail(err)
	}
	slog.Info("exam prep pipeline ready", "video_strategy", strategy.String())
	return srv.Handler(), cleanup, nil
}

func loadPrompts(path string) (*prompts.Set, error) {
	if path == "" {
		return prompts.Default()
	}
	set, err := prompts.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}
	slog.Info("prompts loaded", "path", path)
	return set, nil
}

// newRouter registers every configured provider and applies per-stage
// provider overrides.
func newRouter(cfg config.AIConfig) (*ai.Router, error) {
	router := ai.NewRouter()

	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, openAIModel(cfg.OpenAI.Model)...))
	}
	if cfg.Groq.APIKey != "" {
		router.Register("groq", ai.NewGroqProvider(cfg.Groq.APIKey, openAIModel(cfg.Groq.Model)...))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, openAIModel(cfg.DeepSeek.Model)...))
	}
	if cfg.Google.APIKey != "" {
		var opts []ai.GoogleOption
		if cfg.Google.Model != "" {
			opts = append(opts, ai.WithGoogleDefaultModel(cfg.Google.Model))
		}
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, opts...))
	}
	if cfg.Anthropic.APIKey != "" {
		var opts []ai.AnthropicOption
		if cfg.Anthropic.Model != "" {
			opts = append(opts, ai.WithAnthropicDefaultModel(cfg.Anthropic.Model))
		}
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		router.Register("anthropic", p)
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, openAIModel(cfg.OpenRouter.Model)...))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, openAIModel(cfg.Ollama.Model)...))
	}
	if !router.HasProvider() {
		return nil, fmt.Errorf("no AI provider configured")
	}

	for name, sc := range cfg.Stages {
		stage, ok := ai.ParseStage(name)
		if !ok || sc.Provider == "" {
			continue
		}
		router.RouteStage(stage, sc.Provider)
		slog.Info("stage routed", "stage", name, "provider", sc.Provider)
	}
	return router, nil
}

func openAIModel(model string) []ai.OpenAIOption {
	if model == "" {
		return nil
	}
	return []ai.OpenAIOption{ai.WithDefaultModel(model)}
}

// newGenerator applies the model defaults, per-stage overrides and retry
// policy on top of the router.
func newGenerator(router *ai.Router, cfg config.AIConfig) *ai.Client {
	opts := []ai.ClientOption{
		ai.WithDefaults(ai.StageConfig{Model: cfg.Model, Temperature: ai.Float64(cfg.Temperature), MaxTokens: cfg.MaxTokens}),
		ai.WithRetry(ai.RetryPolicy{Attempts: cfg.RetryAttempts}),
	}
	for name, sc := range cfg.Stages {
		stage, ok := ai.ParseStage(name)
		if !ok {
			continue
		}
		opts = append(opts, ai.WithStageConfig(stage, ai.StageConfig{
			Model:       sc.Model,
			Temperature: sc.Temperature,
			MaxTokens:   sc.MaxTokens,
		}))
	}
	return ai.NewClient(router, opts...)
}
