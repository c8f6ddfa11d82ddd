package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Router picks a provider chain per stage and falls back along it.
type Router struct {
	providers map[string]Provider
	fallback  []string           // ordered fallback chain
	stages    map[Stage][]string // per-stage chains, tried before fallback
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		stages:    make(map[Stage][]string),
	}
}

// Register adds a provider to the router and appends it to the default chain.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// RouteStage makes stage try the named providers first, in order. Names that
// are not registered are skipped at call time.
func (r *Router) RouteStage(stage Stage, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage] = append([]string(nil), names...)
}

// Complete routes a request to the first provider in its stage chain that
// succeeds.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.chain(req.Stage)
	if len(chain) == 0 {
		return CompletionResponse{}, fmt.Errorf("no AI providers registered")
	}

	var errs []error
	for _, name := range chain {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"stage", req.Stage.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"stage", req.Stage.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", errors.Join(errs...))
}

func (r *Router) chain(stage Stage) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range append(append([]string(nil), r.stages[stage]...), r.fallback...) {
		if seen[name] {
			continue
		}
		if _, ok := r.providers[name]; !ok {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
