package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrTokenBudgetExceeded is returned when a workflow has spent its token
// allowance.
var ErrTokenBudgetExceeded = errors.New("token budget exceeded")

// GenerateRequest is one text generation for a workflow stage. A nil
// Temperature or zero MaxTokens falls back to the stage configuration.
type GenerateRequest struct {
	Stage       Stage
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerationError reports a generation that produced no usable text.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at stage %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StageConfig holds the model settings for one stage. A nil Temperature
// inherits; 0 is a valid setting.
type StageConfig struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Client implements Generator on top of a Completer (usually a Router).
type Client struct {
	completer Completer
	defaults  StageConfig
	stages    map[Stage]StageConfig
	retry     RetryPolicy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaults sets the model settings used by stages without their own.
func WithDefaults(cfg StageConfig) ClientOption {
	return func(c *Client) {
		c.defaults = cfg
	}
}

// WithStageConfig overrides model settings for one stage. Empty fields
// inherit the defaults.
func WithStageConfig(stage Stage, cfg StageConfig) ClientOption {
	return func(c *Client) {
		c.stages[stage] = cfg
	}
}

// WithRetry sets the retry policy for failed completions.
func WithRetry(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// NewClient creates a generation client. Without options every stage runs at
// temperature 0.7 with 4096 max tokens and a single attempt.
func NewClient(completer Completer, opts ...ClientOption) *Client {
	c := &Client{
		completer: completer,
		defaults:  StageConfig{Temperature: Float64(0.7), MaxTokens: 4096},
		stages:    make(map[Stage]StageConfig),
		retry:     RetryPolicy{Attempts: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate runs one completion and records its token usage on the ledger
// carried by ctx, if any.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	ledger := UsageFromContext(ctx)
	if ledger != nil && ledger.Exhausted() {
		return "", &GenerationError{Stage: req.Stage, Err: ErrTokenBudgetExceeded}
	}

	cfg := c.configFor(req.Stage)
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = req.MaxTokens
	}

	var messages []Message
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	creq := CompletionRequest{
		Messages:    messages,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stage:       req.Stage,
	}

	resp, err := c.retry.Do(ctx, func() (CompletionResponse, error) {
		return c.completer.Complete(ctx, creq)
	})
	if err != nil {
		return "", &GenerationError{Stage: req.Stage, Err: err}
	}
	if ledger != nil {
		if err := ledger.Record(req.Stage, resp.InputTokens, resp.OutputTokens); err != nil {
			slog.Warn("recording token usage failed", "stage", req.Stage.String(), "error", err)
		}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", &GenerationError{Stage: req.Stage, Err: errors.New("empty completion")}
	}
	return resp.Content, nil
}

func (c *Client) configFor(stage Stage) StageConfig {
	cfg := c.defaults
	override, ok := c.stages[stage]
	if !ok {
		return cfg
	}
	if override.Model != "" {
		cfg.Model = override.Model
	}
	if override.Temperature != nil {
		cfg.Temperature = override.Temperature
	}
	if override.MaxTokens > 0 {
		cfg.MaxTokens = override.MaxTokens
	}
	return cfg
}
