// Package ai provides a provider-agnostic generation gateway with
// per-stage routing for the exam-prep workflow.
package ai

import (
	"context"
	"fmt"
)

// Stage identifies which workflow step a generation belongs to. Each stage can
// be routed to its own provider chain and carries its own model settings.
type Stage int

const (
	StageFetchSource Stage = iota
	StageAnalyze
	StageGenerateQuery
	StageStructureResponse
)

// Stages lists every stage in workflow order.
var Stages = []Stage{StageFetchSource, StageAnalyze, StageGenerateQuery, StageStructureResponse}

func (s Stage) String() string {
	switch s {
	case StageFetchSource:
		return "fetch_source"
	case StageAnalyze:
		return "analyze"
	case StageGenerateQuery:
		return "generate_query"
	case StageStructureResponse:
		return "structure_response"
	default:
		return "unknown"
	}
}

// ParseStage maps a stage name back to its Stage.
func ParseStage(name string) (Stage, bool) {
	for _, s := range Stages {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"` // nil uses the provider default
	Stage       Stage     `json:"stage,omitempty"`
}

// Float64 returns a pointer to v, for optional temperatures.
func Float64(v float64) *float64 {
	return &v
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Completer runs a single chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Completer
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

// APIError is a non-2xx answer from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
