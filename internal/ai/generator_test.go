package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/rapidrevise/internal/ai"
)

func TestClient_Generate(t *testing.T) {
	mock := ai.NewMockProvider("analysis text")
	client := ai.NewClient(mock)

	out, err := client.Generate(context.Background(), ai.GenerateRequest{
		Stage:  ai.StageAnalyze,
		System: "You are ExamPrepAI.",
		Prompt: "Extract topics",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "analysis text" {
		t.Errorf("Generate() = %q", out)
	}

	req := mock.LastRequest()
	if req.Stage != ai.StageAnalyze {
		t.Errorf("Stage = %v, want analyze", req.Stage)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "Extract topics" {
		t.Errorf("Messages = %+v", req.Messages)
	}
	if req.Temperature == nil || *req.Temperature != 0.7 || req.MaxTokens != 4096 {
		t.Errorf("Temperature/MaxTokens = %v/%d, want 0.7/4096", req.Temperature, req.MaxTokens)
	}
}

func TestClient_StageConfig(t *testing.T) {
	mock := ai.NewMockProvider("ok")
	client := ai.NewClient(mock,
		ai.WithDefaults(ai.StageConfig{Model: "llama-3.3-70b-versatile", Temperature: ai.Float64(0.7), MaxTokens: 4096}),
		ai.WithStageConfig(ai.StageGenerateQuery, ai.StageConfig{Temperature: ai.Float64(0.3)}),
		ai.WithStageConfig(ai.StageStructureResponse, ai.StageConfig{Temperature: ai.Float64(0)}),
	)
	ctx := context.Background()

	if _, err := client.Generate(ctx, ai.GenerateRequest{Stage: ai.StageGenerateQuery, Prompt: "q"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	req := mock.LastRequest()
	if req.Model != "llama-3.3-70b-versatile" || req.Temperature == nil || *req.Temperature != 0.3 || req.MaxTokens != 4096 {
		t.Errorf("stage override not merged: %+v", req)
	}

	if _, err := client.Generate(ctx, ai.GenerateRequest{Stage: ai.StageStructureResponse, Prompt: "q"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := mock.LastRequest().Temperature; got == nil || *got != 0 {
		t.Errorf("zero stage temperature = %v, want 0", got)
	}

	if _, err := client.Generate(ctx, ai.GenerateRequest{Stage: ai.StageAnalyze, Prompt: "q", Temperature: ai.Float64(0)}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := mock.LastRequest().Temperature; got == nil || *got != 0 {
		t.Errorf("zero request temperature = %v, want 0", got)
	}

	if _, err := client.Generate(ctx, ai.GenerateRequest{Stage: ai.StageGenerateQuery, Prompt: "q", MaxTokens: 200}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := mock.LastRequest().MaxTokens; got != 200 {
		t.Errorf("request MaxTokens = %d, want 200", got)
	}
}

func TestClient_GenerationError(t *testing.T) {
	tests := []struct {
		name string
		mock *ai.MockProvider
	}{
		{"provider error", &ai.MockProvider{Err: errors.New("boom")}},
		{"empty completion", ai.NewMockProvider("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := ai.NewClient(tt.mock)
			_, err := client.Generate(context.Background(), ai.GenerateRequest{Stage: ai.StageFetchSource, Prompt: "p"})
			var genErr *ai.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("error = %v, want *GenerationError", err)
			}
			if genErr.Stage != ai.StageFetchSource {
				t.Errorf("Stage = %v, want fetch_source", genErr.Stage)
			}
		})
	}
}

func TestClient_RecordsUsage(t *testing.T) {
	mock := ai.NewMockProvider("12345")
	client := ai.NewClient(mock)
	ledger := ai.NewUsageLedger(0)
	ctx := ai.WithUsage(context.Background(), ledger)

	for _, stage := range []ai.Stage{ai.StageAnalyze, ai.StageAnalyze, ai.StageGenerateQuery} {
		if _, err := client.Generate(ctx, ai.GenerateRequest{Stage: stage, Prompt: "p"}); err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
	}

	snap := ledger.Snapshot()
	if snap["analyze"].Calls != 2 || snap["analyze"].InputTokens != 20 || snap["analyze"].OutputTokens != 10 {
		t.Errorf("analyze usage = %+v", snap["analyze"])
	}
	if snap["generate_query"].Calls != 1 {
		t.Errorf("generate_query usage = %+v", snap["generate_query"])
	}
	if ledger.Used() != 45 {
		t.Errorf("Used() = %d, want 45", ledger.Used())
	}
}

func TestClient_BudgetExceeded(t *testing.T) {
	mock := ai.NewMockProvider("0123456789")
	client := ai.NewClient(mock)
	ctx := ai.WithUsage(context.Background(), ai.NewUsageLedger(15))

	if _, err := client.Generate(ctx, ai.GenerateRequest{Stage: ai.StageFetchSource, Prompt: "p"}); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	_, err := client.Generate(ctx, ai.GenerateRequest{Stage: ai.StageAnalyze, Prompt: "p"})
	if !errors.Is(err, ai.ErrTokenBudgetExceeded) {
		t.Fatalf("error = %v, want ErrTokenBudgetExceeded", err)
	}
	if mock.Calls(ai.StageAnalyze) != 0 {
		t.Error("provider should not be called once the budget is spent")
	}
}
