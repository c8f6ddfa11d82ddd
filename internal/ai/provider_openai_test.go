package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// chatReply builds an OpenAI-style completion body.
func chatReply(content, model string, in, out int) map[string]any {
	return map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		"model":   model,
		"usage":   map[string]int{"prompt_tokens": in, "completion_tokens": out},
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}

		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-4o")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", req.Temperature)
		}
		if req.MaxTokens != 4096 {
			t.Errorf("max_tokens = %d, want 4096", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(chatReply("Hi there!", "gpt-4o", 10, 5))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You are ExamPrepAI."},
			{Role: "user", Content: "hello"},
		},
		Model:       "gpt-4o",
		Temperature: Float64(0.7),
		MaxTokens:   4096,
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hi there!" {
		t.Errorf("content = %q, want %q", resp.Content, "Hi there!")
	}
	if resp.InputTokens != 10 {
		t.Errorf("input_tokens = %d, want 10", resp.InputTokens)
	}
	if resp.OutputTokens != 5 {
		t.Errorf("output_tokens = %d, want 5", resp.OutputTokens)
	}
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	provider := NewGroqProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *APIError", err)
	}
	if apiErr.Provider != "groq" || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !apiErr.Temporary() {
		t.Error("429 should be temporary")
	}
}

func TestOpenAIProvider_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{Choices: nil})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when no choices")
	}
}

func TestCompatibleProviders(t *testing.T) {
	tests := []struct {
		name      string
		build     func(url string) *OpenAIProvider
		wantPath  string
		wantModel string
		wantAuth  string
		headers   map[string]string
	}{
		{
			name:      "groq",
			build:     func(url string) *OpenAIProvider { return NewGroqProvider("gq-key", WithBaseURL(url)) },
			wantPath:  "/chat/completions",
			wantModel: "llama-3.3-70b-versatile",
			wantAuth:  "Bearer gq-key",
		},
		{
			name:      "deepseek",
			build:     func(url string) *OpenAIProvider { return NewDeepSeekProvider("ds-key", WithBaseURL(url)) },
			wantPath:  "/chat/completions",
			wantModel: "deepseek-chat",
			wantAuth:  "Bearer ds-key",
		},
		{
			name:      "openrouter",
			build:     func(url string) *OpenAIProvider { return NewOpenRouterProvider("or-key", WithBaseURL(url)) },
			wantPath:  "/chat/completions",
			wantModel: "qwen/qwen-2.5-72b-instruct",
			wantAuth:  "Bearer or-key",
			headers:   map[string]string{"HTTP-Referer": "https://rapidrevise.app", "X-Title": "RapidRevise"},
		},
		{
			name:      "ollama",
			build:     func(url string) *OpenAIProvider { return NewOllamaProvider(url + "/") },
			wantPath:  "/v1/chat/completions",
			wantModel: "llama3:8b",
			wantAuth:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("path = %q, want %q", r.URL.Path, tt.wantPath)
				}
				if got := r.Header.Get("Authorization"); got != tt.wantAuth {
					t.Errorf("Authorization = %q, want %q", got, tt.wantAuth)
				}
				for k, v := range tt.headers {
					if got := r.Header.Get(k); got != v {
						t.Errorf("%s = %q, want %q", k, got, v)
					}
				}
				var req openaiRequest
				json.NewDecoder(r.Body).Decode(&req)
				if req.Model != tt.wantModel {
					t.Errorf("model = %q, want %q", req.Model, tt.wantModel)
				}
				json.NewEncoder(w).Encode(chatReply(tt.name+" response", req.Model, 1, 1))
			}))
			defer server.Close()

			provider := tt.build(server.URL)
			if provider.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", provider.Name(), tt.name)
			}
			resp, err := provider.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hello"}},
			})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.Content != tt.name+" response" {
				t.Errorf("content = %q", resp.Content)
			}
		})
	}
}

func TestOpenAIProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/models" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))
			err := provider.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIProvider_Models(t *testing.T) {
	provider := NewOpenAIProvider("test-key")
	models := provider.Models()

	if len(models) == 0 {
		t.Fatal("Models() returned empty list")
	}

	for _, m := range models {
		if m.Name == "" {
			t.Errorf("model %q has empty name", m.ID)
		}
	}
}

func TestOpenAIProvider_CustomModels(t *testing.T) {
	custom := []ModelInfo{{ID: "custom-model", Name: "Custom"}}
	provider := NewOpenAIProvider("test-key", WithModels(custom))
	models := provider.Models()

	if len(models) != 1 || models[0].ID != "custom-model" {
		t.Errorf("Models() = %+v, want custom models", models)
	}
}

func TestOpenAIProvider_DefaultModel(t *testing.T) {
	var receivedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		receivedModel = req.Model
		json.NewEncoder(w).Encode(chatReply("ok", req.Model, 0, 0))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	// No model specified, so the provider default applies.
	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if receivedModel != "gpt-4o-mini" {
		t.Errorf("default model = %q, want %q", receivedModel, "gpt-4o-mini")
	}
}

func TestOpenAIProvider_Temperature(t *testing.T) {
	tests := []struct {
		name string
		temp *float64
		want string
	}{
		{"unset is omitted", nil, ""},
		{"zero is sent", Float64(0), "0"},
		{"value is sent", Float64(0.3), "0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]json.RawMessage
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&raw)
				json.NewEncoder(w).Encode(chatReply(`["optics ray diagrams"]`, "gpt-4o-mini", 1, 1))
			}))
			defer server.Close()

			provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))
			_, err := provider.Complete(context.Background(), CompletionRequest{
				Messages:    []Message{{Role: "user", Content: "Suggest a query for optics."}},
				Temperature: tt.temp,
			})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if got := string(raw["temperature"]); got != tt.want {
				t.Errorf("temperature = %q, want %q", got, tt.want)
			}
		})
	}
}
