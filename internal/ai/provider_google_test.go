package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geminiReply(in, out int, parts ...string) geminiResponse {
	content := geminiContent{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, geminiPart{Text: p})
	}
	return geminiResponse{
		Candidates:    []geminiCandidate{{Content: content, FinishReason: "STOP"}},
		UsageMetadata: geminiUsage{PromptTokenCount: in, CandidatesTokenCount: out},
	}
}

// geminiServer replies with reply and records each decoded request.
func geminiServer(t *testing.T, reply geminiResponse, got *geminiRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") || r.URL.Query().Get("key") != "test-key" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGoogleProvider_Complete(t *testing.T) {
	var got geminiRequest
	server := geminiServer(t, geminiReply(40, 9, "Thermodynamics weighs 12 marks."), &got)

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You are ExamPrepAI."},
			{Role: "user", Content: "Analyse the last five years of CBSE physics papers."},
			{Role: "assistant", Content: "Optics and kinematics dominate."},
			{Role: "user", Content: "Which chapter carries the most marks?"},
		},
		Stage: StageFetchSource,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content != "Thermodynamics weighs 12 marks." || resp.InputTokens != 40 || resp.OutputTokens != 9 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q, want the default", resp.Model)
	}
	if got.SystemInstruction == nil || len(got.SystemInstruction.Parts) != 1 || got.SystemInstruction.Parts[0].Text != "You are ExamPrepAI." {
		t.Errorf("systemInstruction = %+v", got.SystemInstruction)
	}
	var roles []string
	for _, c := range got.Contents {
		roles = append(roles, c.Role)
	}
	if strings.Join(roles, ",") != "user,model,user" {
		t.Errorf("roles = %v, want user,model,user", roles)
	}
	if got.GenerationConfig != nil {
		t.Errorf("generationConfig = %+v, want omitted", got.GenerationConfig)
	}
}

func TestGoogleProvider_Complete_Settings(t *testing.T) {
	var got geminiRequest
	server := geminiServer(t, geminiReply(1, 1, `["kinematics numericals"]`), &got)

	provider := NewGoogleProvider("test-key",
		WithGoogleBaseURL(server.URL),
		WithGoogleDefaultModel("gemini-2.5-pro"),
	)
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: "user", Content: "Suggest a video search query."}},
		MaxTokens:   256,
		Temperature: Float64(0),
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q, want gemini-2.5-pro", resp.Model)
	}
	cfg := got.GenerationConfig
	if cfg == nil || cfg.MaxOutputTokens != 256 || cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Errorf("generationConfig = %+v, want 256 tokens at temperature 0", cfg)
	}
}

func TestGoogleProvider_Complete_JoinsParts(t *testing.T) {
	server := geminiServer(t, geminiReply(1, 1, `[{"topic_name": "Optics",`, ` "importance": 9}]`), nil)

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "Extract topics."}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if want := `[{"topic_name": "Optics", "importance": 9}]`; resp.Content != want {
		t.Errorf("content = %q, want %q", resp.Content, want)
	}
}

func TestGoogleProvider_Complete_NoCandidates(t *testing.T) {
	server := geminiServer(t, geminiResponse{}, nil)

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))
	if _, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "Extract topics."}},
	}); err == nil {
		t.Fatal("Complete() should fail without candidates")
	}
}

func TestGoogleProvider_Complete_APIError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTemporary bool
	}{
		{"forbidden", http.StatusForbidden, false},
		{"quota", http.StatusTooManyRequests, true},
		{"server", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": {"status": "FAILED"}}`))
			}))
			defer server.Close()

			provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))
			_, err := provider.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "Analyse past papers."}},
			})

			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Provider != "google" || apiErr.StatusCode != tt.status {
				t.Fatalf("Complete() error = %v, want google *APIError %d", err, tt.status)
			}
			if apiErr.Temporary() != tt.wantTemporary {
				t.Errorf("Temporary() = %v, want %v", apiErr.Temporary(), tt.wantTemporary)
			}
		})
	}
}

func TestGoogleProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusForbidden, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/models") {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))
			if err := provider.HealthCheck(context.Background()); (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGoogleProvider_Models(t *testing.T) {
	models := NewGoogleProvider("test-key").Models()
	if len(models) == 0 {
		t.Fatal("Models() returned empty list")
	}
	for _, m := range models {
		if !strings.HasPrefix(m.ID, "gemini-") {
			t.Errorf("model %q is not a Gemini model", m.ID)
		}
	}
}
