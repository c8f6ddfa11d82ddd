// Package config loads application configuration from environment variables.
// All variables use the RAPID_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider names accepted by per-stage overrides.
var ProviderNames = []string{"openai", "groq", "deepseek", "google", "anthropic", "openrouter", "ollama"}

// StageNames are the workflow stages that accept model overrides.
var StageNames = []string{"fetch_source", "analyze", "generate_query", "structure_response"}

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AI          AIConfig
	YouTube     YouTubeConfig
	Workflow    WorkflowConfig
	Auth        AuthConfig
	Log         LogConfig
	PromptsPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
	// WriteTimeout bounds a whole workflow response, in seconds.
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// plans in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables the video response cache.
type CacheConfig struct {
	URL string
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	OpenAI     APIKeyConfig
	Groq       APIKeyConfig
	DeepSeek   APIKeyConfig
	Google     APIKeyConfig
	Anthropic  APIKeyConfig
	OpenRouter APIKeyConfig
	Ollama     OllamaConfig

	Model       string
	Temperature float64
	MaxTokens   int
	// Stages holds per-stage overrides keyed by stage name.
	Stages        map[string]StageConfig
	RetryAttempts int
	// TokenBudget caps tokens per workflow run; 0 is unlimited.
	TokenBudget int64
}

// APIKeyConfig holds a hosted provider's credentials.
type APIKeyConfig struct {
	APIKey string
	Model  string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// StageConfig overrides the provider and model settings of one stage. A nil
// Temperature inherits the AI default.
type StageConfig struct {
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// YouTubeConfig holds video provider settings.
type YouTubeConfig struct {
	APIKey            string
	FallbackAPIKey    string
	RequestsPerSecond float64
	Burst             int
	CacheTTLMinutes   int
	// Strategy is "ranked" or "lecture".
	Strategy string
}

// WorkflowConfig holds workflow defaults.
type WorkflowConfig struct {
	DefaultStudyHours  float64
	DefaultMaxDuration int
	MinEngagement      float64
	ArticleLimit       int
	FreeResourceLimit  int
	ResourceWorkers    int
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// AdminKeyHash is the bcrypt hash of the admin API key.
	AdminKeyHash string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with RAPID_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         envInt("RAPID_SERVER_PORT", 8080),
			Host:         envStr("RAPID_SERVER_HOST", "0.0.0.0"),
			WriteTimeout: envInt("RAPID_SERVER_WRITE_TIMEOUT", 300),
		},
		Database: DatabaseConfig{
			URL:      envStr("RAPID_DATABASE_URL", ""),
			MaxConns: envInt("RAPID_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("RAPID_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("RAPID_CACHE_URL", ""),
		},
		AI: AIConfig{
			OpenAI:     apiKeyConfig("OPENAI"),
			Groq:       apiKeyConfig("GROQ"),
			DeepSeek:   apiKeyConfig("DEEPSEEK"),
			Google:     apiKeyConfig("GOOGLE"),
			Anthropic:  apiKeyConfig("ANTHROPIC"),
			OpenRouter: apiKeyConfig("OPENROUTER"),
			Ollama: OllamaConfig{
				Enabled: envBool("RAPID_AI_OLLAMA_ENABLED", false),
				URL:     envStr("RAPID_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("RAPID_AI_OLLAMA_MODEL", ""),
			},
			Model:         envStr("RAPID_AI_MODEL", ""),
			Temperature:   envFloat("RAPID_AI_TEMPERATURE", 0.7),
			MaxTokens:     envInt("RAPID_AI_MAX_TOKENS", 4096),
			Stages:        stageConfigs(),
			RetryAttempts: envInt("RAPID_AI_RETRY_ATTEMPTS", 1),
			TokenBudget:   int64(envInt("RAPID_AI_TOKEN_BUDGET", 0)),
		},
		YouTube: YouTubeConfig{
			APIKey:            envStr("RAPID_YOUTUBE_API_KEY", ""),
			FallbackAPIKey:    envStr("RAPID_YOUTUBE_FALLBACK_API_KEY", ""),
			RequestsPerSecond: envFloat("RAPID_YOUTUBE_RPS", 5),
			Burst:             envInt("RAPID_YOUTUBE_BURST", 5),
			CacheTTLMinutes:   envInt("RAPID_YOUTUBE_CACHE_TTL", 360),
			Strategy:          envStr("RAPID_VIDEO_STRATEGY", "ranked"),
		},
		Workflow: WorkflowConfig{
			DefaultStudyHours:  envFloat("RAPID_WORKFLOW_STUDY_HOURS", 2),
			DefaultMaxDuration: envInt("RAPID_WORKFLOW_MAX_DURATION", 0),
			MinEngagement:      envFloat("RAPID_WORKFLOW_MIN_ENGAGEMENT", 0.5),
			ArticleLimit:       envInt("RAPID_WORKFLOW_ARTICLE_LIMIT", 3),
			FreeResourceLimit:  envInt("RAPID_WORKFLOW_FREE_RESOURCE_LIMIT", 3),
			ResourceWorkers:    envInt("RAPID_WORKFLOW_RESOURCE_WORKERS", 3),
		},
		Auth: AuthConfig{
			AdminKeyHash: envStr("RAPID_AUTH_ADMIN_KEY_HASH", ""),
		},
		Log: LogConfig{
			Level:  envStr("RAPID_LOG_LEVEL", "info"),
			Format: envStr("RAPID_LOG_FORMAT", "json"),
		},
		PromptsPath: envStr("RAPID_PROMPTS_PATH", ""),
	}

	return cfg, nil
}

func apiKeyConfig(name string) APIKeyConfig {
	return APIKeyConfig{
		APIKey: envStr("RAPID_AI_"+name+"_API_KEY", ""),
		Model:  envStr("RAPID_AI_"+name+"_MODEL", ""),
	}
}

// stageConfigs reads RAPID_AI_STAGE_<STAGE>_{PROVIDER,MODEL,TEMPERATURE,MAX_TOKENS}.
func stageConfigs() map[string]StageConfig {
	out := make(map[string]StageConfig)
	for _, stage := range StageNames {
		prefix := "RAPID_AI_STAGE_" + strings.ToUpper(stage) + "_"
		sc := StageConfig{
			Provider:    strings.ToLower(envStr(prefix+"PROVIDER", "")),
			Model:       envStr(prefix+"MODEL", ""),
			Temperature: envFloatPtr(prefix + "TEMPERATURE"),
			MaxTokens:   envInt(prefix+"MAX_TOKENS", 0),
		}
		if sc != (StageConfig{}) {
			out[stage] = sc
		}
	}
	return out
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("RAPID_YOUTUBE_API_KEY is required")
	}

	if !c.HasAIProvider() {
		return fmt.Errorf("at least one AI provider must be configured")
	}

	for stage, sc := range c.AI.Stages {
		if sc.Provider == "" {
			continue
		}
		if !contains(ProviderNames, sc.Provider) {
			return fmt.Errorf("RAPID_AI_STAGE_%s_PROVIDER: unknown provider %q", strings.ToUpper(stage), sc.Provider)
		}
		if !c.providerConfigured(sc.Provider) {
			return fmt.Errorf("RAPID_AI_STAGE_%s_PROVIDER: provider %q is not configured", strings.ToUpper(stage), sc.Provider)
		}
	}

	if c.YouTube.Strategy != "ranked" && c.YouTube.Strategy != "lecture" {
		return fmt.Errorf("RAPID_VIDEO_STRATEGY must be 'ranked' or 'lecture', got %q", c.YouTube.Strategy)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("RAPID_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if c.Workflow.DefaultStudyHours <= 0 {
		return fmt.Errorf("RAPID_WORKFLOW_STUDY_HOURS must be positive, got %v", c.Workflow.DefaultStudyHours)
	}
	if c.Workflow.MinEngagement < 0 || c.Workflow.DefaultMaxDuration < 0 {
		return fmt.Errorf("workflow limits must not be negative")
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	for _, name := range ProviderNames {
		if c.providerConfigured(name) {
			return true
		}
	}
	return false
}

func (c *Config) providerConfigured(name string) bool {
	switch name {
	case "openai":
		return c.AI.OpenAI.APIKey != ""
	case "groq":
		return c.AI.Groq.APIKey != ""
	case "deepseek":
		return c.AI.DeepSeek.APIKey != ""
	case "google":
		return c.AI.Google.APIKey != ""
	case "anthropic":
		return c.AI.Anthropic.APIKey != ""
	case "openrouter":
		return c.AI.OpenRouter.APIKey != ""
	case "ollama":
		return c.AI.Ollama.Enabled
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envFloatPtr returns nil when key is unset or not a number.
func envFloatPtr(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
