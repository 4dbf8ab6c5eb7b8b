package types

import "time"

// Provider identifies the model provider backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the backend: anthropic or openai.
	Provider Provider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// BaseURL optionally overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKeys lists credentials in rotation order: primary first, then the
	// optional secondary.
	APIKeys []string `json:"-" yaml:"-"`

	// MaxRetries is the number of attempts per credential for retryable
	// failures (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a single HTTP request to the provider.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// PlanningConfig holds settings for the plan generator.
type PlanningConfig struct {
	// MaxTokens caps the plan response (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is optional; nil keeps the model default.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// ProductionConfig holds settings for the producer.
type ProductionConfig struct {
	// BatchSize is the number of cards per production call (default 12).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Concurrency caps in-flight batch calls (default 3, 1 = sequential).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaxTokens caps each batch response (default 16000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// StoreConfig holds settings for local session persistence.
type StoreConfig struct {
	// Dir is the directory holding deck.db and exports (default "decks").
	Dir string `json:"dir" yaml:"dir"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	AI         AIConfig         `json:"ai" yaml:"ai"`
	Planning   PlanningConfig   `json:"planning" yaml:"planning"`
	Production ProductionConfig `json:"production" yaml:"production"`
	Store      StoreConfig      `json:"store" yaml:"store"`

	// DocsDir is the directory the document provider reads.
	DocsDir string `json:"docs_dir" yaml:"docs_dir"`
}
