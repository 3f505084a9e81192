package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/refine"
	"github.com/dgallion1/docrank/internal/structure"
)

// ErrInvalidConfig marks configuration that cannot start a run.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port string `envconfig:"PORT" default:"8090"`

	// Auth
	APIKey string `envconfig:"DOCRANK_API_KEY"`

	// Embedding
	Embedder       string        `envconfig:"EMBEDDER" default:"tfidf"`
	OpenAIBaseURL  string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIAPIKey   string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel    string        `envconfig:"OPENAI_MODEL" default:"text-embedding-3-small"`
	GeminiAPIKey   string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel    string        `envconfig:"GEMINI_MODEL" default:"gemini-embedding-001"`
	EmbedTimeout   time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`
	EmbedRetries   int           `envconfig:"EMBED_RETRIES" default:"3"`
	StatsWindow    time.Duration `envconfig:"STATS_WINDOW" default:"1h"`
	RefineTokens   int           `envconfig:"REFINE_TOKENS" default:"120"`
	DefaultTopK    int           `envconfig:"DEFAULT_TOP_K" default:"5"`
	HeadingMinLen  int           `envconfig:"HEADING_MIN_LEN" default:"3"`
	HeadingMaxLen  int           `envconfig:"HEADING_MAX_LEN" default:"150"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	PDFFallback    bool          `envconfig:"PDF_FALLBACK_PDFTOTEXT" default:"true"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"` // 50MB

	// Worker pool
	WorkerCount          int `envconfig:"WORKER_COUNT" default:"2"`
	MaxQueueSize         int `envconfig:"MAX_QUEUE_SIZE" default:"100"`
	MaxConcurrentExtract int `envconfig:"MAX_CONCURRENT_EXTRACT" default:"5"`
	MaxConcurrentEmbed   int `envconfig:"MAX_CONCURRENT_EMBED" default:"8"`

	// Job state
	JobTTL time.Duration `envconfig:"JOB_TTL" default:"1h"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.Embedder = strings.ToLower(strings.TrimSpace(cfg.Embedder))
	return cfg, nil
}

// Validate checks the settings every entry point needs.
func (c Config) Validate() error {
	switch embedding.Provider(c.Embedder) {
	case embedding.ProviderTFIDF:
	case embedding.ProviderOpenAI:
		if c.OpenAIBaseURL == "" {
			return fmt.Errorf("%w: OPENAI_BASE_URL is required for the openai embedder", ErrInvalidConfig)
		}
	case embedding.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini embedder", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown EMBEDDER %q", ErrInvalidConfig, c.Embedder)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"DEFAULT_TOP_K", c.DefaultTopK},
		{"HEADING_MIN_LEN", c.HeadingMinLen},
		{"HEADING_MAX_LEN", c.HeadingMaxLen},
		{"REFINE_TOKENS", c.RefineTokens},
		{"WORKER_COUNT", c.WorkerCount},
		{"MAX_QUEUE_SIZE", c.MaxQueueSize},
		{"MAX_CONCURRENT_EXTRACT", c.MaxConcurrentExtract},
		{"MAX_CONCURRENT_EMBED", c.MaxConcurrentEmbed},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}
	if c.HeadingMinLen > c.HeadingMaxLen {
		return fmt.Errorf("%w: HEADING_MIN_LEN %d exceeds HEADING_MAX_LEN %d", ErrInvalidConfig, c.HeadingMinLen, c.HeadingMaxLen)
	}
	if c.EmbedTimeout <= 0 {
		return fmt.Errorf("%w: EMBED_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.EmbedRetries < 0 {
		return fmt.Errorf("%w: EMBED_RETRIES must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ValidateServer adds the checks the HTTP service needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: DOCRANK_API_KEY is required", ErrInvalidConfig)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_BYTES must be positive", ErrInvalidConfig)
	}
	if c.JobTTL <= 0 {
		return fmt.Errorf("%w: JOB_TTL must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c Config) EmbedderOptions() embedding.Options {
	return embedding.Options{
		Provider: embedding.Provider(c.Embedder),
		OpenAI: embedding.OpenAIConfig{
			BaseURL:    c.OpenAIBaseURL,
			APIKey:     c.OpenAIAPIKey,
			Model:      c.OpenAIModel,
			Timeout:    c.EmbedTimeout,
			MaxRetries: c.EmbedRetries,
		},
		Gemini: embedding.GeminiConfig{
			APIKey: c.GeminiAPIKey,
			Model:  c.GeminiModel,
		},
	}
}

func (c Config) StructureConfig() structure.Config {
	return structure.Config{MinHeadingLen: c.HeadingMinLen, MaxHeadingLen: c.HeadingMaxLen}
}

func (c Config) RefineConfig() refine.Config {
	return refine.Config{
		TargetTokens:  c.RefineTokens,
		EmbedTimeout:  c.EmbedTimeout,
		MaxConcurrent: c.MaxConcurrentEmbed,
	}
}
