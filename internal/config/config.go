package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

type Config struct {
	CoursePDFDir string `envconfig:"COURSE_PDF_DIR" default:"coursePdf"`

	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiModel          string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-pro"`
	GeminiEmbeddingModel string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	RetrievalTopK   int `envconfig:"RETRIEVAL_TOP_K" default:"3"`
	MaxContextChars int `envconfig:"MAX_CONTEXT_CHARS" default:"15000"`

	MinQuestions int `envconfig:"MIN_QUESTIONS" default:"1"`
	MaxQuestions int `envconfig:"MAX_QUESTIONS" default:"20"`

	MaxRegenAttempts     int           `envconfig:"MAX_REGEN_ATTEMPTS" default:"2"`
	MaxTransportRetries  int           `envconfig:"MAX_TRANSPORT_RETRIES" default:"3"`
	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"500ms"`

	EmbedTimeout    time.Duration `envconfig:"EMBED_TIMEOUT" default:"60s"`
	GenerateTimeout time.Duration `envconfig:"GENERATE_TIMEOUT" default:"120s"`

	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell instead, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive, got %d", ErrInvalid, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: CHUNK_OVERLAP must not be negative, got %d", ErrInvalid, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", ErrInvalid, c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("%w: RETRIEVAL_TOP_K must be positive, got %d", ErrInvalid, c.RetrievalTopK)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("%w: MAX_CONTEXT_CHARS must be positive, got %d", ErrInvalid, c.MaxContextChars)
	}
	if c.MinQuestions < 1 || c.MaxQuestions < c.MinQuestions {
		return fmt.Errorf("%w: question bounds [%d,%d]", ErrInvalid, c.MinQuestions, c.MaxQuestions)
	}
	if c.MaxRegenAttempts < 1 {
		return fmt.Errorf("%w: MAX_REGEN_ATTEMPTS must be at least 1, got %d", ErrInvalid, c.MaxRegenAttempts)
	}
	if c.MaxTransportRetries < 0 {
		return fmt.Errorf("%w: MAX_TRANSPORT_RETRIES must not be negative, got %d", ErrInvalid, c.MaxTransportRetries)
	}
	return nil
}
