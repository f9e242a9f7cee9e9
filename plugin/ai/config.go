package ai

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hrygo/bilens/internal/profile"
	"github.com/hrygo/bilens/plugin/ai/timeout"
)

// Config represents the retrieval and generation configuration.
type Config struct {
	Embedding EmbeddingConfig
	Generator GeneratorConfig
	Vector    VectorConfig
	Chunk     ChunkConfig
	TopK      int
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // local, siliconflow, openai, ollama
	Model      string // hashing-384
	Dimensions int    // 384
	APIKey     string
	BaseURL    string
}

// GeneratorConfig represents answer generation configuration.
type GeneratorConfig struct {
	Mode        string // ollama, openai, extractive
	Model       string // llama3
	BaseURL     string
	APIKey      string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.1
	MaxRetries  int     // default: 2, openai mode only
	Timeout     time.Duration
}

// VectorConfig selects and locates the vector index backend.
type VectorConfig struct {
	Backend    string // flat, qdrant, pgvector
	Dir        string // flat index directory
	URL        string // qdrant base URL
	DSN        string // pgvector connection string
	Collection string
}

// ChunkConfig holds the word window sizes used at ingestion.
type ChunkConfig struct {
	TargetSize  int
	OverlapSize int
}

// NewConfigFromProfile creates the pipeline config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Embedding: EmbeddingConfig{
			Provider:   p.EmbeddingProvider,
			Model:      p.EmbeddingModel,
			Dimensions: p.EmbeddingDimensions,
			APIKey:     p.EmbeddingAPIKey,
			BaseURL:    p.EmbeddingBaseURL,
		},
		Generator: GeneratorConfig{
			Mode:        p.GeneratorMode,
			MaxTokens:   1024,
			Temperature: 0.1,
			MaxRetries:  2,
			Timeout:     timeout.GenerationTimeout,
		},
		Vector: VectorConfig{
			Backend:    p.RAGBackend,
			Dir:        p.ProcessedDir,
			URL:        p.QdrantURL,
			DSN:        p.VectorDSN,
			Collection: p.Collection,
		},
		Chunk: ChunkConfig{
			TargetSize:  p.ChunkTargetTokens,
			OverlapSize: p.ChunkOverlapTokens,
		},
		TopK: p.TopK,
	}

	switch p.EmbeddingProvider {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = p.OpenAIAPIKey
		}
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = p.OpenAIBaseURL
		}
	case "siliconflow":
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = "https://api.siliconflow.cn/v1"
		}
	case "ollama":
		if cfg.Embedding.BaseURL == "" {
			// Ollama serves an OpenAI compatible API under /v1.
			cfg.Embedding.BaseURL = strings.TrimRight(p.OllamaBaseURL, "/") + "/v1"
		}
	}

	switch p.GeneratorMode {
	case "ollama":
		cfg.Generator.Model = p.OllamaModel
		cfg.Generator.BaseURL = p.OllamaBaseURL
	case "openai":
		cfg.Generator.Model = p.OpenAIModel
		cfg.Generator.BaseURL = p.OpenAIBaseURL
		cfg.Generator.APIKey = p.OpenAIAPIKey
	}

	if cfg.Vector.Dir == "" && p.Data != "" {
		cfg.Vector.Dir = filepath.Join(p.Data, "processed")
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.Dimensions <= 0 && c.Embedding.Provider == "local" {
		return errors.New("local embedding requires positive dimensions")
	}
	if (c.Embedding.Provider == "openai" || c.Embedding.Provider == "siliconflow") && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}

	switch c.Generator.Mode {
	case "extractive":
	case "ollama":
		if c.Generator.BaseURL == "" || c.Generator.Model == "" {
			return errors.New("ollama generator requires base URL and model")
		}
	case "openai":
		if c.Generator.Model == "" {
			return errors.New("openai generator requires a model")
		}
	default:
		return fmt.Errorf("unsupported generator mode: %s", c.Generator.Mode)
	}

	switch c.Vector.Backend {
	case "flat":
		if c.Vector.Dir == "" {
			return errors.New("flat index requires a directory")
		}
	case "qdrant":
		if c.Vector.URL == "" {
			return errors.New("qdrant backend requires a URL")
		}
	case "pgvector":
		if c.Vector.DSN == "" {
			return errors.New("pgvector backend requires a DSN")
		}
	default:
		return fmt.Errorf("unsupported vector backend: %s", c.Vector.Backend)
	}

	if c.Chunk.TargetSize <= 0 {
		return errors.New("chunk target size must be positive")
	}
	return nil
}
