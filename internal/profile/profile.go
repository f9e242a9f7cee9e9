package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the ingestion pipeline, the CLI and the HTTP server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory. Raw documents live under Data/raw.
	Data string
	// ProcessedDir holds the persisted flat index and the chunk inspection table.
	ProcessedDir string
	// DSN points to where the analytics tables are stored
	DSN string
	// Driver is the analytics database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Retrieval configuration
	RAGBackend          string // BILENS_RAG_BACKEND (legacy: RAG_BACKEND), flat|qdrant|pgvector
	QdrantURL           string // BILENS_QDRANT_URL (default: http://127.0.0.1:6333)
	VectorDSN           string // BILENS_VECTOR_DSN, PostgreSQL DSN for the pgvector backend
	Collection          string // BILENS_COLLECTION (default: docs)
	ChunkTargetTokens   int    // BILENS_CHUNK_TARGET_TOKENS (legacy: CHUNK_TARGET_TOKENS, default: 700)
	ChunkOverlapTokens  int    // BILENS_CHUNK_OVERLAP_TOKENS (legacy: CHUNK_OVERLAP_TOKENS, default: 120)
	TopK                int    // BILENS_TOP_K (default: 5)
	EmbeddingProvider   string // BILENS_EMBEDDING_PROVIDER (default: local)
	EmbeddingModel      string // BILENS_EMBEDDING_MODEL (legacy: EMBEDDINGS_MODEL)
	EmbeddingDimensions int    // BILENS_EMBEDDING_DIMENSIONS (default: 384)
	EmbeddingBaseURL    string // BILENS_EMBEDDING_BASE_URL
	EmbeddingAPIKey     string // BILENS_EMBEDDING_API_KEY

	// Generation configuration
	GeneratorMode string // BILENS_GENERATOR_MODE (legacy: GENERATOR_MODE), ollama|openai|extractive
	OllamaBaseURL string // BILENS_OLLAMA_BASE_URL (legacy: OLLAMA_BASE_URL, default: http://127.0.0.1:11434)
	OllamaModel   string // BILENS_OLLAMA_MODEL (legacy: OLLAMA_MODEL, default: llama3)
	OpenAIBaseURL string // BILENS_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	OpenAIAPIKey  string // BILENS_OPENAI_API_KEY
	OpenAIModel   string // BILENS_OPENAI_MODEL (default: gpt-4o-mini)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// RawDir is where ingestion discovers documents.
func (p *Profile) RawDir() string {
	return filepath.Join(p.Data, "raw")
}

// ExamplesDir is where the analytics CSV snapshots are read and written.
func (p *Profile) ExamplesDir() string {
	return filepath.Join(p.Data, "examples")
}

// FromEnv loads configuration from environment variables.
// Supports both BILENS_* and the unprefixed legacy names.
// Values already set on the profile are kept.
func (p *Profile) FromEnv() {
	getEnvWithDefault := func(newKey, legacyKey, defaultValue string) string {
		if val := os.Getenv(newKey); val != "" {
			return val
		}
		if legacyKey != "" {
			if val := os.Getenv(legacyKey); val != "" {
				return val
			}
		}
		return defaultValue
	}

	getIntEnvWithDefault := func(newKey, legacyKey string, defaultValue int) int {
		raw := getEnvWithDefault(newKey, legacyKey, "")
		if raw == "" {
			return defaultValue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			slog.Warn("ignoring non-integer environment value", "key", newKey, "value", raw)
			return defaultValue
		}
		return v
	}

	setString := func(dst *string, newKey, legacyKey, defaultValue string) {
		if *dst == "" {
			*dst = getEnvWithDefault(newKey, legacyKey, defaultValue)
		}
	}
	setInt := func(dst *int, newKey, legacyKey string, defaultValue int) {
		if *dst == 0 {
			*dst = getIntEnvWithDefault(newKey, legacyKey, defaultValue)
		}
	}

	setString(&p.Mode, "BILENS_MODE", "", "demo")
	setString(&p.Addr, "BILENS_ADDR", "", "")
	setInt(&p.Port, "BILENS_PORT", "", 8000)
	setString(&p.Data, "BILENS_DATA", "DATA_DIR", "./data")
	setString(&p.ProcessedDir, "BILENS_PROCESSED_DIR", "PROCESSED_DIR", "")
	setString(&p.Driver, "BILENS_DRIVER", "", "sqlite")
	setString(&p.DSN, "BILENS_DSN", "", "")

	setString(&p.RAGBackend, "BILENS_RAG_BACKEND", "RAG_BACKEND", "flat")
	setString(&p.QdrantURL, "BILENS_QDRANT_URL", "QDRANT_URL", "http://127.0.0.1:6333")
	setString(&p.VectorDSN, "BILENS_VECTOR_DSN", "", "")
	setString(&p.Collection, "BILENS_COLLECTION", "", "docs")
	setInt(&p.ChunkTargetTokens, "BILENS_CHUNK_TARGET_TOKENS", "CHUNK_TARGET_TOKENS", 700)
	setInt(&p.ChunkOverlapTokens, "BILENS_CHUNK_OVERLAP_TOKENS", "CHUNK_OVERLAP_TOKENS", 120)
	setInt(&p.TopK, "BILENS_TOP_K", "", 5)
	setString(&p.EmbeddingProvider, "BILENS_EMBEDDING_PROVIDER", "", "local")
	setString(&p.EmbeddingModel, "BILENS_EMBEDDING_MODEL", "EMBEDDINGS_MODEL", "hashing-384")
	setInt(&p.EmbeddingDimensions, "BILENS_EMBEDDING_DIMENSIONS", "", 384)
	setString(&p.EmbeddingBaseURL, "BILENS_EMBEDDING_BASE_URL", "", "")
	setString(&p.EmbeddingAPIKey, "BILENS_EMBEDDING_API_KEY", "", "")

	setString(&p.GeneratorMode, "BILENS_GENERATOR_MODE", "GENERATOR_MODE", "ollama")
	setString(&p.OllamaBaseURL, "BILENS_OLLAMA_BASE_URL", "OLLAMA_BASE_URL", "http://127.0.0.1:11434")
	setString(&p.OllamaModel, "BILENS_OLLAMA_MODEL", "OLLAMA_MODEL", "llama3")
	setString(&p.OpenAIBaseURL, "BILENS_OPENAI_BASE_URL", "", "https://api.openai.com/v1")
	setString(&p.OpenAIAPIKey, "BILENS_OPENAI_API_KEY", "OPENAI_API_KEY", "")
	setString(&p.OpenAIModel, "BILENS_OPENAI_MODEL", "", "gpt-4o-mini")
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "raw"), filepath.Join(dataDir, "examples")} {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return "", errors.Wrapf(err, "unable to create data folder %s", dir)
		}
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "./data"
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.ProcessedDir == "" {
		p.ProcessedDir = filepath.Join(dataDir, "processed")
	}
	if err := os.MkdirAll(p.ProcessedDir, 0o770); err != nil {
		return errors.Wrapf(err, "unable to create processed folder %s", p.ProcessedDir)
	}

	switch p.Driver {
	case "", "sqlite":
		p.Driver = "sqlite"
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("bilens_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("postgres driver requires a DSN")
		}
	default:
		return errors.Errorf("unsupported driver: %s", p.Driver)
	}

	switch p.RAGBackend {
	case "", "flat", "faiss":
		// faiss is the historical name of the in-process index
		p.RAGBackend = "flat"
	case "qdrant":
		if p.QdrantURL == "" {
			return errors.New("qdrant backend requires a URL")
		}
	case "pgvector":
		if p.VectorDSN == "" {
			p.VectorDSN = p.DSN
		}
		if p.VectorDSN == "" || p.Driver == "sqlite" && p.VectorDSN == p.DSN {
			return errors.New("pgvector backend requires a PostgreSQL DSN")
		}
	default:
		return errors.Errorf("unsupported rag backend: %s", p.RAGBackend)
	}

	switch p.GeneratorMode {
	case "", "stub":
		p.GeneratorMode = "extractive"
	case "ollama", "openai", "extractive":
	default:
		return errors.Errorf("unsupported generator mode: %s", p.GeneratorMode)
	}

	if p.ChunkTargetTokens <= 0 {
		return errors.Errorf("chunk target must be positive, got %d", p.ChunkTargetTokens)
	}
	if p.ChunkOverlapTokens < 0 {
		return errors.Errorf("chunk overlap must not be negative, got %d", p.ChunkOverlapTokens)
	}
	if p.TopK <= 0 {
		p.TopK = 5
	}
	if p.EmbeddingProvider == "" {
		p.EmbeddingProvider = "local"
	}
	if p.EmbeddingProvider == "local" && p.EmbeddingDimensions <= 0 {
		p.EmbeddingDimensions = 384
	}

	return nil
}
