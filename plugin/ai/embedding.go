package ai

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/bilens/plugin/ai/cache"
)

// EmbeddingService is the vector embedding service interface.
// Vectors are unit length, except that text with no content to embed
// (no letters or digits for the local embedder) yields the zero vector.
type EmbeddingService interface {
	// Embed generates vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension, or 0 before the first remote call.
	Dimensions() int

	// Model identifies the embedding model.
	Model() string
}

// NewEmbeddingService creates an EmbeddingService whose vectors are always L2 normalized.
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	var inner EmbeddingService

	switch cfg.Provider {
	case "local", "":
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = 384
		}
		model := cfg.Model
		if model == "" {
			model = fmt.Sprintf("hashing-%d", dims)
		}
		inner = &hashingEmbedding{dimensions: dims, model: model}

	case "siliconflow", "openai", "ollama":
		// All three speak the OpenAI embeddings API.
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		svc := &embeddingService{
			client: openai.NewClientWithConfig(clientConfig),
			model:  cfg.Model,
		}
		if cfg.Provider == "openai" {
			svc.requestDimensions = cfg.Dimensions
		}
		svc.dimensions.Store(int64(cfg.Dimensions))
		inner = svc

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	return &normalizedEmbedding{inner: inner}, nil
}

type embeddingService struct {
	client            *openai.Client
	model             string
	requestDimensions int
	dimensions        atomic.Int64
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.requestDimensions,
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	s.dimensions.CompareAndSwap(0, int64(dim))

	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return int(s.dimensions.Load())
}

func (s *embeddingService) Model() string {
	return s.model
}

// hashingEmbedding maps word unigrams and bigrams into a fixed number of signed
// buckets. It is deterministic and needs no network.
type hashingEmbedding struct {
	dimensions int
	model      string
}

func (h *hashingEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *hashingEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.vector(text)
	}
	return vectors, nil
}

func (h *hashingEmbedding) Dimensions() int {
	return h.dimensions
}

func (h *hashingEmbedding) Model() string {
	return h.model
}

func (h *hashingEmbedding) vector(text string) []float32 {
	v := make([]float32, h.dimensions)
	tokens := Tokenize(text)
	for i, tok := range tokens {
		h.add(v, tok, 1)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return v
}

func (h *hashingEmbedding) add(v []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := sum % uint64(len(v))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

// Tokenize lower-cases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeL2 scales v in place to unit length and returns it. Zero vectors are left unchanged.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// normalizedEmbedding guarantees unit-length output regardless of provider.
type normalizedEmbedding struct {
	inner EmbeddingService
}

func (n *normalizedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := n.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return NormalizeL2(v), nil
}

func (n *normalizedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := n.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		NormalizeL2(v)
	}
	return vectors, nil
}

func (n *normalizedEmbedding) Dimensions() int {
	return n.inner.Dimensions()
}

func (n *normalizedEmbedding) Model() string {
	return n.inner.Model()
}

// cachedEmbedding memoizes single-text embeddings, which is how queries are embedded.
type cachedEmbedding struct {
	EmbeddingService
	lru *cache.LRU[[]float32]
}

// NewCachedEmbeddingService wraps svc with an LRU keyed by model and text.
// Batch calls bypass the cache.
func NewCachedEmbeddingService(svc EmbeddingService, capacity int, ttl time.Duration) EmbeddingService {
	return &cachedEmbedding{
		EmbeddingService: svc,
		lru:              cache.NewLRU[[]float32](capacity, ttl),
	}
}

func (c *cachedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.Model() + "\x00" + text
	if v, ok := c.lru.Get(key); ok {
		return append([]float32(nil), v...), nil
	}
	v, err := c.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.lru.Set(key, append([]float32(nil), v...), 0)
	return v, nil
}
