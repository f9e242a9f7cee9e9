package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/internal/observability"
	"github.com/hrygo/bilens/plugin/ai"
	"github.com/hrygo/bilens/plugin/ai/timeout"
)

// Mode reports how an answer was produced.
type Mode string

const (
	// ModeGenerated means a language model wrote the answer.
	ModeGenerated Mode = "generated"
	// ModeExtractive means the answer quotes passages verbatim.
	ModeExtractive Mode = "extractive"
)

// Generator turns passages into an answer. It never fails: any problem with
// the model endpoint degrades to an extractive answer.
type Generator struct {
	mode        string
	baseURL     string
	model       string
	temperature float32
	timeout     time.Duration
	httpClient  *http.Client
	llm         ai.LLMService
	metrics     *observability.Metrics
}

// NewGenerator creates a Generator for the configured mode. llm is required
// for the openai mode and ignored otherwise. metrics may be nil.
func NewGenerator(cfg *ai.GeneratorConfig, llm ai.LLMService, metrics *observability.Metrics) (*Generator, error) {
	g := &Generator{
		mode:        cfg.Mode,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		llm:         llm,
		metrics:     metrics,
	}
	if g.timeout <= 0 {
		g.timeout = timeout.GenerationTimeout
	}
	g.httpClient = &http.Client{Timeout: g.timeout}

	switch cfg.Mode {
	case "extractive":
	case "ollama":
		if g.baseURL == "" || g.model == "" {
			return nil, apperrors.ConfigInvalid("ollama generator requires base URL and model")
		}
	case "openai":
		if llm == nil {
			return nil, apperrors.ConfigInvalid("openai generator requires an LLM service")
		}
	default:
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("unsupported generator mode: %s", cfg.Mode))
	}
	return g, nil
}

// Generate answers query from passages.
func (g *Generator) Generate(ctx context.Context, query string, passages []Passage) (string, Mode) {
	if g.mode == "extractive" {
		return ExtractiveAnswer(passages), ModeExtractive
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := BuildPrompt(query, passages)
	var (
		text string
		err  error
	)
	if g.mode == "openai" {
		text, err = g.llm.Chat(ctx, []ai.Message{ai.UserMessage(prompt)})
	} else {
		text, err = g.generateOllama(ctx, prompt)
	}
	text = strings.TrimSpace(text)

	if err != nil || text == "" {
		if err == nil {
			err = fmt.Errorf("empty response")
		}
		slog.Warn("generation failed, using extractive answer",
			"mode", g.mode,
			"model", g.model,
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err)
		if g.metrics != nil {
			g.metrics.RecordFallback()
		}
		return ExtractiveAnswer(passages), ModeExtractive
	}

	slog.Debug("answer generated",
		"mode", g.mode,
		"model", g.model,
		"passages", len(passages),
		"latency_ms", time.Since(start).Milliseconds())
	return text, ModeGenerated
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (g *Generator) generateOllama(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"temperature": g.temperature},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", apperrors.LLMUnavailable("ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.LLMUnavailable(fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, msg), nil)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return out.Response, nil
}
