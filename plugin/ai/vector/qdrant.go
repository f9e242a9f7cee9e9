package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/plugin/ai/timeout"
)

// QdrantIndex stores entries in a remote Qdrant collection over its REST API.
// The collection uses cosine distance and hits report 1 - similarity.
type QdrantIndex struct {
	baseURL    string
	collection string
	httpClient *http.Client

	mu  sync.Mutex
	dim int
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// qdrantError marks a non-2xx response so 404 can be told apart from transport failures.
type qdrantError struct {
	status int
	body   string
}

func (e *qdrantError) Error() string {
	return fmt.Sprintf("qdrant API error: %d %s", e.status, e.body)
}

// NewQdrantIndex creates a client for the collection. dim may be 0, in which
// case the collection is created with the dimension of the first Add.
func NewQdrantIndex(baseURL, collection string, dim int) (*QdrantIndex, error) {
	if baseURL == "" {
		return nil, apperrors.ConfigInvalid("qdrant url is required")
	}
	if collection == "" {
		return nil, apperrors.ConfigInvalid("qdrant collection is required")
	}
	return &QdrantIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout.VectorBackendTimeout},
		dim:        dim,
	}, nil
}

func (q *QdrantIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	dim := len(entries[0].Vector)
	for i, e := range entries {
		if len(e.Vector) != dim || dim == 0 {
			return apperrors.InvalidArgument("vector dimension mismatch").WithContext("entry", i)
		}
	}
	if err := q.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(entries))
	for i, e := range entries {
		points[i] = qdrantPoint{
			ID:     uuid.NewString(),
			Vector: e.Vector,
			Payload: map[string]any{
				"text":     e.Text,
				"source":   e.Source,
				"chunk_id": e.ChunkID,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collection), body, nil); err != nil {
		return apperrors.VectorBackendUnavailable("qdrant upsert failed", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}
	if dim := q.Dimension(); dim > 0 && len(query) != dim {
		return nil, apperrors.InvalidArgument("query dimension mismatch").
			WithContext("expected", dim).
			WithContext("got", len(query))
	}

	body := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32 `json:"score"`
			Payload struct {
				Text    string `json:"text"`
				Source  string `json:"source"`
				ChunkID int    `json:"chunk_id"`
			} `json:"payload"`
		} `json:"result"`
	}
	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collection), body, &resp)
	if isNotFound(err) {
		// Nothing was ever ingested.
		return []Hit{}, nil
	}
	if err != nil {
		return nil, apperrors.VectorBackendUnavailable("qdrant search failed", err)
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{
			Score: 1 - r.Score,
			Entry: Entry{Text: r.Payload.Text, Source: r.Payload.Source, ChunkID: r.Payload.ChunkID},
		})
	}
	return hits, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collection), map[string]any{"exact": true}, &resp)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.VectorBackendUnavailable("qdrant count failed", err)
	}
	return resp.Result.Count, nil
}

func (q *QdrantIndex) Dimension() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dim
}

func (q *QdrantIndex) Backend() string {
	return "qdrant"
}

func (q *QdrantIndex) Close() error {
	q.httpClient.CloseIdleConnections()
	return nil
}

// ensureCollection creates the collection on first use and checks its dimension.
func (q *QdrantIndex) ensureCollection(ctx context.Context, dim int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := q.doRequest(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collection), nil, &resp)
	switch {
	case isNotFound(err):
		if q.dim > 0 && q.dim != dim {
			return apperrors.InvalidArgument(fmt.Sprintf("vector dimension %d does not match configured %d", dim, q.dim))
		}
		body := map[string]any{
			"vectors": map[string]any{"size": dim, "distance": "Cosine"},
		}
		if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil); err != nil {
			return apperrors.VectorBackendUnavailable("qdrant create collection failed", err)
		}
	case err != nil:
		return apperrors.VectorBackendUnavailable("qdrant get collection failed", err)
	default:
		if size := resp.Result.Config.Params.Vectors.Size; size > 0 && size != dim {
			return apperrors.InvalidArgument(fmt.Sprintf("vector dimension %d does not match collection dimension %d", dim, size))
		}
	}
	q.dim = dim
	return nil
}

func isNotFound(err error) bool {
	qe, ok := err.(*qdrantError)
	return ok && qe.status == http.StatusNotFound
}

func (q *QdrantIndex) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout.VectorBackendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read qdrant response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &qdrantError{status: resp.StatusCode, body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse qdrant response: %w", err)
	}
	return nil
}
