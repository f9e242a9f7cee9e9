package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/bilens/internal/errors"
)

// fakeQdrant implements the handful of Qdrant endpoints the index uses.
type fakeQdrant struct {
	mu     sync.Mutex
	size   int
	points []qdrantPoint
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/collections/docs")
	switch {
	case r.Method == http.MethodGet && path == "":
		if f.size == 0 {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size}}}}})
	case r.Method == http.MethodPut && path == "":
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.size = body.Vectors.Size
		writeJSON(w, map[string]any{"result": true})
	case r.Method == http.MethodPut && path == "/points":
		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case r.Method == http.MethodPost && path == "/points/search":
		if f.size == 0 {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		type scored struct {
			score float32
			p     qdrantPoint
		}
		var all []scored
		for _, p := range f.points {
			all = append(all, scored{dot(body.Vector, p.Vector), p})
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
		if len(all) > body.Limit {
			all = all[:body.Limit]
		}
		result := make([]map[string]any, len(all))
		for i, s := range all {
			result[i] = map[string]any{"id": s.p.ID, "score": s.score, "payload": s.p.Payload}
		}
		writeJSON(w, map[string]any{"result": result})
	case r.Method == http.MethodPost && path == "/points/count":
		writeJSON(w, map[string]any{"result": map[string]any{"count": len(f.points)}})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestQdrantIndex_AddSearchCount(t *testing.T) {
	ctx := context.Background()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	idx, err := NewQdrantIndex(srv.URL, "docs", 0)
	require.NoError(t, err)

	hits, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, idx.Add(ctx, []Entry{
		{Text: "east", Source: "a.md", ChunkID: 0, Vector: []float32{1, 0}},
		{Text: "north", Source: "a.md", ChunkID: 1, Vector: []float32{0, 1}},
	}))
	assert.Equal(t, 2, fake.size)
	assert.Equal(t, 2, idx.Dimension())

	hits, err = idx.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "north", hits[0].Entry.Text)
	assert.Equal(t, 1, hits[0].Entry.ChunkID)
	// Distance semantics: best hit has the lowest score.
	assert.InDelta(t, 0, hits[0].Score, 1e-6)
	assert.InDelta(t, 1, hits[1].Score, 1e-6)

	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQdrantIndex_DimensionMismatch(t *testing.T) {
	fake := &fakeQdrant{size: 3}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	idx, _ := NewQdrantIndex(srv.URL, "docs", 0)
	err := idx.Add(context.Background(), []Entry{{Text: "a", Vector: []float32{1, 0}}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}

func TestQdrantIndex_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	idx, err := NewQdrantIndex(url, "docs", 2)
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 0}, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVectorBackendUnavailable))

	err = idx.Add(context.Background(), []Entry{{Text: "a", Vector: []float32{1, 0}}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVectorBackendUnavailable))
}

func TestNewQdrantIndex_Validation(t *testing.T) {
	_, err := NewQdrantIndex("", "docs", 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
	_, err = NewQdrantIndex("http://localhost:6333", "", 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestNewIndex_UnknownBackend(t *testing.T) {
	_, err := NewIndex(context.Background(), Options{Backend: "annoy"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))

	idx, err := NewIndex(context.Background(), Options{Backend: "flat", Dir: t.TempDir(), Dimension: 4})
	require.NoError(t, err)
	assert.Equal(t, "flat", idx.Backend())
}
