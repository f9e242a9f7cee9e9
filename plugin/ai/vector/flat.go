package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	apperrors "github.com/hrygo/bilens/internal/errors"
)

const (
	// FlatIndexFile holds the raw vectors.
	FlatIndexFile = "flat.index"
	// FlatMetaFile holds the ordered entry payloads.
	FlatMetaFile = "flat_meta.json"

	flatMagic   = "BLFX"
	flatVersion = uint32(1)
	// magic, version, dim, count
	flatHeaderLen = len(flatMagic) + 4 + 4 + 8
)

// FlatIndex is an in-process brute-force inner-product index.
// When dir is set, vectors and payloads are persisted together after every Add.
type FlatIndex struct {
	mu      sync.RWMutex
	dir     string
	dim     int
	vectors [][]float32
	meta    []Entry
}

// OpenFlatIndex loads the index persisted in dir, or starts empty when neither
// file exists. A lone vector file or a lone metadata file is rejected.
// An empty dir keeps the index in memory only. dim may be 0 to accept the
// persisted or first-added dimension.
func OpenFlatIndex(dir string, dim int) (*FlatIndex, error) {
	idx := &FlatIndex{dir: dir, dim: dim}
	if dir == "" {
		return idx, nil
	}

	indexPath := filepath.Join(dir, FlatIndexFile)
	metaPath := filepath.Join(dir, FlatMetaFile)
	indexExists, err := fileExists(indexPath)
	if err != nil {
		return nil, err
	}
	metaExists, err := fileExists(metaPath)
	if err != nil {
		return nil, err
	}

	switch {
	case !indexExists && !metaExists:
		return idx, nil
	case indexExists != metaExists:
		return nil, apperrors.IndexCorrupt("flat index files are incomplete").
			WithContext("index_present", indexExists).
			WithContext("metadata_present", metaExists).
			WithContext("dir", dir)
	}

	storedDim, vectors, err := readVectors(indexPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIndexCorrupt, "read flat index")
	}
	var meta []Entry
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, errors.Wrap(err, "read flat metadata")
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIndexCorrupt, "parse flat metadata")
	}
	if len(meta) != len(vectors) {
		return nil, apperrors.IndexCorrupt(fmt.Sprintf("flat index has %d vectors but %d metadata entries", len(vectors), len(meta)))
	}
	if dim > 0 && len(vectors) > 0 && storedDim != dim {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("flat index dimension %d does not match embedding dimension %d", storedDim, dim))
	}
	if len(vectors) > 0 {
		idx.dim = storedDim
	}
	for i := range meta {
		meta[i].Vector = vectors[i]
	}
	idx.vectors = vectors
	idx.meta = meta

	slog.Debug("flat index loaded", "dir", dir, "entries", len(meta), "dimension", idx.dim)
	return idx, nil
}

func (f *FlatIndex) Add(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dim := f.dim
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for i, e := range entries {
		if len(e.Vector) != dim || dim == 0 {
			return apperrors.InvalidArgument("vector dimension mismatch").
				WithContext("expected", dim).
				WithContext("got", len(e.Vector)).
				WithContext("entry", i)
		}
	}

	vectors, meta := f.vectors, f.meta
	for _, e := range entries {
		v := append([]float32(nil), e.Vector...)
		e.Vector = v
		vectors = append(vectors, v)
		meta = append(meta, e)
	}

	if f.dir != "" {
		if err := persist(f.dir, dim, vectors, meta); err != nil {
			// Nothing was committed in memory.
			return err
		}
	}

	f.dim = dim
	f.vectors = vectors
	f.meta = meta
	return nil
}

func (f *FlatIndex) Search(_ context.Context, query []float32, topK int) ([]Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if topK <= 0 || len(f.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dim {
		return nil, apperrors.InvalidArgument("query dimension mismatch").
			WithContext("expected", f.dim).
			WithContext("got", len(query))
	}

	type scored struct {
		pos   int
		score float32
	}
	scores := make([]scored, len(f.vectors))
	for i, v := range f.vectors {
		scores[i] = scored{pos: i, score: dot(query, v)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	k := min(topK, len(scores))
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		e := f.meta[scores[i].pos]
		e.Vector = nil
		hits[i] = Hit{Score: scores[i].score, Entry: e}
	}
	return hits, nil
}

func (f *FlatIndex) Count(_ context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.meta), nil
}

func (f *FlatIndex) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

func (f *FlatIndex) Backend() string {
	return "flat"
}

func (f *FlatIndex) Close() error {
	return nil
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %s", path)
}

// persist writes both files to temporaries and renames them into place.
// The two renames are not atomic together: if the second one fails, the
// vectors are new while the payloads are old, and the next open rejects the
// directory as INDEX_CORRUPT instead of falling back to the previous state.
func persist(dir string, dim int, vectors [][]float32, meta []Entry) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return errors.Wrapf(err, "create index dir %s", dir)
	}

	indexTmp, err := writeTemp(dir, FlatIndexFile, func(w io.Writer) error {
		return writeVectors(w, dim, vectors)
	})
	if err != nil {
		return err
	}
	metaTmp, err := writeTemp(dir, FlatMetaFile, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(meta)
	})
	if err != nil {
		os.Remove(indexTmp)
		return err
	}

	if err := os.Rename(indexTmp, filepath.Join(dir, FlatIndexFile)); err != nil {
		os.Remove(indexTmp)
		os.Remove(metaTmp)
		return errors.Wrap(err, "commit flat index")
	}
	if err := os.Rename(metaTmp, filepath.Join(dir, FlatMetaFile)); err != nil {
		os.Remove(metaTmp)
		return errors.Wrap(err, "commit flat metadata")
	}
	return nil
}

func writeTemp(dir, name string, write func(io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", errors.Wrapf(err, "create temp file for %s", name)
	}
	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "write %s", name)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "flush %s", name)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "close %s", name)
	}
	return tmp.Name(), nil
}

// writeVectors encodes: magic, version, dim, count, then count*dim little-endian float32.
func writeVectors(w io.Writer, dim int, vectors [][]float32) error {
	if _, err := io.WriteString(w, flatMagic); err != nil {
		return err
	}
	header := []any{flatVersion, uint32(dim), uint64(len(vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return err
		}
	}
	buf := make([]byte, 4*dim)
	for _, v := range vectors {
		for i, x := range v {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func readVectors(path string) (int, [][]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, nil, err
	}
	r := bufio.NewReader(file)

	magic := make([]byte, len(flatMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != flatMagic {
		return 0, nil, fmt.Errorf("not a flat index file")
	}
	var version, dim uint32
	var count uint64
	for _, h := range []any{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, h); err != nil {
			return 0, nil, fmt.Errorf("read header: %w", err)
		}
	}
	if version != flatVersion {
		return 0, nil, fmt.Errorf("unsupported flat index version %d", version)
	}
	body := uint64(info.Size() - int64(flatHeaderLen))
	switch {
	case count > 0 && dim == 0:
		return 0, nil, fmt.Errorf("flat index holds %d vectors of dimension 0", count)
	case count == 0 && body != 0:
		return 0, nil, fmt.Errorf("trailing data after 0 vectors")
	case count > 0 && (body%(4*uint64(dim)) != 0 || body/(4*uint64(dim)) != count):
		return 0, nil, fmt.Errorf("flat index header declares %d vectors of dimension %d but body has %d bytes", count, dim, body)
	}

	vectors := make([][]float32, 0, count)
	buf := make([]byte, 4*int(dim))
	for n := uint64(0); n < count; n++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, fmt.Errorf("read vector %d: %w", n, err)
		}
		v := make([]float32, dim)
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		vectors = append(vectors, v)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return 0, nil, fmt.Errorf("trailing data after %d vectors", count)
	}
	return int(dim), vectors, nil
}
