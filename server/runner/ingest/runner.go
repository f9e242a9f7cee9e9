// Package ingest turns the raw document folder into indexed chunks.
package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/bilens/plugin/ai/vector"
	"github.com/hrygo/bilens/plugin/textextract"
	serverai "github.com/hrygo/bilens/server/ai"
)

// Config locates documents and sizes chunks.
type Config struct {
	RawDir       string
	ProcessedDir string // empty disables the inspection table
	TargetSize   int
	OverlapSize  int
}

// Summary reports one ingestion run.
type Summary struct {
	Files     int      `json:"files"`
	Chunks    int      `json:"chunks"`
	IndexSize int      `json:"index_size"`
	Backend   string   `json:"backend"`
	Skipped   []string `json:"skipped,omitempty"`
	// InspectionError is set when the chunk table could not be written.
	// The index has still been updated.
	InspectionError string `json:"inspection_error,omitempty"`
}

type Runner struct {
	config   Config
	embedder *serverai.Embedder
	index    vector.Index
}

// NewRunner creates an ingestion runner appending to index through embedder.
func NewRunner(config Config, embedder *serverai.Embedder, index vector.Index) *Runner {
	return &Runner{
		config:   config,
		embedder: embedder,
		index:    index,
	}
}

// Run ingests every supported file in the raw folder. Files that cannot be
// read are skipped and listed in the summary. Running twice appends the same
// chunks again.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	warning, err := serverai.ValidateChunkSizes(r.config.TargetSize, r.config.OverlapSize)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		slog.Warn(warning)
	}

	start := time.Now()
	summary := &Summary{Backend: r.index.Backend()}

	files, err := DiscoverFiles(r.config.RawDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.Warn("no documents found, add PDF/MD/TXT files and run again", "dir", r.config.RawDir)
		return summary, nil
	}

	var chunks []serverai.ChunkDraft
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := textextract.ExtractFile(path)
		if err != nil {
			slog.Warn("skipping unreadable document", "file", path, "error", err)
			summary.Skipped = append(summary.Skipped, path)
			continue
		}
		summary.Files++
		chunks = append(chunks, serverai.ChunkText(serverai.CleanText(text), r.config.TargetSize, r.config.OverlapSize, map[string]string{
			"source": path,
			"type":   textextract.DetectDocumentType(path),
		})...)
	}
	if len(chunks) == 0 {
		slog.Warn("no chunks produced, check the documents", "files", summary.Files)
		return summary, nil
	}

	if err := r.embedder.EmbedChunks(ctx, chunks); err != nil {
		return nil, errors.Wrap(err, "failed to index chunks")
	}
	summary.Chunks = len(chunks)

	if r.config.ProcessedDir != "" {
		path := filepath.Join(r.config.ProcessedDir, InspectionFile)
		if err := WriteInspection(ctx, path, chunks); err != nil {
			slog.Warn("failed to write inspection table", "path", path, "error", err)
			summary.InspectionError = err.Error()
		}
	}

	if summary.IndexSize, err = r.index.Count(ctx); err != nil {
		return nil, err
	}

	slog.Info("ingestion completed",
		"files", summary.Files,
		"chunks", summary.Chunks,
		"index_size", summary.IndexSize,
		"backend", summary.Backend,
		"latency_ms", time.Since(start).Milliseconds())
	return summary, nil
}

// DiscoverFiles lists supported documents directly under dir, sorted by name.
// A missing dir yields no files.
func DiscoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !textextract.IsSupported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
