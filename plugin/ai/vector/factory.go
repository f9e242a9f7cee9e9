package vector

import (
	"context"
	"fmt"

	apperrors "github.com/hrygo/bilens/internal/errors"
)

// Options selects and locates a backend.
type Options struct {
	Backend    string // flat, qdrant, pgvector
	Dir        string
	URL        string
	DSN        string
	Collection string
	Dimension  int
}

// NewIndex opens the configured backend.
func NewIndex(ctx context.Context, opts Options) (Index, error) {
	var (
		idx Index
		err error
	)
	switch opts.Backend {
	case "flat", "":
		idx, err = OpenFlatIndex(opts.Dir, opts.Dimension)
	case "qdrant":
		idx, err = NewQdrantIndex(opts.URL, opts.Collection, opts.Dimension)
	case "pgvector":
		idx, err = NewPGVectorIndex(ctx, opts.DSN, opts.Collection, opts.Dimension)
	default:
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("unsupported vector backend: %s", opts.Backend))
	}
	if err != nil {
		return nil, err
	}
	return idx, nil
}
