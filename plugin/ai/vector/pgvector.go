package vector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	apperrors "github.com/hrygo/bilens/internal/errors"
)

var collectionName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,47}$`)

// PGVectorIndex stores entries in a PostgreSQL table using the pgvector extension.
// Rows are ordered by a serial id so insertion order is preserved.
type PGVectorIndex struct {
	db    *sql.DB
	table string

	mu  sync.Mutex
	dim int
}

// NewPGVectorIndex connects to dsn and prepares the collection table.
// dim may be 0 when the table already exists or will be created by the first Add.
func NewPGVectorIndex(ctx context.Context, dsn, collection string, dim int) (*PGVectorIndex, error) {
	if !collectionName.MatchString(collection) {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("invalid pgvector collection name %q", collection))
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open pgvector database")
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.VectorBackendUnavailable("failed to ping pgvector database", err)
	}

	idx := &PGVectorIndex{db: db, table: collection + "_chunks", dim: dim}
	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		db.Close()
		return nil, apperrors.VectorBackendUnavailable("failed to enable pgvector extension", err)
	}

	existing, err := idx.tableDimension(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	switch {
	case existing > 0 && dim > 0 && existing != dim:
		db.Close()
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("pgvector table dimension %d does not match embedding dimension %d", existing, dim))
	case existing > 0:
		idx.dim = existing
	case dim > 0:
		if err := idx.createTable(ctx, dim); err != nil {
			db.Close()
			return nil, err
		}
	}
	return idx, nil
}

func (p *PGVectorIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	dim := len(entries[0].Vector)
	for i, e := range entries {
		if len(e.Vector) != dim || dim == 0 {
			return apperrors.InvalidArgument("vector dimension mismatch").WithContext("entry", i)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dim == 0 {
		if err := p.createTable(ctx, dim); err != nil {
			return err
		}
	} else if p.dim != dim {
		return apperrors.InvalidArgument(fmt.Sprintf("vector dimension %d does not match index dimension %d", dim, p.dim))
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.VectorBackendUnavailable("begin pgvector insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+p.table+` (text, source, chunk_id, embedding) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return apperrors.VectorBackendUnavailable("prepare pgvector insert", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Text, e.Source, e.ChunkID, pgvector.NewVector(e.Vector)); err != nil {
			return apperrors.VectorBackendUnavailable("pgvector insert failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.VectorBackendUnavailable("commit pgvector insert", err)
	}
	return nil
}

func (p *PGVectorIndex) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	dim := p.Dimension()
	if topK <= 0 || dim == 0 {
		return []Hit{}, nil
	}
	if len(query) != dim {
		return nil, apperrors.InvalidArgument("query dimension mismatch").
			WithContext("expected", dim).
			WithContext("got", len(query))
	}

	// <#> is the negative inner product, so ascending order is best-first.
	rows, err := p.db.QueryContext(ctx, `
		SELECT text, source, chunk_id, -(embedding <#> $1) AS score
		FROM `+p.table+`
		ORDER BY embedding <#> $1, id
		LIMIT $2`, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, apperrors.VectorBackendUnavailable("pgvector search failed", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		var score float64
		if err := rows.Scan(&h.Entry.Text, &h.Entry.Source, &h.Entry.ChunkID, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan pgvector hit")
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.VectorBackendUnavailable("pgvector search failed", err)
	}
	return hits, nil
}

func (p *PGVectorIndex) Count(ctx context.Context) (int, error) {
	if p.Dimension() == 0 {
		return 0, nil
	}
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+p.table).Scan(&n); err != nil {
		return 0, apperrors.VectorBackendUnavailable("pgvector count failed", err)
	}
	return n, nil
}

func (p *PGVectorIndex) Dimension() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dim
}

func (p *PGVectorIndex) Backend() string {
	return "pgvector"
}

func (p *PGVectorIndex) Close() error {
	return p.db.Close()
}

// createTable must be called with p.mu held or before the index is shared.
func (p *PGVectorIndex) createTable(ctx context.Context, dim int) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			embedding vector(%d) NOT NULL
		)`, p.table, dim)
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return apperrors.VectorBackendUnavailable("create pgvector table", err)
	}
	p.dim = dim
	return nil
}

// tableDimension returns the declared vector dimension, or 0 if the table does not exist.
func (p *PGVectorIndex) tableDimension(ctx context.Context) (int, error) {
	var dim sql.NullInt64
	err := p.db.QueryRowContext(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		WHERE c.relname = $1 AND a.attname = 'embedding' AND NOT a.attisdropped`, p.table).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.VectorBackendUnavailable("inspect pgvector table", err)
	}
	return int(dim.Int64), nil
}
