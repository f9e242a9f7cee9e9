package ingest

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	serverai "github.com/hrygo/bilens/server/ai"
)

// InspectionFile is the SQLite file holding the last run's chunks.
const InspectionFile = "chunks.db"

// InspectionRow is one row of the chunk table.
type InspectionRow struct {
	Text    string
	Source  string
	ChunkID int
}

// WriteInspection replaces the chunk table at path with chunks.
func WriteInspection(ctx context.Context, path string, chunks []serverai.ChunkDraft) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "failed to open inspection db %s", path)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS `chunk`",
		"CREATE TABLE `chunk` (`text` TEXT NOT NULL, `source` TEXT NOT NULL, `chunk_id` INTEGER NOT NULL)",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to reset chunk table")
		}
	}

	insert, err := tx.PrepareContext(ctx, "INSERT INTO `chunk` (`text`, `source`, `chunk_id`) VALUES (?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer insert.Close()
	for _, c := range chunks {
		if _, err := insert.ExecContext(ctx, c.Text, c.Source, c.ChunkID); err != nil {
			return errors.Wrap(err, "failed to insert chunk")
		}
	}
	return tx.Commit()
}

// ReadInspection returns the chunk table at path in insertion order.
func ReadInspection(ctx context.Context, path string) ([]InspectionRow, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open inspection db %s", path)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT `text`, `source`, `chunk_id` FROM `chunk` ORDER BY rowid")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read chunk table")
	}
	defer rows.Close()

	var out []InspectionRow
	for rows.Next() {
		var r InspectionRow
		if err := rows.Scan(&r.Text, &r.Source, &r.ChunkID); err != nil {
			return nil, errors.Wrap(err, "failed to scan chunk")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
