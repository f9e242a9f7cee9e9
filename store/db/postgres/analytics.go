package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/bilens/store"
)

func (d *DB) InsertSales(ctx context.Context, sales []*store.Sale) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("sales", "date", "region", "product", "sales", "cost"))
	if err != nil {
		return errors.Wrap(err, "failed to prepare copy")
	}
	for _, s := range sales {
		if _, err := stmt.ExecContext(ctx, s.Date.Format(time.DateOnly), s.Region, s.Product, s.Sales, s.Cost); err != nil {
			stmt.Close()
			return errors.Wrap(err, "failed to copy sale")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.Wrap(err, "failed to flush sales copy")
	}
	if err := stmt.Close(); err != nil {
		return errors.Wrap(err, "failed to close copy")
	}
	return tx.Commit()
}

func (d *DB) CountSales(ctx context.Context) (int, error) {
	return d.count(ctx, "SELECT COUNT(*) FROM sales")
}

func (d *DB) InsertTickets(ctx context.Context, tickets []*store.Ticket) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("support", "created_at", "resolved_at", "priority", "resolution_hours"))
	if err != nil {
		return errors.Wrap(err, "failed to prepare copy")
	}
	for _, t := range tickets {
		if _, err := stmt.ExecContext(ctx, t.CreatedAt, t.ResolvedAt, t.Priority, t.ResolutionHours); err != nil {
			stmt.Close()
			return errors.Wrap(err, "failed to copy ticket")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.Wrap(err, "failed to flush tickets copy")
	}
	if err := stmt.Close(); err != nil {
		return errors.Wrap(err, "failed to close copy")
	}
	return tx.Commit()
}

func (d *DB) CountTickets(ctx context.Context) (int, error) {
	return d.count(ctx, "SELECT COUNT(*) FROM support")
}

func (d *DB) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count rows")
	}
	return n, nil
}
