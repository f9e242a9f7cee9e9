package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/bilens/store"
)

func (d *DB) InsertSales(ctx context.Context, sales []*store.Sale) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO `sales` (`date`, `region`, `product`, `sales`, `cost`) VALUES ("+placeholders(5)+")")
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, s := range sales {
		if _, err := stmt.ExecContext(ctx, s.Date.Format(time.DateOnly), s.Region, s.Product, s.Sales, s.Cost); err != nil {
			return errors.Wrap(err, "failed to insert sale")
		}
	}
	return tx.Commit()
}

func (d *DB) CountSales(ctx context.Context) (int, error) {
	return d.count(ctx, "SELECT COUNT(*) FROM `sales`")
}

func (d *DB) InsertTickets(ctx context.Context, tickets []*store.Ticket) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO `support` (`created_at`, `resolved_at`, `priority`, `resolution_hours`) VALUES ("+placeholders(4)+")")
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, t := range tickets {
		if _, err := stmt.ExecContext(ctx, t.CreatedAt.Format(time.DateTime), t.ResolvedAt.Format(time.DateTime), t.Priority, t.ResolutionHours); err != nil {
			return errors.Wrap(err, "failed to insert ticket")
		}
	}
	return tx.Commit()
}

func (d *DB) CountTickets(ctx context.Context) (int, error) {
	return d.count(ctx, "SELECT COUNT(*) FROM `support`")
}

func (d *DB) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count rows")
	}
	return n, nil
}
