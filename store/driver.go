package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect identifies the SQL flavour spoken by a driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// MonthBucket returns an expression truncating the date column to the first day of its month.
func (d Dialect) MonthBucket(column string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("date_trunc('month', %s)", column)
	}
	return fmt.Sprintf("strftime('%%Y-%%m-01', %s)", column)
}

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Dialect() Dialect

	IsInitialized(ctx context.Context) (bool, error)

	// Query runs a read-only statement and returns every row.
	Query(ctx context.Context, query string) (*QueryResult, error)

	// Sales model related methods.
	InsertSales(ctx context.Context, sales []*Sale) error
	CountSales(ctx context.Context) (int, error)

	// Ticket model related methods.
	InsertTickets(ctx context.Context, tickets []*Ticket) error
	CountTickets(ctx context.Context) (int, error)
}
