package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/bilens/internal/profile"
	"github.com/hrygo/bilens/store"
	"github.com/hrygo/bilens/store/db"
)

// GetPostgresDSN returns the DSN for PostgreSQL tests, skipping the test when none is configured.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("BILENS_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("BILENS_POSTGRES_TEST_DSN not set")
	}
	return dsn
}

// NewTestingStore opens a migrated store for driver ("sqlite" or "postgres").
// SQLite stores live in a temporary directory.
func NewTestingStore(ctx context.Context, t *testing.T, driver string) *store.Store {
	t.Helper()
	dataDir := t.TempDir()
	p := &profile.Profile{
		Mode:   "demo",
		Data:   dataDir,
		Driver: driver,
	}
	switch driver {
	case "sqlite":
		p.DSN = filepath.Join(dataDir, "bilens_test.db")
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		t.Fatalf("unknown driver %q", driver)
	}

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	s := store.New(dbDriver, p)
	t.Cleanup(func() {
		if driver == "postgres" {
			_, _ = dbDriver.GetDB().ExecContext(context.Background(), "DROP TABLE IF EXISTS sales, support")
		}
		s.Close()
	})

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return s
}
