package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/bilens/internal/profile"
	"github.com/hrygo/bilens/store"
	"github.com/hrygo/bilens/store/db/postgres"
	"github.com/hrygo/bilens/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// The analytics store supports SQLite (default) and PostgreSQL.
// Every fixed analytics query must run unchanged on both, apart from the
// month bucket expression provided by store.Dialect.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
