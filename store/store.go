package store

import (
	"context"

	"github.com/hrygo/bilens/internal/profile"
)

// Store provides access to the analytics tables.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Dialect() Dialect {
	return s.driver.Dialect()
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Query(ctx context.Context, query string) (*QueryResult, error) {
	return s.driver.Query(ctx, query)
}

func (s *Store) InsertSales(ctx context.Context, sales []*Sale) error {
	return s.driver.InsertSales(ctx, sales)
}

func (s *Store) CountSales(ctx context.Context) (int, error) {
	return s.driver.CountSales(ctx)
}

func (s *Store) InsertTickets(ctx context.Context, tickets []*Ticket) error {
	return s.driver.InsertTickets(ctx, tickets)
}

func (s *Store) CountTickets(ctx context.Context) (int, error) {
	return s.driver.CountTickets(ctx)
}
