package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/bilens/store"
)

var seedNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, "sqlite")

	require.NoError(t, ts.Migrate(ctx))
	n, err := ts.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeedGeneratesAndSnapshots(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, "sqlite")
	dir := t.TempDir()

	result, err := ts.Seed(ctx, dir, seedNow)
	require.NoError(t, err)
	assert.Equal(t, 24*3*3, result.SalesRows)
	assert.Equal(t, store.SeedSourceGenerated, result.SalesSource)
	assert.Equal(t, 600, result.TicketRows)
	assert.Equal(t, store.SeedSourceGenerated, result.TicketsSource)

	assert.FileExists(t, filepath.Join(dir, store.SalesCSV))
	assert.FileExists(t, filepath.Join(dir, store.TicketsCSV))

	// A second seed leaves populated tables alone.
	result, err = ts.Seed(ctx, dir, seedNow)
	require.NoError(t, err)
	assert.Equal(t, store.SeedSourceExisting, result.SalesSource)
	assert.Equal(t, store.SeedSourceExisting, result.TicketsSource)
	n, err := ts.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 216, n)
}

func TestSeedLoadsSnapshot(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, "sqlite")
	dir := t.TempDir()

	sales := "date,region,product,sales,cost\n" +
		"2025-01-01,Norte,Alpha,5000,3000\n" +
		"2025-02-01,Sur,Beta,4000,2000\n"
	tickets := "created_at,resolved_at,priority,resolution_hours\n" +
		"2025-01-03 00:00:00,2025-01-03 10:00:00,high,10.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.SalesCSV), []byte(sales), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.TicketsCSV), []byte(tickets), 0o644))

	result, err := ts.Seed(ctx, dir, seedNow)
	require.NoError(t, err)
	assert.Equal(t, store.SeedSourceCSV, result.SalesSource)
	assert.Equal(t, 2, result.SalesRows)
	assert.Equal(t, 1, result.TicketRows)

	res, err := ts.Query(ctx, "SELECT SUM(sales) AS total_sales, SUM(sales-cost) AS profit FROM sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"total_sales", "profit"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 9000, res.Rows[0]["total_sales"])
	assert.EqualValues(t, 4000, res.Rows[0]["profit"])
}

func TestSeedRejectsBadSnapshot(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, "sqlite")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.SalesCSV), []byte("when,where\n1,2\n"), 0o644))

	_, err := ts.Seed(ctx, dir, seedNow)
	assert.Error(t, err)
}

func TestMonthBucketQuery(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, "sqlite")
	require.NoError(t, ts.InsertSales(ctx, []*store.Sale{
		{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Region: "Norte", Product: "Alpha", Sales: 10, Cost: 5},
		{Date: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), Region: "Sur", Product: "Alpha", Sales: 5, Cost: 1},
		{Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Region: "Norte", Product: "Beta", Sales: 7, Cost: 2},
	}))

	query := "SELECT " + ts.Dialect().MonthBucket("date") + " m, SUM(sales) s FROM sales GROUP BY 1 ORDER BY 1"
	res, err := ts.Query(ctx, query)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2025-01-01", res.Rows[0]["m"])
	assert.EqualValues(t, 15, res.Rows[0]["s"])
	assert.Equal(t, "2025-02-01", res.Rows[1]["m"])
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, "postgres")
	assert.Equal(t, store.DialectPostgres, ts.Dialect())

	_, err := ts.Seed(ctx, t.TempDir(), seedNow)
	require.NoError(t, err)

	res, err := ts.Query(ctx, "SELECT "+ts.Dialect().MonthBucket("date")+" m, SUM(sales) s FROM sales GROUP BY 1 ORDER BY 1")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 24)
}
