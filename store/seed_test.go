package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSales(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	sales := GenerateSales(now)
	require.Len(t, sales, 216)

	assert.Equal(t, time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC), sales[0].Date)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), sales[len(sales)-1].Date)
	for _, s := range sales {
		assert.GreaterOrEqual(t, s.Sales, int64(1000))
		assert.GreaterOrEqual(t, float64(s.Cost), float64(s.Sales)*0.45-1)
		assert.LessOrEqual(t, float64(s.Cost), float64(s.Sales)*0.70)
	}

	assert.Equal(t, sales, GenerateSales(now), "generation must be deterministic")
}

func TestGenerateTickets(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	tickets := GenerateTickets(now)
	require.Len(t, tickets, 600)

	counts := map[string]int{}
	for _, tk := range tickets {
		counts[tk.Priority]++
		assert.GreaterOrEqual(t, tk.ResolutionHours, 2.0)
		assert.Less(t, tk.ResolutionHours, 120.0)
		assert.Equal(t, tk.ResolutionHours, tk.ResolvedAt.Sub(tk.CreatedAt).Hours())
	}
	assert.Greater(t, counts["low"], counts["medium"])
	assert.Greater(t, counts["medium"], counts["high"])

	assert.Equal(t, tickets, GenerateTickets(now))
}

func TestSplitSQL(t *testing.T) {
	sql := `-- comment
CREATE TABLE a (x TEXT CHECK (x IN ('a;b')));

CREATE INDEX i ON a (x);
`
	stmts := splitSQL(sql)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "'a;b'")
	assert.Equal(t, "CREATE INDEX i ON a (x)", stmts[1])
}

func TestDialectMonthBucket(t *testing.T) {
	assert.Equal(t, "strftime('%Y-%m-01', date)", DialectSQLite.MonthBucket("date"))
	assert.Equal(t, "date_trunc('month', date)", DialectPostgres.MonthBucket("date"))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, int64(42), normalizeValue([]byte("42")))
	assert.Equal(t, 4.5, normalizeValue([]byte("4.5")))
	assert.Equal(t, "Norte", normalizeValue([]byte("Norte")))
	assert.Equal(t, "2025-01-01", normalizeValue(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-01-01 10:30:00", normalizeValue(time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)))
	assert.Nil(t, normalizeValue(nil))
}
