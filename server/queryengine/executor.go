// Package queryengine answers the fixed analytics intents with parameterless SQL.
package queryengine

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/plugin/ai/timeout"
	"github.com/hrygo/bilens/store"
)

// Supported intents.
const (
	IntentSalesTotal     = "sales_total"
	IntentSalesByRegion  = "sales_by_region"
	IntentSalesByProduct = "sales_by_product"
	IntentSalesTrend     = "sales_trend_m"
	IntentSupportKPIs    = "support_kpis"
)

// Querier runs read-only SQL against the analytics tables.
type Querier interface {
	Query(ctx context.Context, query string) (*store.QueryResult, error)
	Dialect() store.Dialect
}

// Result is the outcome of one intent. SQL is empty and Rows has no
// elements when the intent is unknown.
type Result struct {
	Intent  string           `json:"intent"`
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"result"`
}

// Executor maps intents to SQL and runs it.
type Executor struct {
	db      Querier
	queries map[string]string
}

// NewExecutor builds the SQL for every intent in db's dialect.
func NewExecutor(db Querier) *Executor {
	return &Executor{db: db, queries: BuildQueries(db.Dialect())}
}

// BuildQueries returns the SQL text of every supported intent.
func BuildQueries(dialect store.Dialect) map[string]string {
	return map[string]string{
		IntentSalesTotal:     "SELECT SUM(sales) AS total_sales, SUM(sales-cost) AS profit FROM sales",
		IntentSalesByRegion:  "SELECT region, SUM(sales) s FROM sales GROUP BY 1 ORDER BY s DESC",
		IntentSalesByProduct: "SELECT product, SUM(sales) s FROM sales GROUP BY 1 ORDER BY s DESC",
		IntentSalesTrend:     "SELECT " + dialect.MonthBucket("date") + " m, SUM(sales) s FROM sales GROUP BY 1 ORDER BY 1",
		IntentSupportKPIs:    "SELECT COUNT(*) tickets, AVG(resolution_hours) avg_h FROM support",
	}
}

// SQL returns the statement for intent, or "" when the intent is unknown.
func (e *Executor) SQL(intent string) string {
	return e.queries[intent]
}

// Execute runs the statement for intent.
func (e *Executor) Execute(ctx context.Context, intent string) (*Result, error) {
	query, ok := e.queries[intent]
	if !ok {
		return &Result{Intent: intent, Columns: []string{}, Rows: []map[string]any{}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout.QueryTimeout)
	defer cancel()

	start := time.Now()
	res, err := e.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.QueryFailed("analytics query failed", err).
			WithContext("intent", intent)
	}

	slog.Debug("analytics query executed",
		"intent", intent,
		"rows", len(res.Rows),
		"latency_ms", time.Since(start).Milliseconds())
	return &Result{Intent: intent, SQL: query, Columns: res.Columns, Rows: res.Rows}, nil
}
