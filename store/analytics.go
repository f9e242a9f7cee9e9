package store

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Sale is one month of sales for a region and product.
type Sale struct {
	Date    time.Time
	Region  string
	Product string
	Sales   int64
	Cost    int64
}

// Ticket is a resolved support ticket.
type Ticket struct {
	CreatedAt       time.Time
	ResolvedAt      time.Time
	Priority        string
	ResolutionHours float64
}

// QueryResult holds rows as column name to value maps.
// Columns keeps the select-list order that maps lose.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// ScanRows drains rows into a QueryResult, normalizing driver-specific values.
func ScanRows(rows *sql.Rows) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read columns")
	}

	result := &QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate rows")
	}
	return result, nil
}

// normalizeValue turns numeric text into numbers and dates into ISO strings.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		s := string(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	default:
		return v
	}
}
