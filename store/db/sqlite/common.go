package sqlite

import "strings"

// placeholders returns n comma separated SQLite placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
