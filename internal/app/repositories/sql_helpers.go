package repositories

import "strings"

// joinColumns renders a column list for RETURNING clauses
func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
