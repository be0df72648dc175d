// Package query derives filtered views of a dataset from free-text search.
package query

import (
	"strings"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

// Terms splits a search string into lowercase, whitespace-separated terms.
func Terms(filterValue string) []string {
	return strings.Fields(strings.ToLower(filterValue))
}

// Filter returns the rows where every term is a substring of at least one
// selected column's stringified, lowercased value. Terms are AND-combined,
// columns OR-combined. Null cells never match. With no terms the input is
// returned unchanged.
func Filter(filterValue string, columns []string, rows table.Dataset) table.Dataset {
	terms := Terms(filterValue)
	if len(terms) == 0 {
		return rows
	}
	out := make(table.Dataset, 0, len(rows))
	for _, r := range rows {
		if Matches(r, terms, columns) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether r satisfies all terms over columns.
func Matches(r table.Row, terms []string, columns []string) bool {
	// lowercase each cell once per row
	cells := make([]string, 0, len(columns))
	for _, c := range columns {
		v, ok := r.Get(c)
		if !ok || v.IsNull() {
			continue
		}
		cells = append(cells, strings.ToLower(v.String()))
	}
	for _, term := range terms {
		found := false
		for _, cell := range cells {
			if strings.Contains(cell, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
