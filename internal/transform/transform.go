// Package transform implements the dataset edits that are committed to the
// store's history: sort, delete column, combine columns and value filter.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

// Operation type tags recorded in history.
const (
	TypeLoad    = "load"
	TypeSort    = "sort"
	TypeDelete  = "delete"
	TypeCombine = "combine"
	TypeFilter  = "filter"
)

var (
	ErrUnknownColumn    = errors.New("unknown column")
	ErrNotNumerical     = errors.New("column is not numerical")
	ErrNoNumericPeers   = errors.New("no other numerical columns to combine")
	ErrEmptyThreshold   = errors.New("filter value is empty")
	ErrInvalidThreshold = errors.New("filter value is not a number")
	ErrInvalidDirection = errors.New("invalid sort direction")
)

// Result is a computed edit, ready to be committed. Headers is nil when the
// header set is unchanged and should be inferred.
type Result struct {
	Type        string
	Description string
	Rows        table.Dataset
	Headers     []string
}

// Direction is a sort order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// ParseDirection accepts asc/ascending and desc/descending, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("%w %q (use asc or desc)", ErrInvalidDirection, s)
	}
}

func requireColumn(p *analysis.ProcessedData, column string) error {
	if !p.HasColumn(column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	return nil
}

// Sort orders rows by column. A numerical column compares its numbers
// numerically and places every other cell after them, in both directions.
// Any other column compares stringified cells. The sort is stable.
func Sort(p *analysis.ProcessedData, column string, dir Direction) (Result, error) {
	if err := requireColumn(p, column); err != nil {
		return Result{}, err
	}
	numeric := false
	if k, _ := p.Summary.KindOf(column); k == analysis.Numerical {
		numeric = true
	}
	rows := make(table.Dataset, len(p.Rows))
	copy(rows, p.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Value(column), rows[j].Value(column)
		if numeric {
			x, xok := a.Float()
			y, yok := b.Float()
			if xok != yok {
				return xok
			}
			if xok {
				if dir == Descending {
					return x > y
				}
				return x < y
			}
		}
		c := strings.Compare(a.String(), b.String())
		if dir == Descending {
			return c > 0
		}
		return c < 0
	})
	return Result{
		Type:        TypeSort,
		Description: fmt.Sprintf("Sorted %s %s", column, dir),
		Rows:        rows,
	}, nil
}

// DeleteColumn drops column from every row and from the headers.
func DeleteColumn(p *analysis.ProcessedData, column string) (Result, error) {
	if err := requireColumn(p, column); err != nil {
		return Result{}, err
	}
	rows := make(table.Dataset, len(p.Rows))
	for i, r := range p.Rows {
		rows[i] = r.Without(column)
	}
	headers := make([]string, 0, len(p.Headers))
	for _, h := range p.Headers {
		if h != column {
			headers = append(headers, h)
		}
	}
	return Result{
		Type:        TypeDelete,
		Description: fmt.Sprintf("Deleted column %s", column),
		Rows:        rows,
		Headers:     headers,
	}, nil
}

// CombinedName is the column created by CombineColumns for base.
func CombinedName(base string) string { return base + "_combined" }

// CombineColumns adds <base>_combined holding base plus every other numerical
// column per row. Non-numeric or missing cells count as zero.
func CombineColumns(p *analysis.ProcessedData, base string) (Result, error) {
	if err := requireColumn(p, base); err != nil {
		return Result{}, err
	}
	if k, _ := p.Summary.KindOf(base); k != analysis.Numerical {
		return Result{}, fmt.Errorf("%w: %q", ErrNotNumerical, base)
	}
	name := CombinedName(base)
	var peers []string
	for _, c := range p.Summary.NumericalColumns {
		if c != base && c != name {
			peers = append(peers, c)
		}
	}
	if len(peers) == 0 {
		return Result{}, ErrNoNumericPeers
	}

	rows := make(table.Dataset, len(p.Rows))
	for i, r := range p.Rows {
		sum := numOrZero(r.Value(base))
		for _, c := range peers {
			sum += numOrZero(r.Value(c))
		}
		rows[i] = r.With(name, table.Number(sum))
	}
	headers := append([]string(nil), p.Headers...)
	if !p.HasColumn(name) {
		headers = append(headers, name)
	}
	return Result{
		Type:        TypeCombine,
		Description: fmt.Sprintf("Combined %s with numerical columns", base),
		Rows:        rows,
		Headers:     headers,
	}, nil
}

func numOrZero(v table.Value) float64 {
	if f, ok := v.Float(); ok {
		return f
	}
	return 0
}

// FilterValues keeps rows matching threshold in column. Numerical columns
// keep values >= the parsed threshold; other columns keep values containing
// threshold, case-insensitively.
func FilterValues(p *analysis.ProcessedData, column, threshold string) (Result, error) {
	if err := requireColumn(p, column); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(threshold) == "" {
		return Result{}, ErrEmptyThreshold
	}
	var keep func(table.Value) bool
	if k, _ := p.Summary.KindOf(column); k == analysis.Numerical {
		floor, err := strconv.ParseFloat(strings.TrimSpace(threshold), 64)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %q", ErrInvalidThreshold, threshold)
		}
		keep = func(v table.Value) bool {
			f, ok := v.Float()
			return ok && f >= floor
		}
	} else {
		needle := strings.ToLower(threshold)
		keep = func(v table.Value) bool {
			return !v.IsNull() && strings.Contains(strings.ToLower(v.String()), needle)
		}
	}
	rows := make(table.Dataset, 0, len(p.Rows))
	for _, r := range p.Rows {
		if keep(r.Value(column)) {
			rows = append(rows, r)
		}
	}
	return Result{
		Type:        TypeFilter,
		Description: fmt.Sprintf("Filtered %s with value %s", column, threshold),
		Rows:        rows,
		Headers:     append([]string(nil), p.Headers...),
	}, nil
}
