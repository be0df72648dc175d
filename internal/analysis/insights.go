package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultBins is the histogram bin count used when none is requested.
const DefaultBins = 20

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotNumerical  = errors.New("column is not numerical")
)

// Correlation is one cell of the pairwise matrix. Coefficients are nil when
// fewer than two complete pairs exist or either side has zero variance.
type Correlation struct {
	X        string   `json:"x"`
	Y        string   `json:"y"`
	Pairs    int      `json:"pairs"`
	Pearson  *float64 `json:"pearson"`
	Spearman *float64 `json:"spearman"`
}

// CorrelationMatrix covers every ordered pair of numerical columns.
type CorrelationMatrix struct {
	Columns []string        `json:"columns"`
	Cells   [][]Correlation `json:"cells"`
}

// Correlations computes Pearson and Spearman coefficients between every pair
// of numerical columns over rows where both cells hold valid numbers.
func Correlations(p *ProcessedData) CorrelationMatrix {
	cols := append([]string{}, p.Summary.NumericalColumns...)
	m := CorrelationMatrix{Columns: cols, Cells: make([][]Correlation, len(cols))}
	for i, x := range cols {
		m.Cells[i] = make([]Correlation, len(cols))
		for j, y := range cols {
			if j < i {
				c := m.Cells[j][i]
				c.X, c.Y = x, y
				m.Cells[i][j] = c
				continue
			}
			m.Cells[i][j] = correlate(p, x, y)
		}
	}
	return m
}

func correlate(p *ProcessedData, x, y string) Correlation {
	var xs, ys []float64
	for _, r := range p.Rows {
		a, ok := r.Value(x).Float()
		if !ok || math.IsInf(a, 0) {
			continue
		}
		b, ok := r.Value(y).Float()
		if !ok || math.IsInf(b, 0) {
			continue
		}
		xs = append(xs, a)
		ys = append(ys, b)
	}
	c := Correlation{X: x, Y: y, Pairs: len(xs)}
	if len(xs) < 2 {
		return c
	}
	c.Pearson = finite(stat.Correlation(xs, ys, nil))
	c.Spearman = finite(stat.Correlation(ranks(xs), ranks(ys), nil))
	return c
}

// ranks assigns 1-based ranks, averaging ties.
func ranks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })
	out := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && v[idx[j]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		i = j
	}
	return out
}

// Bin is one equal-width histogram bucket. X1 is exclusive except for the
// last bin, which also holds the maximum.
type Bin struct {
	X0    float64 `json:"x0"`
	X1    float64 `json:"x1"`
	Mid   float64 `json:"mid"`
	Count int     `json:"count"`
}

// Histogram buckets the finite values of a numerical column into bins
// equal-width bins spanning [min, max]. A constant column yields one bin.
func Histogram(p *ProcessedData, column string, bins int) ([]Bin, error) {
	if !p.HasColumn(column) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	if k, _ := p.Summary.KindOf(column); k != Numerical {
		return nil, fmt.Errorf("%w: %q", ErrNotNumerical, column)
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	var vals []float64
	for _, r := range p.Rows {
		if f, ok := r.Value(column).Float(); ok && !math.IsInf(f, 0) {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return []Bin{}, nil
	}
	sort.Float64s(vals)
	lo, hi := vals[0], vals[len(vals)-1]
	if lo == hi || math.IsInf(hi-lo, 0) {
		return []Bin{{X0: lo, X1: hi, Mid: lo/2 + hi/2, Count: len(vals)}}, nil
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram treats the upper divider as exclusive.
	upper := dividers[bins]
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, vals, nil)

	out := make([]Bin, bins)
	for i := range out {
		x1 := dividers[i+1]
		if i == bins-1 {
			x1 = upper
		}
		out[i] = Bin{X0: dividers[i], X1: x1, Mid: dividers[i]/2 + x1/2, Count: int(counts[i])}
	}
	return out, nil
}
