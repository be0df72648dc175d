package analysis

import (
	"context"
	"errors"
	"runtime"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

// ErrNoData is returned when there are no rows to aggregate.
var ErrNoData = errors.New("no data")

// Kind is the classification assigned to a column.
type Kind string

const (
	Numerical   Kind = "numerical"
	Categorical Kind = "categorical"
)

// Options controls classification and aggregation.
type Options struct {
	// SampleSize is how many leading rows are inspected to classify a column.
	SampleSize int
	// NumericThreshold is the share of sampled cells that must hold valid
	// numbers for a column to be numerical.
	NumericThreshold float64
	// TopValues bounds the MostCommon list per column.
	TopValues int
	// ChunkSize is the number of rows folded between yields.
	ChunkSize int
	// OnProgress, if set, is called after each chunk with rows done and total.
	OnProgress func(done, total int)
}

// DefaultOptions returns the stock classification policy.
func DefaultOptions() Options {
	return Options{
		SampleSize:       1000,
		NumericThreshold: 0.7,
		TopValues:        5,
		ChunkSize:        10000,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.SampleSize <= 0 {
		o.SampleSize = d.SampleSize
	}
	if o.NumericThreshold <= 0 || o.NumericThreshold > 1 {
		o.NumericThreshold = d.NumericThreshold
	}
	if o.TopValues <= 0 {
		o.TopValues = d.TopValues
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	return o
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnStats holds the derived statistics for one column. Numeric fields
// are nil unless the column is numerical and has at least one valid value;
// StdDev additionally needs two.
type ColumnStats struct {
	Count        int          `json:"count,omitempty"`
	Missing      int          `json:"missing"`
	Min          *float64     `json:"min,omitempty"`
	Max          *float64     `json:"max,omitempty"`
	Mean         *float64     `json:"mean,omitempty"`
	Median       *float64     `json:"median,omitempty"`
	StdDev       *float64     `json:"stdDev,omitempty"`
	Q1           *float64     `json:"q1,omitempty"`
	Q3           *float64     `json:"q3,omitempty"`
	UniqueValues int          `json:"uniqueValues"`
	MostCommon   []ValueCount `json:"mostCommon"`
}

// DataSummary describes a dataset's shape and per-column statistics.
type DataSummary struct {
	RowCount           int                    `json:"rowCount"`
	ColumnCount        int                    `json:"columnCount"`
	Headers            []string               `json:"headers"`
	NumericalColumns   []string               `json:"numericalColumns"`
	CategoricalColumns []string               `json:"categoricalColumns"`
	ColumnStats        map[string]ColumnStats `json:"columnStats"`
}

// KindOf returns the classification of column, and false if it is unknown.
func (s DataSummary) KindOf(column string) (Kind, bool) {
	for _, c := range s.NumericalColumns {
		if c == column {
			return Numerical, true
		}
	}
	for _, c := range s.CategoricalColumns {
		if c == column {
			return Categorical, true
		}
	}
	return "", false
}

// ProcessedData is rows plus their derived summary. Treat it as immutable.
type ProcessedData struct {
	Rows    table.Dataset `json:"rows"`
	Headers []string      `json:"headers"`
	Summary DataSummary   `json:"summary"`
}

// HasColumn reports whether column is one of the headers.
func (p *ProcessedData) HasColumn(column string) bool {
	for _, h := range p.Headers {
		if h == column {
			return true
		}
	}
	return false
}

// Aggregate classifies and summarizes rows using the first row's key order
// as headers.
func Aggregate(ctx context.Context, rows table.Dataset, opt Options) (*ProcessedData, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return AggregateColumns(ctx, rows, rows.Headers(), opt)
}

// AggregateColumns is Aggregate with an explicit header order. Cells missing
// from a row are treated as null.
func AggregateColumns(ctx context.Context, rows table.Dataset, headers []string, opt Options) (*ProcessedData, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	opt = opt.normalized()
	headers = append([]string(nil), headers...)

	kinds := Classify(rows, headers, opt)

	total := newAccumulator(headers, kinds)
	for start := 0; start < len(rows); start += opt.ChunkSize {
		end := start + opt.ChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		part := newAccumulator(headers, kinds)
		for _, r := range rows[start:end] {
			part.add(r)
		}
		total.merge(part)

		if opt.OnProgress != nil {
			opt.OnProgress(end, len(rows))
		}
		if end < len(rows) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			runtime.Gosched()
		}
	}

	sum := DataSummary{
		RowCount:           len(rows),
		ColumnCount:        len(headers),
		Headers:            headers,
		NumericalColumns:   []string{},
		CategoricalColumns: []string{},
		ColumnStats:        make(map[string]ColumnStats, len(headers)),
	}
	for i, h := range headers {
		if kinds[i] == Numerical {
			sum.NumericalColumns = append(sum.NumericalColumns, h)
		} else {
			sum.CategoricalColumns = append(sum.CategoricalColumns, h)
		}
		sum.ColumnStats[h] = total.cols[i].finalize(opt.TopValues)
	}
	return &ProcessedData{Rows: rows, Headers: headers, Summary: sum}, nil
}

// Classify tags each header by sampling the first SampleSize rows.
func Classify(rows table.Dataset, headers []string, opt Options) []Kind {
	opt = opt.normalized()
	n := len(rows)
	if n > opt.SampleSize {
		n = opt.SampleSize
	}
	kinds := make([]Kind, len(headers))
	for i, h := range headers {
		numeric := 0
		for _, r := range rows[:n] {
			if _, ok := r.Value(h).Float(); ok {
				numeric++
			}
		}
		if n > 0 && float64(numeric) >= opt.NumericThreshold*float64(n) {
			kinds[i] = Numerical
		} else {
			kinds[i] = Categorical
		}
	}
	return kinds
}
