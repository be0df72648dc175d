package analysis

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

// accumulator folds rows into per-column partial aggregates. Partials merge
// associatively, so chunk boundaries never change the result.
type accumulator struct {
	headers []string
	cols    []*colAcc
}

type colAcc struct {
	numeric bool
	missing int
	n       int
	min     float64
	max     float64
	values  []float64
	// frequency table in first-seen order
	counts map[string]int
	order  []string
}

func newAccumulator(headers []string, kinds []Kind) *accumulator {
	a := &accumulator{headers: headers, cols: make([]*colAcc, len(headers))}
	for i := range headers {
		a.cols[i] = &colAcc{
			numeric: kinds[i] == Numerical,
			min:     math.Inf(1),
			max:     math.Inf(-1),
			counts:  make(map[string]int),
		}
	}
	return a
}

func (a *accumulator) add(r table.Row) {
	for i, h := range a.headers {
		c := a.cols[i]
		v := r.Value(h)
		if v.IsNull() {
			c.missing++
			continue
		}
		key := v.String()
		if _, seen := c.counts[key]; !seen {
			c.order = append(c.order, key)
		}
		c.counts[key]++
		if !c.numeric {
			continue
		}
		x, ok := v.Float()
		if !ok {
			continue
		}
		c.n++
		if x < c.min {
			c.min = x
		}
		if x > c.max {
			c.max = x
		}
		c.values = append(c.values, x)
	}
}

// merge folds o, which must cover later rows than a, into a.
func (a *accumulator) merge(o *accumulator) {
	for i, c := range a.cols {
		oc := o.cols[i]
		c.missing += oc.missing
		c.n += oc.n
		if oc.min < c.min {
			c.min = oc.min
		}
		if oc.max > c.max {
			c.max = oc.max
		}
		c.values = append(c.values, oc.values...)
		for _, k := range oc.order {
			if _, seen := c.counts[k]; !seen {
				c.order = append(c.order, k)
			}
			c.counts[k] += oc.counts[k]
		}
	}
}

func (c *colAcc) finalize(topN int) ColumnStats {
	s := ColumnStats{
		Missing:      c.missing,
		UniqueValues: len(c.order),
		MostCommon:   mostCommon(c.order, c.counts, topN),
	}
	if !c.numeric || c.n == 0 {
		return s
	}
	s.Count = c.n
	s.Min = finite(c.min)
	s.Max = finite(c.max)
	if mean, err := stats.Mean(c.values); err == nil {
		s.Mean = finite(mean)
	}
	if median, err := stats.Median(c.values); err == nil {
		s.Median = finite(median)
	}
	if c.n > 1 {
		if sd, err := stats.StandardDeviationSample(c.values); err == nil {
			s.StdDev = finite(sd)
		}
	}
	sorted := make([]float64, len(c.values))
	copy(sorted, c.values)
	sort.Float64s(sorted)
	s.Q1 = finite(quantile(sorted, 0.25))
	s.Q3 = finite(quantile(sorted, 0.75))
	return s
}

// mostCommon orders by descending count; ties keep first-seen order.
func mostCommon(order []string, counts map[string]int, topN int) []ValueCount {
	out := make([]ValueCount, len(order))
	for i, k := range order {
		out[i] = ValueCount{Value: k, Count: counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// quantile interpolates linearly between closest ranks at (n-1)*p, so
// quantile(sorted, 0.5) is the median.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := float64(n-1) * p
	i := int(math.Floor(pos))
	if i >= n-1 {
		return sorted[n-1]
	}
	h := pos - float64(i)
	if h == 0 {
		return sorted[i]
	}
	return sorted[i]*(1-h) + sorted[i+1]*h
}

// finite returns nil for NaN and the infinities, which JSON cannot carry.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
