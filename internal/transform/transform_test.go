package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

func row(kv ...any) table.Row {
	var keys []string
	var vals []table.Value
	for i := 0; i+1 < len(kv); i += 2 {
		keys = append(keys, kv[i].(string))
		switch v := kv[i+1].(type) {
		case nil:
			vals = append(vals, table.Null())
		case int:
			vals = append(vals, table.Number(float64(v)))
		case float64:
			vals = append(vals, table.Number(v))
		case string:
			vals = append(vals, table.String(v))
		}
	}
	return table.NewRow(keys, vals)
}

func processed(t *testing.T, rows ...table.Row) *analysis.ProcessedData {
	t.Helper()
	p, err := analysis.Aggregate(context.Background(), rows, analysis.DefaultOptions())
	require.NoError(t, err)
	return p
}

func column(rows table.Dataset, col string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Value(col).String()
	}
	return out
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"": Ascending, "asc": Ascending, "ASC": Ascending, "descending": Descending, "desc": Descending} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestSortNumeric(t *testing.T) {
	p := processed(t, row("x", 3), row("x", 1), row("x", 2))

	res, err := Sort(p, "x", Ascending)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, column(res.Rows, "x"))
	assert.Equal(t, TypeSort, res.Type)
	assert.Equal(t, "Sorted x ascending", res.Description)

	res, err = Sort(p, "x", Descending)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, column(res.Rows, "x"))
	assert.Equal(t, "Sorted x descending", res.Description)

	// input untouched
	assert.Equal(t, []string{"3", "1", "2"}, column(p.Rows, "x"))
}

func TestSortNumbersBeforeLexicalFallback(t *testing.T) {
	p := processed(t, row("x", 10), row("x", 9), row("x", "apple"), row("x", 1))
	res, err := Sort(p, "x", Ascending)
	require.NoError(t, err)
	// 9 < 10 numerically even though "10" < "9" as text.
	assert.Equal(t, []string{"1", "9", "10", "apple"}, column(res.Rows, "x"))
}

func TestSortNumericalColumnIsOrderIndependent(t *testing.T) {
	orders := [][]any{
		{10, 9, "5 units", 1, 2, 3, 4, nil},
		{"5 units", 10, 4, 9, nil, 2, 3, 1},
		{9, "5 units", 3, 10, 2, nil, 1, 4},
	}
	for _, vals := range orders {
		var rows []table.Row
		for _, v := range vals {
			rows = append(rows, row("x", v))
		}
		p := processed(t, rows...)
		k, _ := p.Summary.KindOf("x")
		require.Equal(t, analysis.Numerical, k)

		res, err := Sort(p, "x", Ascending)
		require.NoError(t, err)
		asc := column(res.Rows, "x")
		assert.Equal(t, []string{"1", "2", "3", "4", "9", "10", "", "5 units"}, asc, "%v", vals)

		res, err = Sort(p, "x", Descending)
		require.NoError(t, err)
		desc := column(res.Rows, "x")
		// non-numbers stay last in both directions
		assert.Equal(t, []string{"10", "9", "4", "3", "2", "1", "5 units", ""}, desc, "%v", vals)
	}
}

func TestSortCategoricalIsLexical(t *testing.T) {
	p := processed(t, row("x", "b"), row("x", 10), row("x", "a"), row("x", 9))
	res, err := Sort(p, "x", Ascending)
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "9", "a", "b"}, column(res.Rows, "x"))
}

func TestSortIsStable(t *testing.T) {
	p := processed(t,
		row("k", 1, "id", "a"),
		row("k", 0, "id", "b"),
		row("k", 1, "id", "c"),
		row("k", 0, "id", "d"),
	)
	res, err := Sort(p, "k", Ascending)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "a", "c"}, column(res.Rows, "id"))

	res, err = Sort(p, "k", Descending)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, column(res.Rows, "id"))
}

func TestUnknownColumn(t *testing.T) {
	p := processed(t, row("a", 1, "b", 2))
	_, err := Sort(p, "zzz", Ascending)
	assert.ErrorIs(t, err, ErrUnknownColumn)
	_, err = DeleteColumn(p, "zzz")
	assert.ErrorIs(t, err, ErrUnknownColumn)
	_, err = CombineColumns(p, "zzz")
	assert.ErrorIs(t, err, ErrUnknownColumn)
	_, err = FilterValues(p, "zzz", "1")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestDeleteColumn(t *testing.T) {
	p := processed(t, row("a", 1, "b", 2))
	res, err := DeleteColumn(p, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Headers)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"b"}, res.Rows[0].Keys())
	assert.Equal(t, "Deleted column a", res.Description)
	assert.Equal(t, TypeDelete, res.Type)
	// original rows keep the column
	_, ok := p.Rows[0].Get("a")
	assert.True(t, ok)
}

func TestCombineColumns(t *testing.T) {
	p := processed(t,
		row("a", 1, "b", 10, "c", 100, "name", "x"),
		row("a", 2, "b", 20, "c", 200, "name", "y"),
		row("a", 3, "b", 30, "c", nil, "name", "z"),
	)
	res, err := CombineColumns(p, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "name", "a_combined"}, res.Headers)
	// 2/3 valid is under the threshold, so c stays categorical and is left out.
	assert.Equal(t, []string{"11", "22", "33"}, column(res.Rows, "a_combined"))

	p = processed(t,
		row("a", 1, "b", 10, "c", 100),
		row("a", 2, "b", 20, "c", 200),
		row("a", 3, "b", 30, "c", 300),
		row("a", 4, "b", 40, "c", nil),
	)
	res, err = CombineColumns(p, "a")
	require.NoError(t, err)
	// missing peer cells count as zero
	assert.Equal(t, []string{"111", "222", "333", "44"}, column(res.Rows, "a_combined"))
	assert.Equal(t, "Combined a with numerical columns", res.Description)
}

func TestCombineColumnsOverwritesExisting(t *testing.T) {
	p := processed(t, row("a", 1, "b", 2), row("a", 3, "b", 4))
	first, err := CombineColumns(p, "a")
	require.NoError(t, err)

	again, err := analysis.AggregateColumns(context.Background(), first.Rows, first.Headers, analysis.DefaultOptions())
	require.NoError(t, err)
	second, err := CombineColumns(again, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a_combined"}, second.Headers)
	// the previous combined column is not folded back in
	assert.Equal(t, []string{"3", "7"}, column(second.Rows, "a_combined"))
}

func TestCombineColumnsErrors(t *testing.T) {
	p := processed(t, row("a", 1, "name", "x"), row("a", 2, "name", "y"))
	_, err := CombineColumns(p, "a")
	assert.ErrorIs(t, err, ErrNoNumericPeers)
	_, err = CombineColumns(p, "name")
	assert.ErrorIs(t, err, ErrNotNumerical)
}

func TestFilterValuesNumeric(t *testing.T) {
	p := processed(t, row("n", 5), row("n", 15), row("n", 25), row("n", nil))
	res, err := FilterValues(p, "n", "15")
	require.NoError(t, err)
	assert.Equal(t, []string{"15", "25"}, column(res.Rows, "n"))
	assert.Equal(t, "Filtered n with value 15", res.Description)
	assert.Equal(t, TypeFilter, res.Type)

	_, err = FilterValues(p, "n", "abc")
	assert.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = FilterValues(p, "n", "  ")
	assert.ErrorIs(t, err, ErrEmptyThreshold)
}

func TestFilterValuesCategorical(t *testing.T) {
	p := processed(t, row("city", "Oslo"), row("city", "Lagos"), row("city", "LOS ANGELES"), row("city", nil))
	res, err := FilterValues(p, "city", "lo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oslo", "LOS ANGELES"}, column(res.Rows, "city"))
}

func TestFilterValuesCanEmptyTheView(t *testing.T) {
	p := processed(t, row("n", 1), row("n", 2))
	res, err := FilterValues(p, "n", "100")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"n"}, res.Headers)
}
