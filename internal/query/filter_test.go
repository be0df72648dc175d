package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

func people() table.Dataset {
	keys := []string{"name", "city", "age"}
	return table.Dataset{
		table.NewRow(keys, []table.Value{table.String("Ada Lovelace"), table.String("London"), table.Number(36)}),
		table.NewRow(keys, []table.Value{table.String("Alan Turing"), table.String("Wilmslow"), table.Number(41)}),
		table.NewRow(keys, []table.Value{table.String("Grace Hopper"), table.Null(), table.Number(85)}),
		table.NewRow(keys, []table.Value{table.String("Linus"), table.String("Helsinki"), table.Null()}),
	}
}

func TestFilterEmptyIsIdentity(t *testing.T) {
	rows := people()
	out := Filter("   ", []string{"name"}, rows)
	assert.Equal(t, len(rows), len(out))
	assert.Same(t, &rows[0], &out[0])
}

func TestFilterCaseInsensitiveSubstring(t *testing.T) {
	out := Filter("LON", []string{"name", "city"}, people())
	assert.Len(t, out, 1)
	assert.Equal(t, "Ada Lovelace", out[0].Value("name").String())
}

func TestFilterIsAndOfOrs(t *testing.T) {
	cols := []string{"name", "city", "age"}
	out := Filter("a 4", cols, people())
	// "4" only appears in an age column; "a" must still hit name or city.
	names := []string{}
	for _, r := range out {
		names = append(names, r.Value("name").String())
	}
	assert.Equal(t, []string{"Alan Turing"}, names)
}

func TestFilterConjunctionNarrows(t *testing.T) {
	cols := []string{"name", "city"}
	x := Filter("in", cols, people())
	xy := Filter("in g", cols, people())
	assert.LessOrEqual(t, len(xy), len(x))
	for _, r := range xy {
		assert.True(t, Matches(r, Terms("in"), cols))
	}
}

func TestFilterNullNeverMatches(t *testing.T) {
	out := Filter("null", []string{"city", "age"}, people())
	assert.Empty(t, out)
}

func TestFilterOnlySelectedColumns(t *testing.T) {
	out := Filter("london", []string{"name"}, people())
	assert.Empty(t, out)
}
