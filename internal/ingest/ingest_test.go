package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

func TestReadCSVTypesCells(t *testing.T) {
	in := "name,age,score,joined\nAda,36,1e3, 2020-01-01\nAlan,,-.5,\"x, y\"\n"
	rows, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"name", "age", "score", "joined"}, rows[0].Keys())
	assert.Equal(t, table.String("Ada"), rows[0].Value("name"))
	assert.Equal(t, table.Number(36), rows[0].Value("age"))
	assert.Equal(t, table.Number(1000), rows[0].Value("score"))
	assert.Equal(t, table.KindString, rows[0].Value("joined").Kind())

	assert.True(t, rows[1].Value("age").IsNull())
	assert.Equal(t, table.Number(-0.5), rows[1].Value("score"))
	assert.Equal(t, table.String("x, y"), rows[1].Value("joined"))
}

func TestReadCSVPadsShortRowsAndDropsExtra(t *testing.T) {
	in := "a,b,c\n1\n1,2,3,4\n"
	rows, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Len())
	assert.True(t, rows[0].Value("b").IsNull())
	assert.True(t, rows[0].Value("c").IsNull())
	assert.Equal(t, []string{"a", "b", "c"}, rows[1].Keys())
}

func TestNormalizeHeaders(t *testing.T) {
	got := normalizeHeaders([]string{"\ufeffid", " name ", "", "name", "name", "name_1"})
	assert.Equal(t, []string{"id", "name", "column_3", "name_1", "name_2", "name_1_1"}, got)
}

func TestSniffDelimiter(t *testing.T) {
	cases := map[string]rune{
		"a;b;c\n1;2;3\n":     ';',
		"a\tb\tc\n1\t2\t3\n": '\t',
		"\"x;y\",b\n1,2\n":   ',',
		"single\n1\n":        ',',
	}
	for in, want := range cases {
		rows, err := ReadCSV(strings.NewReader(in), Options{})
		require.NoError(t, err, in)
		require.NotEmpty(t, rows, in)
		if want == ';' {
			assert.Equal(t, []string{"a", "b", "c"}, rows[0].Keys())
		}
		if want == '\t' {
			assert.Equal(t, table.Number(2), rows[0].Value("b"))
		}
		if want == ',' && strings.HasPrefix(in, "\"") {
			assert.Equal(t, []string{"x;y", "b"}, rows[0].Keys())
		}
	}
}

func TestReadCSVHeaderOnlyAndEmpty(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("a,b\n"), Options{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = ReadCSV(strings.NewReader(""), Options{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadCSVMaxRows(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("n\n1\n2\n3\n"), Options{MaxRows: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReadFileDispatch(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "data.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte("a\tb\n1\t2\n"), 0o644))
	rows, err := ReadFile(tsv, Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, table.Number(2), rows[0].Value("b"))

	_, err = ReadFile(filepath.Join(dir, "notes.pdf"), Options{})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, Supported("X.XLSX"))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	in := "city,temp\nOslo,10.5\nLima,\n"
	rows, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"city", "temp"}, rows))
	assert.Equal(t, in, buf.String())
}

func writeWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"region", "sales"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"north", 120}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"south", 80.5}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]any{"k"}))
	require.NoError(t, f.SetSheetRow("Other", "A2", &[]any{"v"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := writeWorkbook(t)

	rows, err := ReadXLSX(bytes.NewReader(data), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"region", "sales"}, rows[0].Keys())
	assert.Equal(t, table.Number(120), rows[0].Value("sales"))
	assert.Equal(t, table.Number(80.5), rows[1].Value("sales"))

	rows, err = ReadXLSX(bytes.NewReader(data), Options{Sheet: "other"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, table.String("v"), rows[0].Value("k"))

	_, err = ReadXLSX(bytes.NewReader(data), Options{Sheet: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available sheets: Sheet1, Other")
}

func TestReadDispatchesXLSXByName(t *testing.T) {
	rows, err := Read(bytes.NewReader(writeWorkbook(t)), "upload.xlsx", Options{MaxRows: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
