package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvReader) Read(r io.Reader, filename string, opt Options) (table.Dataset, error) {
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(filename), ".tsv") {
		opt.Delimiter = '\t'
	}
	return ReadCSV(r, opt)
}

// ReadCSV decodes delimited text with a header row. Cells are typed with
// table.ParseValue.
func ReadCSV(r io.Reader, opt Options) (table.Dataset, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br)
	}
	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	headers := normalizeHeaders(header)

	var rows table.Dataset
	for {
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			break
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record(headers, rec))
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first
// line, ignoring quoted sections. Defaults to comma.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(64 * 1024)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	counts := map[rune]int{}
	quoted := false
	for _, c := range string(peek) {
		switch {
		case c == '"':
			quoted = !quoted
		case !quoted && (c == ',' || c == ';' || c == '\t'):
			counts[c]++
		}
	}
	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// WriteCSV writes headers and then one record per row. Null cells are empty.
func WriteCSV(w io.Writer, headers []string, rows table.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(headers))
	for _, r := range rows {
		for i, h := range headers {
			rec[i] = r.Value(h).String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
