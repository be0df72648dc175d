// Package ingest turns CSV and XLSX files into dynamically typed rows.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

// ErrUnsupported indicates a file format no registered reader handles.
var ErrUnsupported = errors.New("unsupported file format")

// Options controls how files are read.
type Options struct {
	// Delimiter for CSV. If 0, it is sniffed among ',', ';' and '\t'.
	Delimiter rune
	// Sheet selects an XLSX sheet by name. Empty means the first sheet.
	Sheet string
	// MaxRows limits data rows read (0 = unlimited).
	MaxRows int
}

// Reader decodes one file format.
type Reader interface {
	CanRead(filename string) bool
	Read(r io.Reader, filename string, opt Options) (table.Dataset, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// Supported reports whether some registered reader accepts filename.
func Supported(filename string) bool {
	return lookup(filename) != nil
}

func lookup(filename string) Reader {
	for _, r := range registry {
		if r.CanRead(filename) {
			return r
		}
	}
	return nil
}

// Read decodes r using the reader registered for filename's extension.
func Read(r io.Reader, filename string, opt Options) (table.Dataset, error) {
	rd := lookup(filename)
	if rd == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(filename))
	}
	return rd.Read(r, filename, opt)
}

// ReadFile opens path and decodes it.
func ReadFile(path string, opt Options) (table.Dataset, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path), opt)
}

// normalizeHeaders trims names, fills blanks with column_<n> and suffixes
// duplicates with _1, _2, ...
func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// record builds a row from one record. Short records are padded with null,
// extra fields are dropped.
func record(headers, fields []string) table.Row {
	vals := make([]table.Value, len(headers))
	for i := range headers {
		if i < len(fields) {
			vals[i] = table.ParseValue(fields[i])
		} else {
			vals[i] = table.Null()
		}
	}
	return table.NewRow(headers, vals)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}
