package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxReader) Read(r io.Reader, _ string, opt Options) (table.Dataset, error) {
	return ReadXLSX(r, opt)
}

// ReadXLSX decodes one worksheet. The first row is the header.
func ReadXLSX(r io.Reader, opt Options) (table.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("open xlsx: workbook has no sheets")
	}
	sheet := sheets[0]
	if opt.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook.\nAvailable sheets: %s",
				opt.Sheet, strings.Join(sheets, ", "))
		}
	}

	it, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer it.Close()

	var headers []string
	var rows table.Dataset
	for it.Next() {
		cols, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if headers == nil {
			headers = normalizeHeaders(cols)
			continue
		}
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			break
		}
		rows = append(rows, record(headers, cols))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}
