package analysis

import (
	"fmt"
	"strconv"
	"strings"
)

// Context renders the plain-text data context handed to the chat model.
func (s DataSummary) Context() string {
	var b strings.Builder
	b.WriteString("Dataset Summary:\n")
	fmt.Fprintf(&b, "- Total rows: %d\n", s.RowCount)
	fmt.Fprintf(&b, "- Total columns: %d\n", s.ColumnCount)
	fmt.Fprintf(&b, "- Numerical columns: %s\n", strings.Join(s.NumericalColumns, ", "))
	fmt.Fprintf(&b, "- Categorical columns: %s\n", strings.Join(s.CategoricalColumns, ", "))
	b.WriteString("\nColumn Statistics:\n")
	for _, h := range s.Headers {
		cs, ok := s.ColumnStats[h]
		if !ok {
			continue
		}
		var parts []string
		if cs.Min != nil {
			parts = append(parts, "min: "+num(*cs.Min))
		}
		if cs.Max != nil {
			parts = append(parts, "max: "+num(*cs.Max))
		}
		if cs.Mean != nil {
			parts = append(parts, fmt.Sprintf("mean: %.2f", *cs.Mean))
		}
		if cs.Median != nil {
			parts = append(parts, "median: "+num(*cs.Median))
		}
		if cs.StdDev != nil {
			parts = append(parts, fmt.Sprintf("stdDev: %.2f", *cs.StdDev))
		}
		if cs.Count == 0 {
			parts = append(parts, fmt.Sprintf("unique: %d", cs.UniqueValues))
			if len(cs.MostCommon) > 0 {
				parts = append(parts, "top: "+topList(cs.MostCommon))
			}
		}
		fmt.Fprintf(&b, "%s: %s\n", h, strings.Join(parts, ", "))
	}
	return b.String()
}

// Markdown renders a compact report suitable for the terminal or a prompt.
func (p *ProcessedData) Markdown(name string, sampleRows int) string {
	s := p.Summary
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", s.RowCount))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", s.ColumnCount))

	b.WriteString("[SCHEMA]\n")
	for _, h := range p.Headers {
		cs := s.ColumnStats[h]
		kind, _ := s.KindOf(h)
		total := s.RowCount
		missPct := 0.0
		if total > 0 {
			missPct = float64(cs.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (missing %.1f%%, unique %d)", safeName(h), kind, missPct, cs.UniqueValues))
		if cs.Count > 0 {
			var stats []string
			for _, st := range []struct {
				label string
				v     *float64
			}{{"min", cs.Min}, {"max", cs.Max}, {"mean", cs.Mean}, {"median", cs.Median}, {"std", cs.StdDev}} {
				if st.v != nil {
					stats = append(stats, fmt.Sprintf("%s %.4g", st.label, *st.v))
				}
			}
			if cs.Q1 != nil && cs.Q3 != nil {
				stats = append(stats, fmt.Sprintf("IQR [%.4g, %.4g]", *cs.Q1, *cs.Q3))
			}
			if len(stats) > 0 {
				b.WriteString(" — " + strings.Join(stats, ", "))
			}
		} else if len(cs.MostCommon) > 0 {
			b.WriteString(" — top: ")
			b.WriteString(topList(cs.MostCommon))
		}
		b.WriteString("\n")
	}

	if sampleRows > len(p.Rows) {
		sampleRows = len(p.Rows)
	}
	if sampleRows > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n| ")
		for i, h := range p.Headers {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(h))
		}
		b.WriteString(" |\n|")
		for range p.Headers {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range p.Rows[:sampleRows] {
			b.WriteString("| ")
			for i, h := range p.Headers {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := row.Value(h).String()
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func topList(vc []ValueCount) string {
	parts := make([]string, len(vc))
	for i, kv := range vc {
		parts[i] = fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count)
	}
	return strings.Join(parts, ", ")
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
