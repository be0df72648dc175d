package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
)

// Entry is one committed dataset state. Data is shared, never mutated.
type Entry struct {
	ID          string                  `json:"id"`
	Type        string                  `json:"type"`
	Description string                  `json:"description"`
	Timestamp   time.Time               `json:"timestamp"`
	Data        *analysis.ProcessedData `json:"-"`
}

// EntryInfo is Entry without its payload, for listings.
type EntryInfo struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	RowCount    int       `json:"rowCount"`
	ColumnCount int       `json:"columnCount"`
}

func (e Entry) Info() EntryInfo {
	info := EntryInfo{ID: e.ID, Type: e.Type, Description: e.Description, Timestamp: e.Timestamp}
	if e.Data != nil {
		info.RowCount = e.Data.Summary.RowCount
		info.ColumnCount = e.Data.Summary.ColumnCount
	}
	return info
}

func newEntry(typ, desc string, at time.Time, data *analysis.ProcessedData) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Type:        typ,
		Description: desc,
		Timestamp:   at,
		Data:        data,
	}
}

// push drops everything after index, appends e and trims the oldest entries
// beyond limit (0 = unlimited). It returns the new history and index.
func push(history []Entry, index int, e Entry, limit int) ([]Entry, int) {
	out := make([]Entry, 0, index+2)
	out = append(out, history[:index+1]...)
	out = append(out, e)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, len(out) - 1
}
