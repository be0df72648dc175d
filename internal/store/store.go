// Package store owns the loaded dataset, its derived summary, the search
// state and the undo/redo history of committed transformations.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/logging"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/query"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/transform"
)

var (
	// ErrNoValidData is returned by Load when every row is blank.
	ErrNoValidData = errors.New("no valid data found in file")
	// ErrNotLoaded is returned by mutators that need a dataset.
	ErrNotLoaded = errors.New("no dataset loaded")
	// ErrAggregation wraps a panic raised while summarizing rows.
	ErrAggregation = errors.New("error processing data")
)

// Option configures a Store.
type Option func(*Store)

// WithAnalysisOptions sets the classification and aggregation policy.
func WithAnalysisOptions(o analysis.Options) Option {
	return func(s *Store) { s.opt = o }
}

// WithMaxHistory caps the number of history entries kept. Zero means no cap.
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxHistory = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the timestamp source for history entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is safe for concurrent use. Mutations are serialized; readers always
// observe the last committed state, including while a mutation is running.
type Store struct {
	write sync.Mutex

	mu        sync.RWMutex
	raw       table.Dataset
	processed *analysis.ProcessedData
	filter    string
	selected  []string
	history   []Entry
	index     int
	lastErr   error

	opt        analysis.Options
	maxHistory int
	log        *slog.Logger
	now        func() time.Time
}

func New(opts ...Option) *Store {
	s := &Store{
		index: -1,
		opt:   analysis.DefaultOptions(),
		log:   logging.Discard(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load replaces the session with rows. Blank rows are dropped first; if none
// remain the current state is kept and ErrNoValidData is returned.
func (s *Store) Load(ctx context.Context, rows table.Dataset) error {
	s.write.Lock()
	defer s.write.Unlock()

	valid := rows.NonBlank()
	if len(valid) == 0 {
		return s.fail(ErrNoValidData)
	}
	p, err := s.aggregate(ctx, valid, nil)
	if err != nil {
		return s.fail(err)
	}
	entry := newEntry(transform.TypeLoad, "Initial data load", s.now(), p)

	s.mu.Lock()
	s.raw = valid
	s.processed = p
	s.filter = ""
	s.selected = append([]string(nil), p.Headers...)
	s.history = []Entry{entry}
	s.index = 0
	s.lastErr = nil
	s.mu.Unlock()

	s.log.Info("dataset loaded", "rows", p.Summary.RowCount, "columns", p.Summary.ColumnCount,
		"numerical", len(p.Summary.NumericalColumns), "dropped", len(rows)-len(valid))
	return nil
}

// Apply recomputes the summary for rows and commits it as a new history
// entry, discarding any redo branch. A non-nil headers fixes the column
// order; otherwise it is taken from the first row. On failure nothing is
// committed.
func (s *Store) Apply(ctx context.Context, typ, description string, rows table.Dataset, headers []string) error {
	s.write.Lock()
	defer s.write.Unlock()
	return s.apply(ctx, typ, description, rows, headers)
}

// Commit applies a computed transformation result.
func (s *Store) Commit(ctx context.Context, res transform.Result) error {
	return s.Apply(ctx, res.Type, res.Description, res.Rows, res.Headers)
}

// Transform computes a result from the current data and commits it, holding
// the write lock across both steps so the edit cannot be based on stale data.
func (s *Store) Transform(ctx context.Context, fn func(*analysis.ProcessedData) (transform.Result, error)) (transform.Result, error) {
	s.write.Lock()
	defer s.write.Unlock()

	p := s.Processed()
	if p == nil {
		return transform.Result{}, s.fail(ErrNotLoaded)
	}
	res, err := fn(p)
	if err != nil {
		return transform.Result{}, s.fail(err)
	}
	headers := res.Headers
	if headers == nil {
		headers = p.Headers
	}
	if err := s.apply(ctx, res.Type, res.Description, res.Rows, headers); err != nil {
		return transform.Result{}, err
	}
	return res, nil
}

func (s *Store) apply(ctx context.Context, typ, description string, rows table.Dataset, headers []string) error {
	if s.Processed() == nil {
		return s.fail(ErrNotLoaded)
	}
	p, err := s.aggregate(ctx, rows, headers)
	if err != nil {
		return s.fail(err)
	}
	entry := newEntry(typ, description, s.now(), p)

	s.mu.Lock()
	s.history, s.index = push(s.history, s.index, entry, s.maxHistory)
	s.processed = p
	s.lastErr = nil
	s.mu.Unlock()

	s.log.Debug("transformation committed", "type", typ, "description", description,
		"rows", p.Summary.RowCount, "index", s.Index())
	return nil
}

// Undo steps back one entry. It reports false when already at the start.
func (s *Store) Undo() bool { return s.move(-1) }

// Redo steps forward one entry. It reports false when already at the end.
func (s *Store) Redo() bool { return s.move(1) }

func (s *Store) move(delta int) bool {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.index + delta
	if s.index < 0 || next < 0 || next >= len(s.history) {
		return false
	}
	s.index = next
	s.processed = s.history[next].Data
	s.log.Debug("history moved", "index", next, "type", s.history[next].Type)
	return true
}

// SetFilter sets the free-text search applied by FilteredView.
func (s *Store) SetFilter(v string) {
	s.mu.Lock()
	s.filter = v
	s.mu.Unlock()
}

// SetSelectedColumns sets the columns searched by FilteredView. Unknown
// columns are ignored; nil selects every column. The selection survives
// transformations, so a column hidden by a delete returns on undo.
func (s *Store) SetSelectedColumns(cols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed == nil {
		s.selected = append([]string(nil), cols...)
		return
	}
	if cols == nil {
		s.selected = append([]string(nil), s.processed.Headers...)
		return
	}
	s.selected = keepKnown(cols, s.processed.Headers)
}

// FilteredView returns the current rows narrowed by the search state.
func (s *Store) FilteredView() table.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.processed == nil {
		return nil
	}
	return query.Filter(s.filter, s.selected, s.processed.Rows)
}

// State is a consistent view of the store taken under a single lock.
type State struct {
	Processed       *analysis.ProcessedData
	Index           int
	HistoryLen      int
	CanUndo         bool
	CanRedo         bool
	Filter          string
	SelectedColumns []string
}

// Snapshot returns the committed state in one read, so no mutation can land
// between its fields.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Processed:       s.processed,
		Index:           s.index,
		HistoryLen:      len(s.history),
		CanUndo:         s.index > 0,
		CanRedo:         s.index >= 0 && s.index < len(s.history)-1,
		Filter:          s.filter,
		SelectedColumns: append([]string(nil), s.selected...),
	}
}

func (s *Store) Processed() *analysis.ProcessedData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed
}

// Raw returns the non-blank rows of the last load.
func (s *Store) Raw() table.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

func (s *Store) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.history...)
}

// Index is the position of the current entry, or -1 with no history.
func (s *Store) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Err returns the error of the last failed mutation, cleared by the next
// successful one.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) Filter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *Store) SelectedColumns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selected...)
}

func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index > 0
}

func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index >= 0 && s.index < len(s.history)-1
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Warn("store operation failed", "error", err)
	return err
}

func (s *Store) aggregate(ctx context.Context, rows table.Dataset, headers []string) (p *analysis.ProcessedData, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %v", ErrAggregation, r)
		}
	}()
	if headers == nil {
		return analysis.Aggregate(ctx, rows, s.opt)
	}
	return analysis.AggregateColumns(ctx, rows, headers, s.opt)
}

// keepKnown returns the members of cols present in headers, in cols order.
func keepKnown(cols, headers []string) []string {
	known := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		known[h] = struct{}{}
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, ok := known[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
