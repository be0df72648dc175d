package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/ingest"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/store"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/transform"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	maxBins         = 1000
)

type datasetResponse struct {
	Headers         []string             `json:"headers"`
	Summary         analysis.DataSummary `json:"summary"`
	HistoryIndex    int                  `json:"historyIndex"`
	CanUndo         bool                 `json:"canUndo"`
	CanRedo         bool                 `json:"canRedo"`
	Filter          string               `json:"filter"`
	SelectedColumns []string             `json:"selectedColumns"`
}

func (s *Server) snapshot() (datasetResponse, error) {
	st := s.store.Snapshot()
	if st.Processed == nil {
		return datasetResponse{}, store.ErrNotLoaded
	}
	return datasetResponse{
		Headers:         st.Processed.Headers,
		Summary:         st.Processed.Summary,
		HistoryIndex:    st.Index,
		CanUndo:         st.CanUndo,
		CanRedo:         st.CanRedo,
		Filter:          st.Filter,
		SelectedColumns: st.SelectedColumns,
	}, nil
}

func (s *Server) respondDataset(c *gin.Context, code int) {
	resp, err := s.snapshot()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(code, resp)
}

// uploadDataset accepts a multipart "file" field or a JSON array of rows.
func (s *Server) uploadDataset(c *gin.Context) {
	limit := int64(s.cfg.MaxUploadMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var (
		rows table.Dataset
		name string
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		name = "request body"
		if err = c.ShouldBindJSON(&rows); err != nil {
			s.fail(c, fmt.Errorf("%w: rows must be an array of objects: %v", errBadRequest, err))
			return
		}
	} else {
		rows, name, err = s.readUpload(c)
		if err != nil {
			s.fail(c, err)
			return
		}
	}

	if err := s.store.Load(c.Request.Context(), rows); err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("dataset uploaded", "source", name, "rows", len(s.store.Raw()))
	s.respondDataset(c, http.StatusCreated)
}

func (s *Server) readUpload(c *gin.Context) (table.Dataset, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: missing file field: %v", errBadRequest, err)
	}
	if !ingest.Supported(fh.Filename) {
		return nil, fh.Filename, fmt.Errorf("%w: %s", ingest.ErrUnsupported, filepath.Ext(fh.Filename))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fh.Filename, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	opt := s.cfg.Ingest
	if sheet := c.PostForm("sheet"); sheet != "" {
		opt.Sheet = sheet
	}
	rows, err := ingest.Read(f, fh.Filename, opt)
	if err != nil {
		return nil, fh.Filename, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return rows, fh.Filename, nil
}

func (s *Server) getDataset(c *gin.Context) {
	s.respondDataset(c, http.StatusOK)
}

func (s *Server) getRows(c *gin.Context) {
	if s.store.Processed() == nil {
		s.fail(c, store.ErrNotLoaded)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := intQuery(c, "limit", defaultPageSize)
	if err != nil {
		s.fail(c, err)
		return
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	view := s.store.FilteredView()
	total := len(view)
	start := min(offset, total)
	end := min(start+limit, total)
	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"offset": start,
		"limit":  limit,
		"rows":   view[start:end],
	})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}

type filterRequest struct {
	Filter  string    `json:"filter"`
	Columns *[]string `json:"columns"`
}

func (s *Server) setFilter(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	s.store.SetFilter(req.Filter)
	if req.Columns != nil {
		s.store.SetSelectedColumns(*req.Columns)
	}
	c.JSON(http.StatusOK, gin.H{
		"filter":          s.store.Filter(),
		"selectedColumns": s.store.SelectedColumns(),
		"total":           len(s.store.FilteredView()),
	})
}

func (s *Server) getContext(c *gin.Context) {
	p := s.store.Processed()
	if p == nil {
		s.fail(c, store.ErrNotLoaded)
		return
	}
	c.String(http.StatusOK, p.Summary.Context())
}

func (s *Server) getCorrelations(c *gin.Context) {
	p := s.store.Processed()
	if p == nil {
		s.fail(c, store.ErrNotLoaded)
		return
	}
	c.JSON(http.StatusOK, analysis.Correlations(p))
}

// getHistogram bins ?column= into ?bins= equal-width buckets.
func (s *Server) getHistogram(c *gin.Context) {
	p := s.store.Processed()
	if p == nil {
		s.fail(c, store.ErrNotLoaded)
		return
	}
	column := c.Query("column")
	if column == "" {
		s.fail(c, fmt.Errorf("%w: column is required", errBadRequest))
		return
	}
	bins, err := intQuery(c, "bins", analysis.DefaultBins)
	if err != nil {
		s.fail(c, err)
		return
	}
	if bins > maxBins {
		s.fail(c, fmt.Errorf("%w: bins must be at most %d", errBadRequest, maxBins))
		return
	}
	out, err := analysis.Histogram(p, column, bins)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": column, "bins": out})
}

// exportCSV downloads the current rows, or only the filtered view with
// ?filtered=true.
func (s *Server) exportCSV(c *gin.Context) {
	p := s.store.Processed()
	if p == nil {
		s.fail(c, store.ErrNotLoaded)
		return
	}
	rows := p.Rows
	if filtered, _ := strconv.ParseBool(c.Query("filtered")); filtered {
		rows = s.store.FilteredView()
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="dataset.csv"`)
	c.Status(http.StatusOK)
	if err := ingest.WriteCSV(c.Writer, p.Headers, rows); err != nil {
		s.log.Error("csv export failed", "error", err)
	}
}

type transformRequest struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
	Value     string `json:"value"`
}

func (s *Server) applyTransform(c *gin.Context) {
	var req transformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	fn, err := transformFunc(c.Param("op"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.store.Transform(c.Request.Context(), fn)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("transformation applied", "type", res.Type, "description", res.Description)
	s.respondDataset(c, http.StatusOK)
}

// transformFunc resolves an operation name to a computation over the
// current data.
func transformFunc(op string, req transformRequest) (func(*analysis.ProcessedData) (transform.Result, error), error) {
	switch op {
	case transform.TypeSort:
		dir, err := transform.ParseDirection(req.Direction)
		if err != nil {
			return nil, err
		}
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.Sort(p, req.Column, dir)
		}, nil
	case transform.TypeDelete:
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.DeleteColumn(p, req.Column)
		}, nil
	case transform.TypeCombine:
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.CombineColumns(p, req.Column)
		}, nil
	case transform.TypeFilter:
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.FilterValues(p, req.Column, req.Value)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown transformation %q", errBadRequest, op)
	}
}

func (s *Server) getHistory(c *gin.Context) {
	entries := s.store.History()
	infos := make([]store.EntryInfo, len(entries))
	for i, e := range entries {
		infos[i] = e.Info()
	}
	c.JSON(http.StatusOK, gin.H{"index": s.store.Index(), "entries": infos})
}

func (s *Server) undo(c *gin.Context) { s.step(c, s.store.Undo) }

func (s *Server) redo(c *gin.Context) { s.step(c, s.store.Redo) }

func (s *Server) step(c *gin.Context, move func() bool) {
	if s.store.Processed() == nil {
		s.fail(c, store.ErrNotLoaded)
		return
	}
	moved := move()
	resp, err := s.snapshot()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved, "dataset": resp})
}
