// Package server exposes the dataset store, transformations and chat relay
// over a gin HTTP API and serves the dashboard's static files.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/ingest"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/logging"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/relay"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/store"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/transform"
)

// Config holds the HTTP-facing settings.
type Config struct {
	// StaticDir holds the built dashboard. Empty or missing disables it.
	StaticDir   string
	MaxUploadMB int
	Ingest      ingest.Options
}

// Server wires a Store and a Relay into a gin engine.
type Server struct {
	router *gin.Engine
	store  *store.Store
	relay  *relay.Relay
	cfg    Config
	log    *slog.Logger
}

// New builds the engine. rl may be nil, in which case chat answers 503.
func New(st *store.Store, rl *relay.Relay, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	s := &Server{
		router: gin.New(),
		store:  st,
		relay:  rl,
		cfg:    cfg,
		log:    log,
	}
	s.router.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	s.router.Use(requestLogger(log), recovery(log))
	s.routes()
	return s
}

// Handler returns the engine as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer returns an http.Server for addr with conservative header
// timeouts. Write timeouts are left unset so chat streams are not cut off.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) routes() {
	api := s.router.Group("/api")
	{
		api.POST("/dataset", s.uploadDataset)
		api.GET("/dataset", s.getDataset)
		api.GET("/dataset/rows", s.getRows)
		api.PUT("/dataset/filter", s.setFilter)
		api.GET("/dataset/context", s.getContext)
		api.GET("/dataset/export", s.exportCSV)
		api.GET("/dataset/correlations", s.getCorrelations)
		api.GET("/dataset/histogram", s.getHistogram)

		api.POST("/transform/:op", s.applyTransform)

		api.GET("/history", s.getHistory)
		api.POST("/history/undo", s.undo)
		api.POST("/history/redo", s.redo)

		if s.relay != nil {
			api.POST("/chat", s.relay.Handler())
		} else {
			api.POST("/chat", func(c *gin.Context) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not configured"})
			})
		}
	}
	s.static()
}

// static serves the single-page dashboard, falling back to index.html for
// client-side routes.
func (s *Server) static() {
	dir := s.cfg.StaticDir
	index := filepath.Join(dir, "index.html")
	if dir == "" {
		s.router.NoRoute(notFound)
		return
	}
	if _, err := os.Stat(index); err != nil {
		s.log.Warn("static dashboard not found, serving API only", "dir", dir)
		s.router.NoRoute(notFound)
		return
	}
	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			notFound(c)
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			notFound(c)
			return
		}
		p := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if serveFile(c, p) {
			return
		}
		if !serveFile(c, index) {
			notFound(c)
		}
	})
}

// serveFile writes the regular file at p and reports whether it did. The
// caller has already confined p to the static directory, so this skips
// http.ServeFile's rejection of ".." in the request path.
func serveFile(c *gin.Context, p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return false
	}
	http.ServeContent(c.Writer, c.Request, fi.Name(), fi.ModTime(), f)
	return true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, transform.ErrNotNumerical),
		errors.Is(err, analysis.ErrNotNumerical),
		errors.Is(err, transform.ErrNoNumericPeers),
		errors.Is(err, analysis.ErrNoData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transform.ErrUnknownColumn),
		errors.Is(err, analysis.ErrUnknownColumn),
		errors.Is(err, transform.ErrEmptyThreshold),
		errors.Is(err, transform.ErrInvalidThreshold),
		errors.Is(err, transform.ErrInvalidDirection),
		errors.Is(err, store.ErrNoValidData),
		errors.Is(err, ingest.ErrUnsupported),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
