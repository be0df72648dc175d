// Package relay forwards questions about the loaded dataset to a chat model
// and streams the answer back as server-sent events.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/ai"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/logging"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/utils"
)

// SystemPrompt prefixes the data context in the system message.
const SystemPrompt = "You are a data analysis assistant. You help users understand their CSV data. Here's the context about the current data: "

// ErrEmptyPrompt is returned when there is no question to ask.
var ErrEmptyPrompt = errors.New("prompt is required")

const truncatedMarker = "\n[context truncated]"

// Options configures the completion parameters.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// DefaultContext supplies the data context when a request carries none.
	DefaultContext func() string
	Logger         *slog.Logger
}

type Relay struct {
	rt  ai.Runtime
	opt Options
	log *slog.Logger
}

func New(rt ai.Runtime, opt Options) *Relay {
	if opt.Model == "" {
		opt.Model = ai.DefaultModel
	}
	if opt.MaxTokens <= 0 {
		opt.MaxTokens = 1000
	}
	log := opt.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Relay{rt: rt, opt: opt, log: log}
}

// Request builds the completion request for a question about dataContext.
// A context too large for the model's window is truncated.
func (r *Relay) Request(dataContext, prompt string) ai.GenerateRequest {
	if dataContext == "" && r.opt.DefaultContext != nil {
		dataContext = r.opt.DefaultContext()
	}
	system := SystemPrompt + dataContext
	promptTokens := utils.CountTokens(system) + utils.CountTokens(prompt)
	if !ai.FitsContext(r.opt.Model, promptTokens, r.opt.MaxTokens) {
		mi, _ := ai.LookupModel(r.opt.Model)
		budget := mi.ContextTokens - r.opt.MaxTokens - utils.CountTokens(SystemPrompt) - utils.CountTokens(prompt)
		r.log.Warn("data context exceeds model window, truncating",
			"model", r.opt.Model, "tokens", promptTokens, "window", mi.ContextTokens)
		system = SystemPrompt + utils.TruncateToTokenLimit(dataContext, budget, truncatedMarker)
	}
	return ai.GenerateRequest{
		Model: r.opt.Model,
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   r.opt.MaxTokens,
		Temperature: r.opt.Temperature,
	}
}

// Stream asks prompt and calls onDelta with each partial answer.
func (r *Relay) Stream(ctx context.Context, dataContext, prompt string, onDelta func(string)) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return r.rt.GenerateStream(ctx, r.Request(dataContext, prompt), onDelta)
}

// Complete asks prompt and returns the whole answer.
func (r *Relay) Complete(ctx context.Context, dataContext, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	resp, err := r.rt.Generate(ctx, r.Request(dataContext, prompt))
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// RenderMarkdown converts a model answer to HTML.
func RenderMarkdown(text string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(markdown.ToHTML([]byte(text), p, renderer))
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context"`
	// Stream defaults to true.
	Stream *bool `json:"stream,omitempty"`
}

// Handler serves POST /api/chat.
func (r *Relay) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrEmptyPrompt.Error()})
			return
		}
		if req.Stream != nil && !*req.Stream {
			r.serveComplete(c, req)
			return
		}
		r.serveStream(c, req)
	}
}

func (r *Relay) serveComplete(c *gin.Context, req ChatRequest) {
	text, err := r.Complete(c.Request.Context(), req.Context, req.Prompt)
	if err != nil {
		r.log.Error("chat completion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get chat completion"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": text, "html": RenderMarkdown(text)})
}

// serveStream defers the SSE headers until the first chunk, so a failure
// before any output can still be reported as a plain 500.
func (r *Relay) serveStream(c *gin.Context, req ChatRequest) {
	w := c.Writer
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
	}

	chunks := 0
	err := r.Stream(c.Request.Context(), req.Context, req.Prompt, func(delta string) {
		if delta == "" {
			return
		}
		begin()
		chunks++
		writeEvent(w, gin.H{"content": delta})
		w.Flush()
	})
	if err != nil {
		r.log.Error("chat stream failed", "error", err, "chunks", chunks)
		if !started {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get chat completion"})
			return
		}
		writeEvent(w, gin.H{"error": streamErrorMessage(err)})
	}
	begin()
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	w.Flush()
	r.log.Debug("chat stream finished", "chunks", chunks)
}

func writeEvent(w io.Writer, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
}

func streamErrorMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	if api, ok := ai.AsAPIError(err); ok && api.Message != "" {
		return api.Message
	}
	return "Failed to get chat completion"
}
