package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/ai"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
	cfgpkg "github.com/sheikhmuhammadzain/dataanalytics/internal/config"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/ingest"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/relay"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/store"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/transform"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/utils"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

func providerNames() []string { return ai.Providers() }

func normalizeProvider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "local" {
		return ai.ProviderOllama
	}
	return name
}

func knownProvider(name string) bool {
	return slices.Contains(providerNames(), normalizeProvider(name))
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := normalizeProvider(opts.ProviderFlag)
	if providerName == "" && cfg != nil {
		providerName = normalizeProvider(cfg.Provider)
	}
	if providerName == "" {
		providerName = ai.ProviderGroq
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	rc.APIKey = providerAPIKey(cfg, providerName)
	if cfg != nil {
		rc.BaseURL = cfg.BaseURL
	}

	switch providerName {
	case ai.ProviderOpenAI:
		if rc.BaseURL == "" {
			rc.BaseURL = defaultOpenAIBaseURL
		}
	case ai.ProviderOllama:
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		rc.Host = host
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, err := ai.NewRuntime(providerName, rc)
	if err != nil {
		return nil, providerName, err
	}
	return client, providerName, nil
}

// providerAPIKey is the key buildRuntime hands to provider. OpenAI falls back
// to OPENAI_API_KEY when no key is configured.
func providerAPIKey(cfg *cfgpkg.Global, provider string) string {
	var key string
	if cfg != nil {
		key = cfg.APIKey
	}
	if key == "" && provider == ai.ProviderOpenAI {
		key = os.Getenv("OPENAI_API_KEY")
	}
	return key
}

// missingKeyWarning names the variable to set when provider needs a key and
// none was resolved. It is empty otherwise.
func missingKeyWarning(cfg *cfgpkg.Global, provider string) string {
	if provider == ai.ProviderOllama || providerAPIKey(cfg, provider) != "" {
		return ""
	}
	env := "GROQ_API_KEY"
	if provider == ai.ProviderOpenAI {
		env = "OPENAI_API_KEY"
	}
	return fmt.Sprintf("⚠ Warning: %s is not set; /api/chat will fail until it is configured", env)
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.Model != "" {
		return cfg.Model
	}
	return ai.DefaultModel
}

// engineOptions maps the analysis keys of cfg onto aggregation options.
func engineOptions(cfg *cfgpkg.Global) analysis.Options {
	opt := analysis.DefaultOptions()
	if cfg == nil {
		return opt
	}
	if cfg.SampleSize > 0 {
		opt.SampleSize = cfg.SampleSize
	}
	if cfg.NumericThreshold > 0 {
		opt.NumericThreshold = cfg.NumericThreshold
	}
	if cfg.TopValues > 0 {
		opt.TopValues = cfg.TopValues
	}
	if cfg.ChunkSize > 0 {
		opt.ChunkSize = cfg.ChunkSize
	}
	return opt
}

func newStore(cfg *cfgpkg.Global) *store.Store {
	opts := []store.Option{
		store.WithAnalysisOptions(engineOptions(cfg)),
		store.WithLogger(logger),
	}
	if cfg != nil && cfg.MaxHistory > 0 {
		opts = append(opts, store.WithMaxHistory(cfg.MaxHistory))
	}
	return store.New(opts...)
}

type inputOptions struct {
	Delimiter string
	Sheet     string
	MaxRows   int
}

func (o inputOptions) ingest() (ingest.Options, error) {
	opt := ingest.Options{Sheet: o.Sheet, MaxRows: o.MaxRows}
	switch o.Delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", o.Delimiter)
	}
	return opt, nil
}

// loadFile reads path into a fresh store.
func loadFile(ctx context.Context, cfg *cfgpkg.Global, path string, in inputOptions) (*store.Store, error) {
	opt, err := in.ingest()
	if err != nil {
		return nil, err
	}
	rows, err := ingest.ReadFile(path, opt)
	if err != nil {
		return nil, err
	}
	st := newStore(cfg)
	if err := st.Load(ctx, rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// opFunc computes one transformation over the current data.
type opFunc func(*analysis.ProcessedData) (transform.Result, error)

// parseOp decodes an --op value:
//
//	sort:<column>[:asc|desc]
//	delete:<column>
//	combine:<column>
//	filter:<column>=<value>
func parseOp(spec string) (opFunc, error) {
	kind, arg, ok := strings.Cut(spec, ":")
	if !ok || arg == "" {
		return nil, fmt.Errorf("invalid --op %q (want kind:argument)", spec)
	}
	switch strings.ToLower(kind) {
	case transform.TypeSort:
		// A trailing segment is a direction only if it parses as one, so
		// column names may contain colons.
		col, dir := arg, transform.Ascending
		if i := strings.LastIndex(arg, ":"); i >= 0 {
			if d, err := transform.ParseDirection(arg[i+1:]); err == nil {
				col, dir = arg[:i], d
			}
		}
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.Sort(p, col, dir)
		}, nil
	case transform.TypeDelete:
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.DeleteColumn(p, arg)
		}, nil
	case transform.TypeCombine:
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.CombineColumns(p, arg)
		}, nil
	case transform.TypeFilter:
		col, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q (want filter:column=value)", arg)
		}
		return func(p *analysis.ProcessedData) (transform.Result, error) {
			return transform.FilterValues(p, col, val)
		}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q (use sort|delete|combine|filter)", kind)
	}
}

type streamingOptions struct {
	Enabled     bool
	Quiet       bool
	Writer      io.Writer
	DeltaWriter io.Writer
}

// askRelay prints the answer to prompt, streaming it when enabled.
func askRelay(ctx context.Context, rl *relay.Relay, dataContext, prompt string, opts streamingOptions) error {
	logWriter := opts.Writer
	if logWriter == nil {
		logWriter = os.Stderr
	}
	deltaWriter := opts.DeltaWriter
	if deltaWriter == nil {
		deltaWriter = os.Stdout
	}

	if !opts.Enabled {
		text, err := rl.Complete(ctx, dataContext, prompt)
		if err != nil {
			return fmt.Errorf("chat completion failed: %w", err)
		}
		fmt.Fprintln(deltaWriter, text)
		return nil
	}

	if !opts.Quiet {
		fmt.Fprintln(logWriter, "(streaming)")
	}
	if err := rl.Stream(ctx, dataContext, prompt, func(delta string) {
		fmt.Fprint(deltaWriter, delta)
	}); err != nil {
		return fmt.Errorf("streaming chat failed: %w", err)
	}
	fmt.Fprintln(deltaWriter)
	return nil
}

// writeOutput writes to path atomically, or to w when path is empty.
func writeOutput(w io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(w)
	}
	if err := utils.WriteFileAtomic(path, write); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
