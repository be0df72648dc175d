package ai

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Hosted APIs
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

func (c RuntimeConfig) withDefaults(timeout time.Duration, retries int, base, maxDelay time.Duration) RuntimeConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = timeout
	}
	if c.RetryMax <= 0 {
		c.RetryMax = retries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = base
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = maxDelay
	}
	return c
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[strings.ToLower(name)] = f }

// NewRuntime creates the Runtime registered under provider.
func NewRuntime(provider string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", provider, strings.Join(Providers(), ", "))
	}
	return f(cfg), nil
}

// Providers lists registered provider names, sorted.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	hosted := func(c RuntimeConfig) Runtime { return NewClient(c) }
	RegisterRuntime(ProviderGroq, hosted)
	RegisterRuntime(ProviderOpenAI, hosted)
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime { return NewOllamaClient(c) })
}
