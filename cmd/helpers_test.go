package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/ai"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/analysis"
	cfgpkg "github.com/sheikhmuhammadzain/dataanalytics/internal/config"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/relay"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/table"
)

type stubStreamRuntime struct {
	called int
	err    error
	last   ai.GenerateRequest
}

func (s *stubStreamRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.called++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: "full answer"}}}}, nil
}

func (s *stubStreamRuntime) GenerateStream(_ context.Context, req ai.GenerateRequest, onDelta func(string)) error {
	s.called++
	s.last = req
	if s.err != nil {
		return s.err
	}
	onDelta("chunk ")
	onDelta("two")
	return nil
}

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{Model: "cfg-model"}
	if got := selectModel(cfg, "flag-model"); got != "flag-model" {
		t.Fatalf("expected explicit model, got %q", got)
	}
	if got := selectModel(cfg, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	if got := selectModel(nil, ""); got != ai.DefaultModel {
		t.Fatalf("expected default model, got %q", got)
	}
}

func TestBuildRuntimeDefaults(t *testing.T) {
	cfg := &cfgpkg.Global{Provider: "local", OllamaHost: "http://example"}
	client, provider, err := buildRuntime(cfg, runtimeOptions{})
	if err != nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if provider != ai.ProviderOllama {
		t.Fatalf("expected ollama provider, got %q", provider)
	}
	if _, ok := client.(*ai.OllamaClient); !ok {
		t.Fatalf("expected *ai.OllamaClient, got %T", client)
	}

	client, provider, err = buildRuntime(nil, runtimeOptions{})
	if err != nil || provider != ai.ProviderGroq {
		t.Fatalf("expected groq by default, got %q (%v)", provider, err)
	}
	if _, ok := client.(*ai.Client); !ok {
		t.Fatalf("expected *ai.Client, got %T", client)
	}

	if _, _, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: "nope"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestMissingKeyWarningFollowsResolvedKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	if w := missingKeyWarning(&cfgpkg.Global{}, ai.ProviderOpenAI); w != "" {
		t.Fatalf("OPENAI_API_KEY is set, expected no warning, got %q", w)
	}
	if got := providerAPIKey(&cfgpkg.Global{}, ai.ProviderOpenAI); got != "sk-env" {
		t.Fatalf("expected env key, got %q", got)
	}
	if w := missingKeyWarning(&cfgpkg.Global{}, ai.ProviderGroq); !strings.Contains(w, "GROQ_API_KEY") {
		t.Fatalf("expected groq warning, got %q", w)
	}
	if w := missingKeyWarning(&cfgpkg.Global{APIKey: "gsk"}, ai.ProviderGroq); w != "" {
		t.Fatalf("configured key should silence warning, got %q", w)
	}
	if w := missingKeyWarning(nil, ai.ProviderOllama); w != "" {
		t.Fatalf("ollama needs no key, got %q", w)
	}

	t.Setenv("OPENAI_API_KEY", "")
	if w := missingKeyWarning(nil, ai.ProviderOpenAI); !strings.Contains(w, "OPENAI_API_KEY") {
		t.Fatalf("expected openai warning, got %q", w)
	}
}

func TestEngineOptions(t *testing.T) {
	opt := engineOptions(&cfgpkg.Global{SampleSize: 50, NumericThreshold: 0.9, TopValues: 3})
	if opt.SampleSize != 50 || opt.NumericThreshold != 0.9 || opt.TopValues != 3 {
		t.Fatalf("config not applied: %+v", opt)
	}
	def := analysis.DefaultOptions()
	if opt.ChunkSize != def.ChunkSize {
		t.Fatalf("unset chunk size should keep default %d, got %d", def.ChunkSize, opt.ChunkSize)
	}
}

func TestParseOp(t *testing.T) {
	p, err := analysis.Aggregate(context.Background(), table.Dataset{
		table.NewRow([]string{"t:s", "n", "m"}, []table.Value{table.String("b"), table.Number(1), table.Number(5)}),
		table.NewRow([]string{"t:s", "n", "m"}, []table.Value{table.String("a"), table.Number(2), table.Number(6)}),
	}, analysis.DefaultOptions())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	cases := []struct {
		spec string
		typ  string
		desc string
	}{
		{"sort:n:desc", "sort", "Sorted n descending"},
		{"sort:t:s", "sort", "Sorted t:s ascending"},
		{"delete:m", "delete", "Deleted column m"},
		{"combine:n", "combine", "Combined n with numerical columns"},
		{"filter:n=2", "filter", "Filtered n with value 2"},
	}
	for _, c := range cases {
		op, err := parseOp(c.spec)
		if err != nil {
			t.Fatalf("%s: parse: %v", c.spec, err)
		}
		res, err := op(p)
		if err != nil {
			t.Fatalf("%s: apply: %v", c.spec, err)
		}
		if res.Type != c.typ || res.Description != c.desc {
			t.Fatalf("%s: got %s/%q", c.spec, res.Type, res.Description)
		}
	}

	for _, bad := range []string{"sort", "explode:n", "filter:n", "delete:"} {
		if _, err := parseOp(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestAskRelayStreaming(t *testing.T) {
	rt := &stubStreamRuntime{}
	rl := relay.New(rt, relay.Options{})
	logBuf, out := &bytes.Buffer{}, &bytes.Buffer{}
	if err := askRelay(context.Background(), rl, "ctx", "question", streamingOptions{
		Enabled: true, Writer: logBuf, DeltaWriter: out,
	}); err != nil {
		t.Fatalf("askRelay returned error: %v", err)
	}
	if rt.called != 1 {
		t.Fatalf("expected stream runtime to be invoked once, got %d", rt.called)
	}
	if got := out.String(); got != "chunk two\n" {
		t.Fatalf("unexpected delta output %q", got)
	}
	if !strings.Contains(logBuf.String(), "(streaming)") {
		t.Fatalf("expected streaming log output, got %q", logBuf.String())
	}
	if got := rt.last.Messages[0].Content; got != relay.SystemPrompt+"ctx" {
		t.Fatalf("unexpected system message %q", got)
	}
}

func TestAskRelayWithoutStreaming(t *testing.T) {
	rt := &stubStreamRuntime{}
	out := &bytes.Buffer{}
	if err := askRelay(context.Background(), relay.New(rt, relay.Options{}), "", "q", streamingOptions{DeltaWriter: out, Writer: io.Discard}); err != nil {
		t.Fatalf("askRelay returned error: %v", err)
	}
	if out.String() != "full answer\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestAskRelayErrorPropagation(t *testing.T) {
	rt := &stubStreamRuntime{err: errors.New("fail")}
	err := askRelay(context.Background(), relay.New(rt, relay.Options{}), "", "q", streamingOptions{
		Enabled: true, Quiet: true, DeltaWriter: &bytes.Buffer{},
	})
	if err == nil || !strings.Contains(err.Error(), "fail") {
		t.Fatalf("expected wrapped runtime error, got %v", err)
	}
}

func TestWriteOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	write := func(w io.Writer) error {
		_, err := io.WriteString(w, "content")
		return err
	}
	if err := writeOutput(buf, "", write); err != nil || buf.String() != "content" {
		t.Fatalf("stdout write: %q (%v)", buf.String(), err)
	}
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := writeOutput(buf, path, write); err != nil {
		t.Fatalf("file write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "content" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
}

func TestServeUntilShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("IPv4 listen not permitted: %v", err)
	}
	hs := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "up")
	})}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntil(ctx, hs, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	if err != nil {
		cancel()
		t.Fatalf("request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "up" {
		t.Fatalf("unexpected body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveUntil returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
