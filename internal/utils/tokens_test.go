package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 900}, // heuristic ~ 1 tok ≈ 4 chars
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got < c.min {
			t.Errorf("%s: got %d < min %d", c.name, got, c.min)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000) // ~5000 chars
	trunc := utils.TruncateToTokenLimit(text, 300, "\n[truncated]")
	if n := utils.CountTokens(trunc); n > 300 {
		t.Fatalf("tokens=%d exceeds limit", n)
	}
	if !strings.HasSuffix(trunc, "\n[truncated]") {
		t.Fatalf("expected truncation marker, got %q", trunc[len(trunc)-20:])
	}
	if got := utils.TruncateToTokenLimit("short", 300, "..."); got != "short" {
		t.Fatalf("short text should be untouched, got %q", got)
	}
}

func TestSafeWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := utils.SafeWriteFile(path, []byte("a\n")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := utils.SafeWriteFile(path, []byte("b\n")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "b\n" {
		t.Fatalf("unexpected content %q (%v)", b, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}
