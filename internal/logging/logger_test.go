package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/scoresmith/internal/config"
)

func TestPrintfAppendsPrefixedLines(t *testing.T) {
	cfg, err := config.NewConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	log, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Printf("starting %s\n", "build")
	log.WithPrefix("quartet").Printf("segment %d done", 2)
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.LogsDir(), "scoresmith.log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	if !strings.HasSuffix(lines[0], "] starting build") || !strings.HasSuffix(lines[1], "] quartet: segment 2 done") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	var log *Logger
	log.Printf("ignored")
	if log.WithPrefix("x") != nil || log.Close() != nil {
		t.Fatalf("expected nil logger to be inert")
	}
}
