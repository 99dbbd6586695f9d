package logbook

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "builds.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestScopesPrefixEntriesAndShareCounts(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "nested", "builds.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	segment := book.Scope("quartet").Scope("B")
	segment.Warn("no metronome mark")
	book.Error("boom")
	lines, _ := book.Tail(10)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	if !strings.Contains(lines[0], "WARN  [quartet/B] no metronome mark") {
		t.Fatalf("unexpected scoped line %q", lines[0])
	}
	if book.Count(LevelWarn) != 1 || segment.Count(LevelError) != 1 {
		t.Fatalf("expected counts shared across scopes")
	}
}

func TestConcurrentAppendsKeepWholeLines(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "builds.log"))
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			book.Scope("score").Info("line %d", i)
		}(i)
	}
	wg.Wait()
	lines, total := book.Tail(100)
	if total != 8 || len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d", total)
	}
	for _, line := range lines {
		if !strings.Contains(line, "INFO  [score] line ") {
			t.Fatalf("malformed line %q", line)
		}
	}
}

func TestNilLogbookIsInert(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(3); lines != nil || total != 0 {
		t.Fatalf("expected empty tail")
	}
	if book.Scope("x") != nil || book.Count(LevelInfo) != 0 {
		t.Fatalf("expected nil logbook to stay nil")
	}
}
