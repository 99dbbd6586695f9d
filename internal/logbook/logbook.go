// Package logbook keeps the build journal: one leveled line per event, shared
// by every score and segment a command builds.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook persists build progress to a simple text file. Scoped copies made
// with Scope share the file and its lock.
type Logbook struct {
	path  string
	scope string
	state *state
}

type state struct {
	mu     sync.Mutex
	counts map[Level]int
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Logbook{path: path, state: &state{counts: map[Level]int{}}}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Scope returns a logbook whose entries are prefixed "[name]", nested scopes
// joined by "/".
func (l *Logbook) Scope(name string) *Logbook {
	if l == nil {
		return nil
	}
	scope := strings.TrimSpace(name)
	if l.scope != "" {
		scope = l.scope + "/" + scope
	}
	return &Logbook{path: l.path, scope: scope, state: l.state}
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	message = strings.TrimSpace(message)
	if l.scope != "" {
		message = "[" + l.scope + "] " + message
	}
	line := fmt.Sprintf("%s %-5s %s\n",
		time.Now().UTC().Format(time.RFC3339),
		string(level),
		message,
	)
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.state.counts[level]++
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Count reports how many entries of level this process appended.
func (l *Logbook) Count(level Level) int {
	if l == nil {
		return 0
	}
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	return l.state.counts[level]
}

// Tail returns up to maxLines of the most recent entries and the total
// number of lines in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
