// Package logging writes the process log every scoresmith command appends
// to, so failures can be inspected after the terminal is gone.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/scoresmith/internal/config"
)

// Logger appends timestamped lines to .scoresmith/logs/scoresmith.log.
type Logger struct {
	mu     *sync.Mutex
	file   *os.File
	prefix string
}

// New creates (or reuses) the log file for the project.
func New(cfg *config.Config) (*Logger, error) {
	logDir := cfg.LogsDir()
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, "scoresmith.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{mu: &sync.Mutex{}, file: f}, nil
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// WithPrefix returns a logger sharing the same file whose lines start with
// "prefix: ". Closing either closes the file.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{mu: l.mu, file: l.file, prefix: strings.TrimSpace(prefix)}
}

// Printf writes a single timestamped line to the log file.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if l.prefix != "" {
		line = l.prefix + ": " + line
	}
	timestamp := time.Now().Format(time.RFC3339)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, line)
}
