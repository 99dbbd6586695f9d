// Package store persists built segments: the metadata and persist records
// the next segment bootstraps from, plus a text dump of the tree and a small
// build manifest.
//
// Layout under the output directory:
//
//	<score>/<segment>/metadata.json
//	<score>/<segment>/persist.json
//	<score>/<segment>/tree.txt
//	<score>/<segment>/build.json
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kingrea/scoresmith/internal/segment"
)

// ErrNotFound is returned when a segment has not been built yet.
var ErrNotFound = errors.New("store: segment not found")

// Build describes one successful segment build.
type Build struct {
	ID       string        `json:"id"`
	Score    string        `json:"score"`
	Segment  string        `json:"segment"`
	BuiltAt  time.Time     `json:"built_at"`
	Elapsed  string        `json:"elapsed"`
	Stats    segment.Stats `json:"stats"`
	Warnings int           `json:"warnings"`
}

// Record is everything stored for one segment.
type Record struct {
	Metadata segment.Metadata
	Persist  segment.Persist
	Tree     string
	Build    Build
}

// Store loads and saves segment records.
type Store interface {
	Load(score, name string) (Record, error)
	Save(score, name string, rec Record) error
	Segments(score string) ([]string, error)
}

// Repository stores records as JSON files under a root directory.
type Repository struct {
	root string
}

// NewRepository creates a repository rooted at dir.
func NewRepository(dir string) *Repository {
	return &Repository{root: dir}
}

// Root returns the output directory.
func (r *Repository) Root() string { return r.root }

func (r *Repository) dir(score, name string) string {
	return filepath.Join(r.root, score, name)
}

// Load reads every file of a built segment.
func (r *Repository) Load(score, name string) (Record, error) {
	dir := r.dir(score, name)
	var rec Record
	if err := readJSON(filepath.Join(dir, "metadata.json"), &rec.Metadata); err != nil {
		return Record{}, fmt.Errorf("store: %s/%s: %w", score, name, err)
	}
	if err := readJSON(filepath.Join(dir, "persist.json"), &rec.Persist); err != nil {
		return Record{}, fmt.Errorf("store: %s/%s: %w", score, name, err)
	}
	if err := readJSON(filepath.Join(dir, "build.json"), &rec.Build); err != nil && !errors.Is(err, ErrNotFound) {
		return Record{}, fmt.Errorf("store: %s/%s: %w", score, name, err)
	}
	tree, err := os.ReadFile(filepath.Join(dir, "tree.txt"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("store: %s/%s: %w", score, name, err)
	}
	rec.Tree = string(tree)
	return rec, nil
}

// Save writes the pruned records with sorted keys. Each file is replaced
// atomically; a failure part way leaves earlier files updated.
func (r *Repository) Save(score, name string, rec Record) error {
	dir := r.dir(score, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	metadata, err := rec.Metadata.ToRecord()
	if err != nil {
		return fmt.Errorf("store: %s/%s metadata: %w", score, name, err)
	}
	persist, err := rec.Persist.ToRecord()
	if err != nil {
		return fmt.Errorf("store: %s/%s persist: %w", score, name, err)
	}
	files := []struct {
		name  string
		value any
	}{
		{"metadata.json", metadata},
		{"persist.json", persist},
		{"build.json", rec.Build},
	}
	for _, f := range files {
		encoded, err := json.MarshalIndent(f.value, "", "  ")
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", f.name, err)
		}
		if err := writeFile(filepath.Join(dir, f.name), append(encoded, '\n')); err != nil {
			return err
		}
	}
	if rec.Tree != "" {
		if err := writeFile(filepath.Join(dir, "tree.txt"), []byte(rec.Tree)); err != nil {
			return err
		}
	}
	return nil
}

// Segments lists the built segments of a score in name order.
func (r *Repository) Segments(score string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.root, score))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.root, score, entry.Name(), "persist.json")); err == nil {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Scores lists the score directories that hold at least one built segment.
func (r *Repository) Scores() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if segments, _ := r.Segments(entry.Name()); len(segments) > 0 {
			out = append(out, entry.Name())
		}
	}
	return out, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
