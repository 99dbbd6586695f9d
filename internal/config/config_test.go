package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, projectDir, body string) {
	t.Helper()
	dir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(strings.TrimSpace(body)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.OutputDir() != filepath.Join(c.ProjectDir, "build") {
		t.Fatalf("expected output dir under project, got %s", c.OutputDir())
	}
	if len(c.Scores()) != 0 {
		t.Fatalf("expected no scores, got %v", c.Scores())
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
version: 1
scores:
  - name: Quartet
    path: scores/quartet.yaml
  - name: etude
    path: /abs/etude.go
output_dir: out
defaults:
  append_phantom_measure: true
  require: [clef]
  stages: [2, 2]
`)
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if len(c.Scores()) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(c.Scores()))
	}
	quartet, ok := c.Score("quartet")
	if !ok || !strings.HasPrefix(quartet.Path, c.ProjectDir) {
		t.Fatalf("expected relative score path resolved, got %+v", quartet)
	}
	if etude, _ := c.Score("etude"); etude.Path != "/abs/etude.go" {
		t.Fatalf("expected absolute path untouched, got %s", etude.Path)
	}
	if !c.Project.Defaults.AppendPhantomMeasure || len(c.Project.Defaults.Require) != 1 {
		t.Fatalf("expected segment defaults decoded, got %+v", c.Project.Defaults)
	}
	if c.OutputDir() != filepath.Join(c.ProjectDir, "out") {
		t.Fatalf("unexpected output dir %s", c.OutputDir())
	}
}

func TestNewConfigValidation(t *testing.T) {
	cases := map[string]string{
		"missing path": "version: 1\nscores:\n  - name: a\n",
		"duplicate":    "version: 1\nscores:\n  - name: a\n    path: a.yaml\n  - name: A\n    path: b.yaml\n",
		"bad stages":   "version: 1\ndefaults:\n  stages: [0]\n",
		"bad port":     "version: 1\nserver:\n  port: 70000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			writeConfig(t, projectDir, body)
			if _, err := NewConfig(projectDir); err == nil {
				t.Fatalf("expected validation error but got none")
			}
		})
	}
}

func TestInitDirWritesDefaultConfigOnce(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	for _, sub := range []string{"logs", "metrics"} {
		if info, err := os.Stat(filepath.Join(projectDir, Dir, sub)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, got %v", sub, err)
		}
	}
	path := filepath.Join(projectDir, Dir, "config.yaml")
	if err := os.WriteFile(path, []byte("version: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("second InitDir: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "version: 2\n" {
		t.Fatalf("expected existing config preserved, got %q", data)
	}
	c, err := NewConfig(projectDir)
	if err != nil || c.Project.Version != 2 {
		t.Fatalf("expected version 2, got %v (%v)", c, err)
	}
}

func TestAddScorePersistsRelativePaths(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddScore("sonata", filepath.Join(c.ProjectDir, "scores", "sonata.yaml")); err != nil {
		t.Fatalf("AddScore: %v", err)
	}
	data, err := os.ReadFile(c.ProjectConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "path: scores/sonata.yaml") {
		t.Fatalf("expected relative path on disk, got:\n%s", data)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Score("sonata"); !ok {
		t.Fatalf("expected sonata after reload, got %v", reloaded.Scores())
	}
}
