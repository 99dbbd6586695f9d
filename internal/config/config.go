// Package config handles .scoresmith/config.yaml and the directory layout
// every scoresmith project gets in its root.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/scoresmith/internal/segment"
)

const (
	// Dir is the name of the directory created in each project.
	Dir = ".scoresmith"

	defaultOutputDir = "build"
)

const defaultProjectConfigYAML = `# scoresmith project configuration
version: 1

# Score definitions to build. Paths are relative to the project root and may
# point at YAML files or Go scripts exposing ScoreDefinition().
scores:
  - name: example
    path: scores/example.yaml

# Where built segments (metadata.json, persist.json, tree.txt) are written.
output_dir: build

# Segment options applied to every segment unless the score overrides them.
defaults:
  append_phantom_measure: true
  color_octaves: false

# HTTP build server started by "scoresmith serve".
server:
  host: 127.0.0.1
  port: 8765
`

// ScoreRef declares one score definition inside .scoresmith/config.yaml.
type ScoreRef struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP build server. Nil Enabled means enabled.
type ServerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// ProjectConfig models .scoresmith/config.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	Scores    []ScoreRef      `yaml:"scores"`
	OutputDir string          `yaml:"output_dir"`
	Defaults  segment.Options `yaml:"defaults"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// Config holds the runtime configuration for one project.
type Config struct {
	// ProjectDir is the directory scoresmith was run from.
	ProjectDir string
	// StateDir is ProjectDir/.scoresmith.
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .scoresmith directory structure in projectDir and
// writes a default config when none exists.
//
//	.scoresmith/
//	├── config.yaml
//	├── logs/      <- process log and build journal
//	└── metrics/   <- prometheus textfile exports
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, Dir)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "metrics"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads the project config, falling back to defaults when the file
// is missing.
func NewConfig(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", projectDir, err)
	}
	cfg := &Config{
		ProjectDir: abs,
		StateDir:   filepath.Join(abs, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the directory holding the process log and journal.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// JournalPath returns the build journal written by the logbook.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "builds.log")
}

// MetricsPath returns the prometheus textfile the CLI exports after a build.
func (c *Config) MetricsPath() string {
	return filepath.Join(c.StateDir, "metrics", "scoresmith.prom")
}

// OutputDir returns the absolute directory built segments are written to.
func (c *Config) OutputDir() string {
	return c.Project.OutputDir
}

// ProjectConfigPath returns the on-disk location of the project config.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// Scores returns the configured score references.
func (c *Config) Scores() []ScoreRef {
	return c.Project.Scores
}

// Score looks up a configured score by name.
func (c *Config) Score(name string) (ScoreRef, bool) {
	for _, ref := range c.Project.Scores {
		if strings.EqualFold(ref.Name, strings.TrimSpace(name)) {
			return ref, true
		}
	}
	return ScoreRef{}, false
}

// AddScore registers a score definition and persists the config. An existing
// entry with the same name is repointed.
func (c *Config) AddScore(name, path string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("config: score name is required")
	}
	ref := ScoreRef{Name: name, Path: path}
	replaced := false
	for i := range c.Project.Scores {
		if strings.EqualFold(c.Project.Scores[i].Name, name) {
			c.Project.Scores[i] = ref
			replaced = true
		}
	}
	if !replaced {
		c.Project.Scores = append(c.Project.Scores, ref)
	}
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{Version: 1, OutputDir: defaultOutputDir}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.OutputDir) == "" {
		pc.OutputDir = defaultOutputDir
	}
}

func (pc *ProjectConfig) normalize(base string) {
	for i := range pc.Scores {
		pc.Scores[i].Name = strings.TrimSpace(pc.Scores[i].Name)
		pc.Scores[i].Path = resolvePath(base, pc.Scores[i].Path)
	}
	pc.OutputDir = resolvePath(base, pc.OutputDir)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	seen := map[string]bool{}
	for i, ref := range pc.Scores {
		if ref.Name == "" {
			return fmt.Errorf("scores[%d]: name is required", i)
		}
		if ref.Path == "" {
			return fmt.Errorf("scores[%d]: path is required", i)
		}
		key := strings.ToLower(ref.Name)
		if seen[key] {
			return fmt.Errorf("scores[%d]: duplicate score %q", i, ref.Name)
		}
		seen[key] = true
	}
	if pc.Server.Port < 0 || pc.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", pc.Server.Port)
	}
	for i, count := range pc.Defaults.Stages {
		if count < 1 {
			return fmt.Errorf("defaults.stages[%d]: must be positive", i)
		}
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", Dir, err)
	}
	out := c.Project
	out.Scores = make([]ScoreRef, len(c.Project.Scores))
	for i, ref := range c.Project.Scores {
		out.Scores[i] = ScoreRef{Name: ref.Name, Path: relativePath(c.ProjectDir, ref.Path)}
	}
	out.OutputDir = relativePath(c.ProjectDir, c.Project.OutputDir)
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func relativePath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
