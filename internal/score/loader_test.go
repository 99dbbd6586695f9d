package score

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAMLDefinition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "etude.yml", etudeYAML)
	def, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.Name != "Etude" || def.Path != filepath.Clean(path) {
		t.Fatalf("unexpected definition %q from %q", def.Name, def.Path)
	}
}

func TestLoadGoDefinition(t *testing.T) {
	const script = `package main

import "fmt"

func ScoreDefinition() (map[string]any, error) {
	var segments []any
	for i, sig := range []string{"4/4", "3/4", "5/8"} {
		segments = append(segments, map[string]any{
			"name":            fmt.Sprintf("S%d", i+1),
			"time_signatures": []any{sig, sig},
		})
	}
	return map[string]any{
		"name": "Generated",
		"template": map[string]any{
			"staves": []any{map[string]any{"name": "Flute"}},
		},
		"segments": segments,
	}, nil
}
`
	def, err := Load(writeFile(t, t.TempDir(), "generated.go", script))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.Name != "Generated" || len(def.Segments) != 3 {
		t.Fatalf("unexpected definition %+v", def)
	}
	if got := def.Segments[2].TimeSignatures; len(got) != 2 || got[0] != "5/8" {
		t.Fatalf("unexpected signatures %v", got)
	}
}

func TestLoadGoDefinitionErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]struct {
		script string
		want   string
	}{
		"missing func": {script: "package main\n\nfunc Other() {}\n", want: "must define ScoreDefinition"},
		"returned error": {script: `package main

import "errors"

func ScoreDefinition() (map[string]any, error) {
	return nil, errors.New("no segments yet")
}
`, want: "no segments yet"},
		"invalid definition": {script: `package main

func ScoreDefinition() (map[string]any, error) {
	return map[string]any{"name": "Broken"}, nil
}
`, want: "Broken"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, strings.ReplaceAll(name, " ", "_")+".go", tc.script))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load(writeFile(t, t.TempDir(), "score.toml", "name = 'x'"))
	if err == nil || !strings.Contains(err.Error(), "unsupported definition type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
