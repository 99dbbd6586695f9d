package score

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const etudeYAML = `
name: Etude
manifest:
  metronome_marks:
    slow: "4=60"
  parts: [Violin]
template:
  staves:
    - name: Violin
    - name: Cello
options:
  append_phantom_measure: true
segments:
  - name: A
    time_signatures: ["4/4", "3/4"]
    commands:
      - command: notes
        scope: Violin_Voice
        durations: ["1/4"]
      - command: metronome_mark
        scope: GlobalSkips
        key: slow
  - name: B
    time_signatures: ["4/4"]
    options:
      color_octaves: true
    commands:
      - command: rests
        scope: Cello_Voice
`

func TestParseDefinitionYAML(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(etudeYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Name != "Etude" || len(def.Segments) != 2 {
		t.Fatalf("unexpected definition %+v", def)
	}
	spec, index, ok := def.Segment("B")
	if !ok || index != 1 || len(spec.Commands) != 1 {
		t.Fatalf("segment B lookup failed: %+v %d %v", spec, index, ok)
	}
	sigs, err := def.Segments[0].Signatures()
	if err != nil || len(sigs) != 2 || sigs[1].String() != "3/4" {
		t.Fatalf("unexpected signatures %v (%v)", sigs, err)
	}
	commands, err := def.Segments[0].Commands(NewBuilder().registry)
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	if len(commands) != 2 || commands[0].Name() != "notes" || commands[1].Name() != "metronome_mark" {
		t.Fatalf("unexpected commands %v", commands)
	}
	m, err := def.Manifests()
	if err != nil {
		t.Fatalf("manifests: %v", err)
	}
	if !m.HasPart("Violin") {
		t.Fatalf("inline manifest parts were not decoded")
	}
}

func TestParseDefinitionYAMLRejectsBadDefinitions(t *testing.T) {
	cases := map[string]struct {
		payload string
		want    string
	}{
		"empty": {payload: "  ", want: "payload is empty"},
		"no name": {payload: `
template: {staves: [{name: V}]}
segments: [{name: A, time_signatures: ["4/4"]}]
`, want: "name is required"},
		"no segments": {payload: `
name: S
template: {staves: [{name: V}]}
`, want: "at least one segment"},
		"duplicate segment": {payload: `
name: S
template: {staves: [{name: V}]}
segments:
  - {name: A, time_signatures: ["4/4"]}
  - {name: A, time_signatures: ["4/4"]}
`, want: "duplicate segment A"},
		"bad signature": {payload: `
name: S
template: {staves: [{name: V}]}
segments: [{name: A, time_signatures: ["four"]}]
`, want: "segment A"},
		"missing command name": {payload: `
name: S
template: {staves: [{name: V}]}
segments:
  - name: A
    time_signatures: ["4/4"]
    commands: [{scope: V_Voice}]
`, want: "command is required"},
		"both manifests": {payload: `
name: S
manifest_file: manifest.yaml
manifest: {parts: [V]}
template: {staves: [{name: V}]}
segments: [{name: A, time_signatures: ["4/4"]}]
`, want: "exclusive"},
		"path separator": {payload: `
name: a/b
template: {staves: [{name: V}]}
segments: [{name: A, time_signatures: ["4/4"]}]
`, want: "path separators"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDefinitionYAML([]byte(tc.payload))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestUnknownCommandFailsResolution(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(`
name: S
template: {staves: [{name: V}]}
segments:
  - name: A
    time_signatures: ["4/4"]
    commands: [{command: glissando, scope: V_Voice}]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := def.Segments[0].Commands(NewBuilder().registry); err == nil {
		t.Fatalf("expected unknown command to fail")
	}
}

func TestManifestFileResolvesAgainstDefinition(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tables.yaml"), []byte("parts: [Viola]\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	path := filepath.Join(dir, "score.yaml")
	payload := `
name: S
manifest_file: tables.yaml
template: {staves: [{name: Viola}]}
segments: [{name: A, time_signatures: ["4/4"]}]
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write score: %v", err)
	}
	def, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m, err := def.Manifests()
	if err != nil {
		t.Fatalf("manifests: %v", err)
	}
	if !m.HasPart("Viola") {
		t.Fatalf("manifest file was not read relative to %s", path)
	}
}
