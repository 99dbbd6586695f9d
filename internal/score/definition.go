package score

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/scoresmith/internal/command"
	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/manifest"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/template"
)

// commandKey names the registry entry inside each command mapping; every
// other key is passed to the factory as its config.
const commandKey = "command"

// SegmentSpec declares one segment.
type SegmentSpec struct {
	Name           string           `yaml:"name"`
	TimeSignatures []string         `yaml:"time_signatures"`
	Options        segment.Options  `yaml:"options,omitempty"`
	Commands       []map[string]any `yaml:"commands,omitempty"`
}

// Definition describes a whole score.
type Definition struct {
	Name         string            `yaml:"name"`
	ManifestFile string            `yaml:"manifest_file,omitempty"`
	Manifest     map[string]any    `yaml:"manifest,omitempty"`
	Template     template.Template `yaml:"template"`
	Options      segment.Options   `yaml:"options,omitempty"`
	Segments     []SegmentSpec     `yaml:"segments"`

	// Path is where the definition was loaded from; relative manifest files
	// resolve against its directory.
	Path string `yaml:"-"`
}

// ParseDefinitionYAML decodes and validates a single score definition.
func ParseDefinitionYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("score: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("score: decode definition: %w", err)
	}
	def = def.Normalized()
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Normalized returns a trimmed copy of the definition.
func (def Definition) Normalized() Definition {
	clone := def
	clone.Name = strings.TrimSpace(def.Name)
	clone.ManifestFile = strings.TrimSpace(def.ManifestFile)
	clone.Segments = make([]SegmentSpec, len(def.Segments))
	for i, seg := range def.Segments {
		seg.Name = strings.TrimSpace(seg.Name)
		sigs := make([]string, len(seg.TimeSignatures))
		for j, sig := range seg.TimeSignatures {
			sigs[j] = strings.TrimSpace(sig)
		}
		seg.TimeSignatures = sigs
		clone.Segments[i] = seg
	}
	return clone
}

// Validate checks structure without resolving commands or manifests.
func (def Definition) Validate() error {
	if def.Name == "" {
		return fmt.Errorf("score: name is required")
	}
	if strings.ContainsAny(def.Name, `/\`) {
		return fmt.Errorf("score %s: name must not contain path separators", def.Name)
	}
	if err := def.Template.Validate(); err != nil {
		return fmt.Errorf("score %s: %w", def.Name, err)
	}
	if def.ManifestFile != "" && len(def.Manifest) > 0 {
		return fmt.Errorf("score %s: manifest and manifest_file are exclusive", def.Name)
	}
	if len(def.Segments) == 0 {
		return fmt.Errorf("score %s: at least one segment is required", def.Name)
	}
	seen := map[string]bool{}
	for i, seg := range def.Segments {
		if seg.Name == "" {
			return fmt.Errorf("score %s: segments[%d]: name is required", def.Name, i)
		}
		if strings.ContainsAny(seg.Name, `/\`) {
			return fmt.Errorf("score %s: segment %s: name must not contain path separators", def.Name, seg.Name)
		}
		if seen[seg.Name] {
			return fmt.Errorf("score %s: duplicate segment %s", def.Name, seg.Name)
		}
		seen[seg.Name] = true
		if _, err := seg.Signatures(); err != nil {
			return fmt.Errorf("score %s: segment %s: %w", def.Name, seg.Name, err)
		}
		for j, cmd := range seg.Commands {
			if name, _ := cmd[commandKey].(string); strings.TrimSpace(name) == "" {
				return fmt.Errorf("score %s: segment %s: commands[%d]: %s is required", def.Name, seg.Name, j, commandKey)
			}
		}
	}
	return nil
}

// Segment returns the named segment and its position.
func (def Definition) Segment(name string) (SegmentSpec, int, bool) {
	for i, seg := range def.Segments {
		if seg.Name == name {
			return seg, i, true
		}
	}
	return SegmentSpec{}, -1, false
}

// Signatures parses the segment's time signatures.
func (s SegmentSpec) Signatures() ([]duration.TimeSignature, error) {
	if len(s.TimeSignatures) == 0 {
		return nil, fmt.Errorf("time_signatures are required")
	}
	out := make([]duration.TimeSignature, len(s.TimeSignatures))
	for i, text := range s.TimeSignatures {
		sig, err := duration.ParseTimeSignature(text)
		if err != nil {
			return nil, err
		}
		out[i] = sig
	}
	return out, nil
}

// Commands resolves the segment's command list against reg. Each call
// returns fresh command values, so per-build state never leaks between
// builds.
func (s SegmentSpec) Commands(reg *command.Registry) ([]command.Command, error) {
	out := make([]command.Command, 0, len(s.Commands))
	for i, raw := range s.Commands {
		name, _ := raw[commandKey].(string)
		cfg := command.Config{}
		for key, value := range raw {
			if key != commandKey {
				cfg[key] = value
			}
		}
		cmd, err := reg.Resolve(strings.TrimSpace(name), cfg)
		if err != nil {
			return nil, fmt.Errorf("segment %s: commands[%d]: %w", s.Name, i, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}

// Manifests loads the definition's lookup tables: the inline manifest, the
// manifest file, or empty tables.
func (def Definition) Manifests() (*manifest.Manifests, error) {
	switch {
	case len(def.Manifest) > 0:
		data, err := yaml.Marshal(def.Manifest)
		if err != nil {
			return nil, fmt.Errorf("score %s: encode manifest: %w", def.Name, err)
		}
		m, err := manifest.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", def.Name, err)
		}
		return m, nil
	case def.ManifestFile != "":
		path := def.ManifestFile
		if !filepath.IsAbs(path) && def.Path != "" {
			path = filepath.Join(filepath.Dir(def.Path), path)
		}
		m, err := manifest.Load(path)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", def.Name, err)
		}
		return m, nil
	}
	return manifest.New(), nil
}
