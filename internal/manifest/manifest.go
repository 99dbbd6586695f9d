// Package manifest holds the named lookup tables that commands and the
// persistent-indicator reapplier consult when a short key stands in for a
// concrete instrument, margin markup or metronome mark.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/pitch"
)

// ErrUnknownKey is returned when a manifest has no entry for a key.
var ErrUnknownKey = errors.New("manifest: unknown key")

// Manifests bundles every lookup table for one score.
type Manifests struct {
	Instruments    map[string]indicator.Instrument
	MarginMarkups  map[string]indicator.MarginMarkup
	MetronomeMarks map[string]indicator.MetronomeMark
	Parts          []string
}

type instrumentEntry struct {
	Name      string `yaml:"name"`
	ShortName string `yaml:"short_name,omitempty"`
	Range     string `yaml:"range,omitempty"`
}

type marginMarkupEntry struct {
	Text  string `yaml:"text"`
	Short string `yaml:"short,omitempty"`
}

type document struct {
	Instruments    map[string]instrumentEntry   `yaml:"instruments"`
	MarginMarkups  map[string]marginMarkupEntry `yaml:"margin_markups"`
	MetronomeMarks map[string]string            `yaml:"metronome_marks"`
	Parts          []string                     `yaml:"parts"`
}

// New returns empty manifests.
func New() *Manifests {
	return &Manifests{
		Instruments:    map[string]indicator.Instrument{},
		MarginMarkups:  map[string]indicator.MarginMarkup{},
		MetronomeMarks: map[string]indicator.MetronomeMark{},
	}
}

// Parse decodes the YAML manifest document.
func Parse(data []byte) (*Manifests, error) {
	out := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	for key, entry := range doc.Instruments {
		inst := indicator.Instrument{Key: key, Name: strings.TrimSpace(entry.Name), ShortName: strings.TrimSpace(entry.ShortName)}
		if inst.Name == "" {
			return nil, fmt.Errorf("manifest: instruments[%s]: name is required", key)
		}
		if strings.TrimSpace(entry.Range) != "" {
			r, err := pitch.ParseRange(entry.Range)
			if err != nil {
				return nil, fmt.Errorf("manifest: instruments[%s]: %w", key, err)
			}
			inst.Range = r
		}
		out.Instruments[key] = inst
	}
	for key, entry := range doc.MarginMarkups {
		if strings.TrimSpace(entry.Text) == "" {
			return nil, fmt.Errorf("manifest: margin_markups[%s]: text is required", key)
		}
		out.MarginMarkups[key] = indicator.MarginMarkup{Key: key, Text: entry.Text, Short: entry.Short}
	}
	for key, text := range doc.MetronomeMarks {
		mark, err := parseMark(text)
		if err != nil {
			return nil, fmt.Errorf("manifest: metronome_marks[%s]: %w", key, err)
		}
		mark.Key = key
		out.MetronomeMarks[key] = mark
	}
	seen := map[string]struct{}{}
	for _, part := range doc.Parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("manifest: parts: empty part name")
		}
		if _, dup := seen[part]; dup {
			return nil, fmt.Errorf("manifest: parts: duplicate part %s", part)
		}
		seen[part] = struct{}{}
		out.Parts = append(out.Parts, part)
	}
	return out, nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifests, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

// "Adagio 4=60" carries text; "4=60" does not.
func parseMark(text string) (indicator.MetronomeMark, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return indicator.MetronomeMark{}, fmt.Errorf("empty metronome mark")
	}
	mark, err := indicator.ParseMetronomeMark(fields[len(fields)-1])
	if err != nil {
		return indicator.MetronomeMark{}, err
	}
	mark.Text = strings.Join(fields[:len(fields)-1], " ")
	return mark, nil
}

// Indicator implements indicator.Lookup.
func (m *Manifests) Indicator(manifest, key string) (indicator.Indicator, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: %s %q (no manifests loaded)", ErrUnknownKey, manifest, key)
	}
	switch manifest {
	case indicator.ManifestInstruments:
		if v, ok := m.Instruments[key]; ok {
			return v, nil
		}
		return nil, unknown(manifest, key, keysOf(m.Instruments))
	case indicator.ManifestMarginMarkups:
		if v, ok := m.MarginMarkups[key]; ok {
			return v, nil
		}
		return nil, unknown(manifest, key, keysOf(m.MarginMarkups))
	case indicator.ManifestMetronomeMarks:
		if v, ok := m.MetronomeMarks[key]; ok {
			return v, nil
		}
		return nil, unknown(manifest, key, keysOf(m.MetronomeMarks))
	}
	return nil, fmt.Errorf("manifest: unknown manifest %q", manifest)
}

// Instrument is a typed convenience lookup.
func (m *Manifests) Instrument(key string) (indicator.Instrument, error) {
	ind, err := m.Indicator(indicator.ManifestInstruments, key)
	if err != nil {
		return indicator.Instrument{}, err
	}
	return ind.(indicator.Instrument), nil
}

// HasPart reports whether part is declared. With no declared parts every
// name is accepted.
func (m *Manifests) HasPart(part string) bool {
	if m == nil || len(m.Parts) == 0 {
		return true
	}
	for _, p := range m.Parts {
		if p == part {
			return true
		}
	}
	return false
}

func unknown(manifest, key string, candidates []string) error {
	if hints := Suggest(key, candidates); len(hints) > 0 {
		return fmt.Errorf("%w: %s %q (did you mean %s?)", ErrUnknownKey, manifest, key, strings.Join(hints, ", "))
	}
	return fmt.Errorf("%w: %s %q", ErrUnknownKey, manifest, key)
}

// Suggest returns up to three fuzzy matches for query among candidates.
func Suggest(query string, candidates []string) []string {
	if query == "" || len(candidates) == 0 {
		return nil
	}
	matches := fuzzy.Find(query, candidates)
	if len(matches) == 0 {
		lowered := strings.ToLower(query)
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c), lowered) || strings.Contains(lowered, strings.ToLower(c)) {
				return []string{c}
			}
		}
		return nil
	}
	out := make([]string, 0, 3)
	for _, match := range matches {
		out = append(out, match.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
