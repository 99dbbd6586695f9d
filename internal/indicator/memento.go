package indicator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kingrea/scoresmith/internal/tag"
)

// ErrNotPersistent is returned when a memento is requested for a transient kind.
var ErrNotPersistent = errors.New("indicator: kind is not persistent")

// Lookup resolves manifest keys to indicators.
type Lookup interface {
	Indicator(manifest, key string) (Indicator, error)
}

// Memento is the minimal serializable form of a persistent indicator.
// Exactly one of Manifest or Prototype is set.
type Memento struct {
	Context         string          `json:"context"`
	Editions        []string        `json:"editions,omitempty"`
	Manifest        string          `json:"manifest,omitempty"`
	Prototype       string          `json:"prototype,omitempty"`
	SyntheticOffset *int            `json:"synthetic_offset,omitempty"`
	Value           json.RawMessage `json:"value"`
}

// NewMemento condenses a persistent indicator. Manifest-backed values that
// carry a key are stored by key; everything else is stored self-describing.
func NewMemento(context string, ind Indicator, t tag.Tag, syntheticOffset *int) (Memento, error) {
	if ind == nil {
		return Memento{}, fmt.Errorf("indicator: nil indicator for %s", context)
	}
	kind := ind.Kind()
	if !kind.Persistent() {
		return Memento{}, fmt.Errorf("%w: %s", ErrNotPersistent, kind)
	}
	m := Memento{Context: context, Editions: t.Editions().Strings()}
	if syntheticOffset != nil {
		offset := *syntheticOffset
		if offset < 0 {
			offset = -offset
		}
		m.SyntheticOffset = &offset
	}
	if key := manifestKey(ind); key != "" && ManifestFor(kind) != "" {
		raw, err := json.Marshal(key)
		if err != nil {
			return Memento{}, err
		}
		m.Manifest = ManifestFor(kind)
		m.Value = raw
		return m, nil
	}
	raw, err := json.Marshal(ind)
	if err != nil {
		return Memento{}, fmt.Errorf("indicator: encode %s: %w", kind, err)
	}
	m.Prototype = kind.String()
	m.Value = raw
	return m, nil
}

// Kind reports the indicator kind the memento reconstructs to.
func (m Memento) Kind() (Kind, error) {
	if m.Manifest != "" {
		kind, ok := KindForManifest(m.Manifest)
		if !ok {
			return KindUnknown, fmt.Errorf("indicator: unknown manifest %q", m.Manifest)
		}
		return kind, nil
	}
	return ParseKind(m.Prototype)
}

// Reconstruct rebuilds the indicator, consulting lookup for manifest-backed
// values. A nil lookup fails manifest-backed mementos.
func (m Memento) Reconstruct(lookup Lookup) (Indicator, error) {
	kind, err := m.Kind()
	if err != nil {
		return nil, err
	}
	if m.Manifest != "" {
		var key string
		if err := json.Unmarshal(m.Value, &key); err != nil {
			return nil, fmt.Errorf("indicator: %s memento value must be a key: %w", m.Manifest, err)
		}
		if lookup == nil {
			return nil, fmt.Errorf("indicator: no manifests available for %s %q", m.Manifest, key)
		}
		return lookup.Indicator(m.Manifest, key)
	}
	return Reconstruct(kind, m.Value)
}

// ReappliedOffset is the synthetic offset used when the memento is attached
// at the start of the next segment: always negative.
func (m Memento) ReappliedOffset() int {
	if m.SyntheticOffset == nil || *m.SyntheticOffset == 0 {
		return -1
	}
	return -*m.SyntheticOffset
}

// Tag rebuilds the memento's editions as a tag.
func (m Memento) Tag() tag.Tag {
	return tag.New(m.Editions...)
}
