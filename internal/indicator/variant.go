package indicator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kingrea/scoresmith/internal/duration"
)

// Manifest names for manifest-backed kinds.
const (
	ManifestInstruments    = "instruments"
	ManifestMarginMarkups  = "margin_markups"
	ManifestMetronomeMarks = "metronome_marks"
)

// variant is the per-kind capability record: how to decode a self-describing
// value, how to parse the short text form, and which manifest may back it.
type variant struct {
	manifest string
	decode   func(json.RawMessage) (Indicator, error)
	parse    func(string) (Indicator, error)
}

func decodeAs[T Indicator](raw json.RawMessage) (Indicator, error) {
	var v T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

var variants = map[Kind]variant{
	KindInstrument: {
		manifest: ManifestInstruments,
		decode:   decodeAs[Instrument],
	},
	KindMarginMarkup: {
		manifest: ManifestMarginMarkups,
		decode:   decodeAs[MarginMarkup],
		parse: func(s string) (Indicator, error) {
			text, short, _ := strings.Cut(s, "|")
			return MarginMarkup{Text: strings.TrimSpace(text), Short: strings.TrimSpace(short)}, nil
		},
	},
	KindMetronomeMark: {
		manifest: ManifestMetronomeMarks,
		decode:   decodeAs[MetronomeMark],
		parse: func(s string) (Indicator, error) {
			return ParseMetronomeMark(s)
		},
	},
	KindAccelerando: {
		decode: decodeAs[Accelerando],
		parse:  func(string) (Indicator, error) { return Accelerando{}, nil },
	},
	KindRitardando: {
		decode: decodeAs[Ritardando],
		parse:  func(string) (Indicator, error) { return Ritardando{}, nil },
	},
	KindMetricModulation: {
		decode: decodeAs[MetricModulation],
		parse: func(s string) (Indicator, error) {
			left, right, ok := strings.Cut(s, "=")
			if !ok {
				return nil, fmt.Errorf("metric modulation %q must be left=right", s)
			}
			return MetricModulation{Left: strings.TrimSpace(left), Right: strings.TrimSpace(right)}, nil
		},
	},
	KindClef: {
		decode: decodeAs[Clef],
		parse: func(s string) (Indicator, error) {
			if strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("clef name is required")
			}
			return Clef{Name: strings.TrimSpace(s)}, nil
		},
	},
	KindTimeSignature: {
		decode: decodeAs[TimeSignature],
		parse: func(s string) (Indicator, error) {
			ts, err := duration.ParseTimeSignature(s)
			if err != nil {
				return nil, err
			}
			return TimeSignature{Signature: ts}, nil
		},
	},
	KindDynamic: {
		decode: decodeAs[Dynamic],
		parse: func(s string) (Indicator, error) {
			s = strings.TrimSpace(s)
			d := Dynamic{Name: s}
			if strings.HasSuffix(s, "<") || strings.HasSuffix(s, ">") {
				d.Name, d.Trend = s[:len(s)-1], s[len(s)-1:]
			}
			if d.Name == "" {
				return nil, fmt.Errorf("dynamic name is required")
			}
			return d, nil
		},
	},
	KindStaffLines: {
		decode: decodeAs[StaffLines],
		parse: func(s string) (Indicator, error) {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("staff lines %q must be a non-negative integer", s)
			}
			return StaffLines{Count: n}, nil
		},
	},
	KindFermata: {
		decode: decodeAs[Fermata],
		parse: func(s string) (Indicator, error) {
			shape := strings.TrimSpace(s)
			if shape == "" {
				shape = "fermata"
			}
			if _, ok := FermataSeconds[shape]; !ok {
				return nil, fmt.Errorf("unknown fermata shape %q", s)
			}
			return Fermata{Shape: shape}, nil
		},
	},
	KindBarLine: {
		decode: decodeAs[BarLine],
		parse:  func(s string) (Indicator, error) { return BarLine{Abbreviation: s}, nil },
	},
	KindMarkup: {
		decode: decodeAs[Markup],
		parse:  func(s string) (Indicator, error) { return Markup{Text: s}, nil },
	},
	KindMarker: {
		decode: decodeAs[Marker],
	},
	KindSpanStart: {
		decode: decodeAs[SpanStart],
	},
	KindSpanStop: {
		decode: decodeAs[SpanStop],
	},
}

// Parse builds an indicator of the given kind from its short text form, for
// example Parse(KindClef, "bass") or Parse(KindMetronomeMark, "4=60").
func Parse(kind Kind, text string) (Indicator, error) {
	v, ok := variants[kind]
	if !ok || v.parse == nil {
		return nil, fmt.Errorf("indicator: %s has no text form", kind)
	}
	ind, err := v.parse(text)
	if err != nil {
		return nil, fmt.Errorf("indicator: %s: %w", kind, err)
	}
	return ind, nil
}

// ManifestFor returns the manifest that can back kind, if any.
func ManifestFor(kind Kind) string {
	return variants[kind].manifest
}

// KindForManifest is the inverse of ManifestFor.
func KindForManifest(manifest string) (Kind, bool) {
	for kind, v := range variants {
		if v.manifest != "" && v.manifest == manifest {
			return kind, true
		}
	}
	return KindUnknown, false
}

// Reconstruct decodes a self-describing value of the given kind.
func Reconstruct(kind Kind, raw json.RawMessage) (Indicator, error) {
	v, ok := variants[kind]
	if !ok {
		return nil, fmt.Errorf("indicator: cannot reconstruct %s", kind)
	}
	ind, err := v.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("indicator: decode %s: %w", kind, err)
	}
	return ind, nil
}

// manifestKey returns the lookup key when the indicator came from a manifest.
func manifestKey(ind Indicator) string {
	switch v := ind.(type) {
	case Instrument:
		return v.Key
	case MarginMarkup:
		return v.Key
	case MetronomeMark:
		return v.Key
	}
	return ""
}
