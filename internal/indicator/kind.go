// Package indicator defines the closed set of annotations the interpreter
// attaches to leaves, which of them persist across segment boundaries, and
// the memento form used to carry persistent values into the next segment.
package indicator

import (
	"fmt"
	"strings"
)

// Kind enumerates indicator variants.
type Kind int

const (
	KindUnknown Kind = iota
	KindInstrument
	KindMarginMarkup
	KindMetronomeMark
	KindAccelerando
	KindRitardando
	KindMetricModulation
	KindClef
	KindTimeSignature
	KindDynamic
	KindStaffLines
	KindFermata
	KindBarLine
	KindMarkup
	KindMarker
	KindSpanStart
	KindSpanStop
)

var kindNames = map[Kind]string{
	KindInstrument:       "instrument",
	KindMarginMarkup:     "margin_markup",
	KindMetronomeMark:    "metronome_mark",
	KindAccelerando:      "accelerando",
	KindRitardando:       "ritardando",
	KindMetricModulation: "metric_modulation",
	KindClef:             "clef",
	KindTimeSignature:    "time_signature",
	KindDynamic:          "dynamic",
	KindStaffLines:       "staff_lines",
	KindFermata:          "fermata",
	KindBarLine:          "bar_line",
	KindMarkup:           "markup",
	KindMarker:           "marker",
	KindSpanStart:        "span_start",
	KindSpanStop:         "span_stop",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// StatusWord is the upper-case form used inside status tag words.
func (k Kind) StatusWord() string {
	return strings.ToUpper(k.String())
}

// ParseKind maps a name such as "metronome_mark" to its Kind.
func ParseKind(name string) (Kind, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == needle {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("indicator: unknown kind %q", name)
}

// Persistent kinds stay in effect until overridden by a later value.
func (k Kind) Persistent() bool {
	switch k {
	case KindInstrument, KindMarginMarkup, KindMetronomeMark, KindClef,
		KindTimeSignature, KindDynamic, KindStaffLines:
		return true
	}
	return false
}

// TempoFamily kinds participate in tempo bracketing.
func (k Kind) TempoFamily() bool {
	switch k {
	case KindMetronomeMark, KindAccelerando, KindRitardando, KindMetricModulation:
		return true
	}
	return false
}

// Status records how a persistent wrapper relates to the previous segment.
type Status string

const (
	StatusNone      Status = ""
	StatusReapplied Status = "reapplied"
	StatusExplicit  Status = "explicit"
	StatusRedundant Status = "redundant"
	StatusDefault   Status = "default"
)

// Word is the upper-case tag form of the status.
func (s Status) Word() string {
	return strings.ToUpper(string(s))
}

// Color is the highlight used when rendering wrappers with this status.
func (s Status) Color() string {
	switch s {
	case StatusReapplied:
		return "green4"
	case StatusExplicit:
		return "blue"
	case StatusRedundant:
		return "DeepPink1"
	case StatusDefault:
		return "DarkViolet"
	}
	return ""
}
