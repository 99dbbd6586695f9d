package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/pitch"
)

// Indicator is implemented only by the variants in this package.
type Indicator interface {
	Kind() Kind
	Equal(Indicator) bool
	String() string
	sealed()
}

// Instrument names the sounding instrument and its playable range.
type Instrument struct {
	Key       string      `json:"key,omitempty"`
	Name      string      `json:"name"`
	ShortName string      `json:"short_name,omitempty"`
	Range     pitch.Range `json:"range"`
}

func (Instrument) Kind() Kind { return KindInstrument }
func (Instrument) sealed()    {}
func (i Instrument) String() string {
	return i.Name
}
func (i Instrument) Equal(o Indicator) bool {
	other, ok := o.(Instrument)
	if !ok {
		return false
	}
	return i.Name == other.Name && i.ShortName == other.ShortName && i.Range == other.Range
}

// MarginMarkup is the staff label printed in the left margin.
type MarginMarkup struct {
	Key   string `json:"key,omitempty"`
	Text  string `json:"text"`
	Short string `json:"short,omitempty"`
}

func (MarginMarkup) Kind() Kind { return KindMarginMarkup }
func (MarginMarkup) sealed()    {}
func (m MarginMarkup) String() string {
	return m.Text
}
func (m MarginMarkup) Equal(o Indicator) bool {
	other, ok := o.(MarginMarkup)
	return ok && m.Text == other.Text && m.Short == other.Short
}

// MetronomeMark fixes the tempo: UnitsPerMinute beats of Reference length.
type MetronomeMark struct {
	Key            string            `json:"key,omitempty"`
	Reference      duration.Duration `json:"reference"`
	UnitsPerMinute duration.Duration `json:"units_per_minute"`
	Text           string            `json:"text,omitempty"`
}

func (MetronomeMark) Kind() Kind { return KindMetronomeMark }
func (MetronomeMark) sealed()    {}
func (m MetronomeMark) String() string {
	out := referenceName(m.Reference) + "=" + m.UnitsPerMinute.String()
	if m.Text != "" {
		out = m.Text + " " + out
	}
	return out
}
func (m MetronomeMark) Equal(o Indicator) bool {
	other, ok := o.(MetronomeMark)
	return ok && m.Reference == other.Reference && m.UnitsPerMinute == other.UnitsPerMinute && m.Text == other.Text
}

// Seconds converts a duration in whole notes to wall-clock seconds.
func (m MetronomeMark) Seconds(d duration.Duration) float64 {
	if m.Reference.IsZero() || m.UnitsPerMinute.IsZero() {
		return 0
	}
	beats := d.Div(m.Reference)
	return beats.Float64() * 60 / m.UnitsPerMinute.Float64()
}

// ParseMetronomeMark reads "4=60", "8.=72" or "4=72.5".
func ParseMetronomeMark(text string) (MetronomeMark, error) {
	refText, unitsText, ok := strings.Cut(strings.TrimSpace(text), "=")
	if !ok {
		return MetronomeMark{}, fmt.Errorf("indicator: metronome mark %q must be reference=units", text)
	}
	ref, err := parseReference(refText)
	if err != nil {
		return MetronomeMark{}, err
	}
	units, err := parseUnits(unitsText)
	if err != nil {
		return MetronomeMark{}, fmt.Errorf("indicator: metronome mark %q: %w", text, err)
	}
	return MetronomeMark{Reference: ref, UnitsPerMinute: units}, nil
}

func referenceName(ref duration.Duration) string {
	switch ref.Num() {
	case 1:
		return strconv.FormatInt(ref.Den(), 10)
	case 3:
		if ref.Den() >= 2 {
			return strconv.FormatInt(ref.Den()/2, 10) + "."
		}
	}
	return ref.String()
}

func parseReference(text string) (duration.Duration, error) {
	s := strings.TrimSpace(text)
	if strings.Contains(s, "/") {
		return duration.Parse(s)
	}
	dotted := strings.HasSuffix(s, ".")
	s = strings.TrimSuffix(s, ".")
	den, err := strconv.ParseInt(s, 10, 64)
	if err != nil || den <= 0 {
		return duration.Zero, fmt.Errorf("indicator: bad reference duration %q", text)
	}
	ref := duration.New(1, den)
	if dotted {
		ref = ref.Mul(duration.New(3, 2))
	}
	return ref, nil
}

func parseUnits(text string) (duration.Duration, error) {
	s := strings.TrimSpace(text)
	if whole, frac, ok := strings.Cut(s, "."); ok {
		n, err := strconv.ParseInt(whole+frac, 10, 64)
		if err != nil {
			return duration.Zero, err
		}
		den := int64(1)
		for range frac {
			den *= 10
		}
		return duration.New(n, den), nil
	}
	return duration.Parse(s)
}

// Accelerando marks a gradual tempo increase up to the next tempo change.
type Accelerando struct{}

func (Accelerando) Kind() Kind     { return KindAccelerando }
func (Accelerando) sealed()        {}
func (Accelerando) String() string { return "accel." }
func (Accelerando) Equal(o Indicator) bool {
	_, ok := o.(Accelerando)
	return ok
}

// Ritardando marks a gradual tempo decrease up to the next tempo change.
type Ritardando struct{}

func (Ritardando) Kind() Kind     { return KindRitardando }
func (Ritardando) sealed()        {}
func (Ritardando) String() string { return "rit." }
func (Ritardando) Equal(o Indicator) bool {
	_, ok := o.(Ritardando)
	return ok
}

// MetricModulation equates a left and a right note value. The notation of
// each side is passed through to the typesetter untouched.
type MetricModulation struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

func (MetricModulation) Kind() Kind { return KindMetricModulation }
func (MetricModulation) sealed()    {}
func (m MetricModulation) String() string {
	return m.Left + "=" + m.Right
}
func (m MetricModulation) Equal(o Indicator) bool {
	other, ok := o.(MetricModulation)
	return ok && m == other
}

// Clef names a clef such as treble, alto, bass.
type Clef struct {
	Name string `json:"name"`
}

func (Clef) Kind() Kind       { return KindClef }
func (Clef) sealed()          {}
func (c Clef) String() string { return c.Name }
func (c Clef) Equal(o Indicator) bool {
	other, ok := o.(Clef)
	return ok && c == other
}

// TimeSignature is the indicator form of a duration.TimeSignature.
type TimeSignature struct {
	Signature duration.TimeSignature `json:"signature"`
}

func (TimeSignature) Kind() Kind       { return KindTimeSignature }
func (TimeSignature) sealed()          {}
func (t TimeSignature) String() string { return t.Signature.String() }
func (t TimeSignature) Equal(o Indicator) bool {
	other, ok := o.(TimeSignature)
	return ok && t == other
}

// Dynamic is a dynamic level optionally opening a hairpin ("<" or ">").
type Dynamic struct {
	Name  string `json:"name"`
	Trend string `json:"trend,omitempty"`
}

func (Dynamic) Kind() Kind       { return KindDynamic }
func (Dynamic) sealed()          {}
func (d Dynamic) String() string { return d.Name + d.Trend }
func (d Dynamic) Equal(o Indicator) bool {
	other, ok := o.(Dynamic)
	return ok && d == other
}

// StaffLines sets the number of staff lines.
type StaffLines struct {
	Count int `json:"count"`
}

func (StaffLines) Kind() Kind       { return KindStaffLines }
func (StaffLines) sealed()          {}
func (s StaffLines) String() string { return strconv.Itoa(s.Count) }
func (s StaffLines) Equal(o Indicator) bool {
	other, ok := o.(StaffLines)
	return ok && s == other
}

// Fermata marks a measure as a pause. Seconds overrides the shape's default
// length when positive.
type Fermata struct {
	Shape   string  `json:"shape"`
	Seconds float64 `json:"seconds,omitempty"`
}

// FermataSeconds holds the default length of each fermata shape.
var FermataSeconds = map[string]float64{
	"short":    2,
	"fermata":  4,
	"long":     6,
	"verylong": 8,
}

func (Fermata) Kind() Kind       { return KindFermata }
func (Fermata) sealed()          {}
func (f Fermata) String() string { return f.Shape }
func (f Fermata) Equal(o Indicator) bool {
	other, ok := o.(Fermata)
	return ok && f == other
}

// Length returns the authored duration of the fermata in seconds.
func (f Fermata) Length() float64 {
	if f.Seconds > 0 {
		return f.Seconds
	}
	if s, ok := FermataSeconds[f.Shape]; ok {
		return s
	}
	return FermataSeconds["fermata"]
}

// BarLine is a bar line abbreviation; the empty abbreviation is an invisible bar.
type BarLine struct {
	Abbreviation string `json:"abbreviation"`
}

func (BarLine) Kind() Kind       { return KindBarLine }
func (BarLine) sealed()          {}
func (b BarLine) String() string { return strconv.Quote(b.Abbreviation) }
func (b BarLine) Equal(o Indicator) bool {
	other, ok := o.(BarLine)
	return ok && b == other
}

// Markup is free text attached to a leaf.
type Markup struct {
	Text string `json:"text"`
}

func (Markup) Kind() Kind       { return KindMarkup }
func (Markup) sealed()          {}
func (m Markup) String() string { return m.Text }
func (m Markup) Equal(o Indicator) bool {
	other, ok := o.(Markup)
	return ok && m == other
}

// Marker is a non-fatal validation highlight.
type Marker struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (Marker) Kind() Kind       { return KindMarker }
func (Marker) sealed()          {}
func (m Marker) String() string { return m.Name + "(" + m.Color + ")" }
func (m Marker) Equal(o Indicator) bool {
	other, ok := o.(Marker)
	return ok && m == other
}

// SpanStart opens a named text span. Shape describes the bracket drawn
// between start and stop (for example "solid-line-with-hook", "dashed-arrow").
type SpanStart struct {
	Name  string `json:"name"`
	Text  string `json:"text,omitempty"`
	Shape string `json:"shape,omitempty"`
	Color string `json:"color,omitempty"`
}

func (SpanStart) Kind() Kind { return KindSpanStart }
func (SpanStart) sealed()    {}
func (s SpanStart) String() string {
	return s.Name + "[" + s.Text + "]"
}
func (s SpanStart) Equal(o Indicator) bool {
	other, ok := o.(SpanStart)
	return ok && s == other
}

// SpanStop closes the span with the same name. After places the stop at the
// end of the leaf rather than its start.
type SpanStop struct {
	Name  string `json:"name"`
	After bool   `json:"after,omitempty"`
}

func (SpanStop) Kind() Kind { return KindSpanStop }
func (SpanStop) sealed()    {}
func (s SpanStop) String() string {
	if s.After {
		return s.Name + "]>"
	}
	return s.Name + "]"
}
func (s SpanStop) Equal(o Indicator) bool {
	other, ok := o.(SpanStop)
	return ok && s == other
}
