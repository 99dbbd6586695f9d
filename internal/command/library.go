package command

import (
	"fmt"
	"strings"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/pitch"
	"github.com/kingrea/scoresmith/internal/tree"
)

// RegisterBuiltins installs the stock command library into reg.
func RegisterBuiltins(reg *Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister("notes", NewNotes)
	reg.MustRegister("rests", NewRests)
	reg.MustRegister("pitches", NewPitches)
	reg.MustRegister("attach", NewAttach)
	reg.MustRegister("instrument", manifestFactory("instrument", indicator.ManifestInstruments))
	reg.MustRegister("margin_markup", manifestFactory("margin_markup", indicator.ManifestMarginMarkups))
	reg.MustRegister("metronome_mark", NewMetronomeMark)
	reg.MustRegister("fermata", NewFermata)
	reg.MustRegister("annotate", NewAnnotate)
	reg.MustRegister("split", NewSplit)
	reg.MustRegister("part", NewPart)
}

// DefaultContext is the context type an indicator governs unless a command
// says otherwise.
func DefaultContext(kind indicator.Kind) string {
	switch kind {
	case indicator.KindInstrument, indicator.KindMarginMarkup, indicator.KindClef, indicator.KindStaffLines:
		return tree.ContextStaff
	case indicator.KindMetronomeMark, indicator.KindAccelerando, indicator.KindRitardando,
		indicator.KindMetricModulation, indicator.KindTimeSignature, indicator.KindFermata, indicator.KindBarLine:
		return tree.ContextScore
	}
	return ""
}

type indicatorBase struct {
	Base
}

func (c *indicatorBase) Mutates() bool { return false }

// place attaches a fresh wrapper of ind to each leaf chosen by where.
func (c *indicatorBase) place(tr *tree.Tree, leaves []tree.NodeID, ind indicator.Indicator, context, where string) error {
	if len(leaves) == 0 {
		return nil
	}
	if context == "" {
		context = DefaultContext(ind.Kind())
	}
	var targets []tree.NodeID
	switch where {
	case "", "first":
		targets = leaves[:1]
	case "last":
		targets = leaves[len(leaves)-1:]
	case "each":
		targets = leaves
	default:
		return fmt.Errorf("command: %s: unknown leaf position %q", c.name, where)
	}
	for _, leaf := range targets {
		w := tree.NewWrapper(ind, c.tag).WithContext(context)
		if err := tr.Attach(leaf, w); err != nil {
			return fmt.Errorf("command: %s: %w", c.name, err)
		}
	}
	return nil
}

// Attach places any indicator with a text form.
// Options: indicator (kind name), value, context, leaf (first|last|each).
type Attach struct {
	indicatorBase
	indicator indicator.Indicator
	context   string
	where     string
}

// NewAttach is the "attach" factory.
func NewAttach(cfg Config) (Command, error) {
	base, err := NewBase("attach", cfg)
	if err != nil {
		return nil, err
	}
	kindName, err := cfg.String("indicator")
	if err != nil {
		return nil, fmt.Errorf("command: attach: %w", err)
	}
	kind, err := indicator.ParseKind(kindName)
	if err != nil {
		return nil, fmt.Errorf("command: attach: %w", err)
	}
	value, err := cfg.OptionalString("value")
	if err != nil {
		return nil, fmt.Errorf("command: attach: %w", err)
	}
	ind, err := indicator.Parse(kind, value)
	if err != nil {
		return nil, fmt.Errorf("command: attach: %w", err)
	}
	context, _ := cfg.OptionalString("context")
	where, _ := cfg.OptionalString("leaf")
	base.name = "attach " + kind.String()
	return &Attach{indicatorBase: indicatorBase{base}, indicator: ind, context: context, where: where}, nil
}

// Apply implements IndicatorCommand.
func (c *Attach) Apply(tr *tree.Tree, leaves []tree.NodeID, _ Runtime) error {
	return c.place(tr, leaves, c.indicator, c.context, c.where)
}

// ManifestIndicator attaches a manifest entry, looked up at apply time.
type ManifestIndicator struct {
	indicatorBase
	manifest string
	key      string
}

func manifestFactory(name, table string) Factory {
	return func(cfg Config) (Command, error) {
		base, err := NewBase(name, cfg)
		if err != nil {
			return nil, err
		}
		key, err := cfg.String("key")
		if err != nil {
			return nil, fmt.Errorf("command: %s: %w", name, err)
		}
		return &ManifestIndicator{indicatorBase: indicatorBase{base}, manifest: table, key: key}, nil
	}
}

// Apply implements IndicatorCommand.
func (c *ManifestIndicator) Apply(tr *tree.Tree, leaves []tree.NodeID, rt Runtime) error {
	ind, err := rt.Manifests().Indicator(c.manifest, c.key)
	if err != nil {
		return fmt.Errorf("command: %s: %w", c.name, err)
	}
	return c.place(tr, leaves, ind, "", "first")
}

// MetronomeMark attaches a tempo either by manifest key or literal mark.
type MetronomeMark struct {
	indicatorBase
	key  string
	mark indicator.MetronomeMark
}

// NewMetronomeMark is the "metronome_mark" factory. Options: key or mark.
func NewMetronomeMark(cfg Config) (Command, error) {
	base, err := NewBase("metronome_mark", cfg)
	if err != nil {
		return nil, err
	}
	key, _ := cfg.OptionalString("key")
	text, _ := cfg.OptionalString("mark")
	if (key == "") == (text == "") {
		return nil, fmt.Errorf("command: metronome_mark: exactly one of key or mark is required")
	}
	c := &MetronomeMark{indicatorBase: indicatorBase{base}, key: key}
	if text != "" {
		mark, err := indicator.ParseMetronomeMark(text)
		if err != nil {
			return nil, fmt.Errorf("command: metronome_mark: %w", err)
		}
		c.mark = mark
	}
	return c, nil
}

// Apply implements IndicatorCommand.
func (c *MetronomeMark) Apply(tr *tree.Tree, leaves []tree.NodeID, rt Runtime) error {
	var ind indicator.Indicator = c.mark
	if c.key != "" {
		found, err := rt.Manifests().Indicator(indicator.ManifestMetronomeMarks, c.key)
		if err != nil {
			return fmt.Errorf("command: metronome_mark: %w", err)
		}
		ind = found
	}
	return c.place(tr, leaves, ind, "", "first")
}

// Fermata marks every selected rest-track measure. Options: shape, seconds.
type Fermata struct {
	indicatorBase
	fermata indicator.Fermata
}

// NewFermata is the "fermata" factory.
func NewFermata(cfg Config) (Command, error) {
	base, err := NewBase("fermata", cfg)
	if err != nil {
		return nil, err
	}
	shape, _ := cfg.OptionalString("shape")
	ind, err := indicator.Parse(indicator.KindFermata, shape)
	if err != nil {
		return nil, fmt.Errorf("command: fermata: %w", err)
	}
	f := ind.(indicator.Fermata)
	seconds, err := cfg.Int("seconds", 0)
	if err != nil {
		return nil, fmt.Errorf("command: fermata: %w", err)
	}
	f.Seconds = float64(seconds)
	return &Fermata{indicatorBase: indicatorBase{base}, fermata: f}, nil
}

// Apply implements IndicatorCommand.
func (c *Fermata) Apply(tr *tree.Tree, leaves []tree.NodeID, _ Runtime) error {
	return c.place(tr, leaves, c.fermata, "", "each")
}

// Pitches assigns a cyclic pitch sequence to the pitched leaves of its
// selection, continuing per voice. Entries with several pitches make chords.
type Pitches struct {
	indicatorBase
	sequence   [][]pitch.Pitch
	registered bool
	resume     bool
	cursors    map[string]int
}

// NewPitches is the "pitches" factory. Options: pitches, registered, resume.
func NewPitches(cfg Config) (Command, error) {
	base, err := NewBase("pitches", cfg)
	if err != nil {
		return nil, err
	}
	entries, err := cfg.Strings("pitches")
	if err != nil || len(entries) == 0 {
		return nil, fmt.Errorf("command: pitches: a non-empty pitches list is required")
	}
	c := &Pitches{indicatorBase: indicatorBase{base}, cursors: map[string]int{}}
	for _, entry := range entries {
		var chord []pitch.Pitch
		for _, field := range strings.Fields(entry) {
			p, err := pitch.Parse(field)
			if err != nil {
				return nil, fmt.Errorf("command: pitches: %w", err)
			}
			chord = append(chord, p)
		}
		if len(chord) == 0 {
			return nil, fmt.Errorf("command: pitches: empty pitch entry")
		}
		c.sequence = append(c.sequence, chord)
	}
	if c.registered, err = cfg.Bool("registered", true); err != nil {
		return nil, fmt.Errorf("command: pitches: %w", err)
	}
	if c.resume, err = cfg.Bool("resume", false); err != nil {
		return nil, fmt.Errorf("command: pitches: %w", err)
	}
	return c, nil
}

// Apply implements IndicatorCommand.
func (c *Pitches) Apply(tr *tree.Tree, leaves []tree.NodeID, rt Runtime) error {
	for _, leaf := range leaves {
		n := tr.Node(leaf)
		if !n.Kind.IsPitched() {
			continue
		}
		voice := ""
		if id := tr.EnclosingContext(leaf, tree.ContextVoice); id != tree.NoNode {
			voice = tr.Node(id).Name
		}
		cursor, seen := c.cursors[voice]
		if !seen && c.resume {
			if state, ok := rt.PreviousState(voice, c.persist); ok {
				cursor = asInt(state)
			}
		}
		chord := c.sequence[cursor%len(c.sequence)]
		n.Pitches = append([]pitch.Pitch(nil), chord...)
		n.Kind = tree.KindNote
		if len(chord) > 1 {
			n.Kind = tree.KindChord
		}
		n.Annotations.NotYetPitched = false
		n.Annotations.NotYetRegistered = !c.registered
		c.cursors[voice] = cursor + 1
		c.remember(voice, (cursor+1)%len(c.sequence))
	}
	return nil
}

// Annotate sets leaf flags read by validation.
// Options: allow_repeat_pitch, allow_octave, not_yet_registered, hidden, tied.
type Annotate struct {
	indicatorBase
	flags map[string]bool
}

var annotationKeys = []string{"allow_repeat_pitch", "allow_octave", "not_yet_registered", "hidden", "tied"}

// NewAnnotate is the "annotate" factory.
func NewAnnotate(cfg Config) (Command, error) {
	base, err := NewBase("annotate", cfg)
	if err != nil {
		return nil, err
	}
	flags := map[string]bool{}
	for _, key := range annotationKeys {
		if _, ok := cfg[key]; !ok {
			continue
		}
		v, err := cfg.Bool(key, false)
		if err != nil {
			return nil, fmt.Errorf("command: annotate: %w", err)
		}
		flags[key] = v
	}
	if len(flags) == 0 {
		return nil, fmt.Errorf("command: annotate: no flags given")
	}
	return &Annotate{indicatorBase: indicatorBase{base}, flags: flags}, nil
}

// Apply implements IndicatorCommand.
func (c *Annotate) Apply(tr *tree.Tree, leaves []tree.NodeID, _ Runtime) error {
	for _, leaf := range leaves {
		a := &tr.Node(leaf).Annotations
		for key, v := range c.flags {
			switch key {
			case "allow_repeat_pitch":
				a.AllowRepeatPitch = v
			case "allow_octave":
				a.AllowOctave = v
			case "not_yet_registered":
				a.NotYetRegistered = v
			case "hidden":
				a.Hidden = v
			case "tied":
				a.Tied = v
			}
		}
	}
	return nil
}

// Split replaces each selected leaf with equal pieces. Wrappers move to the
// first piece.
type Split struct {
	indicatorBase
	parts int
}

// NewSplit is the "split" factory. Options: parts (default 2).
func NewSplit(cfg Config) (Command, error) {
	base, err := NewBase("split", cfg)
	if err != nil {
		return nil, err
	}
	parts, err := cfg.Int("parts", 2)
	if err != nil || parts < 2 {
		return nil, fmt.Errorf("command: split: parts must be an integer of at least 2")
	}
	return &Split{indicatorBase: indicatorBase{base}, parts: parts}, nil
}

// Mutates implements IndicatorCommand.
func (c *Split) Mutates() bool { return true }

// Apply implements IndicatorCommand.
func (c *Split) Apply(tr *tree.Tree, leaves []tree.NodeID, _ Runtime) error {
	for _, leaf := range leaves {
		n := tr.Node(leaf)
		piece := n.Duration.Div(duration.Whole(int64(c.parts)))
		pieces := make([]tree.NodeID, c.parts)
		for i := range pieces {
			pieces[i] = tr.NewLeaf(n.Kind, piece, n.Pitches...)
			tr.Node(pieces[i]).Annotations = n.Annotations
		}
		for _, w := range tr.Wrappers(leaf) {
			tr.Remove(w)
			if err := tr.Attach(pieces[0], w); err != nil {
				return fmt.Errorf("command: split: %w", err)
			}
		}
		if err := tr.Replace(leaf, pieces); err != nil {
			return fmt.Errorf("command: split: %w", err)
		}
	}
	return nil
}

// Part wraps its selection in a container assigned to a named part.
type Part struct {
	indicatorBase
	part string
}

// NewPart is the "part" factory. Options: part.
func NewPart(cfg Config) (Command, error) {
	base, err := NewBase("part", cfg)
	if err != nil {
		return nil, err
	}
	part, err := cfg.String("part")
	if err != nil {
		return nil, fmt.Errorf("command: part: %w", err)
	}
	base.name = "part " + part
	return &Part{indicatorBase: indicatorBase{base}, part: part}, nil
}

// Mutates implements IndicatorCommand.
func (c *Part) Mutates() bool { return true }

// Apply implements IndicatorCommand. The selection must be consecutive
// siblings.
func (c *Part) Apply(tr *tree.Tree, leaves []tree.NodeID, _ Runtime) error {
	if len(leaves) == 0 {
		return nil
	}
	container := tr.NewContainer(false)
	tr.Node(container).Part = &tree.PartMarker{Part: c.part}
	if err := tr.Wrap(leaves, container); err != nil {
		return fmt.Errorf("command: %s: %w", c.name, err)
	}
	return nil
}
