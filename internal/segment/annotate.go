package segment

import (
	"sort"
	"strings"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/pitch"
	"github.com/kingrea/scoresmith/internal/tag"
	"github.com/kingrea/scoresmith/internal/tree"
)

// Spanner names used for derived label and bracket spans.
const (
	SpanTempo         = "tempo"
	SpanMeasureNumber = "measure_number"
	SpanLocalMeasure  = "local_measure_number"
	SpanStageNumber   = "stage_number"
	SpanClockTime     = "clock_time"
)

// Validation marker names and colors.
const (
	MarkerNotYetPitched   = "not_yet_pitched"
	MarkerNotRegistered   = "not_yet_registered"
	MarkerRepeatPitch     = "repeat_pitch_class"
	MarkerOctaveCollision = "octave_collision"
	MarkerOutOfRange      = "out_of_range"
)

var markerColors = map[string]string{
	MarkerNotYetPitched:   "blue",
	MarkerNotRegistered:   "magenta",
	MarkerRepeatPitch:     "red",
	MarkerOctaveCollision: "red",
	MarkerOutOfRange:      "red",
}

var markerWords = map[string]string{
	MarkerNotYetPitched:   tag.NotYetPitched,
	MarkerNotRegistered:   tag.NotRegistered,
	MarkerRepeatPitch:     tag.RepeatPitch,
	MarkerOctaveCollision: tag.OctaveCollision,
	MarkerOutOfRange:      tag.OutOfRange,
}

// stopLeaf returns where a span that ends at measure boundary i (0-based,
// len(sigs) meaning the segment end) stops, and whether the stop goes after
// that leaf.
func (b *build) stopLeaf(i int) (tree.NodeID, bool) {
	switch {
	case i < len(b.skips):
		return b.skips[i], false
	case b.phantomSkip != tree.NoNode:
		return b.phantomSkip, false
	default:
		return b.skips[len(b.skips)-1], true
	}
}

func (b *build) attachSpan(start tree.NodeID, stopAt int, span indicator.SpanStart, t tag.Tag, active bool) error {
	leaf, after := b.stopLeaf(stopAt)
	return b.attachSpanTo(start, leaf, after, span, t, active)
}

// attachSpanTo opens span on start and closes it on stop, after the stop
// leaf when after is set.
func (b *build) attachSpanTo(start, leaf tree.NodeID, after bool, span indicator.SpanStart, t tag.Tag, active bool) error {
	open := tree.NewWrapper(span, t).WithContext(tree.ContextScore)
	open.Active = active
	if err := b.tree.Attach(start, open); err != nil {
		return err
	}
	closing := tree.NewWrapper(indicator.SpanStop{Name: span.Name, After: after}, t).WithContext(tree.ContextScore)
	closing.Active = active
	return b.tree.Attach(leaf, closing)
}

// bracketTempi spans each tempo change to the next one, or to the end.
func (b *build) bracketTempi() error {
	var marks []*tree.Wrapper
	for _, w := range b.tree.AllWrappers() {
		if w.Active && w.Kind().TempoFamily() && !b.isPhantom(w.Leaf()) {
			marks = append(marks, w)
		}
	}
	sort.SliceStable(marks, func(i, j int) bool { return b.tree.Before(marks[i], marks[j]) })
	type group struct {
		start    duration.Duration
		wrappers []*tree.Wrapper
	}
	var groups []group
	for _, w := range marks {
		at := b.tree.Start(w.Leaf())
		if n := len(groups); n > 0 && groups[n-1].start.Equal(at) {
			groups[n-1].wrappers = append(groups[n-1].wrappers, w)
			continue
		}
		groups = append(groups, group{start: at, wrappers: []*tree.Wrapper{w}})
	}
	for gi, g := range groups {
		texts := make([]string, len(g.wrappers))
		for i, w := range g.wrappers {
			texts[i] = w.Indicator.String()
		}
		last := g.wrappers[len(g.wrappers)-1]
		span := indicator.SpanStart{
			Name:  SpanTempo,
			Text:  strings.Join(texts, " "),
			Shape: bracketShape(last.Kind()),
			Color: last.Status.Color(),
		}
		startLeaf := b.skipAt(g.start, last.Leaf())
		stopLeaf, after := b.stopLeaf(len(b.sigs))
		if gi+1 < len(groups) {
			next := groups[gi+1]
			stopLeaf, after = b.skipAt(next.start, next.wrappers[0].Leaf()), false
		}
		if err := b.attachSpanTo(startLeaf, stopLeaf, after, span, tag.New(tag.TempoBracket), true); err != nil {
			return err
		}
	}
	return nil
}

// skipAt returns the global skip starting at offset, or fallback.
func (b *build) skipAt(offset duration.Duration, fallback tree.NodeID) tree.NodeID {
	if i := b.measureIndex(offset); i >= 0 && b.starts[i].Equal(offset) {
		return b.skips[i]
	}
	return fallback
}

func bracketShape(kind indicator.Kind) string {
	switch kind {
	case indicator.KindAccelerando, indicator.KindRitardando:
		return "dashed-line-with-arrow"
	case indicator.KindMetricModulation:
		return "solid-line-with-hook"
	}
	return "invisible-line"
}

// detectFermatas scans the rest track for fermata measures and optionally
// collapses staves to zero lines during them.
func (b *build) detectFermatas() error {
	for i, rest := range b.rests {
		var found *tree.Wrapper
		for _, w := range b.tree.WrappersOf(rest, indicator.KindFermata) {
			if w.Active {
				found = w
			}
		}
		if found == nil {
			continue
		}
		b.fermatas[i] = found.Indicator.(indicator.Fermata)
		b.fermataNums = append(b.fermataNums, b.firstMeasure+i)
		if i == len(b.rests)-1 {
			b.lastFermata = true
		}
	}
	if !b.opts.FermataStaffLines || len(b.fermatas) == 0 {
		return nil
	}
	for _, staff := range b.tree.ContextsOfType(tree.ContextStaff) {
		if err := b.collapseStaff(staff); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) collapseStaff(staff tree.NodeID) error {
	for i := range b.sigs {
		if _, ok := b.fermatas[i]; !ok {
			continue
		}
		leaf, ok := b.tree.LeafAt(staff, b.starts[i])
		if !ok || !b.tree.Node(leaf).Kind.IsSilence() {
			continue
		}
		lines := 5
		if w := b.tree.Effective(leaf, indicator.KindStaffLines); w != nil {
			lines = w.Indicator.(indicator.StaffLines).Count
		}
		collapse := tree.NewWrapper(indicator.StaffLines{Count: 0}, tag.New(tag.FermataStaff)).WithContext(tree.ContextStaff)
		if err := b.tree.Attach(leaf, collapse); err != nil {
			return err
		}
		if _, next := b.fermatas[i+1]; next {
			continue
		}
		resumeAt := b.total
		if i+1 < len(b.starts) {
			resumeAt = b.starts[i+1]
		}
		resume, ok := b.tree.LeafAt(staff, resumeAt)
		if !ok || len(b.tree.WrappersOf(resume, indicator.KindStaffLines)) > 0 {
			continue
		}
		restore := tree.NewWrapper(indicator.StaffLines{Count: lines}, tag.New(tag.FermataStaff)).WithContext(tree.ContextStaff)
		if err := b.tree.Attach(resume, restore); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) mark(leaf tree.NodeID, name string) error {
	w := tree.NewWrapper(indicator.Marker{Name: name, Color: markerColors[name]}, tag.New(tag.Validation, markerWords[name]))
	if err := b.tree.Attach(leaf, w); err != nil {
		return err
	}
	b.stats.ValidationMarkers++
	return nil
}

// validationLeaves are the visible pitched leaves of one voice.
func (b *build) validationLeaves(voice tree.NodeID) []tree.NodeID {
	var out []tree.NodeID
	for _, leaf := range b.tree.Leaves(voice) {
		n := b.tree.Node(leaf)
		if n.Kind.IsPitched() && !n.Annotations.Hidden && !b.isPhantom(leaf) {
			out = append(out, leaf)
		}
	}
	return out
}

// colorValidation marks suspicious leaves without failing the build.
func (b *build) colorValidation() error {
	for _, voice := range b.musicVoices() {
		var previous tree.NodeID = tree.NoNode
		for _, leaf := range b.validationLeaves(voice) {
			n := b.tree.Node(leaf)
			if n.Annotations.NotYetPitched {
				if !b.opts.IgnoreUnpitchedNotes {
					if err := b.mark(leaf, MarkerNotYetPitched); err != nil {
						return err
					}
				}
				continue
			}
			if n.Annotations.NotYetRegistered && !b.opts.IgnoreUnregisteredPitches {
				if err := b.mark(leaf, MarkerNotRegistered); err != nil {
					return err
				}
			}
			if previous != tree.NoNode && !b.opts.IgnoreRepeatPitchClasses &&
				!n.Annotations.AllowRepeatPitch && !n.Annotations.Tied &&
				samePitchClasses(b.tree.Node(previous).Pitches, n.Pitches) {
				if err := b.mark(leaf, MarkerRepeatPitch); err != nil {
					return err
				}
			}
			previous = leaf
			if !b.opts.IgnoreOutOfRangePitches && !n.Annotations.NotYetRegistered && b.outOfRange(leaf) {
				if err := b.mark(leaf, MarkerOutOfRange); err != nil {
					return err
				}
			}
		}
	}
	if b.opts.ColorOctaves {
		return b.colorOctaves()
	}
	return nil
}

func (b *build) outOfRange(leaf tree.NodeID) bool {
	w := b.tree.Effective(leaf, indicator.KindInstrument)
	if w == nil {
		return false
	}
	r := w.Indicator.(indicator.Instrument).Range
	if r.IsZero() {
		return false
	}
	for _, p := range b.tree.Node(leaf).Pitches {
		if !r.Contains(p) {
			return true
		}
	}
	return false
}

func samePitchClasses(a, b []pitch.Pitch) bool {
	classes := func(ps []pitch.Pitch) map[int]bool {
		out := map[int]bool{}
		for _, p := range ps {
			out[p.Class()] = true
		}
		return out
	}
	ca, cb := classes(a), classes(b)
	if len(ca) == 0 || len(ca) != len(cb) {
		return false
	}
	for c := range ca {
		if !cb[c] {
			return false
		}
	}
	return true
}

// colorOctaves marks leaves sounding the same pitch class as another voice
// in a different octave at the same moment. A leaf sustained into the
// moment is marked along with the leaf that starts there.
func (b *build) colorOctaves() error {
	type sounding struct {
		leaf  tree.NodeID
		voice tree.NodeID
	}
	var all []sounding
	var moments []duration.Duration
	seen := map[string]bool{}
	for _, voice := range b.musicVoices() {
		for _, leaf := range b.validationLeaves(voice) {
			n := b.tree.Node(leaf)
			if n.Annotations.NotYetPitched || n.Annotations.NotYetRegistered || n.Annotations.AllowOctave {
				continue
			}
			all = append(all, sounding{leaf: leaf, voice: voice})
			start := b.tree.Start(leaf)
			if !seen[start.String()] {
				seen[start.String()] = true
				moments = append(moments, start)
			}
		}
	}
	sort.Slice(moments, func(i, j int) bool { return moments[i].Less(moments[j]) })
	marked := map[tree.NodeID]bool{}
	for _, at := range moments {
		var now []sounding
		for _, s := range all {
			if !at.Less(b.tree.Start(s.leaf)) && at.Less(b.tree.Stop(s.leaf)) {
				now = append(now, s)
			}
		}
		for i := range now {
			for j := i + 1; j < len(now); j++ {
				if now[i].voice == now[j].voice || !octaveCollision(b.tree.Node(now[i].leaf).Pitches, b.tree.Node(now[j].leaf).Pitches) {
					continue
				}
				for _, s := range []sounding{now[i], now[j]} {
					if marked[s.leaf] {
						continue
					}
					marked[s.leaf] = true
					if err := b.mark(s.leaf, MarkerOctaveCollision); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func octaveCollision(a, b []pitch.Pitch) bool {
	for _, p := range a {
		for _, q := range b {
			if p != q && p.Class() == q.Class() {
				return true
			}
		}
	}
	return false
}
