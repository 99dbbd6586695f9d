package segment

import (
	"sort"

	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/tag"
	"github.com/kingrea/scoresmith/internal/tree"
)

// collect rebuilds both output records from the finished tree.
func (b *build) collect() (Metadata, Persist, error) {
	sigs := make([]string, len(b.sigs))
	for i, sig := range b.sigs {
		sigs[i] = sig.String()
	}
	metadata := Metadata{
		Segment:               b.in.Name,
		FirstMeasureNumber:    b.firstMeasure,
		FinalMeasureNumber:    b.firstMeasure + len(b.sigs) - 1,
		TimeSignatures:        sigs,
		Duration:              b.total.String(),
		FermataMeasureNumbers: b.fermataNums,
		LastMeasureIsFermata:  b.lastFermata,
		FirstMetronomeMark:    b.hasFirstMetronomeMark(),
	}
	if b.clock.timed {
		start, stop := b.clock.start, b.clock.stop
		metadata.StartClockTime = &start
		metadata.StopClockTime = &stop
	}
	mementos, err := b.mementos()
	if err != nil {
		return Metadata{}, Persist{}, err
	}
	persist := Persist{
		AliveDuringSegment:   b.tree.ContextNames(),
		PersistentIndicators: mementos,
	}
	if len(b.voiceMeta) > 0 {
		persist.VoiceMetadata = b.voiceMeta
	}
	if len(b.parts) > 0 {
		persist.ContainerToPartAssignment = b.parts
	}
	if _, err := metadata.ToRecord(); err != nil {
		return Metadata{}, Persist{}, err
	}
	if _, err := persist.ToRecord(); err != nil {
		return Metadata{}, Persist{}, err
	}
	return metadata, persist, nil
}

// hasFirstMetronomeMark reports whether the segment itself sets a tempo at
// its very start, as opposed to inheriting one.
func (b *build) hasFirstMetronomeMark() bool {
	for _, w := range b.tree.AllWrappers() {
		if w.Active && w.Kind() == indicator.KindMetronomeMark && w.Status != indicator.StatusReapplied &&
			b.tree.Start(w.Leaf()).IsZero() {
			return true
		}
	}
	return false
}

// mementos condenses the last effective value of every persistent kind in
// every context.
func (b *build) mementos() (map[string][]indicator.Memento, error) {
	type key struct {
		context string
		kind    indicator.Kind
	}
	latest := map[key]*tree.Wrapper{}
	for _, w := range b.tree.AllWrappers() {
		if !w.Active || !w.Kind().Persistent() || b.isPhantom(w.Leaf()) {
			continue
		}
		if w.Tag.Has(tag.Phantom) || w.Tag.Has(tag.FermataStaff) {
			continue
		}
		k := key{context: b.contextName(b.tree.Governor(w)), kind: w.Kind()}
		if cur, ok := latest[k]; !ok || b.tree.Before(cur, w) {
			latest[k] = w
		}
	}
	if len(latest) == 0 {
		return nil, nil
	}
	out := map[string][]indicator.Memento{}
	for k, w := range latest {
		m, err := indicator.NewMemento(k.context, w.Indicator, w.Tag, w.SyntheticOffset)
		if err != nil {
			return nil, err
		}
		out[k.context] = append(out[k.context], m)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool {
			ki, _ := list[i].Kind()
			kj, _ := list[j].Kind()
			return ki < kj
		})
	}
	return out, nil
}
