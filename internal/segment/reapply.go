package segment

import (
	"fmt"
	"sort"

	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/tag"
	"github.com/kingrea/scoresmith/internal/tree"
)

// reapplier remembers what the previous segment ended with so later phases
// can classify wrappers against it.
type reapplier struct {
	previous    map[string]map[indicator.Kind]indicator.Indicator
	provisional []*tree.Wrapper
}

func (r *reapplier) remember(context string, ind indicator.Indicator) {
	if r.previous[context] == nil {
		r.previous[context] = map[indicator.Kind]indicator.Indicator{}
	}
	r.previous[context][ind.Kind()] = ind
}

func (r *reapplier) lookup(context string, kind indicator.Kind) (indicator.Indicator, bool) {
	ind, ok := r.previous[context][kind]
	return ind, ok
}

// reapply replays the previous segment's mementos onto the first leaf of
// each context that is still alive.
func (b *build) reapply() error {
	r := &reapplier{previous: map[string]map[indicator.Kind]indicator.Indicator{}}
	b.reapplier = r
	if b.in.PreviousPersist == nil {
		return nil
	}
	stored := b.in.PreviousPersist.PersistentIndicators
	names := make([]string, 0, len(stored))
	for name := range stored {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mementos := stored[name]
		ctx, _ := b.tree.Context(name)
		first := b.tree.FirstLeaf(ctx)
		if first == tree.NoNode {
			b.stats.Dropped += len(mementos)
			b.log.Info("reapply: dropping %d indicator(s) for %q: context not alive in %s", len(mementos), name, b.in.Name)
			continue
		}
		for _, m := range mementos {
			ind, err := m.Reconstruct(b.in.Manifests)
			if err != nil {
				return fmt.Errorf("segment: reapply %q: %w", name, err)
			}
			r.remember(name, ind)
			if ind.Kind() == indicator.KindTimeSignature {
				b.reapplyTimeSignature(ind)
				continue
			}
			existing := b.tree.Effective(first, ind.Kind())
			switch {
			case existing == nil:
				w := tree.NewWrapper(ind, m.Tag().Append(tag.Reapplied)).
					WithContext(b.tree.Node(ctx).ContextType).
					WithSyntheticOffset(m.ReappliedOffset())
				w.SetStatus(indicator.StatusReapplied)
				if err := b.tree.Attach(first, w); err != nil {
					return fmt.Errorf("segment: reapply %q: %w", name, err)
				}
				r.provisional = append(r.provisional, w)
				b.stats.Reapplied++
			case existing.Indicator.Equal(ind):
				existing.SetStatus(indicator.StatusRedundant)
			default:
				existing.SetStatus(indicator.StatusExplicit)
			}
		}
	}
	return nil
}

// reapplyTimeSignature never attaches: every measure already carries its own
// time signature. A matching first signature is marked reapplied.
func (b *build) reapplyTimeSignature(ind indicator.Indicator) {
	existing := b.tree.WrappersOf(b.skips[0], indicator.KindTimeSignature)
	if len(existing) > 0 && existing[0].Indicator.Equal(ind) {
		existing[0].SetStatus(indicator.StatusReapplied)
	}
}

// classify settles provisional reapplications against command output, adds
// first-segment defaults and classifies every remaining persistent wrapper.
func (b *build) classify() error {
	b.settleReapplied()
	if b.isFirstSegment() {
		if err := b.applyDefaults(); err != nil {
			return err
		}
	}
	b.classifyUntreated()
	return nil
}

// settleReapplied withdraws reapplied wrappers that a command superseded at
// the same offset in the same context.
func (b *build) settleReapplied() {
	for _, w := range b.reapplier.provisional {
		if w.Leaf() == tree.NoNode {
			continue
		}
		governor := b.tree.Governor(w)
		at := b.tree.Start(w.Leaf())
		var superseding []*tree.Wrapper
		for _, other := range b.tree.AllWrappers() {
			if other == w || !other.Active || other.Kind() != w.Kind() || other.Status != indicator.StatusNone {
				continue
			}
			if b.tree.Governor(other) == governor && b.tree.Start(other.Leaf()).Equal(at) {
				superseding = append(superseding, other)
			}
		}
		if len(superseding) == 0 {
			continue
		}
		b.tree.Remove(w)
		b.stats.Reapplied--
		for _, other := range superseding {
			if other.Indicator.Equal(w.Indicator) {
				other.SetStatus(indicator.StatusRedundant)
			} else {
				other.SetStatus(indicator.StatusExplicit)
			}
		}
	}
}

// applyDefaults attaches each staff's declared clef, instrument and margin
// markup where nothing else is in effect at the staff's first leaf.
func (b *build) applyDefaults() error {
	for _, staff := range b.in.Template.Staves {
		ctx, ok := b.tree.Context(staff.ContextName())
		if !ok {
			continue
		}
		first := b.tree.FirstLeaf(ctx)
		if first == tree.NoNode {
			continue
		}
		var defaults []indicator.Indicator
		if staff.Clef != "" {
			defaults = append(defaults, indicator.Clef{Name: staff.Clef})
		}
		if staff.Instrument != "" {
			ind, err := b.in.Manifests.Indicator(indicator.ManifestInstruments, staff.Instrument)
			if err != nil {
				return fmt.Errorf("segment: default instrument for %q: %w", staff.Name, err)
			}
			defaults = append(defaults, ind)
		}
		if staff.MarginMarkup != "" {
			ind, err := b.in.Manifests.Indicator(indicator.ManifestMarginMarkups, staff.MarginMarkup)
			if err != nil {
				return fmt.Errorf("segment: default margin markup for %q: %w", staff.Name, err)
			}
			defaults = append(defaults, ind)
		}
		for _, ind := range defaults {
			if b.tree.Effective(first, ind.Kind()) != nil {
				continue
			}
			w := tree.NewWrapper(ind, tag.New(tag.Default)).WithContext(tree.ContextStaff)
			w.SetStatus(indicator.StatusDefault)
			if err := b.tree.Attach(first, w); err != nil {
				return err
			}
		}
	}
	return nil
}

// classifyUntreated marks each unclassified persistent wrapper redundant when
// it repeats the value already in effect in its context, otherwise explicit.
func (b *build) classifyUntreated() {
	for _, w := range b.tree.AllWrappers() {
		kind := w.Kind()
		if !w.Active || w.Status != indicator.StatusNone || !kind.Persistent() || kind == indicator.KindTimeSignature {
			continue
		}
		if b.isPhantom(w.Leaf()) {
			continue
		}
		var before indicator.Indicator
		if prev := b.tree.Preceding(w); prev != nil {
			before = prev.Indicator
		} else if ind, ok := b.reapplier.lookup(b.contextName(b.tree.Governor(w)), kind); ok {
			before = ind
		}
		if before != nil && before.Equal(w.Indicator) {
			w.SetStatus(indicator.StatusRedundant)
		} else {
			w.SetStatus(indicator.StatusExplicit)
		}
	}
}
