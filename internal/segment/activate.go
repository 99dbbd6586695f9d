package segment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/scoresmith/internal/manifest"
	"github.com/kingrea/scoresmith/internal/tag"
	"github.com/kingrea/scoresmith/internal/tree"
)

// Activator flips the active flag of wrappers on silence-like leaves by tag.
// It journals the flag each wrapper had before its first activation so a
// matching deactivation restores it.
type Activator struct {
	tree    *tree.Tree
	journal map[*tree.Wrapper]bool
}

// NewActivator returns an activator over tr.
func NewActivator(tr *tree.Tree) *Activator {
	return &Activator{tree: tr, journal: map[*tree.Wrapper]bool{}}
}

func (a *Activator) matching(words tag.Set) []*tree.Wrapper {
	if words.Len() == 0 {
		return nil
	}
	var out []*tree.Wrapper
	for _, leaf := range a.tree.Leaves(a.tree.Root()) {
		if !a.tree.Node(leaf).Kind.IsSilence() {
			continue
		}
		for _, w := range a.tree.Wrappers(leaf) {
			if w.Tag.Intersects(words) {
				out = append(out, w)
			}
		}
	}
	return out
}

// Activate switches matching wrappers on and returns how many matched.
func (a *Activator) Activate(words tag.Set) int {
	matched := a.matching(words)
	for _, w := range matched {
		if _, ok := a.journal[w]; !ok {
			a.journal[w] = w.Active
		}
		w.Active = true
	}
	return len(matched)
}

// Deactivate switches matching wrappers off, or back to their journaled
// state when an activation changed them.
func (a *Activator) Deactivate(words tag.Set) int {
	matched := a.matching(words)
	for _, w := range matched {
		if prior, ok := a.journal[w]; ok {
			w.Active = prior
			delete(a.journal, w)
			continue
		}
		w.Active = false
	}
	return len(matched)
}

// Remove deletes matching wrappers and returns how many were removed.
func (a *Activator) Remove(words tag.Set) int {
	matched := a.matching(words)
	for _, w := range matched {
		a.tree.Remove(w)
		delete(a.journal, w)
	}
	return len(matched)
}

func (b *build) activateTags() error {
	activate, deactivate, remove := b.opts.activationSets()
	a := NewActivator(b.tree)
	removed := a.Remove(remove)
	activated := a.Activate(activate)
	deactivated := a.Deactivate(deactivate)
	if removed+activated+deactivated > 0 {
		b.log.Info("segment %s: tags removed %d, activated %d, deactivated %d", b.in.Name, removed, activated, deactivated)
	}
	return nil
}

// assignParts names every part container segment.context.part.N, records
// its timespan and rejects overlapping assignments of one part.
func (b *build) assignParts() error {
	counters := map[string]int{}
	byPart := map[string][]string{}
	var failure error
	b.tree.Walk(b.tree.Root(), func(id tree.NodeID) bool {
		n := b.tree.Node(id)
		if failure != nil || n.Kind != tree.KindContainer || n.Part == nil {
			return failure == nil
		}
		part := n.Part.Part
		if len(b.in.Manifests.Parts) > 0 && !b.in.Manifests.HasPart(part) {
			failure = fmt.Errorf("%w: %q", ErrUnknownPart, part)
			if hints := manifest.Suggest(part, b.in.Manifests.Parts); len(hints) > 0 {
				failure = fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownPart, part, strings.Join(hints, ", "))
			}
			return false
		}
		context := b.voiceOf(id)
		if context == "" {
			context = b.contextName(b.tree.EnclosingContext(id, tree.ContextStaff))
		}
		counters[context+"/"+part]++
		identifier := fmt.Sprintf("%s.%s.%s.%d", b.in.Name, context, part, counters[context+"/"+part])
		n.PartIdentifier = identifier
		b.parts[identifier] = PartAssignment{Part: part, Start: b.tree.Start(id), Stop: b.tree.Stop(id)}
		byPart[part] = append(byPart[part], identifier)
		b.stats.PartAssignments++
		return true
	})
	if failure != nil {
		return failure
	}
	parts := make([]string, 0, len(byPart))
	for part := range byPart {
		parts = append(parts, part)
	}
	sort.Strings(parts)
	for _, part := range parts {
		ids := byPart[part]
		sort.SliceStable(ids, func(i, j int) bool {
			return b.parts[ids[i]].Start.Less(b.parts[ids[j]].Start)
		})
		for i := 1; i < len(ids); i++ {
			prev, cur := b.parts[ids[i-1]], b.parts[ids[i]]
			if cur.Start.Less(prev.Stop) {
				return fmt.Errorf("%w: part %q: %s [%s, %s) overlaps %s [%s, %s)", ErrPartOverlap, part,
					ids[i], cur.Start, cur.Stop, ids[i-1], prev.Start, prev.Stop)
			}
		}
	}
	return nil
}
