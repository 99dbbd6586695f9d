package tree

import (
	"fmt"

	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/tag"
)

// Wrapper binds one indicator to a leaf together with its provenance tag,
// activation flag, optional synthetic offset and rendering context type.
type Wrapper struct {
	Indicator indicator.Indicator
	Tag       tag.Tag
	Active    bool
	// SyntheticOffset orders wrappers that share a leaf; negative values sort
	// before unset ones and mean "in effect before this segment".
	SyntheticOffset *int
	// Context is the context type the indicator governs. Empty means the
	// leaf's enclosing Voice.
	Context string
	Status  indicator.Status

	leaf NodeID
	seq  uint64
}

// NewWrapper returns an active wrapper.
func NewWrapper(ind indicator.Indicator, t tag.Tag) *Wrapper {
	return &Wrapper{Indicator: ind, Tag: t, Active: true, leaf: NoNode}
}

// WithContext sets the governing context type and returns the wrapper.
func (w *Wrapper) WithContext(contextType string) *Wrapper {
	w.Context = contextType
	return w
}

// WithSyntheticOffset sets the synthetic offset and returns the wrapper.
func (w *Wrapper) WithSyntheticOffset(offset int) *Wrapper {
	w.SyntheticOffset = &offset
	return w
}

// Leaf returns the leaf the wrapper is attached to, or NoNode.
func (w *Wrapper) Leaf() NodeID { return w.leaf }

// Kind is shorthand for w.Indicator.Kind().
func (w *Wrapper) Kind() indicator.Kind { return w.Indicator.Kind() }

func (w *Wrapper) synthetic() int {
	if w.SyntheticOffset == nil {
		return 0
	}
	return *w.SyntheticOffset
}

// SetStatus records a classification and appends the matching status word.
func (w *Wrapper) SetStatus(status indicator.Status) {
	if w.Status != indicator.StatusNone && w.Status != status {
		w.Tag = w.Tag.Without(tag.Status(w.Status.Word(), w.Kind().StatusWord()))
	}
	w.Status = status
	if status != indicator.StatusNone {
		w.Tag = w.Tag.Append(tag.Status(status.Word(), w.Kind().StatusWord()))
	}
}

func (w *Wrapper) String() string {
	state := "+"
	if !w.Active {
		state = "-"
	}
	out := fmt.Sprintf("%s %s %s", state, w.Kind(), w.Indicator)
	if w.Context != "" {
		out += " @" + w.Context
	}
	if w.SyntheticOffset != nil {
		out += fmt.Sprintf(" ~%d", *w.SyntheticOffset)
	}
	if !w.Tag.IsEmpty() {
		out += " [" + w.Tag.String() + "]"
	}
	return out
}

// Attach binds w to leaf. A wrapper may only be attached once.
func (t *Tree) Attach(leaf NodeID, w *Wrapper) error {
	n := t.Node(leaf)
	if n == nil {
		return fmt.Errorf("tree: attach to unknown node %d", leaf)
	}
	if !n.IsLeaf() {
		return fmt.Errorf("tree: attach %s to non-leaf %s", w.Kind(), t.Describe(leaf))
	}
	if w.leaf != NoNode {
		return fmt.Errorf("tree: wrapper %s already attached", w)
	}
	t.seq++
	w.leaf = leaf
	w.seq = t.seq
	n.wrappers = append(n.wrappers, w)
	t.wrapperRev++
	return nil
}

// Remove detaches w from its leaf. Removing an unattached wrapper is a no-op.
func (t *Tree) Remove(w *Wrapper) {
	n := t.Node(w.leaf)
	if n == nil {
		return
	}
	kept := n.wrappers[:0]
	for _, existing := range n.wrappers {
		if existing != w {
			kept = append(kept, existing)
		}
	}
	for i := len(kept); i < len(n.wrappers); i++ {
		n.wrappers[i] = nil
	}
	n.wrappers = kept
	w.leaf = NoNode
	t.wrapperRev++
}

// Wrappers returns the wrappers on a leaf in attach order.
func (t *Tree) Wrappers(leaf NodeID) []*Wrapper {
	n := t.Node(leaf)
	if n == nil {
		return nil
	}
	return append([]*Wrapper(nil), n.wrappers...)
}

// WrappersOf returns the wrappers of one kind on a leaf.
func (t *Tree) WrappersOf(leaf NodeID, kind indicator.Kind) []*Wrapper {
	var out []*Wrapper
	for _, w := range t.Wrappers(leaf) {
		if w.Kind() == kind {
			out = append(out, w)
		}
	}
	return out
}

// AllWrappers lists every wrapper on attached leaves in tree order.
func (t *Tree) AllWrappers() []*Wrapper {
	var out []*Wrapper
	for _, leaf := range t.Leaves(t.root) {
		out = append(out, t.nodes[leaf].wrappers...)
	}
	return out
}

// Governor returns the context node a wrapper governs: the nearest ancestor
// context of its leaf whose type matches w.Context (Voice when empty). When
// no ancestor matches, the root governs.
func (t *Tree) Governor(w *Wrapper) NodeID {
	want := w.Context
	if want == "" {
		want = ContextVoice
	}
	for id := t.Parent(w.leaf); id != NoNode; id = t.Parent(id) {
		n := t.nodes[id]
		if n.Kind == KindContext && n.ContextType == want {
			return id
		}
	}
	return t.root
}

func (t *Tree) wrappersByKind(kind indicator.Kind) []*Wrapper {
	if t.kindIndex == nil || t.kindIndexRev != t.wrapperRev || t.kindIndexTree != t.revision {
		index := map[indicator.Kind][]*Wrapper{}
		for _, w := range t.AllWrappers() {
			index[w.Kind()] = append(index[w.Kind()], w)
		}
		t.kindIndex = index
		t.kindIndexRev = t.wrapperRev
		t.kindIndexTree = t.revision
	}
	return t.kindIndex[kind]
}

// Effective returns the active wrapper of kind in effect at leaf: the latest
// one, by (start offset, synthetic offset, attach order), among wrappers
// whose governing context encloses leaf and that start no later than leaf.
func (t *Tree) Effective(leaf NodeID, kind indicator.Kind) *Wrapper {
	return t.EffectiveExcept(leaf, kind, nil)
}

// EffectiveExcept is Effective ignoring one wrapper.
func (t *Tree) EffectiveExcept(leaf NodeID, kind indicator.Kind, skip *Wrapper) *Wrapper {
	at := t.Start(leaf)
	var best *Wrapper
	for _, w := range t.wrappersByKind(kind) {
		if w == skip || !w.Active {
			continue
		}
		if t.Start(w.leaf).Cmp(at) > 0 {
			continue
		}
		if !t.IsAncestor(t.Governor(w), leaf) {
			continue
		}
		if best == nil || t.wrapperLess(best, w) {
			best = w
		}
	}
	return best
}

// Preceding returns the wrapper of the same kind and governor that was in
// effect immediately before w.
func (t *Tree) Preceding(w *Wrapper) *Wrapper {
	gov := t.Governor(w)
	var best *Wrapper
	for _, other := range t.wrappersByKind(w.Kind()) {
		if other == w || !other.Active || t.Governor(other) != gov {
			continue
		}
		if !t.wrapperLess(other, w) {
			continue
		}
		if best == nil || t.wrapperLess(best, other) {
			best = other
		}
	}
	return best
}

// Before reports whether a takes effect before b: by start offset, then
// synthetic offset, then attach order.
func (t *Tree) Before(a, b *Wrapper) bool {
	return t.wrapperLess(a, b)
}

func (t *Tree) wrapperLess(a, b *Wrapper) bool {
	if c := t.Start(a.leaf).Cmp(t.Start(b.leaf)); c != 0 {
		return c < 0
	}
	if a.synthetic() != b.synthetic() {
		return a.synthetic() < b.synthetic()
	}
	return a.seq < b.seq
}
