package scope

import (
	"fmt"
	"sort"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/tree"
)

// Cache maps context name to per-measure leaf buckets. It rebuilds itself
// when invalidated or when the tree revision moved since the last build.
type Cache struct {
	tree       *tree.Tree
	boundaries []duration.Duration

	valid    bool
	revision uint64
	buckets  map[string][][]tree.NodeID
	rebuilds int
}

// NewCache indexes tr against measure boundaries: the start offset of every
// measure followed by the final stop offset.
func NewCache(tr *tree.Tree, boundaries []duration.Duration) *Cache {
	return &Cache{tree: tr, boundaries: append([]duration.Duration(nil), boundaries...)}
}

// Invalidate discards the index; the next read rebuilds it.
func (c *Cache) Invalidate() {
	c.valid = false
	c.buckets = nil
}

// Fresh reports whether the index can be trusted without a rebuild.
func (c *Cache) Fresh() bool {
	return c.valid && c.revision == c.tree.Revision()
}

// Rebuilds counts index constructions.
func (c *Cache) Rebuilds() int { return c.rebuilds }

// Measures is the number of measure buckets.
func (c *Cache) Measures() int { return len(c.boundaries) - 1 }

// MeasureOf returns the 1-based measure during which offset falls. Offsets
// at or past the final boundary belong to the last measure.
func (c *Cache) MeasureOf(offset duration.Duration) int {
	n := c.Measures()
	i := sort.Search(n, func(i int) bool {
		return offset.Less(c.boundaries[i+1])
	})
	if i >= n {
		i = n - 1
	}
	return i + 1
}

func (c *Cache) ensure() {
	if c.Fresh() {
		return
	}
	c.tree.UpdateOffsets()
	buckets := map[string][][]tree.NodeID{}
	for _, leaf := range c.tree.Leaves(c.tree.Root()) {
		owner := c.owner(leaf)
		if owner == "" {
			continue
		}
		rows, ok := buckets[owner]
		if !ok {
			rows = make([][]tree.NodeID, c.Measures())
		}
		m := c.MeasureOf(c.tree.Start(leaf)) - 1
		rows[m] = append(rows[m], leaf)
		buckets[owner] = rows
	}
	c.buckets = buckets
	c.revision = c.tree.Revision()
	c.valid = true
	c.rebuilds++
}

func (c *Cache) owner(leaf tree.NodeID) string {
	for id := c.tree.Parent(leaf); id != tree.NoNode; id = c.tree.Parent(id) {
		if n := c.tree.Node(id); n.Kind == tree.KindContext {
			return n.Name
		}
	}
	return ""
}

// Leaves returns the leaves of context name starting in measures
// first..last inclusive, in tree order. Contexts that hold other contexts
// pool their descendants' leaves by start offset.
func (c *Cache) Leaves(name string, first, last int) ([]tree.NodeID, error) {
	c.ensure()
	ctx, ok := c.tree.Context(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVoice, name)
	}
	if rows, ok := c.buckets[name]; ok && !c.hasNestedOwners(ctx) {
		return collect(rows, first, last), nil
	}
	var pooled []tree.NodeID
	for _, id := range c.tree.Contexts() {
		if !c.tree.IsAncestor(ctx, id) {
			continue
		}
		if rows, ok := c.buckets[c.tree.Node(id).Name]; ok {
			pooled = append(pooled, collect(rows, first, last)...)
		}
	}
	c.order(pooled)
	return pooled, nil
}

func (c *Cache) hasNestedOwners(ctx tree.NodeID) bool {
	nested := false
	for _, child := range c.tree.Children(ctx) {
		c.tree.Walk(child, func(id tree.NodeID) bool {
			if c.tree.Node(id).Kind == tree.KindContext {
				nested = true
			}
			return !nested
		})
	}
	return nested
}

func collect(rows [][]tree.NodeID, first, last int) []tree.NodeID {
	var out []tree.NodeID
	for m := first; m <= last; m++ {
		out = append(out, rows[m-1]...)
	}
	return out
}

func (c *Cache) order(leaves []tree.NodeID) {
	sort.SliceStable(leaves, func(i, j int) bool {
		a, b := c.tree.Start(leaves[i]), c.tree.Start(leaves[j])
		if cmp := a.Cmp(b); cmp != 0 {
			return cmp < 0
		}
		return c.tree.Order(leaves[i]) < c.tree.Order(leaves[j])
	})
}

// Select resolves target against the first measures buckets. A Timeline
// pools every scope's leaves and orders them by (start offset, tree order).
func (c *Cache) Select(target Target, measures int) ([]tree.NodeID, error) {
	var out []tree.NodeID
	for _, s := range target.Scopes() {
		first, last, err := s.Resolve(measures)
		if err != nil {
			return nil, err
		}
		leaves, err := c.Leaves(s.Voice, first, last)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	if target.Timeline() {
		c.order(out)
	}
	return out, nil
}
