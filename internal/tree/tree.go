package tree

import (
	"fmt"
	"sort"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/pitch"
)

// Tree owns every node of one segment's document.
type Tree struct {
	nodes  []*Node
	root   NodeID
	byName map[string]NodeID

	revision        uint64
	offsetsRevision uint64
	offsetsValid    bool

	seq           uint64
	wrapperRev    uint64
	kindIndex     map[indicator.Kind][]*Wrapper
	kindIndexRev  uint64
	kindIndexTree uint64
}

// New returns a tree whose root is a simultaneous context.
func New(rootName, contextType string) *Tree {
	t := &Tree{byName: map[string]NodeID{}}
	t.root = t.alloc(&Node{Kind: KindContext, Name: rootName, ContextType: contextType, Simultaneous: true})
	t.byName[rootName] = t.root
	return t
}

func (t *Tree) alloc(n *Node) NodeID {
	n.id = NodeID(len(t.nodes))
	n.parent = NoNode
	t.nodes = append(t.nodes, n)
	return n.id
}

func (t *Tree) touch() {
	t.revision++
}

// Root returns the root context.
func (t *Tree) Root() NodeID { return t.root }

// Revision increases on every structural edit.
func (t *Tree) Revision() uint64 { return t.revision }

// Node returns the node for id, or nil when id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Parent returns the parent of id, or NoNode.
func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.parent
	}
	return NoNode
}

// Children returns a copy of the child list.
func (t *Tree) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return append([]NodeID(nil), n.children...)
	}
	return nil
}

// Attached reports whether id is reachable from the root.
func (t *Tree) Attached(id NodeID) bool {
	for cur := id; cur != NoNode; cur = t.Parent(cur) {
		if cur == t.root {
			return true
		}
	}
	return false
}

// IsAncestor reports whether a is b or one of b's ancestors.
func (t *Tree) IsAncestor(a, b NodeID) bool {
	for cur := b; cur != NoNode; cur = t.Parent(cur) {
		if cur == a {
			return true
		}
	}
	return false
}

// AddContext appends a named context under parent.
func (t *Tree) AddContext(parent NodeID, contextType, name string, simultaneous bool) (NodeID, error) {
	if _, exists := t.byName[name]; exists {
		return NoNode, fmt.Errorf("tree: duplicate context %q", name)
	}
	id := t.alloc(&Node{Kind: KindContext, Name: name, ContextType: contextType, Simultaneous: simultaneous})
	if err := t.Append(parent, id); err != nil {
		return NoNode, err
	}
	t.byName[name] = id
	return id, nil
}

// NewContainer allocates a detached anonymous container.
func (t *Tree) NewContainer(simultaneous bool) NodeID {
	return t.alloc(&Node{Kind: KindContainer, Simultaneous: simultaneous})
}

// NewLeaf allocates a detached leaf.
func (t *Tree) NewLeaf(kind Kind, d duration.Duration, pitches ...pitch.Pitch) NodeID {
	if !kind.IsLeaf() {
		panic(fmt.Sprintf("tree: NewLeaf with container kind %s", kind))
	}
	return t.alloc(&Node{Kind: kind, Duration: d, Pitches: append([]pitch.Pitch(nil), pitches...)})
}

// Append adds a detached child at the end of parent.
func (t *Tree) Append(parent, child NodeID) error {
	p := t.Node(parent)
	if p == nil {
		return fmt.Errorf("tree: unknown parent %d", parent)
	}
	return t.Insert(parent, len(p.children), child)
}

// Insert places a detached child at index within parent.
func (t *Tree) Insert(parent NodeID, index int, child NodeID) error {
	p, c := t.Node(parent), t.Node(child)
	if p == nil || c == nil {
		return fmt.Errorf("tree: insert %d into %d: unknown node", child, parent)
	}
	if p.IsLeaf() {
		return fmt.Errorf("tree: cannot insert into leaf %s", t.Describe(parent))
	}
	if c.parent != NoNode || child == t.root {
		return fmt.Errorf("tree: node %s is already attached", t.Describe(child))
	}
	if t.IsAncestor(child, parent) {
		return fmt.Errorf("tree: inserting %s would create a cycle", t.Describe(child))
	}
	if index < 0 || index > len(p.children) {
		return fmt.Errorf("tree: insert index %d out of range", index)
	}
	p.children = append(p.children, NoNode)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = child
	c.parent = parent
	t.Walk(child, func(cur NodeID) bool {
		if n := t.nodes[cur]; n.Kind == KindContext {
			t.byName[n.Name] = cur
		}
		return true
	})
	t.touch()
	return nil
}

// Detach removes id from its parent. Named contexts inside the detached
// subtree stop resolving by name.
func (t *Tree) Detach(id NodeID) {
	n := t.Node(id)
	if n == nil || n.parent == NoNode {
		return
	}
	p := t.nodes[n.parent]
	for i, child := range p.children {
		if child == id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = NoNode
	t.Walk(id, func(cur NodeID) bool {
		if c := t.nodes[cur]; c.Kind == KindContext && t.byName[c.Name] == cur {
			delete(t.byName, c.Name)
		}
		return true
	})
	t.touch()
}

// Replace substitutes id in its parent with the given detached nodes.
func (t *Tree) Replace(id NodeID, with []NodeID) error {
	n := t.Node(id)
	if n == nil || n.parent == NoNode {
		return fmt.Errorf("tree: replace %d: node is not attached", id)
	}
	parent := n.parent
	index := t.indexOf(parent, id)
	t.Detach(id)
	for i, child := range with {
		if err := t.Insert(parent, index+i, child); err != nil {
			return err
		}
	}
	return nil
}

// Wrap moves consecutive siblings into container and puts container where
// the first of them stood.
func (t *Tree) Wrap(ids []NodeID, container NodeID) error {
	if len(ids) == 0 {
		return fmt.Errorf("tree: wrap of empty node list")
	}
	parent := t.Parent(ids[0])
	if parent == NoNode {
		return fmt.Errorf("tree: wrap of detached node %d", ids[0])
	}
	first := t.indexOf(parent, ids[0])
	for i, id := range ids {
		if t.Parent(id) != parent || t.indexOf(parent, id) != first+i {
			return fmt.Errorf("tree: wrap requires consecutive siblings")
		}
	}
	for _, id := range ids {
		t.Detach(id)
	}
	for _, id := range ids {
		if err := t.Append(container, id); err != nil {
			return err
		}
	}
	return t.Insert(parent, first, container)
}

func (t *Tree) indexOf(parent, child NodeID) int {
	for i, id := range t.nodes[parent].children {
		if id == child {
			return i
		}
	}
	return -1
}

// Context resolves a named context that is still attached.
func (t *Tree) Context(name string) (NodeID, bool) {
	id, ok := t.byName[name]
	if !ok || !t.Attached(id) {
		return NoNode, false
	}
	return id, true
}

// Contexts lists attached named contexts in tree order.
func (t *Tree) Contexts() []NodeID {
	var out []NodeID
	t.Walk(t.root, func(id NodeID) bool {
		if t.nodes[id].Kind == KindContext {
			out = append(out, id)
		}
		return true
	})
	return out
}

// ContextNames lists attached context names sorted alphabetically.
func (t *Tree) ContextNames() []string {
	var names []string
	for _, id := range t.Contexts() {
		names = append(names, t.nodes[id].Name)
	}
	sort.Strings(names)
	return names
}

// ContextsOfType lists attached contexts of one type in tree order.
func (t *Tree) ContextsOfType(contextType string) []NodeID {
	var out []NodeID
	for _, id := range t.Contexts() {
		if t.nodes[id].ContextType == contextType {
			out = append(out, id)
		}
	}
	return out
}

// EnclosingContext returns the nearest ancestor context of id (excluding id)
// with the given type, or NoNode.
func (t *Tree) EnclosingContext(id NodeID, contextType string) NodeID {
	for cur := t.Parent(id); cur != NoNode; cur = t.Parent(cur) {
		if n := t.nodes[cur]; n.Kind == KindContext && n.ContextType == contextType {
			return cur
		}
	}
	return NoNode
}

// Walk visits id and its descendants depth first. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if !fn(id) {
		return
	}
	for _, child := range n.children {
		t.Walk(child, fn)
	}
}

// Leaves returns the leaves under id in depth-first order.
func (t *Tree) Leaves(id NodeID) []NodeID {
	var out []NodeID
	t.Walk(id, func(cur NodeID) bool {
		if t.nodes[cur].IsLeaf() {
			out = append(out, cur)
		}
		return true
	})
	return out
}

// FirstLeaf returns the first leaf under id, or NoNode.
func (t *Tree) FirstLeaf(id NodeID) NodeID {
	found := NoNode
	t.Walk(id, func(cur NodeID) bool {
		if found != NoNode {
			return false
		}
		if t.nodes[cur].IsLeaf() {
			found = cur
			return false
		}
		return true
	})
	return found
}

// Duration is the structural duration of id: a leaf's own duration, the sum
// of a sequential container's children or the longest simultaneous child.
func (t *Tree) Duration(id NodeID) duration.Duration {
	n := t.Node(id)
	if n == nil {
		return duration.Duration{}
	}
	if n.IsLeaf() {
		return n.Duration
	}
	total := duration.Duration{}
	for _, child := range n.children {
		d := t.Duration(child)
		if n.Simultaneous {
			total = duration.Max(total, d)
		} else {
			total = total.Add(d)
		}
	}
	return total
}

// UpdateOffsets recomputes start, stop and tree order when the tree has
// changed since the last computation.
func (t *Tree) UpdateOffsets() {
	if t.offsetsValid && t.offsetsRevision == t.revision {
		return
	}
	order := 0
	var visit func(id NodeID, start duration.Duration) duration.Duration
	visit = func(id NodeID, start duration.Duration) duration.Duration {
		n := t.nodes[id]
		n.start = start
		n.order = order
		order++
		if n.IsLeaf() {
			n.stop = start.Add(n.Duration)
			return n.stop
		}
		stop := start
		for _, child := range n.children {
			if n.Simultaneous {
				stop = duration.Max(stop, visit(child, start))
			} else {
				stop = visit(child, stop)
			}
		}
		n.stop = stop
		return stop
	}
	visit(t.root, duration.Duration{})
	t.offsetsRevision = t.revision
	t.offsetsValid = true
}

// Start returns the offset at which id begins.
func (t *Tree) Start(id NodeID) duration.Duration {
	t.UpdateOffsets()
	if n := t.Node(id); n != nil {
		return n.start
	}
	return duration.Duration{}
}

// Stop returns the offset at which id ends.
func (t *Tree) Stop(id NodeID) duration.Duration {
	t.UpdateOffsets()
	if n := t.Node(id); n != nil {
		return n.stop
	}
	return duration.Duration{}
}

// Order is the depth-first position of id, used to break offset ties.
func (t *Tree) Order(id NodeID) int {
	t.UpdateOffsets()
	if n := t.Node(id); n != nil {
		return n.order
	}
	return -1
}

// LeafAt returns the first leaf under id starting exactly at offset.
func (t *Tree) LeafAt(id NodeID, offset duration.Duration) (NodeID, bool) {
	for _, leaf := range t.Leaves(id) {
		if t.Start(leaf).Equal(offset) {
			return leaf, true
		}
	}
	return NoNode, false
}

// Describe renders a short human label for error messages.
func (t *Tree) Describe(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return fmt.Sprintf("<node %d>", id)
	}
	if n.Kind == KindContext {
		return fmt.Sprintf("%s %q", n.ContextType, n.Name)
	}
	if n.IsLeaf() {
		return fmt.Sprintf("%s %s", n.Kind, n.Duration)
	}
	return fmt.Sprintf("%s #%d", n.Kind, id)
}
