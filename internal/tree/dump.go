package tree

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented outline of the tree with offsets and wrappers.
func (t *Tree) Dump(w io.Writer) error {
	t.UpdateOffsets()
	var err error
	write := func(depth int, format string, args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
	}
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		n := t.nodes[id]
		switch {
		case n.Kind == KindContext:
			mode := "seq"
			if n.Simultaneous {
				mode = "sim"
			}
			write(depth, "%s %s (%s) %s..%s", n.ContextType, n.Name, mode, n.start, n.stop)
		case n.IsLeaf():
			line := fmt.Sprintf("%s %s @%s", n.Kind, n.Duration, n.start)
			for _, p := range n.Pitches {
				line += " " + p.String()
			}
			if n.Annotations.Hidden {
				line += " hidden"
			}
			if n.Annotations.Phantom {
				line += " phantom"
			}
			write(depth, "%s", line)
			for _, wr := range n.wrappers {
				write(depth+1, "%s", wr)
			}
		default:
			label := "{ }"
			if n.Simultaneous {
				label = "<< >>"
			}
			if n.PartIdentifier != "" {
				label += " " + n.PartIdentifier
			}
			write(depth, "%s %s..%s", label, n.start, n.stop)
		}
		for _, child := range n.children {
			visit(child, depth+1)
		}
	}
	visit(t.root, 0)
	return err
}

// String returns Dump output.
func (t *Tree) String() string {
	var b strings.Builder
	_ = t.Dump(&b)
	return b.String()
}
