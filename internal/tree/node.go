// Package tree is the arena-backed document tree the segment interpreter
// rewrites. Nodes are addressed by stable NodeIDs; every structural edit bumps
// the tree revision so derived indexes can detect staleness with one integer
// comparison, and offsets are recomputed lazily after edits.
package tree

import (
	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/pitch"
)

// NodeID addresses a node inside its Tree.
type NodeID int

// NoNode is the parent of the root and of detached nodes.
const NoNode NodeID = -1

// Kind distinguishes containers from leaves.
type Kind int

const (
	KindContext Kind = iota + 1
	KindContainer
	KindNote
	KindChord
	KindRest
	KindMultimeasureRest
	KindSkip
)

var kindNames = map[Kind]string{
	KindContext:          "context",
	KindContainer:        "container",
	KindNote:             "note",
	KindChord:            "chord",
	KindRest:             "rest",
	KindMultimeasureRest: "mmrest",
	KindSkip:             "skip",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsLeaf reports whether nodes of this kind hold no children.
func (k Kind) IsLeaf() bool {
	return k >= KindNote
}

// IsSilence reports rests, multimeasure rests and skips.
func (k Kind) IsSilence() bool {
	return k == KindRest || k == KindMultimeasureRest || k == KindSkip
}

// IsPitched reports notes and chords.
func (k Kind) IsPitched() bool {
	return k == KindNote || k == KindChord
}

// Context type names used by the score template and by wrappers.
const (
	ContextScore  = "Score"
	ContextGlobal = "GlobalContext"
	ContextStaff  = "Staff"
	ContextVoice  = "Voice"
	ContextGroup  = "StaffGroup"
)

// Annotations are per-leaf flags read by validation and silence handling.
type Annotations struct {
	NotYetPitched    bool
	NotYetRegistered bool
	AllowRepeatPitch bool
	AllowOctave      bool
	Hidden           bool
	Phantom          bool
	Tied             bool
}

// PartMarker designates a container whose music belongs to a named part.
type PartMarker struct {
	Part string
}

// Node is either a container (context or anonymous group) or a leaf.
type Node struct {
	Kind         Kind
	Name         string
	ContextType  string
	Simultaneous bool
	Duration     duration.Duration
	Pitches      []pitch.Pitch
	Annotations  Annotations
	Part         *PartMarker
	// PartIdentifier is filled in by part assignment.
	PartIdentifier string

	id       NodeID
	parent   NodeID
	children []NodeID
	wrappers []*Wrapper
	start    duration.Duration
	stop     duration.Duration
	order    int
}

// ID returns the node's arena address.
func (n *Node) ID() NodeID { return n.id }

// Parent returns the parent or NoNode.
func (n *Node) Parent() NodeID { return n.parent }

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool { return n.Kind.IsLeaf() }
