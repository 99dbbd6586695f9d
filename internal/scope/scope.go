// Package scope resolves declarative command targets (a voice plus a measure
// range, or a time-ordered union of them) into concrete leaves, backed by a
// measure-indexed leaf cache that checks the tree revision before every read.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownVoice reports a scope naming a context absent from the tree.
	ErrUnknownVoice = errors.New("scope: unknown voice")
	// ErrOutOfRange reports a measure range outside the segment.
	ErrOutOfRange = errors.New("scope: measure range out of bounds")
)

// Scope selects the leaves of one voice starting inside an inclusive,
// 1-based measure range. Zero Start means the first measure and zero Stop
// the last; negative values count back from the end (-1 is the last).
type Scope struct {
	Voice string
	Start int
	Stop  int
}

// Target is what a command selects over: a single Scope or a Timeline.
type Target interface {
	Scopes() []Scope
	Timeline() bool
	String() string
}

// Scopes implements Target.
func (s Scope) Scopes() []Scope { return []Scope{s} }

// Timeline implements Target.
func (s Scope) Timeline() bool { return false }

func (s Scope) String() string {
	if s.Start == 0 && s.Stop == 0 {
		return s.Voice
	}
	return fmt.Sprintf("%s[%d:%d]", s.Voice, s.Start, s.Stop)
}

// Resolve converts the range to absolute, inclusive measure numbers.
func (s Scope) Resolve(measures int) (first, last int, err error) {
	first, last = s.Start, s.Stop
	if first == 0 {
		first = 1
	} else if first < 0 {
		first = measures + first + 1
	}
	if last == 0 {
		last = measures
	} else if last < 0 {
		last = measures + last + 1
	}
	if first < 1 || last > measures || first > last {
		return 0, 0, fmt.Errorf("%w: %s in %d measures", ErrOutOfRange, s, measures)
	}
	return first, last, nil
}

// Timeline pools the leaves of several scopes and orders them by start
// offset, breaking ties by depth-first tree order.
type Timeline []Scope

// Scopes implements Target.
func (t Timeline) Scopes() []Scope { return append([]Scope(nil), t...) }

// Timeline implements Target.
func (t Timeline) Timeline() bool { return true }

func (t Timeline) String() string {
	parts := make([]string, len(t))
	for i, s := range t {
		parts[i] = s.String()
	}
	return "timeline(" + strings.Join(parts, ", ") + ")"
}
