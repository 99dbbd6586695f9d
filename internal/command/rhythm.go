package command

import (
	"fmt"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/tree"
)

// Notes fills its measures with notes cycling through a duration pattern.
// Notes are unpitched until a pitches command reaches them; no note crosses
// a barline.
type Notes struct {
	Base
	pattern []duration.Duration
	rest    bool
	resume  bool
}

// NewNotes is the "notes" factory. Options: durations (list), resume.
func NewNotes(cfg Config) (Command, error) {
	return newPattern("notes", cfg, false)
}

// NewRests is the "rests" factory: the notes pattern rendered as rests.
// Without durations each measure gets one full-measure rest.
func NewRests(cfg Config) (Command, error) {
	return newPattern("rests", cfg, true)
}

func newPattern(name string, cfg Config, rest bool) (Command, error) {
	base, err := NewBase(name, cfg)
	if err != nil {
		return nil, err
	}
	if base.target.Timeline() {
		return nil, fmt.Errorf("command: %s: rhythm commands target a single voice", name)
	}
	texts, err := cfg.Strings("durations")
	if err != nil {
		return nil, fmt.Errorf("command: %s: %w", name, err)
	}
	if len(texts) == 0 && !rest {
		return nil, fmt.Errorf("command: %s: durations are required", name)
	}
	var pattern []duration.Duration
	for _, text := range texts {
		d, err := duration.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("command: %s: %w", name, err)
		}
		if d.IsZero() || d.Negative() {
			return nil, fmt.Errorf("command: %s: duration %s must be positive", name, d)
		}
		pattern = append(pattern, d)
	}
	resume, err := cfg.Bool("resume", false)
	if err != nil {
		return nil, fmt.Errorf("command: %s: %w", name, err)
	}
	return &Notes{Base: base, pattern: pattern, rest: rest, resume: resume}, nil
}

// Voice is the single voice a rhythm command writes.
func (c *Notes) Voice() string {
	return c.target.Scopes()[0].Voice
}

// MakeSelection implements RhythmCommand.
func (c *Notes) MakeSelection(tr *tree.Tree, sigs []duration.TimeSignature, rt Runtime) ([]tree.NodeID, error) {
	kind := tree.KindNote
	if c.rest {
		kind = tree.KindRest
	}
	cursor := 0
	if c.resume {
		if state, ok := rt.PreviousState(c.Voice(), c.persist); ok {
			cursor = asInt(state)
		}
	}
	var out []tree.NodeID
	for _, sig := range sigs {
		remaining := sig.Duration()
		if len(c.pattern) == 0 {
			out = append(out, tr.NewLeaf(kind, remaining))
			continue
		}
		for !remaining.IsZero() {
			d := c.pattern[cursor%len(c.pattern)]
			cursor++
			if remaining.Less(d) {
				d = remaining
			}
			leaf := tr.NewLeaf(kind, d)
			if kind == tree.KindNote {
				tr.Node(leaf).Annotations.NotYetPitched = true
			}
			out = append(out, leaf)
			remaining = remaining.Sub(d)
		}
	}
	if len(c.pattern) > 0 {
		c.remember(c.Voice(), cursor%len(c.pattern))
	}
	return out, nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
