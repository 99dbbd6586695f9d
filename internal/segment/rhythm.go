package segment

import (
	"fmt"
	"sort"

	"github.com/kingrea/scoresmith/internal/command"
	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/tree"
)

// placement is one rhythm command's output positioned in its voice.
type placement struct {
	index   int
	command command.Command
	start   duration.Duration
	length  duration.Duration
	payload []tree.NodeID
}

func (p placement) stop() duration.Duration { return p.start.Add(p.length) }

// dispatchRhythm runs every rhythm command, checks each voice's placements
// for overlap, then writes placements and gap silence into the voices.
func (b *build) dispatchRhythm() error {
	byVoice := map[string][]placement{}
	for index, cmd := range b.in.Commands {
		rc, ok := cmd.(command.RhythmCommand)
		if !ok {
			continue
		}
		b.stats.Commands++
		p, err := b.place(index, rc)
		if err != nil {
			return &CommandError{Index: index, Command: cmd, Err: err}
		}
		voice := rc.Target().Scopes()[0].Voice
		byVoice[voice] = append(byVoice[voice], p)
		b.recordState(cmd)
	}
	for _, id := range b.musicVoices() {
		voice := b.contextName(id)
		placements := byVoice[voice]
		sort.SliceStable(placements, func(i, j int) bool {
			return placements[i].start.Less(placements[j].start)
		})
		for i := 1; i < len(placements); i++ {
			prev, cur := placements[i-1], placements[i]
			if cur.start.Less(prev.stop()) {
				return &CommandError{Index: cur.index, Command: cur.command, Err: fmt.Errorf(
					"%w: in %q [%s, %s) overlaps [%s, %s) from command %d",
					ErrOverlap, voice, cur.start, cur.stop(), prev.start, prev.stop(), prev.index+1)}
			}
		}
		byVoice[voice] = placements
	}
	for _, voice := range b.musicVoices() {
		if err := b.fillVoice(voice, byVoice[b.contextName(voice)]); err != nil {
			return err
		}
		if b.opts.AppendPhantomMeasure {
			if err := b.appendPhantom(voice); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *build) place(index int, rc command.RhythmCommand) (placement, error) {
	scopes := rc.Target().Scopes()
	if len(scopes) != 1 {
		return placement{}, fmt.Errorf("%w: rhythm commands target exactly one voice", ErrInvalidInput)
	}
	s := scopes[0]
	ctx, ok := b.tree.Context(s.Voice)
	if !ok || b.tree.Node(ctx).ContextType != tree.ContextVoice {
		return placement{}, fmt.Errorf("%w: %q", ErrUnknownVoice, s.Voice)
	}
	first, last, err := s.Resolve(b.measures())
	if err != nil {
		return placement{}, err
	}
	sigs := b.sigs[first-1 : last]
	payload, err := rc.MakeSelection(b.tree, sigs, b.runtime)
	if err != nil {
		return placement{}, err
	}
	want := duration.Total(sigs)
	got := duration.Duration{}
	for _, id := range payload {
		if b.tree.Parent(id) != tree.NoNode {
			return placement{}, fmt.Errorf("%w: rhythm output must be detached", ErrInvalidInput)
		}
		got = got.Add(b.tree.Duration(id))
	}
	if !got.Equal(want) {
		return placement{}, fmt.Errorf("%w: rhythm lasts %s, measures %d-%d last %s", ErrDurationMismatch, got, first, last, want)
	}
	return placement{index: index, command: rc, start: b.starts[first-1], length: want, payload: payload}, nil
}

func (b *build) fillVoice(voice tree.NodeID, placements []placement) error {
	if len(placements) == 0 {
		if len(b.tree.Children(voice)) > 0 {
			return nil
		}
		return b.fillEmptyVoice(voice)
	}
	if len(b.tree.Children(voice)) > 0 {
		return fmt.Errorf("%w: voice %q already holds music", ErrInvalidInput, b.contextName(voice))
	}
	var sequence []tree.NodeID
	cursor := duration.Duration{}
	for _, p := range placements {
		sequence = append(sequence, b.silence(cursor, p.start)...)
		sequence = append(sequence, p.payload...)
		cursor = p.stop()
	}
	sequence = append(sequence, b.silence(cursor, b.total)...)
	for _, id := range sequence {
		if err := b.tree.Append(voice, id); err != nil {
			return err
		}
	}
	return nil
}
