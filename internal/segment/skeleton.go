package segment

import (
	"fmt"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/tag"
	"github.com/kingrea/scoresmith/internal/template"
	"github.com/kingrea/scoresmith/internal/tree"
)

// buildSkeleton lays one skip per measure on the global skip track, each
// carrying its time signature, and one multimeasure rest per measure on the
// rest track. The phantom measure, when requested, follows on both.
func (b *build) buildSkeleton() error {
	skips, _ := b.tree.Context(template.GlobalSkips)
	rests, _ := b.tree.Context(template.GlobalRests)
	if len(b.tree.Children(skips)) > 0 || len(b.tree.Children(rests)) > 0 {
		return fmt.Errorf("%w: global tracks must be empty before the build", ErrInvalidInput)
	}
	for _, sig := range b.sigs {
		skip, err := b.appendSkip(skips, sig, tag.New(tag.Skeleton, tag.TimeSignature))
		if err != nil {
			return err
		}
		b.skips = append(b.skips, skip)
		rest := b.tree.NewLeaf(tree.KindMultimeasureRest, sig.Duration())
		if err := b.tree.Append(rests, rest); err != nil {
			return err
		}
		b.rests = append(b.rests, rest)
	}
	if b.opts.AppendPhantomMeasure {
		phantom := duration.Sig(1, 4)
		skip, err := b.appendSkip(skips, phantom, tag.New(tag.Phantom, tag.TimeSignature))
		if err != nil {
			return err
		}
		b.tree.Node(skip).Annotations.Phantom = true
		b.phantomSkip = skip
		rest := b.tree.NewLeaf(tree.KindMultimeasureRest, PhantomDuration)
		b.tree.Node(rest).Annotations.Phantom = true
		if err := b.tree.Append(rests, rest); err != nil {
			return err
		}
		b.phantomRest = rest
	}
	if b.opts.AttachNonfirstEmptyStartBar && !b.isFirstSegment() {
		bar := tree.NewWrapper(indicator.BarLine{Abbreviation: ""}, tag.New(tag.EmptyStartBar, tag.OnlySegment)).
			WithContext(tree.ContextScore)
		if err := b.tree.Attach(b.skips[0], bar); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) appendSkip(track tree.NodeID, sig duration.TimeSignature, t tag.Tag) (tree.NodeID, error) {
	skip := b.tree.NewLeaf(tree.KindSkip, sig.Duration())
	if err := b.tree.Append(track, skip); err != nil {
		return tree.NoNode, err
	}
	w := tree.NewWrapper(indicator.TimeSignature{Signature: sig}, t).WithContext(tree.ContextScore)
	if err := b.tree.Attach(skip, w); err != nil {
		return tree.NoNode, err
	}
	return skip, nil
}

func (b *build) silenceKind() tree.Kind {
	if b.opts.SkipsInsteadOfRests {
		return tree.KindSkip
	}
	return tree.KindRest
}

// silence returns detached silence leaves covering [from, to), split so no
// leaf crosses a barline.
func (b *build) silence(from, to duration.Duration) []tree.NodeID {
	var out []tree.NodeID
	for cur := from; cur.Less(to); {
		end := to
		if i := b.measureIndex(cur); i >= 0 && i+1 < len(b.starts) && b.starts[i+1].Less(end) {
			end = b.starts[i+1]
		}
		out = append(out, b.tree.NewLeaf(b.silenceKind(), end.Sub(cur)))
		cur = end
	}
	return out
}

// fillEmptyVoice gives a voice with no rhythm one silence spanning the whole
// segment. Voices that will receive reapplied indicators get a hidden note
// alongside the silence so the indicators have a leaf to live on.
func (b *build) fillEmptyVoice(voice tree.NodeID) error {
	kind := tree.KindMultimeasureRest
	if b.opts.SkipsInsteadOfRests {
		kind = tree.KindSkip
	}
	if !b.expectsMementos(voice) {
		return b.tree.Append(voice, b.tree.NewLeaf(kind, b.total))
	}
	pair := b.tree.NewContainer(true)
	note := b.tree.NewLeaf(tree.KindNote, b.total)
	b.tree.Node(note).Annotations = tree.Annotations{Hidden: true, NotYetPitched: true}
	if err := b.tree.Append(pair, note); err != nil {
		return err
	}
	if err := b.tree.Append(pair, b.tree.NewLeaf(kind, b.total)); err != nil {
		return err
	}
	return b.tree.Append(voice, pair)
}

func (b *build) expectsMementos(voice tree.NodeID) bool {
	if b.in.PreviousPersist == nil {
		return false
	}
	names := []string{b.contextName(voice)}
	if staff := b.tree.EnclosingContext(voice, tree.ContextStaff); staff != tree.NoNode {
		names = append(names, b.contextName(staff))
	}
	for _, name := range names {
		if len(b.in.PreviousPersist.PersistentIndicators[name]) > 0 {
			return true
		}
	}
	return false
}

func (b *build) appendPhantom(voice tree.NodeID) error {
	container := b.tree.NewContainer(false)
	kind := tree.KindMultimeasureRest
	if b.opts.SkipsInsteadOfRests {
		kind = tree.KindSkip
	}
	leaf := b.tree.NewLeaf(kind, PhantomDuration)
	b.tree.Node(leaf).Annotations.Phantom = true
	if err := b.tree.Append(container, leaf); err != nil {
		return err
	}
	return b.tree.Append(voice, container)
}

// checkDurationClosure requires every voice to span exactly the segment.
func (b *build) checkDurationClosure() error {
	want := b.total
	if b.opts.AppendPhantomMeasure {
		want = want.Add(PhantomDuration)
	}
	for _, voice := range b.musicVoices() {
		if got := b.tree.Duration(voice); !got.Equal(want) {
			return fmt.Errorf("%w: voice %q lasts %s, expected %s", ErrDurationMismatch, b.contextName(voice), got, want)
		}
	}
	return nil
}
