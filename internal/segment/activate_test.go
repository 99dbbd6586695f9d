package segment

import (
	"testing"

	"github.com/kingrea/scoresmith/internal/tag"
	"github.com/kingrea/scoresmith/internal/template"
	"github.com/kingrea/scoresmith/internal/tree"
)

func activeFlags(tr *tree.Tree) map[*tree.Wrapper]bool {
	out := map[*tree.Wrapper]bool{}
	for _, w := range tr.AllWrappers() {
		out[w] = w.Active
	}
	return out
}

func TestActivateThenDeactivateRestoresFlags(t *testing.T) {
	in := newInput(t, template.Template{}, sigs(2, 4, 2, 4, 3, 4))
	run(t, in)

	var numbers []*tree.Wrapper
	for _, w := range in.Tree.AllWrappers() {
		if w.Tag.Has(tag.MeasureNumber) {
			numbers = append(numbers, w)
		}
	}
	if len(numbers) != 6 {
		t.Fatalf("expected a start and stop per measure, got %d", len(numbers))
	}
	numbers[0].Active = true
	before := activeFlags(in.Tree)

	a := NewActivator(in.Tree)
	words := tag.NewSet(tag.MeasureNumber)
	if got := a.Activate(words); got != len(numbers) {
		t.Fatalf("expected %d activations, got %d", len(numbers), got)
	}
	for _, w := range numbers {
		if !w.Active {
			t.Fatalf("expected %s active", w)
		}
	}
	a.Activate(words)
	a.Deactivate(words)
	after := activeFlags(in.Tree)
	for w, active := range before {
		if after[w] != active {
			t.Fatalf("flag of %s changed from %v to %v", w, active, after[w])
		}
	}
}

func TestActivationIgnoresPitchedLeaves(t *testing.T) {
	in := newInput(t, template.Template{}, sigs(2, 4),
		mustCommand(t, "notes", map[string]any{"scope": "Violin_Voice", "durations": []any{"1/4"}}),
	)
	run(t, in)
	a := NewActivator(in.Tree)
	if got := a.Activate(tag.NewSet(tag.Validation)); got != 0 {
		t.Fatalf("expected validation markers on notes to be left alone, got %d", got)
	}
}

func TestOptionsDriveActivationAndRemoval(t *testing.T) {
	in := newInput(t, template.Template{}, sigs(2, 4, 2, 4))
	in.Options.Activate = []string{tag.LocalMeasure}
	in.Options.Remove = []string{tag.MeasureNumber}
	run(t, in)
	local, global := 0, 0
	for _, w := range in.Tree.AllWrappers() {
		switch {
		case w.Tag.Has(tag.LocalMeasure):
			local++
			if !w.Active {
				t.Fatalf("expected local measure numbers active")
			}
		case w.Tag.Has(tag.MeasureNumber):
			global++
		}
	}
	if local != 4 || global != 0 {
		t.Fatalf("expected 4 active local spans and no global ones, got %d and %d", local, global)
	}
}

func TestOptionsMergeOnlySwitchesFlagsOn(t *testing.T) {
	base := Options{ColorOctaves: true, Activate: []string{"A"}}
	got := base.Merge(Options{AppendPhantomMeasure: true, Activate: []string{"B"}})
	if !got.ColorOctaves || !got.AppendPhantomMeasure {
		t.Fatalf("unexpected flags %+v", got)
	}
	if len(got.Activate) != 1 || got.Activate[0] != "B" {
		t.Fatalf("expected override activation list, got %v", got.Activate)
	}
	if len(base.Merge(Options{}).Activate) != 1 {
		t.Fatalf("expected empty override to keep lists")
	}
}
