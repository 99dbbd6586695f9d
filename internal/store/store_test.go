package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/tag"
)

func sampleRecord(t *testing.T) Record {
	t.Helper()
	clef, err := indicator.NewMemento("Violin_Staff", indicator.Clef{Name: "treble"}, tag.New(tag.OnlyParts), nil)
	if err != nil {
		t.Fatal(err)
	}
	stop := 12.5
	start := 0.0
	return Record{
		Metadata: segment.Metadata{
			Segment:            "A",
			FirstMeasureNumber: 1,
			FinalMeasureNumber: 2,
			TimeSignatures:     []string{"4/4", "3/4"},
			Duration:           "7/4",
			StartClockTime:     &start,
			StopClockTime:      &stop,
		},
		Persist: segment.Persist{
			AliveDuringSegment:   []string{"GlobalSkips", "Violin_Voice"},
			PersistentIndicators: map[string][]indicator.Memento{"Violin_Staff": {clef}},
			VoiceMetadata:        map[string]map[string]any{"Violin_Voice": {"pitches": 3}},
			ContainerToPartAssignment: map[string]segment.PartAssignment{
				"A.Violin_Voice.Violin.1": {Part: "Violin", Start: duration.Zero, Stop: duration.New(7, 4)},
			},
		},
		Tree:  "Score Score\n",
		Build: Build{ID: "run-1", Score: "quartet", Segment: "A", BuiltAt: time.Unix(0, 0).UTC()},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := NewRepository(t.TempDir())
	rec := sampleRecord(t)
	if err := repo.Save("quartet", "A", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load("quartet", "A")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Metadata, rec.Metadata) {
		t.Fatalf("metadata mismatch\nwant %+v\n got %+v", rec.Metadata, got.Metadata)
	}
	mementos := got.Persist.PersistentIndicators["Violin_Staff"]
	if len(mementos) != 1 {
		t.Fatalf("expected clef memento, got %+v", got.Persist.PersistentIndicators)
	}
	ind, err := mementos[0].Reconstruct(nil)
	if err != nil || ind != (indicator.Clef{Name: "treble"}) {
		t.Fatalf("unexpected reconstruction %v (%v)", ind, err)
	}
	if got.Persist.VoiceMetadata["Violin_Voice"]["pitches"] != float64(3) {
		t.Fatalf("expected voice metadata to survive, got %v", got.Persist.VoiceMetadata)
	}
	part := got.Persist.ContainerToPartAssignment["A.Violin_Voice.Violin.1"]
	if !part.Stop.Equal(duration.New(7, 4)) {
		t.Fatalf("unexpected part assignment %+v", part)
	}
	if got.Tree != rec.Tree || got.Build.ID != "run-1" {
		t.Fatalf("unexpected tree or build %q %+v", got.Tree, got.Build)
	}
}

func TestSavedRecordsArePrunedAndSorted(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)
	rec := sampleRecord(t)
	rec.Metadata.StartClockTime, rec.Metadata.StopClockTime = nil, nil
	if err := repo.Save("quartet", "A", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "quartet", "A", "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if strings.Contains(text, "clock_time") || strings.Contains(text, "fermata_measure_numbers") {
		t.Fatalf("expected absent values pruned:\n%s", text)
	}
	if strings.Index(text, `"duration"`) > strings.Index(text, `"time_signatures"`) {
		t.Fatalf("expected sorted keys:\n%s", text)
	}
}

func TestSaveRejectsEmptyValues(t *testing.T) {
	repo := NewRepository(t.TempDir())
	rec := sampleRecord(t)
	rec.Persist.AliveDuringSegment = []string{}
	if err := repo.Save("quartet", "A", rec); !errors.Is(err, segment.ErrEmptyRecordValue) {
		t.Fatalf("expected empty value error, got %v", err)
	}
}

func TestLoadMissingSegment(t *testing.T) {
	repo := NewRepository(t.TempDir())
	if _, err := repo.Load("quartet", "Z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSegmentsAndScores(t *testing.T) {
	repo := NewRepository(t.TempDir())
	for _, name := range []string{"B", "A"} {
		if err := repo.Save("quartet", name, sampleRecord(t)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(repo.Root(), "empty", "X"), 0o755); err != nil {
		t.Fatal(err)
	}
	segments, err := repo.Segments("quartet")
	if err != nil || !reflect.DeepEqual(segments, []string{"A", "B"}) {
		t.Fatalf("unexpected segments %v (%v)", segments, err)
	}
	scores, err := repo.Scores()
	if err != nil || !reflect.DeepEqual(scores, []string{"quartet"}) {
		t.Fatalf("unexpected scores %v (%v)", scores, err)
	}
	if none, err := repo.Segments("missing"); err != nil || none != nil {
		t.Fatalf("expected no segments for missing score")
	}
}
