package score

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/scoresmith/internal/logbook"
	"github.com/kingrea/scoresmith/internal/metrics"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/store"
)

func mustDefinition(t *testing.T, payload string) Definition {
	t.Helper()
	def, err := ParseDefinitionYAML([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return def
}

func newTestBuilder(t *testing.T) (*Builder, *store.Repository, *logbook.Logbook, *metrics.Recorder) {
	t.Helper()
	dir := t.TempDir()
	journal, err := logbook.New(filepath.Join(dir, "builds.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	repo := store.NewRepository(filepath.Join(dir, "build"))
	recorder := metrics.New()
	b := NewBuilder(WithStore(repo), WithJournal(journal), WithMetrics(recorder))
	return b, repo, journal, recorder
}

func TestBuildChainsSegments(t *testing.T) {
	b, repo, journal, _ := newTestBuilder(t)
	report, err := b.Build(context.Background(), mustDefinition(t, etudeYAML))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.RunID == "" || len(report.Segments) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	first, second := report.Segments[0].Metadata, report.Segments[1].Metadata
	if first.FirstMeasureNumber != 1 || first.FinalMeasureNumber != 2 {
		t.Fatalf("segment A measures %d-%d", first.FirstMeasureNumber, first.FinalMeasureNumber)
	}
	if second.FirstMeasureNumber != 3 || second.FinalMeasureNumber != 3 {
		t.Fatalf("segment B measures %d-%d", second.FirstMeasureNumber, second.FinalMeasureNumber)
	}
	if report.Segments[1].Stats.Reapplied == 0 {
		t.Fatalf("segment B should reapply the tempo from segment A")
	}

	rec, err := repo.Load("Etude", "B")
	if err != nil {
		t.Fatalf("load B: %v", err)
	}
	if rec.Build.ID != report.RunID || rec.Build.Segment != "B" || rec.Tree == "" {
		t.Fatalf("unexpected stored build %+v", rec.Build)
	}
	if names, err := repo.Segments("Etude"); err != nil || len(names) != 2 {
		t.Fatalf("expected two stored segments, got %v (%v)", names, err)
	}
	if journal.Count(logbook.LevelInfo) == 0 {
		t.Fatalf("expected build progress in the journal")
	}
}

func TestBuildSegmentReadsPredecessorFromStore(t *testing.T) {
	b, _, _, _ := newTestBuilder(t)
	def := mustDefinition(t, etudeYAML)

	if _, err := b.BuildSegment(context.Background(), def, "B"); err == nil || !strings.Contains(err.Error(), "build A first") {
		t.Fatalf("expected missing predecessor error, got %v", err)
	}
	if _, err := b.BuildSegment(context.Background(), def, "A"); err != nil {
		t.Fatalf("build A: %v", err)
	}
	report, err := b.BuildSegment(context.Background(), def, "B")
	if err != nil {
		t.Fatalf("build B: %v", err)
	}
	if len(report.Segments) != 1 || report.Segments[0].Metadata.FirstMeasureNumber != 3 {
		t.Fatalf("unexpected report %+v", report.Segments)
	}
	if _, err := b.BuildSegment(context.Background(), def, "Z"); err == nil {
		t.Fatalf("expected unknown segment error")
	}
}

func TestBuildSegmentWithoutStore(t *testing.T) {
	b := NewBuilder()
	def := mustDefinition(t, etudeYAML)
	if _, err := b.BuildSegment(context.Background(), def, "A"); err != nil {
		t.Fatalf("first segment needs no store: %v", err)
	}
	if _, err := b.BuildSegment(context.Background(), def, "B"); err == nil {
		t.Fatalf("expected error without a store")
	}
}

func TestBuildStopsAtFirstFailure(t *testing.T) {
	b, repo, journal, recorder := newTestBuilder(t)
	def := mustDefinition(t, `
name: Broken
template: {staves: [{name: V}]}
segments:
  - name: A
    time_signatures: ["4/4"]
  - name: B
    time_signatures: ["4/4"]
    commands: [{command: notes, scope: Nobody_Voice, durations: ["1/4"]}]
  - name: C
    time_signatures: ["4/4"]
`)
	report, err := b.Build(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "segment B") {
		t.Fatalf("expected segment B to fail, got %v", err)
	}
	if len(report.Segments) != 1 {
		t.Fatalf("expected only segment A in the report, got %d", len(report.Segments))
	}
	if _, err := repo.Load("Broken", "C"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("segment C should not be built, got %v", err)
	}
	if journal.Count(logbook.LevelError) != 1 {
		t.Fatalf("expected one journal error, got %d", journal.Count(logbook.LevelError))
	}
	families, err := recorder.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var failed float64
	for _, family := range families {
		if family.GetName() != "scoresmith_segments_built_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == "error" {
					failed += m.GetCounter().GetValue()
				}
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed build recorded, got %v", failed)
	}
}

func TestBuildHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder().Build(ctx, mustDefinition(t, etudeYAML))
	if !IsCanceled(err) {
		t.Fatalf("expected canceled build, got %v", err)
	}
}

type countingStore struct {
	store.Store
	mu    sync.Mutex
	saves int
}

func (s *countingStore) Save(score, name string, rec store.Record) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Store.Save(score, name, rec)
}

func TestBuildAllKeepsOrder(t *testing.T) {
	repo := &countingStore{Store: store.NewRepository(t.TempDir())}
	b := NewBuilder(WithStore(repo))
	b.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	second := mustDefinition(t, `
name: Miniature
template: {staves: [{name: Oboe}]}
segments: [{name: only, time_signatures: ["2/4", "2/4"]}]
`)
	reports, err := b.BuildAll(context.Background(), []Definition{mustDefinition(t, etudeYAML), second})
	if err != nil {
		t.Fatalf("build all: %v", err)
	}
	if len(reports) != 2 || reports[0].Score != "Etude" || reports[1].Score != "Miniature" {
		t.Fatalf("reports out of order: %+v", reports)
	}
	if reports[0].RunID == reports[1].RunID {
		t.Fatalf("each score build should get its own run id")
	}
	if repo.saves != 3 {
		t.Fatalf("expected 3 saved segments, got %d", repo.saves)
	}
	if _, err := b.BuildAll(context.Background(), []Definition{second, second}); err == nil {
		t.Fatalf("expected duplicate score error")
	}
}

func TestDefaultsMergeUnderDefinitionOptions(t *testing.T) {
	b := NewBuilder(WithDefaults(segment.Options{AppendPhantomMeasure: true}))
	def := mustDefinition(t, `
name: Phantom
template: {staves: [{name: V}]}
segments:
  - name: A
    time_signatures: ["4/4"]
`)
	report, err := b.Build(context.Background(), def)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.Segments[0].Metadata.FinalMeasureNumber != 1 {
		t.Fatalf("phantom measure must not count as a measure: %+v", report.Segments[0].Metadata)
	}
}
