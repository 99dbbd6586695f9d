package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/scoresmith/internal/segment"
)

// value gathers r and returns the sample of name whose labels include every
// pair in labels.
func value(t *testing.T, r *Recorder, name string, labels map[string]string) (float64, int) {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			matched := 0
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue(), len(family.GetMetric())
			}
			return float64(m.GetHistogram().GetSampleCount()), len(family.GetMetric())
		}
	}
	return 0, 0
}

func TestObserveCountsResults(t *testing.T) {
	r := New()
	r.Observe("quartet", &segment.Stats{Commands: 4, ValidationMarkers: 2, Reapplied: 1}, 10*time.Millisecond)
	r.Observe("quartet", &segment.Stats{Commands: 1}, time.Millisecond)
	r.Observe("quartet", nil, time.Millisecond)

	if got, _ := value(t, r, "scoresmith_segments_built_total", map[string]string{"score": "quartet", "result": "ok"}); got != 2 {
		t.Fatalf("ok builds = %v, want 2", got)
	}
	if got, _ := value(t, r, "scoresmith_segments_built_total", map[string]string{"score": "quartet", "result": "error"}); got != 1 {
		t.Fatalf("failed builds = %v, want 1", got)
	}
	if got, _ := value(t, r, "scoresmith_commands_dispatched_total", map[string]string{"score": "quartet"}); got != 5 {
		t.Fatalf("commands = %v, want 5", got)
	}
	if count, series := value(t, r, "scoresmith_segment_build_duration_seconds", map[string]string{"score": "quartet"}); count != 3 || series != 1 {
		t.Fatalf("expected 3 observations in one series, got %v in %d", count, series)
	}
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Observe("x", &segment.Stats{}, 0)
	if _, series := value(t, b, "scoresmith_segments_built_total", map[string]string{"score": "x"}); series != 0 {
		t.Fatalf("expected separate registries, got %d series", series)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Observe("quartet", &segment.Stats{Commands: 3}, time.Millisecond)
	path := filepath.Join(t.TempDir(), "metrics", "scoresmith.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `scoresmith_commands_dispatched_total{score="quartet"} 3`) {
		t.Fatalf("unexpected textfile:\n%s", data)
	}
}

func TestNilRecorderIgnoresObservations(t *testing.T) {
	var r *Recorder
	r.Observe("x", nil, 0)
}
