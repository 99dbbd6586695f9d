package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/pitch"
)

const sampleYAML = `
instruments:
  violin:
    name: Violin
    short_name: Vn.
    range: "[G3, A7]"
  cello:
    name: Cello
    range: "[C2, A5]"
margin_markups:
  Vn:
    text: Violin
    short: Vn.
metronome_marks:
  adagio: "Adagio 4=60"
  fast: "8=144"
parts:
  - Violin
  - Cello
`

func TestParseManifests(t *testing.T) {
	m, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	violin, err := m.Instrument("violin")
	if err != nil {
		t.Fatalf("instrument: %v", err)
	}
	if violin.Key != "violin" || violin.Range.Low != pitch.MustParse("G3") {
		t.Fatalf("unexpected violin %+v", violin)
	}
	ind, err := m.Indicator(indicator.ManifestMetronomeMarks, "adagio")
	if err != nil {
		t.Fatalf("metronome: %v", err)
	}
	mark := ind.(indicator.MetronomeMark)
	if mark.Text != "Adagio" || mark.UnitsPerMinute != duration.Whole(60) || mark.Key != "adagio" {
		t.Fatalf("unexpected mark %+v", mark)
	}
	if !m.HasPart("Cello") || m.HasPart("Viola") {
		t.Fatalf("unexpected part membership")
	}
}

func TestUnknownKeySuggests(t *testing.T) {
	m, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = m.Indicator(indicator.ManifestInstruments, "violn")
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if !strings.Contains(err.Error(), "violin") {
		t.Fatalf("expected suggestion in %q", err)
	}
}

func TestParseRejectsDuplicateParts(t *testing.T) {
	if _, err := Parse([]byte("parts: [A, A]")); err == nil {
		t.Fatalf("expected duplicate part error")
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifests.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Instruments) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(m.Instruments))
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
