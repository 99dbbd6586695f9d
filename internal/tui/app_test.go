package tui

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/scoresmith/internal/config"
	"github.com/kingrea/scoresmith/internal/logbook"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/store"
)

type fakeCatalog struct {
	records map[string]map[string]store.Record
	err     error
}

func (f *fakeCatalog) Scores() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for name := range f.records {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeCatalog) Segments(score string) ([]string, error) {
	var out []string
	for name := range f.records[score] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeCatalog) Load(score, name string) (store.Record, error) {
	rec, ok := f.records[score][name]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func seconds(v float64) *float64 { return &v }

func sampleCatalog() *fakeCatalog {
	return &fakeCatalog{records: map[string]map[string]store.Record{
		"Etude": {
			"A": {
				Metadata: segment.Metadata{
					FirstMeasureNumber: 1, FinalMeasureNumber: 2,
					TimeSignatures: []string{"4/4", "3/4"}, Duration: "7/4",
					StartClockTime: seconds(0), StopClockTime: seconds(7),
				},
				Persist: segment.Persist{AliveDuringSegment: []string{"Violin_Voice"}},
				Tree:    "Score\n  GlobalContext\n",
				Build: store.Build{
					ID: "run-1", Score: "Etude", Segment: "A", Elapsed: "3ms",
					BuiltAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Warnings: 2,
				},
			},
			"B": {Metadata: segment.Metadata{FirstMeasureNumber: 3, FinalMeasureNumber: 3}},
		},
		"Miniature": {"only": {}},
	}}
}

func newTestApp(t *testing.T, catalog Catalog) *App {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitDir(projectDir); err != nil {
		t.Fatalf("init dir: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	app, err := NewApp(cfg, WithCatalog(catalog))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return runCommands(t, model, app.Init())
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		var ok bool
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}

func press(t *testing.T, app *App, key string) *App {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	model, cmd := app.Update(msg)
	return runCommands(t, model, cmd)
}

func TestBrowseScoreToSegmentRecords(t *testing.T) {
	app := newTestApp(t, sampleCatalog())
	if got := len(app.scores.Items()); got != 2 {
		t.Fatalf("expected 2 scores, got %d", got)
	}
	if !strings.Contains(app.statusMsg, "2 score(s)") {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}

	app = press(t, app, "enter")
	if app.state != stateSegments || app.score != "Etude" {
		t.Fatalf("expected Etude segments, got state %d score %q", app.state, app.score)
	}
	items := app.segments.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(items))
	}
	if desc := items[0].(listItem).desc; !strings.Contains(desc, "m. 1-2") || !strings.Contains(desc, "2 warning(s)") {
		t.Fatalf("unexpected segment summary %q", desc)
	}

	app = press(t, app, "enter")
	if app.state != stateDetail || app.record == nil || app.segment != "A" {
		t.Fatalf("expected detail of A, got state %d", app.state)
	}
	view := app.View()
	for _, want := range []string{"Measures: 1-2", "run-1", "0'00''"} {
		if !strings.Contains(view, want) {
			t.Fatalf("summary pane missing %q:\n%s", want, view)
		}
	}

	app = press(t, app, "tab")
	if app.pane != paneTree || !strings.Contains(app.View(), "GlobalContext") {
		t.Fatalf("expected tree pane")
	}
	app = press(t, app, "tab")
	if app.pane != panePersist || !strings.Contains(app.View(), "Violin_Voice") {
		t.Fatalf("expected persist pane")
	}
	app = press(t, app, "tab")
	if app.pane != paneSummary {
		t.Fatalf("tab should wrap back to the summary")
	}

	app = press(t, app, "esc")
	if app.state != stateSegments || app.record != nil {
		t.Fatalf("esc should return to the segment list")
	}
	app = press(t, app, "esc")
	if app.state != stateScores {
		t.Fatalf("esc should return to the score list")
	}
}

func TestUntimedSegmentSummary(t *testing.T) {
	app := newTestApp(t, sampleCatalog())
	app = press(t, app, "enter")
	app = press(t, app, "down")
	app = press(t, app, "enter")
	if app.segment != "B" {
		t.Fatalf("expected segment B, got %q", app.segment)
	}
	if !strings.Contains(app.View(), "Clock: untimed") {
		t.Fatalf("expected untimed clock line")
	}
}

func TestCatalogErrorsAreShown(t *testing.T) {
	app := newTestApp(t, &fakeCatalog{err: errors.New("disk gone")})
	if app.err == nil || !strings.Contains(app.View(), "disk gone") {
		t.Fatalf("expected catalog error in the footer")
	}
	if !strings.Contains(app.View(), "No segments built yet") {
		t.Fatalf("expected empty-state hint")
	}
}

func TestQuitOnlyFromScoreList(t *testing.T) {
	app := newTestApp(t, sampleCatalog())
	app = press(t, app, "enter")
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd != nil {
		t.Fatalf("q inside a score should go back, not quit")
	}
	app = model.(*App)
	if app.state != stateScores {
		t.Fatalf("q should return to the score list")
	}
	if _, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatalf("q on the score list should quit")
	}
}

func TestLogPanelShowsJournalTail(t *testing.T) {
	dir := t.TempDir()
	lb, err := logbook.New(filepath.Join(dir, "builds.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	lb.Scope("Etude").Info("build done")
	app := newTestApp(t, sampleCatalog())
	WithLogbook(lb)(app)
	if view := app.View(); !strings.Contains(view, "[Etude] build done") || !strings.Contains(view, "builds.log") {
		t.Fatalf("log panel missing journal tail:\n%s", view)
	}
}

func TestNewAppRequiresConfig(t *testing.T) {
	if _, err := NewApp(nil); err == nil {
		t.Fatalf("expected error without config")
	}
}
