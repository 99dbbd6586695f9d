// Package tui is the terminal browser over built segments. It follows the
// bubbletea loop: messages update the App, View renders it.
package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/scoresmith/internal/config"
	"github.com/kingrea/scoresmith/internal/logbook"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/store"
)

// appState represents which screen is showing.
type appState int

const (
	stateScores   appState = iota // every score with built segments
	stateSegments                 // segments of the selected score
	stateDetail                   // one segment's records
)

// pane selects what the detail viewport shows.
type pane int

const (
	paneSummary pane = iota
	paneTree
	panePersist
)

var paneNames = []string{"Summary", "Tree", "Persist"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	activeTab   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	idleTab     = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

// Catalog is the read side of the segment store.
type Catalog interface {
	Scores() ([]string, error)
	Segments(score string) ([]string, error)
	Load(score, name string) (store.Record, error)
}

// AppOption customizes App construction for tests.
type AppOption func(*App)

// WithCatalog replaces the repository under the configured output dir.
func WithCatalog(c Catalog) AppOption {
	return func(a *App) {
		if c != nil {
			a.catalog = c
		}
	}
}

// WithLogbook replaces the build journal shown in the log panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) { a.logbook = lb }
}

type scoresLoadedMsg struct {
	scores []listItem
	err    error
}

type segmentsLoadedMsg struct {
	score    string
	segments []listItem
	err      error
}

type recordLoadedMsg struct {
	score, segment string
	record         store.Record
	err            error
}

// listItem implements list.Item for scores and segments.
type listItem struct {
	name string
	desc string
}

func (i listItem) Title() string       { return i.name }
func (i listItem) Description() string { return i.desc }
func (i listItem) FilterValue() string { return i.name }

// App is the browser model.
type App struct {
	state   appState
	catalog Catalog
	logbook *logbook.Logbook

	scores   list.Model
	segments list.Model
	detail   viewport.Model

	score   string
	segment string
	record  *store.Record
	pane    pane

	statusMsg string
	err       error

	width  int
	height int
}

// NewApp opens the browser over cfg's output directory.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("tui: config is required")
	}
	app := newApp()
	app.catalog = store.NewRepository(cfg.OutputDir())
	if lb, err := logbook.New(cfg.JournalPath()); err == nil {
		app.logbook = lb
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app, nil
}

func newApp() *App {
	scores := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	scores.Title = "Scores"
	scores.SetShowStatusBar(false)
	segments := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	segments.SetShowStatusBar(false)
	return &App{
		state:    stateScores,
		scores:   scores,
		segments: segments,
		detail:   viewport.New(0, 0),
	}
}

// Init loads the score list.
func (a *App) Init() tea.Cmd {
	return a.loadScores()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.resize()
		return a, nil

	case scoresLoadedMsg:
		a.err = msg.err
		if msg.err == nil {
			a.scores.SetItems(toItems(msg.scores))
			a.statusMsg = fmt.Sprintf("%d score(s) built", len(msg.scores))
		}
		return a, nil

	case segmentsLoadedMsg:
		a.err = msg.err
		if msg.err == nil {
			a.score = msg.score
			a.segments.Title = msg.score
			a.segments.SetItems(toItems(msg.segments))
			a.segments.ResetSelected()
			a.state = stateSegments
		}
		return a, nil

	case recordLoadedMsg:
		a.err = msg.err
		if msg.err == nil {
			rec := msg.record
			a.segment = msg.segment
			a.record = &rec
			a.pane = paneSummary
			a.refreshDetail()
			a.state = stateDetail
		}
		return a, nil

	case tea.KeyMsg:
		if a.filtering() {
			break
		}
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateScores {
				return a, tea.Quit
			}
			return a.back()
		case "esc", "backspace":
			return a.back()
		case "r":
			return a, a.reload()
		case "tab":
			if a.state == stateDetail {
				a.pane = (a.pane + 1) % pane(len(paneNames))
				a.refreshDetail()
				return a, nil
			}
		case "enter":
			return a, a.open()
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case stateScores:
		a.scores, cmd = a.scores.Update(msg)
	case stateSegments:
		a.segments, cmd = a.segments.Update(msg)
	case stateDetail:
		a.detail, cmd = a.detail.Update(msg)
	}
	return a, cmd
}

func (a *App) filtering() bool {
	switch a.state {
	case stateScores:
		return a.scores.FilterState() == list.Filtering
	case stateSegments:
		return a.segments.FilterState() == list.Filtering
	}
	return false
}

func (a *App) back() (tea.Model, tea.Cmd) {
	switch a.state {
	case stateDetail:
		a.state = stateSegments
		a.record = nil
	case stateSegments:
		a.state = stateScores
		a.score = ""
	}
	a.err = nil
	return a, nil
}

func (a *App) open() tea.Cmd {
	switch a.state {
	case stateScores:
		if item, ok := a.scores.SelectedItem().(listItem); ok {
			return a.loadSegments(item.name)
		}
	case stateSegments:
		if item, ok := a.segments.SelectedItem().(listItem); ok {
			return a.loadRecord(a.score, item.name)
		}
	}
	return nil
}

func (a *App) reload() tea.Cmd {
	a.statusMsg = "Reloading..."
	switch a.state {
	case stateSegments:
		return a.loadSegments(a.score)
	case stateDetail:
		return a.loadRecord(a.score, a.segment)
	}
	return a.loadScores()
}

func (a *App) loadScores() tea.Cmd {
	catalog := a.catalog
	return func() tea.Msg {
		names, err := catalog.Scores()
		if err != nil {
			return scoresLoadedMsg{err: err}
		}
		items := make([]listItem, 0, len(names))
		for _, name := range names {
			segments, err := catalog.Segments(name)
			if err != nil {
				return scoresLoadedMsg{err: err}
			}
			items = append(items, listItem{name: name, desc: fmt.Sprintf("%d segment(s)", len(segments))})
		}
		return scoresLoadedMsg{scores: items}
	}
}

func (a *App) loadSegments(score string) tea.Cmd {
	catalog := a.catalog
	return func() tea.Msg {
		names, err := catalog.Segments(score)
		if err != nil {
			return segmentsLoadedMsg{score: score, err: err}
		}
		items := make([]listItem, 0, len(names))
		for _, name := range names {
			rec, err := catalog.Load(score, name)
			if err != nil {
				items = append(items, listItem{name: name, desc: "unreadable: " + err.Error()})
				continue
			}
			items = append(items, listItem{name: name, desc: segmentSummary(rec)})
		}
		return segmentsLoadedMsg{score: score, segments: items}
	}
}

func (a *App) loadRecord(score, name string) tea.Cmd {
	catalog := a.catalog
	return func() tea.Msg {
		rec, err := catalog.Load(score, name)
		return recordLoadedMsg{score: score, segment: name, record: rec, err: err}
	}
}

func segmentSummary(rec store.Record) string {
	m := rec.Metadata
	desc := fmt.Sprintf("m. %d-%d · %s", m.FirstMeasureNumber, m.FinalMeasureNumber, clockRange(m))
	if rec.Build.Warnings > 0 {
		desc += fmt.Sprintf(" · %d warning(s)", rec.Build.Warnings)
	}
	return desc
}

func clockRange(m segment.Metadata) string {
	if m.StartClockTime == nil || m.StopClockTime == nil {
		return "untimed"
	}
	return segment.FormatClock(*m.StartClockTime) + " to " + segment.FormatClock(*m.StopClockTime)
}

func (a *App) refreshDetail() {
	if a.record == nil {
		a.detail.SetContent("")
		return
	}
	var content string
	switch a.pane {
	case paneTree:
		content = a.record.Tree
	case panePersist:
		data, err := json.MarshalIndent(a.record.Persist, "", "  ")
		if err != nil {
			content = "persist: " + err.Error()
		} else {
			content = string(data)
		}
	default:
		content = renderSummary(*a.record)
	}
	a.detail.SetContent(content)
	a.detail.GotoTop()
}

func renderSummary(rec store.Record) string {
	m, b := rec.Metadata, rec.Build
	lines := []string{
		fmt.Sprintf("Measures: %d-%d", m.FirstMeasureNumber, m.FinalMeasureNumber),
		fmt.Sprintf("Time signatures: %s", strings.Join(m.TimeSignatures, " ")),
		fmt.Sprintf("Duration: %s", m.Duration),
		fmt.Sprintf("Clock: %s", clockRange(m)),
	}
	if len(m.FermataMeasureNumbers) > 0 {
		nums := make([]string, len(m.FermataMeasureNumbers))
		for i, n := range m.FermataMeasureNumbers {
			nums[i] = fmt.Sprint(n)
		}
		lines = append(lines, fmt.Sprintf("Fermata measures: %s", strings.Join(nums, ", ")))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("Build %s", b.ID),
		fmt.Sprintf("Built %s in %s", b.BuiltAt.Local().Format("2006-01-02 15:04:05"), b.Elapsed),
		fmt.Sprintf("Commands %d · reapplied %d · dropped %d · markers %d",
			b.Stats.Commands, b.Stats.Reapplied, b.Stats.Dropped, b.Stats.ValidationMarkers),
	)
	if b.Warnings > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d warning(s), see the build log", b.Warnings)))
	}
	return strings.Join(lines, "\n")
}

func (a *App) resize() {
	w := max(20, a.width-6)
	h := max(5, a.height-14)
	a.scores.SetSize(w, h)
	a.segments.SetSize(w, h)
	a.detail.Width = w
	a.detail.Height = max(3, h-2)
}

// View renders the current screen.
func (a *App) View() string {
	var content, hint string
	switch a.state {
	case stateScores:
		content = a.scores.View()
		if len(a.scores.Items()) == 0 {
			content = "No segments built yet. Run `scoresmith build`."
		}
		hint = "Enter → segments    / → filter    r → reload    q → quit"
	case stateSegments:
		content = a.segments.View()
		hint = "Enter → records    Esc → scores    r → reload"
	case stateDetail:
		content = lipgloss.JoinVertical(lipgloss.Left, a.renderTabs(), a.detail.View())
		hint = "Tab → next pane    ↑/↓ → scroll    Esc → segments"
	}
	sections := []string{
		headerStyle.Render("SCORESMITH"),
		boxStyle.Width(max(20, a.width-2)).Render(lipgloss.JoinVertical(lipgloss.Left, content, hintStyle.Render(hint))),
	}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	status := a.statusMsg
	if a.err != nil {
		status = "⚠ " + a.err.Error()
	}
	sections = append(sections, footerStyle.Render(status))
	return strings.Join(sections, "\n")
}

func (a *App) renderTabs() string {
	title := titleStyle.Render(a.score + " / " + a.segment)
	tabs := make([]string, len(paneNames))
	for i, name := range paneNames {
		if pane(i) == a.pane {
			tabs[i] = activeTab.Render("[" + name + "]")
		} else {
			tabs[i] = idleTab.Render(" " + name + " ")
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(tabs, " "))
}

func (a *App) renderLogPanel() string {
	lines, total := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	name := filepath.Base(a.logbook.Path())
	head := titleStyle.Render(fmt.Sprintf("LOG · %s (%d)", name, total))
	body := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render(strings.Join(lines, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

func toItems(items []listItem) []list.Item {
	out := make([]list.Item, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}
