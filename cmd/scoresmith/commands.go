package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/scoresmith/internal/command"
	"github.com/kingrea/scoresmith/internal/config"
	"github.com/kingrea/scoresmith/internal/logbook"
	"github.com/kingrea/scoresmith/internal/logging"
	"github.com/kingrea/scoresmith/internal/metrics"
	"github.com/kingrea/scoresmith/internal/score"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/store"
	"github.com/kingrea/scoresmith/internal/tui"
)

const exampleScoreYAML = `# A two-segment example. Run "scoresmith build" to interpret it.
name: example
manifest:
  metronome_marks:
    andante: "4=72"
template:
  staves:
    - name: Violin
      clef: treble
    - name: Cello
      clef: bass
segments:
  - name: A
    time_signatures: ["4/4", "3/4", "4/4"]
    commands:
      - command: notes
        scope: Violin_Voice
        durations: ["1/4", "1/8", "1/8"]
      - command: pitches
        scope: Violin_Voice
        pitches: ["c''", "d''", "e''"]
      - command: metronome_mark
        scope: GlobalSkips
        key: andante
  - name: B
    time_signatures: ["3/4", "3/4"]
    commands:
      - command: rests
        scope: Violin_Voice
      - command: fermata
        scope: {voice: GlobalRests, measures: -1}
        shape: long
`

func projectDir(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("project")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(dir) == "" {
		dir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}
	return filepath.Abs(dir)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, err := projectDir(cmd)
	if err != nil {
		return nil, err
	}
	return config.NewConfig(dir)
}

func runInit(cmd *cobra.Command, _ []string) error {
	dir, err := projectDir(cmd)
	if err != nil {
		return err
	}
	if err := config.InitDir(dir); err != nil {
		return err
	}
	example := filepath.Join(dir, "scores", "example.yaml")
	if _, err := os.Stat(example); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(example), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(example, []byte(exampleScoreYAML), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", example)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", filepath.Join(dir, config.Dir))
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	def, err := score.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.AddScore(args[0], path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s, %d segment(s))\n", args[0], def.Name, len(def.Segments))
	return nil
}

// loadScores loads the named configured scores, or all of them.
func loadScores(cfg *config.Config, names []string) ([]score.Definition, error) {
	refs := cfg.Scores()
	if len(names) > 0 {
		refs = refs[:0:0]
		for _, name := range names {
			ref, ok := cfg.Score(name)
			if !ok {
				return nil, fmt.Errorf("unknown score %q (see scoresmith status)", name)
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no scores configured in %s", cfg.ProjectConfigPath())
	}
	defs := make([]score.Definition, 0, len(refs))
	for _, ref := range refs {
		def, err := score.Load(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", ref.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// checkDefinition resolves everything a build resolves short of
// interpreting: manifests, commands and the template tree.
func checkDefinition(def score.Definition, reg *command.Registry) error {
	if _, err := def.Manifests(); err != nil {
		return err
	}
	if _, err := def.Template.Build(); err != nil {
		return fmt.Errorf("score %s: %w", def.Name, err)
	}
	for _, seg := range def.Segments {
		if _, err := seg.Commands(reg); err != nil {
			return fmt.Errorf("score %s: %w", def.Name, err)
		}
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		for _, ref := range cfg.Scores() {
			paths = append(paths, ref.Path)
		}
	}
	if len(paths) == 0 {
		return errors.New("nothing to validate")
	}
	reg := command.NewRegistry()
	command.RegisterBuiltins(reg)
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range paths {
		def, err := score.Load(path)
		if err == nil {
			err = checkDefinition(def, reg)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "Invalid: %s\n- %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "OK: %s (%s, %d segment(s))\n", path, def.Name, len(def.Segments))
	}
	if failed > 0 {
		return fmt.Errorf("%d definition(s) invalid", failed)
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	segmentName, _ := cmd.Flags().GetString("segment")
	asJSON, _ := cmd.Flags().GetBool("json")
	activate, _ := cmd.Flags().GetStringSlice("activate")
	deactivate, _ := cmd.Flags().GetStringSlice("deactivate")

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.WithPrefix("build")

	defs, err := loadScores(cfg, args)
	if err != nil {
		log.Printf("load scores: %v", err)
		return err
	}
	if segmentName != "" && len(defs) != 1 {
		return errors.New("--segment needs exactly one score")
	}

	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return err
	}
	recorder := metrics.New()
	builder := score.NewBuilder(
		score.WithStore(store.NewRepository(cfg.OutputDir())),
		score.WithJournal(journal),
		score.WithMetrics(recorder),
		score.WithDefaults(cfg.Project.Defaults.Merge(segment.Options{Activate: activate, Deactivate: deactivate})),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reports []*score.Report
	if segmentName != "" {
		var report *score.Report
		report, err = builder.BuildSegment(ctx, defs[0], segmentName)
		reports = append(reports, report)
	} else {
		reports, err = builder.BuildAll(ctx, defs)
	}
	if exportErr := recorder.WriteTextfile(cfg.MetricsPath()); exportErr != nil {
		log.Printf("export metrics: %v", exportErr)
	}
	printErr := printReports(cmd.OutOrStdout(), reports, asJSON)
	if err != nil {
		if score.IsCanceled(err) {
			log.Printf("interrupted")
			return errors.New("build interrupted")
		}
		log.Printf("%v", err)
		return err
	}
	log.Printf("built %d score(s), journal at %s", len(reports), journal.Path())
	return printErr
}

func printReports(w io.Writer, reports []*score.Report, asJSON bool) error {
	var done []*score.Report
	for _, r := range reports {
		if r != nil {
			done = append(done, r)
		}
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(done)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSEGMENT\tMEASURES\tCLOCK\tREAPPLIED\tMARKERS\tWARNINGS")
	for _, r := range done {
		for _, seg := range r.Segments {
			m := seg.Metadata
			clock := "-"
			if m.StartClockTime != nil && m.StopClockTime != nil {
				clock = segment.FormatClock(*m.StartClockTime) + "-" + segment.FormatClock(*m.StopClockTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%s\t%d\t%d\t%d\n",
				r.Score, seg.Segment, m.FirstMeasureNumber, m.FinalMeasureNumber, clock,
				seg.Stats.Reapplied, seg.Stats.ValidationMarkers, seg.Warnings)
		}
	}
	return tw.Flush()
}

type scoreStatus struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Declared []string `json:"declared,omitempty"`
	Built    []string `json:"built"`
	Error    string   `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	repo := store.NewRepository(cfg.OutputDir())
	var statuses []scoreStatus
	for _, ref := range cfg.Scores() {
		st := scoreStatus{Name: ref.Name, Path: ref.Path}
		def, err := score.Load(ref.Path)
		if err != nil {
			st.Error = err.Error()
		} else {
			st.Name = def.Name
			for _, seg := range def.Segments {
				st.Declared = append(st.Declared, seg.Name)
			}
		}
		built, err := repo.Segments(st.Name)
		if err != nil && st.Error == "" {
			st.Error = err.Error()
		}
		st.Built = built
		statuses = append(statuses, st)
	}
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tBUILT\tPATH")
	for _, st := range statuses {
		built := fmt.Sprintf("%d/%d", len(st.Built), len(st.Declared))
		if st.Error != "" {
			built = "error: " + st.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, built, st.Path)
	}
	return tw.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	part, _ := cmd.Flags().GetString("part")
	rec, err := store.NewRepository(cfg.OutputDir()).Load(args[0], args[1])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%s/%s is not built yet", args[0], args[1])
		}
		return err
	}
	out := cmd.OutOrStdout()
	var v any
	switch strings.ToLower(strings.TrimSpace(part)) {
	case "tree":
		_, err := io.WriteString(out, rec.Tree)
		return err
	case "metadata":
		v = rec.Metadata
	case "persist":
		v = rec.Persist
	case "build":
		v = rec.Build
	default:
		return fmt.Errorf("unknown part %q (metadata|persist|tree|build)", part)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := tui.NewApp(cfg)
	if err != nil {
		return err
	}
	// Use the alternate screen buffer like the rest of the charm tools.
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	return nil
}
