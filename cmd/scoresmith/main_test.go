package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/scoresmith/internal/config"
	"github.com/kingrea/scoresmith/internal/logging"
	"github.com/kingrea/scoresmith/internal/metrics"
	"github.com/kingrea/scoresmith/internal/score"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/server"
	"github.com/kingrea/scoresmith/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInitBuildStatusShow(t *testing.T) {
	dir := t.TempDir()
	if out, err := execute(t, "init", "--project", dir); err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "scores", "example.yaml")); err != nil {
		t.Fatalf("example score missing: %v", err)
	}

	out, err := execute(t, "build", "--project", dir)
	if err != nil {
		t.Fatalf("build: %v\n%s", err, out)
	}
	if !strings.Contains(out, "example") || !strings.Contains(out, "4-5") {
		t.Fatalf("unexpected build report:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".scoresmith", "metrics", "scoresmith.prom")); err != nil {
		t.Fatalf("metrics textfile missing: %v", err)
	}

	out, err = execute(t, "status", "--project", dir)
	if err != nil || !strings.Contains(out, "2/2") {
		t.Fatalf("unexpected status (%v):\n%s", err, out)
	}

	out, err = execute(t, "show", "example", "B", "--project", dir)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var md segment.Metadata
	if err := json.Unmarshal([]byte(out), &md); err != nil {
		t.Fatalf("decode metadata: %v\n%s", err, out)
	}
	if md.FirstMeasureNumber != 4 || !md.LastMeasureIsFermata {
		t.Fatalf("unexpected metadata %+v", md)
	}

	if out, err := execute(t, "show", "example", "B", "--part", "tree", "--project", dir); err != nil || !strings.Contains(out, "Violin_Voice") {
		t.Fatalf("tree dump (%v):\n%s", err, out)
	}
	if _, err := execute(t, "show", "example", "Z", "--project", dir); err == nil {
		t.Fatalf("expected error for unbuilt segment")
	}
}

func TestRebuildSingleSegment(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "init", "--project", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := execute(t, "build", "example", "--segment", "B", "--project", dir); err == nil {
		t.Fatalf("expected B to need A first")
	}
	if _, err := execute(t, "build", "--project", dir); err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := execute(t, "build", "example", "--segment", "B", "--json", "--project", dir)
	if err != nil {
		t.Fatalf("rebuild B: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"Segment": "B"`) {
		t.Fatalf("unexpected JSON report:\n%s", out)
	}
}

func TestValidateAndAdd(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "init", "--project", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	bad := filepath.Join(dir, "bad.yaml")
	payload := `
name: bad
template: {staves: [{name: V}]}
segments:
  - name: A
    time_signatures: ["4/4"]
    commands: [{command: glissando, scope: V_Voice}]
`
	if err := os.WriteFile(bad, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := execute(t, "validate", bad, filepath.Join(dir, "scores", "example.yaml"))
	if err == nil || !strings.Contains(out, "Invalid: "+bad) || !strings.Contains(out, "OK: ") {
		t.Fatalf("unexpected validate result (%v):\n%s", err, out)
	}

	if _, err := execute(t, "add", "bad", bad, "--project", dir); err != nil {
		t.Fatalf("add loads but does not resolve commands: %v", err)
	}
	out, err = execute(t, "status", "--project", dir)
	if err != nil || !strings.Contains(out, "bad") {
		t.Fatalf("status should list the added score (%v):\n%s", err, out)
	}
	if _, err := execute(t, "build", "missing", "--project", dir); err == nil {
		t.Fatalf("expected unknown score error")
	}
}

func TestBuildHandlerResolvesConfiguredScores(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "init", "--project", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer logger.Close()
	repo := store.NewRepository(cfg.OutputDir())
	recorder := metrics.New()
	handler := newBuildHandler(cfg, score.NewBuilder(score.WithStore(repo), score.WithMetrics(recorder)), recorder, logger)

	report, err := handler(context.Background(), server.BuildRequest{Score: "example"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(report.Segments) != 2 {
		t.Fatalf("expected two segments, got %d", len(report.Segments))
	}
	if _, err := os.Stat(cfg.MetricsPath()); err != nil {
		t.Fatalf("metrics not exported: %v", err)
	}
	if _, err := handler(context.Background(), server.BuildRequest{Score: "nope"}); !errors.Is(err, server.ErrUnknownScore) {
		t.Fatalf("expected unknown score, got %v", err)
	}
}
