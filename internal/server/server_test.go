package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/scoresmith/internal/config"
	"github.com/kingrea/scoresmith/internal/metrics"
	"github.com/kingrea/scoresmith/internal/score"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/store"
)

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("SCORESMITH_SERVER_PORT", "9001")
	t.Setenv("SCORESMITH_SERVER_HOST", "0.0.0.0")
	t.Setenv("SCORESMITH_SERVER_ENABLED", "false")
	settings := SettingsFromConfig(&config.Config{})
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.Enabled {
		t.Fatalf("expected enabled=false from env override")
	}
}

func TestSettingsFromConfigUsesProjectServer(t *testing.T) {
	cfg := &config.Config{Project: config.ProjectConfig{Server: config.ServerConfig{Host: "localhost", Port: 9100}}}
	settings := SettingsFromConfig(cfg)
	if settings.Address() != "localhost:9100" || !settings.Enabled {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.MaxBodyBytes != DefaultMaxBodyBytes || settings.WriteTimeout != DefaultWriteTimeout {
		t.Fatalf("defaults not applied: %+v", settings)
	}
}

func TestBuildRequestValidate(t *testing.T) {
	req := BuildRequest{Score: " Etude ", Segment: " B "}
	req.Normalize()
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if req.Score != "Etude" || req.Version != RequestSchemaVersion {
		t.Fatalf("normalize failed: %+v", req)
	}
	for _, bad := range []BuildRequest{
		{Version: 2, Score: "x"},
		{Version: 1},
		{Version: 1, Score: "../etc"},
	} {
		if err := bad.Validate(); err == nil {
			t.Fatalf("expected %+v to fail validation", bad)
		}
	}
}

func seededRepository(t *testing.T) *store.Repository {
	t.Helper()
	repo := store.NewRepository(t.TempDir())
	rec := store.Record{
		Metadata: segment.Metadata{FirstMeasureNumber: 1, FinalMeasureNumber: 2, TimeSignatures: []string{"4/4", "4/4"}, Duration: "2"},
		Persist:  segment.Persist{AliveDuringSegment: []string{"Violin_Voice"}},
		Tree:     "Score\n  Violin_Voice\n",
		Build:    store.Build{ID: "run-1", Score: "Etude", Segment: "A"},
	}
	if err := repo.Save("Etude", "A", rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return repo
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServerStartsAndReportsHealth(t *testing.T) {
	t.Parallel()
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: 1024, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail")
	}
	status, body := get(t, srv.BaseURL()+"/health")
	if status != http.StatusOK || !strings.Contains(body, `"status":"ready"`) {
		t.Fatalf("unexpected health %d %s", status, body)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Status() != StatusDraining || srv.Addr() != "" {
		t.Fatalf("expected draining server without address")
	}
}

func TestDisabledServerDoesNotStart(t *testing.T) {
	if err := NewServer(Settings{}).Start(context.Background()); !errors.Is(err, errServerDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestScoresRoutes(t *testing.T) {
	srv := NewServer(Settings{MaxBodyBytes: 1024}, WithCatalog(seededRepository(t)))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/scores")
	if status != http.StatusOK || !strings.Contains(body, `"Etude":["A"]`) {
		t.Fatalf("unexpected listing %d %s", status, body)
	}
	status, body = get(t, ts.URL+"/scores/Etude/A")
	var md segment.Metadata
	if status != http.StatusOK || json.Unmarshal([]byte(body), &md) != nil || md.FinalMeasureNumber != 2 {
		t.Fatalf("unexpected metadata %d %s", status, body)
	}
	if status, body = get(t, ts.URL+"/scores/Etude/A?part=tree"); status != http.StatusOK || !strings.Contains(body, "Violin_Voice") {
		t.Fatalf("unexpected tree %d %s", status, body)
	}
	if status, _ = get(t, ts.URL+"/scores/Etude/Z"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unbuilt segment, got %d", status)
	}
	if status, _ = get(t, ts.URL+"/scores/Nope"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown score, got %d", status)
	}
	if status, _ = get(t, ts.URL+"/scores/Etude/A?part=bogus"); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown part, got %d", status)
	}
}

func TestBuildsRoute(t *testing.T) {
	var seen []BuildRequest
	builder := BuilderFunc(func(_ context.Context, req BuildRequest) (*score.Report, error) {
		seen = append(seen, req)
		switch req.Score {
		case "Etude":
			return &score.Report{Score: "Etude", RunID: "run-2"}, nil
		case "Broken":
			return &score.Report{Score: "Broken"}, fmt.Errorf("segment B: boom")
		}
		return nil, fmt.Errorf("%w %q", ErrUnknownScore, req.Score)
	})
	fixed := time.Unix(1730000000, 0).UTC()
	srv := NewServer(Settings{MaxBodyBytes: 256}, WithBuilder(builder), WithClock(func() time.Time { return fixed }))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	post := func(payload string) (int, buildResponse) {
		t.Helper()
		resp, err := http.Post(ts.URL+"/builds", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		var out buildResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	status, resp := post(`{"score": "Etude", "request_id": "r1"}`)
	if status != http.StatusOK || resp.Report == nil || resp.Report.RunID != "run-2" || resp.RequestID != "r1" {
		t.Fatalf("unexpected build response %d %+v", status, resp)
	}
	if !resp.Received.Equal(fixed) || !seen[0].Received.Equal(fixed) {
		t.Fatalf("request not stamped with server time")
	}
	if status, resp = post(`{"score": "Broken"}`); status != http.StatusUnprocessableEntity || resp.Status != "failed" || !strings.Contains(resp.Error, "boom") {
		t.Fatalf("unexpected failure response %d %+v", status, resp)
	}
	if status, _ = post(`{"score": "Missing"}`); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown score, got %d", status)
	}
	if status, _ = post(`{"score": ""}`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing score, got %d", status)
	}
	if status, _ = post(`not json`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", status)
	}
	big := `{"score": "` + strings.Repeat("a", 512) + `"}`
	if status, _ = post(big); status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", status)
	}
	resp2, err := http.Get(ts.URL + "/builds")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp2.StatusCode)
	}

	_, health := get(t, ts.URL+"/health")
	if !strings.Contains(health, `"builds":3`) {
		t.Fatalf("expected 3 builds counted, got %s", health)
	}
}

func TestMetricsRoute(t *testing.T) {
	recorder := metrics.New()
	recorder.Observe("Etude", &segment.Stats{Commands: 3}, time.Millisecond)
	srv := NewServer(Settings{}, WithGatherer(recorder.Registry()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	status, body := get(t, ts.URL+"/metrics")
	if status != http.StatusOK || !strings.Contains(body, `scoresmith_commands_dispatched_total{score="Etude"} 3`) {
		t.Fatalf("unexpected metrics %d:\n%s", status, body)
	}
}

func TestBuildsWithoutBuilder(t *testing.T) {
	ts := httptest.NewServer(NewServer(Settings{}).Handler())
	defer ts.Close()
	resp, err := http.Post(ts.URL+"/builds", "application/json", bytes.NewReader([]byte(`{"score":"x"}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
