package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/scoresmith/internal/config"
	"github.com/kingrea/scoresmith/internal/logbook"
	"github.com/kingrea/scoresmith/internal/logging"
	"github.com/kingrea/scoresmith/internal/metrics"
	"github.com/kingrea/scoresmith/internal/score"
	"github.com/kingrea/scoresmith/internal/server"
	"github.com/kingrea/scoresmith/internal/store"
)

// newBuildHandler resolves requested scores against the project config on
// every request, so edits to definitions are picked up without a restart.
func newBuildHandler(cfg *config.Config, builder *score.Builder, recorder *metrics.Recorder, log *logging.Logger) server.BuilderFunc {
	return func(ctx context.Context, req server.BuildRequest) (*score.Report, error) {
		if _, ok := cfg.Score(req.Score); !ok {
			return nil, fmt.Errorf("%w %q", server.ErrUnknownScore, req.Score)
		}
		defs, err := loadScores(cfg, []string{req.Score})
		if err != nil {
			return nil, err
		}
		var report *score.Report
		if req.Segment != "" {
			report, err = builder.BuildSegment(ctx, defs[0], req.Segment)
		} else {
			report, err = builder.Build(ctx, defs[0])
		}
		if exportErr := recorder.WriteTextfile(cfg.MetricsPath()); exportErr != nil {
			log.Printf("export metrics: %v", exportErr)
		}
		return report, err
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	settings := server.SettingsFromConfig(cfg)
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("--addr: %w", err)
		}
		settings.Host = host
		if settings.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("--addr: bad port %q", port)
		}
		settings.Enabled = true
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return err
	}
	repo := store.NewRepository(cfg.OutputDir())
	recorder := metrics.New()
	builder := score.NewBuilder(
		score.WithStore(repo),
		score.WithJournal(journal),
		score.WithMetrics(recorder),
		score.WithDefaults(cfg.Project.Defaults),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(settings,
		server.WithBuilder(newBuildHandler(cfg, builder, recorder, logger.WithPrefix("serve"))),
		server.WithCatalog(repo),
		server.WithGatherer(recorder.Registry()),
		server.WithLogger(logger.WithPrefix("serve")),
	)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s (Ctrl-C to stop)\n", cfg.ProjectDir, srv.BaseURL())
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
