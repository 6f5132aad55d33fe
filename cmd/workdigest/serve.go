package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/workdigest/internal/aggregate"
	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/notify"
	"github.com/goodtune/workdigest/internal/schedule"
	"github.com/goodtune/workdigest/internal/server"
	"github.com/goodtune/workdigest/internal/systemd"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the daily aggregation scheduler",
	Long: `Serve exposes /metrics, /health, /features/{date} and /reports/{date}, and
aggregates the current day at schedule.run_at. SIGHUP triggers an immediate
aggregation run.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// invalidatingRunner drops the cached summary once a day is re-aggregated.
type invalidatingRunner struct {
	*aggregate.Service
	srv *server.Server
}

func (r invalidatingRunner) AggregateAndSave(ctx context.Context, date string) (*domain.Features, string, error) {
	features, location, err := r.Service.AggregateAndSave(ctx, date)
	if err == nil {
		r.srv.Invalidate(date)
	}
	return features, location, err
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting workdigest")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	svc, err := a.aggregator()
	if err != nil {
		return err
	}

	// Initialize HTTP server
	addr := a.cfg.Server.Address()
	srv, err := server.NewServer(addr, a.store, nil, a.cfg.Cache.FeaturesSize, logger)
	if err != nil {
		return err
	}
	if sdListeners.Activated && sdListeners.HTTP != nil {
		srv.SetListener(sdListeners.HTTP)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// Initialize scheduler
	scheduler, err := schedule.New(
		invalidatingRunner{Service: svc, srv: srv},
		notify.New(a.cfg.Notify, logger),
		a.cfg.Schedule.RunAt,
		nil,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	if a.cfg.Schedule.Enabled {
		scheduler.Start()
	} else {
		logger.Info().Msg("Daily aggregation schedule disabled")
	}

	logger.Info().Msgf("Metrics: http://%s/metrics", addr)
	logger.Info().Msg("workdigest startup complete")

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	var watchdog <-chan time.Time
	if interval, err := systemd.WatchdogInterval(); err != nil {
		logger.Warn().Err(err).Msg("Failed to read systemd watchdog settings")
	} else if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		watchdog = ticker.C
		logger.Info().Dur("interval", interval).Msg("systemd watchdog enabled")
	}

	// Wait for signals (shutdown or manual run)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

loop:
	for {
		select {
		case <-watchdog:
			if err := systemd.NotifyWatchdog(); err != nil {
				logger.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
			}
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				logger.Info().Msg("SIGHUP received, running aggregation now")
				_ = scheduler.RunOnce(cmd.Context())
				continue
			}
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			break loop
		}
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if a.cfg.Schedule.Enabled {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Error stopping HTTP server")
	}

	logger.Info().Msg("workdigest stopped")
	return nil
}
