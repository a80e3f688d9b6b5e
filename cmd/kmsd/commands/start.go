package commands

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shalu066900/pykms/internal/config"
	"github.com/shalu066900/pykms/internal/logger"
	promMetrics "github.com/shalu066900/pykms/internal/metrics/prometheus"
	"github.com/shalu066900/pykms/internal/server"
	"github.com/shalu066900/pykms/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the KMS host",
	Long: `Start the KMS activation host.

Examples:
  # Start with defaults (listens on :1688)
  kmsd start

  # Start with a custom config file
  kmsd start --config /etc/kmsd/kmsd.yaml

  # Override a single setting via environment variable
  KMSD_LOGGING_LEVEL=DEBUG kmsd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "kmsd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	registry := prometheus.NewRegistry()
	m := promMetrics.New(registry)
	if cfg.Metrics.Enabled {
		metricsSrv := &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}
		go func() {
			logger.Info("metrics server listening", "address", cfg.Metrics.Address)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", logger.Err(err))
			}
		}()
		go func() {
			<-ctx.Done()
			_ = metricsSrv.Shutdown(context.Background())
		}()
	}

	ident, err := cfg.BuildIdentity()
	if err != nil {
		return err
	}
	st, err := cfg.BuildStore()
	if err != nil {
		return err
	}

	srv := server.New(cfg.ToServerConfig(), ident, st, cfg.ToDispatchConfig(), m)

	logger.Info("kmsd starting", "version", Version, "commit", Commit)
	return srv.Serve(ctx)
}
