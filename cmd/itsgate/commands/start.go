package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shmkit/itsgate/internal/logger"
	"github.com/shmkit/itsgate/pkg/config"
	"github.com/shmkit/itsgate/pkg/gateway"
	"github.com/shmkit/itsgate/pkg/metrics"
	metricsprom "github.com/shmkit/itsgate/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the itsgate server",
	Long: `Start the gateway with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/itsgate/config.yaml.

Examples:
  # Start with default config location
  itsgate start

  # Start with custom config
  itsgate start --config /etc/itsgate/config.yaml

  # Override settings through the environment
  ITSGATE_LOGGING_LEVEL=DEBUG itsgate start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics come up before anything that records into them.
	var gwMetrics metrics.GatewayMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		gwMetrics = metricsprom.NewGatewayMetrics()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	instances, closeStores, err := openInstances(cfg)
	if err != nil {
		return err
	}
	defer closeStores()
	for selector, inst := range instances {
		logger.Info("instance configured",
			"its", selector,
			"tsdb_host", inst.TimeSeries.Host,
			"tsdb_bucket", inst.TimeSeries.Bucket)
	}

	sessions := gateway.NewSessionTable(gwMetrics)
	dispatcher := gateway.NewDispatcher(instances, gwMetrics)

	server, err := gateway.NewServer(gateway.Config{
		Host:               cfg.Gateway.Host,
		Port:               cfg.Gateway.Port,
		CertFile:           cfg.Gateway.CertFile,
		KeyFile:            cfg.Gateway.KeyFile,
		SessionLogInterval: cfg.Gateway.SessionLogInterval,
	}, dispatcher, sessions, gwMetrics)
	if err != nil {
		return err
	}

	var metricsErr <-chan error
	if metricsServer != nil {
		metricsErr = metricsServer.Start()
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Serve(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("gateway is running, press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverDone:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case err := <-metricsErr:
		if err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	server.Stop()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
	if err := <-serverDone; err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}
	logger.Info("gateway stopped")
	return nil
}
