package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/scadad/internal/browse"
	"github.com/fyrsmithlabs/scadad/internal/channel"
	"github.com/fyrsmithlabs/scadad/internal/config"
	"github.com/fyrsmithlabs/scadad/internal/logging"
	mcpsrv "github.com/fyrsmithlabs/scadad/internal/mcp"
	"github.com/fyrsmithlabs/scadad/internal/ops"
	"github.com/fyrsmithlabs/scadad/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scadad MCP server on stdio",
	Long: `Start the scadad daemon. The MCP protocol is served on stdin/stdout
(logs go to stderr), the ops endpoints (/healthz, /status, /metrics) on the
configured HTTP port, and peripheral drivers are reached over the configured
channel transport.

Examples:
  # Start with the default config file
  scadad serve

  # Start with an explicit config file
  scadad serve --config /etc/scadad/config.yaml

  # Start against a simulated in-process driver
  CHANNEL_MODE=memory scadad serve`,
	RunE: runServe,
	// Config errors are already self-explanatory, skip the usage dump
	SilenceUsage: true,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting scadad",
		zap.String("version", version),
		zap.String("channel_mode", cfg.Channel.Mode),
		zap.Int("ops_port", cfg.Server.Port))

	tcfg := telemetry.NewDefaultConfig()
	tcfg.Enabled = cfg.Observability.EnableTelemetry
	tcfg.ServiceName = cfg.Observability.ServiceName
	tcfg.ServiceVersion = version
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		tcfg.Endpoint = ep
	}
	tel, err := telemetry.New(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
		}
	}()
	if tel.IsEnabled() {
		logger.Info(ctx, "telemetry enabled", zap.String("endpoint", tcfg.Endpoint))
	}

	ch, closeChannel, err := openChannel(cfg, logger)
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer closeChannel()

	svc, err := browse.NewService(ch, &cfg.Browse, logger.Named("browse").Underlying(),
		browse.WithMetrics(browse.NewMetrics(logger.Named("browse").Underlying())))
	if err != nil {
		return fmt.Errorf("init browse service: %w", err)
	}

	// Registry changes from the provisioning layer drop the affected
	// connection's cached browse results.
	if natsCh, ok := ch.(*channel.NATS); ok {
		regSub, err := natsCh.WatchAllRegistries(func(connectionID string) {
			svc.Invalidate(connectionID)
		})
		if err != nil {
			return fmt.Errorf("watch registries: %w", err)
		}
		defer regSub.Unsubscribe()
	}

	opsServer, err := ops.NewServer(logger.Named("ops").Underlying(), &ops.Config{
		Host:    "localhost",
		Port:    cfg.Server.Port,
		Name:    cfg.Observability.ServiceName,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("init ops server: %w", err)
	}

	// Ops endpoints are supervision plumbing; a bind failure should not
	// take down the MCP surface.
	go func() {
		if err := opsServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "ops server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "ops server shutdown failed", zap.Error(err))
		}
	}()

	mcpServer, err := mcpsrv.NewServer(&mcpsrv.Config{
		Name:    cfg.Observability.ServiceName,
		Version: version,
		Logger:  logger.Named("mcp").Underlying(),
	}, svc)
	if err != nil {
		return fmt.Errorf("init mcp server: %w", err)
	}

	// Blocks until the client disconnects or a signal cancels ctx
	if err := mcpServer.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	logger.Info(ctx, "scadad shutdown complete")
	return nil
}

// openChannel builds the peripheral channel for the configured mode and
// returns it with its cleanup function.
func openChannel(cfg *config.Config, logger *logging.Logger) (channel.Channel, func(), error) {
	switch cfg.Channel.Mode {
	case config.ChannelModeMemory:
		// Simulated in-process drivers, no external transport
		return channel.NewMemory(), func() {}, nil
	case config.ChannelModeNATS:
		natsCh, err := channel.Dial(&cfg.Channel.NATS, logger.Named("channel").Underlying())
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := natsCh.Close(); err != nil {
				logger.Warn(context.Background(), "channel close failed", zap.Error(err))
			}
		}
		return natsCh, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown channel mode: %q", cfg.Channel.Mode)
	}
}
