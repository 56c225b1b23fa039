// Package commands implements CLI command handlers for rbslot.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbslot/pkg/config"
	"github.com/Sumatoshi-tech/rbslot/pkg/observability"
	"github.com/Sumatoshi-tech/rbslot/pkg/version"
)

const (
	flagConfig  = "config"
	flagVerbose = "verbose"
	flagQuiet   = "quiet"
)

const (
	metricsReadTimeout  = 5 * time.Second
	metricsWriteTimeout = 10 * time.Second
	metricsIdleTimeout  = 60 * time.Second
)

// AddGlobalFlags registers the flags shared by every subcommand.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(flagConfig, "", "Config file (default: ./rbslot.yaml, ./config/rbslot.yaml, /etc/rbslot/rbslot.yaml)")
	cmd.PersistentFlags().BoolP(flagVerbose, "v", false, "verbose output")
	cmd.PersistentFlags().BoolP(flagQuiet, "q", false, "suppress output")
}

// loadConfig reads the config file named by --config, if the flag exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := ""
	if flag := cmd.Flags().Lookup(flagConfig); flag != nil {
		path = flag.Value.String()
	}

	return config.LoadConfig(path)
}

func boolFlag(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)

	return err == nil && value
}

// telemetry bundles the providers and the optional metrics endpoint of one command run.
type telemetry struct {
	providers observability.Providers
	metrics   *observability.TreeMetrics
	server    *http.Server
}

func startTelemetry(cmd *cobra.Command, cfg *config.Config, mode observability.AppMode) (*telemetry, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch {
	case boolFlag(cmd, flagVerbose):
		level = slog.LevelDebug
	case boolFlag(cmd, flagQuiet):
		level = slog.LevelWarn
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.Prometheus = cfg.Observability.MetricsAddr != ""
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogOutput = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	tel := &telemetry{providers: providers}

	tel.metrics, err = observability.NewTreeMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	if providers.MetricsHandler != nil {
		err = tel.serveMetrics(cfg.Observability.MetricsAddr)
		if err != nil {
			return nil, errors.Join(err, providers.Shutdown(context.Background()))
		}
	}

	return tel, nil
}

func (tel *telemetry) serveMetrics(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on metrics address: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", tel.providers.MetricsHandler)

	tel.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  metricsReadTimeout,
		WriteTimeout: metricsWriteTimeout,
		IdleTimeout:  metricsIdleTimeout,
	}

	tel.providers.Logger.Info("serving metrics", "addr", listener.Addr().String())

	go func() {
		serveErr := tel.server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			tel.providers.Logger.Error("metrics server failed", "error", serveErr)
		}
	}()

	return nil
}

func (tel *telemetry) close(ctx context.Context) {
	if tel.server != nil {
		err := tel.server.Shutdown(ctx)
		if err != nil {
			tel.providers.Logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	err := tel.providers.Shutdown(ctx)
	if err != nil {
		tel.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
