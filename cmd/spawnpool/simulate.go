package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/internal/simulation"
	"github.com/ajitpratap0/spawnpool/pkg/config"
	"github.com/ajitpratap0/spawnpool/pkg/logger"
	"github.com/ajitpratap0/spawnpool/pkg/metrics"
	"github.com/ajitpratap0/spawnpool/pkg/observability"
)

func newSimulateCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SPAWNPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a spawn/return simulation and print its report",
		Long: `Run a deterministic frame loop that spawns and returns instances of every
configured prototype, then print a JSON report of pool usage.

Settings are resolved from flags, then SPAWNPOOL_* environment variables, then
the config file, then defaults.

Example:
  spawnpool simulate --config spawnpool.yaml --frames 600 --trace`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(v)
			if err != nil {
				return err
			}
			return runSimulation(cmd, cfg, v.GetDuration("timeout"))
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Path to YAML configuration file")
	flags.Int("frames", 0, "Number of frames to simulate")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("trace", false, "Export a span per frame to stderr")
	flags.Bool("strict-release", false, "Reject releasing an instance that is already free")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	flags.Duration("timeout", 0, "Abort the simulation after this long (0 disables)")
	_ = v.BindPFlags(flags)

	return cmd
}

// resolveConfig layers explicitly set flags and environment variables over
// the config file.
func resolveConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.NewDefault()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v.IsSet("frames") {
		cfg.Simulation.Frames = v.GetInt("frames")
	}
	if v.IsSet("log-level") {
		cfg.Log.Level = v.GetString("log-level")
	}
	if v.IsSet("trace") {
		cfg.Tracing.Enabled = v.GetBool("trace")
	}
	if v.IsSet("strict-release") {
		cfg.Spawner.StrictRelease = v.GetBool("strict-release")
	}
	if v.IsSet("metrics-addr") {
		cfg.Metrics.ListenAddr = v.GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, cfg *config.Config, timeout time.Duration) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := logger.Init(cfg.Log.LoggerConfig()); err != nil {
		return err
	}
	ctx = context.WithValue(ctx, logger.RunIDKey, fmt.Sprintf("%s-%d", cfg.Name, time.Now().UnixNano()))
	ctx = context.WithValue(ctx, logger.SpawnerKey, cfg.Spawner.RootName)
	log := logger.WithContext(ctx)

	provider, err := observability.Init(cfg.Tracing, observability.Options{
		Version: version,
		Writer:  cmd.ErrOrStderr(),
		Logger:  log,
		Global:  true,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, provider.Shutdown(shutdownCtx))
	}()

	opts := []simulation.Option{
		simulation.WithLogger(log),
		simulation.WithTracer(provider.Tracer()),
		simulation.WithMeter(provider.Meter()),
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, simulation.WithObserver(metrics.NewPoolCollector(reg, cfg.Metrics.Namespace)))

		if cfg.Metrics.ListenAddr != "" {
			stop, err := serveMetrics(cfg.Metrics.ListenAddr, reg, log)
			if err != nil {
				return err
			}
			defer stop()
		}
	}

	runner, err := simulation.NewRunner(cfg, opts...)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	counters, err := provider.Counters(ctx)
	if err != nil {
		return err
	}
	log.Info("run metrics collected",
		zap.Int64("frames", counters["spawnpool.frames"]),
		zap.Int("peak_active", report.PeakActive))

	return report.WriteJSON(cmd.OutOrStdout())
}

// serveMetrics exposes reg on addr until the returned stop function runs.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
