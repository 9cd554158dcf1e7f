package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"symcheck/internal/config"
	"symcheck/internal/logging"
	serverhttp "symcheck/internal/server/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *rootFlags) *cobra.Command {
	var (
		addr  string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the screening API over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, meta, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg, meta.ConfigFile, debug)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, configFile string, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	container, err := buildContainer(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := container.Cleanup(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Cleanup error: %v\n", err)
		}
	}()
	if configFile != "" {
		container.Logger.Info("Using config file %s", configFile)
	}

	if cfg.Observability.Metrics.Enabled {
		container.Obs.Metrics.StartPrometheusServer(cfg.Observability.Metrics.PrometheusPort)
	}

	serverCfg := serverhttp.DefaultConfig()
	serverCfg.Addr = cfg.Server.Addr
	serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	serverCfg.SweepInterval = cfg.Session.SweepInterval
	serverCfg.Debug = debug
	serverCfg.Version = appVersion()

	srv, err := serverhttp.NewServer(serverCfg, serverhttp.Dependencies{
		Processor: container.Engine,
		Sessions:  container.Sessions,
		Evaluator: container.Evaluator,
		Reports:   container.Reports,
		Metrics:   container.Obs.Metrics,
		Tracer:    container.Obs.Tracer,
		Logger:    logging.NewComponentLogger("server"),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		container.Logger.Info("Received %s, shutting down", sig)
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
