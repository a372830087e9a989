// Package main is the entry point for the consoled binary, the console
// gateway server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowmatic/console/pkg/authz"
	"github.com/flowmatic/console/pkg/config"
	"github.com/flowmatic/console/pkg/logging"
	"github.com/flowmatic/console/pkg/panel"
	"github.com/flowmatic/console/pkg/server"
	"github.com/flowmatic/console/pkg/telemetry"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for consoled.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "consoled",
		Short: "Console gateway for plugin menus and gated dashboard panels",
		Long: `consoled serves the web console's UI configuration: the navigation menu
aggregated from plugin manifests and dashboard panels gated by the
caller's authorized-menu set.

Plugin manifests are watched for changes and reloaded live; entitlement
is decided by an embedded OPA policy that deployments can override.

Example:
  consoled --config /etc/console/config.yaml`,
		RunE: runServer,
	}

	rootCmd.Flags().StringP("config", "c", defaultConfigPath, "Path to configuration file (YAML)")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level override (debug, info, warn, error)")
	rootCmd.Flags().Bool("pretty", false, "Enable pretty console logging")

	return rootCmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	prettyLogs, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return fmt.Errorf("failed to get pretty flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: prettyLogs || cfg.Logging.Pretty,
	})
	slog.SetDefault(logger)

	logger.Info("Starting consoled", "config", configPath, "addr", cfg.Server.Address)

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "consoled",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Error("Telemetry shutdown failed", "error", err)
		}
	}()

	provider, err := config.NewFileMenuProvider(cfg.Menu, logger)
	if err != nil {
		return fmt.Errorf("menu provider: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Error("Failed to close menu provider", "error", err)
		}
	}()

	engine, err := buildAuthzEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("authz engine: %w", err)
	}

	panels := panel.NewRegistry()
	if err := panels.Register(panel.Panel{Name: "stats", Permission: "Stats", Source: panel.StatsSource(provider)}); err != nil {
		return err
	}
	if err := panels.Register(panel.Panel{Name: "config", Permission: "Config", Source: panel.ConfigSource(cfg)}); err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Config:   cfg,
		Provider: provider,
		Authz:    engine,
		Panels:   panels,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	go watchManifests(ctx, provider, logger)

	httpServer := &http.Server{
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("bind %s: %w", cfg.Server.Address, err)
	}
	logger.Info("Server listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	return nil
}

// buildAuthzEngine loads the configured policy file, falling back to the
// embedded default grants.
func buildAuthzEngine(ctx context.Context, cfg *config.Config) (*authz.Engine, error) {
	opts := authz.Options{
		Entrypoint:      cfg.Authz.Entrypoint,
		CacheMaxEntries: cfg.Authz.CacheMaxEntries,
	}

	if cfg.Authz.PolicyFile != "" {
		//nolint:gosec // Policy file path is controlled by admin/operator
		source, err := os.ReadFile(cfg.Authz.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("read policy file %s: %w", cfg.Authz.PolicyFile, err)
		}
		opts.Module = string(source)
		opts.ModuleName = cfg.Authz.PolicyFile
		opts.Revision = fmt.Sprintf("file:%s", cfg.Authz.PolicyFile)
	}

	return authz.NewEngine(ctx, opts)
}

func watchManifests(ctx context.Context, provider config.MenuProvider, logger *slog.Logger) {
	updates := provider.Subscribe()
	// The first delivery is the snapshot current at subscribe time.
	initial, ok := <-updates
	if !ok {
		return
	}
	logger.Info("Menu configuration loaded", "generation", initial.Generation)

	for snapshot := range updates {
		logger.Info("Menu configuration update received", "generation", snapshot.Generation)
		telemetry.RecordManifestReload(ctx, snapshot.Generation)
	}
}
