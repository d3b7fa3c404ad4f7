package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"golddust/internal/config"
	"golddust/internal/health"
	"golddust/internal/history"
	"golddust/internal/report"
	"golddust/internal/router"
	"golddust/internal/server"
)

// errNoBackend makes `route` exit non-zero after printing its result
var errNoBackend = errors.New("no backend available")

// app holds state shared by all subcommands
type app struct {
	configPath string
	envFile    string
	logLevel   string
	output     string

	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:           "golddust",
		Short:         "Gold Dust VPN: Oxen-first, Tor-fallback routing control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultConfigPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Optional .env file with GOLDDUST_* overrides")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend health and enabled state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd.Context())
		},
	}
	statusCmd.Flags().StringVarP(&a.output, "output", "o", string(report.FormatText), "Output format (text, json, yaml)")

	routeCmd := &cobra.Command{
		Use:   "route <host:port>",
		Short: "Decide how a given target would be routed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRoute(cmd.Context(), args[0])
		},
	}
	routeCmd.Flags().StringVarP(&a.output, "output", "o", string(report.FormatText), "Output format (text, json, yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control service (HTTP API and status stream)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe()
		},
	}

	rootCmd.AddCommand(statusCmd, routeCmd, serveCmd)
	return rootCmd
}

// init loads env files and config, then sets up logging
func (a *app) init() error {
	if err := config.LoadEnvFiles(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		level := strings.ToLower(a.logLevel)
		if err := config.ValidateLogLevel(level); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.LogLevel = level
	}

	a.cfg = cfg
	a.logger = setupLogger(cfg.LogLevel)
	a.logger.Debug().
		Str("config", a.configPath).
		Bool("primaryEnabled", cfg.Backends.PrimaryEnabled).
		Bool("fallbackEnabled", cfg.Backends.FallbackEnabled).
		Str("healthMode", string(cfg.Health.Mode)).
		Msg("config loaded")
	return nil
}

// newProvider builds the configured provider; a monitor is returned as well when in monitor mode
func (a *app) newProvider() (health.Provider, *health.Monitor, error) {
	if !a.cfg.IsMonitorEnabled() {
		return health.NewStaticProvider(nil), nil, nil
	}
	m, err := health.NewMonitor(nil, health.CatalogProber{}, a.cfg.Health, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create health monitor: %w", err)
	}
	return m, m, nil
}

// oneShotRouter builds a router for a single command; a monitor is probed once first
func (a *app) oneShotRouter(ctx context.Context) (*router.Router, error) {
	provider, monitor, err := a.newProvider()
	if err != nil {
		return nil, err
	}
	if monitor != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		monitor.ProbeOnce(ctx)
	}
	return router.New(a.cfg.Backends, provider, a.logger), nil
}

func (a *app) runStatus(ctx context.Context) error {
	format, err := report.ParseFormat(a.output)
	if err != nil {
		return err
	}

	rt, err := a.oneShotRouter(ctx)
	if err != nil {
		return err
	}

	snap, err := rt.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	return report.WriteStatus(a.out, format, snap)
}

func (a *app) runRoute(ctx context.Context, target string) error {
	format, err := report.ParseFormat(a.output)
	if err != nil {
		return err
	}

	rt, err := a.oneShotRouter(ctx)
	if err != nil {
		return err
	}

	choice, chooseErr := rt.ChooseBackend(target)
	if err := report.WriteRoute(a.out, format, target, choice, chooseErr); err != nil {
		return err
	}
	if errors.Is(chooseErr, router.ErrNoBackendAvailable) {
		return errNoBackend
	}
	return chooseErr
}

func (a *app) runServe() error {
	provider, monitor, err := a.newProvider()
	if err != nil {
		return err
	}

	hist, err := history.New(a.cfg.Server.HistorySize, a.cfg.Server.HistoryTTL)
	if err != nil {
		return fmt.Errorf("failed to create decision history: %w", err)
	}
	defer hist.Close()

	a.logger.Info().
		Str("config", a.configPath).
		Str("host", a.cfg.Server.Host).
		Int("port", a.cfg.Server.Port).
		Bool("primaryEnabled", a.cfg.Backends.PrimaryEnabled).
		Bool("fallbackEnabled", a.cfg.Backends.FallbackEnabled).
		Str("healthMode", string(a.cfg.Health.Mode)).
		Msg("starting Gold Dust control plane")

	if monitor != nil {
		monitor.Start()
		defer monitor.Stop()
	}

	rt := router.New(a.cfg.Backends, provider, a.logger)
	srv := server.New(a.cfg, rt, hist, monitor, a.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	a.logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Stop(ctx)
}
