package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bweblog/bweblog/pkg/admin"
	"github.com/bweblog/bweblog/pkg/config"
	"github.com/bweblog/bweblog/pkg/logging"
	"github.com/bweblog/bweblog/pkg/metrics"
	"github.com/bweblog/bweblog/pkg/weblog"
)

// shutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
const shutdownTimeout = 15 * time.Second

var serveFlags struct {
	configPath string
	listen     string
	logDir     string
	logLevel   string
	logFormat  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the instrumented server (foreground)",
	Long: `Start the HTTP server with every route wrapped by the request
interceptor and the /bweb-log management endpoints mounted on the same
listener. Reporters named under reporters.enabled in the config file are
enabled at startup; runtime toggles are not persisted.`,
	Example: `  # Start with defaults on :8080
  bweblogd serve

  # Start from a config file
  bweblogd serve --config bweblog.yaml

  # Override the listen address and log directory
  bweblogd serve --listen :3000 --log-dir /var/log/bweblog`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.configPath, "config", "c", "", "Path to YAML config file")
	serveCmd.Flags().StringVar(&serveFlags.listen, "listen", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.logDir, "log-dir", "", "Reporter log directory (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&serveFlags.logFormat, "log-format", "", "Log format: text or json")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.ParseFormat(cfg.Logging.Format),
	})

	reg := weblog.NewRegistry(log)
	reg.SetErrorHandler(func(repErr *weblog.ReporterError) {
		log.Error("reporter error", "reporter", repErr.ID, "error", repErr.Err)
		metrics.ObserveReporterError(repErr.ID)
	})

	if err := registerReporters(reg, log, cfg); err != nil {
		return err
	}
	for _, id := range cfg.Reporters.Enabled {
		if err := reg.Enable(id, nil); err != nil {
			return fmt.Errorf("enable reporter %q: %w", id, err)
		}
		log.Info("reporter enabled", "reporter", id)
	}

	interceptor := weblog.NewInterceptor(reg, log)

	mux := http.NewServeMux()
	registerDemoRoutes(mux, interceptor)
	admin.New(reg, log).Routes(mux)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Listen, "logDir", cfg.LogDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}

	if err := reg.CloseAll(); err != nil {
		log.Warn("reporter close failed", "error", err)
	}
	return nil
}

// loadServeConfig loads the config file (or defaults) and overlays the
// serve flags.
func loadServeConfig() (*config.Config, error) {
	cfg := config.Default()
	if serveFlags.configPath != "" {
		loaded, err := config.Load(serveFlags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if serveFlags.listen != "" {
		cfg.Listen = serveFlags.listen
	}
	if serveFlags.logDir != "" {
		cfg.LogDir = serveFlags.logDir
	}
	if serveFlags.logLevel != "" {
		cfg.Logging.Level = serveFlags.logLevel
	}
	if serveFlags.logFormat != "" {
		cfg.Logging.Format = serveFlags.logFormat
	}
	return cfg, cfg.Validate()
}

// registerReporters registers the built-in reporters, overlaying each
// one's defaults with the per-reporter options from the config file.
func registerReporters(reg *weblog.Registry, log *slog.Logger, cfg *config.Config) error {
	builtins := []struct {
		id       string
		factory  weblog.Factory
		defaults map[string]any
	}{
		{
			id:       "console",
			factory:  func() weblog.Reporter { return weblog.NewConsoleReporter(log) },
			defaults: weblog.DefaultConsoleConfig(),
		},
		{
			id: "file",
			factory: func() weblog.Reporter {
				return weblog.NewFileReporter(filepath.Join(cfg.LogDir, "http.log"))
			},
			defaults: weblog.DefaultFileConfig(),
		},
		{
			id: "events",
			factory: func() weblog.Reporter {
				return weblog.NewEventsReporter(filepath.Join(cfg.LogDir, "events.log"))
			},
			defaults: weblog.DefaultEventsConfig(),
		},
	}

	for _, b := range builtins {
		defaults := b.defaults
		for k, v := range cfg.Reporters.Options[b.id] {
			defaults[k] = v
		}
		if err := reg.Register(b.id, b.factory, defaults); err != nil {
			return err
		}
	}
	return nil
}
