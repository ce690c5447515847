// Package main provides the entry point for the practice server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sipico/practice-server/internal/client"
	"github.com/sipico/practice-server/internal/config"
	"github.com/sipico/practice-server/internal/metrics"
	"github.com/sipico/practice-server/internal/server"
)

const version = "0.1.0"

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := newRootCmd(os.Stdout, os.Stderr)
	cmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) //nolint:errcheck
		os.Exit(1)
	}
}

// normalizeArgs accepts the single-dash -dev switch older launch scripts use.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "-dev" {
			a = "--dev"
		}
		out[i] = a
	}
	return out
}

type serveFlags struct {
	dev      bool
	adminDir string
}

// newRootCmd builds the command tree. Running the root command serves.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags serveFlags

	runServe := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, flags)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, stderr)
	}

	root := &cobra.Command{
		Use:           "practice-server",
		Short:         "REST practice server with users, collections and access rules",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVar(&flags.dev, "dev", false, "Serve the admin panel from disk")
	root.PersistentFlags().StringVar(&flags.adminDir, "admin-dir", config.DefaultAdminDir, "Admin panel directory used with --dev")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the server (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})
	root.AddCommand(newHealthCmd())

	return root
}

func newHealthCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a running server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client.New(
				client.WithBaseURL(url),
				client.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
			)
			if err := c.Health(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "unhealthy: %v\n", err) //nolint:errcheck
				return errors.New("server is not healthy")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy") //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", defaultHealthURL(), "Server base URL")
	return cmd
}

func defaultHealthURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = fmt.Sprint(config.DefaultPort)
	}
	return "http://localhost:" + port
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig(cmd *cobra.Command, flags serveFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.dev {
		cfg.DevMode = true
	}
	if cmd.Flags().Changed("admin-dir") {
		cfg.AdminDir = flags.adminDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg *config.Config, w io.Writer, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// serve listens on the configured address and blocks until ctx is done.
func serve(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	return run(ctx, cfg, ln, logOut)
}

// run serves on ln until ctx is done, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, ln net.Listener, logOut io.Writer) error {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.LogLevel))
	logger := newLogger(cfg, logOut, level)
	slog.SetDefault(logger)

	metrics.Version = version
	reg := prometheus.NewRegistry()
	if err := metrics.Init(reg); err != nil {
		//nolint:errcheck
		ln.Close()
		return fmt.Errorf("init metrics: %w", err)
	}

	app, err := server.New(cfg,
		server.WithLogger(logger),
		server.WithLogLevel(level),
		server.WithRegisterer(reg),
	)
	if err != nil {
		//nolint:errcheck
		ln.Close()
		return err
	}

	servers := []*http.Server{{
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
	listeners := []net.Listener{ln}

	if cfg.MetricsListenAddr != "" {
		mln, err := net.Listen("tcp", cfg.MetricsListenAddr)
		if err != nil {
			//nolint:errcheck
			ln.Close()
			return fmt.Errorf("listen on %s: %w", cfg.MetricsListenAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HandlerFor(reg))
		servers = append(servers, &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
		listeners = append(listeners, mln)
		logger.Info("metrics listener started", "addr", mln.Addr().String())
	}

	errc := make(chan error, len(servers))
	for i, srv := range servers {
		go func() {
			if err := srv.Serve(listeners[i]); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	logger.Info("practice server started",
		"version", version,
		"addr", ln.Addr().String(),
		"services", app.Services(),
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errc:
		logger.Error("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
	logger.Info("practice server stopped")
	return serveErr
}
