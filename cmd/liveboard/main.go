// Package main provides the liveboard binary entry point.
// Liveboard runs the live order board engine for one retail screen: the
// manager console or the store/kitchen display.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/primecut/liveboard/backend"
	"github.com/primecut/liveboard/config"
	"github.com/primecut/liveboard/screen"
	"github.com/primecut/liveboard/session"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "liveboard"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:   "liveboard",
		Short: "Live order board screen engine",
		Long: `Liveboard keeps one physical retail screen synchronized with the
fulfillment backend: the manager console or the store/kitchen display.

It maintains a four-lane board (new, preparing, awaiting pickup, picked up)
from authoritative snapshot fetches, reacts to push events by refetching,
and reconciles unconditionally on a fixed interval so the board converges
even when every push event is lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel, &overrides)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&overrides.Screen.Role, "role", "", "Screen role (manager or store)")
	cmd.Flags().StringVar(&overrides.Screen.ID, "screen-id", "", "Stable screen identifier (generated when empty)")
	cmd.Flags().StringVar(&overrides.Screen.StoreLabel, "store-label", "", "Store name printed on pickup tokens")
	cmd.Flags().StringVar(&overrides.Backend.URL, "backend-url", "", "Fulfillment service base URL")
	cmd.Flags().StringVar(&overrides.NATS.URL, "nats-url", "", "Push channel (NATS) URL, empty string in config disables")
	cmd.Flags().StringVar(&overrides.Session.Dir, "session-dir", "", "Directory the login flow writes tokens into")
	cmd.Flags().StringVar(&overrides.HTTP.Listen, "listen", "", "Rendering-layer listen address")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(configPath, logLevel string, overrides *config.Config) error {
	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg.Merge(overrides)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	role, err := session.ParseRole(cfg.Screen.Role)
	if err != nil {
		return err
	}

	screenID := cfg.Screen.ID
	if screenID == "" {
		screenID = fmt.Sprintf("%s-%s", role, uuid.New().String()[:8])
	}

	slog.Info("Liveboard starting",
		"version", Version,
		"role", role,
		"screen_id", screenID)

	// Credential resolution: standalone token location first, then the
	// embedded session record.
	resolver := session.DefaultResolver(cfg.Session.Dir)

	client := backend.NewClient(cfg.Backend.URL,
		func() (string, error) { return resolver.Resolve(role) },
		backend.WithLogger(logger),
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithFetchRetries(cfg.Backend.FetchRetries),
	)

	// Push channel. A failed connection degrades to reconciliation-only
	// operation rather than refusing to start.
	var conn *nats.Conn
	if cfg.NATS.URL != "" {
		conn, err = nats.Connect(cfg.NATS.URL,
			nats.Name(fmt.Sprintf("%s-%s", appName, screenID)),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			slog.Warn("Push channel unavailable, running on reconciliation alone",
				"url", cfg.NATS.URL, "error", err)
			conn = nil
		} else {
			defer conn.Close()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	component, err := screen.New(screen.Options{
		Role:                role,
		ScreenID:            screenID,
		StoreLabel:          cfg.Screen.StoreLabel,
		ReconcileInterval:   cfg.Screen.ReconcileInterval,
		PostTransitionDelay: cfg.Screen.PostTransitionDelay,
		Resolver:            resolver,
		Backend:             client,
		Conn:                conn,
		SessionDir:          cfg.Session.Dir,
		Logger:              logger,
		Registry:            registry,
	})
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := component.Start(signalCtx); err != nil {
		if errors.Is(err, session.ErrNoCredential) {
			return fmt.Errorf("no %s session credential in %s: sign in on this device first", role, cfg.Session.Dir)
		}
		return fmt.Errorf("start screen: %w", err)
	}

	// Rendering-layer HTTP surface
	mux := http.NewServeMux()
	handler := screen.NewHTTPHandler(component, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handler.RegisterHTTPHandlers(mux)

	server := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Board API listening", "addr", cfg.HTTP.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until shutdown signal or server failure
	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serverErr:
		slog.Error("Board API server failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping board API server", "error", err)
	}

	if err := component.Stop(10 * time.Second); err != nil {
		slog.Error("Error stopping screen", "error", err)
	}

	slog.Info("Liveboard shutdown complete")
	return nil
}
