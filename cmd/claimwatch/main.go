// Package main provides the claimwatch binary entry point.
// Claimwatch watches a stream of knowledge-graph edits and reports
// property-constraint violations newly introduced by each edit burst.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/claimwatch/config"
	constraintmonitor "github.com/c360studio/claimwatch/processor/constraint-monitor"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "claimwatch"
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
	)

	cmd := &cobra.Command{
		Use:   "claimwatch",
		Short: "Knowledge-graph constraint monitor",
		Long: `Claimwatch consumes entity edit events from NATS JetStream, collapses
same-session edits into bursts, evaluates the property constraints
touched by each burst against the wiki's constraint catalog and
publishes a report for newly introduced violations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	cmd.AddCommand(checkCmd(&configPath, &logLevel))

	return cmd
}

func run(configPath, logLevel string) error {
	logger := setupLogger(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Connect to NATS
	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	// Build the processor config from the loaded file config.
	monitorConfig := map[string]any{
		"stream_name":       cfg.Monitor.Stream,
		"consumer_name":     cfg.Monitor.Consumer,
		"api_url":           cfg.Wikibase.APIURL,
		"sparql_url":        cfg.Wikibase.SPARQLURL,
		"user_agent":        cfg.Wikibase.UserAgent,
		"request_timeout":   cfg.Wikibase.Timeout.String(),
		"constraint_ttl":    cfg.Store.TTL.String(),
		"session_window":    cfg.Monitor.SessionWindow.String(),
		"flush_interval":    cfg.Monitor.FlushInterval.String(),
		"lookup_cache_size": cfg.Store.LookupCacheSize,
		"report_all":        cfg.Monitor.ReportAll,
	}
	rawConfig, err := json.Marshal(monitorConfig)
	if err != nil {
		return fmt.Errorf("marshal monitor config: %w", err)
	}

	deps := component.Dependencies{
		Logger:     logger,
		NATSClient: natsClient,
	}
	discoverable, err := constraintmonitor.NewComponent(rawConfig, deps)
	if err != nil {
		return fmt.Errorf("create constraint-monitor: %w", err)
	}
	monitor := discoverable.(*constraintmonitor.Component)

	if err := monitor.Initialize(); err != nil {
		return fmt.Errorf("initialize constraint-monitor: %w", err)
	}

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := monitor.Start(signalCtx); err != nil {
		return fmt.Errorf("start constraint-monitor: %w", err)
	}

	logger.Info("Claimwatch ready",
		"version", Version,
		"stream", cfg.Monitor.Stream,
		"api_url", cfg.Wikibase.APIURL)

	// Block until shutdown signal
	<-signalCtx.Done()
	logger.Info("Received shutdown signal")

	if err := monitor.Stop(30 * time.Second); err != nil {
		logger.Error("Error stopping constraint-monitor", "error", err)
	}

	logger.Info("Claimwatch shutdown complete")
	return nil
}

func setupLogger(logLevel string) *slog.Logger {
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
	return logger
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.NewLoader(logger).Load()
}

func connectToNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	natsURL := cfg.NATS.URL

	// Environment variable override takes precedence
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		natsURL = envURL
	}

	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}
