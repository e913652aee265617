// Piiguardd serves PII validation over HTTP.
//
// Configuration comes from an optional YAML file and PIIGUARD_*
// environment variables. See internal/config for the keys.
//
// Usage:
//
//	# Start with defaults (Presidio on localhost:5002 and :5001)
//	piiguardd
//
//	# Offline detectors, custom port
//	PIIGUARD_DETECTOR_PROVIDER=local PIIGUARD_SERVER_PORT=9000 piiguardd
//
//	piiguardd -config /etc/piiguard/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/piiguard/internal/config"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	piihttp "github.com/fyrsmithlabs/piiguard/internal/http"
	"github.com/fyrsmithlabs/piiguard/internal/logging"
	"github.com/fyrsmithlabs/piiguard/internal/metrics"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
	"github.com/fyrsmithlabs/piiguard/internal/telemetry"
	"github.com/fyrsmithlabs/piiguard/internal/validator"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("PIIGUARD_CONFIG"), "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  piiguardd [-config file]   Start the validation server\n")
			fmt.Fprintf(os.Stderr, "  piiguardd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("piiguardd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the server and blocks until ctx is cancelled:
//  1. configuration
//  2. telemetry and logger
//  3. entity table and collaborators
//  4. validators and metrics
//  5. HTTP server, then graceful shutdown
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Observability, version))
	if err != nil {
		return err
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting piiguardd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Detector.Provider),
		zap.String("mode", cfg.Validation.Mode),
		zap.Bool("telemetry", cfg.Observability.EnableTelemetry),
	)
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	resolver, err := initResolver(cfg.Entities)
	if err != nil {
		return err
	}

	collab, err := detector.NewCollaborators(cfg.Detector)
	if err != nil {
		return fmt.Errorf("failed to initialize collaborators: %w", err)
	}

	reg := metrics.NewRegistry()
	suite, err := validator.NewSuite(collab.Analyzer, collab.Anonymizer,
		validator.WithLanguage(cfg.Validation.Language),
		validator.WithResolver(resolver),
		validator.WithLogger(logger.Named("validator")),
		validator.WithTracerProvider(tel.TracerProvider()),
		validator.WithMetrics(metrics.NewValidation(reg)),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize validators: %w", err)
	}

	opts := []piihttp.Option{
		piihttp.WithGatherer(reg),
		piihttp.WithMeterProvider(tel.MeterProvider()),
	}
	if collab.Health != nil {
		opts = append(opts, piihttp.WithHealthChecker(collab.Health))
	}
	srv, err := piihttp.NewServer(suite, logger.Named("http"), &piihttp.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		DefaultMode:  outcome.Mode(cfg.Validation.Mode),
		ModelName:    "piiguard",
		ModelVersion: version,
	}, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := cfg.Server.ShutdownTimeout.Context(context.Background())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

// initLogger builds the logger. With telemetry on, records are also handed
// to the global OpenTelemetry log provider. Nothing in this binary installs
// an SDK log provider, so that copy is dropped unless an embedding program
// calls global.SetLoggerProvider first; traces and metrics are exported
// regardless.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	lc.Fields["version"] = version
	if cfg.Observability.EnableTelemetry {
		lc.Output.OTEL = true
		return logging.NewLogger(lc, global.GetLoggerProvider())
	}
	return logging.NewLogger(lc, nil)
}

func initResolver(ec config.EntitiesConfig) (*entities.Resolver, error) {
	if ec.GroupsFile == "" {
		return entities.NewResolver(nil), nil
	}
	table, err := entities.LoadTable(ec.GroupsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity groups: %w", err)
	}
	return entities.NewResolver(table), nil
}
